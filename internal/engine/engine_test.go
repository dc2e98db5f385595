package engine_test

import (
	"errors"
	"testing"
	"time"

	"github.com/hushlabs/hearth/internal/dialogue"
	"github.com/hushlabs/hearth/internal/engine"
	"github.com/hushlabs/hearth/internal/event"
	"github.com/hushlabs/hearth/internal/vocab"
	"github.com/hushlabs/hearth/pkg/audio"
	asrmock "github.com/hushlabs/hearth/pkg/provider/asr/mock"
	hwmock "github.com/hushlabs/hearth/pkg/provider/hotword/mock"
	"github.com/hushlabs/hearth/pkg/provider/nlu/pattern"
)

func weatherModel() *pattern.Resolver {
	return pattern.New(
		[]pattern.IntentSpec{
			{
				Name:     "searchWeatherForecast",
				Keywords: []string{"weather", "forecast"},
				Slots:    []pattern.SlotSpec{{Name: "forecast_location", Entity: "city"}},
			},
		},
		map[string][]string{"city": {"paris", "berlin"}},
	)
}

type harness struct {
	hw  *hwmock.Engine
	asr *asrmock.Provider
	eng *engine.Engine
	sub *event.Subscription
}

func newHarness(t *testing.T, opts ...engine.Option) *harness {
	t.Helper()
	h := &harness{
		hw:  &hwmock.Engine{},
		asr: &asrmock.Provider{},
	}
	h.eng = engine.New(h.hw, h.asr, weatherModel(), opts...)
	h.sub = h.eng.Events()
	if err := h.eng.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		h.eng.Stop()
		h.sub.Cancel()
	})
	return h
}

// waitFor discards events until one of the wanted type arrives.
func (h *harness) waitFor(t *testing.T, typ event.Type) event.Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev, ok := <-h.sub.C():
			if !ok {
				t.Fatalf("event stream closed while waiting for %q", typ)
			}
			if ev.Type == typ {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q", typ)
		}
	}
}

func testFrame() audio.Frame {
	return audio.Frame{Samples: make([]int16, 320), SampleRate: 16000}
}

// feedFrames pumps frames into the engine until the returned stop function is
// called.
func feedFrames(t *testing.T, eng *engine.Engine) (stop func()) {
	t.Helper()
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for {
			select {
			case <-done:
				return
			default:
			}
			if err := eng.AppendFrame(testFrame()); err != nil {
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()
	return func() {
		close(done)
		<-finished
	}
}

func TestAppendFrameLifecycle(t *testing.T) {
	t.Parallel()

	eng := engine.New(&hwmock.Engine{}, &asrmock.Provider{}, weatherModel())
	if err := eng.AppendFrame(testFrame()); !errors.Is(err, engine.ErrEngineNotRunning) {
		t.Fatalf("AppendFrame before start: err = %v, want ErrEngineNotRunning", err)
	}

	if err := eng.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := eng.Start(); !errors.Is(err, engine.ErrAlreadyRunning) {
		t.Fatalf("second Start: err = %v, want ErrAlreadyRunning", err)
	}
	if err := eng.AppendFrame(testFrame()); err != nil {
		t.Fatalf("AppendFrame while running: %v", err)
	}

	eng.Stop()
	if err := eng.AppendFrame(testFrame()); !errors.Is(err, engine.ErrEngineNotRunning) {
		t.Fatalf("AppendFrame after stop: err = %v, want ErrEngineNotRunning", err)
	}
	if err := eng.Start(); !errors.Is(err, engine.ErrEngineStopped) {
		t.Fatalf("Start after Stop: err = %v, want ErrEngineStopped", err)
	}
}

func TestStopDeliversPendingSessionEnd(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	if err := h.eng.StartSession(dialogue.StartRequest{Text: "what is the weather forecast"}); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	h.waitFor(t, event.TypeIntentDetected)

	// Stop while the subscriber lags behind: the abort must still reach it.
	h.eng.Stop()

	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev, ok := <-h.sub.C():
			if !ok {
				t.Fatal("event stream closed without a sessionEnded")
			}
			if ev.Type != event.TypeSessionEnded {
				continue
			}
			if ev.Ended.Kind != event.TerminationAbortedByUser {
				t.Errorf("termination = %q, want abortedByUser", ev.Ended.Kind)
			}
			return
		case <-deadline:
			t.Fatal("timed out waiting for sessionEnded after stop")
		}
	}
}

func TestInjectionDuringStop(t *testing.T) {
	t.Parallel()

	eng := engine.New(&hwmock.Engine{}, &asrmock.Provider{}, weatherModel())
	if err := eng.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, err := eng.RequestInjection([]vocab.Operation{{
				Kind:   vocab.OperationAdd,
				Values: map[string][]string{"city": {"lyon"}},
			}})
			if err != nil {
				if !errors.Is(err, engine.ErrEngineNotRunning) {
					t.Errorf("RequestInjection during stop: err = %v, want ErrEngineNotRunning", err)
				}
				return
			}
		}
	}()

	time.Sleep(10 * time.Millisecond)
	eng.Stop()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("injection loop did not observe the stop")
	}
}

func TestHotwordToIntentEndToEnd(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.asr.Script(asrmock.Utterance{
		Partials:         []string{"weather"},
		Final:            "weather forecast for paris",
		FinalAfterFrames: 20,
	})

	stop := feedFrames(t, h.eng)
	defer stop()

	h.hw.Sessions()[0].TriggerNext()

	h.waitFor(t, event.TypeHotwordDetected)
	started := h.waitFor(t, event.TypeSessionStarted)
	h.waitFor(t, event.TypeListeningStateChanged)

	captured := h.waitFor(t, event.TypeTextCaptured)
	if captured.Text.Text != "weather forecast for paris" {
		t.Errorf("captured text = %q", captured.Text.Text)
	}

	detected := h.waitFor(t, event.TypeIntentDetected)
	if detected.Intent.Intent.Name != "searchWeatherForecast" {
		t.Errorf("intent = %q, want searchWeatherForecast", detected.Intent.Intent.Name)
	}
	if len(detected.Intent.Slots) != 1 || detected.Intent.Slots[0].RawValue != "paris" {
		t.Errorf("slots = %+v, want one paris slot", detected.Intent.Slots)
	}

	if err := h.eng.EndSession(started.SessionID); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	ended := h.waitFor(t, event.TypeSessionEnded)
	if ended.Ended.Kind != event.TerminationNominal {
		t.Errorf("termination = %q, want nominal", ended.Ended.Kind)
	}
}

func TestFilteredTextSession(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	if err := h.eng.StartSession(dialogue.StartRequest{
		Text:   "what is the weather forecast for berlin",
		Filter: []string{"searchWeatherForecast"},
	}); err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	detected := h.waitFor(t, event.TypeIntentDetected)
	if detected.Intent.Intent.Name != "searchWeatherForecast" {
		t.Errorf("intent = %q", detected.Intent.Intent.Name)
	}

	if err := h.eng.EndSession(detected.SessionID); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	h.waitFor(t, event.TypeSessionEnded)
}

func TestInjectionRoundTrip(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	resolveSlots := func() []nluSlotRaw {
		t.Helper()
		if err := h.eng.StartSession(dialogue.StartRequest{Text: "weather forecast for zgorzelec"}); err != nil {
			t.Fatalf("StartSession: %v", err)
		}
		detected := h.waitFor(t, event.TypeIntentDetected)
		if err := h.eng.EndSession(detected.SessionID); err != nil {
			t.Fatalf("EndSession: %v", err)
		}
		h.waitFor(t, event.TypeSessionEnded)
		out := make([]nluSlotRaw, 0, len(detected.Intent.Slots))
		for _, s := range detected.Intent.Slots {
			out = append(out, nluSlotRaw{entity: s.Entity, raw: s.RawValue})
		}
		return out
	}

	if slots := resolveSlots(); len(slots) != 0 {
		t.Fatalf("uninjected value resolved: %+v", slots)
	}

	inject := func() {
		t.Helper()
		id, err := h.eng.RequestInjection([]vocab.Operation{{
			Kind:   vocab.OperationAdd,
			Values: map[string][]string{"city": {"zgorzelec"}},
		}})
		if err != nil {
			t.Fatalf("RequestInjection: %v", err)
		}
		done := h.waitFor(t, event.TypeInjectionComplete)
		if done.Injection.RequestID != id {
			t.Fatalf("completion request id = %q, want %q", done.Injection.RequestID, id)
		}
	}

	inject()
	if slots := resolveSlots(); len(slots) != 1 || slots[0].raw != "zgorzelec" {
		t.Fatalf("injected value not resolvable: %+v", slots)
	}

	if _, err := h.eng.RequestInjectionReset(); err != nil {
		t.Fatalf("RequestInjectionReset: %v", err)
	}
	h.waitFor(t, event.TypeInjectionResetComplete)
	if slots := resolveSlots(); len(slots) != 0 {
		t.Fatalf("value still resolvable after reset: %+v", slots)
	}

	// Repeating the add must not duplicate the value or break resolution.
	inject()
	inject()
	if slots := resolveSlots(); len(slots) != 1 {
		t.Fatalf("idempotent re-injection broke resolution: %+v", slots)
	}
}

func TestInjectionUnknownEntity(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	if _, err := h.eng.RequestInjection([]vocab.Operation{{
		Kind:   vocab.OperationAdd,
		Values: map[string][]string{"planet": {"mars"}},
	}}); err != nil {
		t.Fatalf("RequestInjection: %v", err)
	}

	errEv := h.waitFor(t, event.TypeError)
	if errEv.Error.Message == "" {
		t.Error("error event has no message")
	}
}

type nluSlotRaw struct {
	entity string
	raw    string
}
