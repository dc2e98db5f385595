package remote_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/hushlabs/hearth/internal/dialogue"
	"github.com/hushlabs/hearth/internal/event"
	"github.com/hushlabs/hearth/internal/remote"
	"github.com/hushlabs/hearth/internal/vocab"

	"net/http/httptest"
)

// fakeEngine records the commands the bridge dispatches and exposes a real
// event bus for the outbound direction.
type fakeEngine struct {
	bus *event.Bus

	mu       sync.Mutex
	started  []dialogue.StartRequest
	ended    []string
	injected [][]vocab.Operation
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{bus: event.NewBus()}
}

func (f *fakeEngine) Events() *event.Subscription { return f.bus.Subscribe() }

func (f *fakeEngine) StartSession(req dialogue.StartRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, req)
	return nil
}

func (f *fakeEngine) StartNotification(dialogue.NotificationRequest) error { return nil }

func (f *fakeEngine) ContinueSession(string, string, []string) error { return nil }

func (f *fakeEngine) EndSession(sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ended = append(f.ended, sessionID)
	return nil
}

func (f *fakeEngine) NotifySpeechEnded(string, string) error { return nil }

func (f *fakeEngine) RequestInjection(ops []vocab.Operation) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.injected = append(f.injected, ops)
	return "req-1", nil
}

func (f *fakeEngine) RequestInjectionReset() (string, error) { return "req-2", nil }

func (f *fakeEngine) startRequests() []dialogue.StartRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]dialogue.StartRequest(nil), f.started...)
}

func dialBridge(t *testing.T, eng remote.Engine) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(remote.NewServer(eng, nil))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, srv.URL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) event.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev event.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	return ev
}

func writeCommand(t *testing.T, conn *websocket.Conn, cmd remote.Command) {
	t.Helper()
	data, err := json.Marshal(cmd)
	if err != nil {
		t.Fatalf("marshal command: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestStreamsEngineEvents(t *testing.T) {
	t.Parallel()

	eng := newFakeEngine()
	conn := dialBridge(t, eng)

	// Give the bridge a moment to subscribe before publishing.
	time.Sleep(50 * time.Millisecond)
	eng.bus.Publish(event.Event{
		Type:      event.TypeSessionStarted,
		SessionID: "s-1",
		SiteID:    "kitchen",
	})

	ev := readEvent(t, conn)
	if ev.Type != event.TypeSessionStarted {
		t.Errorf("type = %q, want sessionStarted", ev.Type)
	}
	if ev.SessionID != "s-1" || ev.SiteID != "kitchen" {
		t.Errorf("event = %+v", ev)
	}
}

func TestDispatchesCommands(t *testing.T) {
	t.Parallel()

	eng := newFakeEngine()
	conn := dialBridge(t, eng)

	writeCommand(t, conn, remote.Command{
		Type:         "startSession",
		SiteID:       "hall",
		Text:         "turn on the lights",
		IntentFilter: []string{"turnOnLights"},
	})

	deadline := time.Now().Add(2 * time.Second)
	for {
		if reqs := eng.startRequests(); len(reqs) == 1 {
			req := reqs[0]
			if req.SiteID != "hall" || req.Text != "turn on the lights" {
				t.Errorf("request = %+v", req)
			}
			if len(req.Filter) != 1 || req.Filter[0] != "turnOnLights" {
				t.Errorf("filter = %v", req.Filter)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("startSession never reached the engine")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestUnknownCommandReportsError(t *testing.T) {
	t.Parallel()

	eng := newFakeEngine()
	conn := dialBridge(t, eng)

	writeCommand(t, conn, remote.Command{Type: "reboot"})

	ev := readEvent(t, conn)
	if ev.Type != event.TypeError {
		t.Fatalf("type = %q, want error", ev.Type)
	}
	if ev.Error == nil || ev.Error.Message == "" {
		t.Errorf("error payload = %+v", ev.Error)
	}
}
