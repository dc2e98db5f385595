package pattern

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hushlabs/hearth/pkg/provider/nlu"
)

// staticVocab is a minimal nlu.Vocabulary for tests.
type staticVocab struct {
	version int
	values  map[string][]string
}

func (v *staticVocab) Values(entity string) []string { return v.values[entity] }
func (v *staticVocab) HasEntity(entity string) bool  { _, ok := v.values[entity]; return ok }
func (v *staticVocab) Version() uint64               { return uint64(v.version) }

func weatherResolver(opts ...Option) *Resolver {
	intents := []IntentSpec{
		{
			Name:     "searchWeatherForecast",
			Keywords: []string{"weather", "forecast"},
			Slots: []SlotSpec{
				{Name: "forecast_location", Entity: "city"},
			},
		},
		{
			Name:     "turnOnLights",
			Keywords: []string{"lights", "turn"},
		},
	}
	entities := map[string][]string{
		"city": {"paris", "berlin", "amsterdam"},
	}
	return New(intents, entities, opts...)
}

func TestResolveIntentWithSlot(t *testing.T) {
	t.Parallel()

	r := weatherResolver()
	msg, err := r.Resolve(context.Background(), nlu.Query{
		Text: "what is the weather forecast for paris today",
	})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if msg.Intent.Name != "searchWeatherForecast" {
		t.Errorf("intent = %q, want searchWeatherForecast", msg.Intent.Name)
	}
	if msg.Intent.Confidence < 0.9 {
		t.Errorf("confidence = %f, want >= 0.9", msg.Intent.Confidence)
	}
	if len(msg.Slots) != 1 {
		t.Fatalf("got %d slots, want 1", len(msg.Slots))
	}
	slot := msg.Slots[0]
	if slot.Name != "forecast_location" {
		t.Errorf("slot name = %q, want forecast_location", slot.Name)
	}
	custom, ok := slot.Value.(nlu.CustomValue)
	if !ok {
		t.Fatalf("slot value kind = %v, want Custom", slot.Value.Kind())
	}
	if custom.Value != "paris" {
		t.Errorf("slot value = %q, want paris", custom.Value)
	}
}

func TestResolveNotRecognized(t *testing.T) {
	t.Parallel()

	r := weatherResolver()
	_, err := r.Resolve(context.Background(), nlu.Query{Text: "completely unrelated gibberish"})
	if !errors.Is(err, nlu.ErrNotRecognized) {
		t.Fatalf("err = %v, want ErrNotRecognized", err)
	}
}

func TestResolveFilter(t *testing.T) {
	t.Parallel()

	t.Run("empty filter rejects everything", func(t *testing.T) {
		t.Parallel()
		r := weatherResolver()
		_, err := r.Resolve(context.Background(), nlu.Query{
			Text:   "what is the weather forecast",
			Filter: []string{},
		})
		if !errors.Is(err, nlu.ErrNotRecognized) {
			t.Fatalf("err = %v, want ErrNotRecognized", err)
		}
	})

	t.Run("unknown intent in filter is an error", func(t *testing.T) {
		t.Parallel()
		r := weatherResolver()
		_, err := r.Resolve(context.Background(), nlu.Query{
			Text:   "what is the weather forecast",
			Filter: []string{"noSuchIntent"},
		})
		var unknownErr *nlu.UnknownIntentError
		if !errors.As(err, &unknownErr) {
			t.Fatalf("err = %v, want UnknownIntentError", err)
		}
		if unknownErr.Intent != "noSuchIntent" {
			t.Errorf("unknown intent = %q, want noSuchIntent", unknownErr.Intent)
		}
	})

	t.Run("filter excluding the matching intent", func(t *testing.T) {
		t.Parallel()
		r := weatherResolver()
		_, err := r.Resolve(context.Background(), nlu.Query{
			Text:   "what is the weather forecast",
			Filter: []string{"turnOnLights"},
		})
		if !errors.Is(err, nlu.ErrNotRecognized) {
			t.Fatalf("err = %v, want ErrNotRecognized", err)
		}
	})

	t.Run("filter admitting the matching intent", func(t *testing.T) {
		t.Parallel()
		r := weatherResolver()
		msg, err := r.Resolve(context.Background(), nlu.Query{
			Text:   "what is the weather forecast",
			Filter: []string{"searchWeatherForecast"},
		})
		if err != nil {
			t.Fatalf("Resolve returned error: %v", err)
		}
		if msg.Intent.Name != "searchWeatherForecast" {
			t.Errorf("intent = %q, want searchWeatherForecast", msg.Intent.Name)
		}
	})
}

func TestResolveInjectedVocabulary(t *testing.T) {
	t.Parallel()

	r := weatherResolver()
	query := nlu.Query{Text: "weather forecast for zgorzelec please"}

	msg, err := r.Resolve(context.Background(), query)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if len(msg.Slots) != 0 {
		t.Fatalf("uninjected value resolved to %d slots, want 0", len(msg.Slots))
	}

	query.Vocabulary = &staticVocab{
		version: 1,
		values:  map[string][]string{"city": {"zgorzelec"}},
	}
	msg, err = r.Resolve(context.Background(), query)
	if err != nil {
		t.Fatalf("Resolve with injection returned error: %v", err)
	}
	if len(msg.Slots) != 1 {
		t.Fatalf("got %d slots after injection, want 1", len(msg.Slots))
	}
	if got := msg.Slots[0].Value.(nlu.CustomValue).Value; got != "zgorzelec" {
		t.Errorf("slot value = %q, want zgorzelec", got)
	}
}

func TestPhoneticTolerance(t *testing.T) {
	t.Parallel()

	r := weatherResolver()
	msg, err := r.Resolve(context.Background(), nlu.Query{
		Text: "whats the whether forecast for berlin",
	})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if msg.Intent.Name != "searchWeatherForecast" {
		t.Errorf("intent = %q, want searchWeatherForecast", msg.Intent.Name)
	}
}

func TestBuiltinSlots(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2026, time.August, 31, 12, 0, 0, 0, time.UTC)
	intents := []IntentSpec{
		{
			Name:     "setVolume",
			Keywords: []string{"volume"},
			Slots:    []SlotSpec{{Name: "level", Entity: EntityNumber}},
		},
		{
			Name:     "setTimer",
			Keywords: []string{"timer"},
			Slots:    []SlotSpec{{Name: "length", Entity: EntityDuration}},
		},
		{
			Name:     "getForecastDay",
			Keywords: []string{"forecast"},
			Slots:    []SlotSpec{{Name: "when", Entity: EntityDatetime}},
		},
	}
	r := New(intents, nil, WithClock(func() time.Time { return fixed }))

	t.Run("number", func(t *testing.T) {
		t.Parallel()
		msg, err := r.Resolve(context.Background(), nlu.Query{Text: "set the volume to seven"})
		if err != nil {
			t.Fatalf("Resolve returned error: %v", err)
		}
		if len(msg.Slots) != 1 {
			t.Fatalf("got %d slots, want 1", len(msg.Slots))
		}
		num, ok := msg.Slots[0].Value.(nlu.NumberValue)
		if !ok {
			t.Fatalf("slot value kind = %v, want Number", msg.Slots[0].Value.Kind())
		}
		if num.Value != 7 {
			t.Errorf("number = %f, want 7", num.Value)
		}
	})

	t.Run("duration", func(t *testing.T) {
		t.Parallel()
		msg, err := r.Resolve(context.Background(), nlu.Query{Text: "set a timer for ten minutes"})
		if err != nil {
			t.Fatalf("Resolve returned error: %v", err)
		}
		if len(msg.Slots) != 1 {
			t.Fatalf("got %d slots, want 1", len(msg.Slots))
		}
		dur, ok := msg.Slots[0].Value.(nlu.DurationValue)
		if !ok {
			t.Fatalf("slot value kind = %v, want Duration", msg.Slots[0].Value.Kind())
		}
		if dur.Value != 10*time.Minute {
			t.Errorf("duration = %v, want 10m", dur.Value)
		}
	})

	t.Run("datetime", func(t *testing.T) {
		t.Parallel()
		msg, err := r.Resolve(context.Background(), nlu.Query{Text: "forecast for tomorrow"})
		if err != nil {
			t.Fatalf("Resolve returned error: %v", err)
		}
		if len(msg.Slots) != 1 {
			t.Fatalf("got %d slots, want 1", len(msg.Slots))
		}
		instant, ok := msg.Slots[0].Value.(nlu.InstantTimeValue)
		if !ok {
			t.Fatalf("slot value kind = %v, want InstantTime", msg.Slots[0].Value.Kind())
		}
		want := time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC)
		if !instant.Value.Equal(want) {
			t.Errorf("instant = %v, want %v", instant.Value, want)
		}
		if instant.Grain != nlu.GrainDay {
			t.Errorf("grain = %v, want Day", instant.Grain)
		}
	})
}

func TestAlternativesBounded(t *testing.T) {
	t.Parallel()

	intents := []IntentSpec{
		{Name: "playMusic", Keywords: []string{"play"}},
		{Name: "playRadio", Keywords: []string{"play", "radio"}},
		{Name: "playPodcast", Keywords: []string{"play", "podcast"}},
	}
	r := New(intents, nil, WithMaxIntentAlternatives(1))

	msg, err := r.Resolve(context.Background(), nlu.Query{Text: "play something"})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if msg.Intent.Name != "playMusic" {
		t.Errorf("intent = %q, want playMusic", msg.Intent.Name)
	}
	if len(msg.Alternatives) != 1 {
		t.Errorf("got %d alternatives, want 1", len(msg.Alternatives))
	}
}

func TestHasEntity(t *testing.T) {
	t.Parallel()

	r := weatherResolver()
	for _, entity := range []string{"city", EntityNumber, EntityDuration, EntityDatetime} {
		if !r.HasEntity(entity) {
			t.Errorf("HasEntity(%q) = false, want true", entity)
		}
	}
	if r.HasEntity("planet") {
		t.Error("HasEntity(planet) = true, want false")
	}
}
