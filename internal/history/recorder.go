package history

import (
	"context"
	"log/slog"
	"time"

	"github.com/hushlabs/hearth/internal/event"
)

// Recorder builds session records from the engine's event stream and writes
// them to a Store when each session ends. It consumes one bus subscription on
// its own goroutine, so recording never slows the state machine.
type Recorder struct {
	store Store
	sub   *event.Subscription
	log   *slog.Logger
	done  chan struct{}
}

// NewRecorder starts recording from sub. The recorder owns the subscription
// and cancels it on Stop.
func NewRecorder(store Store, sub *event.Subscription, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{
		store: store,
		sub:   sub,
		log:   logger,
		done:  make(chan struct{}),
	}
	go r.run()
	return r
}

// Stop detaches the subscription and waits for the recorder goroutine.
// Events already queued are still processed, so terminations published just
// before shutdown reach the store.
func (r *Recorder) Stop() {
	r.sub.Drain()
	<-r.done
}

func (r *Recorder) run() {
	defer close(r.done)

	open := make(map[string]*Record)
	for ev := range r.sub.C() {
		if ev.SessionID == "" {
			continue
		}
		switch ev.Type {
		case event.TypeSessionStarted:
			open[ev.SessionID] = &Record{
				SessionID:  ev.SessionID,
				SiteID:     ev.SiteID,
				CustomData: ev.CustomData,
				StartedAt:  ev.Time,
			}

		case event.TypeTextCaptured:
			if rec, ok := open[ev.SessionID]; ok {
				rec.Utterances = append(rec.Utterances, Utterance{
					Text:       ev.Text.Text,
					CapturedAt: ev.Time,
				})
			}

		case event.TypeIntentDetected:
			rec, ok := open[ev.SessionID]
			if !ok {
				continue
			}
			// Text-initiated turns have no TextCaptured event; synthesise the
			// utterance from the intent's input.
			if len(rec.Utterances) == 0 || rec.Utterances[len(rec.Utterances)-1].Intent != "" {
				rec.Utterances = append(rec.Utterances, Utterance{
					Text:       ev.Intent.Input,
					CapturedAt: ev.Time,
				})
			}
			rec.Utterances[len(rec.Utterances)-1].Intent = ev.Intent.Intent.Name

		case event.TypeSessionEnded:
			rec, ok := open[ev.SessionID]
			if !ok {
				continue
			}
			delete(open, ev.SessionID)
			rec.EndedAt = ev.Time
			rec.Termination = string(ev.Ended.Kind)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := r.store.SaveSession(ctx, *rec); err != nil {
				r.log.Error("failed to save session record", "session_id", rec.SessionID, "err", err)
			}
			cancel()
		}
	}
}
