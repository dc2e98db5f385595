package engine

import (
	"context"
	"errors"
	"time"

	"github.com/hushlabs/hearth/pkg/audio"
	"github.com/hushlabs/hearth/pkg/provider/asr"
	"github.com/hushlabs/hearth/pkg/provider/hotword"
)

// listener is the live ASR capture for one session's recognition turn.
type listener struct {
	sessionID string
	session   asr.SessionHandle
	startedAt time.Time
}

// runPipeline is the audio worker: it drains the frame queue continuously,
// routing each frame to either the wake-word detector (site idle) or the
// active recognition session, never both. It must never block on client
// code; everything it calls downstream is asynchronous.
func (e *Engine) runPipeline() error {
	for {
		frame, err := e.queue.Next()
		if err != nil {
			if errors.Is(err, audio.ErrQueueClosed) {
				return nil
			}
			return err
		}

		if l := e.currentListener(); l != nil {
			if err := l.session.SendFrame(frame); err != nil && !errors.Is(err, asr.ErrFinalised) {
				e.dlg.HandleFault(l.sessionID, err)
				e.stopListener(l.sessionID)
			}
			continue
		}

		det, err := e.hotwordSession().ProcessFrame(frame)
		if err != nil {
			e.log.Warn("hotword processing failed", "err", err)
			continue
		}
		if det.Detected {
			e.metrics.HotwordDetections.Add(context.Background(), 1)
			e.dlg.HandleHotword(e.siteID, det.Keyword, det.Confidence)
		}
	}
}

// StartListening implements [dialogue.Pipeline]: it opens a recognition
// session and routes frames to it until the terminal transcript arrives.
func (e *Engine) StartListening(sessionID string) error {
	handle, err := e.asrProv.StartStream(context.Background(), e.asrCfg)
	if err != nil {
		return err
	}

	l := &listener{sessionID: sessionID, session: handle, startedAt: time.Now()}
	e.mu.Lock()
	if old := e.listener; old != nil {
		_ = old.session.Close()
	}
	e.listener = l
	e.mu.Unlock()

	go e.forwardTranscripts(l)
	return nil
}

// StopListening implements [dialogue.Pipeline]: it aborts the capture for the
// session if it is still the active one.
func (e *Engine) StopListening(sessionID string) {
	e.stopListener(sessionID)
}

// stopListener closes and clears the active listener. An empty sessionID
// matches any listener; a non-empty one only its own.
func (e *Engine) stopListener(sessionID string) {
	e.mu.Lock()
	l := e.listener
	if l == nil || (sessionID != "" && l.sessionID != sessionID) {
		e.mu.Unlock()
		return
	}
	e.listener = nil
	hw := e.hwSession
	e.mu.Unlock()

	_ = l.session.Close()
	if hw != nil {
		hw.Reset()
	}
}

func (e *Engine) currentListener() *listener {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.listener
}

func (e *Engine) hotwordSession() hotword.SessionHandle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hwSession
}

// forwardTranscripts pumps a session's partial and terminal transcripts into
// the dialogue manager. Partials are coalesced to the configured minimum
// period; the terminal transcript always goes through and ends the capture.
func (e *Engine) forwardTranscripts(l *listener) {
	partials := l.session.Partials()
	finals := l.session.Finals()
	var lastPartial time.Time

	for partials != nil || finals != nil {
		select {
		case t, ok := <-partials:
			if !ok {
				partials = nil
				continue
			}
			if time.Since(lastPartial) < e.partialPeriod {
				continue
			}
			lastPartial = time.Now()
			e.dlg.HandlePartial(l.sessionID, t)

		case t, ok := <-finals:
			if !ok {
				finals = nil
				continue
			}
			e.metrics.ASRDuration.Record(context.Background(), time.Since(l.startedAt).Seconds())
			e.dlg.HandleFinal(l.sessionID, t)
		}
	}

	e.stopListener(l.sessionID)
}
