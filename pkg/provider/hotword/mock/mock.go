// Package mock provides a scripted hotword engine for tests.
package mock

import (
	"sync"

	"github.com/hushlabs/hearth/pkg/audio"
	"github.com/hushlabs/hearth/pkg/provider/hotword"
)

// Engine is a scripted [hotword.Engine]. Detections fire in order, one per
// call to TriggerNext; frames processed in between return no detection.
type Engine struct {
	mu       sync.Mutex
	sessions []*Session
}

var _ hotword.Engine = (*Engine)(nil)

// NewSession implements [hotword.Engine.NewSession].
func (e *Engine) NewSession(cfg hotword.Config) (hotword.SessionHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := &Session{}
	e.sessions = append(e.sessions, s)
	return s, nil
}

// Sessions returns all sessions created so far.
func (e *Engine) Sessions() []*Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Session, len(e.sessions))
	copy(out, e.sessions)
	return out
}

// Session is a scripted [hotword.SessionHandle].
type Session struct {
	mu        sync.Mutex
	pending   int
	processed int
	resets    int
	closed    bool
}

var _ hotword.SessionHandle = (*Session)(nil)

// TriggerNext arms the session so that the next ProcessFrame call reports a
// detection.
func (s *Session) TriggerNext() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending++
}

// ProcessFrame implements [hotword.SessionHandle.ProcessFrame].
func (s *Session) ProcessFrame(_ audio.Frame) (hotword.Detection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed++
	if s.pending > 0 {
		s.pending--
		return hotword.Detection{Detected: true, Keyword: "hearth", Confidence: 1}, nil
	}
	return hotword.Detection{}, nil
}

// Reset implements [hotword.SessionHandle.Reset].
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets++
}

// Close implements [hotword.SessionHandle.Close].
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Processed returns how many frames the session has seen.
func (s *Session) Processed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processed
}

// Resets returns how many times Reset was called.
func (s *Session) Resets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resets
}
