// Package mock provides a scripted ASR provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/hushlabs/hearth/pkg/audio"
	"github.com/hushlabs/hearth/pkg/provider/asr"
)

// Utterance scripts the behaviour of one recognition session.
type Utterance struct {
	// Partials are emitted one per received frame, in order, before the
	// terminal transcript.
	Partials []string

	// Final is the terminal transcript text.
	Final string

	// FinalAfterFrames emits the terminal transcript once this many frames
	// have been received. Zero means the terminal transcript is only emitted
	// when the session is closed.
	FinalAfterFrames int
}

// Provider is a scripted [asr.Provider]. Each StartStream call consumes the
// next scripted utterance; when the script is exhausted, sessions finalise
// with empty text on Close.
type Provider struct {
	mu       sync.Mutex
	script   []Utterance
	sessions []*Session
}

var _ asr.Provider = (*Provider)(nil)

// Script appends utterances to the provider's script.
func (p *Provider) Script(utts ...Utterance) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.script = append(p.script, utts...)
}

// StartStream implements [asr.Provider.StartStream].
func (p *Provider) StartStream(ctx context.Context, _ asr.StreamConfig) (asr.SessionHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	var u Utterance
	if len(p.script) > 0 {
		u = p.script[0]
		p.script = p.script[1:]
	}
	s := &Session{
		utt:      u,
		partials: make(chan asr.Transcript, 16),
		finals:   make(chan asr.Transcript, 1),
	}
	p.sessions = append(p.sessions, s)
	p.mu.Unlock()

	return s, nil
}

// Sessions returns all sessions the provider has opened.
func (p *Provider) Sessions() []*Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Session, len(p.sessions))
	copy(out, p.sessions)
	return out
}

// Session is a scripted [asr.SessionHandle].
type Session struct {
	mu        sync.Mutex
	utt       Utterance
	frames    int
	nextPart  int
	finalised bool
	closed    bool
	partials  chan asr.Transcript
	finals    chan asr.Transcript
}

var _ asr.SessionHandle = (*Session)(nil)

// SendFrame implements [asr.SessionHandle.SendFrame].
func (s *Session) SendFrame(_ audio.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finalised {
		return asr.ErrFinalised
	}
	if s.closed {
		return asr.ErrFinalised
	}

	s.frames++

	if s.nextPart < len(s.utt.Partials) {
		select {
		case s.partials <- asr.Transcript{Text: s.utt.Partials[s.nextPart]}:
			s.nextPart++
		default:
		}
	}

	if s.utt.FinalAfterFrames > 0 && s.frames >= s.utt.FinalAfterFrames {
		s.finaliseLocked(s.utt.Final)
	}
	return nil
}

// Partials implements [asr.SessionHandle.Partials].
func (s *Session) Partials() <-chan asr.Transcript { return s.partials }

// Finals implements [asr.SessionHandle.Finals].
func (s *Session) Finals() <-chan asr.Transcript { return s.finals }

// Close implements [asr.SessionHandle.Close]. If the terminal transcript has
// not been emitted yet, Close flushes the scripted final (or empty text).
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if !s.finalised {
		s.finaliseLocked(s.utt.Final)
	}
	return nil
}

// Frames returns how many frames the session has received.
func (s *Session) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

func (s *Session) finaliseLocked(text string) {
	s.finalised = true
	s.finals <- asr.Transcript{Text: text, IsFinal: true, Confidence: 1}
	close(s.finals)
	close(s.partials)
}
