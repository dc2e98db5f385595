// Package asr defines the Provider interface for streaming
// speech-recognition backends.
//
// An ASR provider wraps a speech-to-text engine (a local whisper.cpp model, a
// network service, or a test double) and exposes a uniform streaming
// interface. The central abstraction is SessionHandle: one session covers one
// utterance. Once opened, a session accepts PCM frames and emits two streams
// of Transcript values: low-latency partials for responsiveness and exactly
// one terminal transcript when the engine determines end of speech.
//
// Implementations must be safe for concurrent use. Frame input and transcript
// output channels are goroutine-safe by construction.
package asr

import (
	"context"

	"github.com/hushlabs/hearth/pkg/audio"
)

// StreamConfig describes the audio format and recognition hints for a new ASR
// session.
type StreamConfig struct {
	// SampleRate is the audio sample rate in Hz. Common value: 16000.
	SampleRate int

	// Language is the BCP-47 language tag for recognition (e.g., "en").
	// An empty string lets the backend use its default.
	Language string

	// MaxUtteranceMs bounds the utterance length: when reached, the session
	// finalises with whatever it has heard so far. Zero means the backend
	// default applies.
	MaxUtteranceMs int
}

// SessionHandle represents an open recognition session for a single
// utterance.
//
// The terminal-transcript contract is strict: every session emits exactly one
// value on Finals before the channel closes, even when no speech was detected
// (an empty-text transcript), so the pipeline never hangs waiting for a
// result. Callers must call Close when the session is no longer needed.
// All methods must be safe for concurrent use.
type SessionHandle interface {
	// SendFrame delivers a frame for transcription. Calling SendFrame after
	// Close or after the terminal transcript returns an error.
	SendFrame(frame audio.Frame) error

	// Partials returns a read-only channel of interim transcripts. Suitable
	// for UI feedback; never authoritative. Closed when the session ends.
	Partials() <-chan Transcript

	// Finals returns a read-only channel carrying the single terminal
	// transcript for the utterance. Closed after that value is delivered.
	Finals() <-chan Transcript

	// Close terminates the session, flushing buffered audio into a terminal
	// transcript if one has not been emitted yet. Calling Close more than
	// once is safe and returns nil.
	Close() error
}

// Provider is the abstraction over any streaming recognition backend.
//
// Implementations must be safe for concurrent use; a provider may have
// multiple sessions open simultaneously.
type Provider interface {
	// StartStream opens a recognition session for one utterance. The returned
	// SessionHandle is ready to accept frames immediately.
	//
	// Returns an error if the backend cannot establish the session or ctx is
	// already cancelled. The caller owns the handle and must call Close.
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}
