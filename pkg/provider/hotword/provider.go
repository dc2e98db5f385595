// Package hotword defines the Engine interface for wake-phrase detection
// backends.
//
// A hotword engine wraps a frame-level wake-phrase detector and surfaces it as
// a stateful, per-stream session. Detection is synchronous: ProcessFrame
// returns immediately with a result, making it suitable for the pipeline loop
// that gates session start. A detection miss is not an error and produces no
// event.
//
// Implementations must be safe for concurrent use across different sessions.
// A single SessionHandle should not be shared across goroutines unless the
// implementation explicitly documents thread safety for that type.
package hotword

import "github.com/hushlabs/hearth/pkg/audio"

// Config holds the parameters for a hotword session.
type Config struct {
	// SampleRate is the audio sample rate in Hz. Must match the rate of the
	// frames passed to ProcessFrame.
	SampleRate int

	// Sensitivity trades false accepts against false rejects. Range: [0.0, 1.0].
	// Higher values detect more readily. Typical: 0.5.
	Sensitivity float64

	// RefractoryMs is the debounce window after a detection during which the
	// session must not re-trigger, so one utterance of the wake phrase yields
	// exactly one event.
	RefractoryMs int
}

// Detection is the result of processing one frame.
type Detection struct {
	// Detected reports whether the wake phrase completed on this frame.
	Detected bool

	// Keyword is the phrase that matched, for engines with multiple models.
	Keyword string

	// Confidence is the detection score (0.0–1.0). May be zero if the engine
	// does not report confidence.
	Confidence float64
}

// SessionHandle is an active hotword session for a single audio stream. It is
// an interface so that test code can supply scripted implementations without a
// live model. Each session maintains its own detection state; Reset clears
// this state without closing the session.
type SessionHandle interface {
	// ProcessFrame analyses a single frame and returns the detection result.
	// Called synchronously in the pipeline loop; it must not block.
	ProcessFrame(frame audio.Frame) (Detection, error)

	// Reset clears accumulated detection state (windows, debounce timers)
	// without closing the session. The pipeline calls it when detection is
	// re-armed after a session ends, so stale energy from the previous
	// utterance cannot trigger a spurious wake.
	Reset()

	// Close releases all resources associated with the session. Calling Close
	// more than once is safe and returns nil.
	Close() error
}

// Engine is the factory for hotword sessions, implemented by each backend.
type Engine interface {
	// NewSession creates a detection session with the given configuration.
	// Returns an error if the configuration is invalid or resources cannot be
	// allocated.
	NewSession(cfg Config) (SessionHandle, error)
}
