package asr

import "time"

// Transcript represents a recognition result. Both partial (interim) and
// terminal transcripts use this type.
type Transcript struct {
	// Text is the transcribed speech content. Empty in a terminal transcript
	// means the utterance ended without detectable speech.
	Text string

	// IsFinal indicates whether this is the terminal (authoritative) result.
	IsFinal bool

	// Confidence is the overall confidence score (0.0–1.0). May be zero if
	// the backend does not report confidence.
	Confidence float64

	// Duration is the length of audio the result covers.
	Duration time.Duration
}
