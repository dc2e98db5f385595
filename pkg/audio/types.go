// Package audio defines the frame type and the bounded ingestion queue that
// carry PCM audio through the Hearth pipeline.
//
// Frames are the atomic unit of audio transport: appended by the capture layer,
// consumed by exactly one pipeline stage at a time (hotword detection or
// streaming recognition, never both). A frame is immutable once enqueued;
// ownership transfers to the queue on Append and to the consumer on Next.
package audio

import "time"

// Frame is a single frame of mono 16-bit signed PCM audio.
type Frame struct {
	// Samples holds the raw 16-bit signed samples. Callers must not mutate
	// the slice after enqueueing the frame.
	Samples []int16

	// SampleRate in Hz (e.g., 16000 for recognition-optimised input).
	SampleRate int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Duration returns the play time of the frame at its sample rate.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(f.Samples)) * time.Second / time.Duration(f.SampleRate)
}

// Bytes returns the frame's samples as little-endian PCM bytes, the layout
// WAV payloads and byte-oriented transports use for 16-bit audio.
func (f Frame) Bytes() []byte {
	out := make([]byte, len(f.Samples)*2)
	for i, s := range f.Samples {
		out[2*i] = byte(s)
		out[2*i+1] = byte(s >> 8)
	}
	return out
}
