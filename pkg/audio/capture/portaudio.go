// Package capture provides a PortAudio microphone source that feeds Hearth's
// frame queue. It is an external collaborator from the engine's perspective:
// the engine only ever sees [audio.Frame] values appended to it.
package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/hushlabs/hearth/pkg/audio"
)

// Microphone captures mono 16-bit PCM from the default input device and
// delivers fixed-size frames to a sink function.
type Microphone struct {
	sampleRate int
	frameSize  int
}

// NewMicrophone initialises PortAudio and returns a Microphone producing
// frames of frameSize samples at sampleRate Hz. Call [Microphone.Terminate]
// when capture is no longer needed.
func NewMicrophone(sampleRate, frameSize int) (*Microphone, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("capture: initialise portaudio: %w", err)
	}
	return &Microphone{sampleRate: sampleRate, frameSize: frameSize}, nil
}

// Terminate releases the PortAudio runtime.
func (m *Microphone) Terminate() error {
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("capture: terminate portaudio: %w", err)
	}
	return nil
}

// Run opens the default input stream and calls sink for every captured frame
// until ctx is cancelled or sink returns an error. A sink error (for example
// [audio.ErrQueueClosed] after engine shutdown) ends the capture loop and is
// returned to the caller, except context cancellation which returns nil.
func (m *Microphone) Run(ctx context.Context, sink func(audio.Frame) error) error {
	buf := make([]int16, m.frameSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(m.sampleRate), len(buf), buf)
	if err != nil {
		return fmt.Errorf("capture: open input stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("capture: start input stream: %w", err)
	}
	defer stream.Stop()

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := stream.Read(); err != nil {
			return fmt.Errorf("capture: read input stream: %w", err)
		}

		samples := make([]int16, len(buf))
		copy(samples, buf)
		frame := audio.Frame{
			Samples:    samples,
			SampleRate: m.sampleRate,
			Timestamp:  time.Since(start),
		}
		if err := sink(frame); err != nil {
			return err
		}
	}
}
