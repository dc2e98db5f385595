package hotword_test

import (
	"testing"
	"time"

	"github.com/hushlabs/hearth/pkg/audio"
	"github.com/hushlabs/hearth/pkg/provider/hotword"
)

// loudFrame returns 20 ms of full-amplitude square wave at 16 kHz.
func loudFrame() audio.Frame {
	samples := make([]int16, 320)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = 16000
		} else {
			samples[i] = -16000
		}
	}
	return audio.Frame{Samples: samples, SampleRate: 16000}
}

// quietFrame returns 20 ms of silence at 16 kHz.
func quietFrame() audio.Frame {
	return audio.Frame{Samples: make([]int16, 320), SampleRate: 16000}
}

func feedUntilDetected(t *testing.T, s hotword.SessionHandle, frame audio.Frame, max int) int {
	t.Helper()
	for i := 0; i < max; i++ {
		det, err := s.ProcessFrame(frame)
		if err != nil {
			t.Fatalf("ProcessFrame: unexpected error: %v", err)
		}
		if det.Detected {
			return i
		}
	}
	return -1
}

func TestEnergyDetection(t *testing.T) {
	t.Parallel()

	eng := hotword.NewEnergyEngine()
	s, err := eng.NewSession(hotword.Config{SampleRate: 16000, Sensitivity: 0.5})
	if err != nil {
		t.Fatalf("NewSession: unexpected error: %v", err)
	}
	defer s.Close()

	if i := feedUntilDetected(t, s, loudFrame(), 100); i < 0 {
		t.Fatal("expected detection on sustained loud input")
	}
}

func TestEnergySilenceNeverDetects(t *testing.T) {
	t.Parallel()

	eng := hotword.NewEnergyEngine()
	s, err := eng.NewSession(hotword.Config{SampleRate: 16000})
	if err != nil {
		t.Fatalf("NewSession: unexpected error: %v", err)
	}
	defer s.Close()

	for i := 0; i < 200; i++ {
		det, err := s.ProcessFrame(quietFrame())
		if err != nil {
			t.Fatalf("ProcessFrame: unexpected error: %v", err)
		}
		if det.Detected {
			t.Fatalf("detected wake phrase in silence at frame %d", i)
		}
	}
}

func TestEnergyDebounce(t *testing.T) {
	t.Parallel()

	eng := hotword.NewEnergyEngine()
	s, err := eng.NewSession(hotword.Config{
		SampleRate:   16000,
		Sensitivity:  0.5,
		RefractoryMs: 1000,
	})
	if err != nil {
		t.Fatalf("NewSession: unexpected error: %v", err)
	}
	defer s.Close()

	if i := feedUntilDetected(t, s, loudFrame(), 100); i < 0 {
		t.Fatal("expected first detection")
	}

	// 1000 ms refractory = 50 frames of 20 ms. Continuous loud input inside
	// the window must not re-trigger.
	for i := 0; i < 50; i++ {
		det, err := s.ProcessFrame(loudFrame())
		if err != nil {
			t.Fatalf("ProcessFrame: unexpected error: %v", err)
		}
		if det.Detected {
			t.Fatalf("re-triggered inside refractory window at frame %d", i)
		}
	}

	// After the window elapses the detector re-arms.
	if i := feedUntilDetected(t, s, loudFrame(), 100); i < 0 {
		t.Fatal("expected detection after refractory window elapsed")
	}
}

func TestEnergyReset(t *testing.T) {
	t.Parallel()

	eng := hotword.NewEnergyEngine(hotword.WithActiveWindow(100))
	s, err := eng.NewSession(hotword.Config{SampleRate: 16000, RefractoryMs: 60_000})
	if err != nil {
		t.Fatalf("NewSession: unexpected error: %v", err)
	}
	defer s.Close()

	if i := feedUntilDetected(t, s, loudFrame(), 100); i < 0 {
		t.Fatal("expected detection")
	}

	// Reset clears the holdoff, so detection is immediately possible again.
	s.Reset()
	if i := feedUntilDetected(t, s, loudFrame(), 100); i < 0 {
		t.Fatal("expected detection after Reset cleared the refractory state")
	}
}

func TestEnergyConfigValidation(t *testing.T) {
	t.Parallel()

	eng := hotword.NewEnergyEngine()

	if _, err := eng.NewSession(hotword.Config{SampleRate: 0}); err == nil {
		t.Fatal("expected error for zero sample rate")
	}
	if _, err := eng.NewSession(hotword.Config{SampleRate: 16000, Sensitivity: 1.5}); err == nil {
		t.Fatal("expected error for out-of-range sensitivity")
	}
}

func TestFrameDurationDrivesWindow(t *testing.T) {
	t.Parallel()

	// With a 300 ms active window and 20 ms frames, detection needs 15 frames.
	eng := hotword.NewEnergyEngine(hotword.WithActiveWindow(300))
	s, err := eng.NewSession(hotword.Config{SampleRate: 16000})
	if err != nil {
		t.Fatalf("NewSession: unexpected error: %v", err)
	}
	defer s.Close()

	f := loudFrame()
	if f.Duration() != 20*time.Millisecond {
		t.Fatalf("fixture frame should be 20ms, got %v", f.Duration())
	}

	idx := feedUntilDetected(t, s, f, 100)
	if idx != 14 {
		t.Fatalf("expected detection on frame 14 (15th frame), got %d", idx)
	}
}
