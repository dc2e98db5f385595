package hotword

import (
	"errors"
	"math"
	"sync"

	"github.com/hushlabs/hearth/pkg/audio"
)

// Compile-time assertion that EnergyEngine satisfies the Engine interface.
var _ Engine = (*EnergyEngine)(nil)

const (
	// defaultActiveMs is how long the signal must stay above the energy gate
	// before the detector accepts it as a wake utterance.
	defaultActiveMs = 300

	// defaultRefractoryMs is the default debounce window after a detection.
	defaultRefractoryMs = 1500

	// baseRMSGate is the RMS amplitude (of full-scale int16) treated as the
	// speech/silence boundary at sensitivity 0.5.
	baseRMSGate = 900.0
)

// EnergyEngine is a model-free wake detector that triggers on a sustained
// burst of signal energy. It exists so the engine runs end-to-end offline
// without an acoustic model; real deployments plug in a trained backend
// behind the same [Engine] interface.
type EnergyEngine struct {
	activeMs int
}

// EnergyOption is a functional option for configuring an EnergyEngine.
type EnergyOption func(*EnergyEngine)

// WithActiveWindow sets how many milliseconds of continuous energy are
// required before a detection fires. Default is 300 ms.
func WithActiveWindow(ms int) EnergyOption {
	return func(e *EnergyEngine) { e.activeMs = ms }
}

// NewEnergyEngine returns an [EnergyEngine] with defaults applied.
func NewEnergyEngine(opts ...EnergyOption) *EnergyEngine {
	e := &EnergyEngine{activeMs: defaultActiveMs}
	for _, o := range opts {
		o(e)
	}
	return e
}

// NewSession implements [Engine.NewSession].
func (e *EnergyEngine) NewSession(cfg Config) (SessionHandle, error) {
	if cfg.SampleRate <= 0 {
		return nil, errors.New("hotword: sample rate must be positive")
	}
	if cfg.Sensitivity < 0 || cfg.Sensitivity > 1 {
		return nil, errors.New("hotword: sensitivity must be in [0, 1]")
	}
	sens := cfg.Sensitivity
	if sens == 0 {
		sens = 0.5
	}
	refractory := cfg.RefractoryMs
	if refractory <= 0 {
		refractory = defaultRefractoryMs
	}

	// Sensitivity scales the gate: 1.0 halves it, 0.0 doubles it.
	gate := baseRMSGate * (1.5 - sens)

	return &energySession{
		gate:         gate,
		activeMs:     e.activeMs,
		refractoryMs: refractory,
	}, nil
}

// energySession holds per-stream detection state. Safe for use by a single
// pipeline goroutine; the mutex only guards Reset racing ProcessFrame.
type energySession struct {
	mu           sync.Mutex
	gate         float64
	activeMs     int
	refractoryMs int

	accumulatedMs int
	holdoffMs     int
	closed        bool
}

var _ SessionHandle = (*energySession)(nil)

// ProcessFrame implements [SessionHandle.ProcessFrame].
func (s *energySession) ProcessFrame(frame audio.Frame) (Detection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Detection{}, errors.New("hotword: session is closed")
	}

	frameMs := int(frame.Duration().Milliseconds())
	if frameMs <= 0 {
		frameMs = 1
	}

	if s.holdoffMs > 0 {
		s.holdoffMs -= frameMs
		return Detection{}, nil
	}

	rms := frameRMS(frame.Samples)
	if rms < s.gate {
		s.accumulatedMs = 0
		return Detection{}, nil
	}

	s.accumulatedMs += frameMs
	if s.accumulatedMs < s.activeMs {
		return Detection{}, nil
	}

	// Qualifying window complete: fire once and hold off re-triggering for
	// the remainder of the utterance.
	s.accumulatedMs = 0
	s.holdoffMs = s.refractoryMs

	conf := rms / (2 * s.gate)
	if conf > 1 {
		conf = 1
	}
	return Detection{Detected: true, Keyword: "hearth", Confidence: conf}, nil
}

// Reset implements [SessionHandle.Reset].
func (s *energySession) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accumulatedMs = 0
	s.holdoffMs = 0
}

// Close implements [SessionHandle.Close].
func (s *energySession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// frameRMS computes the root-mean-square amplitude of the samples.
func frameRMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, v := range samples {
		f := float64(v)
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(samples)))
}
