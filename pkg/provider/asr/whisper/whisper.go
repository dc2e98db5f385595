// Package whisper implements asr.Provider on top of the whisper.cpp CGO
// bindings. The whisper.cpp static library (libwhisper.a) and headers
// (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH environment variables.
//
// The model is loaded once at construction and shared across sessions; each
// session creates its own whisper context for inference, so utterances can be
// recognised concurrently.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/hushlabs/hearth/pkg/audio"
	"github.com/hushlabs/hearth/pkg/provider/asr"
)

const (
	defaultLanguage       = "en"
	defaultSilenceMs      = 700
	defaultMaxUtteranceMs = 10_000

	// rmsSpeechGate is the RMS amplitude (full-scale int16) above which a
	// frame counts as speech for endpointing.
	rmsSpeechGate = 500.0
)

// Compile-time assertion that Provider satisfies asr.Provider.
var _ asr.Provider = (*Provider)(nil)

// Provider is a whisper.cpp-backed [asr.Provider].
type Provider struct {
	model     whisperlib.Model
	language  string
	silenceMs int
}

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithLanguage sets the BCP-47 language code for transcription (e.g., "en",
// "de"). Defaults to "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// WithSilenceThresholdMs sets the consecutive-silence duration that ends the
// utterance and triggers inference. Defaults to 700 ms.
func WithSilenceThresholdMs(ms int) Option {
	return func(p *Provider) { p.silenceMs = ms }
}

// New loads the whisper.cpp model from modelPath. The caller must call Close
// when the provider is no longer needed.
func New(modelPath string, opts ...Option) (*Provider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	p := &Provider{
		model:     model,
		language:  defaultLanguage,
		silenceMs: defaultSilenceMs,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the whisper model.
func (p *Provider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// StartStream implements [asr.Provider.StartStream].
func (p *Provider) StartStream(ctx context.Context, cfg asr.StreamConfig) (asr.SessionHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: context already cancelled: %w", err)
	}

	lang := cfg.Language
	if lang == "" {
		lang = p.language
	}
	maxMs := cfg.MaxUtteranceMs
	if maxMs <= 0 {
		maxMs = defaultMaxUtteranceMs
	}

	s := &session{
		model:     p.model,
		language:  lang,
		silenceMs: p.silenceMs,
		maxMs:     maxMs,

		frames:   make(chan audio.Frame, 256),
		partials: make(chan asr.Transcript, 16),
		finals:   make(chan asr.Transcript, 1),
		done:     make(chan struct{}),
	}

	s.wg.Add(1)
	go s.processLoop(ctx)

	return s, nil
}

// session is a live single-utterance recognition session. All endpointing
// state is confined to the processLoop goroutine.
type session struct {
	model     whisperlib.Model
	language  string
	silenceMs int
	maxMs     int

	frames   chan audio.Frame
	partials chan asr.Transcript
	finals   chan asr.Transcript

	finalised sync.Once
	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

var _ asr.SessionHandle = (*session)(nil)

// SendFrame implements [asr.SessionHandle.SendFrame].
func (s *session) SendFrame(frame audio.Frame) error {
	select {
	case <-s.done:
		return asr.ErrFinalised
	default:
	}
	select {
	case s.frames <- frame:
		return nil
	case <-s.done:
		return asr.ErrFinalised
	}
}

// Partials implements [asr.SessionHandle.Partials].
func (s *session) Partials() <-chan asr.Transcript { return s.partials }

// Finals implements [asr.SessionHandle.Finals].
func (s *session) Finals() <-chan asr.Transcript { return s.finals }

// Close implements [asr.SessionHandle.Close].
func (s *session) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
	return nil
}

// processLoop buffers speech frames, detects end of speech by consecutive
// silence, and runs inference once per utterance.
func (s *session) processLoop(ctx context.Context) {
	defer s.wg.Done()

	var (
		buffer     []float32
		hadSpeech  bool
		silence    time.Duration
		buffered   time.Duration
		silenceDur = time.Duration(s.silenceMs) * time.Millisecond
		maxDur     = time.Duration(s.maxMs) * time.Millisecond
	)

	finalise := func() {
		s.finalised.Do(func() {
			text := ""
			if hadSpeech && len(buffer) > 0 {
				var err error
				text, err = s.infer(buffer)
				if err != nil {
					slog.Error("whisper inference failed", "err", err)
					text = ""
				}
			}
			s.finals <- asr.Transcript{Text: text, IsFinal: true, Duration: buffered}
			close(s.finals)
			close(s.partials)
		})
	}

	for {
		select {
		case <-ctx.Done():
			finalise()
			return

		case <-s.done:
			finalise()
			return

		case frame := <-s.frames:
			buffered += frame.Duration()
			rms := frameRMS(frame.Samples)

			if rms < rmsSpeechGate {
				if !hadSpeech {
					continue
				}
				silence += frame.Duration()
				buffer = appendFloat32(buffer, frame.Samples)
				if silence >= silenceDur {
					finalise()
					return
				}
				continue
			}

			hadSpeech = true
			silence = 0
			buffer = appendFloat32(buffer, frame.Samples)
			if buffered >= maxDur {
				finalise()
				return
			}
		}
	}
}

// infer runs whisper.cpp on the buffered samples using a fresh context.
// Contexts are not thread-safe but the model may be shared.
func (s *session) infer(samples []float32) (string, error) {
	wctx, err := s.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(s.language); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", s.language, "err", err)
	}
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.ToLower(strings.Join(parts, " ")), nil
}

// appendFloat32 converts 16-bit samples to normalised float32 and appends
// them to dst.
func appendFloat32(dst []float32, samples []int16) []float32 {
	const scale = 1.0 / 32768.0
	for _, v := range samples {
		dst = append(dst, float32(v)*scale)
	}
	return dst
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
