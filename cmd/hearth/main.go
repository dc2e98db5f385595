// Command hearth runs the offline voice engine: wake-word detection,
// streaming recognition, intent resolution and dialogue management over a
// single audio site, with a websocket control surface.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"
	"go.opentelemetry.io/otel"

	"github.com/hushlabs/hearth/internal/config"
	"github.com/hushlabs/hearth/internal/dialogue"
	"github.com/hushlabs/hearth/internal/engine"
	"github.com/hushlabs/hearth/internal/event"
	"github.com/hushlabs/hearth/internal/health"
	"github.com/hushlabs/hearth/internal/history"
	"github.com/hushlabs/hearth/internal/observe"
	"github.com/hushlabs/hearth/internal/remote"
	"github.com/hushlabs/hearth/pkg/audio"
	"github.com/hushlabs/hearth/pkg/audio/capture"
	"github.com/hushlabs/hearth/pkg/provider/asr"
	asrmock "github.com/hushlabs/hearth/pkg/provider/asr/mock"
	"github.com/hushlabs/hearth/pkg/provider/asr/whisper"
	"github.com/hushlabs/hearth/pkg/provider/hotword"
	"github.com/hushlabs/hearth/pkg/provider/nlu/pattern"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.StringP("config", "c", "config.yaml", "path to the YAML configuration file")
	wavPath := flag.StringP("wav", "w", "", "feed audio from a WAV file instead of the microphone")
	useMic := flag.BoolP("mic", "m", false, "capture audio from the default microphone")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "hearth: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "hearth: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("hearth starting",
		"config", *configPath,
		"site_id", cfg.SiteID,
		"listen_addr", cfg.Server.ListenAddr,
		"asr_backend", cfg.ASR.Backend,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	obsShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "hearth"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := obsShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		slog.Error("failed to create metrics", "err", err)
		return 1
	}

	// ── Providers ─────────────────────────────────────────────────────────────
	model := buildResolver(cfg)

	asrProv, asrClose, err := buildASR(cfg)
	if err != nil {
		slog.Error("failed to build ASR provider", "err", err)
		return 1
	}
	defer asrClose()

	histStore, err := buildHistory(ctx, cfg)
	if err != nil {
		slog.Error("failed to open history store", "err", err)
		return 1
	}
	if pg, ok := histStore.(*history.PostgresStore); ok {
		defer pg.Close()
	}

	// ── Engine ────────────────────────────────────────────────────────────────
	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithSiteID(cfg.SiteID),
		engine.WithQueueCapacity(cfg.Audio.QueueCapacity),
		engine.WithBackpressure(backpressurePolicy(cfg.Audio.Backpressure)),
		engine.WithPartialPeriod(time.Duration(cfg.ASR.PartialPeriodMs) * time.Millisecond),
		engine.WithHotwordConfig(hotword.Config{
			SampleRate:   cfg.Audio.SampleRate,
			Sensitivity:  cfg.Hotword.Sensitivity,
			RefractoryMs: cfg.Hotword.RefractoryMs,
		}),
		engine.WithASRConfig(asr.StreamConfig{
			SampleRate:     cfg.Audio.SampleRate,
			Language:       cfg.ASR.Language,
			MaxUtteranceMs: cfg.ASR.MaxUtteranceMs,
		}),
		engine.WithDialogueOptions(
			dialogue.WithSayTimeout(time.Duration(cfg.Dialogue.SayTimeoutMs)*time.Millisecond),
			dialogue.WithClientTimeout(time.Duration(cfg.Dialogue.ClientTimeoutMs)*time.Millisecond),
			dialogue.WithLogger(logger),
		),
		engine.WithMetrics(metrics),
	}
	if histStore != nil {
		opts = append(opts, engine.WithHistory(histStore))
	}

	eng := engine.New(hotword.NewEnergyEngine(), asrProv, model, opts...)
	if err := eng.Start(); err != nil {
		slog.Error("failed to start engine", "err", err)
		return 1
	}
	defer eng.Stop()

	// ── Event log ─────────────────────────────────────────────────────────────
	sub := eng.Events()
	defer sub.Cancel()
	go logEvents(sub)

	// ── HTTP server ───────────────────────────────────────────────────────────
	var srv *http.Server
	if cfg.Server.ListenAddr != "" {
		mux := http.NewServeMux()
		probes := []health.Probe{health.EngineRunning(eng.Running)}
		if pg, ok := histStore.(*history.PostgresStore); ok {
			probes = append(probes, health.Probe{Name: "history", Run: pg.Ping})
		}
		health.New(probes...).Register(mux)
		mux.Handle("GET /metrics", promhttp.Handler())
		mux.Handle("/ws", remote.NewServer(eng, logger))

		srv = &http.Server{Addr: cfg.Server.ListenAddr, Handler: mux}
		go func() {
			slog.Info("http server listening", "addr", cfg.Server.ListenAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("http server error", "err", err)
			}
		}()
	}

	// ── Audio source ──────────────────────────────────────────────────────────
	switch {
	case *wavPath != "":
		go func() {
			if err := feedWAV(ctx, eng, *wavPath, cfg.Audio.FrameSize, cfg.Audio.SampleRate); err != nil {
				slog.Error("wav playback error", "path", *wavPath, "err", err)
			}
		}()
	case *useMic:
		mic, err := capture.NewMicrophone(cfg.Audio.SampleRate, cfg.Audio.FrameSize)
		if err != nil {
			slog.Error("failed to open microphone", "err", err)
			return 1
		}
		defer func() {
			if err := mic.Terminate(); err != nil {
				slog.Warn("microphone terminate error", "err", err)
			}
		}()
		go func() {
			if err := mic.Run(ctx, eng.AppendFrame); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("microphone capture error", "err", err)
			}
		}()
	default:
		slog.Info("no audio source selected; engine accepts sessions over the websocket only")
	}

	slog.Info("hearth ready — press Ctrl+C to shut down")
	<-ctx.Done()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("http shutdown error", "err", err)
		}
	}
	slog.Info("goodbye")
	return 0
}

// ── Component wiring ──────────────────────────────────────────────────────────

// buildResolver turns the configured intents and gazetteers into the pattern
// resolver the engine resolves against.
func buildResolver(cfg *config.Config) *pattern.Resolver {
	intents := make([]pattern.IntentSpec, 0, len(cfg.NLU.Intents))
	for _, ic := range cfg.NLU.Intents {
		spec := pattern.IntentSpec{Name: ic.Name, Keywords: ic.Keywords}
		for _, sc := range ic.Slots {
			spec.Slots = append(spec.Slots, pattern.SlotSpec{Name: sc.Name, Entity: sc.Entity})
		}
		intents = append(intents, spec)
	}
	return pattern.New(intents, cfg.NLU.Entities,
		pattern.WithMaxIntentAlternatives(cfg.NLU.MaxIntentAlternatives),
		pattern.WithMaxSlotAlternatives(cfg.NLU.MaxSlotAlternatives),
	)
}

func buildASR(cfg *config.Config) (asr.Provider, func(), error) {
	switch cfg.ASR.Backend {
	case config.ASRWhisper:
		p, err := whisper.New(cfg.ASR.ModelPath, whisper.WithLanguage(cfg.ASR.Language))
		if err != nil {
			return nil, nil, err
		}
		return p, func() {
			if err := p.Close(); err != nil {
				slog.Warn("whisper close error", "err", err)
			}
		}, nil
	case config.ASRMock:
		return &asrmock.Provider{}, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported asr backend %q", cfg.ASR.Backend)
	}
}

func buildHistory(ctx context.Context, cfg *config.Config) (history.Store, error) {
	switch cfg.History.Backend {
	case config.HistoryMemory:
		return history.NewMemStore(0), nil
	case config.HistoryPostgres:
		return history.NewPostgresStore(ctx, cfg.History.PostgresDSN)
	default:
		return nil, nil
	}
}

func backpressurePolicy(p config.BackpressurePolicy) audio.BackpressurePolicy {
	if p == config.BackpressureBlock {
		return audio.BackpressureBlock
	}
	return audio.BackpressureDropOldest
}

// ── Audio feeding ─────────────────────────────────────────────────────────────

// feedWAV streams a WAV file into the engine at real-time pace, so
// endpointing and partial coalescing behave as they would with a microphone.
func feedWAV(ctx context.Context, eng *engine.Engine, path string, frameSize, sampleRate int) error {
	frames, err := audio.ReadWAVFile(path, frameSize)
	if err != nil {
		return err
	}

	pace := time.Duration(frameSize) * time.Second / time.Duration(sampleRate)
	ticker := time.NewTicker(pace)
	defer ticker.Stop()

	for _, frame := range frames {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if err := eng.AppendFrame(frame); err != nil {
			return err
		}
	}
	slog.Info("wav playback finished", "path", path, "frames", len(frames))
	return nil
}

// ── Event log ─────────────────────────────────────────────────────────────────

// logEvents mirrors the engine's event stream into the structured log until
// the subscription closes.
func logEvents(sub *event.Subscription) {
	for ev := range sub.C() {
		attrs := []any{"site_id", ev.SiteID}
		if ev.SessionID != "" {
			attrs = append(attrs, "session_id", ev.SessionID)
		}
		switch ev.Type {
		case event.TypeTextCaptured, event.TypePartialTextCaptured:
			attrs = append(attrs, "text", ev.Text.Text)
		case event.TypeIntentDetected:
			attrs = append(attrs, "intent", ev.Intent.Intent.Name, "confidence", ev.Intent.Intent.Confidence)
		case event.TypeSessionEnded:
			attrs = append(attrs, "reason", ev.Ended.Kind)
		case event.TypeSay:
			attrs = append(attrs, "message_id", ev.Say.MessageID, "text", ev.Say.Text)
		case event.TypeError:
			attrs = append(attrs, "message", ev.Error.Message)
		}
		slog.Info(string(ev.Type), attrs...)
	}
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
