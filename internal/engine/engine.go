// Package engine assembles the full voice pipeline behind one façade: the
// audio frame queue, the wake-word detector, streaming recognition, intent
// resolution, vocabulary injection and the dialogue state machine.
//
// An Engine is owned explicitly by its caller; there is no process-wide
// instance. All client-facing operations are asynchronous: they enqueue work
// and return, and their outcomes arrive on the event stream obtained from
// [Engine.Events].
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hushlabs/hearth/internal/dialogue"
	"github.com/hushlabs/hearth/internal/event"
	"github.com/hushlabs/hearth/internal/history"
	"github.com/hushlabs/hearth/internal/observe"
	"github.com/hushlabs/hearth/internal/vocab"
	"github.com/hushlabs/hearth/pkg/audio"
	"github.com/hushlabs/hearth/pkg/provider/asr"
	"github.com/hushlabs/hearth/pkg/provider/hotword"
	"github.com/hushlabs/hearth/pkg/provider/nlu"
)

// ErrEngineNotRunning is returned by operations that need a started engine.
var ErrEngineNotRunning = errors.New("engine: not running")

// ErrAlreadyRunning is returned by Start on a running engine.
var ErrAlreadyRunning = errors.New("engine: already running")

// ErrEngineStopped is returned by Start after Stop. Engines are single-use;
// create a new one to restart.
var ErrEngineStopped = errors.New("engine: stopped engines cannot be restarted")

const (
	defaultQueueCapacity = 256
	defaultSampleRate    = 16000
	defaultPartialPeriod = 250 * time.Millisecond
)

// IntentModel is the resolver-side contract the engine needs: resolution
// itself, entity validation for injection requests, and the intent inventory
// for dialogue-configuration defaults. *pattern.Resolver satisfies it.
type IntentModel interface {
	nlu.Resolver

	// HasEntity reports whether the entity type exists.
	HasEntity(entity string) bool

	// Intents lists every configured intent name.
	Intents() []string
}

// Option is a functional option for configuring an [Engine].
type Option func(*Engine)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.log = logger }
}

// WithSiteID names the audio site this engine instance serves. Default:
// "default".
func WithSiteID(siteID string) Option {
	return func(e *Engine) { e.siteID = siteID }
}

// WithQueueCapacity bounds the audio frame queue. Default: 256 frames.
func WithQueueCapacity(n int) Option {
	return func(e *Engine) { e.queueCapacity = n }
}

// WithBackpressure selects the frame-queue overflow policy. Default:
// drop-oldest.
func WithBackpressure(policy audio.BackpressurePolicy) Option {
	return func(e *Engine) { e.backpressure = policy }
}

// WithPartialPeriod sets the minimum interval between PartialTextCaptured
// events. Default: 250 ms.
func WithPartialPeriod(d time.Duration) Option {
	return func(e *Engine) { e.partialPeriod = d }
}

// WithHotwordConfig overrides the wake-word session configuration.
func WithHotwordConfig(cfg hotword.Config) Option {
	return func(e *Engine) { e.hotwordCfg = cfg }
}

// WithASRConfig overrides the recognition stream configuration.
func WithASRConfig(cfg asr.StreamConfig) Option {
	return func(e *Engine) { e.asrCfg = cfg }
}

// WithDialogueOptions forwards options to the dialogue manager.
func WithDialogueOptions(opts ...dialogue.Option) Option {
	return func(e *Engine) { e.dialogueOpts = opts }
}

// WithMetrics sets the metrics instruments. Defaults to
// observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithHistory enables session audit recording into the store.
func WithHistory(store history.Store) Option {
	return func(e *Engine) { e.histStore = store }
}

// Engine is the assembled voice pipeline. Create with [New], then Start;
// Stop releases all workers. All exported methods are safe for concurrent
// use.
type Engine struct {
	log    *slog.Logger
	siteID string

	queueCapacity int
	backpressure  audio.BackpressurePolicy
	partialPeriod time.Duration
	hotwordCfg    hotword.Config
	asrCfg        asr.StreamConfig
	dialogueOpts  []dialogue.Option

	hotword hotword.Engine
	asrProv asr.Provider
	model   IntentModel

	metrics   *observe.Metrics
	histStore history.Store

	bus      *event.Bus
	vocabMgr *vocab.Manager

	running atomic.Bool

	mu        sync.Mutex
	stopped   bool
	queue     *audio.FrameQueue
	hwSession hotword.SessionHandle
	listener  *listener
	dlg       *dialogue.Manager
	recorder  *history.Recorder
	injectCh  chan injectionRequest
	group     *errgroup.Group
}

// New wires an engine from its providers. The engine is idle until Start.
func New(hw hotword.Engine, asrProvider asr.Provider, model IntentModel, opts ...Option) *Engine {
	e := &Engine{
		log:    slog.Default(),
		siteID: "default",

		queueCapacity: defaultQueueCapacity,
		backpressure:  audio.BackpressureDropOldest,
		partialPeriod: defaultPartialPeriod,
		hotwordCfg:    hotword.Config{SampleRate: defaultSampleRate},
		asrCfg:        asr.StreamConfig{SampleRate: defaultSampleRate},

		hotword: hw,
		asrProv: asrProvider,
		model:   model,
	}
	for _, o := range opts {
		o(e)
	}
	if e.metrics == nil {
		e.metrics = observe.DefaultMetrics()
	}

	e.bus = event.NewBus()
	e.vocabMgr = vocab.NewManager(model)
	return e
}

// Start opens the wake-word session and launches the pipeline and injection
// workers. A stopped engine cannot be started again.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running.Load() {
		return ErrAlreadyRunning
	}
	if e.stopped {
		return ErrEngineStopped
	}

	hwSession, err := e.hotword.NewSession(e.hotwordCfg)
	if err != nil {
		return fmt.Errorf("engine: open hotword session: %w", err)
	}
	e.hwSession = hwSession

	e.queue = audio.NewFrameQueue(e.queueCapacity,
		audio.WithBackpressure(e.backpressure),
		audio.WithDropCallback(func(audio.Frame) {
			e.metrics.FrameDrops.Add(context.Background(), 1)
		}),
	)

	resolver := timedResolver{inner: e.model, metrics: e.metrics}
	e.dlg = dialogue.NewManager(resolver, e.vocabMgr, e.bus, e, e.model.Intents(), e.dialogueOpts...)
	go e.watchSessions(e.bus.Subscribe())

	if e.histStore != nil {
		e.recorder = history.NewRecorder(e.histStore, e.bus.Subscribe(), e.log)
	}

	e.injectCh = make(chan injectionRequest, 64)

	e.group = new(errgroup.Group)
	e.group.Go(e.runPipeline)
	e.group.Go(e.runInjections)

	e.running.Store(true)
	e.log.Info("engine started", "site_id", e.siteID)
	return nil
}

// Stop drains the pipeline and shuts every worker down. Live and queued
// sessions are aborted. Stop is idempotent; calling it on a never-started
// engine is a no-op.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running.Load() {
		e.mu.Unlock()
		return
	}
	e.running.Store(false)
	e.stopped = true

	// Stop input first, then the workers that consume it, then the
	// subscribers, in reverse construction order.
	e.queue.Close()
	close(e.injectCh)
	group, dlg, recorder := e.group, e.dlg, e.recorder
	e.mu.Unlock()

	if err := group.Wait(); err != nil {
		e.log.Error("pipeline worker failed", "err", err)
	}

	e.stopListener("")
	dlg.Stop()
	if recorder != nil {
		recorder.Stop()
	}
	e.bus.Close()

	e.mu.Lock()
	if e.hwSession != nil {
		if err := e.hwSession.Close(); err != nil {
			e.log.Warn("failed to close hotword session", "err", err)
		}
		e.hwSession = nil
	}
	e.mu.Unlock()

	e.log.Info("engine stopped", "site_id", e.siteID)
}

// Events returns a new subscription to the engine's event stream. The caller
// must Cancel it when done.
func (e *Engine) Events() *event.Subscription {
	return e.bus.Subscribe()
}

// Running reports whether the engine has been started and not yet stopped.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// AppendFrame feeds one audio frame into the pipeline.
func (e *Engine) AppendFrame(frame audio.Frame) error {
	if !e.running.Load() {
		return ErrEngineNotRunning
	}
	if err := e.queue.Append(frame); err != nil {
		if errors.Is(err, audio.ErrQueueClosed) {
			return ErrEngineNotRunning
		}
		return err
	}
	return nil
}

// ─── Dialogue operations ───

// StartSession requests a new action session. See [dialogue.Manager.StartSession].
func (e *Engine) StartSession(req dialogue.StartRequest) error {
	dlg, err := e.dialogueManager()
	if err != nil {
		return err
	}
	if req.SiteID == "" {
		req.SiteID = e.siteID
	}
	dlg.StartSession(req)
	return nil
}

// StartNotification requests a one-shot spoken notification.
func (e *Engine) StartNotification(req dialogue.NotificationRequest) error {
	dlg, err := e.dialogueManager()
	if err != nil {
		return err
	}
	if req.SiteID == "" {
		req.SiteID = e.siteID
	}
	dlg.StartNotification(req)
	return nil
}

// ContinueSession keeps a session alive for another recognition turn.
func (e *Engine) ContinueSession(sessionID, text string, filter []string) error {
	dlg, err := e.dialogueManager()
	if err != nil {
		return err
	}
	dlg.ContinueSession(sessionID, text, filter)
	return nil
}

// EndSession terminates the session nominally.
func (e *Engine) EndSession(sessionID string) error {
	dlg, err := e.dialogueManager()
	if err != nil {
		return err
	}
	dlg.EndSession(sessionID)
	return nil
}

// NotifySpeechEnded acknowledges a Say prompt.
func (e *Engine) NotifySpeechEnded(messageID, sessionID string) error {
	dlg, err := e.dialogueManager()
	if err != nil {
		return err
	}
	dlg.NotifySpeechEnded(messageID, sessionID)
	return nil
}

// ConfigureDialogue sets per-intent enablement for default filters.
func (e *Engine) ConfigureDialogue(intentEnabled map[string]bool) error {
	dlg, err := e.dialogueManager()
	if err != nil {
		return err
	}
	dlg.Configure(intentEnabled)
	return nil
}

func (e *Engine) dialogueManager() (*dialogue.Manager, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running.Load() || e.dlg == nil {
		return nil, ErrEngineNotRunning
	}
	return e.dlg, nil
}

// timedResolver wraps the intent model to measure resolution latency.
type timedResolver struct {
	inner   nlu.Resolver
	metrics *observe.Metrics
}

var _ nlu.Resolver = timedResolver{}

func (r timedResolver) Resolve(ctx context.Context, q nlu.Query) (*nlu.IntentMessage, error) {
	start := time.Now()
	msg, err := r.inner.Resolve(ctx, q)
	r.metrics.NLUDuration.Record(ctx, time.Since(start).Seconds())
	return msg, err
}

// watchSessions maintains the session gauges from the event stream. The loop
// exits when the bus closes the subscription.
func (e *Engine) watchSessions(sub *event.Subscription) {
	for ev := range sub.C() {
		switch ev.Type {
		case event.TypeSessionStarted:
			e.metrics.ActiveSessions.Add(context.Background(), 1)
		case event.TypeSessionEnded:
			e.metrics.ActiveSessions.Add(context.Background(), -1)
			e.metrics.RecordTermination(context.Background(), string(ev.Ended.Kind))
		}
	}
}

// ─── Injection operations ───

type injectionRequest struct {
	id    string
	reset bool
	ops   []vocab.Operation
}

// RequestInjection queues vocabulary additions. The returned request id
// correlates with the InjectionComplete event; validation failures surface as
// Error events.
func (e *Engine) RequestInjection(ops []vocab.Operation) (string, error) {
	if len(ops) == 0 {
		return "", errors.New("engine: injection request has no operations")
	}
	req := injectionRequest{id: uuid.NewString(), ops: ops}
	if err := e.submitInjection(req); err != nil {
		return "", err
	}
	return req.id, nil
}

// RequestInjectionReset queues restoration of the pre-injection vocabulary.
// Completion surfaces as an InjectionResetComplete event.
func (e *Engine) RequestInjectionReset() (string, error) {
	req := injectionRequest{id: uuid.NewString(), reset: true}
	if err := e.submitInjection(req); err != nil {
		return "", err
	}
	return req.id, nil
}

// submitInjection enqueues the request while holding the lock, so the send
// cannot race the channel close in Stop.
func (e *Engine) submitInjection(req injectionRequest) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running.Load() || e.injectCh == nil {
		return ErrEngineNotRunning
	}
	e.injectCh <- req
	return nil
}

// runInjections serializes injection requests in arrival order.
func (e *Engine) runInjections() error {
	for req := range e.injectCh {
		if req.reset {
			snap := e.vocabMgr.Reset()
			e.bus.Publish(event.Event{
				Type:      event.TypeInjectionResetComplete,
				SiteID:    e.siteID,
				Time:      time.Now(),
				Injection: &event.Injection{RequestID: req.id, Version: snap.Version()},
			})
			e.metrics.RecordInjection(context.Background(), "reset")
			continue
		}

		snap, err := e.vocabMgr.Apply(req.ops)
		if err != nil {
			e.log.Warn("injection request rejected", "request_id", req.id, "err", err)
			e.bus.Publish(event.Event{
				Type:   event.TypeError,
				SiteID: e.siteID,
				Time:   time.Now(),
				Error:  &event.Error{Message: fmt.Sprintf("injection %s: %v", req.id, err)},
			})
			continue
		}
		for _, op := range req.ops {
			e.metrics.RecordInjection(context.Background(), string(op.Kind))
		}
		e.bus.Publish(event.Event{
			Type:      event.TypeInjectionComplete,
			SiteID:    e.siteID,
			Time:      time.Now(),
			Injection: &event.Injection{RequestID: req.id, Version: snap.Version()},
		})
	}
	return nil
}
