package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hushlabs/hearth/internal/event"
	"github.com/hushlabs/hearth/internal/vocab"
	"github.com/hushlabs/hearth/pkg/provider/asr"
	"github.com/hushlabs/hearth/pkg/provider/nlu"
)

const (
	defaultSayTimeout    = 5 * time.Second
	defaultClientTimeout = 15 * time.Second
)

// Pipeline is the manager's handle on the audio side: it tells the
// recognition pipeline when to capture audio for a session. Both methods must
// return quickly; recognition results flow back through HandlePartial,
// HandleFinal and HandleFault.
type Pipeline interface {
	// StartListening begins streaming recognition for the session.
	StartListening(sessionID string) error

	// StopListening aborts any capture in progress for the session. Calling
	// it when the session is not listening is a no-op.
	StopListening(sessionID string)
}

// Option is a functional option for configuring a [Manager].
type Option func(*Manager)

// WithSayTimeout bounds how long the manager waits for NotifySpeechEnded
// after a Say prompt. Default: 5s.
func WithSayTimeout(d time.Duration) Option {
	return func(m *Manager) { m.sayTimeout = d }
}

// WithClientTimeout bounds how long a session may sit in WaitingForClient
// before it is terminated nominally. Default: 15s.
func WithClientTimeout(d time.Duration) Option {
	return func(m *Manager) { m.clientTimeout = d }
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.log = logger }
}

// Manager is the dialogue session state machine. All public methods are
// asynchronous: they post to the actor mailbox and return immediately;
// outcomes are observed through the event bus.
type Manager struct {
	resolver nlu.Resolver
	vocab    *vocab.Manager
	bus      *event.Bus
	pipeline Pipeline
	log      *slog.Logger

	sayTimeout    time.Duration
	clientTimeout time.Duration

	// intents lists every configured intent name; Configure derives default
	// filters from it.
	intents []string

	// Actor-private state below; only the run goroutine touches it.
	active   *session
	queued   []*session
	disabled map[string]bool

	mbox *mailbox
	done chan struct{}
}

// NewManager builds and starts the state machine. intents must list every
// intent the resolver knows, so per-intent dialogue configuration can derive
// default filters. Stop must be called to release the actor goroutine.
func NewManager(resolver nlu.Resolver, vocabMgr *vocab.Manager, bus *event.Bus, pipeline Pipeline, intents []string, opts ...Option) *Manager {
	m := &Manager{
		resolver: resolver,
		vocab:    vocabMgr,
		bus:      bus,
		pipeline: pipeline,
		log:      slog.Default(),

		sayTimeout:    defaultSayTimeout,
		clientTimeout: defaultClientTimeout,

		intents:  intents,
		disabled: make(map[string]bool),

		mbox: newMailbox(),
		done: make(chan struct{}),
	}
	for _, o := range opts {
		o(m)
	}
	go m.run()
	return m
}

// Stop terminates every live and queued session with kind abortedByUser and
// shuts the actor down. It blocks until the actor has exited. Stop is
// idempotent.
func (m *Manager) Stop() {
	m.mbox.post(func() {
		for _, s := range m.queued {
			s.state = StateEnded
			m.publishEnded(s, event.TerminationAbortedByUser, "")
		}
		m.queued = nil
		if m.active != nil {
			m.terminate(m.active, event.TerminationAbortedByUser, "")
		}
		m.mbox.close()
	})
	<-m.done
}

// ─── Client-facing operations ───

// StartSession requests a new action session. When the site is busy the
// request is queued if CanBeEnqueued is set and silently dropped otherwise.
func (m *Manager) StartSession(req StartRequest) {
	m.mbox.post(func() {
		s := &session{
			id:                      uuid.NewString(),
			siteID:                  req.SiteID,
			customData:              req.CustomData,
			kind:                    KindAction,
			filter:                  req.Filter,
			canBeEnqueued:           req.CanBeEnqueued,
			sendIntentNotRecognized: req.SendIntentNotRecognized,
			pendingText:             req.Text,
			createdAt:               time.Now(),
		}
		m.admit(s)
	})
}

// StartNotification requests a one-shot spoken notification. Notifications
// always queue when the site is busy.
func (m *Manager) StartNotification(req NotificationRequest) {
	m.mbox.post(func() {
		s := &session{
			id:            uuid.NewString(),
			siteID:        req.SiteID,
			customData:    req.CustomData,
			kind:          KindNotification,
			canBeEnqueued: true,
			pendingText:   req.Text,
			createdAt:     time.Now(),
		}
		m.admit(s)
	})
}

// ContinueSession keeps a session in WaitingForClient alive for another
// recognition turn. text, when non-empty, is spoken first (Say handshake)
// before listening resumes. filter replaces the session's intent filter for
// the new turn. Unknown or already-ended session ids are ignored.
func (m *Manager) ContinueSession(sessionID, text string, filter []string) {
	m.mbox.post(func() {
		s := m.active
		if s == nil || s.id != sessionID || s.state != StateWaitingForClient {
			m.log.Debug("ignoring continueSession for inactive session", "session_id", sessionID)
			return
		}
		s.filter = filter
		if text != "" {
			m.speak(s, text)
			return
		}
		m.beginListening(s)
	})
}

// EndSession terminates the session nominally. Unknown or already-ended ids
// are ignored; an EndSession racing an in-flight resolution is honoured once
// the resolution completes.
func (m *Manager) EndSession(sessionID string) {
	m.mbox.post(func() {
		if s := m.dequeue(sessionID); s != nil {
			s.state = StateEnded
			m.publishEnded(s, event.TerminationNominal, "")
			return
		}
		s := m.active
		if s == nil || s.id != sessionID {
			m.log.Debug("ignoring endSession for inactive session", "session_id", sessionID)
			return
		}
		if s.state == StateResolving {
			s.endRequested = true
			return
		}
		m.terminate(s, event.TerminationNominal, "")
	})
}

// NotifySpeechEnded acknowledges a Say prompt. The message id must match the
// outstanding prompt; mismatches are ignored.
func (m *Manager) NotifySpeechEnded(messageID, sessionID string) {
	m.mbox.post(func() {
		s := m.active
		if s == nil || s.id != sessionID || s.state != StateSpeaking || s.sayMessageID != messageID {
			m.log.Debug("ignoring notifySpeechEnded", "session_id", sessionID, "message_id", messageID)
			return
		}
		s.sayMessageID = ""
		if s.kind == KindNotification {
			m.terminate(s, event.TerminationNominal, "")
			return
		}
		m.beginListening(s)
	})
}

// Configure sets per-intent enablement. Disabled intents are excluded from
// the default filter applied to sessions that start with a nil filter;
// explicit filters are not affected.
func (m *Manager) Configure(intentEnabled map[string]bool) {
	m.mbox.post(func() {
		for name, enabled := range intentEnabled {
			if enabled {
				delete(m.disabled, name)
			} else {
				m.disabled[name] = true
			}
		}
	})
}

// ─── Pipeline-facing operations ───

// HandleHotword reacts to a wake-word detection: it publishes the event and
// opens a default session for the site. Detections racing an already-active
// session are ignored; the hotword is only armed while the site is idle.
func (m *Manager) HandleHotword(siteID, keyword string, confidence float64) {
	m.mbox.post(func() {
		if m.active != nil {
			return
		}
		m.publish(event.Event{
			Type:    event.TypeHotwordDetected,
			SiteID:  siteID,
			Hotword: &event.Hotword{Keyword: keyword, Confidence: confidence},
		})
		m.admit(&session{
			id:        uuid.NewString(),
			siteID:    siteID,
			kind:      KindAction,
			createdAt: time.Now(),
		})
	})
}

// HandlePartial surfaces an interim transcript for a listening session.
func (m *Manager) HandlePartial(sessionID string, t asr.Transcript) {
	m.mbox.post(func() {
		s := m.active
		if s == nil || s.id != sessionID || s.state != StateListening {
			return
		}
		m.publishSession(s, event.Event{
			Type: event.TypePartialTextCaptured,
			Text: &event.TextCaptured{Text: t.Text, Confidence: t.Confidence, Duration: t.Duration},
		})
	})
}

// HandleFinal delivers the terminal transcript of a listening turn and moves
// the session into resolution.
func (m *Manager) HandleFinal(sessionID string, t asr.Transcript) {
	m.mbox.post(func() {
		s := m.active
		if s == nil || s.id != sessionID || s.state != StateListening {
			return
		}
		m.setListening(s, false)
		m.publishSession(s, event.Event{
			Type: event.TypeTextCaptured,
			Text: &event.TextCaptured{Text: t.Text, Confidence: t.Confidence, Duration: t.Duration},
		})
		m.beginResolving(s, t.Text)
	})
}

// HandleFault converts a pipeline failure into an error termination for the
// session, or a standalone Error event when the session is gone.
func (m *Manager) HandleFault(sessionID string, err error) {
	m.mbox.post(func() {
		s := m.active
		if s == nil || (sessionID != "" && s.id != sessionID) {
			m.publish(event.Event{
				Type:  event.TypeError,
				Error: &event.Error{Message: err.Error()},
			})
			return
		}
		m.terminate(s, event.TerminationError, err.Error())
	})
}

// ─── State machine internals (actor goroutine only) ───

func (m *Manager) run() {
	defer close(m.done)
	for {
		cmd, ok := m.mbox.next()
		if !ok {
			return
		}
		cmd()
	}
}

// admit activates the session if the site is free, queues it if allowed, and
// drops it silently otherwise.
func (m *Manager) admit(s *session) {
	if m.active != nil {
		if !s.canBeEnqueued {
			m.log.Debug("dropping session start, site busy", "site_id", s.siteID)
			return
		}
		s.state = StateQueued
		m.queued = append(m.queued, s)
		m.publishSession(s, event.Event{Type: event.TypeSessionQueued})
		return
	}
	m.activate(s)
}

// activate runs the Starting phase for a session that now owns the site.
func (m *Manager) activate(s *session) {
	m.active = s
	s.state = StateStarting
	m.publishSession(s, event.Event{Type: event.TypeSessionStarted})

	if s.kind == KindNotification {
		m.speak(s, s.pendingText)
		return
	}
	if s.pendingText != "" {
		text := s.pendingText
		s.pendingText = ""
		m.beginResolving(s, text)
		return
	}
	m.beginListening(s)
}

// speak emits a Say prompt and waits for its acknowledgement. The handshake
// handler then resumes listening for action sessions or completes the
// notification.
func (m *Manager) speak(s *session, text string) {
	s.state = StateSpeaking
	s.sayMessageID = uuid.NewString()
	m.publishSession(s, event.Event{
		Type: event.TypeSay,
		Say:  &event.Say{MessageID: s.sayMessageID, Text: text},
	})

	id, msgID := s.id, s.sayMessageID
	time.AfterFunc(m.sayTimeout, func() {
		m.mbox.post(func() {
			s := m.active
			if s == nil || s.id != id || s.state != StateSpeaking || s.sayMessageID != msgID {
				return
			}
			m.log.Debug("speech acknowledgement timed out", "session_id", id)
			m.terminate(s, event.TerminationNominal, "")
		})
	})
}

// beginListening starts a recognition turn over audio.
func (m *Manager) beginListening(s *session) {
	s.state = StateListening
	s.turn++
	m.setListening(s, true)
	if err := m.pipeline.StartListening(s.id); err != nil {
		m.terminate(s, event.TerminationError, fmt.Sprintf("start listening: %v", err))
	}
}

// beginResolving captures the committed vocabulary snapshot and resolves the
// text off the actor goroutine. The result re-enters through the mailbox,
// guarded by the turn counter.
func (m *Manager) beginResolving(s *session, text string) {
	s.state = StateResolving
	s.turn++

	query := nlu.Query{
		Text:       text,
		Filter:     m.effectiveFilter(s),
		Vocabulary: m.vocab.Current(),
	}
	id, turn := s.id, s.turn

	go func() {
		msg, err := m.resolver.Resolve(context.Background(), query)
		m.mbox.post(func() {
			s := m.active
			if s == nil || s.id != id || s.turn != turn || s.state != StateResolving {
				return
			}
			m.finishResolving(s, text, msg, err)
		})
	}()
}

// finishResolving applies a resolution outcome, honouring a deferred
// EndSession first.
func (m *Manager) finishResolving(s *session, input string, msg *nlu.IntentMessage, err error) {
	if s.endRequested {
		m.terminate(s, event.TerminationNominal, "")
		return
	}

	switch {
	case err == nil:
		msg.SessionID = s.id
		s.state = StateWaitingForClient
		m.publishSession(s, event.Event{Type: event.TypeIntentDetected, Intent: msg})
		m.armClientTimeout(s)

	case errors.Is(err, nlu.ErrNotRecognized):
		if !s.sendIntentNotRecognized {
			m.terminate(s, event.TerminationIntentNotRecognized, "")
			return
		}
		s.state = StateWaitingForClient
		m.publishSession(s, event.Event{
			Type:          event.TypeIntentNotRecognized,
			NotRecognized: &event.NotRecognized{Input: input},
		})
		m.armClientTimeout(s)

	default:
		m.terminate(s, event.TerminationError, err.Error())
	}
}

// armClientTimeout schedules the WaitingForClient deadline for the current
// turn.
func (m *Manager) armClientTimeout(s *session) {
	id, turn := s.id, s.turn
	time.AfterFunc(m.clientTimeout, func() {
		m.mbox.post(func() {
			s := m.active
			if s == nil || s.id != id || s.turn != turn || s.state != StateWaitingForClient {
				return
			}
			m.log.Debug("client did not continue or end the session", "session_id", id)
			m.terminate(s, event.TerminationNominal, "")
		})
	})
}

// terminate drives the session to Ended, emits its single SessionEnded event
// and promotes the next queued request.
func (m *Manager) terminate(s *session, kind event.TerminationKind, reason string) {
	if s.state == StateEnded {
		return
	}
	if s.state == StateListening {
		m.pipeline.StopListening(s.id)
	}
	m.setListening(s, false)
	s.state = StateEnded
	m.publishEnded(s, kind, reason)

	if m.active == s {
		m.active = nil
		if len(m.queued) > 0 {
			next := m.queued[0]
			m.queued = m.queued[1:]
			m.activate(next)
		}
	}
}

// dequeue removes and returns the queued session with the given id, nil when
// absent.
func (m *Manager) dequeue(sessionID string) *session {
	for i, s := range m.queued {
		if s.id == sessionID {
			m.queued = append(m.queued[:i], m.queued[i+1:]...)
			return s
		}
	}
	return nil
}

// effectiveFilter resolves the filter for a turn: explicit filters win, a nil
// filter falls back to all intents minus the ones disabled by Configure.
func (m *Manager) effectiveFilter(s *session) []string {
	if s.filter != nil {
		return s.filter
	}
	if len(m.disabled) == 0 {
		return nil
	}
	filter := make([]string, 0, len(m.intents))
	for _, name := range m.intents {
		if !m.disabled[name] {
			filter = append(filter, name)
		}
	}
	return filter
}

// setListening emits the ListeningStateChanged toggle, enforcing strict
// alternation.
func (m *Manager) setListening(s *session, listening bool) {
	if s.listening == listening {
		return
	}
	s.listening = listening
	v := listening
	m.publishSession(s, event.Event{Type: event.TypeListeningStateChanged, Listening: &v})
}

func (m *Manager) publishSession(s *session, ev event.Event) {
	ev.SessionID = s.id
	ev.SiteID = s.siteID
	ev.CustomData = s.customData
	m.publish(ev)
}

func (m *Manager) publishEnded(s *session, kind event.TerminationKind, reason string) {
	m.publishSession(s, event.Event{
		Type:  event.TypeSessionEnded,
		Ended: &event.Termination{Kind: kind, Error: reason},
	})
}

func (m *Manager) publish(ev event.Event) {
	ev.Time = time.Now()
	m.bus.Publish(ev)
}

// ─── Mailbox ───

// mailbox is the actor's unbounded ordered input queue. post never blocks;
// next blocks until a command arrives or the mailbox closes.
type mailbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool
}

func newMailbox() *mailbox {
	mb := &mailbox{}
	mb.cond = sync.NewCond(&mb.mu)
	return mb
}

func (mb *mailbox) post(cmd func()) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.closed {
		return
	}
	mb.queue = append(mb.queue, cmd)
	mb.cond.Signal()
}

func (mb *mailbox) next() (func(), bool) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	for len(mb.queue) == 0 && !mb.closed {
		mb.cond.Wait()
	}
	if len(mb.queue) == 0 {
		return nil, false
	}
	cmd := mb.queue[0]
	mb.queue = mb.queue[1:]
	return cmd, true
}

func (mb *mailbox) close() {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.closed = true
	mb.cond.Signal()
}
