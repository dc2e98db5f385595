// Package dialogue implements the session state machine that coordinates
// hotword, speech recognition, intent resolution and the external dialogue
// client.
//
// The Manager is a single-goroutine actor: every client call and every
// pipeline result is posted to one ordered mailbox, so competing inputs (an
// EndSession racing a final transcript, say) are applied in strict arrival
// order with no partial updates. Intent resolution runs on its own goroutine
// per turn and reports back through the mailbox, keeping the actor free to
// process other input while the resolver works.
package dialogue

import (
	"time"
)

// Kind distinguishes action sessions (which listen and resolve intents) from
// notification sessions (which only speak a message).
type Kind int

const (
	// KindAction is a full recognition session.
	KindAction Kind = iota

	// KindNotification speaks one message and ends; no recognition happens.
	KindNotification
)

// State is a session's lifecycle phase. Within one recognition turn, states
// only move forward; multi-turn sessions cycle Listening, Resolving and
// WaitingForClient once per ContinueSession.
type State int

const (
	// StateQueued holds a start request waiting for the site to free up.
	StateQueued State = iota

	// StateStarting covers id assignment and SessionStarted emission.
	StateStarting

	// StateListening means the recognition pipeline is consuming audio for
	// this session.
	StateListening

	// StateResolving means a final transcript is being resolved to an intent.
	StateResolving

	// StateWaitingForClient means an intent (or not-recognised) was delivered
	// and the client must continue or end the session.
	StateWaitingForClient

	// StateSpeaking means a Say prompt is out and the client's
	// NotifySpeechEnded acknowledgement is pending.
	StateSpeaking

	// StateEnded is terminal.
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateStarting:
		return "starting"
	case StateListening:
		return "listening"
	case StateResolving:
		return "resolving"
	case StateWaitingForClient:
		return "waitingForClient"
	case StateSpeaking:
		return "speaking"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// StartRequest describes a new action session.
type StartRequest struct {
	// SiteID names the audio site. Empty means the default site.
	SiteID string

	// CustomData is an opaque client payload echoed on every event of the
	// session.
	CustomData string

	// Filter restricts which intents may resolve. nil means unrestricted
	// (subject to configured per-intent defaults); an empty non-nil slice
	// permits none.
	Filter []string

	// CanBeEnqueued lets the request wait in FIFO order when the site is
	// busy. When false, a busy site drops the request silently.
	CanBeEnqueued bool

	// SendIntentNotRecognized delivers resolution failures to the client as
	// an event instead of terminating the session.
	SendIntentNotRecognized bool

	// Text, when non-empty, is resolved directly and no audio is captured.
	Text string
}

// NotificationRequest describes a one-shot spoken notification.
type NotificationRequest struct {
	SiteID     string
	CustomData string

	// Text is the message for the client to speak.
	Text string
}

// session is the actor-private state of one session. Only the manager
// goroutine touches it.
type session struct {
	id         string
	siteID     string
	customData string
	kind       Kind

	filter                  []string
	canBeEnqueued           bool
	sendIntentNotRecognized bool
	pendingText             string

	state     State
	createdAt time.Time

	// turn increments each time the session enters Listening or Resolving;
	// stale pipeline results and timers carry the turn they were issued for
	// and are ignored on mismatch.
	turn int

	// listening tracks the ListeningStateChanged toggle invariant.
	listening bool

	// endRequested defers an EndSession that arrived while resolution was in
	// flight.
	endRequested bool

	// sayMessageID is the acknowledgement token of the outstanding Say
	// prompt, empty when none is pending.
	sayMessageID string
}
