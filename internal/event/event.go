// Package event defines the engine's outbound event vocabulary and the
// dispatcher that delivers events to subscribed clients.
//
// Events are the only way state leaves the engine. The set is closed: every
// observable outcome of the pipeline and the dialogue state machine maps to
// exactly one Type below. Per-session ordering is preserved end to end, and a
// SessionEnded event is always the last one carrying its session id.
package event

import (
	"time"

	"github.com/hushlabs/hearth/pkg/provider/nlu"
)

// Type discriminates events.
type Type string

const (
	// TypeHotwordDetected fires when the wake phrase is recognised while no
	// session is active. Site-level: carries no session id.
	TypeHotwordDetected Type = "hotwordDetected"

	// TypeSessionStarted fires when a session enters its starting phase and
	// has been assigned an id.
	TypeSessionStarted Type = "sessionStarted"

	// TypeSessionQueued fires when a session request arrives while another
	// session occupies the site and the request may be enqueued.
	TypeSessionQueued Type = "sessionQueued"

	// TypeSessionEnded fires exactly once per session, always last.
	TypeSessionEnded Type = "sessionEnded"

	// TypeListeningStateChanged toggles strictly between true and false per
	// session; the first toggle after a non-notification start is true.
	TypeListeningStateChanged Type = "listeningStateChanged"

	// TypePartialTextCaptured carries an interim transcript, coalesced to the
	// configured minimum interval.
	TypePartialTextCaptured Type = "partialTextCaptured"

	// TypeTextCaptured carries the terminal transcript of an utterance,
	// exactly one per listening phase, empty text when no speech was heard.
	TypeTextCaptured Type = "textCaptured"

	// TypeIntentDetected carries a resolved intent with its slots.
	TypeIntentDetected Type = "intentDetected"

	// TypeIntentNotRecognized fires when resolution found no eligible intent
	// and intent-not-recognised delivery is enabled for the session.
	TypeIntentNotRecognized Type = "intentNotRecognized"

	// TypeSay asks the client to speak a prompt; the client answers with
	// NotifySpeechEnded carrying the message id.
	TypeSay Type = "say"

	// TypeInjectionComplete fires after an injection request has been
	// committed as a new vocabulary snapshot.
	TypeInjectionComplete Type = "injectionComplete"

	// TypeInjectionResetComplete fires after the vocabulary has been restored
	// to its pre-injection baseline.
	TypeInjectionResetComplete Type = "injectionResetComplete"

	// TypeError reports a fault that is not attributable to a live session.
	// Session faults surface as SessionEnded with TerminationError instead.
	TypeError Type = "error"
)

// TerminationKind classifies why a session ended.
type TerminationKind string

const (
	// TerminationNominal: the client ended the session after a delivered
	// intent, or a client deadline (Say acknowledgement, continuation)
	// elapsed. The normal completion path.
	TerminationNominal TerminationKind = "nominal"

	// TerminationAbortedByUser: the client ended the session before any
	// intent was delivered.
	TerminationAbortedByUser TerminationKind = "abortedByUser"

	// TerminationIntentNotRecognized: resolution failed and the session was
	// configured to terminate rather than deliver the failure.
	TerminationIntentNotRecognized TerminationKind = "intentNotRecognized"

	// TerminationError: an internal stage fault was converted into a
	// termination.
	TerminationError TerminationKind = "error"
)

// Event is one engine occurrence. Type selects which payload field is set;
// all others are nil.
type Event struct {
	Type Type `json:"type"`

	// SessionID is set on all session-scoped events, empty for site-level
	// ones (hotword, injection, engine errors).
	SessionID string `json:"sessionId,omitempty"`

	// SiteID names the audio site the event belongs to.
	SiteID string `json:"siteId,omitempty"`

	// CustomData echoes the opaque payload the client passed when starting
	// the session.
	CustomData string `json:"customData,omitempty"`

	// Time is when the state machine produced the event.
	Time time.Time `json:"time"`

	Hotword       *Hotword           `json:"hotword,omitempty"`
	Listening     *bool              `json:"listening,omitempty"`
	Text          *TextCaptured      `json:"text,omitempty"`
	Intent        *nlu.IntentMessage `json:"intent,omitempty"`
	NotRecognized *NotRecognized     `json:"notRecognized,omitempty"`
	Ended         *Termination       `json:"ended,omitempty"`
	Say           *Say               `json:"say,omitempty"`
	Injection     *Injection         `json:"injection,omitempty"`
	Error         *Error             `json:"error,omitempty"`
}

// Hotword is the payload of TypeHotwordDetected.
type Hotword struct {
	Keyword    string  `json:"keyword"`
	Confidence float64 `json:"confidence"`
}

// TextCaptured is the payload of TypePartialTextCaptured and
// TypeTextCaptured.
type TextCaptured struct {
	Text       string        `json:"text"`
	Confidence float64       `json:"likelihood"`
	Duration   time.Duration `json:"duration"`
}

// NotRecognized is the payload of TypeIntentNotRecognized.
type NotRecognized struct {
	// Input is the transcript that failed to resolve.
	Input string `json:"input"`
}

// Termination is the payload of TypeSessionEnded.
type Termination struct {
	Kind TerminationKind `json:"reason"`

	// Error describes the fault when Kind is TerminationError.
	Error string `json:"error,omitempty"`
}

// Say is the payload of TypeSay.
type Say struct {
	// MessageID correlates the client's NotifySpeechEnded answer.
	MessageID string `json:"messageId"`
	Text      string `json:"text"`
}

// Injection is the payload of TypeInjectionComplete and
// TypeInjectionResetComplete.
type Injection struct {
	// RequestID correlates the completion with the originating request.
	RequestID string `json:"requestId,omitempty"`

	// Version is the committed vocabulary snapshot version.
	Version uint64 `json:"version"`
}

// Error is the payload of TypeError.
type Error struct {
	Message string `json:"message"`
}
