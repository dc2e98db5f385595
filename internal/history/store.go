// Package history persists an audit log of terminated dialogue sessions:
// which sessions ran, what was heard and which intents were resolved.
//
// The engine core keeps no durable state; history is an opt-in side channel
// fed from the event stream. Two Store implementations exist: an in-memory
// ring for tests and single-process deployments, and a PostgreSQL store for
// durable logs.
package history

import (
	"context"
	"time"
)

// Utterance is one recognition turn inside a session.
type Utterance struct {
	// Text is the terminal transcript of the turn.
	Text string

	// Intent is the resolved intent name, empty when the turn was not
	// recognised.
	Intent string

	// CapturedAt is when the terminal transcript arrived.
	CapturedAt time.Time
}

// Record is the audit entry of one terminated session.
type Record struct {
	SessionID  string
	SiteID     string
	CustomData string

	StartedAt time.Time
	EndedAt   time.Time

	// Termination is the session's termination kind.
	Termination string

	Utterances []Utterance
}

// Store persists session records. Implementations must be safe for
// concurrent use.
type Store interface {
	// SaveSession appends the record of a terminated session.
	SaveSession(ctx context.Context, rec Record) error

	// RecentSessions returns up to limit records, newest first.
	RecentSessions(ctx context.Context, limit int) ([]Record, error)
}
