// Package nlu defines the Resolver interface for intent-resolution backends.
//
// A resolver turns a final utterance transcript into a structured intent with
// typed slots, or reports that no known intent matches. Resolution is a pure
// function of the query: the text, the session's intent filter, and one
// consistent vocabulary snapshot. Resolvers never mutate shared state, so
// multiple resolutions may run concurrently as long as each holds on to the
// snapshot it started with.
package nlu

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotRecognized is returned by Resolve when the utterance does not match
// any eligible intent. It is an expected outcome, not a fault.
var ErrNotRecognized = errors.New("nlu: intent not recognized")

// UnknownIntentError reports a filter entry naming an intent the resolver has
// never been configured with. Unlike [ErrNotRecognized] this is a caller
// error and terminates the session abnormally.
type UnknownIntentError struct {
	Intent string
}

func (e *UnknownIntentError) Error() string {
	return fmt.Sprintf("nlu: unknown intent %q in filter", e.Intent)
}

// Vocabulary is one consistent, immutable view of the entity values the
// resolver may match against. Implementations must never mutate after
// construction; live updates are modelled as whole-snapshot replacement.
type Vocabulary interface {
	// Values returns all values for the named entity type, including any
	// injected at runtime. The returned slice must not be mutated.
	Values(entity string) []string

	// HasEntity reports whether the entity type exists at all.
	HasEntity(entity string) bool

	// Version identifies this snapshot. Versions are strictly increasing
	// across replacements.
	Version() uint64
}

// Query carries everything a single resolution depends on.
type Query struct {
	// Text is the final utterance transcript.
	Text string

	// Filter restricts which intents may be resolved. A nil filter means no
	// restriction; an empty non-nil filter means no intent is eligible and
	// resolution always yields ErrNotRecognized.
	Filter []string

	// Vocabulary is the snapshot resolution runs against. May be nil, in
	// which case only statically configured entity values are considered.
	Vocabulary Vocabulary
}

// Resolver is the abstraction over any intent-resolution backend.
//
// Resolve returns the ranked intent with its slots, ErrNotRecognized when no
// eligible intent matches, or an *UnknownIntentError when the filter names an
// intent the resolver does not know. Implementations must be safe for
// concurrent use.
type Resolver interface {
	Resolve(ctx context.Context, query Query) (*IntentMessage, error)
}
