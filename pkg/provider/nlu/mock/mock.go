// Package mock provides a scripted NLU resolver for tests.
package mock

import (
	"context"
	"sync"

	"github.com/hushlabs/hearth/pkg/provider/nlu"
)

// Resolver is a scripted [nlu.Resolver]. Outcomes are keyed by utterance
// text; unmatched utterances yield nlu.ErrNotRecognized.
type Resolver struct {
	mu       sync.Mutex
	outcomes map[string]outcome
	queries  []nlu.Query
}

type outcome struct {
	msg *nlu.IntentMessage
	err error
}

var _ nlu.Resolver = (*Resolver)(nil)

// Expect scripts a successful resolution for the given utterance text.
func (r *Resolver) Expect(text string, msg *nlu.IntentMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcomes == nil {
		r.outcomes = make(map[string]outcome)
	}
	r.outcomes[text] = outcome{msg: msg}
}

// ExpectError scripts an error for the given utterance text.
func (r *Resolver) ExpectError(text string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcomes == nil {
		r.outcomes = make(map[string]outcome)
	}
	r.outcomes[text] = outcome{err: err}
}

// Resolve implements [nlu.Resolver.Resolve].
func (r *Resolver) Resolve(ctx context.Context, query nlu.Query) (*nlu.IntentMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.queries = append(r.queries, query)
	o, ok := r.outcomes[query.Text]
	r.mu.Unlock()

	if !ok {
		return nil, nlu.ErrNotRecognized
	}
	if o.err != nil {
		return nil, o.err
	}
	// Copy so callers mutating the result do not corrupt the script.
	msg := *o.msg
	return &msg, nil
}

// Queries returns every query the resolver has received, in order.
func (r *Resolver) Queries() []nlu.Query {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]nlu.Query, len(r.queries))
	copy(out, r.queries)
	return out
}
