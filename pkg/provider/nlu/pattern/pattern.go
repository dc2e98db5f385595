// Package pattern implements a deterministic, model-free [nlu.Resolver].
//
// Intents are declared as keyword sets: an intent matches when enough of its
// keywords appear in the utterance, with phonetic and edit-distance tolerance
// so ASR misspellings ("whether" for "weather") still resolve. Slots are
// filled by scanning utterance n-grams against gazetteer entity values (the
// static configuration plus the injected vocabulary snapshot) and against the
// builtin number, duration and datetime grammars.
//
// The resolver is read-only after construction and safe for concurrent use.
package pattern

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/hushlabs/hearth/pkg/provider/nlu"
)

const (
	defaultKeywordThreshold = 0.82
	defaultSlotThreshold    = 0.78
	defaultMinConfidence    = 0.50
	defaultMaxIntentAlts    = 3
	defaultMaxSlotAlts      = 3
	maxSlotNGram            = 3
)

// Compile-time assertion that Resolver satisfies nlu.Resolver.
var _ nlu.Resolver = (*Resolver)(nil)

// IntentSpec declares one recognisable intent.
type IntentSpec struct {
	// Name is the intent identifier, e.g. "searchWeatherForecast".
	Name string

	// Keywords are words or short phrases whose presence signals the intent.
	// At least one keyword must match for the intent to be a candidate;
	// confidence grows with coverage.
	Keywords []string

	// Slots declares the typed spans to extract when this intent wins.
	Slots []SlotSpec
}

// SlotSpec declares one slot of an intent.
type SlotSpec struct {
	// Name is the slot name, e.g. "forecast_location".
	Name string

	// Entity names the entity type the slot draws values from. The builtin
	// types [EntityNumber], [EntityDuration] and [EntityDatetime] are parsed
	// grammatically; every other name is a gazetteer lookup.
	Entity string
}

// Option is a functional option for configuring a [Resolver].
type Option func(*Resolver)

// WithMaxIntentAlternatives bounds the alternative intents attached to a
// resolution. Default: 3.
func WithMaxIntentAlternatives(n int) Option {
	return func(r *Resolver) { r.maxIntentAlts = n }
}

// WithMaxSlotAlternatives bounds the alternative candidates attached to each
// slot. Default: 3.
func WithMaxSlotAlternatives(n int) Option {
	return func(r *Resolver) { r.maxSlotAlts = n }
}

// WithKeywordThreshold sets the minimum similarity for a keyword to count as
// present in the utterance. Default: 0.82.
func WithKeywordThreshold(threshold float64) Option {
	return func(r *Resolver) { r.keywordThreshold = threshold }
}

// WithSlotThreshold sets the minimum similarity for a gazetteer value to fill
// a slot. Default: 0.78.
func WithSlotThreshold(threshold float64) Option {
	return func(r *Resolver) { r.slotThreshold = threshold }
}

// WithMinConfidence sets the confidence floor below which the top-ranked
// intent is rejected and resolution yields nlu.ErrNotRecognized.
// Default: 0.50.
func WithMinConfidence(confidence float64) Option {
	return func(r *Resolver) { r.minConfidence = confidence }
}

// WithClock overrides the time source used to anchor datetime slots. Intended
// for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// Resolver is a keyword and gazetteer based [nlu.Resolver].
type Resolver struct {
	intents  []IntentSpec
	known    map[string]*IntentSpec
	entities map[string][]string

	keywordThreshold float64
	slotThreshold    float64
	minConfidence    float64
	maxIntentAlts    int
	maxSlotAlts      int
	now              func() time.Time
}

// New builds a resolver from the declared intents and the static entity
// gazetteer. The entities map associates entity type names with their
// configured values; injected values arrive per query via the vocabulary
// snapshot and are merged at resolution time.
func New(intents []IntentSpec, entities map[string][]string, opts ...Option) *Resolver {
	r := &Resolver{
		intents:  intents,
		known:    make(map[string]*IntentSpec, len(intents)),
		entities: entities,

		keywordThreshold: defaultKeywordThreshold,
		slotThreshold:    defaultSlotThreshold,
		minConfidence:    defaultMinConfidence,
		maxIntentAlts:    defaultMaxIntentAlts,
		maxSlotAlts:      defaultMaxSlotAlts,
		now:              time.Now,
	}
	for i := range r.intents {
		r.known[r.intents[i].Name] = &r.intents[i]
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// HasEntity reports whether the named entity type is either builtin or
// present in the static gazetteer. Injection validation relies on this.
func (r *Resolver) HasEntity(entity string) bool {
	switch entity {
	case EntityNumber, EntityDuration, EntityDatetime:
		return true
	}
	_, ok := r.entities[entity]
	return ok
}

// Intents returns the names of all configured intents.
func (r *Resolver) Intents() []string {
	names := make([]string, 0, len(r.intents))
	for _, it := range r.intents {
		names = append(names, it.Name)
	}
	return names
}

// Resolve implements [nlu.Resolver.Resolve].
func (r *Resolver) Resolve(ctx context.Context, query nlu.Query) (*nlu.IntentMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Unknown filter entries are caller errors even when the filter is
	// otherwise empty of matches.
	for _, name := range query.Filter {
		if _, ok := r.known[name]; !ok {
			return nil, &nlu.UnknownIntentError{Intent: name}
		}
	}
	if query.Filter != nil && len(query.Filter) == 0 {
		return nil, nlu.ErrNotRecognized
	}

	tokens := tokenize(query.Text)
	if len(tokens) == 0 {
		return nil, nlu.ErrNotRecognized
	}

	eligible := r.eligibleIntents(query.Filter)

	type ranked struct {
		spec       *IntentSpec
		confidence float64
	}
	var candidates []ranked
	for _, spec := range eligible {
		if c := r.scoreIntent(spec, tokens); c > 0 {
			candidates = append(candidates, ranked{spec: spec, confidence: c})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].confidence > candidates[j].confidence
	})

	if len(candidates) == 0 || candidates[0].confidence < r.minConfidence {
		return nil, nlu.ErrNotRecognized
	}

	winner := candidates[0]
	msg := &nlu.IntentMessage{
		Input: query.Text,
		Intent: nlu.IntentClassification{
			Name:       winner.spec.Name,
			Confidence: winner.confidence,
		},
		Slots: r.extractSlots(winner.spec, tokens, query.Vocabulary),
	}
	for _, alt := range candidates[1:] {
		if len(msg.Alternatives) >= r.maxIntentAlts {
			break
		}
		msg.Alternatives = append(msg.Alternatives, nlu.IntentClassification{
			Name:       alt.spec.Name,
			Confidence: alt.confidence,
		})
	}
	return msg, nil
}

// eligibleIntents returns the intents resolution may consider under the
// filter. A nil filter admits every configured intent.
func (r *Resolver) eligibleIntents(filter []string) []*IntentSpec {
	if filter == nil {
		out := make([]*IntentSpec, 0, len(r.intents))
		for i := range r.intents {
			out = append(out, &r.intents[i])
		}
		return out
	}
	out := make([]*IntentSpec, 0, len(filter))
	for _, name := range filter {
		out = append(out, r.known[name])
	}
	return out
}

// scoreIntent returns the intent's confidence for the utterance: the mean
// best-match similarity across its keywords, zero when no keyword matches.
func (r *Resolver) scoreIntent(spec *IntentSpec, tokens []string) float64 {
	if len(spec.Keywords) == 0 {
		return 0
	}
	var sum float64
	matched := 0
	for _, kw := range spec.Keywords {
		if score := bestMatch(kw, tokens); score >= r.keywordThreshold {
			sum += score
			matched++
		}
	}
	if matched == 0 {
		return 0
	}
	// Coverage-weighted mean: a single matched keyword out of many yields a
	// proportionally lower confidence.
	return sum / float64(len(spec.Keywords))
}

// extractSlots fills the winning intent's slots from builtin grammars and
// gazetteer matches.
func (r *Resolver) extractSlots(spec *IntentSpec, tokens []string, vocab nlu.Vocabulary) []nlu.Slot {
	var slots []nlu.Slot
	for _, ss := range spec.Slots {
		var slot *nlu.Slot
		switch ss.Entity {
		case EntityNumber:
			slot = parseNumberSlot(ss, tokens)
		case EntityDuration:
			slot = parseDurationSlot(ss, tokens)
		case EntityDatetime:
			slot = parseDatetimeSlot(ss, tokens, r.now())
		default:
			slot = r.matchGazetteerSlot(ss, tokens, vocab)
		}
		if slot != nil {
			slots = append(slots, *slot)
		}
	}
	return slots
}

// matchGazetteerSlot scans utterance n-grams against the entity's value set
// and returns the best match above the slot threshold, with bounded
// alternatives.
func (r *Resolver) matchGazetteerSlot(ss SlotSpec, tokens []string, vocab nlu.Vocabulary) *nlu.Slot {
	values := r.entities[ss.Entity]
	if vocab != nil {
		values = mergeValues(values, vocab.Values(ss.Entity))
	}
	if len(values) == 0 {
		return nil
	}

	type candidate struct {
		value string
		raw   string
		score float64
	}
	var best []candidate
	for n := 1; n <= maxSlotNGram && n <= len(tokens); n++ {
		for i := 0; i+n <= len(tokens); i++ {
			gram := strings.Join(tokens[i:i+n], " ")
			for _, v := range values {
				if score := similarity(gram, v); score >= r.slotThreshold {
					best = append(best, candidate{value: v, raw: gram, score: score})
				}
			}
		}
	}
	if len(best) == 0 {
		return nil
	}
	sort.SliceStable(best, func(i, j int) bool { return best[i].score > best[j].score })

	// Collapse duplicate values keeping the highest-scoring span per value.
	seen := map[string]bool{best[0].value: true}
	slot := &nlu.Slot{
		Name:       ss.Name,
		Entity:     ss.Entity,
		RawValue:   best[0].raw,
		Value:      nlu.CustomValue{Value: best[0].value},
		Confidence: best[0].score,
	}
	for _, c := range best[1:] {
		if seen[c.value] {
			continue
		}
		seen[c.value] = true
		if len(slot.Alternatives) >= r.maxSlotAlts {
			break
		}
		slot.Alternatives = append(slot.Alternatives, nlu.SlotCandidate{
			Value:      nlu.CustomValue{Value: c.value},
			Confidence: c.score,
		})
	}
	return slot
}

// mergeValues appends extras to base, skipping duplicates, without mutating
// either input.
func mergeValues(base, extras []string) []string {
	if len(extras) == 0 {
		return base
	}
	out := make([]string, 0, len(base)+len(extras))
	seen := make(map[string]bool, len(base)+len(extras))
	for _, v := range base {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	for _, v := range extras {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// tokenize lower-cases the text and splits it into words, stripping
// punctuation at token boundaries.
func tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:\"'")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
