// Package vocab manages runtime vocabulary injection: adding recognisable
// entity values to the resolver without reloading anything.
//
// The committed vocabulary is modelled as an immutable, versioned Snapshot.
// Updates never mutate a snapshot in place; they derive a new one and publish
// it atomically, so a resolution that started against version N keeps seeing
// version N however many injections land while it runs.
package vocab

import (
	"github.com/hushlabs/hearth/pkg/provider/nlu"
)

// Snapshot is one immutable version of the injected vocabulary. It implements
// [nlu.Vocabulary]. The zero value is not usable; snapshots are produced by a
// [Manager].
type Snapshot struct {
	version uint64
	values  map[string][]string
}

var _ nlu.Vocabulary = (*Snapshot)(nil)

// Values implements [nlu.Vocabulary.Values].
func (s *Snapshot) Values(entity string) []string {
	return s.values[entity]
}

// HasEntity implements [nlu.Vocabulary.HasEntity]. It reports whether the
// snapshot carries injected values for the entity; static entity types are
// the resolver's concern.
func (s *Snapshot) HasEntity(entity string) bool {
	_, ok := s.values[entity]
	return ok
}

// Version implements [nlu.Vocabulary.Version].
func (s *Snapshot) Version() uint64 {
	return s.version
}

// Entities returns the entity types the snapshot has injected values for.
func (s *Snapshot) Entities() []string {
	out := make([]string, 0, len(s.values))
	for e := range s.values {
		out = append(out, e)
	}
	return out
}

// derive returns a copy of the snapshot with the next version number. The
// value slices are deep-copied so the parent stays immutable.
func (s *Snapshot) derive(version uint64) *Snapshot {
	values := make(map[string][]string, len(s.values))
	for e, vs := range s.values {
		cp := make([]string, len(vs))
		copy(cp, vs)
		values[e] = cp
	}
	return &Snapshot{version: version, values: values}
}
