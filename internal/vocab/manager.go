package vocab

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// OperationKind selects how an injection operation combines with previously
// injected values.
type OperationKind string

const (
	// OperationAdd appends values on top of whatever is currently injected.
	OperationAdd OperationKind = "add"

	// OperationAddFromVanilla first discards previously injected values for
	// each named entity, then adds the new ones.
	OperationAddFromVanilla OperationKind = "addFromVanilla"
)

// Operation is one step of an injection request: a kind plus the values to
// add per entity type.
type Operation struct {
	Kind   OperationKind
	Values map[string][]string
}

// UnknownEntityError reports an injection operation naming an entity type the
// resolver has never been configured with.
type UnknownEntityError struct {
	Entity string
}

func (e *UnknownEntityError) Error() string {
	return fmt.Sprintf("vocab: unknown entity type %q", e.Entity)
}

// EntityChecker validates that an entity type exists in the loaded
// configuration. *pattern.Resolver satisfies it.
type EntityChecker interface {
	HasEntity(entity string) bool
}

// Manager owns the committed vocabulary snapshot. Apply and Reset serialize
// through an internal mutex, so concurrent requests queue rather than fail;
// Current is a lock-free atomic read, safe to call from resolution workers.
type Manager struct {
	checker EntityChecker

	mu      sync.Mutex
	version uint64
	current atomic.Pointer[Snapshot]
}

// NewManager returns a manager whose committed snapshot is the empty
// baseline, version 0. Reset always returns to that baseline.
func NewManager(checker EntityChecker) *Manager {
	m := &Manager{checker: checker}
	m.current.Store(&Snapshot{version: 0, values: map[string][]string{}})
	return m
}

// Current returns the committed snapshot. Callers hold on to the returned
// pointer for the duration of a resolution; later injections publish new
// snapshots without disturbing it.
func (m *Manager) Current() *Snapshot {
	return m.current.Load()
}

// Apply validates the operations, derives a new snapshot from the current one
// and publishes it. On validation failure nothing is published and the
// committed snapshot is unchanged. Values already present are skipped, so
// repeating an injection is idempotent.
func (m *Manager) Apply(ops []Operation) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Validate everything before touching state.
	for _, op := range ops {
		switch op.Kind {
		case OperationAdd, OperationAddFromVanilla:
		default:
			return nil, fmt.Errorf("vocab: unknown operation kind %q", op.Kind)
		}
		for entity := range op.Values {
			if !m.checker.HasEntity(entity) {
				return nil, &UnknownEntityError{Entity: entity}
			}
		}
	}

	m.version++
	next := m.current.Load().derive(m.version)
	for _, op := range ops {
		for entity, values := range op.Values {
			if op.Kind == OperationAddFromVanilla {
				delete(next.values, entity)
			}
			next.values[entity] = appendUnique(next.values[entity], values)
		}
	}

	m.current.Store(next)
	return next, nil
}

// Reset reinstalls the pre-injection baseline as a new snapshot version and
// returns it.
func (m *Manager) Reset() *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.version++
	next := &Snapshot{version: m.version, values: map[string][]string{}}
	m.current.Store(next)
	return next
}

// appendUnique appends each value not already present, preserving order.
func appendUnique(dst, values []string) []string {
	seen := make(map[string]bool, len(dst)+len(values))
	for _, v := range dst {
		seen[v] = true
	}
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		dst = append(dst, v)
	}
	return dst
}
