package clock

import (
	"reflect"
	"time"
)

// Clock is the per-entity logical clock used to order concurrent writes.
// A write carrying a greater clock supersedes the stored value; everything
// else is discarded. Counter is the authoritative component; TS and Node
// only break ties.
type Clock struct {
	Counter uint64 `json:"counter"`
	Node    string `json:"node"`
	TS      int64  `json:"ts"`
}

// Ordering is the result of comparing two clocks.
type Ordering int

const (
	Less    Ordering = -1
	Equal   Ordering = 0
	Greater Ordering = 1
)

// IsZero reports whether the clock is unset. Partially hydrated payloads
// decode missing clock fields to zero values, so an absent or malformed
// clock naturally orders below every real write instead of failing.
func (c Clock) IsZero() bool {
	return c.Counter == 0 && c.Node == "" && c.TS == 0
}

// Next returns the clock for a new local write on the given node,
// advancing the counter past c.
func (c Clock) Next(node string) Clock {
	return Clock{Counter: c.Counter + 1, Node: node, TS: time.Now().UTC().UnixNano()}
}

// Compare orders a against b: counter first, then TS, then Node compared
// lexicographically (the greater node string wins the final tie). The rule
// is deterministic across replicas so two peers applying the same pair of
// writes in either order converge on the same value.
func Compare(a, b Clock) Ordering {
	if a.Counter != b.Counter {
		if a.Counter < b.Counter {
			return Less
		}
		return Greater
	}
	if a.TS != b.TS {
		if a.TS < b.TS {
			return Less
		}
		return Greater
	}
	if a.Node != b.Node {
		if a.Node < b.Node {
			return Less
		}
		return Greater
	}
	return Equal
}

// Carrier is implemented by every entity that carries a logical clock.
type Carrier interface {
	EntityClock() Clock
}

// Merge resolves two versions of the same entity: incoming wins only when
// its clock compares strictly Greater, otherwise current is returned
// unchanged. Last-writer-wins per entity, not per field.
func Merge[E Carrier](current, incoming E) E {
	if Compare(incoming.EntityClock(), current.EntityClock()) == Greater {
		return incoming
	}
	return current
}

// DeepEqual reports whether two entities represent the same logical write.
// Clocks are compared first; equal clocks still require structural
// equality, so a same-clock-but-differently-shaped object is reported as
// different rather than silently trusted.
func DeepEqual[E Carrier](a, b E) bool {
	if Compare(a.EntityClock(), b.EntityClock()) != Equal {
		return false
	}
	return reflect.DeepEqual(a, b)
}
