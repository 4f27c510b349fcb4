package store

import "errors"

// errEmptyID marks writes that arrive without an entity id; they are
// skipped by the malformed-write policy.
var errEmptyID = errors.New("missing id")
