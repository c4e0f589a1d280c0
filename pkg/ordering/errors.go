// Package ordering implements the sparse-key ordering engine: single-move
// resolution and bulk reorder planning over the store's position index.
package ordering

import "errors"

var (
	// ErrUnknownItem reports a request referencing an id that does not
	// exist in the store at all.
	ErrUnknownItem = errors.New("ordering: unknown item")

	// ErrConflictingOrder reports an internally contradictory request
	// (duplicate ids, sparse indices out of bounds, or both reorder
	// variants at once).
	ErrConflictingOrder = errors.New("ordering: conflicting order")

	// ErrContention is surfaced after optimistic commit retries are
	// exhausted; the caller may retry later.
	ErrContention = errors.New("ordering: contention")
)
