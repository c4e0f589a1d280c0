package models

// KeyWrite sets a new position key for one post. Expect is the key observed
// when the write was planned; commit fails with a conflict when the stored
// key no longer matches.
type KeyWrite struct {
	ID     string
	Expect string
	Key    string
}

// Guard pins a row the plan depends on without rewriting it (the unmoved
// boundary neighbors of a rewritten run).
type Guard struct {
	ID     string
	Expect string
}

// GapCheck asserts that the open key interval (Left, Right) contains no
// post other than MovedID at commit time. Left == "" means the interval is
// open at the head, Right == "" at the tail.
type GapCheck struct {
	Left    string
	Right   string
	MovedID string
}

// WriteSet is the output of planning: only rows whose key actually changes
// appear in Writes. It is consumed by one commit and discarded.
type WriteSet struct {
	Writes []KeyWrite
	Guards []Guard
	Gap    *GapCheck

	// BumpVersion is set when the plan rewrote keys beyond what the caller
	// asked for (a rebalance), invalidating position cursors held by clients.
	BumpVersion bool
}

// Empty reports whether committing the set would change nothing.
func (ws *WriteSet) Empty() bool {
	return ws == nil || len(ws.Writes) == 0
}
