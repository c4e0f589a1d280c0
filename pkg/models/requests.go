package models

// CreatePostRequest is the typed body of POST /v1/posts. Arbitrary maps are
// rejected at the boundary; only these fields reach the engine.
type CreatePostRequest struct {
	Title    string   `json:"title"`
	Body     string   `json:"body,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Status   string   `json:"status,omitempty"`
	TargetTS int64    `json:"target_ts,omitempty"`
}

// UpdatePostRequest is the body of PUT /v1/posts/{id}; every content field
// is replaced. Position is never updated through this path.
type UpdatePostRequest struct {
	Title    string   `json:"title"`
	Body     string   `json:"body,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Status   string   `json:"status,omitempty"`
	TargetTS int64    `json:"target_ts,omitempty"`
}

// PatchPostRequest is the body of PATCH /v1/posts/{id}; nil fields are left
// untouched.
type PatchPostRequest struct {
	Title    *string   `json:"title,omitempty"`
	Body     *string   `json:"body,omitempty"`
	Tags     *[]string `json:"tags,omitempty"`
	Status   *string   `json:"status,omitempty"`
	TargetTS *int64    `json:"target_ts,omitempty"`
}

// SparseMove places one post at a zero-based index of the resulting order.
type SparseMove struct {
	ID    string `json:"id"`
	Index int    `json:"index"`
}

// ReorderRequest carries either a full ordered id list ("Just Sort" result)
// or a sparse list of placements (drag result). Exactly one of the two must
// be set.
type ReorderRequest struct {
	Order []string     `json:"order,omitempty"`
	Moves []SparseMove `json:"moves,omitempty"`
}

// MoveRequest moves one post between two named neighbors. Empty After means
// the post becomes the head; empty Before means it becomes the tail.
type MoveRequest struct {
	ID     string `json:"id"`
	After  string `json:"after,omitempty"`
	Before string `json:"before,omitempty"`
}
