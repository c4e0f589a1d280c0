package models

// Post is a single orderable entity. PosKey is an immutable fracdex value;
// moving a post means writing a new key, never mutating one in place.
type Post struct {
	ID     string   `json:"id"`
	Title  string   `json:"title,omitempty"`
	Body   string   `json:"body,omitempty"`
	Tags   []string `json:"tags,omitempty"`
	Status string   `json:"status,omitempty"`

	// PosKey determines the default ordering. Uniqueness is not required;
	// the order index breaks ties by id.
	PosKey string `json:"position_key"`

	// Created timestamp (ns)
	CreatedTS int64 `json:"created_ts"`
	// Updated timestamp (ns) - last time content or position changed
	UpdatedTS int64 `json:"updated_ts,omitempty"`
	// TargetTS is the secondary ordering field (ns), independently sortable
	TargetTS int64 `json:"target_ts,omitempty"`

	// Deleted marks a post as soft-deleted; DeletedTS records deletion time (ns)
	Deleted   bool  `json:"deleted,omitempty"`
	DeletedTS int64 `json:"deleted_ts,omitempty"`
}
