package models

// Idempotency record states. Pending is tracked only in process; stored
// records are either completed or failed.
const (
	IdemCompleted = "completed"
	IdemFailed    = "failed"
)

// IdempotencyRecord remembers the outcome of a creation request keyed by a
// client-supplied token. Completed records replay their result verbatim
// until ExpiresTS; failed records hold the key for a short retry-after
// window so a transiently failing upstream is not hammered.
type IdempotencyRecord struct {
	Key       string `json:"key"`
	Status    string `json:"status"`
	Result    []byte `json:"result,omitempty"`
	HTTPCode  int    `json:"http_code,omitempty"`
	CreatedTS int64  `json:"created_ts"`
	ExpiresTS int64  `json:"expires_ts"`
}
