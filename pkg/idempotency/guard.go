// Package idempotency deduplicates creation requests keyed by a
// client-supplied token. Each key moves through a small state machine:
// absent -> pending -> completed (or back to absent on failure). Pending
// is tracked only in process; completed and failed outcomes are persisted
// so replays survive restarts until they expire.
package idempotency

import (
	"context"
	"errors"
	"sync"
	"time"

	"ideaflow/pkg/logger"
	"ideaflow/pkg/models"
	"ideaflow/pkg/store"
	"ideaflow/pkg/telemetry"
	"ideaflow/pkg/utils"
)

// ErrDuplicateInFlight means another request holding the same key has not
// finished yet. Callers should surface it as a retryable conflict rather
// than running the operation twice.
var ErrDuplicateInFlight = errors.New("idempotency key already in flight")

// ErrRetryLater means the previous attempt under this key failed recently;
// the key is held for a short window so a flapping upstream is not hammered.
var ErrRetryLater = errors.New("previous attempt failed, retry later")

// Result is what an operation produced, replayed verbatim on duplicates.
type Result struct {
	Body     []byte
	HTTPCode int
}

// Replay marks a Result that was served from a stored record rather than a
// fresh execution of the operation.
type Replay struct {
	Result
}

// Guard owns the per-key state machine.
type Guard struct {
	mu      sync.Mutex
	pending map[string]struct{}

	TTL        time.Duration // lifetime of completed records
	RetryAfter time.Duration // hold window after a failed attempt
}

// New returns a Guard with the given record lifetime and failure window.
func New(ttl, retryAfter time.Duration) *Guard {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if retryAfter <= 0 {
		retryAfter = 30 * time.Second
	}
	return &Guard{
		pending:    make(map[string]struct{}),
		TTL:        ttl,
		RetryAfter: retryAfter,
	}
}

// Do runs fn at most once per key. An empty key bypasses the guard
// entirely. When a completed record exists its result is returned as a
// *Replay without running fn; a pending key returns ErrDuplicateInFlight;
// a fresh failure is recorded and the key held for RetryAfter.
func (g *Guard) Do(ctx context.Context, key string, fn func(context.Context) (Result, error)) (Result, bool, error) {
	if key == "" {
		res, err := fn(ctx)
		return res, false, err
	}

	if err := g.acquire(ctx, key); err != nil {
		var rep *Replay
		if errors.As(err, &rep) {
			telemetry.IdemReplays.Inc()
			return rep.Result, true, nil
		}
		return Result{}, false, err
	}

	res, err := fn(ctx)
	g.release(ctx, key, res, err)
	return res, false, err
}

// acquire moves key from absent to pending, or reports why it cannot.
func (g *Guard) acquire(ctx context.Context, key string) error {
	g.mu.Lock()
	if _, inflight := g.pending[key]; inflight {
		g.mu.Unlock()
		return ErrDuplicateInFlight
	}
	g.pending[key] = struct{}{}
	g.mu.Unlock()

	rec, err := store.GetIdemRecord(ctx, key, utils.NowNS())
	if err == nil {
		g.forget(key)
		switch rec.Status {
		case models.IdemCompleted:
			return &Replay{Result{Body: rec.Result, HTTPCode: rec.HTTPCode}}
		case models.IdemFailed:
			return ErrRetryLater
		}
		// unknown status rows are dropped and the key re-acquired fresh
		_ = store.DeleteIdemRecord(ctx, key)
		g.mu.Lock()
		g.pending[key] = struct{}{}
		g.mu.Unlock()
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		g.forget(key)
		return err
	}
	return nil
}

// release persists the outcome and clears the in-process pending mark.
func (g *Guard) release(ctx context.Context, key string, res Result, opErr error) {
	defer g.forget(key)

	now := utils.NowNS()
	rec := models.IdempotencyRecord{Key: key, CreatedTS: now}
	if opErr == nil {
		rec.Status = models.IdemCompleted
		rec.Result = res.Body
		rec.HTTPCode = res.HTTPCode
		rec.ExpiresTS = now + g.TTL.Nanoseconds()
	} else {
		rec.Status = models.IdemFailed
		rec.ExpiresTS = now + g.RetryAfter.Nanoseconds()
	}
	if err := store.PutIdemRecord(ctx, rec); err != nil {
		// the operation already ran; losing the record only costs
		// replay protection for this key
		logger.Warn("idempotency_record_failed", "key", key, "error", err)
	}
}

func (g *Guard) forget(key string) {
	g.mu.Lock()
	delete(g.pending, key)
	g.mu.Unlock()
}

// Error lets a Replay travel through acquire's error return.
func (r *Replay) Error() string { return "idempotency replay" }
