package ordering

import (
	"context"
	"errors"
	"fmt"

	"ideaflow/pkg/fracdex"
	"ideaflow/pkg/logger"
	"ideaflow/pkg/models"
	"ideaflow/pkg/store"
	"ideaflow/pkg/telemetry"
)

// MoveResolver computes a single new position key for a dragged post and
// commits it optimistically. The whole resolve-then-commit cycle is retried
// on conflict up to Retries times.
type MoveResolver struct {
	MaxDepth int
	Retries  int
}

// Move places req.ID between its named neighbors. Empty After means head,
// empty Before means tail. Returns the post with its new key.
func (r *MoveResolver) Move(ctx context.Context, req models.MoveRequest) (models.Post, error) {
	retries := r.Retries
	if retries <= 0 {
		retries = 3
	}
	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		post, err := r.resolveOnce(ctx, req)
		if err == nil {
			return post, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return models.Post{}, err
		}
		lastErr = err
		logger.Debug("move_conflict_retry", "id", req.ID, "attempt", attempt+1)
	}
	return models.Post{}, fmt.Errorf("%w: move %s after %d attempts: %v", ErrContention, req.ID, retries, lastErr)
}

func (r *MoveResolver) resolveOnce(ctx context.Context, req models.MoveRequest) (models.Post, error) {
	post, err := fetch(ctx, req.ID)
	if err != nil {
		return models.Post{}, err
	}
	afterID, beforeID := req.After, req.Before
	var leftKey, rightKey string
	if afterID != "" {
		left, err := fetch(ctx, afterID)
		if err != nil {
			return models.Post{}, err
		}
		leftKey = left.PosKey
	}
	if beforeID != "" {
		right, err := fetch(ctx, beforeID)
		if err != nil {
			return models.Post{}, err
		}
		rightKey = right.PosKey
	}
	if leftKey != "" && rightKey != "" && fracdex.Compare(leftKey, rightKey) >= 0 {
		// the client's neighbor pair does not bound a gap anymore
		return models.Post{}, fmt.Errorf("%w: neighbors %s and %s are out of order", store.ErrConflict, afterID, beforeID)
	}

	occ, err := store.GapOccupants(ctx, leftKey, rightKey)
	if err != nil {
		return models.Post{}, err
	}
	var others []string
	for _, id := range occ {
		if id == req.ID {
			// already between the requested neighbors
			return post, nil
		}
		others = append(others, id)
	}
	if n := len(others); n > 0 {
		// Another post landed in the gap since the client read it. The
		// request's relative intent (after A, before B) still holds if we
		// slot in behind the last occupant, so narrow the gap instead of
		// demanding it empty.
		last, err := fetch(ctx, others[n-1])
		if err != nil {
			return models.Post{}, err
		}
		afterID, leftKey = last.ID, last.PosKey
		if rightKey != "" && fracdex.Compare(leftKey, rightKey) >= 0 {
			return models.Post{}, fmt.Errorf("%w: occupant %s passed %s", store.ErrConflict, afterID, beforeID)
		}
	}

	key, err := fracdex.Midpoint(leftKey, rightKey, r.MaxDepth)
	if errors.Is(err, fracdex.ErrExhaustedKeyspace) {
		return r.rebalanceAndPlace(ctx, post, afterID, beforeID)
	}
	if err != nil {
		return models.Post{}, err
	}

	ws := models.WriteSet{
		Writes: []models.KeyWrite{{ID: post.ID, Expect: post.PosKey, Key: key}},
		Gap:    &models.GapCheck{Left: leftKey, Right: rightKey, MovedID: post.ID},
	}
	if afterID != "" {
		ws.Guards = append(ws.Guards, models.Guard{ID: afterID, Expect: leftKey})
	}
	if beforeID != "" {
		ws.Guards = append(ws.Guards, models.Guard{ID: beforeID, Expect: rightKey})
	}
	if err := store.Commit(ctx, ws); err != nil {
		return models.Post{}, err
	}
	telemetry.Moves.Inc()
	post.PosKey = key
	return post, nil
}

// rebalanceAndPlace handles the exhausted-gap case: it redistributes a
// neighborhood of the gap across the span of its outer neighbors, placing
// the moved post in the gap as part of the same write set. The neighborhood
// starts at two posts per side and doubles until the spread fits under the
// depth cap.
func (r *MoveResolver) rebalanceAndPlace(ctx context.Context, post models.Post, afterID, beforeID string) (models.Post, error) {
	all, err := store.AllOrdered(ctx)
	if err != nil {
		return models.Post{}, err
	}
	// the moved post re-enters at the gap; take it out of the current view
	cur := make([]models.Post, 0, len(all))
	for _, p := range all {
		if p.ID != post.ID {
			cur = append(cur, p)
		}
	}
	li := -1
	ri := len(cur)
	for i, p := range cur {
		if p.ID == afterID {
			li = i
		}
		if p.ID == beforeID {
			ri = i
		}
	}
	if afterID != "" && li == -1 {
		return models.Post{}, fmt.Errorf("%w: %s", ErrUnknownItem, afterID)
	}
	if beforeID != "" && ri == len(cur) {
		return models.Post{}, fmt.Errorf("%w: %s", ErrUnknownItem, beforeID)
	}
	if ri != li+1 {
		return models.Post{}, fmt.Errorf("%w: neighbors %s and %s no longer adjacent", store.ErrConflict, afterID, beforeID)
	}

	for k := 2; ; k *= 2 {
		start := li - (k - 1)
		if start < 0 {
			start = 0
		}
		end := ri + (k - 1)
		if end > len(cur)-1 {
			end = len(cur) - 1
		}
		var loKey, hiKey string
		if start > 0 {
			loKey = cur[start-1].PosKey
		}
		if end < len(cur)-1 {
			hiKey = cur[end+1].PosKey
		}

		// slots: the neighborhood with the moved post inserted at the gap
		slots := make([]models.Post, 0, end-start+2)
		slots = append(slots, cur[start:li+1]...)
		slots = append(slots, post)
		if ri <= end {
			slots = append(slots, cur[ri:end+1]...)
		}

		keys, err := fracdex.Spread(loKey, hiKey, len(slots), r.MaxDepth)
		if errors.Is(err, fracdex.ErrExhaustedKeyspace) {
			if start == 0 && end >= len(cur)-1 {
				// whole collection is already in scope and the cap still
				// cannot hold it
				return models.Post{}, fmt.Errorf("keyspace depth %d cannot hold %d items: %v", r.MaxDepth, len(slots), err)
			}
			continue
		}
		if err != nil {
			return models.Post{}, err
		}

		ws := models.WriteSet{BumpVersion: true}
		var newKey string
		for i, s := range slots {
			if s.ID == post.ID {
				newKey = keys[i]
			}
			if s.PosKey == keys[i] {
				continue
			}
			ws.Writes = append(ws.Writes, models.KeyWrite{ID: s.ID, Expect: s.PosKey, Key: keys[i]})
		}
		if start > 0 {
			ws.Guards = append(ws.Guards, models.Guard{ID: cur[start-1].ID, Expect: loKey})
		}
		if end < len(cur)-1 {
			ws.Guards = append(ws.Guards, models.Guard{ID: cur[end+1].ID, Expect: hiKey})
		}
		if err := store.Commit(ctx, ws); err != nil {
			return models.Post{}, err
		}
		telemetry.Moves.Inc()
		telemetry.Rebalances.Inc()
		logger.Info("neighborhood_rebalanced", "moved", post.ID, "rows", len(ws.Writes))
		post.PosKey = newKey
		return post, nil
	}
}

func fetch(ctx context.Context, id string) (models.Post, error) {
	p, err := store.GetPost(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Post{}, fmt.Errorf("%w: %s", ErrUnknownItem, id)
		}
		return models.Post{}, err
	}
	return p, nil
}
