package ordering

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"ideaflow/pkg/fracdex"
	"ideaflow/pkg/logger"
	"ideaflow/pkg/models"
	"ideaflow/pkg/store"
	"ideaflow/pkg/telemetry"
)

// Planner turns a ReorderRequest into a minimal WriteSet: posts already in
// the right relative order keep their keys verbatim, so write amplification
// is bounded by the number of displaced posts, not the collection size.
type Planner struct {
	MaxDepth int
	Retries  int
}

// Apply plans and commits a reorder, retrying the plan-commit cycle on
// optimistic conflicts. It returns the number of rows rewritten.
func (p *Planner) Apply(ctx context.Context, req models.ReorderRequest) (int, error) {
	if (len(req.Order) == 0) == (len(req.Moves) == 0) {
		return 0, fmt.Errorf("%w: exactly one of order and moves must be set", ErrConflictingOrder)
	}
	retries := p.Retries
	if retries <= 0 {
		retries = 3
	}
	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		ws, err := p.plan(ctx, req)
		if err != nil {
			return 0, err
		}
		if ws.Empty() && !ws.BumpVersion {
			return 0, nil
		}
		if err := store.Commit(ctx, ws); err != nil {
			if errors.Is(err, store.ErrConflict) {
				lastErr = err
				logger.Debug("reorder_conflict_retry", "attempt", attempt+1)
				continue
			}
			return 0, err
		}
		telemetry.Reorders.Inc()
		telemetry.ReorderWrites.Add(float64(len(ws.Writes)))
		return len(ws.Writes), nil
	}
	return 0, fmt.Errorf("%w: reorder after %d attempts: %v", ErrContention, retries, lastErr)
}

// plan computes the WriteSet for one request against a snapshot of the
// current order.
func (p *Planner) plan(ctx context.Context, req models.ReorderRequest) (models.WriteSet, error) {
	all, err := store.AllOrdered(ctx)
	if err != nil {
		return models.WriteSet{}, err
	}

	target := req.Order
	if len(req.Moves) > 0 {
		target, err = applySparse(all, req.Moves)
		if err != nil {
			return models.WriteSet{}, err
		}
	}
	if err := checkTarget(ctx, all, target); err != nil {
		return models.WriteSet{}, err
	}
	return p.planFull(all, target)
}

// checkTarget rejects duplicates and ids missing from the store entirely.
// Ids present in the store but absent from the position index are allowed:
// they are planned as insertions at their requested slot.
func checkTarget(ctx context.Context, all []models.Post, target []string) error {
	inOrder := make(map[string]struct{}, len(all))
	for _, p := range all {
		inOrder[p.ID] = struct{}{}
	}
	seen := make(map[string]struct{}, len(target))
	for _, id := range target {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: duplicate id %s", ErrConflictingOrder, id)
		}
		seen[id] = struct{}{}
		if _, ok := inOrder[id]; ok {
			continue
		}
		if _, err := store.GetPost(ctx, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("%w: %s", ErrUnknownItem, id)
			}
			return err
		}
	}
	return nil
}

// planFull assigns fresh keys only to the runs of target that are out of
// order relative to their unmoved neighbors. The kept set is the longest
// increasing subsequence of current positions within the requested order;
// when a run's span has no key room left, its bounding anchors dissolve
// into the run and planning widens until the spread fits.
func (p *Planner) planFull(all []models.Post, target []string) (models.WriteSet, error) {
	curIdx := make(map[string]int, len(all))
	byID := make(map[string]models.Post, len(all))
	for i, pt := range all {
		curIdx[pt.ID] = i
		byID[pt.ID] = pt
	}

	kept := make(map[string]bool, len(target))
	for _, ti := range keepSet(target, curIdx) {
		kept[target[ti]] = true
	}

	widened := false
	for {
		ws, anchors, err := p.tryAssign(target, byID, kept)
		if err == nil {
			ws.BumpVersion = widened
			if widened {
				telemetry.Rebalances.Inc()
			}
			return *ws, nil
		}
		if !errors.Is(err, fracdex.ErrExhaustedKeyspace) {
			return models.WriteSet{}, err
		}
		// dissolve the anchors bounding the exhausted run and re-plan wider
		widened = true
		any := false
		for _, id := range anchors {
			if kept[id] {
				kept[id] = false
				any = true
			}
		}
		if !any {
			// no anchors left to widen; the collection no longer fits the cap
			return models.WriteSet{}, fmt.Errorf("keyspace depth %d cannot hold %d items", p.MaxDepth, len(target))
		}
	}
}

// tryAssign walks target assigning keys to non-kept runs. When a run's key
// span is exhausted it returns ErrExhaustedKeyspace together with the ids
// of the anchors bounding that run, so the caller can dissolve them.
func (p *Planner) tryAssign(target []string, byID map[string]models.Post, kept map[string]bool) (*models.WriteSet, []string, error) {
	ws := &models.WriteSet{}
	var run []string
	prevAnchor := ""

	flush := func(nextAnchor string) ([]string, error) {
		if len(run) == 0 {
			return nil, nil
		}
		var loKey, hiKey string
		if prevAnchor != "" {
			loKey = byID[prevAnchor].PosKey
		}
		if nextAnchor != "" {
			hiKey = byID[nextAnchor].PosKey
		}
		keys, err := fracdex.Spread(loKey, hiKey, len(run), p.MaxDepth)
		if err != nil {
			var anchors []string
			if prevAnchor != "" {
				anchors = append(anchors, prevAnchor)
			}
			if nextAnchor != "" {
				anchors = append(anchors, nextAnchor)
			}
			return anchors, err
		}
		for i, id := range run {
			expect := ""
			if cur, ok := byID[id]; ok {
				expect = cur.PosKey
			}
			if expect == keys[i] {
				continue
			}
			ws.Writes = append(ws.Writes, models.KeyWrite{ID: id, Expect: expect, Key: keys[i]})
		}
		if prevAnchor != "" {
			ws.Guards = append(ws.Guards, models.Guard{ID: prevAnchor, Expect: byID[prevAnchor].PosKey})
		}
		if nextAnchor != "" {
			ws.Guards = append(ws.Guards, models.Guard{ID: nextAnchor, Expect: byID[nextAnchor].PosKey})
		}
		run = run[:0]
		return nil, nil
	}

	for _, id := range target {
		if kept[id] {
			if anchors, err := flush(id); err != nil {
				return nil, anchors, err
			}
			prevAnchor = id
			continue
		}
		run = append(run, id)
	}
	if anchors, err := flush(""); err != nil {
		return nil, anchors, err
	}
	return ws, nil, nil
}

// keepSet returns the indices into target of a longest strictly increasing
// subsequence of current positions; those posts keep their keys. Insertions
// (ids with no current position) are never kept.
func keepSet(target []string, curIdx map[string]int) []int {
	type ent struct{ targetIdx, curPos int }
	var seq []ent
	for i, id := range target {
		if pos, ok := curIdx[id]; ok {
			seq = append(seq, ent{i, pos})
		}
	}
	if len(seq) == 0 {
		return nil
	}
	tails := make([]int, 0, len(seq))   // curPos of smallest tail per length
	tailAt := make([]int, 0, len(seq))  // index into seq of that tail
	parent := make([]int, len(seq))
	for i, e := range seq {
		j := sort.Search(len(tails), func(k int) bool { return tails[k] >= e.curPos })
		if j == len(tails) {
			tails = append(tails, e.curPos)
			tailAt = append(tailAt, i)
		} else {
			tails[j] = e.curPos
			tailAt[j] = i
		}
		if j > 0 {
			parent[i] = tailAt[j-1]
		} else {
			parent[i] = -1
		}
	}
	out := make([]int, len(tails))
	at := tailAt[len(tailAt)-1]
	for i := len(tails) - 1; i >= 0; i-- {
		out[i] = seq[at].targetIdx
		at = parent[at]
	}
	return out
}

// applySparse folds sparse (id, index) placements into a full target order
// over the current collection.
func applySparse(all []models.Post, moves []models.SparseMove) ([]string, error) {
	moved := make(map[string]int, len(moves))
	for _, m := range moves {
		if _, dup := moved[m.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %s", ErrConflictingOrder, m.ID)
		}
		if m.Index < 0 {
			return nil, fmt.Errorf("%w: index %d for %s out of bounds", ErrConflictingOrder, m.Index, m.ID)
		}
		moved[m.ID] = m.Index
	}

	order := make([]string, 0, len(all))
	for _, p := range all {
		if _, ok := moved[p.ID]; !ok {
			order = append(order, p.ID)
		}
	}
	sorted := append([]models.SparseMove(nil), moves...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })
	for _, m := range sorted {
		if m.Index > len(order) {
			return nil, fmt.Errorf("%w: index %d for %s out of bounds", ErrConflictingOrder, m.Index, m.ID)
		}
		order = append(order, "")
		copy(order[m.Index+1:], order[m.Index:])
		order[m.Index] = m.ID
	}
	return order, nil
}
