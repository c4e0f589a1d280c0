package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"

	"ideaflow/pkg/logger"
	"ideaflow/pkg/models"
	"ideaflow/pkg/telemetry"
)

// Commit applies a WriteSet atomically. Every write and guard is verified
// against the current stored position key, and the optional gap check is
// re-scanned, before the batch is applied; any mismatch returns ErrConflict
// and nothing is written. Callers retry the whole resolve-then-commit cycle
// on conflict.
func Commit(ctx context.Context, ws models.WriteSet) error {
	if db == nil {
		return notOpened()
	}
	if err := ctxErr(ctx); err != nil {
		return err
	}
	if ws.Empty() && !ws.BumpVersion {
		return nil
	}

	commitMu.Lock()
	defer commitMu.Unlock()

	// verify phase
	posts := make(map[string]models.Post, len(ws.Writes))
	for _, wr := range ws.Writes {
		p, err := getPostLocked(wr.ID)
		if err != nil {
			return err
		}
		if p.PosKey != wr.Expect {
			telemetry.CommitConflicts.Inc()
			return fmt.Errorf("%w: post %s moved (key %q, expected %q)", ErrConflict, wr.ID, p.PosKey, wr.Expect)
		}
		posts[wr.ID] = p
	}
	for _, g := range ws.Guards {
		p, err := getPostLocked(g.ID)
		if err != nil {
			return err
		}
		if p.PosKey != g.Expect {
			telemetry.CommitConflicts.Inc()
			return fmt.Errorf("%w: neighbor %s moved (key %q, expected %q)", ErrConflict, g.ID, p.PosKey, g.Expect)
		}
	}
	if ws.Gap != nil {
		ids, err := gapOccupantsLocked(ws.Gap.Left, ws.Gap.Right)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if id != ws.Gap.MovedID {
				telemetry.CommitConflicts.Inc()
				return fmt.Errorf("%w: gap (%q,%q) occupied by %s", ErrConflict, ws.Gap.Left, ws.Gap.Right, id)
			}
		}
	}

	// apply phase
	b := db.NewBatch()
	defer b.Close()
	for _, wr := range ws.Writes {
		p := posts[wr.ID]
		old := p.PosKey
		p.PosKey = wr.Key
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("failed to marshal post %s: %w", wr.ID, err)
		}
		_ = b.Set(postRowKey(p.ID), data, nil)
		if old != wr.Key {
			_ = b.Delete(posIdxKey(old, p.ID), nil)
		}
		_ = b.Set(posIdxKey(wr.Key, p.ID), []byte(p.ID), nil)
	}
	if ws.BumpVersion {
		if err := bumpOrderVersionLocked(b); err != nil {
			return err
		}
	}
	if err := b.Commit(pebble.Sync); err != nil {
		logger.Error("commit_failed", "writes", len(ws.Writes), "error", err)
		return err
	}
	logger.Debug("writeset_committed", "writes", len(ws.Writes), "bump_version", ws.BumpVersion)
	return nil
}

// GapOccupants returns the ids of posts, in position order, whose key falls
// strictly between left and right ("" means the respective end of the
// keyspace). MoveResolver anchors against the result; Commit re-runs the
// same scan under the commit lock.
func GapOccupants(ctx context.Context, left, right string) ([]string, error) {
	if db == nil {
		return nil, notOpened()
	}
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	return gapOccupantsLocked(left, right)
}

func gapOccupantsLocked(left, right string) ([]string, error) {
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	// The separator sorts below every key digit, so the first index key
	// past all entries with posKey == left is left + '"' (one above '!').
	start := []byte(posIdxPrefix)
	if left != "" {
		start = []byte(posIdxPrefix + left + "\"")
	}
	var end []byte
	if right != "" {
		end = []byte(posIdxPrefix + right + idxSep)
	}

	var out []string
	for iter.SeekGE(start); iter.Valid(); iter.Next() {
		k := iter.Key()
		if !bytes.HasPrefix(k, []byte(posIdxPrefix)) {
			break
		}
		if end != nil && bytes.Compare(k, end) >= 0 {
			break
		}
		out = append(out, string(iter.Value()))
	}
	return out, iter.Error()
}
