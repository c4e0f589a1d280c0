package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"ideaflow/pkg/logger"
	"ideaflow/pkg/models"
)

// GetIdemRecord returns the stored idempotency record for key, or
// ErrNotFound. Expired records are treated as absent and lazily removed.
func GetIdemRecord(ctx context.Context, key string, now int64) (models.IdempotencyRecord, error) {
	if db == nil {
		return models.IdempotencyRecord{}, notOpened()
	}
	if err := ctxErr(ctx); err != nil {
		return models.IdempotencyRecord{}, err
	}
	v, closer, err := db.Get([]byte(idemPrefix + key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return models.IdempotencyRecord{}, fmt.Errorf("%w: idempotency key", ErrNotFound)
		}
		return models.IdempotencyRecord{}, err
	}
	data := append([]byte(nil), v...)
	closer.Close()
	var rec models.IdempotencyRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return models.IdempotencyRecord{}, fmt.Errorf("invalid idempotency row: %w", err)
	}
	if rec.ExpiresTS != 0 && rec.ExpiresTS <= now {
		_ = db.Delete([]byte(idemPrefix+key), pebble.NoSync)
		return models.IdempotencyRecord{}, fmt.Errorf("%w: idempotency key expired", ErrNotFound)
	}
	return rec, nil
}

// PutIdemRecord stores an idempotency record.
func PutIdemRecord(ctx context.Context, rec models.IdempotencyRecord) error {
	if db == nil {
		return notOpened()
	}
	if err := ctxErr(ctx); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal idempotency record: %w", err)
	}
	return db.Set([]byte(idemPrefix+rec.Key), data, pebble.Sync)
}

// DeleteIdemRecord removes a record, releasing its key.
func DeleteIdemRecord(ctx context.Context, key string) error {
	if db == nil {
		return notOpened()
	}
	if err := ctxErr(ctx); err != nil {
		return err
	}
	return db.Delete([]byte(idemPrefix+key), pebble.Sync)
}

// SweepIdemRecords deletes up to batch expired records and reports how many
// it removed. The retention runner calls this on a cron schedule so the
// namespace stays bounded.
func SweepIdemRecords(ctx context.Context, now int64, batch int) (int, error) {
	if db == nil {
		return 0, notOpened()
	}
	if err := ctxErr(ctx); err != nil {
		return 0, err
	}
	if batch <= 0 {
		batch = 256
	}
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return 0, err
	}
	prefix := []byte(idemPrefix)
	var expired []string
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var rec models.IdempotencyRecord
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			// unreadable rows are swept too
			expired = append(expired, string(iter.Key()))
		} else if rec.ExpiresTS != 0 && rec.ExpiresTS <= now {
			expired = append(expired, string(iter.Key()))
		}
		if len(expired) >= batch {
			break
		}
	}
	ierr := iter.Error()
	iter.Close()
	if ierr != nil {
		return 0, ierr
	}

	b := db.NewBatch()
	defer b.Close()
	for _, k := range expired {
		_ = b.Delete([]byte(k), nil)
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return 0, err
	}
	if len(expired) > 0 {
		logger.Info("idempotency_swept", "removed", len(expired))
	}
	return len(expired), nil
}
