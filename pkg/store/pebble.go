package store

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/cockroachdb/pebble"

	"ideaflow/pkg/logger"
	"ideaflow/pkg/models"
)

// Row namespaces. The order indexes key by position key (or padded target
// timestamp) so a plain pebble range scan yields posts in order.
const (
	postPrefix      = "post:"
	posIdxPrefix    = "order:pos:"
	dateIdxPrefix   = "order:date:"
	idemPrefix      = "idem:"
	orderVersionKey = "meta:order_version"
)

// idxSep separates the sortable part of an index key from the post id. It
// must sort below every fracdex digit so that a key compares as if padded
// with the lowest digit ("a!" < "a1!").
const idxSep = "!"

var (
	ErrNotFound    = errors.New("store: not found")
	ErrConflict    = errors.New("store: commit conflict")
	ErrUnavailable = errors.New("store: unavailable")
	ErrBadCursor   = errors.New("store: invalid cursor")
)

var (
	db *pebble.DB
	// dbPath remembers where the DB lives for diagnostics.
	dbPath string
	// commitMu serializes all index-mutating writes. Pebble has no
	// interactive transactions, so verify-then-batch runs under this lock;
	// reads never take it.
	commitMu sync.Mutex
)

// Open opens (or creates) a Pebble database at the given path and keeps a
// global handle for simple usage in this package.
func Open(path string) error {
	var err error
	logger.Info("opening_pebble_db", "path", path)
	db, err = pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return err
	}
	dbPath = path
	return nil
}

// Close closes the opened pebble DB if present.
func Close() error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}
	db = nil
	logger.Info("pebble_closed")
	return nil
}

// Ready reports whether the store is opened and ready.
func Ready() bool {
	return db != nil
}

// ctxErr maps a canceled or expired context onto ErrUnavailable so callers
// can distinguish timeouts from commit conflicts.
func ctxErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func notOpened() error {
	return fmt.Errorf("%w: pebble not opened; call store.Open first", ErrUnavailable)
}

func postRowKey(id string) []byte { return []byte(postPrefix + id) }

func posIdxKey(posKey, id string) []byte {
	return []byte(posIdxPrefix + posKey + idxSep + id)
}

func dateIdxKey(ts int64, id string) []byte {
	return []byte(fmt.Sprintf("%s%020d%s%s", dateIdxPrefix, ts, idxSep, id))
}

// GetPost returns the stored post for id or ErrNotFound.
func GetPost(ctx context.Context, id string) (models.Post, error) {
	if db == nil {
		return models.Post{}, notOpened()
	}
	if err := ctxErr(ctx); err != nil {
		return models.Post{}, err
	}
	v, closer, err := db.Get(postRowKey(id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return models.Post{}, fmt.Errorf("%w: post %s", ErrNotFound, id)
		}
		return models.Post{}, err
	}
	defer closer.Close()
	var p models.Post
	if err := json.Unmarshal(v, &p); err != nil {
		return models.Post{}, fmt.Errorf("invalid post row %s: %w", id, err)
	}
	return p, nil
}

// SavePost inserts or replaces a post row and keeps both order indexes in
// step with it. Index rows for a previous position/date are removed in the
// same batch.
func SavePost(ctx context.Context, p models.Post) error {
	if db == nil {
		return notOpened()
	}
	if err := ctxErr(ctx); err != nil {
		return err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal post: %w", err)
	}

	commitMu.Lock()
	defer commitMu.Unlock()

	b := db.NewBatch()
	defer b.Close()
	if prev, err := getPostLocked(p.ID); err == nil {
		if prev.PosKey != p.PosKey {
			_ = b.Delete(posIdxKey(prev.PosKey, p.ID), nil)
		}
		if prev.TargetTS != p.TargetTS {
			_ = b.Delete(dateIdxKey(prev.TargetTS, p.ID), nil)
		}
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	_ = b.Set(postRowKey(p.ID), data, nil)
	_ = b.Set(posIdxKey(p.PosKey, p.ID), []byte(p.ID), nil)
	_ = b.Set(dateIdxKey(p.TargetTS, p.ID), []byte(p.ID), nil)
	if err := b.Commit(pebble.Sync); err != nil {
		logger.Error("save_post_failed", "id", p.ID, "error", err)
		return err
	}
	logger.Debug("post_saved", "id", p.ID, "pos_key", p.PosKey)
	return nil
}

// getPostLocked reads a post without ctx checks; callers hold commitMu or
// accept a point-in-time read.
func getPostLocked(id string) (models.Post, error) {
	v, closer, err := db.Get(postRowKey(id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return models.Post{}, fmt.Errorf("%w: post %s", ErrNotFound, id)
		}
		return models.Post{}, err
	}
	defer closer.Close()
	var p models.Post
	if err := json.Unmarshal(v, &p); err != nil {
		return models.Post{}, fmt.Errorf("invalid post row %s: %w", id, err)
	}
	return p, nil
}

// SoftDeletePost flags the post deleted and stamps the deletion time. The
// post keeps its order index entries so surrounding keys stay stable; list
// reads filter it out.
func SoftDeletePost(ctx context.Context, id string, ts int64) error {
	if db == nil {
		return notOpened()
	}
	if err := ctxErr(ctx); err != nil {
		return err
	}
	commitMu.Lock()
	defer commitMu.Unlock()
	p, err := getPostLocked(id)
	if err != nil {
		return err
	}
	p.Deleted = true
	p.DeletedTS = ts
	data, _ := json.Marshal(p)
	if err := db.Set(postRowKey(id), data, pebble.Sync); err != nil {
		logger.Error("soft_delete_failed", "id", id, "error", err)
		return err
	}
	logger.Info("post_soft_deleted", "id", id)
	return nil
}

// DeletePost removes the post row and its index entries.
func DeletePost(ctx context.Context, id string) error {
	if db == nil {
		return notOpened()
	}
	if err := ctxErr(ctx); err != nil {
		return err
	}
	commitMu.Lock()
	defer commitMu.Unlock()
	p, err := getPostLocked(id)
	if err != nil {
		return err
	}
	b := db.NewBatch()
	defer b.Close()
	_ = b.Delete(postRowKey(id), nil)
	_ = b.Delete(posIdxKey(p.PosKey, id), nil)
	_ = b.Delete(dateIdxKey(p.TargetTS, id), nil)
	if err := b.Commit(pebble.Sync); err != nil {
		logger.Error("delete_post_failed", "id", id, "error", err)
		return err
	}
	logger.Info("post_deleted", "id", id)
	return nil
}

// Orderings accepted by ListOrdered.
const (
	OrderPosition = "position"
	OrderDate     = "date"
)

// ListOptions narrows a windowed list read. Cursor is opaque (the encoded
// index key of the last row of the previous page), never a row offset, so
// pages stay stable under concurrent inserts.
type ListOptions struct {
	Order  string
	Cursor string
	Count  int

	// Filters, passed through from the query layer.
	Query  string
	Tags   []string
	Status string
	FromTS int64
	ToTS   int64
}

// ListOrdered returns up to opts.Count posts in the requested order
// starting after opts.Cursor, plus the cursor for the next page and
// whether more rows remain. Soft-deleted posts are skipped.
func ListOrdered(ctx context.Context, opts ListOptions) ([]models.Post, string, bool, error) {
	if db == nil {
		return nil, "", false, notOpened()
	}
	if err := ctxErr(ctx); err != nil {
		return nil, "", false, err
	}
	prefix := posIdxPrefix
	if opts.Order == OrderDate {
		prefix = dateIdxPrefix
	}
	start := []byte(prefix)
	if opts.Cursor != "" {
		k, err := DecodeCursor(opts.Cursor)
		if err != nil || !strings.HasPrefix(k, prefix) {
			return nil, "", false, ErrBadCursor
		}
		// resume strictly after the last returned row
		start = append([]byte(k), 0x00)
	}

	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, "", false, err
	}
	defer iter.Close()

	var out []models.Post
	var lastIdxKey string
	more := false
	for iter.SeekGE(start); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), []byte(prefix)) {
			break
		}
		if err := ctxErr(ctx); err != nil {
			return nil, "", false, err
		}
		id := string(iter.Value())
		p, err := getPostLocked(id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue // dangling index row
			}
			return nil, "", false, err
		}
		if p.Deleted || !matchFilters(p, opts) {
			continue
		}
		if len(out) >= opts.Count {
			more = true
			break
		}
		out = append(out, p)
		lastIdxKey = string(iter.Key())
	}
	if err := iter.Error(); err != nil {
		return nil, "", false, err
	}
	next := ""
	if lastIdxKey != "" {
		next = EncodeCursor(lastIdxKey)
	}
	return out, next, more, nil
}

func matchFilters(p models.Post, opts ListOptions) bool {
	if opts.Status != "" && p.Status != opts.Status {
		return false
	}
	if opts.FromTS != 0 && p.TargetTS < opts.FromTS {
		return false
	}
	if opts.ToTS != 0 && p.TargetTS > opts.ToTS {
		return false
	}
	if opts.Query != "" {
		q := strings.ToLower(opts.Query)
		if !strings.Contains(strings.ToLower(p.Title), q) &&
			!strings.Contains(strings.ToLower(p.Body), q) {
			return false
		}
	}
	for _, want := range opts.Tags {
		found := false
		for _, t := range p.Tags {
			if t == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// AllOrdered returns every post (soft-deleted included) in position order.
// The planner works over this full view.
func AllOrdered(ctx context.Context) ([]models.Post, error) {
	if db == nil {
		return nil, notOpened()
	}
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	prefix := []byte(posIdxPrefix)
	var out []models.Post
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		p, err := getPostLocked(string(iter.Value()))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, p)
	}
	return out, iter.Error()
}

// LastPosKey returns the position key of the tail post, or "" when the
// collection is empty.
func LastPosKey(ctx context.Context) (string, error) {
	if db == nil {
		return "", notOpened()
	}
	if err := ctxErr(ctx); err != nil {
		return "", err
	}
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return "", err
	}
	defer iter.Close()
	// seek to the first key after the position index namespace, then step back
	upper := posIdxPrefix[:len(posIdxPrefix)-1] + string(posIdxPrefix[len(posIdxPrefix)-1]+1)
	if !iter.SeekLT([]byte(upper)) {
		return "", nil
	}
	k := string(iter.Key())
	if !strings.HasPrefix(k, posIdxPrefix) {
		return "", nil
	}
	posKey, _, ok := splitPosIdxKey(k)
	if !ok {
		return "", fmt.Errorf("malformed index key %q", k)
	}
	return posKey, nil
}

// splitPosIdxKey decomposes a position index key into (posKey, id).
func splitPosIdxKey(k string) (string, string, bool) {
	rest := strings.TrimPrefix(k, posIdxPrefix)
	if rest == k {
		return "", "", false
	}
	i := strings.LastIndex(rest, idxSep)
	if i < 0 {
		return "", "", false
	}
	return rest[:i], rest[i+1:], true
}

// EncodeCursor wraps a raw index key into an opaque page token.
func EncodeCursor(idxKey string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(idxKey))
}

// DecodeCursor unwraps an opaque page token.
func DecodeCursor(c string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(c)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// OrderVersion returns the collection's current order version. Fresh
// databases report 1.
func OrderVersion(ctx context.Context) (uint64, error) {
	if db == nil {
		return 0, notOpened()
	}
	if err := ctxErr(ctx); err != nil {
		return 0, err
	}
	v, closer, err := db.Get([]byte(orderVersionKey))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return 1, nil
		}
		return 0, err
	}
	defer closer.Close()
	n, err := strconv.ParseUint(string(v), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid order version row: %w", err)
	}
	return n, nil
}

func bumpOrderVersionLocked(b *pebble.Batch) error {
	cur := uint64(1)
	if v, closer, err := db.Get([]byte(orderVersionKey)); err == nil {
		if n, perr := strconv.ParseUint(string(v), 10, 64); perr == nil {
			cur = n
		}
		closer.Close()
	}
	return b.Set([]byte(orderVersionKey), []byte(strconv.FormatUint(cur+1, 10)), nil)
}
