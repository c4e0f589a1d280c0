package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"ideaflow/pkg/fracdex"
	"ideaflow/pkg/idempotency"
	"ideaflow/pkg/logger"
	"ideaflow/pkg/models"
	"ideaflow/pkg/store"
	"ideaflow/pkg/utils"
	"ideaflow/pkg/validation"
)

// listPosts handles GET /v1/posts. Pagination is cursor-based; the cursor
// is opaque and only valid for the order it was issued under.
func listPosts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	count := 0
	if s := q.Get("count"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			utils.JSONError(w, http.StatusBadRequest, "invalid count")
			return
		}
		count = n
	}
	count, err := validation.ValidateCount(count)
	if err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	order := q.Get("order")
	switch order {
	case "":
		order = store.OrderPosition
	case store.OrderPosition, store.OrderDate:
	default:
		utils.JSONError(w, http.StatusBadRequest, "order must be position or date")
		return
	}

	opts := store.ListOptions{
		Order:  order,
		Cursor: q.Get("cursor"),
		Count:  count,
		Query:  q.Get("q"),
		Status: q.Get("status"),
	}
	if tags := q.Get("tags"); tags != "" {
		opts.Tags = strings.Split(tags, ",")
	}
	if s := q.Get("from"); s != "" {
		ts, ok := utils.ParseTimeNS(s)
		if !ok {
			utils.JSONError(w, http.StatusBadRequest, "invalid from")
			return
		}
		opts.FromTS = ts
	}
	if s := q.Get("to"); s != "" {
		ts, ok := utils.ParseTimeNS(s)
		if !ok {
			utils.JSONError(w, http.StatusBadRequest, "invalid to")
			return
		}
		opts.ToTS = ts
	}

	posts, next, more, err := store.ListOrdered(r.Context(), opts)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	setOrderVersion(w, r)
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Posts      []models.Post `json:"posts"`
		NextCursor string        `json:"next_cursor,omitempty"`
		HasMore    bool          `json:"has_more"`
	}{Posts: posts, NextCursor: next, HasMore: more})
}

// createPost handles POST /v1/posts. An Idempotency-Key header makes the
// creation replay-safe: duplicates get the original response verbatim.
func createPost(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := validation.ValidateCreate(req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := r.Header.Get("Idempotency-Key")
	res, replayed, err := deps.Guard.Do(r.Context(), key, func(ctx context.Context) (idempotency.Result, error) {
		post, err := insertAtTail(ctx, req)
		if err != nil {
			return idempotency.Result{}, err
		}
		body, err := json.Marshal(post)
		if err != nil {
			return idempotency.Result{}, err
		}
		return idempotency.Result{Body: body, HTTPCode: http.StatusCreated}, nil
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if replayed {
		w.Header().Set("Idempotency-Replayed", "true")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(res.HTTPCode)
	_, _ = w.Write(res.Body)
}

// insertAtTail places a new post after the current last key. Concurrent
// creates may land on equal keys; the order index breaks ties by id.
func insertAtTail(ctx context.Context, req models.CreatePostRequest) (models.Post, error) {
	last, err := store.LastPosKey(ctx)
	if err != nil {
		return models.Post{}, err
	}
	var posKey string
	if last == "" {
		posKey = fracdex.First()
	} else {
		posKey, err = fracdex.After(last, deps.MaxKeyDepth)
		if err != nil {
			return models.Post{}, err
		}
	}

	now := utils.NowNS()
	post := models.Post{
		ID:        utils.GenPostID(),
		Title:     req.Title,
		Body:      req.Body,
		Tags:      req.Tags,
		Status:    req.Status,
		PosKey:    posKey,
		CreatedTS: now,
		UpdatedTS: now,
		TargetTS:  req.TargetTS,
	}
	if err := store.SavePost(ctx, post); err != nil {
		return models.Post{}, err
	}
	logger.Info("post_created", "id", post.ID, "pos_key", post.PosKey)
	return post, nil
}

func getPost(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	post, err := store.GetPost(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if post.Deleted {
		utils.JSONError(w, http.StatusNotFound, "post not found")
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, post)
}

// updatePost handles PUT /v1/posts/{id}: full content replace. Position is
// never touched here; moving goes through /posts/move or /posts/reorder.
func updatePost(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req models.UpdatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := validation.ValidateUpdate(req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	post, err := store.GetPost(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if post.Deleted {
		utils.JSONError(w, http.StatusNotFound, "post not found")
		return
	}
	post.Title = req.Title
	post.Body = req.Body
	post.Tags = req.Tags
	post.Status = req.Status
	post.TargetTS = req.TargetTS
	post.UpdatedTS = utils.NowNS()
	if err := store.SavePost(r.Context(), post); err != nil {
		writeEngineError(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, post)
}

// patchPost handles PATCH /v1/posts/{id}: only the provided fields change.
func patchPost(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req models.PatchPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := validation.ValidatePatch(req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	post, err := store.GetPost(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if post.Deleted {
		utils.JSONError(w, http.StatusNotFound, "post not found")
		return
	}
	if req.Title != nil {
		post.Title = *req.Title
	}
	if req.Body != nil {
		post.Body = *req.Body
	}
	if req.Tags != nil {
		post.Tags = *req.Tags
	}
	if req.Status != nil {
		post.Status = *req.Status
	}
	if req.TargetTS != nil {
		post.TargetTS = *req.TargetTS
	}
	post.UpdatedTS = utils.NowNS()
	if err := store.SavePost(r.Context(), post); err != nil {
		writeEngineError(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, post)
}

// deletePost handles DELETE /v1/posts/{id}. The default is a soft delete
// that keeps the row and its position; ?hard=true removes it entirely.
func deletePost(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	hard := r.URL.Query().Get("hard") == "true"

	var err error
	if hard {
		err = store.DeletePost(r.Context(), id)
	} else {
		err = store.SoftDeletePost(r.Context(), id, utils.NowNS())
	}
	if err != nil {
		writeEngineError(w, err)
		return
	}
	logger.Info("post_deleted", "id", id, "hard", hard)
	w.WriteHeader(http.StatusNoContent)
}
