package api

import (
	"encoding/json"
	"net/http"

	"ideaflow/pkg/logger"
	"ideaflow/pkg/models"
	"ideaflow/pkg/store"
	"ideaflow/pkg/utils"
	"ideaflow/pkg/validation"
)

// reorderPosts handles POST /v1/posts/reorder: either a full target order
// or a sparse set of index placements. The response reports how many rows
// were actually rewritten.
func reorderPosts(w http.ResponseWriter, r *http.Request) {
	var req models.ReorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := validation.ValidateReorder(req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	writes, err := deps.Planner.Apply(r.Context(), req)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	setOrderVersion(w, r)
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Writes int `json:"writes"`
	}{Writes: writes})
}

// movePost handles POST /v1/posts/move: relocates one post between two
// named neighbors.
func movePost(w http.ResponseWriter, r *http.Request) {
	var req models.MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := validation.ValidateMove(req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	post, err := deps.Resolver.Move(r.Context(), req)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	setOrderVersion(w, r)
	_ = utils.JSONWrite(w, http.StatusOK, post)
}

// aiSort handles POST /v1/ai/sort. By default it only returns the
// suggested order; ?apply=true commits it through the reorder planner.
func aiSort(w http.ResponseWriter, r *http.Request) {
	all, err := store.AllOrdered(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	visible := all[:0:0]
	for _, p := range all {
		if !p.Deleted {
			visible = append(visible, p)
		}
	}

	sug, err := deps.Suggester.Suggest(r.Context(), visible)
	if err != nil {
		utils.JSONError(w, http.StatusBadGateway, err.Error())
		return
	}

	applied := false
	writes := 0
	if r.URL.Query().Get("apply") == "true" {
		// applying an empty suggestion (empty collection) is a no-op
		if len(sug.Order) > 0 {
			writes, err = deps.Planner.Apply(r.Context(), models.ReorderRequest{Order: sug.Order})
			if err != nil {
				writeEngineError(w, err)
				return
			}
		}
		applied = true
		logger.Info("ai_sort_applied", "source", sug.Source, "writes", writes)
	}

	setOrderVersion(w, r)
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Order   []string           `json:"order"`
		Scores  map[string]float64 `json:"scores,omitempty"`
		Source  string             `json:"source"`
		Applied bool               `json:"applied"`
		Writes  int                `json:"writes,omitempty"`
	}{Order: sug.Order, Scores: sug.Scores, Source: sug.Source, Applied: applied, Writes: writes})
}

// clientLog handles POST /v1/log: frontend events forwarded into the
// server log so client-side failures show up next to server ones.
func clientLog(w http.ResponseWriter, r *http.Request) {
	var ev struct {
		Level   string         `json:"level"`
		Message string         `json:"message"`
		Fields  map[string]any `json:"fields,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if ev.Message == "" {
		utils.JSONError(w, http.StatusBadRequest, "message is required")
		return
	}
	args := []any{"client", true, "remote", r.RemoteAddr}
	for k, v := range ev.Fields {
		args = append(args, "client_"+k, v)
	}
	switch ev.Level {
	case "error":
		logger.Error(ev.Message, args...)
	case "warn":
		logger.Warn(ev.Message, args...)
	default:
		logger.Info(ev.Message, args...)
	}
	w.WriteHeader(http.StatusAccepted)
}
