package api

import (
	"errors"
	"net/http"

	"ideaflow/pkg/idempotency"
	"ideaflow/pkg/logger"
	"ideaflow/pkg/ordering"
	"ideaflow/pkg/store"
	"ideaflow/pkg/utils"
)

// writeEngineError maps engine errors onto HTTP statuses. Anything not
// recognized is a 500 with the detail kept out of the response body.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ordering.ErrUnknownItem):
		utils.JSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrNotFound):
		utils.JSONError(w, http.StatusNotFound, "post not found")
	case errors.Is(err, ordering.ErrConflictingOrder):
		utils.JSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrBadCursor):
		utils.JSONError(w, http.StatusBadRequest, "invalid cursor")
	case errors.Is(err, ordering.ErrContention):
		utils.JSONError(w, http.StatusConflict, "order changed concurrently; retry")
	case errors.Is(err, idempotency.ErrDuplicateInFlight):
		utils.JSONError(w, http.StatusConflict, "request with this idempotency key is in flight")
	case errors.Is(err, idempotency.ErrRetryLater):
		utils.JSONError(w, http.StatusServiceUnavailable, "previous attempt failed recently; retry later")
	case errors.Is(err, store.ErrUnavailable):
		utils.JSONError(w, http.StatusServiceUnavailable, "store unavailable")
	default:
		logger.Error("internal_error", "error", err)
		utils.JSONError(w, http.StatusInternalServerError, "internal error")
	}
}
