// Package api exposes the posting and ordering engine over HTTP.
package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"ideaflow/pkg/aisort"
	"ideaflow/pkg/idempotency"
	"ideaflow/pkg/ordering"
	"ideaflow/pkg/store"
	"ideaflow/pkg/utils"
)

// Deps carries the wired engine components the handlers call into.
type Deps struct {
	Guard     *idempotency.Guard
	Resolver  *ordering.MoveResolver
	Planner   *ordering.Planner
	Suggester aisort.Suggester

	MaxKeyDepth int
}

var deps Deps

// Init installs the handler dependencies. Must run before Register.
func Init(d Deps) { deps = d }

// Register mounts all versioned routes plus the health probe on r.
func Register(r *mux.Router) {
	r.HandleFunc("/healthz", healthz).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/posts", listPosts).Methods(http.MethodGet)
	v1.HandleFunc("/posts", createPost).Methods(http.MethodPost)
	v1.HandleFunc("/posts/reorder", reorderPosts).Methods(http.MethodPost)
	v1.HandleFunc("/posts/move", movePost).Methods(http.MethodPost)
	v1.HandleFunc("/posts/{id}", getPost).Methods(http.MethodGet)
	v1.HandleFunc("/posts/{id}", updatePost).Methods(http.MethodPut)
	v1.HandleFunc("/posts/{id}", patchPost).Methods(http.MethodPatch)
	v1.HandleFunc("/posts/{id}", deletePost).Methods(http.MethodDelete)
	v1.HandleFunc("/ai/sort", aiSort).Methods(http.MethodPost)
	v1.HandleFunc("/log", clientLog).Methods(http.MethodPost)
}

func healthz(w http.ResponseWriter, r *http.Request) {
	if !store.Ready() {
		utils.JSONError(w, http.StatusServiceUnavailable, "store not ready")
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
}

// setOrderVersion stamps the response with the current order epoch so
// clients can detect that a rebalance invalidated cached keys.
func setOrderVersion(w http.ResponseWriter, r *http.Request) {
	if v, err := store.OrderVersion(r.Context()); err == nil {
		w.Header().Set("X-Order-Version", strconv.FormatUint(v, 10))
	}
}
