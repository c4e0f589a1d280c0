package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"ideaflow/pkg/aisort"
	"ideaflow/pkg/idempotency"
	"ideaflow/pkg/models"
	"ideaflow/pkg/ordering"
	"ideaflow/pkg/store"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	require.NoError(t, store.Open(t.TempDir()))
	t.Cleanup(func() { _ = store.Close() })

	Init(Deps{
		Guard:       idempotency.New(time.Hour, time.Second),
		Resolver:    &ordering.MoveResolver{MaxDepth: 32, Retries: 3},
		Planner:     &ordering.Planner{MaxDepth: 32, Retries: 3},
		Suggester:   aisort.Heuristic{},
		MaxKeyDepth: 32,
	})

	r := mux.NewRouter()
	r.Use(Observe())
	Register(r)
	h := Middleware(MWConfig{AllowedOrigins: []string{"http://localhost:3000"}})(r)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any, hdr map[string]string) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, out.Bytes()
}

func createPostT(t *testing.T, srv *httptest.Server, title string) models.Post {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/v1/posts",
		models.CreatePostRequest{Title: title}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var p models.Post
	require.NoError(t, json.Unmarshal(body, &p))
	return p
}

func listIDs(t *testing.T, srv *httptest.Server) []string {
	t.Helper()
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/v1/posts?count=100", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Posts []models.Post `json:"posts"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	ids := make([]string, len(out.Posts))
	for i, p := range out.Posts {
		ids[i] = p.ID
	}
	return ids
}

func TestCreateAndListPosts(t *testing.T) {
	srv := newTestServer(t)

	p1 := createPostT(t, srv, "first")
	p2 := createPostT(t, srv, "second")
	p3 := createPostT(t, srv, "third")

	require.Equal(t, []string{p1.ID, p2.ID, p3.ID}, listIDs(t, srv))

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/v1/posts", nil, nil)
	require.Equal(t, "1", resp.Header.Get("X-Order-Version"))
}

func TestCreateValidation(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/v1/posts",
		models.CreatePostRequest{Title: "   "}, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/v1/posts",
		models.CreatePostRequest{Title: "ok", Status: "bogus"}, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateIdempotencyReplay(t *testing.T) {
	srv := newTestServer(t)
	hdr := map[string]string{"Idempotency-Key": "create-1"}

	resp1, body1 := doJSON(t, http.MethodPost, srv.URL+"/v1/posts",
		models.CreatePostRequest{Title: "once"}, hdr)
	require.Equal(t, http.StatusCreated, resp1.StatusCode)

	resp2, body2 := doJSON(t, http.MethodPost, srv.URL+"/v1/posts",
		models.CreatePostRequest{Title: "once"}, hdr)
	require.Equal(t, http.StatusCreated, resp2.StatusCode)
	require.Equal(t, "true", resp2.Header.Get("Idempotency-Replayed"))
	require.JSONEq(t, string(body1), string(body2))

	require.Len(t, listIDs(t, srv), 1)
}

func TestGetUpdatePatchDelete(t *testing.T) {
	srv := newTestServer(t)
	p := createPostT(t, srv, "original")

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/v1/posts/"+p.ID, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, http.MethodPut, srv.URL+"/v1/posts/"+p.ID,
		models.UpdatePostRequest{Title: "replaced", Status: "active"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got models.Post
	require.NoError(t, json.Unmarshal(body, &got))
	require.Equal(t, "replaced", got.Title)
	require.Equal(t, p.PosKey, got.PosKey)

	newTitle := "patched"
	resp, body = doJSON(t, http.MethodPatch, srv.URL+"/v1/posts/"+p.ID,
		models.PatchPostRequest{Title: &newTitle}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &got))
	require.Equal(t, "patched", got.Title)
	require.Equal(t, "active", got.Status)

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/v1/posts/"+p.ID, nil, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// soft deleted: gone from reads but still present for hard delete
	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/v1/posts/"+p.ID, nil, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/v1/posts/"+p.ID+"?hard=true", nil, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/v1/posts/"+p.ID+"?hard=true", nil, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestReorderEndpoint(t *testing.T) {
	srv := newTestServer(t)
	p1 := createPostT(t, srv, "one")
	p2 := createPostT(t, srv, "two")
	p3 := createPostT(t, srv, "three")

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/v1/posts/reorder",
		models.ReorderRequest{Order: []string{p3.ID, p1.ID, p2.ID}}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var out struct {
		Writes int `json:"writes"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	require.Equal(t, 1, out.Writes)
	require.Equal(t, []string{p3.ID, p1.ID, p2.ID}, listIDs(t, srv))

	// unknown id maps to 404
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/v1/posts/reorder",
		models.ReorderRequest{Order: []string{"ghost"}}, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	// both variants at once is a shape error
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/v1/posts/reorder",
		models.ReorderRequest{Order: []string{p1.ID}, Moves: []models.SparseMove{{ID: p2.ID}}}, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMoveEndpoint(t *testing.T) {
	srv := newTestServer(t)
	p1 := createPostT(t, srv, "one")
	p2 := createPostT(t, srv, "two")
	p3 := createPostT(t, srv, "three")

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/v1/posts/move",
		models.MoveRequest{ID: p3.ID, After: p1.ID, Before: p2.ID}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	require.Equal(t, []string{p1.ID, p3.ID, p2.ID}, listIDs(t, srv))

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/v1/posts/move",
		models.MoveRequest{ID: "ghost", After: p1.ID}, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/v1/posts/move",
		models.MoveRequest{}, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAISortEndpoint(t *testing.T) {
	srv := newTestServer(t)
	p1 := createPostT(t, srv, "one")
	p2 := createPostT(t, srv, "two")

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/v1/ai/sort", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var out struct {
		Order   []string `json:"order"`
		Source  string   `json:"source"`
		Applied bool     `json:"applied"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	require.Equal(t, "heuristic", out.Source)
	require.False(t, out.Applied)
	require.ElementsMatch(t, []string{p1.ID, p2.ID}, out.Order)
	// suggestion alone never mutates the stored order
	require.Equal(t, []string{p1.ID, p2.ID}, listIDs(t, srv))

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/v1/ai/sort?apply=true", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	require.NoError(t, json.Unmarshal(body, &out))
	require.True(t, out.Applied)
	require.Equal(t, out.Order, listIDs(t, srv))
}

func TestAISortApplyEmptyCollection(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/v1/ai/sort?apply=true", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var out struct {
		Order   []string `json:"order"`
		Applied bool     `json:"applied"`
		Writes  int      `json:"writes"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	require.True(t, out.Applied)
	require.Zero(t, out.Writes)
	require.Empty(t, out.Order)
}

func TestListPagination(t *testing.T) {
	srv := newTestServer(t)
	var want []string
	for i := 0; i < 5; i++ {
		p := createPostT(t, srv, fmt.Sprintf("post %d", i))
		want = append(want, p.ID)
	}

	var got []string
	cursor := ""
	for {
		url := srv.URL + "/v1/posts?count=2"
		if cursor != "" {
			url += "&cursor=" + cursor
		}
		resp, body := doJSON(t, http.MethodGet, url, nil, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var page struct {
			Posts      []models.Post `json:"posts"`
			NextCursor string        `json:"next_cursor"`
			HasMore    bool          `json:"has_more"`
		}
		require.NoError(t, json.Unmarshal(body, &page))
		require.LessOrEqual(t, len(page.Posts), 2)
		for _, p := range page.Posts {
			got = append(got, p.ID)
		}
		if !page.HasMore {
			break
		}
		cursor = page.NextCursor
	}
	require.Equal(t, want, got)
}

func TestListRejectsBadParams(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/v1/posts?count=-3", nil, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/v1/posts?order=sideways", nil, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/v1/posts?cursor=%21bad", nil, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListDateRangeFilter(t *testing.T) {
	srv := newTestServer(t)

	jan := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC).UnixNano()
	mar := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC).UnixNano()
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/v1/posts",
		models.CreatePostRequest{Title: "january", TargetTS: jan}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/v1/posts",
		models.CreatePostRequest{Title: "march", TargetTS: mar}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/v1/posts?from=2026-02-01", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Posts []models.Post `json:"posts"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	require.Len(t, out.Posts, 1)
	require.Equal(t, "march", out.Posts[0].Title)

	resp, body = doJSON(t, http.MethodGet,
		srv.URL+"/v1/posts?from=2026-01-01T00:00:00Z&to=2026-02-01T00:00:00Z", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &out))
	require.Len(t, out.Posts, 1)
	require.Equal(t, "january", out.Posts[0].Title)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/v1/posts?from=notadate", nil, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/v1/posts?to=notadate", nil, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestClientLogAndHealth(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/v1/log",
		map[string]any{"level": "warn", "message": "drag failed", "fields": map[string]any{"post": "p1"}}, nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/v1/log", map[string]any{"level": "info"}, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/healthz", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/v1/posts", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))

	// unlisted origins get no CORS headers
	req.Header.Set("Origin", "http://evil.example")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestOrderVersionHeaderAfterRebalance(t *testing.T) {
	srv := newTestServer(t)

	// version is reported on ordering responses
	p1 := createPostT(t, srv, "one")
	p2 := createPostT(t, srv, "two")
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/v1/posts/reorder",
		models.ReorderRequest{Order: []string{p2.ID, p1.ID}}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "1", resp.Header.Get("X-Order-Version"))

	v, err := store.OrderVersion(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, v)
}
