package aisort

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ideaflow/pkg/models"
)

func samplePosts() []models.Post {
	return []models.Post{
		{ID: "a", Title: "groceries", CreatedTS: 100},
		{ID: "b", Title: "tax return", CreatedTS: 200, TargetTS: 500},
		{ID: "c", Title: "dentist", CreatedTS: 300, TargetTS: 400},
	}
}

func TestClientSuggest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "s3cret", r.Header.Get("X-Shared-Secret"))
		var req struct {
			Posts []scoreItem `json:"posts"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Posts, 3)
		json.NewEncoder(w).Encode(map[string]any{
			"order":  []string{"c", "b", "a"},
			"scores": map[string]float64{"c": 0.9, "b": 0.5, "a": 0.1},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "s3cret", time.Second)
	sug, err := c.Suggest(context.Background(), samplePosts())
	require.NoError(t, err)
	require.Equal(t, []string{"c", "b", "a"}, sug.Order)
	require.Equal(t, "ai", sug.Source)
	require.InDelta(t, 0.9, sug.Scores["c"], 1e-9)
}

func TestClientRejectsNonPermutation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"order": []string{"c", "b", "zzz"}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	_, err := c.Suggest(context.Background(), samplePosts())
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown or duplicate")
}

func TestClientUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	_, err := c.Suggest(context.Background(), samplePosts())
	require.Error(t, err)
}

func TestClientNotConfigured(t *testing.T) {
	c := NewClient("", "", time.Second)
	_, err := c.Suggest(context.Background(), samplePosts())
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestHeuristicOrder(t *testing.T) {
	sug, err := Heuristic{}.Suggest(context.Background(), samplePosts())
	require.NoError(t, err)
	// target-dated first by nearest date, then newest created
	require.Equal(t, []string{"c", "b", "a"}, sug.Order)
	require.Equal(t, "heuristic", sug.Source)
}

func TestCompositeFallsBack(t *testing.T) {
	c := Composite{Chain: []Suggester{NewClient("", "", time.Second), Heuristic{}}}
	sug, err := c.Suggest(context.Background(), samplePosts())
	require.NoError(t, err)
	require.Equal(t, "heuristic", sug.Source)
}
