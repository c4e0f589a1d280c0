// Package aisort produces suggested orderings for the collection. The
// primary implementation calls an external scoring service; a heuristic
// fallback keeps the endpoint useful when no service is configured or the
// call fails.
package aisort

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/valyala/fasthttp"

	"ideaflow/pkg/logger"
	"ideaflow/pkg/models"
)

// Suggestion is a proposed full ordering of the collection. Scores are
// optional per-id weights from the scorer; Source names which suggester
// produced it.
type Suggestion struct {
	Order  []string           `json:"order"`
	Scores map[string]float64 `json:"scores,omitempty"`
	Source string             `json:"source"`
}

// Suggester proposes an ordering for the given posts. Implementations must
// return a permutation of the input ids.
type Suggester interface {
	Suggest(ctx context.Context, posts []models.Post) (Suggestion, error)
}

// ErrNotConfigured means no upstream endpoint is set.
var ErrNotConfigured = errors.New("ai sort endpoint not configured")

// Client calls an external scoring service over HTTP. The request carries
// the posts (id, title, tags, timestamps); the response is expected to be
// {"order": [...], "scores": {...}}.
type Client struct {
	Endpoint     string
	SharedSecret string
	Timeout      time.Duration

	httpc *fasthttp.Client
}

// NewClient builds a Client for endpoint. Timeout bounds the whole call.
func NewClient(endpoint, sharedSecret string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		Endpoint:     endpoint,
		SharedSecret: sharedSecret,
		Timeout:      timeout,
		httpc:        &fasthttp.Client{ReadTimeout: timeout, WriteTimeout: timeout},
	}
}

type scoreItem struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Tags      []string `json:"tags,omitempty"`
	Status    string   `json:"status,omitempty"`
	CreatedTS int64    `json:"created_ts"`
	TargetTS  int64    `json:"target_ts,omitempty"`
}

type scoreResponse struct {
	Order  []string           `json:"order"`
	Scores map[string]float64 `json:"scores"`
}

// Suggest posts the collection to the scoring service and validates that
// the reply is a permutation of the input.
func (c *Client) Suggest(ctx context.Context, posts []models.Post) (Suggestion, error) {
	if c.Endpoint == "" {
		return Suggestion{}, ErrNotConfigured
	}
	items := make([]scoreItem, 0, len(posts))
	for _, p := range posts {
		items = append(items, scoreItem{
			ID:        p.ID,
			Title:     p.Title,
			Tags:      p.Tags,
			Status:    p.Status,
			CreatedTS: p.CreatedTS,
			TargetTS:  p.TargetTS,
		})
	}
	body, err := json.Marshal(map[string]any{"posts": items})
	if err != nil {
		return Suggestion{}, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.Endpoint)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	if c.SharedSecret != "" {
		req.Header.Set("X-Shared-Secret", c.SharedSecret)
	}
	req.SetBody(body)

	timeout := c.Timeout
	if dl, ok := ctx.Deadline(); ok {
		if until := time.Until(dl); until < timeout {
			timeout = until
		}
	}
	if err := c.httpc.DoTimeout(req, resp, timeout); err != nil {
		return Suggestion{}, fmt.Errorf("ai sort request: %w", err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return Suggestion{}, fmt.Errorf("ai sort upstream returned %d", resp.StatusCode())
	}

	var sr scoreResponse
	if err := json.Unmarshal(resp.Body(), &sr); err != nil {
		return Suggestion{}, fmt.Errorf("ai sort response: %w", err)
	}
	if err := checkPermutation(posts, sr.Order); err != nil {
		return Suggestion{}, err
	}
	return Suggestion{Order: sr.Order, Scores: sr.Scores, Source: "ai"}, nil
}

// Heuristic orders without any upstream: posts with a target date come
// first by nearest date, the rest follow newest-created first.
type Heuristic struct{}

func (Heuristic) Suggest(_ context.Context, posts []models.Post) (Suggestion, error) {
	ordered := append([]models.Post(nil), posts...)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if (a.TargetTS != 0) != (b.TargetTS != 0) {
			return a.TargetTS != 0
		}
		if a.TargetTS != 0 {
			return a.TargetTS < b.TargetTS
		}
		return a.CreatedTS > b.CreatedTS
	})
	out := Suggestion{Order: make([]string, len(ordered)), Source: "heuristic"}
	for i, p := range ordered {
		out.Order[i] = p.ID
	}
	return out, nil
}

// Composite tries each suggester in turn and returns the first success.
type Composite struct {
	Chain []Suggester
}

func (c Composite) Suggest(ctx context.Context, posts []models.Post) (Suggestion, error) {
	var lastErr error
	for _, s := range c.Chain {
		sug, err := s.Suggest(ctx, posts)
		if err == nil {
			return sug, nil
		}
		lastErr = err
		if !errors.Is(err, ErrNotConfigured) {
			logger.Warn("ai_sort_fallback", "error", err)
		}
	}
	if lastErr == nil {
		lastErr = errors.New("no suggesters configured")
	}
	return Suggestion{}, lastErr
}

func checkPermutation(posts []models.Post, order []string) error {
	if len(order) != len(posts) {
		return fmt.Errorf("upstream order has %d ids, want %d", len(order), len(posts))
	}
	want := make(map[string]struct{}, len(posts))
	for _, p := range posts {
		want[p.ID] = struct{}{}
	}
	for _, id := range order {
		if _, ok := want[id]; !ok {
			return fmt.Errorf("upstream order has unknown or duplicate id %s", id)
		}
		delete(want, id)
	}
	return nil
}
