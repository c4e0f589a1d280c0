// Package app wires configuration, storage, the ordering engine and the
// HTTP surface into one runnable server.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"

	"ideaflow/internal/retention"
	"ideaflow/pkg/aisort"
	"ideaflow/pkg/api"
	"ideaflow/pkg/config"
	"ideaflow/pkg/idempotency"
	"ideaflow/pkg/ordering"
	"ideaflow/pkg/state"
	"ideaflow/pkg/store"
	"ideaflow/pkg/validation"
)

// App encapsulates the server components and lifecycle.
type App struct {
	eff     config.EffectiveConfigResult
	version string
}

// New validates config, opens the store and wires the engine. It does not
// start serving; call Run to start and block until shutdown.
func New(eff config.EffectiveConfigResult, version string) (*App, error) {
	_ = godotenv.Load(".env")

	if err := validateConfig(eff); err != nil {
		return nil, err
	}

	initValidation(eff.Config)

	paths, err := state.EnsureDirs(eff.DBPath)
	if err != nil {
		return nil, fmt.Errorf("bad data path %s: %w", eff.DBPath, err)
	}
	if err := store.Open(paths.Store); err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", paths.Store, err)
	}

	ord := eff.Config.Ordering
	api.Init(api.Deps{
		Guard: idempotency.New(
			eff.Config.Idempotency.TTL.Duration(),
			eff.Config.Idempotency.RetryAfter.Duration(),
		),
		Resolver:    &ordering.MoveResolver{MaxDepth: ord.MaxKeyDepth, Retries: ord.CommitRetries},
		Planner:     &ordering.Planner{MaxDepth: ord.MaxKeyDepth, Retries: ord.CommitRetries},
		Suggester:   buildSuggester(eff.Config.AISort),
		MaxKeyDepth: ord.MaxKeyDepth,
	})

	return &App{eff: eff, version: version}, nil
}

// Run starts the retention sweeper and the HTTP server and blocks until
// ctx is cancelled or a fatal server error occurs.
func (a *App) Run(ctx context.Context) error {
	stopRetention, err := retention.Start(ctx, a.eff.Config.Retention)
	if err != nil {
		return err
	}
	defer stopRetention()
	defer func() { _ = store.Close() }()

	go store.Monitor(ctx, 30*time.Second)

	a.printBanner()
	return a.serveHTTP(ctx)
}

// buildSuggester chains the remote scorer (when configured) with the
// heuristic fallback.
func buildSuggester(cfg config.AISortConfig) aisort.Suggester {
	chain := []aisort.Suggester{}
	if cfg.Endpoint != "" {
		chain = append(chain, aisort.NewClient(cfg.Endpoint, cfg.SharedSecret, cfg.Timeout.Duration()))
	}
	chain = append(chain, aisort.Heuristic{})
	return aisort.Composite{Chain: chain}
}

// initValidation installs request bounds from config.
func initValidation(cfg *config.Config) {
	validation.SetRules(validation.Rules{
		MaxTitleLen: cfg.Ordering.MaxTitleLen,
		MaxBodyLen:  cfg.Ordering.MaxBodyLen,
		MaxWindow:   cfg.Ordering.MaxWindow,
	})
}
