// Package retention sweeps expired idempotency records on a cron schedule
// so the record namespace stays bounded.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"ideaflow/pkg/config"
	"ideaflow/pkg/logger"
	"ideaflow/pkg/store"
)

// Start launches the sweep scheduler if enabled and returns a cancel func.
func Start(ctx context.Context, cfg config.RetentionConfig) (context.CancelFunc, error) {
	if !cfg.Enabled {
		logger.Info("retention_disabled")
		return func() {}, nil
	}

	cronExpr := cfg.Cron
	if cronExpr == "" {
		// daily at 02:00
		cronExpr = "0 2 * * *"
	}
	if !gronx.IsValid(cronExpr) {
		return nil, fmt.Errorf("invalid retention cron expression: %s", cfg.Cron)
	}

	logger.Info("retention_enabled", "cron", cronExpr, "batch", cfg.BatchSize)
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, cronExpr, cfg.BatchSize)
	return cancel, nil
}

// runScheduler sleeps until each next cron tick and runs a sweep.
func runScheduler(ctx context.Context, cronExpr string, batch int) {
	for {
		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("retention_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
				continue
			case <-ctx.Done():
				return
			}
		}

		select {
		case <-time.After(time.Until(next)):
			if err := RunOnce(ctx, batch); err != nil {
				logger.Error("retention_run_error", "error", err)
			}
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		}
	}
}

// RunOnce performs a single sweep pass.
func RunOnce(ctx context.Context, batch int) error {
	start := time.Now()
	removed, err := store.SweepIdemRecords(ctx, time.Now().UTC().UnixNano(), batch)
	if err != nil {
		return err
	}
	logger.Info("retention_run_complete", "removed", removed, "took", time.Since(start).String())
	return nil
}
