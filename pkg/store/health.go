package store

import (
	"context"
	"time"

	"ideaflow/pkg/logger"
	"ideaflow/pkg/telemetry"
)

// walWarnBytes is the WAL size above which the monitor starts warning.
const walWarnBytes = 1 << 30

// Monitor polls pebble metrics into the telemetry gauges until ctx is
// cancelled. It is purely observational; commits stay synchronous.
func Monitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if db == nil {
				continue
			}
			m := db.Metrics()
			wal := int64(m.WAL.Size)
			disk := int64(m.DiskSpaceUsage())
			telemetry.StoreWALBytes.Set(float64(wal))
			telemetry.StoreDiskBytes.Set(float64(disk))
			if wal >= walWarnBytes {
				logger.Warn("store_wal_large", "wal_bytes", wal, "disk_bytes", disk)
			}
		}
	}
}
