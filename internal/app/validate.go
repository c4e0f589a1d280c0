package app

import (
	"fmt"

	"ideaflow/pkg/config"
	"ideaflow/pkg/httpx"
)

// validateConfig rejects configs that cannot produce a working server.
func validateConfig(eff config.EffectiveConfigResult) error {
	if eff.DBPath == "" {
		return fmt.Errorf("db path is required (--db or IDEAFLOW_DB_PATH)")
	}
	if eff.Addr == "" {
		return fmt.Errorf("listen address is required")
	}

	srv := eff.Config.Server
	switch srv.Engine {
	case "", httpx.EngineNetHTTP, httpx.EngineFastHTTP:
	default:
		return fmt.Errorf("unknown server engine: %s", srv.Engine)
	}
	if (srv.TLS.CertFile == "") != (srv.TLS.KeyFile == "") {
		return fmt.Errorf("tls requires both cert_file and key_file")
	}

	ord := eff.Config.Ordering
	if ord.MaxKeyDepth < 0 || ord.CommitRetries < 0 || ord.MaxWindow < 0 {
		return fmt.Errorf("ordering limits cannot be negative")
	}
	if eff.Config.Security.RateLimit.RPS < 0 {
		return fmt.Errorf("rate limit rps cannot be negative")
	}
	return nil
}
