package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	return path
}

func TestLoadParsesWrapperTypes(t *testing.T) {
	path := writeConfig(t, `
server:
  address: 127.0.0.1
  port: 9090
  db_path: /tmp/ideaflow
  engine: fasthttp
  max_body_bytes: 2MB
ordering:
  max_key_depth: 16
  max_window: 50
idempotency:
  ttl: 48h
  retry_after: 500ms
ai_sort:
  endpoint: http://scorer:9000/score
  timeout: 2s
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9090", cfg.Addr())
	require.Equal(t, "fasthttp", cfg.Server.Engine)
	require.EqualValues(t, 2*1000*1000, cfg.Server.MaxBodyBytes.Int64())
	require.Equal(t, 16, cfg.Ordering.MaxKeyDepth)
	require.Equal(t, 48*time.Hour, cfg.Idempotency.TTL.Duration())
	require.Equal(t, 500*time.Millisecond, cfg.Idempotency.RetryAfter.Duration())
	require.Equal(t, 2*time.Second, cfg.AISort.Timeout.Duration())
}

func TestDurationAcceptsNumericSeconds(t *testing.T) {
	path := writeConfig(t, "idempotency:\n  ttl: 90\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 90*time.Second, cfg.Idempotency.TTL.Duration())
}

func TestEffectiveDefaultsWhenNoFile(t *testing.T) {
	flags := Flags{Config: filepath.Join(t.TempDir(), "missing.yaml"), Set: map[string]bool{"config": true}}
	eff, err := Effective(flags)
	require.NoError(t, err)
	require.Equal(t, "defaults", eff.Source)
	require.Equal(t, DefaultAddr, eff.Addr)
	require.Equal(t, DefaultDBPath, eff.DBPath)
	require.Equal(t, DefaultMaxKeyDepth, eff.Config.Ordering.MaxKeyDepth)
	require.Equal(t, DefaultRetries, eff.Config.Ordering.CommitRetries)
	require.Equal(t, "nethttp", eff.Config.Server.Engine)
}

func TestEffectivePrecedence(t *testing.T) {
	path := writeConfig(t, `
server:
  address: filehost
  port: 7000
  db_path: /from/file
`)
	t.Setenv("IDEAFLOW_ADDR", "envhost:7001")
	t.Setenv("IDEAFLOW_LOG_LEVEL", "debug")

	// env overlays the file
	eff, err := Effective(Flags{Config: path, Set: map[string]bool{"config": true}})
	require.NoError(t, err)
	require.Equal(t, "env", eff.Source)
	require.Equal(t, "envhost:7001", eff.Addr)
	require.Equal(t, "/from/file", eff.DBPath)
	require.Equal(t, "debug", eff.Config.Logging.Level)

	// explicit flags beat both
	eff, err = Effective(Flags{
		Addr:   ":9999",
		DB:     "/from/flag",
		Config: path,
		Set:    map[string]bool{"config": true, "addr": true, "db": true},
	})
	require.NoError(t, err)
	require.Equal(t, "flags", eff.Source)
	require.Equal(t, ":9999", eff.Addr)
	require.Equal(t, "/from/flag", eff.DBPath)
}

func TestEffectiveWindowCap(t *testing.T) {
	path := writeConfig(t, "ordering:\n  max_window: 10000\n")
	eff, err := Effective(Flags{Config: path, Set: map[string]bool{"config": true}})
	require.NoError(t, err)
	require.Equal(t, DefaultMaxWindow, eff.Config.Ordering.MaxWindow)
}
