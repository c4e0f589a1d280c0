package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Config is the main configuration struct.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Security    SecurityConfig    `yaml:"security"`
	Logging     LoggingConfig     `yaml:"logging"`
	Ordering    OrderingConfig    `yaml:"ordering"`
	Idempotency IdempotencyConfig `yaml:"idempotency"`
	Retention   RetentionConfig   `yaml:"retention"`
	AISort      AISortConfig      `yaml:"ai_sort"`
}

// ServerConfig holds http and storage settings.
type ServerConfig struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
	DBPath  string `yaml:"db_path"`
	// Engine selects the serving stack: "nethttp" (default) or "fasthttp".
	Engine       string    `yaml:"engine"`
	MaxBodyBytes SizeBytes `yaml:"max_body_bytes"`
	TLS          TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate configuration.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// SecurityConfig holds CORS and rate limit settings.
type SecurityConfig struct {
	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`
	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rate_limit"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// OrderingConfig tunes the sparse-key engine.
type OrderingConfig struct {
	// MaxKeyDepth caps fracdex key length before a forced rebalance.
	MaxKeyDepth int `yaml:"max_key_depth"`
	// CommitRetries bounds optimistic resolve-then-commit cycles.
	CommitRetries int `yaml:"commit_retries"`
	// MaxWindow caps the `count` parameter of windowed list reads.
	MaxWindow int `yaml:"max_window"`
	// MaxTitleLen / MaxBodyLen bound incoming content fields.
	MaxTitleLen int `yaml:"max_title_len"`
	MaxBodyLen  int `yaml:"max_body_len"`
}

// IdempotencyConfig controls creation-request deduplication.
type IdempotencyConfig struct {
	TTL        Duration `yaml:"ttl"`
	RetryAfter Duration `yaml:"retry_after"`
}

// RetentionConfig holds configuration for the idempotency-record sweeper.
type RetentionConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Cron      string `yaml:"cron"`
	BatchSize int    `yaml:"batch_size"`
}

// AISortConfig points at the external scoring service. An empty endpoint
// disables the remote call and the heuristic fallback answers directly.
type AISortConfig struct {
	Endpoint     string   `yaml:"endpoint"`
	SharedSecret string   `yaml:"shared_secret"`
	Timeout      Duration `yaml:"timeout"`
}

// SizeBytes represents a number of bytes, unmarshaled from human-friendly
// strings like "64MB" or plain integers.
type SizeBytes int64

func (s *SizeBytes) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*s = 0
		return nil
	}
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*s = 0
		return nil
	}
	if v, err := humanize.ParseBytes(raw); err == nil {
		*s = SizeBytes(v)
		return nil
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*s = SizeBytes(i)
		return nil
	}
	return fmt.Errorf("invalid size value: %q", node.Value)
}

func (s SizeBytes) Int64() int64 { return int64(s) }

// Duration is a wrapper around time.Duration that supports YAML parsing
// from strings like "100ms" or plain numbers (interpreted as seconds).
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*d = Duration(0)
		return nil
	}
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*d = Duration(0)
		return nil
	}
	if td, err := time.ParseDuration(raw); err == nil {
		*d = Duration(td)
		return nil
	}
	// allow numeric seconds
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		*d = Duration(time.Duration(f * float64(time.Second)))
		return nil
	}
	return fmt.Errorf("invalid duration value: %q", node.Value)
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }
