package config

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Defaults applied by Effective when neither file, env nor flags say
// otherwise.
const (
	DefaultAddr        = ":8080"
	DefaultDBPath      = "./.database"
	DefaultMaxWindow   = 100
	DefaultMaxKeyDepth = 32
	DefaultRetries     = 3
)

// Load reads and parses the YAML config file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// Addr returns the listen address derived from Address and Port.
func (c *Config) Addr() string {
	host := c.Server.Address
	port := c.Server.Port
	if host == "" && port == 0 {
		return ""
	}
	if port == 0 {
		return host
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// EffectiveConfigResult is the merged view main hands to the app.
type EffectiveConfigResult struct {
	Config *Config
	Addr   string
	DBPath string
	Source string // "flags", "config", or "env"
}

// Effective merges file, env and flags (flags win, then env, then file)
// and fills in defaults for anything still unset.
func Effective(flags Flags) (EffectiveConfigResult, error) {
	cfg, fromFile, err := ParseConfigFile(flags)
	if err != nil {
		return EffectiveConfigResult{}, err
	}
	envUsed := applyEnv(cfg)

	source := "config"
	if !fromFile {
		source = "defaults"
	}
	if envUsed {
		source = "env"
	}

	addr := cfg.Addr()
	if flags.Set["addr"] {
		addr = flags.Addr
		source = "flags"
	}
	if addr == "" {
		addr = DefaultAddr
	}

	dbPath := cfg.Server.DBPath
	if flags.Set["db"] || dbPath == "" {
		dbPath = flags.DB
	}
	if dbPath == "" {
		dbPath = DefaultDBPath
	}

	applyDefaults(cfg)
	return EffectiveConfigResult{Config: cfg, Addr: addr, DBPath: dbPath, Source: source}, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Ordering.MaxKeyDepth <= 0 {
		cfg.Ordering.MaxKeyDepth = DefaultMaxKeyDepth
	}
	if cfg.Ordering.CommitRetries <= 0 {
		cfg.Ordering.CommitRetries = DefaultRetries
	}
	if cfg.Ordering.MaxWindow <= 0 || cfg.Ordering.MaxWindow > DefaultMaxWindow {
		cfg.Ordering.MaxWindow = DefaultMaxWindow
	}
	if cfg.Server.Engine == "" {
		cfg.Server.Engine = "nethttp"
	}
	if len(cfg.Security.CORS.AllowedOrigins) == 0 {
		cfg.Security.CORS.AllowedOrigins = []string{"http://localhost:3000"}
	}
}
