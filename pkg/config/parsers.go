package config

import (
	"flag"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// Flags holds parsed command-line flag values and which were set.
type Flags struct {
	Addr   string
	DB     string
	Config string
	Set    map[string]bool
}

// ParseConfigFlags parses command-line flags and returns them as a Flags struct.
func ParseConfigFlags() Flags {
	addrPtr := flag.String("addr", DefaultAddr, "HTTP listen address")
	dbPtr := flag.String("db", DefaultDBPath, "Pebble DB path")
	cfgPtr := flag.String("config", "./config.yaml", "Path to config file")
	flag.Parse()
	setFlags := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	return Flags{Addr: *addrPtr, DB: *dbPtr, Config: *cfgPtr, Set: setFlags}
}

// ResolveConfigPath picks the config file path: an explicit flag wins over
// the IDEAFLOW_CONFIG env var, which wins over the flag default.
func ResolveConfigPath(flagVal string, flagSet bool) string {
	if flagSet {
		return flagVal
	}
	if v := os.Getenv("IDEAFLOW_CONFIG"); v != "" {
		return v
	}
	return flagVal
}

// ParseConfigFile resolves the config path and loads the YAML file. A
// missing file is not an error; it yields an empty config.
func ParseConfigFile(flags Flags) (*Config, bool, error) {
	cfgPath := ResolveConfigPath(flags.Config, flags.Set["config"])
	cfg, err := Load(cfgPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, false, nil
		}
		return nil, false, err
	}
	return cfg, true, nil
}

// applyEnv overlays IDEAFLOW_* environment variables onto cfg and reports
// whether any were present.
func applyEnv(cfg *Config) bool {
	used := false

	if v := os.Getenv("IDEAFLOW_ADDR"); v != "" {
		used = true
		if h, p, err := net.SplitHostPort(v); err == nil {
			cfg.Server.Address = h
			if pi, err := strconv.Atoi(p); err == nil {
				cfg.Server.Port = pi
			}
		} else {
			cfg.Server.Address = v
		}
	}
	if v := os.Getenv("IDEAFLOW_DB_PATH"); v != "" {
		used = true
		cfg.Server.DBPath = v
	}
	if v := os.Getenv("IDEAFLOW_LOG_LEVEL"); v != "" {
		used = true
		cfg.Logging.Level = v
	}
	if v := os.Getenv("IDEAFLOW_CORS_ORIGINS"); v != "" {
		used = true
		cfg.Security.CORS.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("IDEAFLOW_AI_ENDPOINT"); v != "" {
		used = true
		cfg.AISort.Endpoint = v
	}
	if v := os.Getenv("IDEAFLOW_AI_SHARED_SECRET"); v != "" {
		used = true
		cfg.AISort.SharedSecret = v
	}
	if v := os.Getenv("IDEAFLOW_IDEM_TTL"); v != "" {
		used = true
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Idempotency.TTL = Duration(d)
		}
	}
	return used
}

func splitList(v string) []string {
	var parts []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			parts = append(parts, s)
		}
	}
	return parts
}
