package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Flags holds parsed command-line flag values and which were set.
type Flags struct {
	CacheDir string
	BaseURL  string
	Config   string
	Set      map[string]bool
}

// ParseConfigFlags parses command-line flags into a Flags struct.
func ParseConfigFlags() Flags {
	cachePtr := flag.String("cache", "./.chatcache", "Session cache directory")
	urlPtr := flag.String("url", "", "Remote service base URL")
	cfgPtr := flag.String("config", "./config.yaml", "Path to config file")
	flag.Parse()
	setFlags := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	return Flags{CacheDir: *cachePtr, BaseURL: *urlPtr, Config: *cfgPtr, Set: setFlags}
}

// ResolveConfigPath decides the config file path from the flag value and
// the CHATCACHE_CONFIG env var when the flag was not set.
func ResolveConfigPath(flagPath string, flagSet bool) string {
	if flagSet {
		return flagPath
	}
	if p := os.Getenv("CHATCACHE_CONFIG"); p != "" {
		return p
	}
	return flagPath
}

// Load reads and parses the YAML config at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s: %w", path, err)
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

// LoadEnvOverrides applies CHATCACHE_* environment overrides onto cfg and
// reports whether any env var was used.
func LoadEnvOverrides(cfg *Config) bool {
	envUsed := false

	if v := os.Getenv("CHATCACHE_NODE_ID"); v != "" {
		envUsed = true
		cfg.Session.NodeID = v
	}
	if v := os.Getenv("CHATCACHE_CACHE_DIR"); v != "" {
		envUsed = true
		cfg.Session.CacheDir = v
	}
	if v := os.Getenv("CHATCACHE_REMOTE_URL"); v != "" {
		envUsed = true
		cfg.Remote.BaseURL = v
	}
	if v := os.Getenv("CHATCACHE_REMOTE_TOKEN"); v != "" {
		envUsed = true
		cfg.Remote.Token = v
	}
	if v := os.Getenv("CHATCACHE_REMOTE_TIMEOUT"); v != "" {
		var d Duration
		if err := yamlScalar(v, &d); err == nil {
			envUsed = true
			cfg.Remote.Timeout = d
		}
	}
	if v := os.Getenv("CHATCACHE_RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			envUsed = true
			cfg.Remote.RateLimit.RPS = f
		}
	}
	if v := os.Getenv("CHATCACHE_RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envUsed = true
			cfg.Remote.RateLimit.Burst = n
		}
	}
	if v := os.Getenv("CHATCACHE_PUSH_QUEUE_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envUsed = true
			cfg.Remote.PushQueue.Capacity = n
		}
	}
	if v := os.Getenv("CHATCACHE_LOG_LEVEL"); v != "" {
		envUsed = true
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CHATCACHE_SWEEP_ENABLED"); v != "" {
		envUsed = true
		vl := strings.ToLower(strings.TrimSpace(v))
		cfg.Staging.Sweep.Enabled = vl == "1" || vl == "true" || vl == "yes"
	}
	if v := os.Getenv("CHATCACHE_SWEEP_CRON"); v != "" {
		envUsed = true
		cfg.Staging.Sweep.Cron = v
	}
	if v := os.Getenv("CHATCACHE_SWEEP_MAX_AGE"); v != "" {
		var d Duration
		if err := yamlScalar(v, &d); err == nil {
			envUsed = true
			cfg.Staging.Sweep.MaxAge = d
		}
	}
	if v := os.Getenv("CHATCACHE_DEBUG_ADDR"); v != "" {
		envUsed = true
		cfg.Debug.Addr = v
	}
	return envUsed
}

// LoadEffective loads the config file at path (a missing file yields a
// zero config, anything else is an error) and applies env overrides on
// top.
func LoadEffective(path string) (*Config, bool, error) {
	cfg, err := Load(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, false, err
		}
		cfg = &Config{}
	}
	envUsed := LoadEnvOverrides(cfg)
	return cfg, envUsed, nil
}

// Validate rejects configs the session cannot start with.
func (c *Config) Validate() error {
	if c.Remote.BaseURL != "" && !strings.Contains(c.Remote.BaseURL, "://") {
		return fmt.Errorf("remote.base_url must include a scheme: %q", c.Remote.BaseURL)
	}
	if c.Remote.RateLimit.RPS < 0 {
		return fmt.Errorf("remote.rate_limit.rps must be >= 0")
	}
	if c.Staging.Sweep.Enabled && c.Staging.Sweep.MaxAge.Duration() <= 0 {
		return fmt.Errorf("staging.sweep.max_age is required when sweep is enabled")
	}
	return nil
}

// yamlScalar parses a single YAML scalar into v, reusing the custom
// UnmarshalYAML implementations for Duration and SizeBytes.
func yamlScalar(raw string, v interface{}) error {
	return yaml.Unmarshal([]byte(raw), v)
}
