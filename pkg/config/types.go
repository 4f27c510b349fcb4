package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Config is the full session configuration, loaded from YAML with env
// overrides applied on top.
type Config struct {
	Session struct {
		// NodeID identifies this device in logical clocks. Generated
		// and persisted on first run when empty.
		NodeID   string `yaml:"node_id"`
		CacheDir string `yaml:"cache_dir"`
	} `yaml:"session"`
	Remote struct {
		BaseURL   string   `yaml:"base_url"`
		Token     string   `yaml:"token"`
		Timeout   Duration `yaml:"timeout"`
		RateLimit struct {
			RPS   float64 `yaml:"rps"`
			Burst int     `yaml:"burst"`
		} `yaml:"rate_limit"`
		PushQueue struct {
			Capacity        int       `yaml:"capacity"`
			MaxPooledBuffer SizeBytes `yaml:"max_pooled_buffer"`
		} `yaml:"push_queue"`
	} `yaml:"remote"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
	Staging struct {
		Sweep struct {
			Enabled bool     `yaml:"enabled"`
			Cron    string   `yaml:"cron"`
			MaxAge  Duration `yaml:"max_age"`
		} `yaml:"sweep"`
	} `yaml:"staging"`
	Debug struct {
		// Addr enables the local introspection HTTP server when set.
		Addr string `yaml:"addr"`
	} `yaml:"debug"`
	Validation struct {
		MaxTextLen    int `yaml:"max_text_len"`
		MaxMediaItems int `yaml:"max_media_items"`
		MaxNameLen    int `yaml:"max_name_len"`
	} `yaml:"validation"`
}

// DBPath returns the pebble directory under the cache dir, or "" when
// the cache dir is unset (memory-only session).
func (c *Config) DBPath() string {
	if c.Session.CacheDir == "" {
		return ""
	}
	return c.Session.CacheDir + "/store"
}

// SizeBytes is a byte count, unmarshaled from human-friendly strings
// like "256KB" or plain integers.
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

func (s SizeBytes) Int() int { return int(s) }

// Duration wraps time.Duration with YAML parsing from strings like
// "90s" or plain numbers (interpreted as seconds).
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
