package nodeconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/faqbridge/faqbridge-backend/internal/platform/envutil"
	"github.com/faqbridge/faqbridge-backend/internal/platform/logger"
)

// Registry holds per-node YAML overrides discovered from a config
// directory. A missing directory yields an empty registry; every
// accessor then falls back to its caller-supplied default, so the
// pipeline runs with zero config files present.
type Registry struct {
	log      *logger.Logger
	defaults map[string]any
	nodes    map[string]map[string]any
}

// LoadFromEnv reads PIPELINE_CONFIG_DIR (default "config/pipeline").
func LoadFromEnv(log *logger.Logger) (*Registry, error) {
	return Load(log, envutil.Str("PIPELINE_CONFIG_DIR", "config/pipeline"))
}

// Load reads every <node>.yaml in dir. defaults.yaml is special: its
// "global" section backs the per-key fallback for every node.
func Load(log *logger.Logger, dir string) (*Registry, error) {
	r := &Registry{
		log:      log.With("component", "NodeConfigRegistry"),
		defaults: map[string]any{},
		nodes:    map[string]map[string]any{},
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			r.log.Info("no pipeline config dir, using built-in defaults", "dir", dir)
			return r, nil
		}
		return nil, fmt.Errorf("read config dir %q: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := filepath.Ext(name)
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", name, err)
		}
		values := map[string]any{}
		if err := yaml.Unmarshal(raw, &values); err != nil {
			return nil, fmt.Errorf("parse %q: %w", name, err)
		}

		nodeName := strings.TrimSuffix(name, ext)
		if nodeName == "defaults" {
			if global, ok := values["global"].(map[string]any); ok {
				r.defaults = global
			} else {
				r.defaults = values
			}
			continue
		}
		r.nodes[nodeName] = values
	}

	r.log.Info("pipeline config loaded", "dir", dir, "nodes", len(r.nodes))
	return r, nil
}

// For returns the config view of one node. Lookups resolve node value
// first, then the global defaults, then the accessor's fallback.
func (r *Registry) For(node string) Config {
	return Config{
		node:     node,
		values:   r.nodes[node],
		defaults: r.defaults,
	}
}

// Config is a typed accessor over one node's merged configuration.
type Config struct {
	node     string
	values   map[string]any
	defaults map[string]any
}

func (c Config) lookup(key string) (any, bool) {
	if v, ok := c.values[key]; ok {
		return v, true
	}
	if v, ok := c.defaults[key]; ok {
		return v, true
	}
	return nil, false
}

func (c Config) String(key, fallback string) string {
	if v, ok := c.lookup(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return fallback
}

func (c Config) Int(key string, fallback int) int {
	if v, ok := c.lookup(key); ok {
		switch n := v.(type) {
		case int:
			return n
		case int64:
			return int(n)
		case float64:
			return int(n)
		}
	}
	return fallback
}

func (c Config) Float(key string, fallback float64) float64 {
	if v, ok := c.lookup(key); ok {
		switch n := v.(type) {
		case float64:
			return n
		case int:
			return float64(n)
		case int64:
			return float64(n)
		}
	}
	return fallback
}

func (c Config) Bool(key string, fallback bool) bool {
	if v, ok := c.lookup(key); ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return fallback
}

// DurationMS interprets the key as an integer millisecond count.
func (c Config) DurationMS(key string, fallback time.Duration) time.Duration {
	if v, ok := c.lookup(key); ok {
		switch n := v.(type) {
		case int:
			return time.Duration(n) * time.Millisecond
		case int64:
			return time.Duration(n) * time.Millisecond
		case float64:
			return time.Duration(n) * time.Millisecond
		}
	}
	return fallback
}

func (c Config) StringSlice(key string) []string {
	v, ok := c.lookup(key)
	if !ok {
		return nil
	}
	switch items := v.(type) {
	case []string:
		return items
	case []any:
		out := make([]string, 0, len(items))
		for _, item := range items {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// RunPolicy are the dispatch-time limits every node carries.
type RunPolicy struct {
	Timeout time.Duration
	Retries int
}

func (c Config) RunPolicy() RunPolicy {
	return RunPolicy{
		Timeout: c.DurationMS("timeout_ms", 5*time.Second),
		Retries: c.Int("retry_count", 3),
	}
}
