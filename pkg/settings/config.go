package settings

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultCapabilityTTL is how long a capability probe result stays fresh.
const DefaultCapabilityTTL = 24 * time.Hour

// Config is the top-level configuration of a promptforge host.
type Config struct {
	Providers    []ProviderConfig `yaml:"providers"`
	Server       ServerConfig     `yaml:"server"`
	Capabilities CapabilityConfig `yaml:"capabilities"`
	Log          LogConfig        `yaml:"log"`
}

// ServerConfig holds the local HTTP surface settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// CapabilityConfig controls the capability cache.
type CapabilityConfig struct {
	CachePath string `yaml:"cache_path"` // SQLite file; empty keeps the cache in memory.
	TTL       string `yaml:"ttl"`        // Duration string (e.g. "24h"); empty means DefaultCapabilityTTL.
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// TTLDuration parses TTL, falling back to DefaultCapabilityTTL.
func (c CapabilityConfig) TTLDuration() (time.Duration, error) {
	if c.TTL == "" {
		return DefaultCapabilityTTL, nil
	}
	d, err := time.ParseDuration(c.TTL)
	if err != nil {
		return 0, fmt.Errorf("settings: config: capabilities.ttl: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("settings: config: capabilities.ttl must be positive, got %s", c.TTL)
	}
	return d, nil
}

// LoadConfig reads a YAML file and returns a Config.
// Environment variables referenced as ${VAR} or $VAR in the YAML are expanded
// before parsing, so API keys can live in the environment (e.g. loaded from a
// .env file) rather than in the config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-provided configuration, not user input
	if err != nil {
		return Config{}, fmt.Errorf("settings: load config: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig expands environment variables in data and decodes it as YAML.
func ParseConfig(data []byte) (Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("settings: parse config: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c Config) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("settings: config: at least one provider is required")
	}

	ids := make(map[string]struct{}, len(c.Providers))
	for _, p := range c.Providers {
		if p.ID == "" {
			return fmt.Errorf("settings: config: provider id is required")
		}
		if !p.Kind.Valid() {
			return fmt.Errorf("settings: config: provider %q: unknown kind %q", p.ID, p.Kind)
		}
		if _, dup := ids[p.ID]; dup {
			return fmt.Errorf("settings: config: duplicate provider id %q", p.ID)
		}
		ids[p.ID] = struct{}{}

		models := make(map[string]struct{}, len(p.Models))
		for _, m := range p.Models {
			if m.ID == "" {
				return fmt.Errorf("settings: config: provider %q: model id is required", p.ID)
			}
			if m.Kind != "" && !m.Kind.Valid() {
				return fmt.Errorf("settings: config: provider %q: model %q: unknown kind %q", p.ID, m.ID, m.Kind)
			}
			if _, dup := models[m.ID]; dup {
				return fmt.Errorf("settings: config: provider %q: duplicate model id %q", p.ID, m.ID)
			}
			models[m.ID] = struct{}{}
		}
	}

	if _, err := c.Capabilities.TTLDuration(); err != nil {
		return err
	}

	return nil
}

// Provider returns the provider with the given id.
func (c Config) Provider(id string) (ProviderConfig, bool) {
	for _, p := range c.Providers {
		if p.ID == id {
			return p, true
		}
	}
	return ProviderConfig{}, false
}
