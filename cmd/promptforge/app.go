package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/germanamz/promptforge/pkg/capability"
	"github.com/germanamz/promptforge/pkg/gateway"
	"github.com/germanamz/promptforge/pkg/settings"
)

// commonFlags are shared by every subcommand.
type commonFlags struct {
	config   string
	env      string
	logLevel string

	defaultLevel string // used when neither the flag nor the config set a level
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.config, "config", "promptforge.yaml", "path to configuration file")
	fs.StringVar(&c.env, "env", ".env", "path to .env file (ignored if missing)")
	fs.StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides log.level)")
}

// newFlagSet creates a subcommand flag set that reports errors instead of exiting.
func newFlagSet(name, summary string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: promptforge %s [flags]\n\n%s\n\nFlags:\n", name, summary)
		fs.PrintDefaults()
	}
	return fs
}

// app holds the collaborators built from configuration.
type app struct {
	cfg    settings.Config
	log    *slog.Logger
	gw     *gateway.Gateway
	prober *capability.Prober
	store  capability.Store
}

// newApp loads the environment and configuration and wires the gateway and
// the prober. The caller must call close.
func newApp(ctx context.Context, flags commonFlags, stderr io.Writer) (*app, error) {
	if err := loadDotEnv(flags.env); err != nil {
		return nil, err
	}

	cfg, err := settings.LoadConfig(flags.config)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level := cfg.Log.Level
	if flags.logLevel != "" {
		level = flags.logLevel
	}
	if level == "" {
		level = flags.defaultLevel
	}
	log, err := newLogger(level, stderr)
	if err != nil {
		return nil, err
	}

	ttl, err := cfg.Capabilities.TTLDuration()
	if err != nil {
		return nil, err
	}

	store, err := openStore(ctx, cfg.Capabilities.CachePath)
	if err != nil {
		return nil, err
	}

	gw := gateway.New(gateway.Options{Logger: log})

	return &app{
		cfg:    cfg,
		log:    log,
		gw:     gw,
		prober: capability.New(gw, capability.Options{Logger: log, Store: store, TTL: ttl}),
		store:  store,
	}, nil
}

func (a *app) close() {
	if s, ok := a.store.(*capability.SQLiteStore); ok {
		if err := s.Close(); err != nil {
			a.log.Warn("closing capability cache", "error", err)
		}
	}
}

// openStore returns a SQLite store for a non-empty path and a memory store otherwise.
func openStore(ctx context.Context, path string) (capability.Store, error) {
	if path == "" {
		return capability.NewMemoryStore(), nil
	}

	s, err := capability.NewSQLiteStore(path)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func newLogger(level string, w io.Writer) (*slog.Logger, error) {
	lvl := slog.LevelWarn
	if level != "" {
		if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
			return nil, fmt.Errorf("invalid log level %q", level)
		}
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// resolveTarget picks the provider and model to use. Empty ids fall back to
// the first enabled provider and its first enabled model.
func resolveTarget(cfg settings.Config, providerID, modelID string) (settings.ProviderConfig, string, error) {
	var p settings.ProviderConfig
	if providerID != "" {
		var ok bool
		if p, ok = cfg.Provider(providerID); !ok {
			return settings.ProviderConfig{}, "", fmt.Errorf("unknown provider %q", providerID)
		}
	} else {
		found := false
		for _, c := range cfg.Providers {
			if c.Enabled {
				p, found = c, true
				break
			}
		}
		if !found {
			return settings.ProviderConfig{}, "", errors.New("no enabled provider, pass --provider")
		}
	}

	if modelID != "" {
		if _, ok := p.Model(modelID); !ok {
			return settings.ProviderConfig{}, "", fmt.Errorf("provider %q has no model %q", p.ID, modelID)
		}
		return p, modelID, nil
	}

	for _, m := range p.Models {
		if m.Enabled {
			return p, m.ID, nil
		}
	}
	return settings.ProviderConfig{}, "", fmt.Errorf("provider %q has no enabled model, pass --model", p.ID)
}
