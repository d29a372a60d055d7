package main

import (
	"context"
	"fmt"
	"io"

	"github.com/germanamz/promptforge/pkg/settings"
)

func runModels(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("models", "List the models each provider's endpoint serves.\n"+
		"Without --provider every enabled provider is queried.", stderr)

	var common commonFlags
	common.register(fs)
	providerID := fs.String("provider", "", "provider id (default: all enabled providers)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(ctx, common, stderr)
	if err != nil {
		return err
	}
	defer a.close()

	providers, err := modelsTargets(a.cfg, *providerID)
	if err != nil {
		return err
	}

	failed := 0
	for i, p := range providers {
		if i > 0 {
			fmt.Fprintln(stdout)
		}
		fmt.Fprintln(stdout, providerStyle.Render(fmt.Sprintf("%s (%s)", p.ID, p.Kind.DisplayName())))

		ids, err := a.gw.Models(ctx, p)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failed++
			fmt.Fprintln(stdout, "  "+failStyle.Render("✗ "+err.Error()))
			continue
		}
		if len(ids) == 0 {
			fmt.Fprintln(stdout, "  "+dimStyle.Render("no models"))
		}
		for _, id := range ids {
			line := "  " + id
			if _, ok := p.Model(id); ok {
				line += " " + okStyle.Render("(configured)")
			}
			fmt.Fprintln(stdout, line)
		}
	}

	if failed > 0 {
		return fmt.Errorf("listing models failed for %d of %d providers", failed, len(providers))
	}
	return nil
}

// modelsTargets returns the named provider, or every enabled one.
func modelsTargets(cfg settings.Config, providerID string) ([]settings.ProviderConfig, error) {
	if providerID != "" {
		p, ok := cfg.Provider(providerID)
		if !ok {
			return nil, fmt.Errorf("unknown provider %q", providerID)
		}
		return []settings.ProviderConfig{p}, nil
	}

	var out []settings.ProviderConfig
	for _, p := range cfg.Providers {
		if p.Enabled {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no enabled provider, pass --provider")
	}
	return out, nil
}
