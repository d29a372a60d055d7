package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/germanamz/promptforge/pkg/settings"
)

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd())) //nolint:gosec
}

// pickTarget asks for a provider and, unless modelID is set, one of its
// models. A choice with a single option is made without asking.
func pickTarget(ctx context.Context, cfg settings.Config, modelID string, in io.Reader, out io.Writer) (string, string, error) {
	providers := providerOptions(cfg)
	if len(providers) == 0 {
		return "", "", errors.New("no enabled provider, pass --provider")
	}

	providerID := providers[0].Value
	if len(providers) > 1 {
		if err := runSelect(ctx, "Provider", providers, &providerID, in, out); err != nil {
			return "", "", err
		}
	}
	if modelID != "" {
		return providerID, modelID, nil
	}

	p, _ := cfg.Provider(providerID)
	models := modelOptions(p)
	switch len(models) {
	case 0:
		return providerID, "", nil
	case 1:
		return providerID, models[0].Value, nil
	}

	modelID = models[0].Value
	if err := runSelect(ctx, "Model", models, &modelID, in, out); err != nil {
		return "", "", err
	}
	return providerID, modelID, nil
}

func providerOptions(cfg settings.Config) []huh.Option[string] {
	var opts []huh.Option[string]
	for _, p := range cfg.Providers {
		if !p.Enabled {
			continue
		}
		name := p.Name
		if name == "" {
			name = p.ID
		}
		opts = append(opts, huh.NewOption(fmt.Sprintf("%s (%s)", name, p.Kind.DisplayName()), p.ID))
	}
	return opts
}

func modelOptions(p settings.ProviderConfig) []huh.Option[string] {
	var opts []huh.Option[string]
	for _, m := range p.Models {
		if m.Enabled {
			opts = append(opts, huh.NewOption(m.ID, m.ID))
		}
	}
	return opts
}

func runSelect(ctx context.Context, title string, opts []huh.Option[string], value *string, in io.Reader, out io.Writer) error {
	err := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title(title).
			Options(opts...).
			Value(value),
	)).WithInput(in).WithOutput(out).RunWithContext(ctx)
	if errors.Is(err, huh.ErrUserAborted) {
		return errors.New("selection aborted")
	}
	return err
}
