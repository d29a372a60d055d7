package openai

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/germanamz/promptforge/pkg/modeladapter"
)

const modelsPath = "/models"

var _ modeladapter.ModelLister = (*Adapter)(nil)

// ModelsEndpoint resolves the model list URL from a configured base URL.
func ModelsEndpoint(baseURL string) string {
	u := Endpoint(baseURL)
	if i := strings.Index(u, completionsPath); i >= 0 {
		u = u[:i]
	}
	return u + modelsPath
}

// ListModels returns the sorted ids of the models the endpoint serves.
func (a *Adapter) ListModels(ctx context.Context) ([]string, error) {
	var resp struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := a.GetJSON(ctx, ModelsEndpoint(a.BaseURL), &resp); err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}

	ids := make([]string, 0, len(resp.Data))
	for _, m := range resp.Data {
		if m.ID != "" {
			ids = append(ids, m.ID)
		}
	}
	slices.Sort(ids)

	return ids, nil
}
