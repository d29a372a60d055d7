package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/germanamz/promptforge/pkg/modeladapter"
)

const (
	modelsPath = "/v1/models"

	// modelsPageLimit is the largest page the models endpoint returns.
	modelsPageLimit = 1000
)

var _ modeladapter.ModelLister = (*Adapter)(nil)

// ModelsEndpoint resolves the model list URL from a configured base URL.
func ModelsEndpoint(baseURL string) string {
	u := strings.TrimSpace(baseURL)
	if i := strings.Index(u, messagesPath); i >= 0 {
		u = u[:i]
	}
	return fmt.Sprintf("%s%s?limit=%d", strings.TrimRight(u, "/"), modelsPath, modelsPageLimit)
}

// ListModels returns the ids of the available models, newest first as the
// API orders them.
func (a *Adapter) ListModels(ctx context.Context) ([]string, error) {
	var resp struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := a.GetJSON(ctx, ModelsEndpoint(a.BaseURL), &resp); err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}

	ids := make([]string, 0, len(resp.Data))
	for _, m := range resp.Data {
		if m.ID != "" {
			ids = append(ids, m.ID)
		}
	}

	return ids, nil
}
