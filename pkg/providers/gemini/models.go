package gemini

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/germanamz/promptforge/pkg/modeladapter"
)

// modelsPageSize is the largest page the models endpoint returns.
const modelsPageSize = 1000

var _ modeladapter.ModelLister = (*Adapter)(nil)

// ModelsEndpoint resolves the model list URL from a configured base URL.
func ModelsEndpoint(baseURL string) string {
	return fmt.Sprintf("%s%s?pageSize=%d", BaseEndpoint(baseURL), strings.TrimSuffix(modelsSegment, "/"), modelsPageSize)
}

// ListModels returns the sorted ids of the models that support
// generateContent. The "models/" prefix of resource names is dropped.
func (a *Adapter) ListModels(ctx context.Context) ([]string, error) {
	var resp struct {
		Models []struct {
			Name    string   `json:"name"`
			Methods []string `json:"supportedGenerationMethods"`
		} `json:"models"`
	}
	if err := a.GetJSON(ctx, ModelsEndpoint(a.BaseURL), &resp); err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}

	ids := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		if !slices.Contains(m.Methods, "generateContent") {
			continue
		}
		if id := strings.TrimPrefix(m.Name, "models/"); id != "" {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	return ids, nil
}
