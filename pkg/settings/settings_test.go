package settings_test

import (
	"testing"

	"github.com/germanamz/promptforge/pkg/settings"
	"github.com/stretchr/testify/assert"
)

func TestVendorKind_Wire(t *testing.T) {
	assert.Equal(t, settings.OpenAI, settings.Custom.Wire())
	assert.Equal(t, settings.OpenAI, settings.VendorKind("").Wire())
	assert.Equal(t, settings.Anthropic, settings.Anthropic.Wire())
	assert.Equal(t, settings.Google, settings.Google.Wire())
	assert.False(t, settings.VendorKind("azure").Valid())
}

func TestProviderConfig_VendorFor(t *testing.T) {
	p := settings.ProviderConfig{
		Kind: settings.Custom,
		Models: []settings.ModelConfig{
			{ID: "claude-proxy", Kind: settings.Anthropic},
			{ID: "gpt-4o"},
		},
	}

	assert.Equal(t, settings.Anthropic, p.VendorFor("claude-proxy"))
	assert.Equal(t, settings.Custom, p.VendorFor("gpt-4o"))
	assert.Equal(t, settings.Custom, p.VendorFor("unknown"))
}

func TestMaxTokensFieldFor(t *testing.T) {
	tests := []struct {
		name  string
		model settings.ModelConfig
		want  string
	}{
		{"plain", settings.ModelConfig{ID: "gpt-4o-mini"}, settings.MaxTokensField},
		{"o1 keyword", settings.ModelConfig{ID: "o1-preview"}, settings.MaxCompletionTokensField},
		{"gpt-5 keyword", settings.ModelConfig{ID: "GPT-5-high"}, settings.MaxCompletionTokensField},
		{"reasoning keyword", settings.ModelConfig{ID: "acme-reasoning-large"}, settings.MaxCompletionTokensField},
		{
			"explicit capability wins",
			settings.ModelConfig{
				ID: "o3-mini",
				Capabilities: &settings.ModelCapabilities{
					SupportedParams: settings.SupportedParams{MaxTokensField: settings.MaxTokensField},
				},
			},
			settings.MaxTokensField,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, settings.MaxTokensFieldFor(tt.model))
		})
	}
}

func TestResolveParams_Defaults(t *testing.T) {
	p := settings.ResolveParams(settings.OpenAI, nil)

	assert.InDelta(t, 1.0, p.Temperature, 1e-9)
	assert.Equal(t, 8192, p.MaxTokens)
	assert.InDelta(t, 0.95, p.TopP, 1e-9)
	assert.Zero(t, p.FrequencyPenalty)
	assert.Zero(t, p.PresencePenalty)
	assert.Zero(t, p.TopK)
}

func TestResolveParams_Overrides(t *testing.T) {
	temp := 0.2
	maxTokens := 1024
	penalty := 0.5
	topK := 40

	overrides := &settings.ModelParams{
		Temperature:      &temp,
		MaxTokens:        &maxTokens,
		FrequencyPenalty: &penalty,
		TopK:             &topK,
	}

	openai := settings.ResolveParams(settings.Custom, overrides)
	assert.InDelta(t, 0.2, openai.Temperature, 1e-9)
	assert.Equal(t, 1024, openai.MaxTokens)
	assert.InDelta(t, 0.5, openai.FrequencyPenalty, 1e-9)
	assert.Zero(t, openai.TopK, "topK does not apply to OpenAI-compatible vendors")

	anthropic := settings.ResolveParams(settings.Anthropic, overrides)
	assert.Equal(t, 40, anthropic.TopK)
	assert.Zero(t, anthropic.FrequencyPenalty, "penalties do not apply to Anthropic")
}

func TestParams_MaxTokensOrDefault(t *testing.T) {
	assert.Equal(t, settings.DefaultMaxTokens, settings.Params{}.MaxTokensOrDefault())
	assert.Equal(t, 10, settings.Params{MaxTokens: 10}.MaxTokensOrDefault())
}
