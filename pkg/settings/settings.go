// Package settings holds the provider, model, and capability records the core
// consumes. The records are read-only inputs: persistence and editing belong
// to the host application.
package settings

import (
	"strings"
	"time"
)

// VendorKind identifies the wire protocol spoken by a provider or model.
type VendorKind string

const (
	OpenAI    VendorKind = "openai"
	Anthropic VendorKind = "anthropic"
	Google    VendorKind = "google"
	Custom    VendorKind = "custom"
)

// Valid reports whether k is one of the known vendor kinds.
func (k VendorKind) Valid() bool {
	switch k {
	case OpenAI, Anthropic, Google, Custom:
		return true
	}
	return false
}

// Wire returns the protocol actually spoken: custom endpoints are
// OpenAI-compatible.
func (k VendorKind) Wire() VendorKind {
	if k == Custom || k == "" {
		return OpenAI
	}
	return k
}

// DisplayName returns a human-readable vendor name.
func (k VendorKind) DisplayName() string {
	switch k {
	case OpenAI:
		return "OpenAI"
	case Anthropic:
		return "Anthropic"
	case Google:
		return "Google Gemini"
	case Custom:
		return "custom endpoint"
	default:
		return string(k)
	}
}

// Token-limit field names accepted by OpenAI-compatible endpoints.
const (
	MaxTokensField           = "max_tokens"
	MaxCompletionTokensField = "max_completion_tokens"
)

// ReasoningKind names the flavour of reasoning a model exposes.
type ReasoningKind string

const (
	ReasoningNone   ReasoningKind = ""
	OpenAIReasoning ReasoningKind = "openai-reasoning"
	GeminiThought   ReasoningKind = "gemini-thought"
	ClaudeThinking  ReasoningKind = "claude-thinking"
	GenericCoT      ReasoningKind = "generic-cot"
)

// SupportedParams records which optional request parameters a model accepts.
type SupportedParams struct {
	Temperature    bool   `yaml:"temperature" json:"temperature"`
	MaxTokensField string `yaml:"max_tokens_field" json:"maxTokens"`
	Streaming      bool   `yaml:"streaming" json:"streaming"`
	SystemMessage  bool   `yaml:"system_message" json:"systemMessage"`
}

// DefaultSupportedParams is the profile assumed for a model that was never probed.
func DefaultSupportedParams() SupportedParams {
	return SupportedParams{
		Temperature:    true,
		MaxTokensField: MaxTokensField,
		Streaming:      true,
		SystemMessage:  true,
	}
}

// TestResult is the outcome of the most recent capability probe.
type TestResult struct {
	Connected      bool      `yaml:"connected" json:"connected"`
	Reasoning      bool      `yaml:"reasoning" json:"reasoning"`
	ResponseTimeMS int64     `yaml:"response_time_ms" json:"responseTimeMs"`
	Error          string    `yaml:"error,omitempty" json:"error,omitempty"`
	Timestamp      time.Time `yaml:"timestamp" json:"timestamp"`
}

// ModelCapabilities is a snapshot produced by the capability prober.
type ModelCapabilities struct {
	Reasoning       bool            `yaml:"reasoning" json:"reasoning"`
	ReasoningKind   ReasoningKind   `yaml:"reasoning_kind,omitempty" json:"reasoningType,omitempty"`
	SupportedParams SupportedParams `yaml:"supported_params" json:"supportedParams"`
	TestResult      *TestResult     `yaml:"test_result,omitempty" json:"testResult,omitempty"`
}

// ModelConfig is one selectable model under a provider.
type ModelConfig struct {
	ID           string             `yaml:"id" json:"id"`
	Name         string             `yaml:"name" json:"name"`
	Kind         VendorKind         `yaml:"kind,omitempty" json:"apiType,omitempty"`
	Enabled      bool               `yaml:"enabled" json:"enabled"`
	Capabilities *ModelCapabilities `yaml:"capabilities,omitempty" json:"capabilities,omitempty"`
	Params       *ModelParams       `yaml:"params,omitempty" json:"params,omitempty"`
}

// ProviderConfig identifies one configured account or endpoint.
type ProviderConfig struct {
	ID      string        `yaml:"id" json:"id"`
	Name    string        `yaml:"name" json:"name"`
	Kind    VendorKind    `yaml:"kind" json:"type"`
	APIKey  string        `yaml:"api_key" json:"-"` //nolint:gosec // configuration field, not a hardcoded secret
	BaseURL string        `yaml:"base_url" json:"baseUrl,omitempty"`
	Models  []ModelConfig `yaml:"models" json:"models"`
	Enabled bool          `yaml:"enabled" json:"enabled"`
}

// Model returns the model with the given id.
func (p ProviderConfig) Model(id string) (ModelConfig, bool) {
	for _, m := range p.Models {
		if m.ID == id {
			return m, true
		}
	}
	return ModelConfig{}, false
}

// VendorFor returns the vendor kind used for modelID: the model's own
// override when present, otherwise the provider's kind.
func (p ProviderConfig) VendorFor(modelID string) VendorKind {
	if m, ok := p.Model(modelID); ok && m.Kind != "" {
		return m.Kind
	}
	return p.Kind
}

// reasoningModelKeywords are model-id fragments of OpenAI reasoning models,
// which require max_completion_tokens and may think for minutes.
var reasoningModelKeywords = []string{"gpt-5", "o1", "o3", "o4", "reasoning"}

// ContainsAny reports whether the lower-cased id contains any of the fragments.
func ContainsAny(id string, fragments ...string) bool {
	id = strings.ToLower(id)
	for _, f := range fragments {
		if strings.Contains(id, f) {
			return true
		}
	}
	return false
}

// IsReasoningModelID reports whether modelID looks like an OpenAI reasoning model.
func IsReasoningModelID(modelID string) bool {
	return ContainsAny(modelID, reasoningModelKeywords...)
}

// MaxTokensFieldFor picks the token-limit field name for a model: an explicit
// capability record wins, otherwise the model id decides.
func MaxTokensFieldFor(m ModelConfig) string {
	if m.Capabilities != nil && m.Capabilities.SupportedParams.MaxTokensField != "" {
		return m.Capabilities.SupportedParams.MaxTokensField
	}
	if IsReasoningModelID(m.ID) {
		return MaxCompletionTokensField
	}
	return MaxTokensField
}
