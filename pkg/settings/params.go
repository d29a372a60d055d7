package settings

// Built-in parameter defaults.
const (
	DefaultTemperature = 1.0
	DefaultMaxTokens   = 8192
	DefaultTopP        = 0.95
)

// ModelParams holds optional per-model overrides. Nil fields fall back to the
// vendor defaults.
type ModelParams struct {
	Temperature      *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`
	MaxTokens        *int     `yaml:"max_tokens,omitempty" json:"maxTokens,omitempty"`
	TopP             *float64 `yaml:"top_p,omitempty" json:"topP,omitempty"`
	FrequencyPenalty *float64 `yaml:"frequency_penalty,omitempty" json:"frequencyPenalty,omitempty"`
	PresencePenalty  *float64 `yaml:"presence_penalty,omitempty" json:"presencePenalty,omitempty"`
	TopK             *int     `yaml:"top_k,omitempty" json:"topK,omitempty"`
}

// Params is a fully resolved parameter set ready to be sent to a vendor.
// A zero TopK means "do not restrict"; zero penalties are not sent.
type Params struct {
	Temperature      float64
	MaxTokens        int
	TopP             float64
	FrequencyPenalty float64
	PresencePenalty  float64
	TopK             int
}

// DefaultParams returns the built-in defaults. Penalties (OpenAI-compatible)
// and TopK (Anthropic, Google) default to zero.
func DefaultParams() Params {
	return Params{
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
		TopP:        DefaultTopP,
	}
}

// ResolveParams layers overrides on top of the vendor defaults. Overrides that
// do not apply to the vendor (penalties for Anthropic/Google, TopK for
// OpenAI-compatible endpoints) are ignored.
func ResolveParams(kind VendorKind, overrides *ModelParams) Params {
	p := DefaultParams()
	if overrides == nil {
		return p
	}

	if overrides.Temperature != nil {
		p.Temperature = *overrides.Temperature
	}
	if overrides.MaxTokens != nil && *overrides.MaxTokens > 0 {
		p.MaxTokens = *overrides.MaxTokens
	}
	if overrides.TopP != nil {
		p.TopP = *overrides.TopP
	}

	switch kind.Wire() {
	case OpenAI:
		if overrides.FrequencyPenalty != nil {
			p.FrequencyPenalty = *overrides.FrequencyPenalty
		}
		if overrides.PresencePenalty != nil {
			p.PresencePenalty = *overrides.PresencePenalty
		}
	case Anthropic, Google:
		if overrides.TopK != nil && *overrides.TopK > 0 {
			p.TopK = *overrides.TopK
		}
	}

	return p
}

// MaxTokensOrDefault returns MaxTokens, or the default when unset.
func (p Params) MaxTokensOrDefault() int {
	if p.MaxTokens > 0 {
		return p.MaxTokens
	}
	return DefaultMaxTokens
}
