package gateway

import (
	"net/http"
	"sync"

	"github.com/germanamz/promptforge/pkg/modeladapter"
	"github.com/germanamz/promptforge/pkg/providers/anthropic"
	"github.com/germanamz/promptforge/pkg/providers/gemini"
	"github.com/germanamz/promptforge/pkg/providers/openai"
	"github.com/germanamz/promptforge/pkg/settings"
)

// Factory creates an adapter for one model of a provider. The client is
// shared by every adapter built by the same gateway and may be nil.
type Factory func(p settings.ProviderConfig, modelID string, client *http.Client) modeladapter.Adapter

var (
	factoryMu   sync.RWMutex
	factories   = map[settings.VendorKind]Factory{}
	defaultsReg sync.Once
)

func ensureDefaults() {
	defaultsReg.Do(func() {
		factories[settings.OpenAI] = newOpenAI
		factories[settings.Anthropic] = newAnthropic
		factories[settings.Google] = newGemini
	})
}

// RegisterFactory registers a factory under the given wire kind, replacing
// any previous registration. Custom providers resolve to the OpenAI kind.
func RegisterFactory(kind settings.VendorKind, factory Factory) {
	ensureDefaults()

	factoryMu.Lock()
	defer factoryMu.Unlock()

	factories[kind] = factory
}

// getFactory returns the factory for the given wire kind.
func getFactory(kind settings.VendorKind) (Factory, bool) {
	ensureDefaults()

	factoryMu.RLock()
	defer factoryMu.RUnlock()

	f, ok := factories[kind]
	return f, ok
}

func newOpenAI(p settings.ProviderConfig, modelID string, client *http.Client) modeladapter.Adapter {
	a := openai.New(p.BaseURL, p.APIKey, modelID)
	a.Client = client

	return a
}

func newAnthropic(p settings.ProviderConfig, modelID string, client *http.Client) modeladapter.Adapter {
	a := anthropic.New(p.BaseURL, p.APIKey, modelID)
	a.Client = client

	return a
}

func newGemini(p settings.ProviderConfig, modelID string, client *http.Client) modeladapter.Adapter {
	a := gemini.New(p.BaseURL, p.APIKey, modelID)
	a.Client = client

	return a
}

// capabilityAware is implemented by adapters whose request shape depends on
// a stored capability record.
type capabilityAware interface {
	SetTokenField(field string)
}

// applyCapabilities tunes a freshly built adapter from the model's probed
// capabilities. Records without a test result are ignored.
func applyCapabilities(a modeladapter.Adapter, caps *settings.ModelCapabilities) {
	if caps == nil || caps.TestResult == nil {
		return
	}

	if ca, ok := a.(capabilityAware); ok && caps.SupportedParams.MaxTokensField != "" {
		ca.SetTokenField(caps.SupportedParams.MaxTokensField)
	}

	if oa, ok := a.(*openai.Adapter); ok {
		oa.OmitTemperature = !caps.SupportedParams.Temperature
	}
}
