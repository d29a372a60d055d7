// Package gateway routes normalized chat calls to the vendor adapter of a
// configured provider and model. It memoizes adapters, resolves per-model
// parameters, drains streamed responses, cleans the final text and turns
// adapter faults into short user-facing errors.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/germanamz/promptforge/pkg/chats/message"
	"github.com/germanamz/promptforge/pkg/chats/role"
	"github.com/germanamz/promptforge/pkg/cleaner"
	"github.com/germanamz/promptforge/pkg/modeladapter"
	"github.com/germanamz/promptforge/pkg/modeladapter/usage"
	"github.com/germanamz/promptforge/pkg/settings"
	"github.com/germanamz/promptforge/pkg/sse"
)

// ErrModelsUnsupported is wrapped by Models when the provider's adapter
// cannot list models.
var ErrModelsUnsupported = errors.New("model listing is not supported")

// Options configures a Gateway.
type Options struct {
	Logger *slog.Logger // Defaults to slog.Default().
	Client *http.Client // Shared by every adapter; nil uses each adapter's default.
}

// cacheKey identifies one memoized adapter. The kind is the configured one,
// so a custom endpoint never shares an adapter with an OpenAI provider. The
// API key is not part of it.
type cacheKey struct {
	kind    settings.VendorKind
	baseURL string
	modelID string
}

// Gateway is safe for concurrent use.
type Gateway struct {
	log    *slog.Logger
	client *http.Client

	mu       sync.Mutex
	adapters map[cacheKey]modeladapter.Adapter
}

// New creates a Gateway.
func New(opts Options) *Gateway {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Gateway{
		log:      log,
		client:   opts.Client,
		adapters: make(map[cacheKey]modeladapter.Adapter),
	}
}

// Adapter returns the memoized adapter for the provider's model, building
// it on first use. Capabilities stored on the model are applied only when
// the adapter is built.
func (g *Gateway) Adapter(p settings.ProviderConfig, modelID string) (modeladapter.Adapter, error) {
	if err := checkEndpoint(p); err != nil {
		return nil, err
	}

	key := keyFor(p, modelID)
	kind := key.kind.Wire()

	g.mu.Lock()
	defer g.mu.Unlock()

	if a, ok := g.adapters[key]; ok {
		return a, nil
	}

	factory, ok := getFactory(kind)
	if !ok {
		return nil, &modeladapter.ConfigError{Field: "kind", Err: fmt.Errorf("unknown vendor kind %q", kind)}
	}

	a := factory(p, modelID, g.client)
	if m, ok := p.Model(modelID); ok {
		applyCapabilities(a, m.Capabilities)
	}

	g.adapters[key] = a
	g.log.Debug("adapter created", "provider", p.ID, "kind", kind, "model", modelID)

	return a, nil
}

func checkEndpoint(p settings.ProviderConfig) error {
	if strings.TrimSpace(p.BaseURL) == "" {
		return &modeladapter.ConfigError{Field: "base_url"}
	}
	if strings.TrimSpace(p.APIKey) == "" {
		return &modeladapter.ConfigError{Field: "api_key"}
	}
	return nil
}

func keyFor(p settings.ProviderConfig, modelID string) cacheKey {
	return cacheKey{kind: p.VendorFor(modelID), baseURL: p.BaseURL, modelID: modelID}
}

// Call sends msgs to the provider's model and returns the cleaned reply.
// When stream is set the reply is read as server-sent events and onChunk,
// if non-nil, receives every raw increment before cleaning. Failures are
// returned as *Error except cancellation, which is returned as is.
func (g *Gateway) Call(ctx context.Context, msgs []message.Message, p settings.ProviderConfig, modelID string, stream bool, onChunk func(string)) (string, error) {
	if err := message.ValidateAll(msgs); err != nil {
		return "", fmt.Errorf("gateway: %w", err)
	}

	vendor := p.VendorFor(modelID)
	start := time.Now()

	text, err := g.call(ctx, msgs, p, modelID, stream, onChunk)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			g.log.DebugContext(ctx, "call canceled", "provider", p.ID, "model", modelID)
			return "", err
		}

		g.log.WarnContext(ctx, "call finished with error",
			"provider", p.ID,
			"model", modelID,
			"stream", stream,
			"duration", time.Since(start),
			"error", err,
		)

		return "", Translate(err, vendor)
	}

	g.log.DebugContext(ctx, "call finished",
		"provider", p.ID,
		"model", modelID,
		"stream", stream,
		"duration", time.Since(start),
	)

	return text, nil
}

func (g *Gateway) call(ctx context.Context, msgs []message.Message, p settings.ProviderConfig, modelID string, stream bool, onChunk func(string)) (string, error) {
	a, err := g.Adapter(p, modelID)
	if err != nil {
		return "", err
	}

	var overrides *settings.ModelParams
	if m, ok := p.Model(modelID); ok {
		overrides = m.Params
	}
	params := settings.ResolveParams(p.VendorFor(modelID), overrides)

	var raw string
	if stream {
		raw, err = drain(ctx, a, msgs, params, onChunk)
	} else {
		var resp modeladapter.Response
		resp, err = a.Complete(ctx, msgs, params)
		raw = resp.Content
	}
	if err != nil {
		return "", err
	}

	text := cleaner.Clean(raw)
	if strings.TrimSpace(text) == "" {
		return "", &modeladapter.EmptyContentError{}
	}

	return text, nil
}

// drain reads a streamed reply to completion, forwarding every increment.
func drain(ctx context.Context, a modeladapter.Adapter, msgs []message.Message, params settings.Params, onChunk func(string)) (string, error) {
	body, err := a.Stream(ctx, msgs, params)
	if err != nil {
		return "", err
	}
	defer body.Close()

	var b strings.Builder
	for chunk, err := range sse.NewDecoder(body, a.ParseStreamChunk).Chunks() {
		if err != nil {
			return "", err
		}
		if chunk.Content == "" {
			continue
		}

		b.WriteString(chunk.Content)
		if onChunk != nil {
			onChunk(chunk.Content)
		}
	}

	// A stream cut short by cancellation may end without a read error.
	if err := ctx.Err(); err != nil {
		return "", err
	}

	return b.String(), nil
}

// TestConnection reports whether a short buffered call to the model
// succeeds.
func (g *Gateway) TestConnection(ctx context.Context, p settings.ProviderConfig, modelID string) bool {
	_, err := g.Call(ctx, []message.Message{message.NewText(role.User, "test")}, p, modelID, false, nil)
	return err == nil
}

// Usage returns the token usage recorded by the model's adapter. It reports
// false when no adapter was built yet or the adapter does not track usage.
func (g *Gateway) Usage(p settings.ProviderConfig, modelID string) (usage.Summary, bool) {
	g.mu.Lock()
	a, ok := g.adapters[keyFor(p, modelID)]
	g.mu.Unlock()

	if !ok {
		return usage.Summary{}, false
	}

	ur, ok := a.(modeladapter.UsageReporter)
	if !ok {
		return usage.Summary{}, false
	}

	return ur.UsageTracker().Summary(), true
}

// Models lists the models served by the provider's endpoint. It uses the
// provider's configured kind and a fresh adapter that is not memoized.
// Failures are returned as *Error except cancellation.
func (g *Gateway) Models(ctx context.Context, p settings.ProviderConfig) ([]string, error) {
	ids, err := g.models(ctx, p)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		g.log.WarnContext(ctx, "listing models failed", "provider", p.ID, "error", err)
		return nil, Translate(err, p.Kind)
	}

	g.log.DebugContext(ctx, "models listed", "provider", p.ID, "count", len(ids))
	return ids, nil
}

func (g *Gateway) models(ctx context.Context, p settings.ProviderConfig) ([]string, error) {
	if err := checkEndpoint(p); err != nil {
		return nil, err
	}

	factory, ok := getFactory(p.Kind.Wire())
	if !ok {
		return nil, &modeladapter.ConfigError{Field: "kind", Err: fmt.Errorf("unknown vendor kind %q", p.Kind)}
	}

	lister, ok := factory(p, "", g.client).(modeladapter.ModelLister)
	if !ok {
		return nil, fmt.Errorf("%s: %w", p.Kind, ErrModelsUnsupported)
	}

	return lister.ListModels(ctx)
}
