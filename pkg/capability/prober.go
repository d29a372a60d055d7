// Package capability probes a configured model to find out whether it is
// reachable, whether it exposes step-by-step reasoning and which request
// parameters it accepts. Results are cached per provider and model.
package capability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/germanamz/promptforge/pkg/chats/message"
	"github.com/germanamz/promptforge/pkg/chats/role"
	"github.com/germanamz/promptforge/pkg/modeladapter"
	"github.com/germanamz/promptforge/pkg/providers/gemini"
	"github.com/germanamz/promptforge/pkg/settings"
)

// DefaultPhaseDelay separates the connectivity report from the start of the
// reasoning probe.
const DefaultPhaseDelay = 100 * time.Millisecond

// Probe prompts.
const (
	connectPrompt = "Hi"

	arithmeticPrompt = "A shop sells an item originally priced at 100. It is first discounted to 80%, " +
		"then discounted again to 90% of that price. What is the final price? " +
		"Show your full calculation and reasoning."
	stepwiseInstruction = "When answering, show your complete thinking process: 1) analyze the problem " +
		"2) plan the solution steps 3) carry out the calculation or reasoning 4) verify the answer. " +
		"Label every step clearly."
	thoughtPrompt  = "Think it through, then answer: what is artificial intelligence?"
	thinkingPrompt = "Show your thinking inside <thinking> tags, then answer: what is AI?"
)

// Caller is the part of the gateway the prober drives.
type Caller interface {
	Call(ctx context.Context, msgs []message.Message, p settings.ProviderConfig, modelID string, stream bool, onChunk func(string)) (string, error)
	Adapter(p settings.ProviderConfig, modelID string) (modeladapter.Adapter, error)
}

// ConnectionResult is the outcome of the connectivity phase.
type ConnectionResult struct {
	Connected    bool
	ResponseTime time.Duration
	Error        string
}

// Stats describes the capability cache.
type Stats struct {
	Size int      `json:"size"`
	Keys []string `json:"keys"`
}

// Options configures a Prober.
type Options struct {
	Logger     *slog.Logger     // Defaults to slog.Default().
	Store      Store            // Defaults to a new MemoryStore.
	TTL        time.Duration    // Cache freshness; defaults to settings.DefaultCapabilityTTL.
	PhaseDelay time.Duration    // Defaults to DefaultPhaseDelay; negative means no delay.
	Now        func() time.Time // Clock; defaults to time.Now.
}

// Prober runs capability probes through a Caller.
type Prober struct {
	caller Caller
	store  Store
	log    *slog.Logger
	ttl    time.Duration
	delay  time.Duration
	now    func() time.Time
}

// New creates a Prober.
func New(caller Caller, opts Options) *Prober {
	p := &Prober{
		caller: caller,
		store:  opts.Store,
		log:    opts.Logger,
		ttl:    opts.TTL,
		delay:  opts.PhaseDelay,
		now:    opts.Now,
	}

	if p.store == nil {
		p.store = NewMemoryStore()
	}
	if p.log == nil {
		p.log = slog.Default()
	}
	if p.ttl <= 0 {
		p.ttl = settings.DefaultCapabilityTTL
	}
	if p.delay == 0 {
		p.delay = DefaultPhaseDelay
	}
	if p.now == nil {
		p.now = time.Now
	}

	return p
}

// Detect runs both phases back to back and returns the resulting profile.
// A fresh cached profile is returned without probing unless force is set.
// The only errors are those of ctx.
func (p *Prober) Detect(ctx context.Context, pc settings.ProviderConfig, modelID string, force bool) (settings.ModelCapabilities, error) {
	var out settings.ModelCapabilities
	p.run(ctx, pc, modelID, force, 0, nil, func(caps settings.ModelCapabilities) { out = caps })

	if err := ctx.Err(); err != nil {
		return settings.ModelCapabilities{}, err
	}

	return out, nil
}

// DetectAsync probes in the background. onConnection receives the
// connectivity outcome as soon as it is known; onCapabilities receives the
// final profile once the reasoning phase finishes. After ctx is canceled
// neither callback is invoked again and nothing is cached. The returned
// channel is closed when all work has stopped.
func (p *Prober) DetectAsync(ctx context.Context, pc settings.ProviderConfig, modelID string, force bool,
	onConnection func(ConnectionResult), onCapabilities func(settings.ModelCapabilities),
) <-chan struct{} {
	done := make(chan struct{})

	go func() {
		defer close(done)
		p.run(ctx, pc, modelID, force, p.delay, onConnection, onCapabilities)
	}()

	return done
}

// ClearCache drops every cached profile.
func (p *Prober) ClearCache(ctx context.Context) error {
	return p.store.Clear(ctx)
}

// CacheStats reports the cached keys as "provider:model".
func (p *Prober) CacheStats(ctx context.Context) (Stats, error) {
	keys, err := p.store.Keys(ctx)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{Size: len(keys), Keys: make([]string, 0, len(keys))}
	for _, k := range keys {
		stats.Keys = append(stats.Keys, k.String())
	}

	return stats, nil
}

func (p *Prober) run(ctx context.Context, pc settings.ProviderConfig, modelID string, force bool, delay time.Duration,
	onConnection func(ConnectionResult), onCapabilities func(settings.ModelCapabilities),
) {
	if onConnection == nil {
		onConnection = func(ConnectionResult) {}
	}
	if onCapabilities == nil {
		onCapabilities = func(settings.ModelCapabilities) {}
	}

	key := Key{ProviderID: pc.ID, ModelID: modelID}
	log := p.log.With("provider", pc.ID, "model", modelID)

	if !force {
		if cached, ok := p.cached(ctx, key); ok {
			log.DebugContext(ctx, "capabilities served from cache")
			tr := cached.TestResult
			onConnection(ConnectionResult{
				Connected:    tr.Connected,
				ResponseTime: time.Duration(tr.ResponseTimeMS) * time.Millisecond,
				Error:        tr.Error,
			})
			onCapabilities(cached)
			return
		}
	}

	if ctx.Err() != nil {
		return
	}

	log.InfoContext(ctx, "probing connectivity")
	start := p.now()
	conn := p.testConnection(ctx, pc, modelID)
	elapsed := p.now().Sub(start)

	if ctx.Err() != nil {
		return
	}

	onConnection(ConnectionResult{Connected: conn.connected, ResponseTime: elapsed, Error: conn.err})

	if !conn.connected {
		log.WarnContext(ctx, "connectivity probe failed", "error", conn.err)
		failed := settings.ModelCapabilities{
			SupportedParams: settings.DefaultSupportedParams(),
			TestResult: &settings.TestResult{
				Connected:      false,
				ResponseTimeMS: elapsed.Milliseconds(),
				Error:          conn.err,
				Timestamp:      p.now(),
			},
		}
		p.save(ctx, key, failed)
		onCapabilities(failed)
		return
	}

	if delay > 0 {
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}

	log.InfoContext(ctx, "probing reasoning", "stream", conn.preferStream)
	prof, err := p.probeReasoning(ctx, pc, modelID, conn.preferStream)

	if ctx.Err() != nil {
		return
	}

	if err != nil {
		log.WarnContext(ctx, "reasoning probe degraded to defaults", "error", err)
		prof = profile{params: settings.DefaultSupportedParams()}
	}

	caps := settings.ModelCapabilities{
		Reasoning:       prof.reasoning,
		ReasoningKind:   prof.kind,
		SupportedParams: prof.params,
		TestResult: &settings.TestResult{
			Connected:      true,
			Reasoning:      prof.reasoning,
			ResponseTimeMS: elapsed.Milliseconds(),
			Timestamp:      p.now(),
		},
	}

	p.save(ctx, key, caps)
	log.InfoContext(ctx, "probe finished", "reasoning", caps.Reasoning, "kind", caps.ReasoningKind)
	onCapabilities(caps)
}

// cached returns a fresh stored profile.
func (p *Prober) cached(ctx context.Context, key Key) (settings.ModelCapabilities, bool) {
	caps, ok, err := p.store.Get(ctx, key)
	if err != nil {
		p.log.WarnContext(ctx, "capability cache read failed", "key", key.String(), "error", err)
		return settings.ModelCapabilities{}, false
	}
	if !ok || caps.TestResult == nil {
		return settings.ModelCapabilities{}, false
	}
	if p.now().Sub(caps.TestResult.Timestamp) >= p.ttl {
		return settings.ModelCapabilities{}, false
	}

	return caps, true
}

func (p *Prober) save(ctx context.Context, key Key, caps settings.ModelCapabilities) {
	if err := p.store.Put(ctx, key, caps); err != nil {
		p.log.WarnContext(ctx, "capability cache write failed", "key", key.String(), "error", err)
	}
}

type connection struct {
	connected    bool
	preferStream bool
	err          string
}

// testConnection tries a streamed call first and falls back to a buffered
// one.
func (p *Prober) testConnection(ctx context.Context, pc settings.ProviderConfig, modelID string) connection {
	msgs := []message.Message{message.NewText(role.User, connectPrompt)}

	text, err := p.caller.Call(ctx, msgs, pc, modelID, true, nil)
	if err == nil && strings.TrimSpace(text) != "" {
		return connection{connected: true, preferStream: true}
	}
	if ctx.Err() != nil {
		return connection{err: ctx.Err().Error()}
	}
	if err != nil {
		p.log.DebugContext(ctx, "streamed connectivity probe failed", "provider", pc.ID, "model", modelID, "error", err)
	}

	text, err = p.caller.Call(ctx, msgs, pc, modelID, false, nil)
	switch {
	case err != nil:
		return connection{err: err.Error()}
	case strings.TrimSpace(text) == "":
		return connection{err: "streamed and buffered calls both returned nothing"}
	default:
		return connection{connected: true}
	}
}

type profile struct {
	reasoning bool
	kind      settings.ReasoningKind
	params    settings.SupportedParams
}

func (p *Prober) probeReasoning(ctx context.Context, pc settings.ProviderConfig, modelID string, stream bool) (profile, error) {
	switch pc.VendorFor(modelID).Wire() {
	case settings.OpenAI:
		return p.probeOpenAI(ctx, pc, modelID, stream)
	case settings.Google:
		return p.probeGemini(ctx, pc, modelID)
	case settings.Anthropic:
		return p.probeClaude(ctx, pc, modelID, stream)
	default:
		return profile{params: settings.DefaultSupportedParams()}, nil
	}
}

type reasoningFieldProber interface {
	ProbeReasoningField(ctx context.Context, msgs []message.Message) (bool, error)
}

type tokenFielder interface {
	TokenField() string
}

func (p *Prober) probeOpenAI(ctx context.Context, pc settings.ProviderConfig, modelID string, stream bool) (profile, error) {
	question := message.NewText(role.User, arithmeticPrompt)

	adapter, err := p.caller.Adapter(pc, modelID)
	if err != nil {
		return profile{}, err
	}

	if settings.IsReasoningModelID(modelID) {
		rp, ok := adapter.(reasoningFieldProber)
		if !ok {
			return profile{}, fmt.Errorf("capability: adapter for %q cannot probe reasoning fields", modelID)
		}

		found, err := rp.ProbeReasoningField(ctx, []message.Message{question})
		if err != nil {
			return profile{}, err
		}

		prof := profile{
			reasoning: found,
			params: settings.SupportedParams{
				Temperature:    false,
				MaxTokensField: settings.MaxCompletionTokensField,
				Streaming:      false,
				SystemMessage:  true,
			},
		}
		if found {
			prof.kind = settings.OpenAIReasoning
		}
		return prof, nil
	}

	msgs := []message.Message{message.NewText(role.System, stepwiseInstruction), question}
	text, err := p.caller.Call(ctx, msgs, pc, modelID, stream, nil)
	if err != nil {
		return profile{}, err
	}

	// The adapter may have switched fields after a rejected max_tokens.
	field := settings.MaxTokensField
	if tf, ok := adapter.(tokenFielder); ok {
		field = tf.TokenField()
	}

	prof := profile{
		reasoning: DetectOpenAIThinking(text),
		params: settings.SupportedParams{
			Temperature:    true,
			MaxTokensField: field,
			Streaming:      true,
			SystemMessage:  true,
		},
	}
	if prof.reasoning {
		prof.kind = settings.GenericCoT
	}

	return prof, nil
}

type rawCompleter interface {
	CompleteRaw(ctx context.Context, msgs []message.Message) (json.RawMessage, error)
}

func (p *Prober) probeGemini(ctx context.Context, pc settings.ProviderConfig, modelID string) (profile, error) {
	adapter, err := p.caller.Adapter(pc, modelID)
	if err != nil {
		return profile{}, err
	}

	rc, ok := adapter.(rawCompleter)
	if !ok {
		return profile{}, errors.New("capability: adapter cannot return raw responses")
	}

	raw, err := rc.CompleteRaw(ctx, []message.Message{message.NewText(role.User, thoughtPrompt)})
	if err != nil {
		return profile{}, err
	}

	prof := profile{
		reasoning: gemini.HasThought(raw) || IsGeminiThinkingModel(modelID),
		params:    settings.DefaultSupportedParams(),
	}
	if prof.reasoning {
		prof.kind = settings.GeminiThought
	}

	return prof, nil
}

func (p *Prober) probeClaude(ctx context.Context, pc settings.ProviderConfig, modelID string, stream bool) (profile, error) {
	msgs := []message.Message{message.NewText(role.User, thinkingPrompt)}

	text, err := p.caller.Call(ctx, msgs, pc, modelID, stream, nil)
	if err != nil {
		return profile{}, err
	}

	prof := profile{
		reasoning: HasThinkingTags(text) || IsClaudeThinkingModel(modelID),
		params:    settings.DefaultSupportedParams(),
	}
	if prof.reasoning {
		prof.kind = settings.ClaudeThinking
	}

	return prof, nil
}
