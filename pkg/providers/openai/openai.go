// Package openai provides an Adapter for the OpenAI Chat Completions API and
// compatible endpoints (proxies, gateways and self-hosted servers).
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/germanamz/promptforge/pkg/chats/message"
	"github.com/germanamz/promptforge/pkg/modeladapter"
	"github.com/germanamz/promptforge/pkg/modeladapter/usage"
	"github.com/germanamz/promptforge/pkg/settings"
)

const (
	completionsPath = "/chat/completions"
	versionSegment  = "/v1"

	// ProbeMaxCompletionTokens bounds the reasoning-field probe.
	ProbeMaxCompletionTokens = 100
)

var _ modeladapter.Adapter = (*Adapter)(nil)

// Adapter implements modeladapter.Adapter for OpenAI-compatible endpoints.
type Adapter struct {
	modeladapter.ModelAdapter

	// OmitTemperature drops the temperature field, for models known to
	// reject it.
	OmitTemperature bool

	mu         sync.Mutex
	tokenField string
}

// New creates an Adapter for the given base URL, which may be a bare host,
// a versioned base or a full completions endpoint. The token-limit field
// defaults from the model id; reasoning models also get the extended timeout.
func New(baseURL, apiKey, model string) *Adapter {
	a := &Adapter{tokenField: settings.MaxTokensField}
	a.BaseURL = baseURL
	a.Auth = modeladapter.Auth{Key: apiKey}
	a.Name = model
	a.Timeout = modeladapter.StandardTimeout

	if settings.IsReasoningModelID(model) {
		a.tokenField = settings.MaxCompletionTokensField
		a.Timeout = modeladapter.ExtendedTimeout
	}

	return a
}

// Endpoint resolves the completions URL from a configured base URL.
func Endpoint(baseURL string) string {
	u := strings.TrimSpace(baseURL)

	switch {
	case strings.Contains(u, completionsPath):
		return u
	case strings.Contains(u, versionSegment):
		return strings.TrimRight(u, "/") + completionsPath
	default:
		return strings.TrimRight(u, "/") + versionSegment + completionsPath
	}
}

// TokenField returns the token-limit field name currently in use.
func (a *Adapter) TokenField() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.tokenField
}

// SetTokenField overrides the token-limit field name, e.g. from a stored
// capability record. Unknown names are ignored.
func (a *Adapter) SetTokenField(field string) {
	if field != settings.MaxTokensField && field != settings.MaxCompletionTokensField {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.tokenField = field
}

// Complete sends a buffered request and extracts the assistant text.
func (a *Adapter) Complete(ctx context.Context, msgs []message.Message, params settings.Params) (modeladapter.Response, error) {
	var resp apiResponse
	if err := a.withTokenFallback(func(field string) error {
		return a.PostJSON(ctx, Endpoint(a.BaseURL), a.buildRequest(msgs, params, field, false), &resp)
	}); err != nil {
		return modeladapter.Response{}, fmt.Errorf("openai: %w", err)
	}

	if resp.Usage != nil {
		a.Usage.Add(usage.TokenCount{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		})
	}

	text, ok := extractText(&resp)
	if !ok || strings.TrimSpace(text) == "" {
		return modeladapter.Response{}, fmt.Errorf("openai: %w", &modeladapter.EmptyContentError{})
	}

	out := modeladapter.Response{Content: text}
	if len(resp.Choices) > 0 {
		out.FinishReason = resp.Choices[0].FinishReason
	}

	return out, nil
}

// Stream sends a streamed request and returns the SSE body.
func (a *Adapter) Stream(ctx context.Context, msgs []message.Message, params settings.Params) (io.ReadCloser, error) {
	var body io.ReadCloser
	if err := a.withTokenFallback(func(field string) error {
		var err error
		body, err = a.PostStream(ctx, Endpoint(a.BaseURL), a.buildRequest(msgs, params, field, true))
		return err
	}); err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}

	return body, nil
}

// ProbeReasoningField sends msgs with only max_completion_tokens set and
// reports whether the reply carries a reasoning field.
func (a *Adapter) ProbeReasoningField(ctx context.Context, msgs []message.Message) (bool, error) {
	req := apiRequest{
		Model:               a.Name,
		Messages:            convertMessages(msgs),
		MaxCompletionTokens: ProbeMaxCompletionTokens,
	}

	var resp apiResponse
	if err := a.PostJSON(ctx, Endpoint(a.BaseURL), req, &resp); err != nil {
		return false, fmt.Errorf("openai: %w", err)
	}

	if len(resp.Choices) == 0 {
		return false, nil
	}

	m := resp.Choices[0].Message
	return present(m.Reasoning) || present(m.ReasoningContent), nil
}

// withTokenFallback runs call with the current token field. When the vendor
// rejects max_tokens as unsupported, it switches to max_completion_tokens,
// remembers the switch and retries exactly once.
func (a *Adapter) withTokenFallback(call func(field string) error) error {
	field := a.TokenField()

	err := call(field)
	if err == nil || field != settings.MaxTokensField || !IsUnsupportedTokenField(err) {
		return err
	}

	a.SetTokenField(settings.MaxCompletionTokensField)

	return call(settings.MaxCompletionTokensField)
}

// IsUnsupportedTokenField reports whether err is a vendor rejection of the
// max_tokens field.
func IsUnsupportedTokenField(err error) bool {
	var pe *modeladapter.ProtocolError
	if !errors.As(err, &pe) {
		return false
	}

	mentionsBoth := strings.Contains(pe.Message, settings.MaxTokensField) &&
		strings.Contains(pe.Message, settings.MaxCompletionTokensField)
	if pe.Code != "unsupported_parameter" && !mentionsBoth {
		return false
	}

	return pe.Param == "" || pe.Param == settings.MaxTokensField
}

// --- request types ---

type apiRequest struct {
	Model               string       `json:"model"`
	Messages            []apiMessage `json:"messages"`
	Temperature         *float64     `json:"temperature,omitempty"`
	MaxTokens           int          `json:"max_tokens,omitempty"`
	MaxCompletionTokens int          `json:"max_completion_tokens,omitempty"`
	TopP                *float64     `json:"top_p,omitempty"`
	FrequencyPenalty    float64      `json:"frequency_penalty,omitempty"`
	PresencePenalty     float64      `json:"presence_penalty,omitempty"`
	Stream              bool         `json:"stream,omitempty"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string or []apiPart
}

type apiPart struct {
	Type     string       `json:"type"`
	Text     string       `json:"text,omitempty"`
	ImageURL *apiImageURL `json:"image_url,omitempty"`
}

type apiImageURL struct {
	URL string `json:"url"`
}

// --- response types ---

type apiResponse struct {
	Choices    []apiChoice     `json:"choices"`
	Candidates []apiCandidate  `json:"candidates"`
	Content    json.RawMessage `json:"content"`
	Text       json.RawMessage `json:"text"`
	Usage      *apiUsage       `json:"usage"`
}

type apiChoice struct {
	Message      apiRespMessage `json:"message"`
	FinishReason string         `json:"finish_reason"`
}

type apiRespMessage struct {
	Content          json.RawMessage `json:"content"`
	Reasoning        json.RawMessage `json:"reasoning"`
	ReasoningContent json.RawMessage `json:"reasoning_content"`
}

type apiCandidate struct {
	Content struct {
		Parts []apiCandidatePart `json:"parts"`
	} `json:"content"`
}

type apiCandidatePart struct {
	Text    string `json:"text"`
	Thought bool   `json:"thought"`
}

type apiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// --- conversion helpers ---

func (a *Adapter) buildRequest(msgs []message.Message, params settings.Params, field string, stream bool) apiRequest {
	req := apiRequest{
		Model:            a.Name,
		Messages:         convertMessages(msgs),
		TopP:             &params.TopP,
		FrequencyPenalty: params.FrequencyPenalty,
		PresencePenalty:  params.PresencePenalty,
		Stream:           stream,
	}

	if !a.OmitTemperature {
		req.Temperature = &params.Temperature
	}

	if field == settings.MaxCompletionTokensField {
		req.MaxCompletionTokens = params.MaxTokensOrDefault()
	} else {
		req.MaxTokens = params.MaxTokensOrDefault()
	}

	return req
}

func convertMessages(msgs []message.Message) []apiMessage {
	out := make([]apiMessage, 0, len(msgs))
	for _, m := range msgs {
		am := apiMessage{Role: string(m.Role)}
		if m.IsMultimodal() {
			am.Content = convertParts(m)
		} else {
			am.Content = m.TextContent()
		}
		out = append(out, am)
	}
	return out
}

// responseShapes are tried in order; the first non-empty text wins.
var responseShapes = []func(*apiResponse) (string, bool){
	// {choices:[{message:{content:"..."}}]}
	func(r *apiResponse) (string, bool) {
		if len(r.Choices) == 0 {
			return "", false
		}
		return nonEmpty(rawString(r.Choices[0].Message.Content))
	},
	// {candidates:[{content:{parts:[{text:"..."}]}}]}
	func(r *apiResponse) (string, bool) {
		if len(r.Candidates) == 0 {
			return "", false
		}
		return firstVisiblePart(r.Candidates[0].Content.Parts)
	},
	// {content:"..."}
	func(r *apiResponse) (string, bool) { return nonEmpty(rawString(r.Content)) },
	// {text:"..."}
	func(r *apiResponse) (string, bool) { return nonEmpty(rawString(r.Text)) },
}

func extractText(r *apiResponse) (string, bool) {
	for _, shape := range responseShapes {
		if text, ok := shape(r); ok {
			return text, true
		}
	}
	return "", false
}

func firstVisiblePart(parts []apiCandidatePart) (string, bool) {
	for _, p := range parts {
		if p.Text != "" && !p.Thought {
			return p.Text, true
		}
	}
	return "", false
}

func nonEmpty(s string) (string, bool) { return s, s != "" }

// rawString returns raw as a string when it is a JSON string.
func rawString(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

// present reports whether raw holds a value other than null, false, "" or
// an empty object.
func present(raw json.RawMessage) bool {
	switch strings.TrimSpace(string(raw)) {
	case "", "null", "false", `""`, "{}", "[]":
		return false
	}
	return true
}
