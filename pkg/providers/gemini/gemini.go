// Package gemini provides an Adapter for the Google Gemini generateContent API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/germanamz/promptforge/pkg/chats/message"
	"github.com/germanamz/promptforge/pkg/chats/role"
	"github.com/germanamz/promptforge/pkg/modeladapter"
	"github.com/germanamz/promptforge/pkg/modeladapter/usage"
	"github.com/germanamz/promptforge/pkg/settings"
)

const (
	versionSegment = "/v1beta"
	modelsSegment  = "/models/"

	// rawProbeTemperature is used by CompleteRaw, which sends no other
	// generation settings.
	rawProbeTemperature = 0.7
)

var _ modeladapter.Adapter = (*Adapter)(nil)

// Adapter implements modeladapter.Adapter for the Google Gemini API.
type Adapter struct {
	modeladapter.ModelAdapter
}

// New creates an Adapter configured for the Gemini API.
// The baseURL may be a bare host, a versioned base or a full model URL.
func New(baseURL, apiKey, model string) *Adapter {
	a := &Adapter{}
	a.BaseURL = baseURL
	a.Auth = modeladapter.Auth{
		Key:    apiKey,
		Header: "x-goog-api-key",
	}
	a.Name = model
	a.Timeout = modeladapter.StandardTimeout

	return a
}

// BaseEndpoint normalizes a configured URL to its versioned API base.
// A URL that already points at a model is cut back to its base.
func BaseEndpoint(baseURL string) string {
	u := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if strings.HasSuffix(u, versionSegment) {
		return u
	}

	if i := strings.Index(u, modelsSegment); i >= 0 {
		u = strings.TrimRight(u[:i], "/")
	}
	if !strings.HasSuffix(u, versionSegment) {
		u += versionSegment
	}

	return u
}

// Endpoint returns the generateContent URL for model, or the SSE
// streamGenerateContent URL when stream is set.
func Endpoint(baseURL, model string, stream bool) string {
	base := BaseEndpoint(baseURL) + modelsSegment + url.PathEscape(model)
	if stream {
		return base + ":streamGenerateContent?alt=sse"
	}
	return base + ":generateContent"
}

// Complete sends a buffered request and returns the first visible part of
// the first candidate.
func (a *Adapter) Complete(ctx context.Context, msgs []message.Message, params settings.Params) (modeladapter.Response, error) {
	var resp apiResponse
	if err := a.PostJSON(ctx, Endpoint(a.BaseURL, a.Name, false), a.buildRequest(msgs, params), &resp); err != nil {
		return modeladapter.Response{}, fmt.Errorf("gemini: %w", err)
	}

	if resp.UsageMetadata != nil {
		a.Usage.Add(usage.TokenCount{
			InputTokens:  resp.UsageMetadata.PromptTokenCount,
			OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
		})
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content.Parts == nil {
		return modeladapter.Response{}, fmt.Errorf("gemini: %w", &modeladapter.ProtocolError{
			Message: "response has no candidate parts",
		})
	}

	cand := resp.Candidates[0]

	text, ok := FirstVisibleText(cand.Content.Parts)
	if !ok || strings.TrimSpace(text) == "" {
		return modeladapter.Response{}, fmt.Errorf("gemini: %w", &modeladapter.EmptyContentError{})
	}

	return modeladapter.Response{Content: text, FinishReason: cand.FinishReason}, nil
}

// Stream sends a streamed request and returns the SSE body.
func (a *Adapter) Stream(ctx context.Context, msgs []message.Message, params settings.Params) (io.ReadCloser, error) {
	body, err := a.PostStream(ctx, Endpoint(a.BaseURL, a.Name, true), a.buildRequest(msgs, params))
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	return body, nil
}

// CompleteRaw sends msgs as plain text with a fixed temperature and returns
// the undecoded response, for callers that inspect the response structure.
func (a *Adapter) CompleteRaw(ctx context.Context, msgs []message.Message) (json.RawMessage, error) {
	req := apiRequest{
		Contents:         convertContents(msgs),
		GenerationConfig: apiGenerationConfig{Temperature: rawProbeTemperature},
	}

	var raw json.RawMessage
	if err := a.PostJSON(ctx, Endpoint(a.BaseURL, a.Name, false), req, &raw); err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}

	return raw, nil
}

// ParseStreamChunk decodes one SSE data payload using the same
// thought-skipping scan as Complete. A finish reason without text ends the
// stream.
func (a *Adapter) ParseStreamChunk(data string) (modeladapter.StreamChunk, bool) {
	var resp apiResponse
	if err := json.Unmarshal([]byte(data), &resp); err != nil || len(resp.Candidates) == 0 {
		return modeladapter.StreamChunk{}, false
	}

	cand := resp.Candidates[0]
	if text, ok := FirstVisibleText(cand.Content.Parts); ok {
		return modeladapter.StreamChunk{Content: text}, true
	}

	if cand.FinishReason != "" {
		return modeladapter.StreamChunk{Done: true}, true
	}

	return modeladapter.StreamChunk{}, false
}

// FirstVisibleText returns the first part that has text and is not marked
// as a thought.
func FirstVisibleText(parts []Part) (string, bool) {
	for _, p := range parts {
		if p.Text != "" && !p.Thought {
			return p.Text, true
		}
	}
	return "", false
}

// HasThought reports whether any candidate part in a raw generateContent
// response carries the thought flag.
func HasThought(raw []byte) bool {
	var resp apiResponse
	if err := json.NewDecoder(bytes.NewReader(raw)).Decode(&resp); err != nil {
		return false
	}

	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			if p.Thought {
				return true
			}
		}
	}

	return false
}

// --- request types ---

type apiRequest struct {
	Contents          []apiContent        `json:"contents"`
	SystemInstruction *apiContent         `json:"system_instruction,omitempty"`
	GenerationConfig  apiGenerationConfig `json:"generationConfig"`
}

type apiContent struct {
	Role  string    `json:"role,omitempty"`
	Parts []apiPart `json:"parts"`
}

type apiPart struct {
	Text       string         `json:"text,omitempty"`
	InlineData *apiInlineData `json:"inline_data,omitempty"`
}

type apiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type apiGenerationConfig struct {
	Temperature     float64  `json:"temperature"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	TopK            int      `json:"topK,omitempty"`
}

// --- response types ---

type apiResponse struct {
	Candidates    []apiCandidate `json:"candidates"`
	UsageMetadata *apiUsage      `json:"usageMetadata"`
}

type apiCandidate struct {
	Content struct {
		Parts []Part `json:"parts"`
	} `json:"content"`
	FinishReason string `json:"finishReason"`
}

// Part is one element of a candidate's content.
type Part struct {
	Text    string `json:"text"`
	Thought bool   `json:"thought"`
}

type apiUsage struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
}

// --- conversion helpers ---

func (a *Adapter) buildRequest(msgs []message.Message, params settings.Params) apiRequest {
	req := apiRequest{
		Contents: convertContents(msgs),
		GenerationConfig: apiGenerationConfig{
			Temperature:     params.Temperature,
			MaxOutputTokens: params.MaxTokensOrDefault(),
			TopP:            &params.TopP,
		},
	}

	if params.TopK > 0 {
		req.GenerationConfig.TopK = params.TopK
	}

	if sys := message.SystemText(msgs); sys != "" {
		req.SystemInstruction = &apiContent{Parts: []apiPart{{Text: sys}}}
	}

	return req
}

func convertContents(msgs []message.Message) []apiContent {
	conv := message.Conversation(msgs)
	out := make([]apiContent, 0, len(conv))

	for _, m := range conv {
		c := apiContent{Role: mapRole(m.Role)}
		if m.IsMultimodal() {
			c.Parts = convertParts(m)
		} else {
			c.Parts = []apiPart{{Text: m.TextContent()}}
		}
		out = append(out, c)
	}

	return out
}

func mapRole(r role.Role) string {
	if r == role.Assistant {
		return "model"
	}
	return "user"
}
