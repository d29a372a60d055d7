// Package anthropic provides an Adapter for the Anthropic Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/germanamz/promptforge/pkg/chats/message"
	"github.com/germanamz/promptforge/pkg/chats/role"
	"github.com/germanamz/promptforge/pkg/modeladapter"
	"github.com/germanamz/promptforge/pkg/modeladapter/usage"
	"github.com/germanamz/promptforge/pkg/settings"
)

const (
	messagesPath = "/v1/messages"
	apiVersion   = "2023-06-01"
)

// extendedTimeoutKeywords mark models that may think for minutes.
var extendedTimeoutKeywords = []string{"claude-3", "thinking", "sonnet"}

var _ modeladapter.Adapter = (*Adapter)(nil)

// Adapter implements modeladapter.Adapter for the Anthropic Messages API.
type Adapter struct {
	modeladapter.ModelAdapter
}

// New creates an Adapter configured for the Anthropic API.
// The baseURL may be a bare host or the full messages endpoint.
func New(baseURL, apiKey, model string) *Adapter {
	a := &Adapter{}
	a.BaseURL = baseURL
	a.Auth = modeladapter.Auth{
		Key:    apiKey,
		Header: "x-api-key",
	}
	a.Name = model
	a.Headers = map[string]string{
		"anthropic-version": apiVersion,
		// Lets the same endpoint be called from a browser-hosted UI.
		"anthropic-dangerous-direct-browser-access": "true",
	}
	a.Timeout = modeladapter.StandardTimeout

	if settings.ContainsAny(model, extendedTimeoutKeywords...) {
		a.Timeout = modeladapter.ExtendedTimeout
	}

	return a
}

// Endpoint resolves the messages URL from a configured base URL.
func Endpoint(baseURL string) string {
	u := strings.TrimSpace(baseURL)
	if strings.Contains(u, messagesPath) {
		return u
	}
	return strings.TrimRight(u, "/") + messagesPath
}

// Complete sends a buffered request and returns the first content block's text.
func (a *Adapter) Complete(ctx context.Context, msgs []message.Message, params settings.Params) (modeladapter.Response, error) {
	var resp apiResponse
	if err := a.PostJSON(ctx, Endpoint(a.BaseURL), a.buildRequest(msgs, params, false), &resp); err != nil {
		return modeladapter.Response{}, fmt.Errorf("anthropic: %w", err)
	}

	a.Usage.Add(usage.TokenCount{
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	})

	if len(resp.Content) == 0 || strings.TrimSpace(resp.Content[0].Text) == "" {
		return modeladapter.Response{}, fmt.Errorf("anthropic: %w", &modeladapter.EmptyContentError{})
	}

	return modeladapter.Response{
		Content:      resp.Content[0].Text,
		FinishReason: resp.StopReason,
	}, nil
}

// Stream sends a streamed request and returns the SSE body.
func (a *Adapter) Stream(ctx context.Context, msgs []message.Message, params settings.Params) (io.ReadCloser, error) {
	body, err := a.PostStream(ctx, Endpoint(a.BaseURL), a.buildRequest(msgs, params, true))
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}
	return body, nil
}

// ParseStreamChunk decodes one SSE data payload. Only content_block_delta
// (text) and message_stop (end) events produce chunks.
func (a *Adapter) ParseStreamChunk(data string) (modeladapter.StreamChunk, bool) {
	var ev apiStreamEvent
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		return modeladapter.StreamChunk{}, false
	}

	switch ev.Type {
	case "content_block_delta":
		if ev.Delta.Text == "" {
			return modeladapter.StreamChunk{}, false
		}
		return modeladapter.StreamChunk{Content: ev.Delta.Text}, true
	case "message_stop":
		return modeladapter.StreamChunk{Done: true}, true
	default:
		return modeladapter.StreamChunk{}, false
	}
}

// --- request types ---

type apiRequest struct {
	Model       string       `json:"model"`
	MaxTokens   int          `json:"max_tokens"`
	Temperature float64      `json:"temperature"`
	TopP        float64      `json:"top_p"`
	TopK        int          `json:"top_k,omitempty"`
	System      string       `json:"system,omitempty"`
	Messages    []apiMessage `json:"messages"`
	Stream      bool         `json:"stream,omitempty"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string or []apiBlock
}

type apiBlock struct {
	Type   string     `json:"type"`
	Text   string     `json:"text,omitempty"`
	Source *apiSource `json:"source,omitempty"`
}

type apiSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// --- response types ---

type apiResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string   `json:"stop_reason"`
	Usage      apiUsage `json:"usage"`
}

type apiUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type apiStreamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
}

// --- conversion helpers ---

func (a *Adapter) buildRequest(msgs []message.Message, params settings.Params, stream bool) apiRequest {
	req := apiRequest{
		Model:       a.Name,
		MaxTokens:   params.MaxTokensOrDefault(),
		Temperature: params.Temperature,
		TopP:        params.TopP,
		System:      message.SystemText(msgs),
		Stream:      stream,
	}

	if params.TopK > 0 {
		req.TopK = params.TopK
	}

	for _, m := range message.Conversation(msgs) {
		am := apiMessage{Role: "user"}
		if m.Role == role.Assistant {
			am.Role = "assistant"
		}

		if m.IsMultimodal() {
			am.Content = convertBlocks(m)
		} else {
			am.Content = m.TextContent()
		}

		req.Messages = append(req.Messages, am)
	}

	return req
}
