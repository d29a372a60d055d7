package openai

import (
	"encoding/json"
	"strings"

	"github.com/germanamz/promptforge/pkg/modeladapter"
)

type apiStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Candidates []apiCandidate `json:"candidates"`
	Delta      struct {
		Text string `json:"text"`
	} `json:"delta"`
	Text string `json:"text"`
	Done bool   `json:"done"`
}

// ParseStreamChunk decodes one SSE data payload. Besides the canonical
// choices[0].delta.content shape it accepts the candidate/parts, delta.text
// and flat text shapes some proxies emit. "[DONE]" and empty payloads end
// the stream; a finish_reason or done:true marks the last chunk.
func (a *Adapter) ParseStreamChunk(data string) (modeladapter.StreamChunk, bool) {
	trimmed := strings.TrimSpace(data)
	if trimmed == "" || trimmed == "[DONE]" {
		return modeladapter.StreamChunk{Done: true}, true
	}

	// Keep-alive status lines, e.g. ": OPENROUTER PROCESSING".
	if strings.HasPrefix(data, ": ") && strings.Contains(strings.ToUpper(data), "PROCESSING") {
		return modeladapter.StreamChunk{}, false
	}

	var c apiStreamChunk
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return modeladapter.StreamChunk{}, false
	}

	var text string
	switch {
	case len(c.Choices) > 0 && c.Choices[0].Delta.Content != "":
		text = c.Choices[0].Delta.Content
	case len(c.Candidates) > 0 && len(c.Candidates[0].Content.Parts) > 0:
		text, _ = firstVisiblePart(c.Candidates[0].Content.Parts)
	case c.Delta.Text != "":
		text = c.Delta.Text
	case c.Text != "":
		text = c.Text
	}

	done := c.Done
	if len(c.Choices) > 0 && c.Choices[0].FinishReason != "" {
		done = true
	}

	return modeladapter.StreamChunk{Content: text, Done: done}, true
}
