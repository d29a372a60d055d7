// Package providers groups the vendor adapters.
//
// It is organized into sub-packages, each implementing
// [github.com/germanamz/promptforge/pkg/modeladapter.Adapter]:
//   - [github.com/germanamz/promptforge/pkg/providers/openai]: OpenAI Chat Completions and compatible endpoints
//   - [github.com/germanamz/promptforge/pkg/providers/anthropic]: Anthropic Messages API
//   - [github.com/germanamz/promptforge/pkg/providers/gemini]: Google Gemini generateContent API
//
// Each adapter also owns the conversion of message attachments into its
// vendor's multimodal payload shape.
package providers
