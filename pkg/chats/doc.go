// Package chats provides a vendor-agnostic data model for LLM chat interactions.
//
// It is organized into sub-packages:
//   - [github.com/germanamz/promptforge/pkg/chats/role]: conversation roles (system, user, assistant)
//   - [github.com/germanamz/promptforge/pkg/chats/content]: multi-modal content parts (text, image, document, audio, video)
//   - [github.com/germanamz/promptforge/pkg/chats/attachment]: generic file attachments and their media classification
//   - [github.com/germanamz/promptforge/pkg/chats/message]: messages composed of a role, content parts, and attachments
//
// No vendor or API code is included; chats is a foundation layer
// that adapters can build on.
package chats
