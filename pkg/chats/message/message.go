// Package message defines the Message type used in LLM conversations.
package message

import (
	"errors"
	"fmt"
	"strings"

	"github.com/germanamz/promptforge/pkg/chats/attachment"
	"github.com/germanamz/promptforge/pkg/chats/content"
	"github.com/germanamz/promptforge/pkg/chats/role"
)

// ErrSystemAttachments is returned by Validate for a system message that
// carries attachments.
var ErrSystemAttachments = errors.New("message: system messages cannot carry attachments")

// Message represents a single message in a conversation.
// It is a value type; callers must not mutate Parts or Attachments after
// handing a message to an adapter.
type Message struct {
	Role        role.Role
	Parts       []content.Part
	Attachments []attachment.Attachment
}

// New creates a message with the given role and content parts.
func New(r role.Role, parts ...content.Part) Message {
	return Message{
		Role:  r,
		Parts: parts,
	}
}

// NewText creates a message with a single Text content part.
func NewText(r role.Role, text string) Message {
	return New(r, content.Text{Text: text})
}

// WithAttachments returns a copy of m carrying the given attachments.
func (m Message) WithAttachments(atts ...attachment.Attachment) Message {
	cp := m
	cp.Attachments = append([]attachment.Attachment(nil), atts...)
	return cp
}

// TextContent concatenates the text of all Text parts in the message.
func (m Message) TextContent() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if t, ok := p.(content.Text); ok {
			b.WriteString(t.Text)
		}
	}
	return b.String()
}

// HasAttachments reports whether the message carries any attachments.
func (m Message) HasAttachments() bool {
	return len(m.Attachments) > 0
}

// IsMultimodal reports whether the message must be sent as a sequence of
// parts rather than a plain string.
func (m Message) IsMultimodal() bool {
	if m.HasAttachments() {
		return true
	}
	for _, p := range m.Parts {
		if _, ok := p.(content.Text); !ok {
			return true
		}
	}
	return false
}

// Validate checks the role and rejects attachments on system messages.
func (m Message) Validate() error {
	if !m.Role.Valid() {
		return fmt.Errorf("message: unknown role %q", m.Role)
	}
	if m.Role == role.System && m.HasAttachments() {
		return ErrSystemAttachments
	}
	return nil
}

// ValidateAll validates every message in msgs.
func ValidateAll(msgs []Message) error {
	for i, m := range msgs {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
	}
	return nil
}

// SystemText joins the text of every system message with a single space.
// It returns an empty string when there are no system messages.
func SystemText(msgs []Message) string {
	var texts []string
	for _, m := range msgs {
		if m.Role != role.System {
			continue
		}
		for _, p := range m.Parts {
			if t, ok := p.(content.Text); ok && t.Text != "" {
				texts = append(texts, t.Text)
			}
		}
	}
	return strings.Join(texts, " ")
}

// Conversation returns the messages whose role is not system, preserving order.
func Conversation(msgs []Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role != role.System {
			out = append(out, m)
		}
	}
	return out
}
