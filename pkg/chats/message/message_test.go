package message

import (
	"testing"

	"github.com/germanamz/promptforge/pkg/chats/attachment"
	"github.com/germanamz/promptforge/pkg/chats/content"
	"github.com/germanamz/promptforge/pkg/chats/role"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	msg := New(role.User, content.Text{Text: "hello"}, content.Image{URL: "img.png"})

	assert.Equal(t, role.User, msg.Role)
	assert.Len(t, msg.Parts, 2)
	assert.Nil(t, msg.Attachments)
}

func TestNewText(t *testing.T) {
	msg := NewText(role.Assistant, "hi there")

	assert.Equal(t, role.Assistant, msg.Role)
	assert.Len(t, msg.Parts, 1)
	assert.Equal(t, "hi there", msg.Parts[0].(content.Text).Text)
	assert.False(t, msg.IsMultimodal())
}

func TestMessage_TextContent(t *testing.T) {
	msg := New(role.User,
		content.Text{Text: "hello "},
		content.Image{URL: "img.png"},
		content.Text{Text: "world"},
	)

	assert.Equal(t, "hello world", msg.TextContent())
	assert.True(t, msg.IsMultimodal())
}

func TestMessage_TextContent_NoParts(t *testing.T) {
	msg := New(role.User)
	assert.Empty(t, msg.TextContent())
}

func TestMessage_WithAttachments_Copies(t *testing.T) {
	base := NewText(role.User, "see file")
	att := attachment.Attachment{Name: "a.png", MimeType: "image/png"}

	withAtt := base.WithAttachments(att)

	assert.False(t, base.HasAttachments())
	assert.True(t, withAtt.HasAttachments())
	assert.True(t, withAtt.IsMultimodal())
}

func TestMessage_Validate(t *testing.T) {
	require.NoError(t, NewText(role.System, "be nice").Validate())
	require.NoError(t, NewText(role.User, "x").WithAttachments(attachment.Attachment{Name: "a"}).Validate())

	err := NewText(role.System, "x").WithAttachments(attachment.Attachment{Name: "a"}).Validate()
	require.ErrorIs(t, err, ErrSystemAttachments)

	err = NewText(role.Role("tool"), "x").Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown role")
}

func TestValidateAll(t *testing.T) {
	msgs := []Message{
		NewText(role.User, "ok"),
		NewText(role.System, "bad").WithAttachments(attachment.Attachment{Name: "x"}),
	}

	err := ValidateAll(msgs)
	require.ErrorIs(t, err, ErrSystemAttachments)
	assert.Contains(t, err.Error(), "message 1")
}

func TestSystemText(t *testing.T) {
	msgs := []Message{
		NewText(role.System, "You are helpful."),
		NewText(role.User, "hi"),
		New(role.System, content.Text{Text: "Be brief."}, content.Text{Text: "Use English."}),
	}

	assert.Equal(t, "You are helpful. Be brief. Use English.", SystemText(msgs))
	assert.Empty(t, SystemText([]Message{NewText(role.User, "x")}))
}

func TestConversation(t *testing.T) {
	msgs := []Message{
		NewText(role.System, "sys"),
		NewText(role.User, "u1"),
		NewText(role.Assistant, "a1"),
	}

	conv := Conversation(msgs)
	require.Len(t, conv, 2)
	assert.Equal(t, role.User, conv[0].Role)
	assert.Equal(t, role.Assistant, conv[1].Role)
}
