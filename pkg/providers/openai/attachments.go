package openai

import (
	"strings"

	"github.com/germanamz/promptforge/pkg/chats/attachment"
	"github.com/germanamz/promptforge/pkg/chats/content"
	"github.com/germanamz/promptforge/pkg/chats/message"
)

// convertParts renders a multimodal message as content parts: the message's
// own parts first, then its attachments. Images travel as URLs or data URLs,
// text-like files and documents inline as text, and any other part or file
// as a short notice.
func convertParts(m message.Message) []apiPart {
	parts := make([]apiPart, 0, len(m.Parts)+len(m.Attachments))

	for _, p := range m.Parts {
		switch v := p.(type) {
		case content.Text:
			if strings.TrimSpace(v.Text) != "" {
				parts = append(parts, textPart(v.Text))
			}
		case content.Image:
			url := v.URL
			if url == "" {
				url = content.DataURL(v.MediaType, v.Data)
			}
			parts = append(parts, apiPart{Type: "image_url", ImageURL: &apiImageURL{URL: url}})
		default:
			if att, ok := attachment.FromPart(p); ok {
				parts = append(parts, convertAttachment(att))
			}
		}
	}

	for _, att := range m.Attachments {
		parts = append(parts, convertAttachment(att))
	}

	return parts
}

func convertAttachment(att attachment.Attachment) apiPart {
	switch att.Kind() {
	case attachment.KindImage:
		return apiPart{
			Type:     "image_url",
			ImageURL: &apiImageURL{URL: content.DataURL(att.MediaType(), att.Data)},
		}
	case attachment.KindText:
		if t, ok := att.Part().(content.Text); ok {
			return textPart(t.Text)
		}
	}

	return textPart(att.Notice().Text)
}

func textPart(text string) apiPart {
	return apiPart{Type: "text", Text: text}
}
