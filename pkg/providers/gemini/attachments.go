package gemini

import (
	"strings"

	"github.com/germanamz/promptforge/pkg/chats/attachment"
	"github.com/germanamz/promptforge/pkg/chats/content"
	"github.com/germanamz/promptforge/pkg/chats/message"
)

// Supported reports whether Gemini can take the attachment as inline data.
func Supported(att attachment.Attachment) bool {
	switch att.Kind() {
	case attachment.KindImage, attachment.KindPDF, attachment.KindAudio, attachment.KindVideo:
		return true
	case attachment.KindText:
		return att.MediaType() == "text/plain"
	default:
		return false
	}
}

// DroppedNotice describes attachments that could not be sent, so the model
// knows the user attached them.
func DroppedNotice(dropped []attachment.Attachment) string {
	descs := make([]string, len(dropped))
	for i, att := range dropped {
		descs[i] = att.Describe()
	}
	return "[The user attached the following files, which cannot be processed directly: " +
		strings.Join(descs, ", ") + "]"
}

// convertParts renders a multimodal message as parts: text, then inline data
// for supported parts and attachments, then one notice for the rest. Images
// known only by URL get a notice of their own.
func convertParts(m message.Message) []apiPart {
	parts := make([]apiPart, 0, len(m.Parts)+len(m.Attachments)+1)

	var dropped []attachment.Attachment
	add := func(att attachment.Attachment) {
		if !Supported(att) {
			dropped = append(dropped, att)
			return
		}
		parts = append(parts, inlinePart(att.MediaType(), att.Data))
	}

	for _, p := range m.Parts {
		switch v := p.(type) {
		case content.Text:
			if strings.TrimSpace(v.Text) != "" {
				parts = append(parts, apiPart{Text: v.Text})
			}
		case content.Image:
			if len(v.Data) == 0 && v.URL != "" {
				parts = append(parts, apiPart{Text: attachment.URLNotice(v.URL).Text})
				continue
			}
			att, _ := attachment.FromPart(v)
			add(att)
		default:
			if att, ok := attachment.FromPart(p); ok {
				add(att)
			}
		}
	}

	for _, att := range m.Attachments {
		add(att)
	}

	if len(dropped) > 0 {
		parts = append(parts, apiPart{Text: DroppedNotice(dropped)})
	}

	return parts
}

func inlinePart(mimeType string, data []byte) apiPart {
	return apiPart{InlineData: &apiInlineData{MimeType: mimeType, Data: content.Base64(data)}}
}
