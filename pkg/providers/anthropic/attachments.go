package anthropic

import (
	"strings"

	"github.com/germanamz/promptforge/pkg/chats/attachment"
	"github.com/germanamz/promptforge/pkg/chats/content"
	"github.com/germanamz/promptforge/pkg/chats/message"
)

// imageMediaTypes are the image formats the Messages API accepts inline.
var imageMediaTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

const pdfMediaType = "application/pdf"

// convertBlocks renders a multimodal message as content blocks: the
// message's own parts first, then its attachments. Inline parts go through
// the same conversion as attachments, so anything the API cannot take
// becomes a text notice.
func convertBlocks(m message.Message) []apiBlock {
	blocks := make([]apiBlock, 0, len(m.Parts)+len(m.Attachments))

	for _, p := range m.Parts {
		switch v := p.(type) {
		case content.Text:
			if strings.TrimSpace(v.Text) != "" {
				blocks = append(blocks, apiBlock{Type: "text", Text: v.Text})
			}
		case content.Image:
			if len(v.Data) == 0 && v.URL != "" {
				blocks = append(blocks, apiBlock{Type: "text", Text: attachment.URLNotice(v.URL).Text})
				continue
			}
			att, _ := attachment.FromPart(v)
			blocks = append(blocks, convertAttachment(att))
		default:
			if att, ok := attachment.FromPart(p); ok {
				blocks = append(blocks, convertAttachment(att))
			}
		}
	}

	for _, att := range m.Attachments {
		blocks = append(blocks, convertAttachment(att))
	}

	return blocks
}

func convertAttachment(att attachment.Attachment) apiBlock {
	switch att.Kind() {
	case attachment.KindImage:
		if imageMediaTypes[att.MediaType()] {
			return base64Block("image", att.MediaType(), att.Data)
		}
	case attachment.KindPDF:
		return base64Block("document", pdfMediaType, att.Data)
	case attachment.KindText:
		if t, ok := att.Part().(content.Text); ok {
			return apiBlock{Type: "text", Text: t.Text}
		}
	}

	return apiBlock{Type: "text", Text: att.Notice().Text}
}

func base64Block(typ, mediaType string, data []byte) apiBlock {
	return apiBlock{
		Type: typ,
		Source: &apiSource{
			Type:      "base64",
			MediaType: mediaType,
			Data:      content.Base64(data),
		},
	}
}
