// Package attachment defines generic file attachments carried by chat messages.
//
// An Attachment is vendor-agnostic: each vendor adapter decides which kinds it
// can embed and how to encode them.
package attachment

import (
	"fmt"
	"strings"

	"github.com/germanamz/promptforge/pkg/chats/content"
)

// Kind classifies an attachment by its media type.
type Kind string

const (
	KindImage    Kind = "image"
	KindPDF      Kind = "pdf"
	KindText     Kind = "text"
	KindAudio    Kind = "audio"
	KindVideo    Kind = "video"
	KindDocument Kind = "document"
)

// Attachment is a file reference attached to a message.
type Attachment struct {
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
	Data     []byte `json:"data"`
}

// textMimeTypes lists non text/* media types whose payload is readable text.
var textMimeTypes = map[string]bool{
	"application/json":       true,
	"application/xml":        true,
	"application/x-yaml":     true,
	"application/yaml":       true,
	"application/javascript": true,
	"application/x-sh":       true,
	"application/csv":        true,
	"application/markdown":   true,
}

// MediaType returns the lower-cased media type without parameters.
func (a Attachment) MediaType() string {
	mt, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(a.MimeType)), ";")
	return strings.TrimSpace(mt)
}

// Kind reports the media classification of the attachment.
func (a Attachment) Kind() Kind {
	mt := a.MediaType()

	switch {
	case strings.HasPrefix(mt, "image/"):
		return KindImage
	case mt == "application/pdf":
		return KindPDF
	case strings.HasPrefix(mt, "audio/"):
		return KindAudio
	case strings.HasPrefix(mt, "video/"):
		return KindVideo
	case strings.HasPrefix(mt, "text/"), textMimeTypes[mt]:
		return KindText
	default:
		return KindDocument
	}
}

// ByteSize returns the declared size, falling back to the payload length.
func (a Attachment) ByteSize() int64 {
	if a.Size > 0 {
		return a.Size
	}
	return int64(len(a.Data))
}

// Describe returns a short human-readable summary, e.g. "notes.docx (application/msword, 12.5KB)".
func (a Attachment) Describe() string {
	return fmt.Sprintf("%s (%s, %.1fKB)", a.Name, a.MimeType, float64(a.ByteSize())/1024)
}

// Part converts the attachment into a generic content part. Text-like files
// become a Text part prefixed with the file name so the model can tell files
// apart.
func (a Attachment) Part() content.Part {
	switch a.Kind() {
	case KindImage:
		return content.Image{Data: a.Data, MediaType: a.MediaType()}
	case KindAudio:
		return content.Audio{Data: a.Data, MediaType: a.MediaType()}
	case KindVideo:
		return content.Video{Data: a.Data, MediaType: a.MediaType()}
	case KindText:
		return content.Text{Text: fmt.Sprintf("[File: %s]\n%s", a.Name, string(a.Data))}
	default:
		return content.Document{Name: a.Name, Data: a.Data, MediaType: a.MediaType()}
	}
}

// Notice returns the text part used when a vendor cannot embed the attachment.
func (a Attachment) Notice() content.Text {
	return content.Text{Text: fmt.Sprintf("[Attachment: %s is not supported by this model]", a.Describe())}
}

// FromPart wraps a non-text content part as an attachment so vendors can
// convert inline parts and attached files the same way. It reports false for
// text parts and for images referenced only by URL, which have no payload.
// Part kinds it does not know become opaque documents.
func FromPart(p content.Part) (Attachment, bool) {
	switch v := p.(type) {
	case content.Text:
		return Attachment{}, false
	case content.Image:
		if len(v.Data) == 0 && v.URL != "" {
			return Attachment{}, false
		}
		return Attachment{Name: "image", MimeType: v.MediaType, Data: v.Data}, true
	case content.Document:
		name := v.Name
		if name == "" {
			name = "document"
		}
		return Attachment{Name: name, MimeType: v.MediaType, Data: v.Data}, true
	case content.Audio:
		return Attachment{Name: "audio", MimeType: v.MediaType, Data: v.Data}, true
	case content.Video:
		return Attachment{Name: "video", MimeType: v.MediaType, Data: v.Data}, true
	default:
		return Attachment{Name: p.PartKind(), MimeType: "application/octet-stream"}, true
	}
}

// URLNotice returns the text part used when a vendor cannot fetch an image
// referenced by URL.
func URLNotice(url string) content.Text {
	return content.Text{Text: fmt.Sprintf("[Image: %s cannot be fetched by this model]", url)}
}
