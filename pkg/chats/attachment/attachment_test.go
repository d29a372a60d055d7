package attachment_test

import (
	"testing"

	"github.com/germanamz/promptforge/pkg/chats/attachment"
	"github.com/germanamz/promptforge/pkg/chats/content"
	"github.com/stretchr/testify/assert"
)

func TestAttachment_Kind(t *testing.T) {
	tests := []struct {
		mime string
		want attachment.Kind
	}{
		{"image/png", attachment.KindImage},
		{"IMAGE/JPEG", attachment.KindImage},
		{"application/pdf", attachment.KindPDF},
		{"text/plain; charset=utf-8", attachment.KindText},
		{"application/json", attachment.KindText},
		{"audio/mpeg", attachment.KindAudio},
		{"video/mp4", attachment.KindVideo},
		{"application/vnd.openxmlformats-officedocument.wordprocessingml.document", attachment.KindDocument},
		{"", attachment.KindDocument},
	}

	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			a := attachment.Attachment{MimeType: tt.mime}
			assert.Equal(t, tt.want, a.Kind())
		})
	}
}

func TestAttachment_Describe(t *testing.T) {
	a := attachment.Attachment{Name: "report.docx", MimeType: "application/msword", Size: 1536}
	assert.Equal(t, "report.docx (application/msword, 1.5KB)", a.Describe())

	b := attachment.Attachment{Name: "a.txt", MimeType: "text/plain", Data: make([]byte, 2048)}
	assert.Equal(t, int64(2048), b.ByteSize())
	assert.Equal(t, "a.txt (text/plain, 2.0KB)", b.Describe())
}

func TestAttachment_Part(t *testing.T) {
	img := attachment.Attachment{Name: "x.png", MimeType: "image/png", Data: []byte{1, 2}}
	assert.Equal(t, content.Image{Data: []byte{1, 2}, MediaType: "image/png"}, img.Part())

	txt := attachment.Attachment{Name: "notes.md", MimeType: "text/markdown", Data: []byte("# hi")}
	assert.Equal(t, content.Text{Text: "[File: notes.md]\n# hi"}, txt.Part())

	pdf := attachment.Attachment{Name: "report.pdf", MimeType: "application/pdf", Data: []byte("%PDF")}
	doc, ok := pdf.Part().(content.Document)
	assert.True(t, ok)
	assert.Equal(t, "report.pdf", doc.Name)
	assert.Equal(t, "application/pdf", doc.MediaType)
}

func TestAttachment_Notice(t *testing.T) {
	a := attachment.Attachment{Name: "clip.mov", MimeType: "video/quicktime", Size: 10240}
	assert.Equal(t, "[Attachment: clip.mov (video/quicktime, 10.0KB) is not supported by this model]", a.Notice().Text)
}

type customPart struct{}

func (customPart) PartKind() string { return "sticker" }

func TestFromPart(t *testing.T) {
	tests := []struct {
		name   string
		part   content.Part
		want   attachment.Attachment
		wantOK bool
	}{
		{"text", content.Text{Text: "hi"}, attachment.Attachment{}, false},
		{"image url", content.Image{URL: "https://x/a.png"}, attachment.Attachment{}, false},
		{
			"image data",
			content.Image{Data: []byte{1}, MediaType: "image/png"},
			attachment.Attachment{Name: "image", MimeType: "image/png", Data: []byte{1}},
			true,
		},
		{
			"document",
			content.Document{Name: "notes.txt", MediaType: "text/plain", Data: []byte("body")},
			attachment.Attachment{Name: "notes.txt", MimeType: "text/plain", Data: []byte("body")},
			true,
		},
		{
			"unnamed document",
			content.Document{MediaType: "application/pdf"},
			attachment.Attachment{Name: "document", MimeType: "application/pdf"},
			true,
		},
		{
			"audio",
			content.Audio{MediaType: "audio/wav", Data: []byte{2}},
			attachment.Attachment{Name: "audio", MimeType: "audio/wav", Data: []byte{2}},
			true,
		},
		{
			"video",
			content.Video{MediaType: "video/mp4", Data: []byte{3}},
			attachment.Attachment{Name: "video", MimeType: "video/mp4", Data: []byte{3}},
			true,
		},
		{
			"unknown kind",
			customPart{},
			attachment.Attachment{Name: "sticker", MimeType: "application/octet-stream"},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := attachment.FromPart(tt.part)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestURLNotice(t *testing.T) {
	assert.Equal(t, "[Image: https://x/a.png cannot be fetched by this model]", attachment.URLNotice("https://x/a.png").Text)
}
