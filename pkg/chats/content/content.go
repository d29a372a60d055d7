// Package content defines multi-modal content parts for LLM messages.
package content

import "encoding/base64"

// Part kinds returned by the built-in parts.
const (
	KindText     = "text"
	KindImage    = "image"
	KindDocument = "document"
	KindAudio    = "audio"
	KindVideo    = "video"
)

// Part is a piece of content within a message.
// External packages can implement this interface to add custom content types.
type Part interface {
	PartKind() string
}

// Text is a plain text content part.
type Text struct {
	Text string
}

func (t Text) PartKind() string { return KindText }

// Image is an image content part, referenced by URL or embedded as raw bytes.
type Image struct {
	URL       string
	Data      []byte
	MediaType string
}

func (i Image) PartKind() string { return KindImage }

// Document is a file content part such as a PDF.
type Document struct {
	Name      string
	Data      []byte
	MediaType string
}

func (d Document) PartKind() string { return KindDocument }

// Audio is an audio clip content part.
type Audio struct {
	Data      []byte
	MediaType string
}

func (a Audio) PartKind() string { return KindAudio }

// Video is a video clip content part.
type Video struct {
	Data      []byte
	MediaType string
}

func (v Video) PartKind() string { return KindVideo }

// Base64 encodes raw part data with standard padding, the form every
// supported vendor expects for inline payloads.
func Base64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DataURL returns a data: URL for the given media type and payload.
func DataURL(mediaType string, data []byte) string {
	return "data:" + mediaType + ";base64," + Base64(data)
}
