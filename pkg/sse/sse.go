// Package sse decodes server-sent event streams into vendor stream chunks.
//
// A [Decoder] hands complete "data:" payloads to a vendor-specific parse
// function and exposes the result as a lazy, single-pass sequence. Lines are
// only read when the consumer asks for the next chunk.
package sse

import (
	"bufio"
	"errors"
	"io"
	"iter"
	"strings"
	"sync/atomic"

	"github.com/germanamz/promptforge/pkg/modeladapter"
)

// MaxLineSize bounds a single SSE line. Vendors send one JSON object per
// line, which can be large when a chunk carries inline data.
const MaxLineSize = 1024 * 1024

// ErrConsumed is yielded when a Decoder's sequence is iterated twice.
var ErrConsumed = errors.New("sse: stream already consumed")

// ParseFunc decodes one data payload. The bool is false when the payload
// carries nothing to report.
type ParseFunc func(data string) (modeladapter.StreamChunk, bool)

// Decoder turns an SSE byte stream into stream chunks.
type Decoder struct {
	r     io.Reader
	parse ParseFunc
	used  atomic.Bool
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader, parse ParseFunc) *Decoder {
	return &Decoder{r: r, parse: parse}
}

// Chunks returns the decoded chunks. Iteration stops after a chunk with Done
// set, at the end of the stream, or after the first read error. Chunks with
// neither content nor Done are not yielded.
func (d *Decoder) Chunks() iter.Seq2[modeladapter.StreamChunk, error] {
	return func(yield func(modeladapter.StreamChunk, error) bool) {
		if !d.used.CompareAndSwap(false, true) {
			yield(modeladapter.StreamChunk{}, ErrConsumed)
			return
		}

		scanner := bufio.NewScanner(d.r)
		scanner.Buffer(make([]byte, 0, 64*1024), MaxLineSize)

		for scanner.Scan() {
			data, ok := Data(scanner.Text())
			if !ok {
				continue
			}

			chunk, ok := d.parse(data)
			if !ok || (chunk.Content == "" && !chunk.Done) {
				continue
			}

			if !yield(chunk, nil) || chunk.Done {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			yield(modeladapter.StreamChunk{}, err)
		}
	}
}

// Data extracts the payload of a "data:" line. Comments (":" prefix), other
// fields (event, id, retry) and blank lines report false.
func Data(line string) (string, bool) {
	line = strings.TrimRight(line, "\r")
	if line == "" || line[0] == ':' {
		return "", false
	}

	data, ok := strings.CutPrefix(line, "data:")
	if !ok {
		return "", false
	}

	return strings.TrimPrefix(data, " "), true
}
