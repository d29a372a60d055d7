package sse_test

import (
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/germanamz/promptforge/pkg/modeladapter"
	"github.com/germanamz/promptforge/pkg/sse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// parseTest decodes {"t":"text","d":true} payloads; "[DONE]" ends the stream.
func parseTest(data string) (modeladapter.StreamChunk, bool) {
	if data == "[DONE]" {
		return modeladapter.StreamChunk{Done: true}, true
	}

	var v struct {
		T string `json:"t"`
		D bool   `json:"d"`
	}
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return modeladapter.StreamChunk{}, false
	}

	return modeladapter.StreamChunk{Content: v.T, Done: v.D}, true
}

func collect(t *testing.T, r io.Reader) []modeladapter.StreamChunk {
	t.Helper()

	var out []modeladapter.StreamChunk
	for chunk, err := range sse.NewDecoder(r, parseTest).Chunks() {
		require.NoError(t, err)
		out = append(out, chunk)
	}

	return out
}

const sampleStream = ": OPENROUTER PROCESSING\n\n" +
	"event: message\n" +
	"id: 1\n" +
	"data: {\"t\":\"Hel\"}\n\n" +
	"data: {\"t\":\"lo, \"}\r\n\r\n" +
	"data: not json\n\n" +
	"data: {\"t\":\"\"}\n\n" +
	"data:{\"t\":\"wörld\"}\n\n" +
	"data: [DONE]\n\n" +
	"data: {\"t\":\"after done\"}\n\n"

func TestDecoder_Chunks(t *testing.T) {
	got := collect(t, strings.NewReader(sampleStream))

	assert.Equal(t, []modeladapter.StreamChunk{
		{Content: "Hel"},
		{Content: "lo, "},
		{Content: "wörld"},
		{Done: true},
	}, got)
}

// splitReader delivers data in pieces cut at the given offsets.
type splitReader struct {
	pieces [][]byte
}

func newSplitReader(s string, cuts ...int) *splitReader {
	r := &splitReader{}
	prev := 0
	for _, c := range cuts {
		r.pieces = append(r.pieces, []byte(s[prev:c]))
		prev = c
	}
	r.pieces = append(r.pieces, []byte(s[prev:]))
	return r
}

func (r *splitReader) Read(p []byte) (int, error) {
	for len(r.pieces) > 0 && len(r.pieces[0]) == 0 {
		r.pieces = r.pieces[1:]
	}
	if len(r.pieces) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.pieces[0])
	r.pieces[0] = r.pieces[0][n:]
	return n, nil
}

func TestDecoder_SplitAtEveryOffset(t *testing.T) {
	want := collect(t, strings.NewReader(sampleStream))

	for cut := 1; cut < len(sampleStream); cut++ {
		got := collect(t, newSplitReader(sampleStream, cut))
		require.Equal(t, want, got, "split at byte %d", cut)
	}
}

func TestDecoder_SplitIntoManyPieces(t *testing.T) {
	want := collect(t, strings.NewReader(sampleStream))

	assert.Equal(t, want, collect(t, iotest.OneByteReader(strings.NewReader(sampleStream))))
	assert.Equal(t, want, collect(t, iotest.HalfReader(strings.NewReader(sampleStream))))
	assert.Equal(t, want, collect(t, newSplitReader(sampleStream, 3, 17, 18, 40, 41, 90)))
}

func TestDecoder_EndOfStreamWithoutDone(t *testing.T) {
	got := collect(t, strings.NewReader("data: {\"t\":\"a\"}\n\ndata: {\"t\":\"b\"}"))

	assert.Equal(t, []modeladapter.StreamChunk{{Content: "a"}, {Content: "b"}}, got)
}

func TestDecoder_DataLinesParsedIndividually(t *testing.T) {
	got := collect(t, strings.NewReader("data: {\"t\":\"a\"}\ndata: {\"t\":\"b\"}\n\n"))

	assert.Equal(t, []modeladapter.StreamChunk{{Content: "a"}, {Content: "b"}}, got)
}

func TestDecoder_DoneChunkWithContent(t *testing.T) {
	got := collect(t, strings.NewReader("data: {\"t\":\"last\",\"d\":true}\n\ndata: {\"t\":\"x\"}\n\n"))

	assert.Equal(t, []modeladapter.StreamChunk{{Content: "last", Done: true}}, got)
}

func TestDecoder_SinglePass(t *testing.T) {
	d := sse.NewDecoder(strings.NewReader("data: {\"t\":\"a\"}\n\n"), parseTest)

	for range d.Chunks() {
	}

	var errs []error
	for _, err := range d.Chunks() {
		errs = append(errs, err)
	}

	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], sse.ErrConsumed)
}

func TestDecoder_EarlyBreakStopsReading(t *testing.T) {
	r := &countingReader{r: strings.NewReader(sampleStream)}
	d := sse.NewDecoder(iotest.OneByteReader(r), parseTest)

	for chunk, err := range d.Chunks() {
		require.NoError(t, err)
		assert.Equal(t, "Hel", chunk.Content)
		break
	}

	assert.Less(t, r.n, len(sampleStream), "the decoder must not read ahead of the consumer")
}

type countingReader struct {
	r io.Reader
	n int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += n
	return n, err
}

func TestDecoder_ReadError(t *testing.T) {
	boom := errors.New("connection reset")
	r := io.MultiReader(strings.NewReader("data: {\"t\":\"a\"}\n"), iotest.ErrReader(boom))

	var (
		chunks []modeladapter.StreamChunk
		gotErr error
	)
	for chunk, err := range sse.NewDecoder(r, parseTest).Chunks() {
		if err != nil {
			gotErr = err
			continue
		}
		chunks = append(chunks, chunk)
	}

	assert.Equal(t, []modeladapter.StreamChunk{{Content: "a"}}, chunks)
	assert.ErrorIs(t, gotErr, boom)
}

func TestData(t *testing.T) {
	tests := []struct {
		line string
		want string
		ok   bool
	}{
		{"data: {\"a\":1}", "{\"a\":1}", true},
		{"data:{\"a\":1}", "{\"a\":1}", true},
		{"data: [DONE]\r", "[DONE]", true},
		{"data:", "", true},
		{": keep-alive", "", false},
		{"event: content_block_delta", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := sse.Data(tt.line)
		assert.Equal(t, tt.ok, ok, tt.line)
		assert.Equal(t, tt.want, got, tt.line)
	}
}
