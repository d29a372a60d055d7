package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
providers:
  - id: local
    name: Local
    kind: openai
    api_key: ${PROMPTFORGE_TEST_KEY}
    base_url: %s
    enabled: true
    models:
      - id: gpt-test
        enabled: true
capabilities:
  cache_path: %s
`

// writeConfig points a config file at baseURL and returns the common flags
// that load it.
func writeConfig(t *testing.T, baseURL string) []string {
	t.Helper()
	t.Setenv("PROMPTFORGE_TEST_KEY", "sk-test")

	dir := t.TempDir()
	path := filepath.Join(dir, "promptforge.yaml")
	cache := filepath.Join(dir, "capabilities.db")
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(testConfig, baseURL, cache)), 0o600))

	return []string{"--config", path, "--env", filepath.Join(dir, "missing.env")}
}

func fakeVendor(t *testing.T, reply string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		if r.Method == http.MethodGet && r.URL.Path == "/v1/models" {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]any{{"id": "gpt-test"}, {"id": "gpt-other"}},
			})
			return
		}

		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}

		if req["stream"] == true {
			w.Header().Set("Content-Type", "text/event-stream")
			b, _ := json.Marshal(map[string]any{
				"choices": []map[string]any{{"delta": map[string]any{"content": reply}}},
			})
			fmt.Fprintf(w, "data: %s\n\ndata: [DONE]\n\n", b)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": reply}}},
			"usage":   map[string]any{"prompt_tokens": 3, "completion_tokens": 2},
		})
	}))
	t.Cleanup(srv.Close)

	return srv
}

func TestExecute_UnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer

	err := execute(context.Background(), []string{"bogus"}, nil, &stdout, &stderr)

	require.EqualError(t, err, `unknown command "bogus"`)
	assert.Contains(t, stderr.String(), "Usage: promptforge")
}

func TestExecute_NoArgs(t *testing.T) {
	var stdout, stderr bytes.Buffer

	err := execute(context.Background(), nil, nil, &stdout, &stderr)

	require.ErrorIs(t, err, flag.ErrHelp)
}

func TestCall_Buffered(t *testing.T) {
	srv := fakeVendor(t, "<think>x</think>Hello from the model")
	args := append([]string{"call"}, writeConfig(t, srv.URL)...)
	args = append(args, "say", "hello")

	var stdout, stderr bytes.Buffer
	err := execute(context.Background(), args, nil, &stdout, &stderr)

	require.NoError(t, err)
	assert.Equal(t, "Hello from the model\n", stdout.String())
	assert.Contains(t, stderr.String(), "tokens: 3 in, 2 out")
}

func TestCall_StreamedFromStdin(t *testing.T) {
	srv := fakeVendor(t, "streamed reply")
	args := append([]string{"call", "--stream"}, writeConfig(t, srv.URL)...)

	var stdout, stderr bytes.Buffer
	err := execute(context.Background(), args, strings.NewReader("hello\n"), &stdout, &stderr)

	require.NoError(t, err)
	assert.Equal(t, "streamed reply\n", stdout.String())
}

func TestCall_RenderWithStreamRejected(t *testing.T) {
	args := append([]string{"call", "--stream", "--render"}, writeConfig(t, "http://127.0.0.1:1")...)
	args = append(args, "hi")

	var stdout, stderr bytes.Buffer
	err := execute(context.Background(), args, nil, &stdout, &stderr)

	require.EqualError(t, err, "--render cannot be combined with --stream")
	assert.Empty(t, stdout.String())
}

func TestCall_UnknownProvider(t *testing.T) {
	srv := fakeVendor(t, "unused")
	args := append([]string{"call", "--provider", "nope"}, writeConfig(t, srv.URL)...)
	args = append(args, "hi")

	var stdout, stderr bytes.Buffer
	err := execute(context.Background(), args, nil, &stdout, &stderr)

	require.EqualError(t, err, `unknown provider "nope"`)
}

func TestProbe_PlainReportAndCache(t *testing.T) {
	srv := fakeVendor(t, "First, 100 × 0.8 = 80. Then 80 × 0.9 = 72.")
	common := writeConfig(t, srv.URL)

	var stdout, stderr bytes.Buffer
	err := execute(context.Background(), append([]string{"probe"}, common...), nil, &stdout, &stderr)

	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "local/gpt-test")
	assert.Contains(t, stdout.String(), "connected")
	assert.Contains(t, stdout.String(), "generic-cot")

	stdout.Reset()
	err = execute(context.Background(), append([]string{"probe", "--stats"}, common...), nil, &stdout, &stderr)
	require.NoError(t, err)
	assert.Equal(t, "1 cached entries\n  local:gpt-test\n", stdout.String())

	stdout.Reset()
	err = execute(context.Background(), append([]string{"probe", "--clear"}, common...), nil, &stdout, &stderr)
	require.NoError(t, err)

	stdout.Reset()
	err = execute(context.Background(), append([]string{"probe", "--stats"}, common...), nil, &stdout, &stderr)
	require.NoError(t, err)
	assert.Equal(t, "0 cached entries\n", stdout.String())
}

func TestModels_ListsAndMarksConfigured(t *testing.T) {
	srv := fakeVendor(t, "unused")
	args := append([]string{"models"}, writeConfig(t, srv.URL)...)

	var stdout, stderr bytes.Buffer
	err := execute(context.Background(), args, nil, &stdout, &stderr)

	require.NoError(t, err)
	out := stdout.String()
	assert.Contains(t, out, "local (OpenAI)")
	assert.Contains(t, out, "  gpt-other\n")
	assert.Contains(t, out, "  gpt-test")
	assert.Contains(t, out, "(configured)")
	assert.Less(t, strings.Index(out, "gpt-other"), strings.Index(out, "gpt-test"))
}

func TestModels_UpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	t.Cleanup(srv.Close)
	args := append([]string{"models", "--provider", "local"}, writeConfig(t, srv.URL)...)

	var stdout, stderr bytes.Buffer
	err := execute(context.Background(), args, nil, &stdout, &stderr)

	require.EqualError(t, err, "listing models failed for 1 of 1 providers")
	assert.Contains(t, stdout.String(), "invalid API key for OpenAI")
}

func TestModels_UnknownProvider(t *testing.T) {
	args := append([]string{"models", "--provider", "nope"}, writeConfig(t, "http://127.0.0.1:1")...)

	var stdout, stderr bytes.Buffer
	err := execute(context.Background(), args, nil, &stdout, &stderr)

	require.EqualError(t, err, `unknown provider "nope"`)
}

func TestServe_InvalidLogLevel(t *testing.T) {
	srv := fakeVendor(t, "unused")
	args := append([]string{"serve"}, writeConfig(t, srv.URL)...)
	args = append(args, "--log-level", "loud")

	var stdout, stderr bytes.Buffer
	err := execute(context.Background(), args, nil, &stdout, &stderr)

	require.EqualError(t, err, `invalid log level "loud"`)
}
