package server_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/germanamz/promptforge/pkg/capability"
	"github.com/germanamz/promptforge/pkg/gateway"
	"github.com/germanamz/promptforge/pkg/server"
	"github.com/germanamz/promptforge/pkg/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestServer starts a fake OpenAI-compatible vendor and returns the API
// handler wired to it.
func newTestServer(t *testing.T, vendor http.HandlerFunc) http.Handler {
	t.Helper()

	upstream := httptest.NewServer(vendor)
	t.Cleanup(upstream.Close)

	cfg := settings.Config{
		Providers: []settings.ProviderConfig{{
			ID:      "local",
			Name:    "Local",
			Kind:    settings.OpenAI,
			APIKey:  "sk-secret",
			BaseURL: upstream.URL,
			Models:  []settings.ModelConfig{{ID: "gpt-test", Enabled: true}},
			Enabled: true,
		}},
	}

	gw := gateway.New(gateway.Options{Client: upstream.Client()})
	prober := capability.New(gw, capability.Options{PhaseDelay: -1})

	srv, err := server.New(cfg, gw, prober, nil)
	require.NoError(t, err)

	return srv.Handler()
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("failed to encode response: %v", err)
	}
}

func readBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		t.Errorf("failed to read body: %v", err)
		return nil
	}

	var req map[string]any
	if err := json.Unmarshal(body, &req); err != nil {
		t.Errorf("failed to unmarshal body: %v", err)
	}

	return req
}

func openAIReply(text string) map[string]any {
	return map[string]any{
		"choices": []map[string]any{{"message": map[string]any{"content": text}}},
		"usage":   map[string]any{"prompt_tokens": 3, "completion_tokens": 2},
	}
}

func streamReply(w http.ResponseWriter, chunks ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	for _, c := range chunks {
		b, _ := json.Marshal(map[string]any{
			"choices": []map[string]any{{"delta": map[string]any{"content": c}}},
		})
		fmt.Fprintf(w, "data: %s\n\n", b)
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	return rec
}

type event struct {
	name string
	data string
}

func parseEvents(body string) []event {
	var out []event
	for block := range strings.SplitSeq(strings.TrimSpace(body), "\n\n") {
		var ev event
		for line := range strings.SplitSeq(block, "\n") {
			if name, ok := strings.CutPrefix(line, "event: "); ok {
				ev.name = name
			}
			if data, ok := strings.CutPrefix(line, "data: "); ok {
				ev.data = data
			}
		}
		if ev.name != "" {
			out = append(out, ev)
		}
	}
	return out
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	gw := gateway.New(gateway.Options{})
	_, err := server.New(settings.Config{}, gw, capability.New(gw, capability.Options{}), nil)

	require.Error(t, err)
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, func(http.ResponseWriter, *http.Request) {})

	rec := do(t, h, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestProviders_HidesAPIKey(t *testing.T) {
	h := newTestServer(t, func(http.ResponseWriter, *http.Request) {})

	rec := do(t, h, http.MethodGet, "/api/providers/", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"local"`)
	assert.NotContains(t, rec.Body.String(), "sk-secret")
}

func TestChat_Buffered(t *testing.T) {
	h := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-secret", r.Header.Get("Authorization"))
		writeJSON(t, w, openAIReply("<think>hmm</think>Hello there"))
	})

	rec := do(t, h, http.MethodPost, "/api/chat",
		`{"provider":"local","model":"gpt-test","messages":[{"role":"user","content":"hi"}]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"content":"Hello there"}`, rec.Body.String())

	usage := do(t, h, http.MethodGet, "/api/usage?provider=local&model=gpt-test", "")
	require.Equal(t, http.StatusOK, usage.Code)
	assert.Contains(t, usage.Body.String(), `"calls":1`)
}

func TestChat_Streamed(t *testing.T) {
	h := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, true, readBody(t, r)["stream"])
		streamReply(w, "Hel", "lo")
	})

	rec := do(t, h, http.MethodPost, "/api/chat",
		`{"provider":"local","model":"gpt-test","stream":true,"messages":[{"role":"user","content":"hi"}]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	events := parseEvents(rec.Body.String())
	require.Len(t, events, 3)
	assert.Equal(t, event{"chunk", `{"content":"Hel"}`}, events[0])
	assert.Equal(t, event{"chunk", `{"content":"lo"}`}, events[1])
	assert.Equal(t, event{"done", `{"content":"Hello"}`}, events[2])
}

func TestChat_StreamedUpstreamFailure(t *testing.T) {
	h := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
	})

	rec := do(t, h, http.MethodPost, "/api/chat",
		`{"provider":"local","model":"gpt-test","stream":true,"messages":[{"role":"user","content":"hi"}]}`)

	events := parseEvents(rec.Body.String())
	require.Len(t, events, 1)
	assert.Equal(t, "error", events[0].name)
	assert.Contains(t, events[0].data, "invalid API key for OpenAI")
}

func TestChat_UpstreamFailure(t *testing.T) {
	h := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
	})

	rec := do(t, h, http.MethodPost, "/api/chat",
		`{"provider":"local","model":"gpt-test","messages":[{"role":"user","content":"hi"}]}`)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.JSONEq(t,
		`{"error":{"message":"invalid API key for OpenAI","type":"upstream_error","code":"upstream_401"}}`,
		rec.Body.String())
}

func TestChat_BadRequests(t *testing.T) {
	h := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		t.Error("vendor must not be called")
	})

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"empty body", "", http.StatusBadRequest},
		{"trailing data", `{"provider":"local"} {}`, http.StatusBadRequest},
		{"unknown provider", `{"provider":"nope","model":"gpt-test","messages":[{"role":"user","content":"hi"}]}`, http.StatusNotFound},
		{"unknown model", `{"provider":"local","model":"nope","messages":[{"role":"user","content":"hi"}]}`, http.StatusNotFound},
		{"no messages", `{"provider":"local","model":"gpt-test","messages":[]}`, http.StatusBadRequest},
		{"unknown role", `{"provider":"local","model":"gpt-test","messages":[{"role":"tool","content":"hi"}]}`, http.StatusBadRequest},
		{"system attachment", `{"provider":"local","model":"gpt-test","messages":[{"role":"system","content":"hi",` +
			`"attachments":[{"name":"a.txt","mimeType":"text/plain","size":2,"data":"aGk="}]}]}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/chat", tt.body)

			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), `"type":"invalid_request_error"`)
		})
	}
}

func TestChat_ForwardsAttachments(t *testing.T) {
	h := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		msgs := readBody(t, r)["messages"].([]any)
		parts := msgs[0].(map[string]any)["content"].([]any)

		var texts []string
		for _, p := range parts {
			if text, ok := p.(map[string]any)["text"].(string); ok {
				texts = append(texts, text)
			}
		}
		assert.Contains(t, strings.Join(texts, "\n"), "hi there")

		writeJSON(t, w, openAIReply("ok"))
	})

	rec := do(t, h, http.MethodPost, "/api/chat",
		`{"provider":"local","model":"gpt-test","messages":[{"role":"user","content":"read this",`+
			`"attachments":[{"name":"note.txt","mimeType":"text/plain","size":8,"data":"aGkgdGhlcmU="}]}]}`)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProbe_EmitsPhaseEvents(t *testing.T) {
	h := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if readBody(t, r)["stream"] == true {
			streamReply(w, "First, 100 × 0.8 = 80. ", "Then 80 × 0.9 = 72.")
			return
		}
		writeJSON(t, w, openAIReply("unused"))
	})

	rec := do(t, h, http.MethodPost, "/api/capabilities", `{"provider":"local","model":"gpt-test"}`)

	require.Equal(t, http.StatusOK, rec.Code)

	events := parseEvents(rec.Body.String())
	require.Len(t, events, 2)
	assert.Equal(t, "connection", events[0].name)
	assert.Contains(t, events[0].data, `"connected":true`)
	assert.Equal(t, "capabilities", events[1].name)

	var caps settings.ModelCapabilities
	require.NoError(t, json.Unmarshal([]byte(events[1].data), &caps))
	assert.True(t, caps.Reasoning)
	assert.Equal(t, settings.GenericCoT, caps.ReasoningKind)

	stats := do(t, h, http.MethodGet, "/api/capabilities", "")
	assert.JSONEq(t, `{"size":1,"keys":["local:gpt-test"]}`, stats.Body.String())

	cleared := do(t, h, http.MethodDelete, "/api/capabilities", "")
	assert.Equal(t, http.StatusNoContent, cleared.Code)

	stats = do(t, h, http.MethodGet, "/api/capabilities", "")
	assert.JSONEq(t, `{"size":0,"keys":[]}`, stats.Body.String())
}

func TestUsage_UnknownProvider(t *testing.T) {
	h := newTestServer(t, func(http.ResponseWriter, *http.Request) {})

	rec := do(t, h, http.MethodGet, "/api/usage?provider=nope&model=gpt-test", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestModels(t *testing.T) {
	h := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		assert.Equal(t, "Bearer sk-secret", r.Header.Get("Authorization"))

		writeJSON(t, w, map[string]any{"data": []map[string]any{{"id": "gpt-test"}, {"id": "gpt-big"}}})
	})

	rec := do(t, h, http.MethodGet, "/api/models?provider=local", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"provider":"local","models":["gpt-big","gpt-test"]}`, rec.Body.String())
}

func TestModels_UpstreamFailure(t *testing.T) {
	h := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
	})

	rec := do(t, h, http.MethodGet, "/api/models?provider=local", "")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.JSONEq(t,
		`{"error":{"message":"invalid API key for OpenAI","type":"upstream_error","code":"upstream_401"}}`,
		rec.Body.String())
}

func TestModels_UnknownProvider(t *testing.T) {
	h := newTestServer(t, func(http.ResponseWriter, *http.Request) {
		t.Error("vendor must not be called")
	})

	rec := do(t, h, http.MethodGet, "/api/models?provider=nope", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
