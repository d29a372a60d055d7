package modeladapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/germanamz/promptforge/pkg/chats/message"
	"github.com/germanamz/promptforge/pkg/modeladapter/usage"
	"github.com/germanamz/promptforge/pkg/settings"
)

// Timeout classes applied to a single vendor call.
const (
	StandardTimeout = 5 * time.Minute
	ExtendedTimeout = 10 * time.Minute
)

// Response is the normalized result of a buffered call.
type Response struct {
	Content      string
	FinishReason string
}

// StreamChunk is one decoded increment of a streamed call.
type StreamChunk struct {
	Content string
	Done    bool
}

// Adapter translates normalized chat requests to one vendor's wire protocol.
type Adapter interface {
	// Complete performs a buffered call and returns the extracted assistant text.
	Complete(ctx context.Context, msgs []message.Message, params settings.Params) (Response, error)
	// Stream performs a streamed call and returns the raw SSE body. Closing
	// the body releases the call's timeout.
	Stream(ctx context.Context, msgs []message.Message, params settings.Params) (io.ReadCloser, error)
	// ParseStreamChunk decodes the payload of one SSE data line. The bool is
	// false when the line carries nothing to report.
	ParseStreamChunk(data string) (StreamChunk, bool)
}

// ModelLister is implemented by adapters that can list the models their
// endpoint serves.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// UsageReporter provides token usage information from an adapter.
// Adapters that embed ModelAdapter implement this interface automatically.
type UsageReporter interface {
	UsageTracker() *usage.Tracker
}

// Auth holds authentication settings for a vendor API.
type Auth struct {
	Key    string // API key value.
	Header string // Header name (default: "Authorization").
	Scheme string // Scheme prefix (default: "Bearer" when Header is "Authorization").
}

// ModelAdapter holds shared state for vendor adapters. Embed it in concrete
// adapter structs to get HTTP helpers, auth, custom headers, per-call
// timeouts and usage tracking.
type ModelAdapter struct {
	Name    string            // Model identifier (e.g. "gpt-4o").
	Auth    Auth              // Authentication settings.
	BaseURL string            // Configured base URL, as entered by the user.
	Client  *http.Client      // HTTP client; falls back to a shared default.
	Headers map[string]string // Extra headers applied to every request.
	Timeout time.Duration     // Per-call timeout; zero means StandardTimeout.
	Usage   usage.Tracker     // Token usage tracker.

	clientOnce    sync.Once
	defaultClient *http.Client
}

// New creates a ModelAdapter with the given settings.
// A nil client falls back to a shared default client at call time.
func New(baseURL string, auth Auth, client *http.Client) ModelAdapter {
	return ModelAdapter{
		Auth:    auth,
		BaseURL: baseURL,
		Client:  client,
	}
}

// UsageTracker returns the adapter's token usage tracker.
func (a *ModelAdapter) UsageTracker() *usage.Tracker { return &a.Usage }

// CallTimeout returns the effective per-call timeout.
func (a *ModelAdapter) CallTimeout() time.Duration {
	if a.Timeout > 0 {
		return a.Timeout
	}
	return StandardTimeout
}

// httpClient returns the configured client or a cached default client.
// The default client has no overall timeout: every call is bounded by its
// own context deadline instead.
func (a *ModelAdapter) httpClient() *http.Client {
	if a.Client != nil {
		return a.Client
	}

	a.clientOnce.Do(func() {
		a.defaultClient = &http.Client{}
	})

	return a.defaultClient
}

// NewRequest builds an *http.Request for the given absolute endpoint with
// auth and custom headers already applied.
func (a *ModelAdapter) NewRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}

	if a.Auth.Key != "" {
		header := a.Auth.Header
		if header == "" {
			header = "Authorization"
		}

		value := a.Auth.Key
		if header == "Authorization" {
			scheme := a.Auth.Scheme
			if scheme == "" {
				scheme = "Bearer"
			}

			value = scheme + " " + value
		} else if a.Auth.Scheme != "" {
			value = a.Auth.Scheme + " " + value
		}

		req.Header.Set(header, value)
	}

	for k, v := range a.Headers {
		req.Header.Set(k, v)
	}

	return req, nil
}

// Do sends the request using the configured HTTP client.
func (a *ModelAdapter) Do(req *http.Request) (*http.Response, error) {
	return a.httpClient().Do(req) //nolint:gosec // URL is built from trusted provider config, not user input.
}

// send starts a request bounded by the adapter's timeout. A non-nil body is
// sent as JSON. On success the caller owns resp.Body and must call cancel
// once it is done with it.
func (a *ModelAdapter) send(parent context.Context, method, endpoint string, body io.Reader) (*http.Response, context.CancelFunc, error) {
	ctx, cancel := context.WithTimeout(parent, a.CallTimeout())

	req, err := a.NewRequest(ctx, method, endpoint, body)
	if err != nil {
		cancel()
		return nil, nil, &ConfigError{Field: "base_url", Err: err}
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.Do(req)
	if err != nil {
		cancel()
		return nil, nil, transportError(parent, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer cancel()
		defer func() { _ = resp.Body.Close() }()

		respBody, _ := io.ReadAll(resp.Body)
		return nil, nil, NewProtocolError(resp.StatusCode, resp.Header, respBody)
	}

	return resp, cancel, nil
}

// post starts a JSON POST bounded by the adapter's timeout.
func (a *ModelAdapter) post(parent context.Context, endpoint string, payload any) (*http.Response, context.CancelFunc, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal payload: %w", err)
	}

	return a.send(parent, http.MethodPost, endpoint, bytes.NewReader(body))
}

// PostJSON marshals payload as JSON, sends a POST to endpoint, checks for a
// 2xx status, and unmarshals the response body into dest. If dest is nil the
// response body is discarded after the status check.
func (a *ModelAdapter) PostJSON(ctx context.Context, endpoint string, payload any, dest any) error {
	resp, cancel, err := a.post(ctx, endpoint, payload)
	if err != nil {
		return err
	}
	defer cancel()
	defer func() { _ = resp.Body.Close() }()

	return decodeBody(ctx, resp, dest)
}

// GetJSON sends a GET to endpoint, checks for a 2xx status, and unmarshals
// the response body into dest.
func (a *ModelAdapter) GetJSON(ctx context.Context, endpoint string, dest any) error {
	resp, cancel, err := a.send(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	defer cancel()
	defer func() { _ = resp.Body.Close() }()

	return decodeBody(ctx, resp, dest)
}

func decodeBody(ctx context.Context, resp *http.Response, dest any) error {
	if dest == nil {
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(ctx, err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return &ProtocolError{
			Status:  resp.StatusCode,
			Body:    string(data),
			Message: "decode response: " + err.Error(),
		}
	}

	return nil
}

// PostStream sends a JSON POST and returns the response body for
// incremental reading. The call's timeout keeps running while the body is
// read; closing the body stops it.
func (a *ModelAdapter) PostStream(ctx context.Context, endpoint string, payload any) (io.ReadCloser, error) {
	resp, cancel, err := a.post(ctx, endpoint, payload)
	if err != nil {
		return nil, err
	}

	return &streamBody{parent: ctx, body: resp.Body, cancel: cancel}, nil
}

// streamBody ties the lifetime of a call's timeout to its response body.
type streamBody struct {
	parent context.Context
	body   io.ReadCloser
	cancel context.CancelFunc
	once   sync.Once
}

func (s *streamBody) Read(p []byte) (int, error) {
	n, err := s.body.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, transportError(s.parent, err)
	}
	return n, err
}

func (s *streamBody) Close() error {
	err := s.body.Close()
	s.once.Do(s.cancel)
	return err
}

// transportError classifies a network failure. Cancellation of the caller's
// own context is returned as-is so it is never mistaken for a fault.
func transportError(parent context.Context, err error) error {
	if errors.Is(parent.Err(), context.Canceled) {
		return parent.Err()
	}

	timeout := errors.Is(err, context.DeadlineExceeded)

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		timeout = true
	}

	return &TransportError{Timeout: timeout, Err: err}
}
