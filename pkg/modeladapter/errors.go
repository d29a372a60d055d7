package modeladapter

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ConfigError reports a missing or malformed provider setting. It is never
// retried.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config: %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("config: %s is not configured", e.Field)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// TransportError reports a network failure or an exceeded call timeout.
type TransportError struct {
	Timeout bool
	Err     error
}

func (e *TransportError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("request timed out: %v", e.Err)
	}
	return fmt.Sprintf("transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError reports a non-2xx response or an unparseable success body.
// Code, Message, Param and Type are filled best-effort from the vendor's
// error payload.
type ProtocolError struct {
	Status     int
	Body       string
	Code       string
	Message    string
	Param      string
	Type       string
	RetryAfter time.Duration
}

func (e *ProtocolError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = strings.TrimSpace(e.Body)
	}
	if e.Status == 0 {
		return "protocol: " + msg
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Status, msg)
}

// EmptyContentError is returned when a response parsed successfully but
// carried no usable text.
type EmptyContentError struct{}

func (e *EmptyContentError) Error() string { return "empty response content" }

// NewProtocolError builds a ProtocolError from a failed HTTP response.
func NewProtocolError(status int, header http.Header, body []byte) *ProtocolError {
	e := &ProtocolError{
		Status: status,
		Body:   string(body),
	}
	if header != nil {
		e.RetryAfter = ParseRetryAfter(header.Get("Retry-After"))
	}

	parseErrorBody(e, body)

	return e
}

// errorEnvelope covers the error payloads of the supported vendors:
// {"error":{"code","message","param","type"}} (OpenAI),
// {"type":"error","error":{"type","message"}} (Anthropic) and
// {"error":{"code":400,"message","status"}} (Google).
type errorEnvelope struct {
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
}

type errorDetail struct {
	Code    json.RawMessage `json:"code"`
	Message string          `json:"message"`
	Param   *string         `json:"param"`
	Type    string          `json:"type"`
	Status  string          `json:"status"`
}

func parseErrorBody(e *ProtocolError, body []byte) {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return
	}

	e.Message = env.Message

	if len(env.Error) == 0 {
		return
	}

	// Some proxies send {"error": "text"}.
	var flat string
	if err := json.Unmarshal(env.Error, &flat); err == nil {
		e.Message = flat
		return
	}

	var d errorDetail
	if err := json.Unmarshal(env.Error, &d); err != nil {
		return
	}

	e.Message = d.Message
	e.Type = d.Type
	if e.Type == "" {
		e.Type = d.Status
	}
	if d.Param != nil {
		e.Param = *d.Param
	}
	e.Code = rawScalar(d.Code)
}

// rawScalar renders a JSON string or number as plain text.
func rawScalar(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	return string(raw)
}

// ParseRetryAfter parses the Retry-After header value as either seconds (integer)
// or an HTTP-date (RFC 7231). Returns zero if unparseable or if the date is in the past.
func ParseRetryAfter(val string) time.Duration {
	if val == "" {
		return 0
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(val); err == nil {
		d := time.Until(t)
		if d > 0 {
			return d
		}
		return 0
	}
	return 0
}
