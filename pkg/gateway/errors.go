package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/germanamz/promptforge/pkg/modeladapter"
	"github.com/germanamz/promptforge/pkg/settings"
	"github.com/germanamz/promptforge/pkg/sse"
)

// StatusOverloaded is returned by Anthropic when the API is temporarily
// overloaded.
const StatusOverloaded = 529

// Error is a vendor call failure translated into a short user-facing
// message. The underlying fault stays reachable through errors.As.
type Error struct {
	Vendor  settings.VendorKind
	Status  int // HTTP status, zero when no response was received.
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// Translate converts an adapter fault into an *Error for the given vendor.
// Nil and cancellation errors are returned unchanged.
func Translate(err error, vendor settings.VendorKind) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return err
	}

	out := &Error{Vendor: vendor, Err: err}
	name := vendor.DisplayName()

	var (
		cfgErr   *modeladapter.ConfigError
		transErr *modeladapter.TransportError
		protoErr *modeladapter.ProtocolError
		emptyErr *modeladapter.EmptyContentError
	)

	switch {
	case errors.As(err, &cfgErr):
		out.Message = fmt.Sprintf("%s %s is not configured, check the provider settings", name, fieldLabel(cfgErr.Field))
	case errors.As(err, &emptyErr):
		out.Message = fmt.Sprintf("%s returned an empty response", name)
	case errors.As(err, &transErr):
		if transErr.Timeout {
			out.Message = fmt.Sprintf("%s request timed out, try again or choose a faster model", name)
		} else {
			out.Message = fmt.Sprintf("could not reach %s, check the base URL and your network connection", name)
		}
	case errors.As(err, &protoErr):
		out.Status = protoErr.Status
		out.Message = protocolMessage(protoErr, vendor)
	case errors.Is(err, sse.ErrConsumed):
		out.Message = fmt.Sprintf("%s stream was already consumed", name)
	default:
		out.Message = fmt.Sprintf("%s call failed: %v", name, err)
	}

	return out
}

func protocolMessage(e *modeladapter.ProtocolError, vendor settings.VendorKind) string {
	name := vendor.DisplayName()

	switch {
	case e.Status == 0:
		return fmt.Sprintf("%s returned a response that could not be parsed", name)
	case vendor == settings.Google && e.Status == http.StatusBadRequest &&
		strings.Contains(strings.ToLower(e.Message), "api key not valid"):
		return fmt.Sprintf("invalid API key for %s", name)
	case e.Status == http.StatusBadRequest:
		return withDetail(fmt.Sprintf("%s rejected the request", name), e.Message)
	case e.Status == http.StatusUnauthorized:
		return fmt.Sprintf("invalid API key for %s", name)
	case e.Status == http.StatusForbidden:
		return fmt.Sprintf("access denied by %s, the key may lack permission for this model", name)
	case e.Status == http.StatusNotFound:
		return fmt.Sprintf("model or endpoint not found at %s, check the base URL and model id", name)
	case e.Status == http.StatusRequestEntityTooLarge:
		return fmt.Sprintf("request too large for %s, remove attachments or shorten the conversation", name)
	case e.Status == http.StatusTooManyRequests:
		msg := fmt.Sprintf("rate limited by %s", name)
		if e.RetryAfter > 0 {
			msg += fmt.Sprintf(", retry after %s", e.RetryAfter)
		}
		return msg
	case vendor == settings.Anthropic && e.Status == StatusOverloaded:
		return "Anthropic is overloaded, try again later"
	case e.Status >= http.StatusInternalServerError:
		return fmt.Sprintf("%s server error (status %d), try again later", name, e.Status)
	default:
		return withDetail(fmt.Sprintf("%s returned status %d", name, e.Status), e.Message)
	}
}

func withDetail(msg, detail string) string {
	if detail == "" {
		return msg
	}
	return msg + ": " + detail
}

func fieldLabel(field string) string {
	switch field {
	case "base_url":
		return "base URL"
	case "api_key":
		return "API key"
	default:
		return field
	}
}
