package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/germanamz/promptforge/pkg/capability"
	"github.com/germanamz/promptforge/pkg/chats/attachment"
	"github.com/germanamz/promptforge/pkg/chats/message"
	"github.com/germanamz/promptforge/pkg/chats/role"
	"github.com/germanamz/promptforge/pkg/settings"
)

type chatMessage struct {
	Role        string                  `json:"role"`
	Content     string                  `json:"content"`
	Attachments []attachment.Attachment `json:"attachments,omitempty"`
}

type chatRequest struct {
	Provider string        `json:"provider"`
	Model    string        `json:"model"`
	Stream   bool          `json:"stream"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Content string `json:"content"`
}

type modelsResponse struct {
	Provider string   `json:"provider"`
	Models   []string `json:"models"`
}

type probeRequest struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Force    bool   `json:"force"`
}

type connectionEvent struct {
	Connected      bool   `json:"connected"`
	ResponseTimeMS int64  `json:"responseTimeMs"`
	Error          string `json:"error,omitempty"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleProviders(c echo.Context) error {
	providers := s.cfg.Providers
	if providers == nil {
		providers = []settings.ProviderConfig{}
	}
	return c.JSON(http.StatusOK, map[string]any{"providers": providers})
}

func (s *Server) handleUsage(c echo.Context) error {
	p, err := s.provider(c.QueryParam("provider"), c.QueryParam("model"))
	if err != nil {
		return err
	}

	summary, _ := s.gateway.Usage(p, c.QueryParam("model"))
	return c.JSON(http.StatusOK, summary)
}

func (s *Server) handleModels(c echo.Context) error {
	p, err := s.lookupProvider(c.QueryParam("provider"))
	if err != nil {
		return err
	}

	ids, err := s.gateway.Models(c.Request().Context(), p)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return toHTTPError(err)
	}
	if ids == nil {
		ids = []string{}
	}
	return c.JSON(http.StatusOK, modelsResponse{Provider: p.ID, Models: ids})
}

func (s *Server) handleChat(c echo.Context) error {
	var req chatRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}

	p, err := s.provider(req.Provider, req.Model)
	if err != nil {
		return err
	}

	msgs, err := toMessages(req.Messages)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()

	if !req.Stream {
		content, err := s.gateway.Call(ctx, msgs, p, req.Model, false, nil)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return toHTTPError(err)
		}
		return c.JSON(http.StatusOK, chatResponse{Content: content})
	}

	events, err := startEvents(c, s.log)
	if err != nil {
		return err
	}

	content, err := s.gateway.Call(ctx, msgs, p, req.Model, true, func(chunk string) {
		events.send("chunk", map[string]string{"content": chunk})
	})
	switch {
	case errors.Is(err, context.Canceled):
	case err != nil:
		httpErr := toHTTPError(err).(requestError)
		events.send("error", newErrorBody(httpErr.Message, httpErr.Type, httpErr.Code))
	default:
		events.send("done", chatResponse{Content: content})
	}
	return nil
}

func (s *Server) handleProbe(c echo.Context) error {
	var req probeRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}

	p, err := s.provider(req.Provider, req.Model)
	if err != nil {
		return err
	}

	events, err := startEvents(c, s.log)
	if err != nil {
		return err
	}

	// Both callbacks run on the probe goroutine, and the handler waits for
	// it to finish, so the response is never written concurrently.
	done := s.prober.DetectAsync(c.Request().Context(), p, req.Model, req.Force,
		func(r capability.ConnectionResult) {
			events.send("connection", connectionEvent{
				Connected:      r.Connected,
				ResponseTimeMS: r.ResponseTime.Milliseconds(),
				Error:          r.Error,
			})
		},
		func(caps settings.ModelCapabilities) {
			events.send("capabilities", caps)
		},
	)
	<-done

	return nil
}

func (s *Server) handleCacheStats(c echo.Context) error {
	stats, err := s.prober.CacheStats(c.Request().Context())
	if err != nil {
		return err
	}
	if stats.Keys == nil {
		stats.Keys = []string{}
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) handleClearCache(c echo.Context) error {
	if err := s.prober.ClearCache(c.Request().Context()); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func toMessages(in []chatMessage) ([]message.Message, error) {
	if len(in) == 0 {
		return nil, requestError{
			Status:  http.StatusBadRequest,
			Message: "messages must not be empty",
			Type:    "invalid_request_error",
		}
	}

	msgs := make([]message.Message, 0, len(in))
	for _, m := range in {
		r, err := role.Parse(m.Role)
		if err != nil {
			return nil, requestError{
				Status:  http.StatusBadRequest,
				Message: err.Error(),
				Type:    "invalid_request_error",
			}
		}

		msg := message.NewText(r, m.Content)
		if len(m.Attachments) > 0 {
			msg = msg.WithAttachments(m.Attachments...)
		}
		msgs = append(msgs, msg)
	}

	if err := message.ValidateAll(msgs); err != nil {
		return nil, requestError{
			Status:  http.StatusBadRequest,
			Message: err.Error(),
			Type:    "invalid_request_error",
		}
	}
	return msgs, nil
}
