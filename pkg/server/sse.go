package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// eventWriter writes server-sent events and flushes after each one.
type eventWriter struct {
	w       io.Writer
	flusher http.Flusher
	log     *slog.Logger
	failed  bool
}

// startEvents commits an event-stream response.
func startEvents(c echo.Context, log *slog.Logger) (*eventWriter, error) {
	writer := c.Response().Writer
	flusher, ok := writer.(http.Flusher)
	if !ok {
		log.Error("http writer does not support flushing")
		return nil, requestError{
			Status:  http.StatusInternalServerError,
			Message: "server does not support streaming responses",
			Type:    "server_error",
		}
	}

	header := c.Response().Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")

	c.Response().WriteHeader(http.StatusOK)
	flusher.Flush()

	return &eventWriter{w: c.Response(), flusher: flusher, log: log}, nil
}

// send writes one event. After the first write failure, usually a
// disconnected client, further events are dropped.
func (ew *eventWriter) send(event string, payload any) {
	if ew.failed {
		return
	}
	if err := writeSSEEvent(ew.w, event, payload); err != nil {
		ew.failed = true
		ew.log.Debug("dropping event stream", "event", event, "error", err)
		return
	}
	ew.flusher.Flush()
}

func writeSSEEvent(w io.Writer, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal SSE payload: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
		return fmt.Errorf("write SSE event name: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write SSE data: %w", err)
	}
	return nil
}
