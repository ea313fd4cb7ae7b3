// 文件路径: internal/api/handler/webhook.go
// 模块说明: 远端面板的 webhook 入口。识别事件头后写入同步队列，无论结果如何都返回 204。
package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/creamcroissant/panelmirror/internal/api/middleware"
	"github.com/creamcroissant/panelmirror/internal/mirror"
)

// EventQueue persists accepted deliveries.
type EventQueue interface {
	EnqueueEvent(ctx context.Context, ev mirror.Event) (string, error)
}

// WebhookHandler accepts panel deliveries.
type WebhookHandler struct {
	queue  EventQueue
	logger *slog.Logger
}

// NewWebhookHandler builds the ingress handler.
func NewWebhookHandler(queue EventQueue, logger *slog.Logger) *WebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookHandler{queue: queue, logger: logger}
}

// Receive handles POST on the webhook path. The sender never learns whether
// the event was recognised or stored.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	defer w.WriteHeader(http.StatusNoContent)

	header := r.Header.Get(middleware.WebhookEventHeader)
	eventType, ok := mirror.ParseEventHeader(header)
	if !ok {
		h.logger.Debug("webhook event ignored", "event", header)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.logger.Error("webhook body too large", "event", eventType.String(), "limit", tooLarge.Limit)
			return
		}
		h.logger.Error("webhook body unreadable", "event", eventType.String(), "error", err)
		return
	}
	record, err := mirror.ExtractRecord(body)
	if err != nil {
		h.logger.Error("webhook payload rejected", "event", eventType.String(), "error", err)
		return
	}

	id, err := h.queue.EnqueueEvent(r.Context(), mirror.Event{Type: eventType, Payload: record})
	if err != nil {
		h.logger.Error("webhook event not queued", "event", eventType.String(), "error", err)
		return
	}
	h.logger.Debug("webhook event queued", "event", eventType.String(), "job", id)
}
