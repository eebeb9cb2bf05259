// Package handler provides HTTP handlers for the API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/reserva-ai/commerce-platform/internal/agent"
	"github.com/reserva-ai/commerce-platform/internal/middleware"
	"github.com/reserva-ai/commerce-platform/internal/model"
	"github.com/reserva-ai/commerce-platform/pkg/logger"
)

// MessageHandler handles the message-processing endpoint.
type MessageHandler struct {
	pipeline *agent.Pipeline
	logger   *logger.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(p *agent.Pipeline, log *logger.Logger) *MessageHandler {
	return &MessageHandler{
		pipeline: p,
		logger:   log,
	}
}

// Process handles POST /api/v1/messages. The full turn runs synchronously;
// the response carries the composed reply and per-call results.
func (h *MessageHandler) Process(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)

	var req model.ProcessMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateChannelAddress(req.ChannelAddress); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := middleware.ValidatePhone(req.SenderPhone); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := middleware.ValidateMessageContent(req.Text); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.pipeline.ProcessMessage(ctx, tenantID, &req)
	if err != nil {
		h.writeProcessError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// writeProcessError maps the pipeline's typed errors to HTTP statuses.
func (h *MessageHandler) writeProcessError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr *model.ValidationError
		rateErr       *model.RateLimitError
	)
	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, validationErr.Error())
	case errors.As(err, &rateErr):
		retryAfter := int(rateErr.RetryAfter().Seconds()) + 1
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error":       agent.RateLimitedReply,
			"retry_after": retryAfter,
		})
	default:
		h.logger.Error("message processing failed",
			zap.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to process message")
	}
}
