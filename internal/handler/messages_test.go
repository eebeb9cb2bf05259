package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/reserva-ai/commerce-platform/internal/agent"
	"github.com/reserva-ai/commerce-platform/internal/model"
	"github.com/reserva-ai/commerce-platform/pkg/logger"
)

func newTestMessageHandler(t *testing.T) *MessageHandler {
	t.Helper()
	log, err := logger.NewDevelopment()
	if err != nil {
		t.Fatalf("creating logger: %v", err)
	}
	return NewMessageHandler(nil, log)
}

func TestWriteProcessErrorValidation(t *testing.T) {
	h := newTestMessageHandler(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", nil)

	h.writeProcessError(rec, req, &model.ValidationError{Field: "text", Reason: "empty"})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

// The 429 body is customer-facing and must speak the same language as the
// composed replies.
func TestWriteProcessErrorRateLimited(t *testing.T) {
	h := newTestMessageHandler(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", nil)

	h.writeProcessError(rec, req, &model.RateLimitError{ResetAt: time.Now().Add(30 * time.Second)})

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("Retry-After header must be set")
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	msg, _ := body["error"].(string)
	if msg != agent.RateLimitedReply {
		t.Fatalf("error = %q, want the canned reply", msg)
	}
	if strings.Contains(msg, "slow down") {
		t.Fatalf("error must not be English: %q", msg)
	}
	if _, ok := body["retry_after"]; !ok {
		t.Fatal("body must carry retry_after")
	}
}

func TestWriteProcessErrorInternal(t *testing.T) {
	h := newTestMessageHandler(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", nil)

	h.writeProcessError(rec, req, &model.StorageError{Op: "append message", Err: errors.New("disk full")})

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}
