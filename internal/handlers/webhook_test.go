package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/skylerye/yuquesync-backend/internal/logger"
	"github.com/skylerye/yuquesync-backend/internal/types"
)

type fakeWebhookService struct {
	err    error
	events []*types.WebhookPayload
}

func (f *fakeWebhookService) HandleEvent(ctx context.Context, payload *types.WebhookPayload) error {
	f.events = append(f.events, payload)
	return f.err
}

func postWebhook(t *testing.T, svc *fakeWebhookService, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewWebhookHandler(logger.NewNop(), svc)
	router.POST("/webhook", handler.Receive)

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestWebhookAcksValidPayload(t *testing.T) {
	svc := &fakeWebhookService{}
	rec := postWebhook(t, svc, `{"data":{"action_type":"update","id":555,"slug":"intro"}}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200 got %d", rec.Code)
	}
	if len(svc.events) != 1 || svc.events[0].Data.ID != 555 {
		t.Fatalf("payload not forwarded: %v", svc.events)
	}
}

func TestWebhookAcksUndecodablePayload(t *testing.T) {
	svc := &fakeWebhookService{}
	rec := postWebhook(t, svc, `{not json`)

	// Failing deliveries get the endpoint disabled remotely, so even junk
	// is acknowledged.
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200 for junk payload got %d", rec.Code)
	}
	if len(svc.events) != 0 {
		t.Fatalf("junk payload must not reach the service")
	}
}

func TestWebhookAcksWhenHandlingFails(t *testing.T) {
	svc := &fakeWebhookService{err: errors.New("store unavailable")}
	rec := postWebhook(t, svc, `{"data":{"action_type":"publish","id":1,"slug":"x"}}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200 despite handler error got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "error") {
		t.Fatalf("body should carry error status, got %s", rec.Body.String())
	}
}
