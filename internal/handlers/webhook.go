package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/skylerye/yuquesync-backend/internal/logger"
	"github.com/skylerye/yuquesync-backend/internal/services"
	"github.com/skylerye/yuquesync-backend/internal/types"
)

// WebhookHandler receives Yuque delivery callbacks. It always acknowledges
// with 200: Yuque disables endpoints that keep failing, and a lost delivery
// is repaired by the nightly full sync anyway.
type WebhookHandler struct {
	log     *logger.Logger
	webhook services.WebhookService
}

func NewWebhookHandler(log *logger.Logger, webhookService services.WebhookService) *WebhookHandler {
	return &WebhookHandler{log: log.With("handler", "WebhookHandler"), webhook: webhookService}
}

func (wh *WebhookHandler) Receive(c *gin.Context) {
	var payload types.WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		wh.log.Warn("Undecodable webhook payload", "error", err)
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	if err := wh.webhook.HandleEvent(c.Request.Context(), &payload); err != nil {
		wh.log.Error("Webhook event handling failed", "action", payload.Data.ActionType, "doc_id", payload.Data.ID, "error", err)
		c.JSON(http.StatusOK, gin.H{"status": "error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
