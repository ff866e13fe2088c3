package handler

import (
	"net/http"

	"tipwall/internal/service"
	"tipwall/pkg/solana"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// WebhookHandler receives Helius enhanced-transaction webhooks for the vault.
type WebhookHandler struct {
	watcher   *service.WatcherService
	maxEvents int
	log       logrus.FieldLogger
}

func NewWebhookHandler(watcher *service.WatcherService, maxEvents int, log logrus.FieldLogger) *WebhookHandler {
	if maxEvents <= 0 {
		maxEvents = 100
	}
	return &WebhookHandler{watcher: watcher, maxEvents: maxEvents, log: log}
}

func (h *WebhookHandler) Helius(c *gin.Context) {
	var events []solana.EnhancedTransaction
	if err := c.ShouldBindJSON(&events); err != nil {
		h.log.WithError(err).Warn("[Helius webhook] Invalid payload")
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid payload"})
		return
	}
	if len(events) > h.maxEvents {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"ok": false, "error": "too many events"})
		return
	}
	res := h.watcher.Process(c.Request.Context(), events)
	c.JSON(http.StatusOK, gin.H{"ok": true, "processed": res.Processed, "failed": res.Failed, "results": res.Results})
}
