package handlers

import (
	"io"
	"net/http"

	"github.com/gabaylaguna/booking-backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// WebhookHandler receives asynchronous settlement notifications from the
// payment gateways. After a webhook authenticates and parses, the response
// is always 200: settlement outcomes are absorbed, never bounced back to
// the provider for retry storms.
type WebhookHandler struct {
	paymongoService *services.PayMongoService
	xenditService   *services.XenditService
	reconciler      *services.ReconcilerService
	audits          *services.AuditService
	logger          *logrus.Logger
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(
	paymongoService *services.PayMongoService,
	xenditService *services.XenditService,
	reconciler *services.ReconcilerService,
	audits *services.AuditService,
	logger *logrus.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		paymongoService: paymongoService,
		xenditService:   xenditService,
		reconciler:      reconciler,
		audits:          audits,
		logger:          logger,
	}
}

// PayMongo handles PayMongo settlement notifications
// POST /api/v1/webhooks/paymongo
func (h *WebhookHandler) PayMongo(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "unable to read body"})
		return
	}

	event, err := h.paymongoService.NormalizeWebhook(body)
	if err != nil {
		h.logger.WithError(err).Warn("Rejected malformed PayMongo webhook")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload"})
		return
	}
	if event == nil {
		// Event type we don't settle on; acknowledge and move on
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	h.audits.LogWebhookReceived(c.Request.Context(), event.Provider, event.ProviderRef, string(body), requestMeta(c))

	if err := h.reconciler.Apply(c.Request.Context(), event); err != nil {
		// Internal failures still get a 200; the audit trail holds the details
		h.logger.WithError(err).WithField("provider_ref", event.ProviderRef).Error("Failed to apply PayMongo settlement")
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

// Xendit handles Xendit invoice and virtual account notifications
// POST /api/v1/webhooks/xendit
func (h *WebhookHandler) Xendit(c *gin.Context) {
	if !h.xenditService.VerifyCallbackToken(c.GetHeader("x-callback-token")) {
		h.logger.WithField("ip", c.ClientIP()).Warn("Xendit webhook with bad callback token")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "unable to read body"})
		return
	}

	event, err := h.xenditService.NormalizeWebhook(body)
	if err != nil {
		h.logger.WithError(err).Warn("Rejected malformed Xendit webhook")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload"})
		return
	}
	if event == nil {
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	h.audits.LogWebhookReceived(c.Request.Context(), event.Provider, event.ProviderRef, string(body), requestMeta(c))

	if err := h.reconciler.Apply(c.Request.Context(), event); err != nil {
		h.logger.WithError(err).WithField("provider_ref", event.ProviderRef).Error("Failed to apply Xendit settlement")
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
