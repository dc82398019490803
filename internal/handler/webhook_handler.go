package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vay-dev/swift-wallet-be/internal/command"
	"github.com/vay-dev/swift-wallet-be/internal/gateway"
	"github.com/vay-dev/swift-wallet-be/internal/metrics"
	"github.com/vay-dev/swift-wallet-be/shared/cqrs"
	"github.com/vay-dev/swift-wallet-be/shared/middleware"
	"github.com/vay-dev/swift-wallet-be/shared/models"
	"go.uber.org/zap"
)

const maxWebhookBody = 1 << 20

type Reconciler interface {
	Reconcile(ctx context.Context, cmd cqrs.ReconcileCommand) (*command.ReconcileOutcome, error)
}

// WebhookHandler receives provider notifications. It authenticates them by
// signature only; the notification body is never trusted for amounts.
type WebhookHandler struct {
	reconciler Reconciler
	secret     string
	logger     *zap.Logger
}

func NewWebhookHandler(reconciler Reconciler, secret string, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{reconciler: reconciler, secret: secret, logger: logger}
}

func (h *WebhookHandler) Paystack(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	if !gateway.VerifySignature(h.secret, body, c.GetHeader(gateway.SignatureHeader)) {
		metrics.WebhookRejected()
		h.logger.Warn("webhook signature rejected", zap.String("client_ip", c.ClientIP()))
		middleware.RespondWithError(c, http.StatusUnauthorized, "Invalid signature")
		return
	}

	var event gateway.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid payload")
		return
	}
	if event.Event != gateway.EventChargeSuccess || event.Data.Reference == "" {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	asserted := models.FromMinorUnits(event.Data.Amount)
	out, err := h.reconciler.Reconcile(c.Request.Context(), cqrs.ReconcileCommand{
		Reference:      event.Data.Reference,
		AssertedAmount: &asserted,
		Source:         cqrs.ReconcileWebhook,
	})
	switch {
	case err == nil:
	case errors.Is(err, models.ErrUnknownReference), errors.Is(err, models.ErrValidation):
		h.logger.Info("webhook for unrelated reference ignored", zap.String("reference", event.Data.Reference))
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	default:
		respondError(c, err, "Failed to process notification")
		return
	}

	status := string(out.Status)
	if out.AlreadyProcessed {
		status = "already_processed"
	}
	c.JSON(http.StatusOK, gin.H{"status": status, "reference": out.Reference})
}
