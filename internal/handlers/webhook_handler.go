package handlers

import (
	"context"
	"net/http"

	"github.com/pay2mail/backend/internal/models"
	"github.com/pay2mail/backend/internal/services"
	"github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"
)

// PaymentProcessor consumes payment provider events.
type PaymentProcessor interface {
	OnPaymentEvent(ctx context.Context, event models.PaymentEvent) (services.PaymentOutcome, error)
}

type WebhookHandler struct {
	payments PaymentProcessor
	logger   *zap.Logger
}

func NewWebhookHandler(payments PaymentProcessor, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		payments: payments,
		logger:   logger,
	}
}

// HandleStripe receives Stripe webhook events
// @Summary Stripe webhook
// @Description Credits succeeded payments to the payer's balance and releases held mail. Other event types are acknowledged and ignored.
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param Stripe-Signature header string false "Stripe signature, required when a webhook secret is configured"
// @Param event body object true "Stripe event"
// @Success 200 {object} object{received=bool}
// @Failure 400 {object} services.ErrorResponse
// @Failure 500 {object} services.ErrorResponse
// @Router /webhooks/stripe [post]
func (h *WebhookHandler) HandleStripe(w http.ResponseWriter, r *http.Request) {
	var event stripe.Event
	// Stripe adds fields over time, so unknown fields are accepted here.
	if err := decodeJSON(w, r, &event, false); err != nil {
		h.logger.Warn("Malformed webhook payload", zap.Error(err))
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	paymentEvent, err := models.PaymentEventFromStripe(event)
	if err != nil {
		h.logger.Warn("Malformed webhook object", zap.String("event", event.ID), zap.Error(err))
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	outcome, err := h.payments.OnPaymentEvent(r.Context(), paymentEvent)
	if err != nil {
		if services.IsClientError(err) {
			h.logger.Warn("Rejected payment event", zap.String("event", event.ID), zap.Error(err))
			services.SendErrorResponse(w, "Invalid payment event", http.StatusBadRequest, err)
			return
		}
		// 5xx makes Stripe redeliver; recording is idempotent.
		h.logger.Error("Payment event failed", zap.String("event", event.ID), zap.Error(err))
		services.SendErrorResponse(w, "Failed to process event", http.StatusInternalServerError, nil)
		return
	}

	if outcome.Handled {
		h.logger.Info("Payment event processed",
			zap.String("event", event.ID),
			zap.Bool("applied", outcome.Applied),
			zap.Int("released", len(outcome.Released)))
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
