package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pay2mail/backend/internal/middleware"
	"github.com/pay2mail/backend/internal/models"
	"github.com/pay2mail/backend/internal/services"
	"go.uber.org/zap"
)

// PendingMailLister lists held mail by sender.
type PendingMailLister interface {
	ListBySender(ctx context.Context, sender string) ([]models.PendingMailItem, error)
}

// PaymentLinker builds payment links for held mail.
type PaymentLinker interface {
	GeneratePaymentLink(ctx context.Context, userID, mailboxID, mailID string) (*services.PaymentLink, error)
}

type PendingHandler struct {
	pending PendingMailLister
	links   PaymentLinker
	logger  *zap.Logger
}

func NewPendingHandler(pending PendingMailLister, links PaymentLinker, logger *zap.Logger) *PendingHandler {
	return &PendingHandler{
		pending: pending,
		links:   links,
		logger:  logger,
	}
}

// ListPending returns the caller's held mail, oldest first
// @Summary Pending mail
// @Tags Pending
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.PendingMailItem
// @Failure 401 {object} services.ErrorResponse
// @Router /pending [get]
func (h *PendingHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	items, err := h.pending.ListBySender(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list pending mail", zap.String("user", userID), zap.Error(err))
		services.SendErrorResponse(w, "Failed to list pending mail", http.StatusInternalServerError, nil)
		return
	}

	writeJSON(w, http.StatusOK, items)
}

// PaymentLink returns a payment link and QR code for one held message
// @Summary Payment link
// @Tags Pending
// @Produce json
// @Security BearerAuth
// @Param mailboxId path string true "Recipient mailbox"
// @Param mailId path string true "Mail id"
// @Success 200 {object} services.PaymentLink
// @Failure 401 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /pending/{mailboxId}/{mailId}/payment-link [get]
func (h *PendingHandler) PaymentLink(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	mailboxID := services.NormalizeAddress(chi.URLParam(r, "mailboxId"))
	mailID := chi.URLParam(r, "mailId")

	link, err := h.links.GeneratePaymentLink(r.Context(), userID, mailboxID, mailID)
	if errors.Is(err, services.ErrNotFound) {
		services.SendErrorResponse(w, "Pending mail not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		h.logger.Error("Failed to build payment link", zap.String("mail", mailID), zap.Error(err))
		services.SendErrorResponse(w, "Failed to build payment link", http.StatusInternalServerError, nil)
		return
	}

	writeJSON(w, http.StatusOK, link)
}
