package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"

	"github.com/pay2mail/backend/internal/models"
	"github.com/pay2mail/backend/internal/services"
	"go.uber.org/zap"
)

// MailProcessor consumes mail arrival events.
type MailProcessor interface {
	OnMailArrived(ctx context.Context, event models.MailEvent) (services.MailOutcome, error)
}

type MailHandler struct {
	mail   MailProcessor
	logger *zap.Logger
}

func NewMailHandler(mail MailProcessor, logger *zap.Logger) *MailHandler {
	return &MailHandler{
		mail:   mail,
		logger: logger,
	}
}

type mailArrivedRequest struct {
	Sender      string `json:"sender"`
	Recipient   string `json:"recipient"`
	MailID      string `json:"mailId"`
	SubjectMeta string `json:"subjectMeta"`
	// Raw is an optional base64 RFC 5322 message. Missing fields are taken
	// from its headers.
	Raw string `json:"raw,omitempty"`
}

// MailArrived is called by the ingestion server for every accepted message
// @Summary Mail arrived
// @Description Charges the sender's fee from balance or holds the message until it is paid.
// @Tags Mail
// @Accept json
// @Produce json
// @Param X-Ingest-Token header string true "Ingestion token"
// @Param request body mailArrivedRequest true "Mail event"
// @Success 200 {object} services.MailOutcome
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Failure 500 {object} services.ErrorResponse
// @Router /mail/arrived [post]
func (h *MailHandler) MailArrived(w http.ResponseWriter, r *http.Request) {
	var req mailArrivedRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	event := models.MailEvent{
		Sender:      req.Sender,
		Recipient:   req.Recipient,
		MailID:      req.MailID,
		SubjectMeta: req.SubjectMeta,
	}

	if req.Raw != "" {
		raw, err := base64.StdEncoding.DecodeString(req.Raw)
		if err != nil {
			services.SendErrorResponse(w, "raw must be base64", http.StatusBadRequest, nil)
			return
		}
		event, err = services.MailEventFromRaw(bytes.NewReader(raw), req.Sender, req.Recipient, req.MailID)
		if err != nil {
			h.logger.Warn("Unparsable raw message", zap.Error(err))
			services.SendErrorResponse(w, "Invalid raw message", http.StatusBadRequest, nil)
			return
		}
		if req.SubjectMeta != "" {
			event.SubjectMeta = req.SubjectMeta
		}
	}

	outcome, err := h.mail.OnMailArrived(r.Context(), event)
	if err != nil {
		if isValidationError(err) {
			services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
			return
		}
		h.logger.Error("Mail event failed", zap.String("mail", event.MailID), zap.Error(err))
		services.SendErrorResponse(w, "Failed to process mail", http.StatusInternalServerError, nil)
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}
