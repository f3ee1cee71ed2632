package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/pay2mail/backend/internal/models"
	"go.uber.org/zap"
)

// PaymentOutcome is what OnPaymentEvent did with an event.
type PaymentOutcome struct {
	// Handled is false for event types that do not move money.
	Handled  bool                     `json:"handled"`
	Applied  bool                     `json:"applied"`
	Balance  int64                    `json:"balance"`
	Released []models.PendingMailItem `json:"released,omitempty"`
}

// TransactionWriter records a balance change at most once per txnID.
type TransactionWriter interface {
	Record(ctx context.Context, userID, txnID string, amount int64, source models.TransactionSource) (RecordResult, error)
}

// MailSettler releases held mail for a sender.
type MailSettler interface {
	Settle(ctx context.Context, userID string) (SettleResult, error)
}

type PaymentService struct {
	recorder   TransactionWriter
	reconciler MailSettler
	validator  *ValidationHelper
	eventType  string
	logger     *zap.Logger
}

func NewPaymentService(recorder TransactionWriter, reconciler MailSettler, eventType string, logger *zap.Logger) *PaymentService {
	if eventType == "" {
		eventType = models.PaymentIntentSucceeded
	}
	return &PaymentService{
		recorder:   recorder,
		reconciler: reconciler,
		validator:  NewValidationHelper(),
		eventType:  eventType,
		logger:     logger,
	}
}

// OnPaymentEvent credits a succeeded payment to the payer and then releases
// whatever held mail the new balance pays for. Redelivered events are
// recognised by EventID and change nothing.
func (s *PaymentService) OnPaymentEvent(ctx context.Context, event models.PaymentEvent) (PaymentOutcome, error) {
	if event.Type != s.eventType {
		s.logger.Info("Unhandled event type", zap.String("type", event.Type), zap.String("event", event.EventID))
		return PaymentOutcome{}, nil
	}

	event.PayerIdentity = NormalizeAddress(event.PayerIdentity)
	if err := s.validator.ValidateStruct(&event); err != nil {
		return PaymentOutcome{}, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}

	recorded, err := s.recorder.Record(ctx, event.PayerIdentity, event.EventID, event.Amount, models.SourceExternalProvider)
	if err != nil {
		return PaymentOutcome{}, err
	}

	outcome := PaymentOutcome{Handled: true, Applied: recorded.Applied, Balance: recorded.Balance}
	if recorded.Applied && event.Amount > 0 {
		s.settle(ctx, event.PayerIdentity, &outcome)
	}
	return outcome, nil
}

// Adjust records an operator correction. Positive adjustments may release
// held mail the same way a payment does.
func (s *PaymentService) Adjust(ctx context.Context, userID, txnID string, amount int64) (PaymentOutcome, error) {
	userID = NormalizeAddress(userID)
	if userID == "" || txnID == "" || amount == 0 {
		return PaymentOutcome{}, fmt.Errorf("%w: user, transaction id and non-zero amount are required", ErrInvalidEvent)
	}

	recorded, err := s.recorder.Record(ctx, userID, txnID, amount, models.SourceInternalAdjustment)
	if err != nil {
		return PaymentOutcome{}, err
	}

	outcome := PaymentOutcome{Handled: true, Applied: recorded.Applied, Balance: recorded.Balance}
	if recorded.Applied && amount > 0 {
		s.settle(ctx, userID, &outcome)
	}
	return outcome, nil
}

// The credit is already committed, so a failed pass is only logged; the
// items stay pending and are retried on the next payment or mail arrival.
func (s *PaymentService) settle(ctx context.Context, userID string, outcome *PaymentOutcome) {
	settled, err := s.reconciler.Settle(ctx, userID)
	if err != nil {
		s.logger.Error("Reconciliation failed", zap.String("user", userID), zap.Error(err))
		return
	}
	outcome.Released = settled.Released
	outcome.Balance = settled.Balance
}

// IsClientError reports whether err was caused by the event itself rather
// than by the backend.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidEvent) || errors.Is(err, ErrInsufficientBalance)
}
