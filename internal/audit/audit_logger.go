// Package audit records one structured event per money movement.
package audit

import (
	"time"

	"go.uber.org/zap"
)

const (
	EventCredit    = "CREDIT"
	EventDeduction = "DEDUCTION"
	EventRelease   = "RELEASE"
	EventDuplicate = "DUPLICATE"
	EventError     = "ERROR"
)

type AuditEvent struct {
	Timestamp     time.Time         `json:"timestamp"`
	EventType     string            `json:"event_type"`
	TransactionID string            `json:"transaction_id"`
	AccountID     string            `json:"account_id"`
	Amount        int64             `json:"amount"`
	Balance       int64             `json:"balance"`
	Status        string            `json:"status"`
	Details       map[string]string `json:"details,omitempty"`
}

type AuditLogger struct {
	logger *zap.Logger
	now    func() time.Time
}

func NewAuditLogger(logger *zap.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger.Named("audit"),
		now:    time.Now,
	}
}

func (a *AuditLogger) LogCredit(transactionID, accountID string, amount, balance int64) {
	a.log(AuditEvent{
		EventType:     EventCredit,
		TransactionID: transactionID,
		AccountID:     accountID,
		Amount:        amount,
		Balance:       balance,
		Status:        "SUCCESS",
	})
}

func (a *AuditLogger) LogDeduction(transactionID, accountID string, fee, balance int64) {
	a.log(AuditEvent{
		EventType:     EventDeduction,
		TransactionID: transactionID,
		AccountID:     accountID,
		Amount:        -fee,
		Balance:       balance,
		Status:        "SUCCESS",
	})
}

func (a *AuditLogger) LogRelease(mailboxID, mailID, sender string, fee int64) {
	a.log(AuditEvent{
		EventType: EventRelease,
		AccountID: sender,
		Amount:    -fee,
		Status:    "SUCCESS",
		Details: map[string]string{
			"mailbox_id": mailboxID,
			"mail_id":    mailID,
		},
	})
}

func (a *AuditLogger) LogDuplicate(transactionID, accountID string) {
	a.log(AuditEvent{
		EventType:     EventDuplicate,
		TransactionID: transactionID,
		AccountID:     accountID,
		Status:        "SKIPPED",
	})
}

func (a *AuditLogger) LogError(transactionID, accountID string, err error) {
	a.log(AuditEvent{
		EventType:     EventError,
		TransactionID: transactionID,
		AccountID:     accountID,
		Status:        "FAILED",
		Details:       map[string]string{"error": err.Error()},
	})
}

func (a *AuditLogger) log(event AuditEvent) {
	event.Timestamp = a.now()
	fields := []zap.Field{
		zap.Time("timestamp", event.Timestamp),
		zap.String("event_type", event.EventType),
		zap.String("account_id", event.AccountID),
		zap.Int64("amount", event.Amount),
		zap.String("status", event.Status),
	}
	if event.TransactionID != "" {
		fields = append(fields, zap.String("transaction_id", event.TransactionID))
	}
	if event.EventType == EventCredit || event.EventType == EventDeduction {
		fields = append(fields, zap.Int64("balance", event.Balance))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String(k, v))
	}
	a.logger.Info("AUDIT", fields...)
}
