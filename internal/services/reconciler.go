package services

import (
	"context"
	"fmt"

	"github.com/pay2mail/backend/internal/models"
	"go.uber.org/zap"
)

// PendingMailStore is the part of PendingMailService the Reconciler needs.
type PendingMailStore interface {
	ListBySender(ctx context.Context, sender string) ([]models.PendingMailItem, error)
	Settle(ctx context.Context, item models.PendingMailItem) (SettleOutcome, error)
}

// BalanceReader reads a user's current balance.
type BalanceReader interface {
	GetBalance(ctx context.Context, userID string) (int64, error)
}

// SettleResult summarises one reconciliation pass.
type SettleResult struct {
	Released  []models.PendingMailItem `json:"released"`
	Failed    int                      `json:"failed"`
	Remaining int                      `json:"remaining"`
	Balance   int64                    `json:"balance"`
}

// Reconciler releases a sender's held mail, oldest first, for as long as the
// balance covers the next fee.
type Reconciler struct {
	pending  PendingMailStore
	balances BalanceReader
	delivery DeliveryNotifier
	audit    Auditor
	notifier BalancePublisher
	logger   *zap.Logger
}

func NewReconciler(pending PendingMailStore, balances BalanceReader, delivery DeliveryNotifier, audit Auditor, notifier BalancePublisher, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		pending:  pending,
		balances: balances,
		delivery: delivery,
		audit:    audit,
		notifier: notifier,
		logger:   logger,
	}
}

// Settle walks the pending mail of userID. Each item is first acknowledged by
// the mail server and only then charged and removed, in its own atomic unit.
// An item the mail server refuses stays pending and the pass moves on. The
// pass stops at the first item whose fee exceeds the remaining funds.
func (r *Reconciler) Settle(ctx context.Context, userID string) (SettleResult, error) {
	result := SettleResult{Released: []models.PendingMailItem{}}

	items, err := r.pending.ListBySender(ctx, userID)
	if err != nil {
		return result, err
	}

	available, err := r.balances.GetBalance(ctx, userID)
	if err != nil {
		return result, err
	}
	result.Balance = available

	if len(items) == 0 {
		return result, nil
	}

	changed := false
	for i, item := range items {
		if available < item.Fee {
			result.Remaining += len(items) - i
			break
		}

		if err := r.delivery.NotifyPaid(ctx, item.MailboxID, item.MailID, item.Recipient); err != nil {
			r.logger.Warn("Mail server did not acknowledge release",
				zap.String("sender", userID),
				zap.String("mailbox", item.MailboxID),
				zap.String("mail", item.MailID),
				zap.Error(err))
			result.Failed++
			result.Remaining++
			continue
		}

		outcome, err := r.pending.Settle(ctx, item)
		if err != nil {
			r.audit.LogError(item.FeeTxnID(), userID, fmt.Errorf("settle after release: %w", err))
			result.Failed++
			result.Remaining++
			continue
		}
		if !outcome.Settled {
			// settled by a concurrent pass
			continue
		}

		if outcome.Charged {
			r.audit.LogDeduction(item.FeeTxnID(), userID, item.Fee, outcome.Balance)
			changed = true
		}
		r.audit.LogRelease(item.MailboxID, item.MailID, userID, item.Fee)

		available = outcome.Balance
		result.Balance = outcome.Balance
		result.Released = append(result.Released, item)
	}

	if changed {
		r.notifier.PublishBalance(ctx, userID, result.Balance)
	}

	r.logger.Info("Reconciliation pass finished",
		zap.String("sender", userID),
		zap.Int("released", len(result.Released)),
		zap.Int("failed", result.Failed),
		zap.Int("remaining", result.Remaining),
		zap.Int64("balance", result.Balance))
	return result, nil
}
