package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/pay2mail/backend/internal/models"
	"go.uber.org/zap"
)

// DeductResult tells the caller whether the mail may be delivered right away.
type DeductResult struct {
	Paid    bool  `json:"paid"`
	Balance int64 `json:"balance"`
}

// DeductionPolicy pays for new mail from the sender's prepaid balance.
type DeductionPolicy struct {
	runner   *TxRunner
	ledger   *LedgerService
	pending  *PendingMailService
	audit    Auditor
	notifier BalancePublisher
	logger   *zap.Logger
}

func NewDeductionPolicy(runner *TxRunner, ledger *LedgerService, pending *PendingMailService, audit Auditor, notifier BalancePublisher, logger *zap.Logger) *DeductionPolicy {
	return &DeductionPolicy{
		runner:   runner,
		ledger:   ledger,
		pending:  pending,
		audit:    audit,
		notifier: notifier,
		logger:   logger,
	}
}

// TryDeduct charges fee to sender for mailID in mailboxID when the balance is
// strictly greater than the fee. A balance equal to the fee does not pay; that
// threshold is kept as the product defined it and is still awaiting
// confirmation. An already charged mail reports Paid without charging again.
// Mail that is already held never pays here: it leaves the pending state only
// through the Reconciler, which charges and removes it together.
func (p *DeductionPolicy) TryDeduct(ctx context.Context, sender string, fee int64, mailboxID, mailID string) (DeductResult, error) {
	if fee <= 0 {
		return DeductResult{}, errors.New("fee must be positive")
	}
	txnID := models.FeeTxnID(mailboxID, mailID)

	var result DeductResult
	charged := false

	err := p.runner.Run(ctx, "deduct "+txnID, func(ctx context.Context, tx *sql.Tx) error {
		result = DeductResult{}
		charged = false

		account, found, err := p.ledger.GetAccountTx(ctx, tx, sender)
		if err != nil {
			return err
		}
		result.Balance = account.Balance
		if !found {
			return nil
		}

		held, err := p.pending.HeldTx(ctx, tx, mailboxID, mailID)
		if err != nil {
			return err
		}
		if held {
			return nil
		}

		exists, err := p.ledger.TransactionExistsTx(ctx, tx, sender, txnID)
		if err != nil {
			return err
		}
		if exists {
			result.Paid = true
			return nil
		}

		if account.Balance <= fee {
			return nil
		}

		balance, err := p.ledger.ApplyTx(ctx, tx, account, models.Transaction{
			AccountID: sender,
			TxnID:     txnID,
			Amount:    -fee,
			Source:    models.SourceInternalAdjustment,
		})
		if err != nil {
			return err
		}

		result = DeductResult{Paid: true, Balance: balance}
		charged = true
		return nil
	})
	if err != nil {
		p.audit.LogError(txnID, sender, err)
		return DeductResult{}, err
	}

	if charged {
		p.audit.LogDeduction(txnID, sender, fee, result.Balance)
		p.notifier.PublishBalance(ctx, sender, result.Balance)
	} else if !result.Paid {
		p.logger.Debug("Balance does not cover fee",
			zap.String("sender", sender),
			zap.Int64("balance", result.Balance),
			zap.Int64("fee", fee))
	}
	return result, nil
}
