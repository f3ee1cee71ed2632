package services

import (
	"context"
	"database/sql"

	"github.com/pay2mail/backend/internal/models"
	"go.uber.org/zap"
)

// RecordResult tells whether Record changed the balance.
type RecordResult struct {
	Applied bool  `json:"applied"`
	Balance int64 `json:"balance"`
}

// TransactionRecorder applies each external transaction id at most once.
type TransactionRecorder struct {
	runner   *TxRunner
	ledger   *LedgerService
	audit    Auditor
	notifier BalancePublisher
	logger   *zap.Logger
}

func NewTransactionRecorder(runner *TxRunner, ledger *LedgerService, audit Auditor, notifier BalancePublisher, logger *zap.Logger) *TransactionRecorder {
	return &TransactionRecorder{
		runner:   runner,
		ledger:   ledger,
		audit:    audit,
		notifier: notifier,
		logger:   logger,
	}
}

// Record writes transaction txnID for userID and adjusts the balance by
// amount in one atomic unit. If txnID is already recorded nothing changes and
// Applied is false, so redelivered provider events are safe.
func (r *TransactionRecorder) Record(ctx context.Context, userID, txnID string, amount int64, source models.TransactionSource) (RecordResult, error) {
	var result RecordResult

	err := r.runner.Run(ctx, "record "+txnID, func(ctx context.Context, tx *sql.Tx) error {
		result = RecordResult{}

		exists, err := r.ledger.TransactionExistsTx(ctx, tx, userID, txnID)
		if err != nil {
			return err
		}
		if exists {
			account, _, err := r.ledger.GetAccountTx(ctx, tx, userID)
			if err != nil {
				return err
			}
			result.Balance = account.Balance
			return nil
		}

		balance, err := r.ledger.AdjustBalanceTx(ctx, tx, models.Transaction{
			AccountID: userID,
			TxnID:     txnID,
			Amount:    amount,
			Source:    source,
		})
		if err != nil {
			return err
		}

		result = RecordResult{Applied: true, Balance: balance}
		return nil
	})
	if err != nil {
		r.audit.LogError(txnID, userID, err)
		return RecordResult{}, err
	}

	if !result.Applied {
		r.audit.LogDuplicate(txnID, userID)
		r.logger.Info("Transaction already recorded", zap.String("user", userID), zap.String("txn", txnID))
		return result, nil
	}

	r.audit.LogCredit(txnID, userID, amount, result.Balance)
	r.notifier.PublishBalance(ctx, userID, result.Balance)
	return result, nil
}
