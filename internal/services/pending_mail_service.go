package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pay2mail/backend/internal/models"
)

// SettleOutcome reports what Settle did with one pending item.
type SettleOutcome struct {
	// Settled is false when the item was already gone.
	Settled bool
	Charged bool
	Balance int64
}

// PendingMailService stores held mail and settles it against the sender's
// balance.
type PendingMailService struct {
	db     *sql.DB
	runner *TxRunner
	ledger *LedgerService
	now    func() time.Time
}

func NewPendingMailService(db *sql.DB, runner *TxRunner, ledger *LedgerService) *PendingMailService {
	return &PendingMailService{
		db:     db,
		runner: runner,
		ledger: ledger,
		now:    time.Now,
	}
}

// Create holds item. It returns false when the same (mailbox, mail) pair is
// already pending, which happens on redelivered ingestion events.
func (s *PendingMailService) Create(ctx context.Context, item *models.PendingMailItem) (bool, error) {
	if item.CreatedAt.IsZero() {
		item.CreatedAt = s.now()
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO pending_mail (mailbox_id, mail_id, sender, recipient, subject_meta, fee, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (mailbox_id, mail_id) DO NOTHING`,
		item.MailboxID, item.MailID, item.Sender, item.Recipient, item.SubjectMeta, item.Fee, item.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("create pending mail: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected == 1, nil
}

// Get returns one pending item or ErrNotFound.
func (s *PendingMailService) Get(ctx context.Context, mailboxID, mailID string) (*models.PendingMailItem, error) {
	var item models.PendingMailItem
	err := s.db.QueryRowContext(ctx, `
		SELECT mailbox_id, mail_id, sender, recipient, subject_meta, fee, created_at
		FROM pending_mail
		WHERE mailbox_id = $1 AND mail_id = $2`, mailboxID, mailID).
		Scan(&item.MailboxID, &item.MailID, &item.Sender, &item.Recipient, &item.SubjectMeta, &item.Fee, &item.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get pending mail: %w", err)
	}
	return &item, nil
}

// HeldTx reports inside tx whether mailID in mailboxID is pending.
func (s *PendingMailService) HeldTx(ctx context.Context, tx *sql.Tx, mailboxID, mailID string) (bool, error) {
	var held bool
	err := tx.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM pending_mail
			WHERE mailbox_id = $1 AND mail_id = $2
		)`, mailboxID, mailID).Scan(&held)
	if err != nil {
		return false, fmt.Errorf("check pending mail: %w", err)
	}
	return held, nil
}

// ListBySender returns every item held for sender, oldest first.
func (s *PendingMailService) ListBySender(ctx context.Context, sender string) ([]models.PendingMailItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT mailbox_id, mail_id, sender, recipient, subject_meta, fee, created_at
		FROM pending_mail
		WHERE sender = $1
		ORDER BY created_at ASC, mail_id ASC`, sender)
	if err != nil {
		return nil, fmt.Errorf("list pending mail: %w", err)
	}
	defer rows.Close()

	items := []models.PendingMailItem{}
	for rows.Next() {
		var item models.PendingMailItem
		if err := rows.Scan(&item.MailboxID, &item.MailID, &item.Sender, &item.Recipient, &item.SubjectMeta, &item.Fee, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pending mail: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Settle charges the item's fee to its sender and removes the item, as one
// atomic unit. Call it only after the mail server acknowledged the release.
func (s *PendingMailService) Settle(ctx context.Context, item models.PendingMailItem) (SettleOutcome, error) {
	var outcome SettleOutcome
	txnID := item.FeeTxnID()

	err := s.runner.Run(ctx, "settle "+txnID, func(ctx context.Context, tx *sql.Tx) error {
		outcome = SettleOutcome{}

		var fee int64
		err := tx.QueryRowContext(ctx, `
			SELECT fee FROM pending_mail
			WHERE mailbox_id = $1 AND mail_id = $2`, item.MailboxID, item.MailID).Scan(&fee)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("lookup pending mail: %w", err)
		}

		account, _, err := s.ledger.GetAccountTx(ctx, tx, item.Sender)
		if err != nil {
			return err
		}
		outcome.Balance = account.Balance

		charged, err := s.ledger.TransactionExistsTx(ctx, tx, item.Sender, txnID)
		if err != nil {
			return err
		}
		if !charged {
			balance, err := s.ledger.ApplyTx(ctx, tx, account, models.Transaction{
				AccountID: item.Sender,
				TxnID:     txnID,
				Amount:    -fee,
				Source:    models.SourceInternalAdjustment,
			})
			if err != nil {
				return err
			}
			outcome.Balance = balance
			outcome.Charged = true
		}

		if _, err := tx.ExecContext(ctx, `
			DELETE FROM pending_mail
			WHERE mailbox_id = $1 AND mail_id = $2`, item.MailboxID, item.MailID); err != nil {
			return fmt.Errorf("delete pending mail: %w", err)
		}

		outcome.Settled = true
		return nil
	})
	if err != nil {
		return SettleOutcome{}, err
	}
	return outcome, nil
}
