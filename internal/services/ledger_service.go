package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pay2mail/backend/internal/models"
)

// LedgerService is the balance store: accounts plus their transaction ledger.
// Mutations take a *sql.Tx so callers can compose them into one atomic unit.
type LedgerService struct {
	db  *sql.DB
	now func() time.Time
}

func NewLedgerService(db *sql.DB) *LedgerService {
	return &LedgerService{
		db:  db,
		now: time.Now,
	}
}

// GetBalance returns the balance of userID. A missing account has balance 0.
func (s *LedgerService) GetBalance(ctx context.Context, userID string) (int64, error) {
	var balance int64
	err := s.db.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE id = $1`, userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

// EnsureAccount creates a zero-balance account if none exists.
func (s *LedgerService) EnsureAccount(ctx context.Context, userID string) error {
	now := s.now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, balance, version, created_at, updated_at)
		VALUES ($1, 0, 0, $2, $2)
		ON CONFLICT (id) DO NOTHING`, userID, now)
	if err != nil {
		return fmt.Errorf("ensure account: %w", err)
	}
	return nil
}

// ListTransactions returns the newest ledger entries of userID first.
func (s *LedgerService) ListTransactions(ctx context.Context, userID string, limit int) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT account_id, txn_id, amount, source, created_at
		FROM account_transactions
		WHERE account_id = $1
		ORDER BY created_at DESC, txn_id DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.AccountID, &t.TxnID, &t.Amount, &t.Source, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

// GetAccountTx reads the account row inside tx. found is false when the
// account does not exist yet; the returned account then has balance 0.
func (s *LedgerService) GetAccountTx(ctx context.Context, tx *sql.Tx, userID string) (*models.Account, bool, error) {
	account := models.Account{ID: userID}
	err := tx.QueryRowContext(ctx, `
		SELECT id, balance, version, created_at, updated_at
		FROM accounts
		WHERE id = $1`, userID).Scan(&account.ID, &account.Balance, &account.Version, &account.CreatedAt, &account.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &account, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get account: %w", err)
	}
	return &account, true, nil
}

// TransactionExistsTx reports whether txnID is already in the ledger of userID.
func (s *LedgerService) TransactionExistsTx(ctx context.Context, tx *sql.Tx, userID, txnID string) (bool, error) {
	var exists bool
	err := tx.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM account_transactions
			WHERE account_id = $1 AND txn_id = $2
		)`, userID, txnID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check transaction: %w", err)
	}
	return exists, nil
}

// AdjustBalanceTx appends entry to the ledger and applies entry.Amount to the
// account, creating the account at balance 0 first when needed.
func (s *LedgerService) AdjustBalanceTx(ctx context.Context, tx *sql.Tx, entry models.Transaction) (int64, error) {
	account, found, err := s.GetAccountTx(ctx, tx, entry.AccountID)
	if err != nil {
		return 0, err
	}
	if !found {
		if err := s.createAccountTx(ctx, tx, entry.AccountID); err != nil {
			return 0, err
		}
	}
	return s.ApplyTx(ctx, tx, account, entry)
}

// ApplyTx is AdjustBalanceTx for an account already read in tx. The update
// is guarded by the version read earlier; losing that race yields ErrConflict.
func (s *LedgerService) ApplyTx(ctx context.Context, tx *sql.Tx, account *models.Account, entry models.Transaction) (int64, error) {
	newBalance := account.Balance + entry.Amount
	if newBalance < 0 {
		return account.Balance, fmt.Errorf("%w: account %s has %d, delta %d", ErrInsufficientBalance, account.ID, account.Balance, entry.Amount)
	}

	if err := s.createLedgerEntry(ctx, tx, entry); err != nil {
		return 0, err
	}

	if err := s.updateAccountBalance(ctx, tx, account.ID, newBalance, account.Version); err != nil {
		return 0, err
	}

	account.Balance = newBalance
	account.Version++
	return newBalance, nil
}

func (s *LedgerService) createAccountTx(ctx context.Context, tx *sql.Tx, userID string) error {
	now := s.now()
	result, err := tx.ExecContext(ctx, `
		INSERT INTO accounts (id, balance, version, created_at, updated_at)
		VALUES ($1, 0, 0, $2, $2)
		ON CONFLICT (id) DO NOTHING`, userID, now)
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	// Someone else created it after our read; start over with their row.
	if rowsAffected == 0 {
		return fmt.Errorf("%w: account %s created concurrently", ErrConflict, userID)
	}
	return nil
}

func (s *LedgerService) createLedgerEntry(ctx context.Context, tx *sql.Tx, entry models.Transaction) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO account_transactions (account_id, txn_id, amount, source, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		entry.AccountID, entry.TxnID, entry.Amount, string(entry.Source), s.now())
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

func (s *LedgerService) updateAccountBalance(ctx context.Context, tx *sql.Tx, accountID string, newBalance int64, version int) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4`,
		newBalance, s.now(), accountID, version)
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: optimistic lock failed for account %s", ErrConflict, accountID)
	}

	return nil
}
