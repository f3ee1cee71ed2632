package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

const minRetryBaseDelay = time.Millisecond

// TxFunc is one atomic unit of work. It may run several times.
type TxFunc func(ctx context.Context, tx *sql.Tx) error

// TxRunner runs atomic units against PostgreSQL and retries the whole unit
// when it loses a write conflict.
type TxRunner struct {
	db          *sql.DB
	maxAttempts int
	baseDelay   time.Duration
	logger      *zap.Logger
}

func NewTxRunner(db *sql.DB, maxAttempts int, baseDelay time.Duration, logger *zap.Logger) *TxRunner {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay < minRetryBaseDelay {
		baseDelay = minRetryBaseDelay
	}
	return &TxRunner{
		db:          db,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		logger:      logger,
	}
}

// Run executes fn in a transaction. Conflicts are retried with exponential
// backoff up to maxAttempts; any other error aborts immediately.
func (r *TxRunner) Run(ctx context.Context, unit string, fn TxFunc) error {
	backoff := retry.NewExponential(r.baseDelay)
	backoff = retry.WithJitterPercent(20, backoff)
	backoff = retry.WithMaxRetries(uint64(r.maxAttempts-1), backoff)

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := r.runOnce(ctx, fn)
		if err != nil && IsConflict(err) {
			r.logger.Debug("Atomic unit conflicted, retrying",
				zap.String("unit", unit),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return retry.RetryableError(err)
		}
		return err
	})
	if err == nil {
		return nil
	}

	if IsConflict(err) {
		r.logger.Warn("Atomic unit gave up after conflicts",
			zap.String("unit", unit),
			zap.Int("attempts", attempt),
			zap.Error(err))
		return fmt.Errorf("%s: gave up after %d attempts: %w: %w", unit, attempt, ErrConflict, err)
	}
	return fmt.Errorf("%s: %w", unit, err)
}

func (r *TxRunner) runOnce(ctx context.Context, fn TxFunc) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
