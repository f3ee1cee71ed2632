package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pay2mail/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var pendingColumns = []string{"mailbox_id", "mail_id", "sender", "recipient", "subject_meta", "fee", "created_at"}

func newTestPendingService(t *testing.T) (*PendingMailService, sqlmock.Sqlmock) {
	t.Helper()
	db, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	runner := NewTxRunner(db, 3, time.Millisecond, zap.NewNop())
	return NewPendingMailService(db, runner, NewLedgerService(db)), sqlMock
}

func heldItem(mailID string) models.PendingMailItem {
	return models.PendingMailItem{
		MailboxID: "bob@example.com",
		MailID:    mailID,
		Sender:    "alice@example.com",
		Recipient: "bob@example.com",
		Fee:       10,
	}
}

func TestPendingMailService_Create(t *testing.T) {
	service, sqlMock := newTestPendingService(t)
	ctx := context.Background()

	t.Run("new item", func(t *testing.T) {
		item := heldItem("m1")
		sqlMock.ExpectExec("INSERT INTO pending_mail .* ON CONFLICT \\(mailbox_id, mail_id\\) DO NOTHING").
			WithArgs("bob@example.com", "m1", "alice@example.com", "bob@example.com", "", 10, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		created, err := service.Create(ctx, &item)
		assert.NoError(t, err)
		assert.True(t, created)
		assert.False(t, item.CreatedAt.IsZero())
	})

	t.Run("already pending", func(t *testing.T) {
		item := heldItem("m1")
		sqlMock.ExpectExec("INSERT INTO pending_mail").
			WillReturnResult(sqlmock.NewResult(0, 0))

		created, err := service.Create(ctx, &item)
		assert.NoError(t, err)
		assert.False(t, created)
	})

	assert.NoError(t, sqlMock.ExpectationsWereMet())
}

func TestPendingMailService_Get(t *testing.T) {
	service, sqlMock := newTestPendingService(t)
	ctx := context.Background()
	now := time.Now()

	sqlMock.ExpectQuery("SELECT .* FROM pending_mail WHERE mailbox_id = \\$1 AND mail_id = \\$2").
		WithArgs("bob@example.com", "m1").
		WillReturnRows(sqlmock.NewRows(pendingColumns).
			AddRow("bob@example.com", "m1", "alice@example.com", "bob@example.com", "Hello", 10, now))

	item, err := service.Get(ctx, "bob@example.com", "m1")
	require.NoError(t, err)
	assert.Equal(t, "Hello", item.SubjectMeta)
	assert.Equal(t, int64(10), item.Fee)

	sqlMock.ExpectQuery("SELECT .* FROM pending_mail").
		WithArgs("bob@example.com", "missing").
		WillReturnError(sql.ErrNoRows)

	_, err = service.Get(ctx, "bob@example.com", "missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	assert.NoError(t, sqlMock.ExpectationsWereMet())
}

func TestPendingMailService_ListBySender(t *testing.T) {
	service, sqlMock := newTestPendingService(t)
	now := time.Now()

	sqlMock.ExpectQuery("SELECT .* FROM pending_mail WHERE sender = \\$1 ORDER BY created_at ASC, mail_id ASC").
		WithArgs("alice@example.com").
		WillReturnRows(sqlmock.NewRows(pendingColumns).
			AddRow("bob@example.com", "A", "alice@example.com", "bob@example.com", "", 10, now).
			AddRow("carol@example.com", "B", "alice@example.com", "carol@example.com", "", 10, now.Add(time.Second)))

	items, err := service.ListBySender(context.Background(), "alice@example.com")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "A", items[0].MailID)
	assert.Equal(t, "carol@example.com", items[1].MailboxID)
	assert.NoError(t, sqlMock.ExpectationsWereMet())
}

func TestPendingMailService_Settle(t *testing.T) {
	ctx := context.Background()
	sender := "alice@example.com"
	item := heldItem("A")
	feeTxn := "fee:bob@example.com:A"

	t.Run("charges fee and removes item", func(t *testing.T) {
		service, sqlMock := newTestPendingService(t)

		sqlMock.ExpectBegin()
		sqlMock.ExpectQuery("SELECT fee FROM pending_mail").
			WithArgs("bob@example.com", "A").
			WillReturnRows(sqlmock.NewRows([]string{"fee"}).AddRow(10))
		sqlMock.ExpectQuery(selectAccountSQL).WithArgs(sender).WillReturnRows(accountRow(sender, 15, 1))
		sqlMock.ExpectQuery(txnExistsSQL).WithArgs(sender, feeTxn).WillReturnRows(existsRow(false))
		sqlMock.ExpectExec(insertEntrySQL).
			WithArgs(sender, feeTxn, -10, "internal-adjustment", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		sqlMock.ExpectExec(updateBalanceSQL).
			WithArgs(5, sqlmock.AnyArg(), sender, 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		sqlMock.ExpectExec("DELETE FROM pending_mail WHERE mailbox_id = \\$1 AND mail_id = \\$2").
			WithArgs("bob@example.com", "A").
			WillReturnResult(sqlmock.NewResult(0, 1))
		sqlMock.ExpectCommit()

		outcome, err := service.Settle(ctx, item)
		require.NoError(t, err)
		assert.True(t, outcome.Settled)
		assert.True(t, outcome.Charged)
		assert.Equal(t, int64(5), outcome.Balance)
		assert.NoError(t, sqlMock.ExpectationsWereMet())
	})

	t.Run("item already settled", func(t *testing.T) {
		service, sqlMock := newTestPendingService(t)

		sqlMock.ExpectBegin()
		sqlMock.ExpectQuery("SELECT fee FROM pending_mail").
			WithArgs("bob@example.com", "A").
			WillReturnError(sql.ErrNoRows)
		sqlMock.ExpectCommit()

		outcome, err := service.Settle(ctx, item)
		require.NoError(t, err)
		assert.False(t, outcome.Settled)
		assert.NoError(t, sqlMock.ExpectationsWereMet())
	})

	t.Run("fee already charged only removes item", func(t *testing.T) {
		service, sqlMock := newTestPendingService(t)

		sqlMock.ExpectBegin()
		sqlMock.ExpectQuery("SELECT fee FROM pending_mail").
			WithArgs("bob@example.com", "A").
			WillReturnRows(sqlmock.NewRows([]string{"fee"}).AddRow(10))
		sqlMock.ExpectQuery(selectAccountSQL).WithArgs(sender).WillReturnRows(accountRow(sender, 5, 2))
		sqlMock.ExpectQuery(txnExistsSQL).WithArgs(sender, feeTxn).WillReturnRows(existsRow(true))
		sqlMock.ExpectExec("DELETE FROM pending_mail").
			WithArgs("bob@example.com", "A").
			WillReturnResult(sqlmock.NewResult(0, 1))
		sqlMock.ExpectCommit()

		outcome, err := service.Settle(ctx, item)
		require.NoError(t, err)
		assert.True(t, outcome.Settled)
		assert.False(t, outcome.Charged)
		assert.Equal(t, int64(5), outcome.Balance)
		assert.NoError(t, sqlMock.ExpectationsWereMet())
	})

	t.Run("balance no longer covers the fee", func(t *testing.T) {
		service, sqlMock := newTestPendingService(t)

		sqlMock.ExpectBegin()
		sqlMock.ExpectQuery("SELECT fee FROM pending_mail").
			WithArgs("bob@example.com", "A").
			WillReturnRows(sqlmock.NewRows([]string{"fee"}).AddRow(10))
		sqlMock.ExpectQuery(selectAccountSQL).WithArgs(sender).WillReturnRows(accountRow(sender, 4, 2))
		sqlMock.ExpectQuery(txnExistsSQL).WithArgs(sender, feeTxn).WillReturnRows(existsRow(false))
		sqlMock.ExpectRollback()

		_, err := service.Settle(ctx, item)
		assert.True(t, errors.Is(err, ErrInsufficientBalance))
		assert.NoError(t, sqlMock.ExpectationsWereMet())
	})
}
