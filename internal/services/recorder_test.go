package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/pay2mail/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRecorder(t *testing.T) (*TransactionRecorder, sqlmock.Sqlmock, *MockAuditLogger, *MockPublisher) {
	t.Helper()
	db, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	audit := &MockAuditLogger{}
	publisher := &MockPublisher{}
	runner := NewTxRunner(db, 3, time.Millisecond, zap.NewNop())
	recorder := NewTransactionRecorder(runner, NewLedgerService(db), audit, publisher, zap.NewNop())
	return recorder, sqlMock, audit, publisher
}

func TestTransactionRecorder_Record(t *testing.T) {
	ctx := context.Background()
	user := "alice@example.com"

	t.Run("new transaction credits balance", func(t *testing.T) {
		recorder, sqlMock, audit, publisher := newTestRecorder(t)

		sqlMock.ExpectBegin()
		sqlMock.ExpectQuery(txnExistsSQL).WithArgs(user, "evt_1").WillReturnRows(existsRow(false))
		sqlMock.ExpectQuery(selectAccountSQL).WithArgs(user).WillReturnRows(accountRow(user, 5, 2))
		sqlMock.ExpectExec(insertEntrySQL).
			WithArgs(user, "evt_1", 15, "external-provider", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		sqlMock.ExpectExec(updateBalanceSQL).
			WithArgs(20, sqlmock.AnyArg(), user, 2).
			WillReturnResult(sqlmock.NewResult(0, 1))
		sqlMock.ExpectCommit()

		audit.On("LogCredit", "evt_1", user, int64(15), int64(20)).Return()
		publisher.On("PublishBalance", user, int64(20)).Return()

		result, err := recorder.Record(ctx, user, "evt_1", 15, models.SourceExternalProvider)
		require.NoError(t, err)
		assert.True(t, result.Applied)
		assert.Equal(t, int64(20), result.Balance)

		assert.NoError(t, sqlMock.ExpectationsWereMet())
		audit.AssertExpectations(t)
		publisher.AssertExpectations(t)
	})

	t.Run("duplicate transaction changes nothing", func(t *testing.T) {
		recorder, sqlMock, audit, publisher := newTestRecorder(t)

		sqlMock.ExpectBegin()
		sqlMock.ExpectQuery(txnExistsSQL).WithArgs(user, "evt_1").WillReturnRows(existsRow(true))
		sqlMock.ExpectQuery(selectAccountSQL).WithArgs(user).WillReturnRows(accountRow(user, 20, 3))
		sqlMock.ExpectCommit()

		audit.On("LogDuplicate", "evt_1", user).Return()

		result, err := recorder.Record(ctx, user, "evt_1", 15, models.SourceExternalProvider)
		require.NoError(t, err)
		assert.False(t, result.Applied)
		assert.Equal(t, int64(20), result.Balance)

		assert.NoError(t, sqlMock.ExpectationsWereMet())
		audit.AssertExpectations(t)
		publisher.AssertNotCalled(t, "PublishBalance", mock.Anything, mock.Anything)
	})

	t.Run("losing the primary key race resolves to a duplicate", func(t *testing.T) {
		recorder, sqlMock, audit, _ := newTestRecorder(t)

		sqlMock.ExpectBegin()
		sqlMock.ExpectQuery(txnExistsSQL).WithArgs(user, "evt_1").WillReturnRows(existsRow(false))
		sqlMock.ExpectQuery(selectAccountSQL).WithArgs(user).WillReturnRows(accountRow(user, 5, 2))
		sqlMock.ExpectExec(insertEntrySQL).
			WithArgs(user, "evt_1", 15, "external-provider", sqlmock.AnyArg()).
			WillReturnError(&pq.Error{Code: "23505"})
		sqlMock.ExpectRollback()

		sqlMock.ExpectBegin()
		sqlMock.ExpectQuery(txnExistsSQL).WithArgs(user, "evt_1").WillReturnRows(existsRow(true))
		sqlMock.ExpectQuery(selectAccountSQL).WithArgs(user).WillReturnRows(accountRow(user, 20, 3))
		sqlMock.ExpectCommit()

		audit.On("LogDuplicate", "evt_1", user).Return()

		result, err := recorder.Record(ctx, user, "evt_1", 15, models.SourceExternalProvider)
		require.NoError(t, err)
		assert.False(t, result.Applied)
		assert.Equal(t, int64(20), result.Balance)
		assert.NoError(t, sqlMock.ExpectationsWereMet())
	})

	t.Run("negative adjustment beyond balance fails", func(t *testing.T) {
		recorder, sqlMock, audit, _ := newTestRecorder(t)

		sqlMock.ExpectBegin()
		sqlMock.ExpectQuery(txnExistsSQL).WithArgs(user, "adj_1").WillReturnRows(existsRow(false))
		sqlMock.ExpectQuery(selectAccountSQL).WithArgs(user).WillReturnRows(accountRow(user, 5, 2))
		sqlMock.ExpectRollback()

		audit.On("LogError", "adj_1", user, mock.Anything).Return()

		_, err := recorder.Record(ctx, user, "adj_1", -10, models.SourceInternalAdjustment)
		assert.True(t, errors.Is(err, ErrInsufficientBalance))
		assert.NoError(t, sqlMock.ExpectationsWereMet())
		audit.AssertExpectations(t)
	})
}
