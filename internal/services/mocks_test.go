package services

import (
	"context"
	"sync"

	"github.com/pay2mail/backend/internal/models"
	"github.com/stretchr/testify/mock"
)

type MockAuditLogger struct {
	mock.Mock
}

func (m *MockAuditLogger) LogCredit(txID, accountID string, amount, balance int64) {
	m.Called(txID, accountID, amount, balance)
}

func (m *MockAuditLogger) LogDeduction(txID, accountID string, fee, balance int64) {
	m.Called(txID, accountID, fee, balance)
}

func (m *MockAuditLogger) LogRelease(mailboxID, mailID, sender string, fee int64) {
	m.Called(mailboxID, mailID, sender, fee)
}

func (m *MockAuditLogger) LogDuplicate(txID, accountID string) {
	m.Called(txID, accountID)
}

func (m *MockAuditLogger) LogError(txID, accountID string, err error) {
	m.Called(txID, accountID, err)
}

// nopAuditor is used where audit calls are not under test.
type nopAuditor struct{}

func (nopAuditor) LogCredit(string, string, int64, int64)    {}
func (nopAuditor) LogDeduction(string, string, int64, int64) {}
func (nopAuditor) LogRelease(string, string, string, int64)  {}
func (nopAuditor) LogDuplicate(string, string)               {}
func (nopAuditor) LogError(string, string, error)            {}

type nopPublisher struct{}

func (nopPublisher) PublishBalance(context.Context, string, int64) {}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishBalance(ctx context.Context, userID string, balance int64) {
	m.Called(userID, balance)
}

type MockDelivery struct {
	mock.Mock
}

func (m *MockDelivery) NotifyPaid(ctx context.Context, mailboxID, mailID, recipient string) error {
	args := m.Called(mailboxID, mailID, recipient)
	return args.Error(0)
}

type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) Record(ctx context.Context, userID, txnID string, amount int64, source models.TransactionSource) (RecordResult, error) {
	args := m.Called(userID, txnID, amount, source)
	return args.Get(0).(RecordResult), args.Error(1)
}

type MockSettler struct {
	mock.Mock
}

func (m *MockSettler) Settle(ctx context.Context, userID string) (SettleResult, error) {
	args := m.Called(userID)
	return args.Get(0).(SettleResult), args.Error(1)
}

type MockDeducter struct {
	mock.Mock
}

func (m *MockDeducter) TryDeduct(ctx context.Context, sender string, fee int64, mailboxID, mailID string) (DeductResult, error) {
	args := m.Called(sender, fee, mailboxID, mailID)
	return args.Get(0).(DeductResult), args.Error(1)
}

type MockPendingCreator struct {
	mock.Mock
}

func (m *MockPendingCreator) Create(ctx context.Context, item *models.PendingMailItem) (bool, error) {
	args := m.Called(item)
	return args.Bool(0), args.Error(1)
}

// memoryLedger is an in-memory stand-in for the PostgreSQL ledger and
// pending mail tables. It implements BalanceReader, PendingMailStore,
// TransactionWriter, FeeDeducter and PendingMailCreator with the same
// semantics as the SQL-backed services, so scenario tests can run the real
// Reconciler, PaymentService and MailService on top of it.
type memoryLedger struct {
	mu       sync.Mutex
	balances map[string]int64
	ledger   map[string]map[string]int64
	pending  []models.PendingMailItem
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{
		balances: map[string]int64{},
		ledger:   map[string]map[string]int64{},
	}
}

func (l *memoryLedger) apply(userID, txnID string, amount int64) (bool, int64, error) {
	if _, ok := l.ledger[userID][txnID]; ok {
		return false, l.balances[userID], nil
	}
	if l.balances[userID]+amount < 0 {
		return false, l.balances[userID], ErrInsufficientBalance
	}
	if l.ledger[userID] == nil {
		l.ledger[userID] = map[string]int64{}
	}
	l.ledger[userID][txnID] = amount
	l.balances[userID] += amount
	return true, l.balances[userID], nil
}

func (l *memoryLedger) ledgerSum(userID string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	var sum int64
	for _, amount := range l.ledger[userID] {
		sum += amount
	}
	return sum
}

func (l *memoryLedger) GetBalance(ctx context.Context, userID string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[userID], nil
}

func (l *memoryLedger) Record(ctx context.Context, userID, txnID string, amount int64, source models.TransactionSource) (RecordResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	applied, balance, err := l.apply(userID, txnID, amount)
	if err != nil {
		return RecordResult{}, err
	}
	return RecordResult{Applied: applied, Balance: balance}, nil
}

func (l *memoryLedger) TryDeduct(ctx context.Context, sender string, fee int64, mailboxID, mailID string) (DeductResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range l.pending {
		if p.MailboxID == mailboxID && p.MailID == mailID {
			return DeductResult{Balance: l.balances[sender]}, nil
		}
	}
	txnID := models.FeeTxnID(mailboxID, mailID)
	if _, ok := l.ledger[sender][txnID]; ok {
		return DeductResult{Paid: true, Balance: l.balances[sender]}, nil
	}
	if l.balances[sender] <= fee {
		return DeductResult{Balance: l.balances[sender]}, nil
	}
	_, balance, err := l.apply(sender, txnID, -fee)
	return DeductResult{Paid: err == nil, Balance: balance}, err
}

func (l *memoryLedger) Create(ctx context.Context, item *models.PendingMailItem) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range l.pending {
		if p.MailboxID == item.MailboxID && p.MailID == item.MailID {
			return false, nil
		}
	}
	l.pending = append(l.pending, *item)
	return true, nil
}

func (l *memoryLedger) ListBySender(ctx context.Context, sender string) ([]models.PendingMailItem, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	items := []models.PendingMailItem{}
	for _, p := range l.pending {
		if p.Sender == sender {
			items = append(items, p)
		}
	}
	return items, nil
}

func (l *memoryLedger) Settle(ctx context.Context, item models.PendingMailItem) (SettleOutcome, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx := -1
	for i, p := range l.pending {
		if p.MailboxID == item.MailboxID && p.MailID == item.MailID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return SettleOutcome{Balance: l.balances[item.Sender]}, nil
	}
	charged, balance, err := l.apply(item.Sender, item.FeeTxnID(), -item.Fee)
	if err != nil {
		return SettleOutcome{}, err
	}
	l.pending = append(l.pending[:idx], l.pending[idx+1:]...)
	return SettleOutcome{Settled: true, Charged: charged, Balance: balance}, nil
}

func (l *memoryLedger) pendingCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}
