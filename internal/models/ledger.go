package models

import (
	"time"
)

// TransactionSource identifies who produced a ledger entry.
type TransactionSource string

const (
	SourceExternalProvider   TransactionSource = "external-provider"
	SourceInternalAdjustment TransactionSource = "internal-adjustment"
)

// Account holds the prepaid balance of one sender, keyed by email.
type Account struct {
	ID        string    `json:"id" db:"id"`
	Balance   int64     `json:"balance" db:"balance"` // in minor units
	Version   int       `json:"version" db:"version"` // for optimistic locking
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Transaction is an immutable ledger entry. TxnID is the payment provider
// event id for external payments and a derived key for fees.
type Transaction struct {
	AccountID string            `json:"account_id" db:"account_id"`
	TxnID     string            `json:"txn_id" db:"txn_id"`
	Amount    int64             `json:"amount" db:"amount"`
	Source    TransactionSource `json:"source" db:"source"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
}
