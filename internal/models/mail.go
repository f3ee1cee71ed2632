package models

import "time"

// MailEvent is emitted by the ingestion server for every accepted message.
type MailEvent struct {
	Sender      string `json:"sender" validate:"required,email"`
	Recipient   string `json:"recipient" validate:"required,email"`
	MailID      string `json:"mailId" validate:"required,max=255"`
	SubjectMeta string `json:"subjectMeta" validate:"max=998"`
}

// PendingMailItem is a held message waiting for its fee. MailboxID is the
// normalized recipient address.
type PendingMailItem struct {
	MailboxID   string    `json:"mailbox_id" db:"mailbox_id"`
	MailID      string    `json:"mail_id" db:"mail_id"`
	Sender      string    `json:"sender" db:"sender"`
	Recipient   string    `json:"recipient" db:"recipient"`
	SubjectMeta string    `json:"subject_meta" db:"subject_meta"`
	Fee         int64     `json:"fee" db:"fee"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// FeeTxnID is the ledger key of the fee charged for one mail item, so a
// message is never charged twice.
func (p PendingMailItem) FeeTxnID() string {
	return FeeTxnID(p.MailboxID, p.MailID)
}

// FeeTxnID builds the ledger key for the fee of mailID in mailboxID.
func FeeTxnID(mailboxID, mailID string) string {
	return "fee:" + mailboxID + ":" + mailID
}

// MailState is the lifecycle position of a mail item.
type MailState string

const (
	MailDelivered MailState = "DELIVERED"
	MailPending   MailState = "PENDING"
)
