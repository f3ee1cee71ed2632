package services

// Auditor receives one event per money movement. *audit.AuditLogger
// implements it.
type Auditor interface {
	LogCredit(transactionID, accountID string, amount, balance int64)
	LogDeduction(transactionID, accountID string, fee, balance int64)
	LogRelease(mailboxID, mailID, sender string, fee int64)
	LogDuplicate(transactionID, accountID string)
	LogError(transactionID, accountID string, err error)
}
