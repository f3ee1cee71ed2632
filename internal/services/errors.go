package services

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrConflict marks a lost optimistic-lock race; the atomic unit is retried.
	ErrConflict = errors.New("write conflict")
	// ErrInsufficientBalance is returned when a debit would take a balance below zero.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrInvalidEvent wraps validation failures of incoming payment and mail events.
	ErrInvalidEvent = errors.New("invalid event")
	// ErrNotFound is returned for unknown pending mail items.
	ErrNotFound = errors.New("not found")
	// ErrDeliveryRejected is returned when the mail server does not ack a release.
	ErrDeliveryRejected = errors.New("delivery notification rejected")
)

// PostgreSQL error codes that mean "another transaction won, try again".
const (
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
	pqUniqueViolation      = "23505"
)

// IsConflict reports whether err is a write conflict worth retrying.
func IsConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConflict) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqSerializationFailure, pqDeadlockDetected, pqUniqueViolation:
			return true
		}
	}
	return false
}
