package services

import (
	"context"
	"fmt"
	"io"

	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"
	"github.com/pay2mail/backend/internal/models"
	"go.uber.org/zap"
)

// MailOutcome tells the ingestion server what happens to a message.
type MailOutcome struct {
	State     models.MailState `json:"state"`
	MailboxID string           `json:"mailboxId"`
	MailID    string           `json:"mailId"`
	Fee       int64            `json:"fee"`
	Balance   int64            `json:"balance"`
}

// FeeDeducter charges a fee when the balance allows it.
type FeeDeducter interface {
	TryDeduct(ctx context.Context, sender string, fee int64, mailboxID, mailID string) (DeductResult, error)
}

// PendingMailCreator holds mail until it is paid for.
type PendingMailCreator interface {
	Create(ctx context.Context, item *models.PendingMailItem) (bool, error)
}

type MailService struct {
	deducter   FeeDeducter
	pending    PendingMailCreator
	reconciler MailSettler
	validator  *ValidationHelper
	fee        int64
	logger     *zap.Logger
}

func NewMailService(deducter FeeDeducter, pending PendingMailCreator, reconciler MailSettler, fee int64, logger *zap.Logger) *MailService {
	return &MailService{
		deducter:   deducter,
		pending:    pending,
		reconciler: reconciler,
		validator:  NewValidationHelper(),
		fee:        fee,
		logger:     logger,
	}
}

// OnMailArrived decides whether a new message is delivered now or held.
// The sender pays the fee from their balance when it suffices; otherwise the
// message is held as pending mail keyed by recipient mailbox and mail id.
func (s *MailService) OnMailArrived(ctx context.Context, event models.MailEvent) (MailOutcome, error) {
	event.Sender = NormalizeAddress(event.Sender)
	event.Recipient = NormalizeAddress(event.Recipient)
	if err := s.validator.ValidateStruct(&event); err != nil {
		return MailOutcome{}, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}

	mailboxID := event.Recipient
	outcome := MailOutcome{MailboxID: mailboxID, MailID: event.MailID, Fee: s.fee}

	deducted, err := s.deducter.TryDeduct(ctx, event.Sender, s.fee, mailboxID, event.MailID)
	if err != nil {
		return MailOutcome{}, err
	}
	outcome.Balance = deducted.Balance

	if deducted.Paid {
		outcome.State = models.MailDelivered
		s.logger.Info("Mail paid from balance",
			zap.String("sender", event.Sender),
			zap.String("mailbox", mailboxID),
			zap.String("mail", event.MailID),
			zap.Int64("balance", deducted.Balance))
		return outcome, nil
	}

	item := &models.PendingMailItem{
		MailboxID:   mailboxID,
		MailID:      event.MailID,
		Sender:      event.Sender,
		Recipient:   event.Recipient,
		SubjectMeta: event.SubjectMeta,
		Fee:         s.fee,
	}
	created, err := s.pending.Create(ctx, item)
	if err != nil {
		return MailOutcome{}, err
	}
	outcome.State = models.MailPending

	if created {
		s.logger.Info("Mail held for payment",
			zap.String("sender", event.Sender),
			zap.String("mailbox", mailboxID),
			zap.String("mail", event.MailID),
			zap.Int64("fee", s.fee))
	}

	// A positive balance may already cover older pending mail, for instance
	// when a previous pass was interrupted. Settle releases at balance >= fee,
	// so a balance exactly equal to the fee still delivers this mail here even
	// though TryDeduct alone would not pay it.
	if deducted.Balance > 0 {
		settled, err := s.reconciler.Settle(ctx, event.Sender)
		if err != nil {
			s.logger.Error("Reconciliation failed", zap.String("sender", event.Sender), zap.Error(err))
			return outcome, nil
		}
		outcome.Balance = settled.Balance
		for _, released := range settled.Released {
			if released.MailboxID == mailboxID && released.MailID == event.MailID {
				outcome.State = models.MailDelivered
				break
			}
		}
	}

	return outcome, nil
}

// MailEventFromRaw builds a MailEvent from an RFC 5322 message. Envelope
// sender and recipient win over the headers; the mail id falls back to the
// Message-Id header and then to a fresh UUID.
func MailEventFromRaw(r io.Reader, sender, recipient, mailID string) (models.MailEvent, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return models.MailEvent{}, fmt.Errorf("%w: parse message: %w", ErrInvalidEvent, err)
	}
	defer mr.Close()

	header := mr.Header
	subject, err := header.Subject()
	if err != nil {
		return models.MailEvent{}, fmt.Errorf("%w: decode subject: %w", ErrInvalidEvent, err)
	}

	if sender == "" {
		if from, err := header.AddressList("From"); err == nil && len(from) > 0 {
			sender = from[0].Address
		}
	}
	if recipient == "" {
		if to, err := header.AddressList("To"); err == nil && len(to) > 0 {
			recipient = to[0].Address
		}
	}
	if mailID == "" {
		if messageID, err := header.MessageID(); err == nil && messageID != "" {
			mailID = messageID
		} else {
			mailID = uuid.NewString()
		}
	}

	return models.MailEvent{
		Sender:      sender,
		Recipient:   recipient,
		MailID:      mailID,
		SubjectMeta: subject,
	}, nil
}
