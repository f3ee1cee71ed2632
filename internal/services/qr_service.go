package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image/png"
	"net/url"

	"github.com/pay2mail/backend/internal/models"
	"github.com/skip2/go-qrcode"
)

// PaymentLink points a sender at the page that pays for one held message.
type PaymentLink struct {
	MailboxID string `json:"mailboxId"`
	MailID    string `json:"mailId"`
	Fee       int64  `json:"fee"`
	URL       string `json:"url"`
	// QRCode is a base64 PNG of URL.
	QRCode string `json:"qrCode"`
}

// PendingMailReader looks up a single held message.
type PendingMailReader interface {
	Get(ctx context.Context, mailboxID, mailID string) (*models.PendingMailItem, error)
}

type QRService struct {
	pending PendingMailReader
	domain  string
}

func NewQRService(pending PendingMailReader, domain string) *QRService {
	return &QRService{
		pending: pending,
		domain:  domain,
	}
}

// PaymentLinkURL is https://{domain}/pay/{mailbox user}/{mail id}.
func (s *QRService) PaymentLinkURL(mailboxID, mailID string) string {
	return fmt.Sprintf("https://%s/pay/%s/%s", s.domain, url.PathEscape(MailboxUser(mailboxID)), url.PathEscape(mailID))
}

// GeneratePaymentLink returns the link and QR code for a pending item. Only
// the sender of the item may request it.
func (s *QRService) GeneratePaymentLink(ctx context.Context, userID, mailboxID, mailID string) (*PaymentLink, error) {
	item, err := s.pending.Get(ctx, mailboxID, mailID)
	if err != nil {
		return nil, err
	}
	if item.Sender != userID {
		return nil, ErrNotFound
	}

	link := s.PaymentLinkURL(item.MailboxID, item.MailID)

	qr, err := qrcode.New(link, qrcode.Medium)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return nil, err
	}

	return &PaymentLink{
		MailboxID: item.MailboxID,
		MailID:    item.MailID,
		Fee:       item.Fee,
		URL:       link,
		QRCode:    base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}
