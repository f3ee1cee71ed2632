package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DeliveryNotifier tells the mail server that a held message is paid for.
type DeliveryNotifier interface {
	NotifyPaid(ctx context.Context, mailboxID, mailID, recipient string) error
}

// DeliveryClient calls the mail server's release endpoint over HTTP.
type DeliveryClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

func NewDeliveryClient(baseURL string, timeout time.Duration, logger *zap.Logger) *DeliveryClient {
	return &DeliveryClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// NotifyPaid posts to {base}/mailboxes/{mailbox}/mail/{mail}/paid. Any 2xx
// response is an acknowledgement.
func (c *DeliveryClient) NotifyPaid(ctx context.Context, mailboxID, mailID, recipient string) error {
	endpoint := fmt.Sprintf("%s/mailboxes/%s/mail/%s/paid", c.baseURL, url.PathEscape(mailboxID), url.PathEscape(mailID))

	body, err := json.Marshal(map[string]string{
		"mailboxId": mailboxID,
		"mailId":    mailID,
		"recipient": recipient,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build delivery request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("delivery request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: mail server returned status %d", ErrDeliveryRejected, resp.StatusCode)
	}

	c.logger.Debug("Mail server acknowledged release",
		zap.String("mailbox", mailboxID),
		zap.String("mail", mailID))
	return nil
}
