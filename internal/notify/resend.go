package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// ResendMailer sends both purchase emails through the Resend HTTP API.
type ResendMailer struct {
	client   *resty.Client
	from     string
	operator string // also the support address shown to buyers
	nowFunc  func() time.Time
}

type ResendConfig struct {
	APIKey        string
	BaseURL       string
	From          string
	OperatorEmail string
}

func NewResendMailer(cfg ResendConfig) *ResendMailer {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(1).
		SetRetryWaitTime(200 * time.Millisecond)
	return &ResendMailer{
		client:   client,
		from:     cfg.From,
		operator: cfg.OperatorEmail,
		nowFunc:  time.Now,
	}
}

type resendEmail struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text"`
}

type resendError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// Notify sends the buyer confirmation and, if configured, the operator
// notification. Both are attempted; errors are joined.
func (m *ResendMailer) Notify(ctx context.Context, p Purchase) error {
	now := m.nowFunc()
	var errs []error

	buyer, err := RenderPurchaseConfirmation(p, m.operator, now)
	if err != nil {
		errs = append(errs, err)
	} else if err := m.send(ctx, buyer, "purchase-confirmation/"+p.OrderID); err != nil {
		errs = append(errs, fmt.Errorf("purchase confirmation: %w", err))
	}

	if m.operator != "" {
		sale, err := RenderSaleNotification(p, m.operator, now)
		if err != nil {
			errs = append(errs, err)
		} else if err := m.send(ctx, sale, "sale-notification/"+p.OrderID); err != nil {
			errs = append(errs, fmt.Errorf("sale notification: %w", err))
		}
	}
	return errors.Join(errs...)
}

// send posts one email. Resend drops repeats of idemKey, so redelivered
// queue messages do not mail the buyer twice.
func (m *ResendMailer) send(ctx context.Context, e Email, idemKey string) error {
	var apiErr resendError
	resp, err := m.client.R().
		SetContext(ctx).
		SetHeader("Idempotency-Key", idemKey).
		SetBody(resendEmail{
			From:    m.from,
			To:      []string{e.To},
			Subject: e.Subject,
			HTML:    e.HTML,
			Text:    e.Text,
		}).
		SetError(&apiErr).
		Post("/emails")
	if err != nil {
		return fmt.Errorf("resend request: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("resend status %d: %s", resp.StatusCode(), apiErr.Message)
	}
	return nil
}
