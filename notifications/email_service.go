package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"resty.dev/v3"
)

const DefaultBrevoURL = "https://api.brevo.com"

// Mailer sends transactional email through Brevo.
type Mailer struct {
	http        *resty.Client
	senderEmail string
	senderName  string
	logger      *zap.Logger
}

type brevoPayload struct {
	Sender      map[string]string   `json:"sender"`
	To          []map[string]string `json:"to"`
	Subject     string              `json:"subject"`
	HTMLContent string              `json:"htmlContent"`
}

// NewMailer returns nil when the API key or sender is missing; a nil Mailer
// silently drops mail.
func NewMailer(baseURL, apiKey, senderEmail, senderName string, timeout time.Duration, logger *zap.Logger) *Mailer {
	if apiKey == "" || senderEmail == "" {
		logger.Warn("email not configured, notifications will not be mailed")
		return nil
	}
	if baseURL == "" {
		baseURL = DefaultBrevoURL
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("api-key", apiKey).
		SetHeader("Accept", "application/json")

	return &Mailer{http: client, senderEmail: senderEmail, senderName: senderName, logger: logger}
}

func (m *Mailer) Close() error {
	if m == nil {
		return nil
	}
	return m.http.Close()
}

func (m *Mailer) Send(ctx context.Context, toName, toEmail, subject, htmlContent string) error {
	if m == nil {
		return nil
	}
	at := strings.Index(toEmail, "@")
	if at <= 0 {
		return fmt.Errorf("invalid recipient email: %q", toEmail)
	}
	if toName == "" {
		toName = toEmail[:at]
	}

	res, err := m.http.R().
		SetContext(ctx).
		SetBody(brevoPayload{
			Sender:      map[string]string{"name": m.senderName, "email": m.senderEmail},
			To:          []map[string]string{{"email": toEmail, "name": toName}},
			Subject:     subject,
			HTMLContent: htmlContent,
		}).
		Post("/v3/smtp/email")
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if res.StatusCode() != 201 {
		return errors.New("brevo rejected email: " + res.String())
	}

	m.logger.Debug("email sent", zap.String("to", toEmail), zap.String("subject", subject))
	return nil
}
