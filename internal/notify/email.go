// Package notify tells customers about changes to their vendor authorizations.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/google/uuid"
	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"
)

// AuthorizationNotice is sent when a customer finishes approving a vendor.
type AuthorizationNotice struct {
	CustomerName  string
	CustomerEmail string
	VendorName    string
	DailyLimit    string
	AssetCode     string
	ExpiresAt     string
	GrantID       string
}

// Notifier delivers notices.
type Notifier interface {
	AuthorizationCompleted(ctx context.Context, notice AuthorizationNotice) error
}

// EmailSender is the subset of the resend emails service used here.
type EmailSender interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

var authorizationTemplate = template.Must(template.New("authorization").Parse(
	`<p>Hello {{.CustomerName}},</p>
<p>You authorized <strong>{{.VendorName}}</strong> to charge up to {{.DailyLimit}} {{.AssetCode}} per day until {{.ExpiresAt}}.</p>
<p>Reference: {{.GrantID}}</p>`))

// EmailNotifier sends notices through Resend.
type EmailNotifier struct {
	sender    EmailSender
	fromEmail string
	fromName  string
	logger    *zap.Logger
}

// NewEmailNotifier creates an EmailNotifier backed by a Resend client for apiKey.
func NewEmailNotifier(apiKey, fromEmail, fromName string, logger *zap.Logger) *EmailNotifier {
	client := resend.NewClient(apiKey)
	return NewEmailNotifierWithSender(client.Emails, fromEmail, fromName, logger)
}

func NewEmailNotifierWithSender(sender EmailSender, fromEmail, fromName string, logger *zap.Logger) *EmailNotifier {
	return &EmailNotifier{sender: sender, fromEmail: fromEmail, fromName: fromName, logger: logger}
}

func (n *EmailNotifier) AuthorizationCompleted(ctx context.Context, notice AuthorizationNotice) error {
	if notice.CustomerEmail == "" {
		return nil
	}

	var body bytes.Buffer
	if err := authorizationTemplate.Execute(&body, notice); err != nil {
		return fmt.Errorf("failed to render authorization email: %w", err)
	}

	sent, err := n.sender.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", n.fromName, n.fromEmail),
		To:      []string{notice.CustomerEmail},
		Subject: fmt.Sprintf("You authorized %s", notice.VendorName),
		Html:    body.String(),
		Headers: map[string]string{
			"X-Entity-Ref-ID": uuid.New().String(),
		},
		Tags: []resend.Tag{
			{Name: "category", Value: "authorization"},
		},
	})
	if err != nil {
		n.logger.Error("failed to send authorization email",
			zap.Error(err),
			zap.String("grant_id", notice.GrantID))
		return fmt.Errorf("failed to send email: %w", err)
	}

	n.logger.Info("authorization email sent",
		zap.String("email_id", sent.Id),
		zap.String("grant_id", notice.GrantID))
	return nil
}

// NoopNotifier discards notices.
type NoopNotifier struct{}

func (NoopNotifier) AuthorizationCompleted(context.Context, AuthorizationNotice) error { return nil }
