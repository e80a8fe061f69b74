package notification

import (
	"context"
	"fmt"
	"html"

	ierr "github.com/flexprice/mealsub/internal/errors"
	"github.com/flexprice/mealsub/internal/logger"
	"github.com/mrz1836/postmark"
)

// EmailConfig holds the postmark sender configuration
type EmailConfig struct {
	Enabled      bool
	ServerToken  string
	AccountToken string
	FromAddress  string
}

// EmailNotifier sends notifications as transactional email through postmark
type EmailNotifier struct {
	client      *postmark.Client
	enabled     bool
	fromAddress string
	logger      *logger.Logger
}

// NewEmailNotifier creates a new email notifier. It is disabled when either
// token is missing.
func NewEmailNotifier(cfg EmailConfig, logger *logger.Logger) *EmailNotifier {
	if !cfg.Enabled || cfg.ServerToken == "" || cfg.AccountToken == "" {
		return &EmailNotifier{enabled: false, logger: logger}
	}

	return &EmailNotifier{
		client:      postmark.NewClient(cfg.ServerToken, cfg.AccountToken),
		enabled:     true,
		fromAddress: cfg.FromAddress,
		logger:      logger,
	}
}

// IsEnabled returns whether the email notifier is enabled
func (e *EmailNotifier) IsEnabled() bool {
	return e.enabled
}

func (e *EmailNotifier) Notify(ctx context.Context, n *Notification) error {
	if !e.enabled {
		return nil
	}
	if n.Email == "" {
		e.logger.Debugw("no email address, skipping email notification",
			"user_id", n.UserID,
			"kind", n.Kind,
		)
		return nil
	}

	resp, err := e.client.SendEmail(ctx, postmark.Email{
		From:       e.fromAddress,
		To:         n.Email,
		Subject:    n.Title,
		Tag:        string(n.Kind),
		TextBody:   n.Message,
		HTMLBody:   fmt.Sprintf("<p>%s</p>", html.EscapeString(n.Message)),
		TrackOpens: true,
	})
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to send email notification").
			Mark(ierr.ErrSystem)
	}
	if resp.ErrorCode > 0 {
		return ierr.NewErrorf("postmark error: %d - %s", resp.ErrorCode, resp.Message).
			WithHint("Failed to send email notification").
			Mark(ierr.ErrSystem)
	}

	e.logger.Debugw("email notification sent",
		"user_id", n.UserID,
		"kind", n.Kind,
		"message_id", resp.MessageID,
	)
	return nil
}
