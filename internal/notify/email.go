package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"sensoralert/internal/config"
	"sensoralert/internal/domain"

	"github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/router"
	"github.com/nicholas-fedor/shoutrrr/pkg/types"
)

// EmailSender delivers alert notifications over SMTP.
// Params: shoutrrr service URL with optional from/to overrides.
// Returns: email channel sender.
type EmailSender struct {
	sender  *router.ServiceRouter
	logger  *slog.Logger
	initErr error

	// devMode is set when no transport URL is configured; sends become
	// logged no-ops so local environments work without SMTP credentials.
	devMode bool
}

// NewEmailSender creates an SMTP sender from notifier config.
// Params: email notifier config and optional logger.
// Returns: initialized sender; transport errors surface on Send.
func NewEmailSender(cfg config.EmailNotifier, logger *slog.Logger) *EmailSender {
	out := &EmailSender{logger: logger}

	serviceURL := strings.TrimSpace(cfg.URL)
	if serviceURL == "" {
		out.devMode = true
		return out
	}

	serviceURL, err := appendEmailRouting(serviceURL, cfg.From, cfg.To)
	if err != nil {
		out.initErr = fmt.Errorf("build email service url: %w", err)
		return out
	}
	sender, err := shoutrrr.CreateSender(serviceURL)
	if err != nil {
		out.initErr = fmt.Errorf("init email sender: %w", err)
		return out
	}
	out.sender = sender
	return out
}

// Channel returns sender channel name.
// Params: none.
// Returns: static channel key.
func (s *EmailSender) Channel() string {
	return config.NotifyChannelEmail
}

// Send delivers one alert as an email message.
// Params: context and alert record.
// Returns: transport error; nil in dev mode.
func (s *EmailSender) Send(ctx context.Context, alert domain.NotificationAlert) error {
	if s.devMode {
		if s.logger != nil {
			s.logger.Debug("email transport not configured, skipping send",
				"alert_id", alert.ID,
				"device_id", alert.DeviceID)
		}
		return nil
	}
	if s.initErr != nil {
		return s.initErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	subject := fmt.Sprintf("[%s] sensor alert for %s", alert.Severity, alert.DeviceID)
	params := types.Params{"subject": subject}
	sendErrs := s.sender.Send(alert.Message, &params)

	var joined error
	for _, err := range sendErrs {
		if err != nil {
			joined = errors.Join(joined, err)
		}
	}
	if joined != nil {
		return fmt.Errorf("email send: %w", joined)
	}
	return nil
}

// appendEmailRouting injects from/to routing params into the service URL.
// Params: base shoutrrr URL and optional from address plus recipient list.
// Returns: URL with fromaddress/toaddresses query params merged.
func appendEmailRouting(serviceURL, from string, to []string) (string, error) {
	parsed, err := url.Parse(serviceURL)
	if err != nil {
		return "", err
	}
	query := parsed.Query()
	if trimmed := strings.TrimSpace(from); trimmed != "" {
		query.Set("fromaddress", trimmed)
	}
	if len(to) > 0 {
		recipients := make([]string, 0, len(to))
		for _, address := range to {
			if trimmed := strings.TrimSpace(address); trimmed != "" {
				recipients = append(recipients, trimmed)
			}
		}
		if len(recipients) > 0 {
			query.Set("toaddresses", strings.Join(recipients, ","))
		}
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
