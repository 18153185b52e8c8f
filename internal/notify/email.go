package notify

import (
	"fmt"

	"github.com/nadmax/vigil/internal/alerts"
	"github.com/nadmax/vigil/internal/logging"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// EmailConfig configures the out-of-band escalation channel.
type EmailConfig struct {
	APIKey      string
	FromName    string
	FromAddress string
	To          string
	// MinSeverity defaults to the top severity tier; lower notifications are
	// ignored by this sink.
	MinSeverity int
}

// EmailSink sends top-tier notifications by email through SendGrid. Ephemeral
// on-screen notifications can be missed; the most severe alerts also reach the
// operator's inbox.
type EmailSink struct {
	cfg EmailConfig
	log logging.Logger
}

func NewEmailSink(cfg EmailConfig, log logging.Logger) (*EmailSink, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("vigil: sendgrid API key is required")
	}
	if cfg.FromAddress == "" || cfg.To == "" {
		return nil, fmt.Errorf("vigil: email sink requires from and to addresses")
	}
	if cfg.MinSeverity <= 0 {
		cfg.MinSeverity = alerts.SeverityMax
	}
	if log == nil {
		log = logging.NewStdLogger()
	}
	return &EmailSink{cfg: cfg, log: log}, nil
}

func (s *EmailSink) Notify(n Notification) error {
	if n.Severity < s.cfg.MinSeverity {
		return nil
	}

	subject := fmt.Sprintf("[CRISIS severity %d] %s", n.Severity, n.Title)
	body := fmt.Sprintf("%s\n\nAlert id: %d\nCategory: %s", n.Message, n.AlertID, n.Icon)

	from := mail.NewEmail(s.cfg.FromName, s.cfg.FromAddress)
	to := mail.NewEmail("", s.cfg.To)
	email := mail.NewSingleEmail(from, subject, to, body, body)

	client := sendgrid.NewSendClient(s.cfg.APIKey)
	response, err := client.Send(email)
	if err != nil {
		return fmt.Errorf("failed to send escalation email: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid error: status %d", response.StatusCode)
	}

	s.log.Infof("notify: escalation email sent for alert %d (status %d)", n.AlertID, response.StatusCode)
	return nil
}
