// Package notify sends administrative email alerts over SMTP.
package notify

import (
	"context"
	"fmt"
	"log"
	"net/smtp"
	"strings"
	"time"

	"github.com/scanin/scanin/internal/config"
)

// Mailer sends the daily absence alert to the configured admin address.
// Delivery failures are reported to the caller but must never fail the
// sweep that triggered them.
type Mailer struct {
	cfg    config.SMTPConfig
	logger *log.Logger
}

func NewMailer(cfg config.SMTPConfig, logger *log.Logger) *Mailer {
	return &Mailer{cfg: cfg, logger: logger}
}

// Configured reports whether enough SMTP settings are present to send mail.
func (m *Mailer) Configured() bool {
	return m.cfg.Host != "" && m.cfg.AdminEmail != ""
}

// NotifyAbsentees emails the list of trainees with no attendance for the day.
func (m *Mailer) NotifyAbsentees(ctx context.Context, day time.Time, names []string) error {
	if !m.Configured() {
		m.logger.Printf("absence alert skipped: SMTP not configured (%d absentees)", len(names))
		return nil
	}

	subject := fmt.Sprintf("Absence report for %s", day.Format("Monday, 2 January 2006"))
	body := buildAbsenceBody(day, names)

	msg := strings.Join([]string{
		"From: " + m.cfg.Username,
		"To: " + m.cfg.AdminEmail,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=\"UTF-8\"",
		"",
		body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	if err := smtp.SendMail(addr, auth, m.cfg.Username, []string{m.cfg.AdminEmail}, []byte(msg)); err != nil {
		return fmt.Errorf("sending absence alert: %w", err)
	}
	return nil
}

func buildAbsenceBody(day time.Time, names []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<p>The following trainees have not checked in on %s:</p>\n<ul>\n", day.Format("2006-01-02"))
	for _, name := range names {
		fmt.Fprintf(&b, "<li>%s</li>\n", name)
	}
	b.WriteString("</ul>\n")
	return b.String()
}
