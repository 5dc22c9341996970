package mailer

import (
	"fmt"

	"github.com/evently/ticketing/config"

	gomail "gopkg.in/gomail.v2"
)

// Sender is the notification sink. Failures are the caller's to swallow:
// ticket issuance treats email as best-effort.
type Sender interface {
	Send(to, subject, htmlBody string) error
}

type smtpSender struct {
	cfg *config.EmailConfig
}

func NewSMTPSender(cfg *config.EmailConfig) Sender {
	return &smtpSender{cfg: cfg}
}

func (s *smtpSender) Send(to, subject, htmlBody string) error {
	if !s.cfg.Enabled {
		return fmt.Errorf("email sending is disabled")
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	d := gomail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	return nil
}

// TicketEmailBody renders the confirmation email for one attendee.
func TicketEmailBody(name, eventTitle, eventDate, venue, ticketType, qrCodeURL string) string {
	return fmt.Sprintf(`
		<h2>Your ticket for %s</h2>
		<p>Hi %s,</p>
		<p>Your <b>%s</b> ticket is confirmed.</p>
		<p>%s<br>%s</p>
		<p>Show this QR code at the entrance:</p>
		<img src=%q alt="ticket QR code" width="300" height="300">
	`, eventTitle, name, ticketType, eventDate, venue, qrCodeURL)
}
