package services

import (
	"fmt"
	"log"
	"net/smtp"
	"strings"
)

// Mailer delivers composed messages. Implementations may be swapped in
// tests; production uses SMTPMailer.
type Mailer interface {
	Send(to []string, subject, htmlBody string, headers []string) error
}

// SMTPConfig holds mail transport settings.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// SMTPMailer sends mail over plain SMTP with optional auth.
type SMTPMailer struct {
	cfg SMTPConfig
}

// NewSMTPMailer creates a mailer from SMTP settings.
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

func (m *SMTPMailer) Send(to []string, subject, htmlBody string, headers []string) error {
	if m.cfg.Host == "" {
		log.Println("[Mailer] SMTP host not configured, dropping message")
		return fmt.Errorf("smtp not configured")
	}
	if len(to) == 0 {
		return fmt.Errorf("no recipients")
	}

	from := m.cfg.From
	if from == "" {
		from = "no-reply@" + m.cfg.Host
	}

	recipients := append([]string{}, to...)

	var msg strings.Builder
	msg.WriteString("From: " + from + "\r\n")
	msg.WriteString("To: " + strings.Join(to, ", ") + "\r\n")
	msg.WriteString("Subject: " + subject + "\r\n")
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	for _, h := range headers {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		key, value, ok := strings.Cut(h, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch strings.ToLower(key) {
		case "cc", "bcc":
			for _, addr := range strings.Split(value, ",") {
				addr = strings.TrimSpace(addr)
				if addr != "" {
					recipients = append(recipients, addr)
				}
			}
			if strings.EqualFold(key, "bcc") {
				continue
			}
		case "from", "to", "subject", "content-type", "mime-version":
			continue
		}
		msg.WriteString(key + ": " + value + "\r\n")
	}
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)

	addr := m.cfg.Host + ":" + m.cfg.Port

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	if err := smtp.SendMail(addr, auth, from, recipients, []byte(msg.String())); err != nil {
		log.Printf("[Mailer] Send failed: %v", err)
		return err
	}
	return nil
}
