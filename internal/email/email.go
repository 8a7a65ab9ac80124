// Package email provides contact-agent message formatting and SMTP
// sending for realtyads.
package email

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"
)

// SMTPConfig holds SMTP connection settings.
type SMTPConfig struct {
	Host string
	Port string
	User string
	Pass string
	From string
}

// IsConfigured returns true if SMTP settings are present.
func (c SMTPConfig) IsConfigured() bool {
	return c.Host != "" && c.From != ""
}

// ContactRequest is an enquiry from a prospective buyer or renter to a
// listing's agent.
type ContactRequest struct {
	AgentEmail string
	AgentName  string
	FromName   string
	FromEmail  string
	FromPhone  string
	Message    string
	AdTitle    string
	AdLink     string
}

// FormatContactRequest builds the plain-text enquiry email body.
func FormatContactRequest(req ContactRequest) string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Dear %s,\n\n", req.AgentName)
	fmt.Fprintf(&buf, "You have received a new contact request for your ad %q.\n\n", req.AdTitle)
	fmt.Fprintf(&buf, "Message: %s\n", req.Message)
	fmt.Fprintf(&buf, "From: %s (%s)\n", req.FromName, req.FromEmail)
	if req.FromPhone != "" {
		fmt.Fprintf(&buf, "Phone: %s\n", req.FromPhone)
	}
	fmt.Fprintf(&buf, "\nView the ad: %s\n", req.AdLink)
	fmt.Fprintf(&buf, "\nBest regards,\nThe realtyads team\n")

	return buf.String()
}

// Sender sends enquiry emails over SMTP.
type Sender struct {
	cfg SMTPConfig
}

// NewSender creates an SMTP sender.
func NewSender(cfg SMTPConfig) *Sender {
	return &Sender{cfg: cfg}
}

// SendContactRequest delivers the enquiry to the agent, with Reply-To
// set to the enquirer so the agent can answer directly.
func (s *Sender) SendContactRequest(req ContactRequest) error {
	subject := "Contact Request for " + req.AdTitle
	body := FormatContactRequest(req)
	return send(s.cfg, []string{req.AgentEmail}, req.FromEmail, subject, body)
}

// send sends an email via SMTP.
// Supports both port 465 (implicit TLS) and port 587 (STARTTLS).
func send(cfg SMTPConfig, to []string, replyTo, subject, body string) error {
	if !cfg.IsConfigured() {
		return fmt.Errorf("SMTP not configured")
	}

	headers := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n",
		cfg.From, strings.Join(to, ", "), subject)
	if replyTo != "" {
		headers += "Reply-To: " + replyTo + "\r\n"
	}
	msg := headers + "Content-Type: text/plain; charset=utf-8\r\n\r\n" + body

	addr := cfg.Host + ":" + cfg.Port

	if cfg.Port == "465" {
		return sendImplicitTLS(cfg, addr, to, msg)
	}
	return sendSTARTTLS(cfg, addr, to, msg)
}

// sendImplicitTLS connects over TLS directly (port 465/SMTPS).
func sendImplicitTLS(cfg SMTPConfig, addr string, to []string, msg string) (err error) {
	tlsCfg := &tls.Config{ServerName: cfg.Host}
	conn, err := tls.Dial("tcp", addr, tlsCfg)
	if err != nil {
		return fmt.Errorf("TLS dial: %w", err)
	}

	c, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer func() {
		if quitErr := c.Quit(); quitErr != nil && err == nil {
			err = fmt.Errorf("quit: %w", quitErr)
		}
	}()

	if cfg.User != "" {
		auth := smtp.PlainAuth("", cfg.User, cfg.Pass, cfg.Host)
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	if err := c.Mail(cfg.From); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt to %s: %w", rcpt, err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close data: %w", err)
	}

	return nil
}

// sendSTARTTLS connects plain then upgrades to TLS (port 587).
func sendSTARTTLS(cfg SMTPConfig, addr string, to []string, msg string) error {
	var auth smtp.Auth
	if cfg.User != "" {
		auth = smtp.PlainAuth("", cfg.User, cfg.Pass, cfg.Host)
	}

	if err := smtp.SendMail(addr, auth, cfg.From, to, []byte(msg)); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}

	return nil
}
