// Package notify delivers rendered reports by email
package notify

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/mallocator/domain-mon/pkg/config"
	"github.com/mallocator/domain-mon/pkg/logger"
)

// SendMailFunc matches smtp.SendMail and can be replaced in tests
type SendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Notifier handles notification operations
type Notifier struct {
	cfg      *config.Config
	log      *logger.Logger
	sendMail SendMailFunc
}

// New creates a new notifier
func New(cfg *config.Config, log *logger.Logger) *Notifier {
	return &Notifier{
		cfg:      cfg,
		log:      log,
		sendMail: smtp.SendMail,
	}
}

// SetSendMail replaces the function used to hand messages to the SMTP server
func (n *Notifier) SetSendMail(fn SendMailFunc) *Notifier {
	n.sendMail = fn
	return n
}

// Configured reports whether SMTP delivery is possible
func (n *Notifier) Configured() bool {
	return n.cfg.SMTPHost != "" && n.cfg.HeadersConfigured()
}

// Send emails an HTML report body. It only logs when SMTP is not configured.
func (n *Notifier) Send(subject, body string) error {
	if !n.Configured() {
		n.log.Infof("SMTP not configured, skipping email send")
		return nil
	}

	var auth smtp.Auth
	if n.cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", n.cfg.SMTPUser, n.cfg.SMTPPass, n.cfg.SMTPHost)
	}

	msg := []byte(fmt.Sprintf(
		"From: %s <%s>\r\n"+
			"To: %s\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/html; charset=UTF-8\r\n"+
			"Content-Disposition: inline\r\n"+
			"\r\n"+
			"%s\r\n",
		n.cfg.CustomName,
		n.cfg.FromAddress,
		n.cfg.ToAddress,
		subject,
		strings.ReplaceAll(body, "\n", "\r\n"),
	))

	addr := fmt.Sprintf("%s:%d", n.cfg.SMTPHost, n.cfg.SMTPPort)
	if err := n.sendMail(addr, auth, n.cfg.FromAddress, []string{n.cfg.ToAddress}, msg); err != nil {
		return fmt.Errorf("sending report to %s: %w", n.cfg.ToAddress, err)
	}
	n.log.Infof("Report emailed to %s", n.cfg.ToAddress)
	return nil
}
