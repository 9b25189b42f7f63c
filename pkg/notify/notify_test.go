package notify

import (
	"bytes"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/mallocator/domain-mon/pkg/config"
	"github.com/mallocator/domain-mon/pkg/logger"
)

type sentMail struct {
	addr string
	auth smtp.Auth
	from string
	to   []string
	msg  string
}

func newTestNotifier(t *testing.T, configure func(c *config.Config)) (*Notifier, *[]sentMail) {
	t.Helper()
	log := logger.NewWithWriter(&bytes.Buffer{})
	cfg := config.New(log)
	configure(cfg)

	notifier := New(cfg, log)
	var sent []sentMail
	notifier.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		sent = append(sent, sentMail{addr: addr, auth: a, from: from, to: to, msg: string(msg)})
		return nil
	}
	return notifier, &sent
}

func TestNew(t *testing.T) {
	log := logger.NewWithWriter(&bytes.Buffer{})
	cfg := config.New(log)

	notifier := New(cfg, log)

	if notifier == nil {
		t.Fatalf("Expected notifier to be created, got nil")
	}
	if notifier.cfg != cfg {
		t.Errorf("Expected notifier.cfg to be %v, got %v", cfg, notifier.cfg)
	}
	if notifier.log != log {
		t.Errorf("Expected notifier.log to be %v, got %v", log, notifier.log)
	}
}

func TestSend_NoSMTPConfig(t *testing.T) {
	notifier, sent := newTestNotifier(t, func(c *config.Config) {
		c.FromAddress = "monitor@example.com"
		c.ToAddress = "ops@example.com"
	})

	if err := notifier.Send("Report", "<html></html>"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if len(*sent) != 0 {
		t.Errorf("mail sent without SMTP host")
	}
}

func TestSend_WithSMTPConfig(t *testing.T) {
	notifier, sent := newTestNotifier(t, func(c *config.Config) {
		c.SMTPHost = "smtp.example.com"
		c.SMTPPort = 587
		c.SMTPUser = "user"
		c.SMTPPass = "pass"
		c.CustomName = "Acme Monitor"
		c.FromAddress = "monitor@example.com"
		c.ToAddress = "ops@example.com"
	})

	if err := notifier.Send("Acme Monitor Report", "<html>\n<p>Hi,</p>\n</html>"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if len(*sent) != 1 {
		t.Fatalf("sent %d mails, want 1", len(*sent))
	}

	m := (*sent)[0]
	if m.addr != "smtp.example.com:587" || m.from != "monitor@example.com" || len(m.to) != 1 || m.to[0] != "ops@example.com" {
		t.Errorf("unexpected envelope %+v", m)
	}
	if m.auth == nil {
		t.Errorf("expected PLAIN auth with credentials")
	}
	for _, want := range []string{
		"From: Acme Monitor <monitor@example.com>\r\n",
		"To: ops@example.com\r\n",
		"Subject: Acme Monitor Report\r\n",
		"Content-Type: text/html; charset=UTF-8\r\n",
		"\r\n\r\n<html>\r\n<p>Hi,</p>\r\n</html>\r\n",
	} {
		if !strings.Contains(m.msg, want) {
			t.Errorf("message missing %q:\n%s", want, m.msg)
		}
	}
}

func TestSend_Failure(t *testing.T) {
	notifier, _ := newTestNotifier(t, func(c *config.Config) {
		c.SMTPHost = "smtp.example.com"
		c.FromAddress = "monitor@example.com"
		c.ToAddress = "ops@example.com"
	})
	boom := errors.New("connection refused")
	notifier.sendMail = func(string, smtp.Auth, string, []string, []byte) error { return boom }

	if err := notifier.Send("Report", "body"); !errors.Is(err, boom) {
		t.Errorf("Send error = %v, want wrapped %v", err, boom)
	}
}
