// Package whois queries WHOIS servers for domain registration records and
// extracts expiry dates from their replies.
package whois

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/likexian/whois"
	"golang.org/x/net/proxy"

	"github.com/mallocator/domain-mon/pkg/config"
	"github.com/mallocator/domain-mon/pkg/logger"
	"github.com/mallocator/domain-mon/pkg/state"
)

const (
	// gov.uk names are served by the JANET registry
	overrideSuffix = ".gov.uk"
	overrideServer = "whois.ja.net"

	// serverSuffix is appended to the top-level label to find its WHOIS server
	serverSuffix = ".whois-servers.net"

	// connectWindow bounds how long a server may take to accept the connection
	connectWindow = 5 * time.Second

	maxResponseSize = 65535
)

var errEmptyReply = errors.New("empty reply")

// Checker handles WHOIS operations
type Checker struct {
	cfg       *config.Config
	log       *logger.Logger
	transport *whois.Client
	dialer    proxy.Dialer
	sleep     func(ctx context.Context, d time.Duration) error
}

// New creates a new WHOIS checker
func New(cfg *config.Config, log *logger.Logger) *Checker {
	// The client timeout only bounds connect plus write, reads are bounded
	// by the reply dialer's idle timeout.
	transport := whois.NewClient().
		SetTimeout(connectWindow + cfg.WhoisTimeout).
		SetDisableReferral(true).
		SetDisableStats(true)

	c := &Checker{
		cfg:       cfg,
		log:       log,
		transport: transport,
		sleep:     sleepContext,
	}
	return c.SetDialer(&net.Dialer{Timeout: connectWindow})
}

// SetDialer replaces the dialer used to reach WHOIS servers
func (c *Checker) SetDialer(dialer proxy.Dialer) *Checker {
	c.dialer = &replyDialer{dialer: dialer, timeout: c.cfg.WhoisTimeout, limit: maxResponseSize}
	c.transport.SetDialer(c.dialer)
	return c
}

// TopLevelLabel returns the last dot-separated label of domain, or domain
// itself when it contains no dot.
func TopLevelLabel(domain string) string {
	if i := strings.LastIndex(domain, "."); i >= 0 {
		return domain[i+1:]
	}
	return domain
}

// Server returns the WHOIS server responsible for domain
func Server(domain string) string {
	if strings.HasSuffix(domain, overrideSuffix) {
		return overrideServer
	}
	return TopLevelLabel(domain) + serverSuffix
}

// Lookup queries the WHOIS server for domain, retrying failed attempts.
// It returns false once every attempt has failed; the caller treats that the
// same as a reply without an expiry date.
func (c *Checker) Lookup(ctx context.Context, domain string) (string, bool) {
	server := Server(domain)
	c.log.Infof("Checking expiry for '%s'...", domain)
	log := c.log.WithField("server", server)
	log.Debugf("Connecting for '%s'...", domain)

	for attempt := 1; ; attempt++ {
		raw, err := c.query(domain, server)
		if err == nil && strings.TrimSpace(raw) != "" {
			return Sanitize(raw), true
		}
		if err == nil {
			err = errEmptyReply
		}

		if attempt >= c.cfg.WhoisRetries {
			log.Warnf("WHOIS failed for %s after %d attempts: %v", domain, attempt, err)
			return "", false
		}

		log.Infof("Retrying %s... (attempt %d): %v", domain, attempt+1, err)
		if err := c.sleep(ctx, c.cfg.WhoisRetryDelay); err != nil {
			c.log.Warnf("WHOIS lookup for %s interrupted: %v", domain, err)
			return "", false
		}
	}
}

func (c *Checker) query(domain, server string) (string, error) {
	if !strings.Contains(domain, ".") {
		return rawQuery(c.dialer, domain, server, connectWindow+c.cfg.WhoisTimeout)
	}
	return c.transport.Whois(domain, server)
}

// GetExpiry looks up domain and parses its expiry date
func (c *Checker) GetExpiry(ctx context.Context, domain string) state.Record {
	raw, ok := c.Lookup(ctx, domain)
	if !ok {
		c.log.Warnf("[-!-] Unable to find expiry date for %s.", domain)
		return state.NotFound()
	}

	res := ParseExpiry(raw)
	if res.Matched != "" {
		c.log.Debugf("Found raw expiry date string: %q", res.Matched)
	}
	if !res.Found() {
		reason := res.Reason
		if why := Classify(raw); why != "" {
			reason += " (" + why + ")"
		}
		c.log.Warnf("[-!-] Unable to find expiry date for %s: %s.", domain, reason)
		return state.NotFound()
	}

	c.log.Infof("[-*-] %s expires on %s.", domain, res.Date)
	return state.Known(res.Date)
}

// Sanitize truncates a reply to the maximum response size and removes
// bytes outside printable ASCII, keeping line structure.
func Sanitize(raw string) string {
	if len(raw) > maxResponseSize {
		raw = raw[:maxResponseSize]
	}
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		ch := raw[i]
		if (ch >= 0x20 && ch < 0x7f) || ch == '\n' || ch == '\r' || ch == '\t' {
			b.WriteByte(ch)
		}
	}
	return b.String()
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
