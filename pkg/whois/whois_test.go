package whois

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/mallocator/domain-mon/pkg/config"
	"github.com/mallocator/domain-mon/pkg/logger"
	"github.com/mallocator/domain-mon/pkg/state"
)

// dialerFunc adapts a function to proxy.Dialer
type dialerFunc func(network, addr string) (net.Conn, error)

func (f dialerFunc) Dial(network, addr string) (net.Conn, error) {
	return f(network, addr)
}

// fakeServer answers every connection with reply and records what it saw
type fakeServer struct {
	reply   string
	failN   int
	dials   int
	addrs   []string
	queries chan string
	// hold keeps the connection open after the reply until closed
	hold chan struct{}
}

func newFakeServer(reply string, failN int) *fakeServer {
	return &fakeServer{reply: reply, failN: failN, queries: make(chan string, 10)}
}

func (s *fakeServer) Dial(_, addr string) (net.Conn, error) {
	s.dials++
	s.addrs = append(s.addrs, addr)
	if s.dials <= s.failN {
		return nil, errors.New("connection refused")
	}
	client, server := net.Pipe()
	go func() {
		defer server.Close()
		line, err := bufio.NewReader(server).ReadString('\n')
		if err != nil {
			return
		}
		s.queries <- line
		_, _ = server.Write([]byte(s.reply))
		if s.hold != nil {
			<-s.hold
		}
	}()
	return client, nil
}

func newTestChecker(t *testing.T, dialer dialerFunc) (*Checker, *[]time.Duration) {
	t.Helper()
	log := logger.NewWithWriter(&bytes.Buffer{})
	cfg := config.New(log)
	checker := New(cfg, log).SetDialer(dialer)

	var delays []time.Duration
	checker.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	return checker, &delays
}

func TestNew(t *testing.T) {
	log := logger.NewWithWriter(&bytes.Buffer{})
	cfg := config.New(log)

	checker := New(cfg, log)

	if checker == nil {
		t.Fatalf("Expected New to return a non-nil Checker")
	}
	if checker.cfg != cfg {
		t.Errorf("Expected checker.cfg to be %v, got %v", cfg, checker.cfg)
	}
	if checker.log != log {
		t.Errorf("Expected checker.log to be %v, got %v", log, checker.log)
	}
}

func TestTopLevelLabel(t *testing.T) {
	tests := map[string]string{
		"example.com":          "com",
		"bbc.co.uk":            "uk",
		"cabinetoffice.gov.uk": "uk",
		"localhost":            "localhost",
		"xn--p1ai":             "xn--p1ai",
	}
	for domain, want := range tests {
		if got := TopLevelLabel(domain); got != want {
			t.Errorf("TopLevelLabel(%q) = %q, want %q", domain, got, want)
		}
	}
}

func TestServer(t *testing.T) {
	tests := map[string]string{
		"example.com":          "com.whois-servers.net",
		"example.co.uk":        "uk.whois-servers.net",
		"cabinetoffice.gov.uk": "whois.ja.net",
		"gov.uk":               "uk.whois-servers.net",
		"io":                   "io.whois-servers.net",
	}
	for domain, want := range tests {
		if got := Server(domain); got != want {
			t.Errorf("Server(%q) = %q, want %q", domain, got, want)
		}
	}
}

func TestLookup(t *testing.T) {
	server := newFakeServer("Domain Name: EXAMPLE.COM\r\nRegistry Expiry Date: 2026-08-13T04:00:00Z\r\n", 0)
	checker, delays := newTestChecker(t, server.Dial)

	raw, ok := checker.Lookup(context.Background(), "example.com")
	if !ok {
		t.Fatalf("Lookup failed")
	}
	if !strings.Contains(raw, "Registry Expiry Date: 2026-08-13T04:00:00Z") {
		t.Errorf("unexpected reply %q", raw)
	}
	if q := <-server.queries; q != "example.com\r\n" {
		t.Errorf("query = %q, want %q", q, "example.com\r\n")
	}
	if len(server.addrs) != 1 || !strings.HasPrefix(server.addrs[0], "com.whois-servers.net") {
		t.Errorf("dialed %v, want com.whois-servers.net", server.addrs)
	}
	if len(*delays) != 0 {
		t.Errorf("unexpected retry delays %v", *delays)
	}
	if strings.Contains(raw, "% Query time") {
		t.Errorf("reply carries client statistics: %q", raw)
	}
}

func newShortTimeoutChecker(t *testing.T, server *fakeServer) *Checker {
	t.Helper()
	log := logger.NewWithWriter(&bytes.Buffer{})
	cfg := config.New(log)
	cfg.WhoisTimeout = 100 * time.Millisecond
	checker := New(cfg, log).SetDialer(dialerFunc(server.Dial))
	checker.sleep = func(context.Context, time.Duration) error { return nil }
	return checker
}

func TestLookupServerKeepsConnectionOpen(t *testing.T) {
	server := newFakeServer("Domain Name: EXAMPLE.COM\nRegistry Expiry Date: 2026-08-13T04:00:00Z\n", 0)
	server.hold = make(chan struct{})
	defer close(server.hold)
	checker := newShortTimeoutChecker(t, server)

	start := time.Now()
	raw, ok := checker.Lookup(context.Background(), "example.com")
	if !ok {
		t.Fatalf("Lookup failed for a reply followed by silence")
	}
	if !strings.Contains(raw, "Registry Expiry Date: 2026-08-13T04:00:00Z") {
		t.Errorf("unexpected reply %q", raw)
	}
	if server.dials != 1 {
		t.Errorf("dials = %d, want 1", server.dials)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Lookup took %s", elapsed)
	}
}

func TestLookupSilentServer(t *testing.T) {
	server := newFakeServer("", 0)
	server.hold = make(chan struct{})
	defer close(server.hold)
	checker := newShortTimeoutChecker(t, server)

	if raw, ok := checker.Lookup(context.Background(), "example.com"); ok {
		t.Fatalf("Lookup succeeded with %q from a silent server", raw)
	}
	if server.dials != 5 {
		t.Errorf("dials = %d, want 5", server.dials)
	}
}

func TestLookupResponseLimit(t *testing.T) {
	server := newFakeServer(strings.Repeat("a", maxResponseSize+4096), 0)
	server.hold = make(chan struct{})
	defer close(server.hold)
	checker := newShortTimeoutChecker(t, server)

	raw, ok := checker.Lookup(context.Background(), "example.com")
	if !ok {
		t.Fatalf("Lookup failed")
	}
	if len(raw) != maxResponseSize {
		t.Errorf("reply length = %d, want %d", len(raw), maxResponseSize)
	}
}

func TestLookupSingleLabel(t *testing.T) {
	server := newFakeServer("Expiry Date: 2027-01-01\n", 0)
	checker, _ := newTestChecker(t, server.Dial)

	raw, ok := checker.Lookup(context.Background(), "io")
	if !ok {
		t.Fatalf("Lookup failed")
	}
	if raw != "Expiry Date: 2027-01-01" {
		t.Errorf("unexpected reply %q", raw)
	}
	if q := <-server.queries; q != "io\r\n" {
		t.Errorf("query = %q, want %q", q, "io\r\n")
	}
	if want := []string{"io.whois-servers.net:43"}; len(server.addrs) != 1 || server.addrs[0] != want[0] {
		t.Errorf("dialed %v, want %v", server.addrs, want)
	}
}

func TestLookupRetries(t *testing.T) {
	server := newFakeServer("Expiry date: 15-Jan-2026\n", 2)
	checker, delays := newTestChecker(t, server.Dial)

	if _, ok := checker.Lookup(context.Background(), "example.uk"); !ok {
		t.Fatalf("Lookup failed after transient errors")
	}
	if server.dials != 3 {
		t.Errorf("dials = %d, want 3", server.dials)
	}
	if len(*delays) != 2 || (*delays)[0] != time.Second {
		t.Errorf("delays = %v, want two 1s delays", *delays)
	}
}

func TestLookupExhausted(t *testing.T) {
	server := newFakeServer("", 100)
	checker, delays := newTestChecker(t, server.Dial)

	if raw, ok := checker.Lookup(context.Background(), "example.com"); ok {
		t.Fatalf("Lookup succeeded with %q, want failure", raw)
	}
	if server.dials != 5 {
		t.Errorf("dials = %d, want 5", server.dials)
	}
	if len(*delays) != 4 {
		t.Errorf("delays = %d, want 4", len(*delays))
	}
}

func TestLookupCancelled(t *testing.T) {
	server := newFakeServer("", 100)
	checker, _ := newTestChecker(t, server.Dial)
	checker.sleep = sleepContext

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, ok := checker.Lookup(ctx, "example.com"); ok {
		t.Fatalf("Lookup succeeded on a cancelled context")
	}
	if server.dials != 1 {
		t.Errorf("dials = %d, want 1", server.dials)
	}
}

func TestGetExpiry(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  state.Record
	}{
		{"pattern a", "Domain: a.com\nRegistry Expiry Date: 2026-01-15T04:00:00Z\n", state.Known("2026-01-15")},
		{"pattern b", "Domain:\n\tcabinetoffice.gov.uk\nRenewal date:\n\t15-Jan-2026\n", state.Known("2026-01-15")},
		{"no date", "No match for \"NOPE.COM\".\n", state.NotFound()},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			checker, _ := newTestChecker(t, newFakeServer(tc.reply, 0).Dial)
			if got := checker.GetExpiry(context.Background(), "a.com"); got != tc.want {
				t.Errorf("GetExpiry = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestGetExpiryUnreachable(t *testing.T) {
	checker, _ := newTestChecker(t, newFakeServer("", 100).Dial)
	if got := checker.GetExpiry(context.Background(), "a.com"); !got.IsNotFound() {
		t.Errorf("GetExpiry = %v, want NotFound", got)
	}
}

func TestSanitize(t *testing.T) {
	in := "Expiry date:\t2026-01-15\r\n\x00\x07caf\xc3\xa9\x7f done"
	if got, want := Sanitize(in), "Expiry date:\t2026-01-15\r\ncaf done"; got != want {
		t.Errorf("Sanitize = %q, want %q", got, want)
	}

	long := strings.Repeat("a", maxResponseSize+100)
	if got := Sanitize(long); len(got) != maxResponseSize {
		t.Errorf("Sanitize length = %d, want %d", len(got), maxResponseSize)
	}
}
