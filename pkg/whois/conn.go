package whois

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

const whoisPort = "43"

// replyDialer wraps a dialer so that reading a reply ends once the server
// has been silent for timeout after sending data, or once limit bytes have
// arrived. Servers that never close the connection still yield their reply.
type replyDialer struct {
	dialer  proxy.Dialer
	timeout time.Duration
	limit   int
}

func (d *replyDialer) Dial(network, addr string) (net.Conn, error) {
	conn, err := d.dialer.Dial(network, addr)
	if err != nil {
		return nil, err
	}
	return &replyConn{Conn: conn, timeout: d.timeout, remaining: d.limit}, nil
}

type replyConn struct {
	net.Conn
	timeout   time.Duration
	remaining int
	received  bool
}

// SetReadDeadline is ignored, Read applies its own idle deadline
func (c *replyConn) SetReadDeadline(time.Time) error {
	return nil
}

func (c *replyConn) Read(p []byte) (int, error) {
	if c.remaining <= 0 {
		return 0, io.EOF
	}
	if len(p) > c.remaining {
		p = p[:c.remaining]
	}
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}

	n, err := c.Conn.Read(p)
	c.remaining -= n
	if n > 0 {
		c.received = true
	}

	var netErr net.Error
	if err != nil && c.received && errors.As(err, &netErr) && netErr.Timeout() {
		return n, io.EOF
	}
	return n, err
}

// rawQuery sends query to server and reads the reply. likexian/whois routes
// single-label queries to IANA whatever server is given, so those go through
// here instead.
func rawQuery(dialer proxy.Dialer, query, server string, writeTimeout time.Duration) (string, error) {
	conn, err := dialer.Dial("tcp", net.JoinHostPort(server, whoisPort))
	if err != nil {
		return "", fmt.Errorf("whois: connect to %s failed: %w", server, err)
	}
	defer func() { _ = conn.Close() }()

	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if _, err := conn.Write([]byte(query + "\r\n")); err != nil {
		return "", fmt.Errorf("whois: send to %s failed: %w", server, err)
	}

	reply, err := io.ReadAll(conn)
	if err != nil {
		return "", fmt.Errorf("whois: read from %s failed: %w", server, err)
	}
	return strings.TrimSpace(string(reply)), nil
}
