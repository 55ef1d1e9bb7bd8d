// Package sip2 implements the SelfCheckClient port over the SIP2 wire
// protocol. Only the patron-status exchange needed for login checks is
// implemented.
package sip2

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/librarium/discovery-auth/config"
	"github.com/librarium/discovery-auth/internal/domain/auth"
	"github.com/librarium/discovery-auth/internal/ports"
)

// fixedHeaderLen is the length of the fixed part of a patron status response:
// message id (2), patron status (14), language (3), transaction date (18).
const fixedHeaderLen = 37

const ioTimeout = 10 * time.Second

// Client speaks SIP2 with one configured self-check endpoint, one
// connection per exchange.
type Client struct {
	cfg    config.SIP2Config
	logger *slog.Logger
	dial   func(ctx context.Context) (net.Conn, error)
	now    func() time.Time
}

var _ ports.SelfCheckClient = (*Client)(nil)

// ClientOptions configures a Client.
type ClientOptions struct {
	Logger *slog.Logger // Optional: structured logger
	// Dial overrides the connection factory, for tests.
	Dial func(ctx context.Context) (net.Conn, error)
}

// NewClient creates a SIP2 client for the configured endpoint.
func NewClient(cfg config.SIP2Config, opts ClientOptions) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{cfg: cfg, logger: logger.With("component", "sip2"), now: time.Now}
	c.dial = opts.Dial
	if c.dial == nil {
		c.dial = func(ctx context.Context) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port))
		}
	}
	return c
}

// Login runs a patron status request. A response flagging an invalid patron
// or password reads as bad credentials, (nil, nil).
func (c *Client) Login(ctx context.Context, username, password string) (*auth.Patron, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("sip2 dial: %w", err)
	}
	defer conn.Close()
	if err := conn.SetDeadline(c.now().Add(ioTimeout)); err != nil {
		return nil, err
	}

	request := "23001" + c.now().Format("20060102    150405") +
		"AO|AA" + username + "|AC|AD" + password + "|"
	if _, err := conn.Write([]byte(request + "\r")); err != nil {
		return nil, fmt.Errorf("sip2 write: %w", err)
	}

	raw, err := bufio.NewReader(conn).ReadString('\r')
	if err != nil {
		return nil, fmt.Errorf("sip2 read: %w", err)
	}
	return parsePatronStatus(strings.TrimRight(raw, "\r\n"), username, password)
}

// parsePatronStatus interprets a patron status response (24).
func parsePatronStatus(raw, username, password string) (*auth.Patron, error) {
	if len(raw) < fixedHeaderLen || !strings.HasPrefix(raw, "24") {
		return nil, fmt.Errorf("sip2: malformed patron status response")
	}
	fields := map[string]string{}
	for _, field := range strings.Split(raw[fixedHeaderLen:], "|") {
		if len(field) >= 2 {
			fields[field[:2]] = field[2:]
		}
	}

	// BL flags a valid patron, CQ a valid password.
	if fields["BL"] != "Y" || fields["CQ"] != "Y" {
		return nil, nil
	}

	patron := &auth.Patron{
		CatUsername: username,
		CatPassword: password,
		Email:       fields["BE"],
	}
	// Personal names arrive as "Last, First".
	if name := fields["AE"]; name != "" {
		if last, first, found := strings.Cut(name, ","); found {
			patron.LastName = strings.TrimSpace(last)
			patron.FirstName = strings.TrimSpace(first)
		} else {
			patron.LastName = strings.TrimSpace(name)
		}
	}
	return patron, nil
}
