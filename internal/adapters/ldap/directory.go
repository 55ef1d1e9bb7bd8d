// Package ldap implements the DirectoryClient port on go-ldap.
package ldap

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-ldap/ldap/v3"

	"github.com/librarium/discovery-auth/config"
	autherr "github.com/librarium/discovery-auth/internal/errors"
	"github.com/librarium/discovery-auth/internal/ports"
)

// Directory talks to an LDAP server: it finds the entry for a username and
// verifies the password by binding as that entry.
type Directory struct {
	cfg    config.LDAPConfig
	logger *slog.Logger
	dial   func() (ldap.Client, error)
}

var _ ports.DirectoryClient = (*Directory)(nil)

// DirectoryOptions configures a Directory.
type DirectoryOptions struct {
	Logger *slog.Logger // Optional: structured logger
	// Dial overrides the connection factory, for tests.
	Dial func() (ldap.Client, error)
}

// NewDirectory creates a Directory for the configured server.
func NewDirectory(cfg config.LDAPConfig, opts DirectoryOptions) *Directory {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	d := &Directory{cfg: cfg, logger: logger.With("component", "ldap")}
	d.dial = opts.Dial
	if d.dial == nil {
		d.dial = func() (ldap.Client, error) {
			conn, err := ldap.DialURL(fmt.Sprintf("ldap://%s:%d", cfg.Host, cfg.Port))
			if err != nil {
				return nil, fmt.Errorf("dial ldap: %w", err)
			}
			if !cfg.DisableTLS {
				if err := conn.StartTLS(&tls.Config{ServerName: cfg.Host}); err != nil {
					conn.Close()
					return nil, fmt.Errorf("ldap starttls: %w", err)
				}
			}
			return conn, nil
		}
	}
	return d
}

// AuthenticateUser looks the username up and binds with the password. A
// missing entry or a rejected bind both read as invalid credentials; the
// released attributes come back keyed by lowercase attribute name.
func (d *Directory) AuthenticateUser(ctx context.Context, username, password string) (map[string][]string, error) {
	conn, err := d.dial()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if d.cfg.BindUsername != "" {
		if err := conn.Bind(d.cfg.BindUsername, d.cfg.BindPassword); err != nil {
			return nil, fmt.Errorf("ldap service bind: %w", err)
		}
	}

	filter := fmt.Sprintf("(%s=%s)", d.cfg.UsernameAttr, ldap.EscapeFilter(username))
	result, err := conn.Search(ldap.NewSearchRequest(
		d.cfg.BaseDN, ldap.ScopeWholeSubtree, ldap.NeverDerefAliases,
		2, 0, false, filter, nil, nil,
	))
	if err != nil {
		return nil, fmt.Errorf("ldap search: %w", err)
	}
	if len(result.Entries) != 1 {
		d.logger.DebugContext(ctx, "directory lookup did not match one entry",
			"username", username, "matches", len(result.Entries))
		return nil, autherr.Invalid()
	}
	entry := result.Entries[0]

	if err := conn.Bind(entry.DN, password); err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials) {
			return nil, autherr.Invalid()
		}
		return nil, fmt.Errorf("ldap user bind: %w", err)
	}

	attrs := make(map[string][]string, len(entry.Attributes))
	for _, attr := range entry.Attributes {
		attrs[strings.ToLower(attr.Name)] = attr.Values
	}
	return attrs, nil
}
