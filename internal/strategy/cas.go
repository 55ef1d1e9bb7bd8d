package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/librarium/discovery-auth/config"
	"github.com/librarium/discovery-auth/internal/domain/auth"
	autherr "github.com/librarium/discovery-auth/internal/errors"
	"github.com/librarium/discovery-auth/internal/ports"
	"github.com/librarium/discovery-auth/internal/session"
)

// CAS authenticates through a CAS single sign-on server. Login redirects the
// browser to the CAS login endpoint; the callback carries a service ticket
// that is validated server-to-server through the TicketValidator port.
type CAS struct {
	base
	tickets ports.TicketValidator
	users   ports.IdentityStore
	logger  *slog.Logger
}

// CASOptions configures a CAS strategy.
type CASOptions struct {
	Tickets ports.TicketValidator
	Users   ports.IdentityStore
	Logger  *slog.Logger
}

// NewCAS creates the CAS strategy.
func NewCAS(cfg *config.AuthConfig, opts CASOptions) *CAS {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &CAS{
		base:    newBase("CAS", cfg),
		tickets: opts.Tickets,
		users:   opts.Users,
		logger:  logger.With("component", "auth.cas"),
	}
}

func (c *CAS) validate(cfg *config.AuthConfig) error {
	if cfg.CAS.Server == "" && cfg.CAS.Login == "" {
		return autherr.Config("CAS: server or an explicit login URL is required")
	}
	if cfg.CAS.Target == "" {
		return autherr.Config("CAS: target return URL is required")
	}
	return nil
}

func (c *CAS) Authenticate(ctx context.Context, req *auth.Request, _ *session.Session) (*auth.Identity, error) {
	cfg, err := c.checkedConfig(c.validate)
	if err != nil {
		return nil, err
	}

	ticket := req.QueryValue("ticket")
	if ticket == "" {
		return nil, autherr.Blank()
	}

	principal, attrs, err := c.tickets.Validate(ctx, ticket, taggedTarget(cfg.CAS.Target, "CAS"))
	if err != nil {
		return nil, err
	}

	username := principal
	if cfg.CAS.UsernameAttr != "" {
		username = attrs[cfg.CAS.UsernameAttr]
	}
	if username == "" {
		return nil, autherr.Adminf("CAS asserted no username")
	}

	return upsertIdentity(ctx, c.users, username, func(user *auth.Identity) {
		for field, attr := range map[string]string{
			"firstname":    cfg.CAS.FirstNameAttr,
			"lastname":     cfg.CAS.LastNameAttr,
			"email":        cfg.CAS.EmailAttr,
			"cat_username": cfg.CAS.CatUsernameAttr,
			"cat_password": cfg.CAS.CatPasswordAttr,
		} {
			if attr == "" {
				continue
			}
			if value, ok := attrs[attr]; ok {
				assign(user, field, value)
			}
		}
	})
}

// SessionInitiator returns the CAS login URL. The service parameter is the
// configured callback, tagged with the method name so the callback request
// routes back here even under a composite strategy.
func (c *CAS) SessionInitiator(_ context.Context, target string, _ *session.Session) (string, error) {
	cfg, err := c.checkedConfig(c.validate)
	if err != nil {
		return "", err
	}
	if target == "" {
		target = cfg.CAS.Target
	}
	return c.loginURL(cfg) + "?service=" + url.QueryEscape(taggedTarget(target, "CAS")), nil
}

// Logout routes the logout through the CAS sign-out endpoint when one is
// configured, so the SSO session ends along with the local one.
func (c *CAS) Logout(returnURL string, _ *session.Session) string {
	cfg := c.config()
	if cfg == nil {
		return returnURL
	}
	logout := cfg.CAS.Logout
	if logout == "" && cfg.CAS.Server != "" {
		logout = casBaseURL(cfg) + "/logout"
	}
	if logout == "" {
		return returnURL
	}
	return logout + "?url=" + url.QueryEscape(returnURL)
}

func (c *CAS) loginURL(cfg *config.AuthConfig) string {
	if cfg.CAS.Login != "" {
		return cfg.CAS.Login
	}
	return casBaseURL(cfg) + "/login"
}

func casBaseURL(cfg *config.AuthConfig) string {
	base := fmt.Sprintf("https://%s:%d", cfg.CAS.Server, cfg.CAS.Port)
	return base + cfg.CAS.Context
}
