package strategy

import (
	"context"
	"log/slog"
	"strings"

	"github.com/librarium/discovery-auth/config"
	"github.com/librarium/discovery-auth/internal/domain/auth"
	autherr "github.com/librarium/discovery-auth/internal/errors"
	"github.com/librarium/discovery-auth/internal/ports"
	"github.com/librarium/discovery-auth/internal/session"
)

// LDAP authenticates against a directory server through the DirectoryClient
// port and maps released directory attributes onto the identity record.
type LDAP struct {
	base
	directory ports.DirectoryClient
	users     ports.IdentityStore
	logger    *slog.Logger
}

// LDAPOptions configures an LDAP strategy.
type LDAPOptions struct {
	Directory ports.DirectoryClient
	Users     ports.IdentityStore
	Logger    *slog.Logger
}

// NewLDAP creates the directory-backed strategy.
func NewLDAP(cfg *config.AuthConfig, opts LDAPOptions) *LDAP {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &LDAP{
		base:      newBase("LDAP", cfg),
		directory: opts.Directory,
		users:     opts.Users,
		logger:    logger.With("component", "auth.ldap"),
	}
}

func (l *LDAP) validate(cfg *config.AuthConfig) error {
	switch {
	case cfg.LDAP.Host == "":
		return autherr.Config("LDAP: host is required")
	case cfg.LDAP.BaseDN == "":
		return autherr.Config("LDAP: basedn is required")
	case cfg.LDAP.UsernameAttr == "":
		return autherr.Config("LDAP: username attribute is required")
	}
	return nil
}

func (l *LDAP) Authenticate(ctx context.Context, req *auth.Request, _ *session.Session) (*auth.Identity, error) {
	cfg, err := l.checkedConfig(l.validate)
	if err != nil {
		return nil, err
	}

	// Directory names are case insensitive; normalize so one person cannot
	// end up with several accounts.
	username := strings.ToLower(req.FormValue("username"))
	password := req.FormValue("password")
	if username == "" || password == "" {
		return nil, autherr.Blank()
	}

	attrs, err := l.directory.AuthenticateUser(ctx, username, password)
	if err != nil {
		return nil, err
	}

	return upsertIdentity(ctx, l.users, username, func(user *auth.Identity) {
		for field, attr := range map[string]string{
			"firstname":    cfg.LDAP.FirstNameAttr,
			"lastname":     cfg.LDAP.LastNameAttr,
			"email":        cfg.LDAP.EmailAttr,
			"cat_username": cfg.LDAP.CatUsernameAttr,
			"cat_password": cfg.LDAP.CatPasswordAttr,
		} {
			if attr == "" {
				continue
			}
			if values, ok := attrs[strings.ToLower(attr)]; ok {
				assign(user, field, joinValues(values, cfg.LDAP.Separator))
			}
		}
	})
}
