package strategy

import (
	"context"
	"log/slog"

	"github.com/librarium/discovery-auth/config"
	"github.com/librarium/discovery-auth/internal/domain/auth"
	autherr "github.com/librarium/discovery-auth/internal/errors"
	"github.com/librarium/discovery-auth/internal/ports"
	"github.com/librarium/discovery-auth/internal/session"
)

// SIP2 authenticates against a self-check endpoint speaking the SIP2
// protocol. The submitted credentials double as the catalog credentials on
// the resulting account.
type SIP2 struct {
	base
	client ports.SelfCheckClient
	users  ports.IdentityStore
	logger *slog.Logger
}

// SIP2Options configures a SIP2 strategy.
type SIP2Options struct {
	Client ports.SelfCheckClient
	Users  ports.IdentityStore
	Logger *slog.Logger
}

// NewSIP2 creates the self-check strategy.
func NewSIP2(cfg *config.AuthConfig, opts SIP2Options) *SIP2 {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SIP2{
		base:   newBase("SIP2", cfg),
		client: opts.Client,
		users:  opts.Users,
		logger: logger.With("component", "auth.sip2"),
	}
}

func (s *SIP2) validate(cfg *config.AuthConfig) error {
	if cfg.SIP2.Host == "" {
		return autherr.Config("SIP2: host is required")
	}
	return nil
}

func (s *SIP2) Authenticate(ctx context.Context, req *auth.Request, _ *session.Session) (*auth.Identity, error) {
	if _, err := s.checkedConfig(s.validate); err != nil {
		return nil, err
	}

	username := req.FormValue("username")
	password := req.FormValue("password")
	if username == "" || password == "" {
		return nil, autherr.Blank()
	}

	patron, err := s.client.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}
	if patron == nil {
		return nil, autherr.Invalid()
	}

	return upsertIdentity(ctx, s.users, username, func(user *auth.Identity) {
		user.CatUsername = username
		user.CatPassword = password
		if patron.FirstName != "" {
			user.FirstName = patron.FirstName
		}
		if patron.LastName != "" {
			user.LastName = patron.LastName
		}
		if patron.Email != "" {
			user.Email = patron.Email
		}
	})
}
