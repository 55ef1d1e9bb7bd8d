package strategy

import (
	"context"
	"crypto/subtle"

	"github.com/librarium/discovery-auth/config"
	"github.com/librarium/discovery-auth/internal/domain/auth"
	autherr "github.com/librarium/discovery-auth/internal/errors"
	"github.com/librarium/discovery-auth/internal/ports"
	"github.com/librarium/discovery-auth/internal/session"
)

// PasswordAccess grants a shared guest login: one configured password maps
// everyone onto a single fixed account. Meant for walk-in or kiosk access.
type PasswordAccess struct {
	base
	users ports.IdentityStore
}

// NewPasswordAccess creates the shared-password strategy.
func NewPasswordAccess(cfg *config.AuthConfig, users ports.IdentityStore) *PasswordAccess {
	return &PasswordAccess{base: newBase("PasswordAccess", cfg), users: users}
}

func (p *PasswordAccess) validate(cfg *config.AuthConfig) error {
	if cfg.PasswordAccess.AccessPassword == "" {
		return autherr.Config("PasswordAccess: access password is required")
	}
	if cfg.PasswordAccess.AccessUser == "" {
		return autherr.Config("PasswordAccess: access user is required")
	}
	return nil
}

func (p *PasswordAccess) Authenticate(ctx context.Context, req *auth.Request, _ *session.Session) (*auth.Identity, error) {
	cfg, err := p.checkedConfig(p.validate)
	if err != nil {
		return nil, err
	}

	password := req.FormValue("password")
	if password == "" {
		return nil, autherr.Blank()
	}
	if subtle.ConstantTimeCompare([]byte(password), []byte(cfg.PasswordAccess.AccessPassword)) != 1 {
		return nil, autherr.Invalid()
	}
	return upsertIdentity(ctx, p.users, cfg.PasswordAccess.AccessUser, nil)
}
