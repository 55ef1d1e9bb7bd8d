package strategy

import (
	"context"
	"net/url"

	"github.com/librarium/discovery-auth/config"
	"github.com/librarium/discovery-auth/internal/domain/auth"
	autherr "github.com/librarium/discovery-auth/internal/errors"
	"github.com/librarium/discovery-auth/internal/ports"
	"github.com/librarium/discovery-auth/internal/session"
)

// SimulatedSSO fakes a single sign-on provider for development and
// integration testing: any login attempt succeeds as the configured user.
// Never enable it outside a development deployment.
type SimulatedSSO struct {
	base
	users ports.IdentityStore
}

// NewSimulatedSSO creates the development SSO strategy.
func NewSimulatedSSO(cfg *config.AuthConfig, users ports.IdentityStore) *SimulatedSSO {
	return &SimulatedSSO{base: newBase("SimulatedSSO", cfg), users: users}
}

func (s *SimulatedSSO) validate(cfg *config.AuthConfig) error {
	if cfg.SimulatedSSO.Username == "" {
		return autherr.Config("SimulatedSSO: username is required")
	}
	return nil
}

func (s *SimulatedSSO) Authenticate(ctx context.Context, _ *auth.Request, _ *session.Session) (*auth.Identity, error) {
	cfg, err := s.checkedConfig(s.validate)
	if err != nil {
		return nil, err
	}
	sim := cfg.SimulatedSSO
	return upsertIdentity(ctx, s.users, sim.Username, func(user *auth.Identity) {
		user.FirstName = sim.FirstName
		user.LastName = sim.LastName
		user.Email = sim.Email
	})
}

// SessionInitiator returns the configured fake SSO entry point, or "" to use
// the local form directly.
func (s *SimulatedSSO) SessionInitiator(_ context.Context, target string, _ *session.Session) (string, error) {
	cfg, err := s.checkedConfig(s.validate)
	if err != nil {
		return "", err
	}
	if cfg.SimulatedSSO.InitiatorURL == "" {
		return "", nil
	}
	return cfg.SimulatedSSO.InitiatorURL + "?target=" + url.QueryEscape(taggedTarget(target, "SimulatedSSO")), nil
}
