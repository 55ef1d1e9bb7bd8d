// Package strategy implements the authentication strategies. Each strategy
// validates credentials for one backend (local database, LDAP directory, CAS
// or Shibboleth SSO, OpenID Connect, the library catalog, a SIP2 self-check
// endpoint) and maps the backend's notion of a user onto the shared identity
// record. The composite strategies (ChoiceAuth, MultiAuth) route between
// other strategies by name.
package strategy

import (
	"context"
	"strings"
	"sync"

	"github.com/librarium/discovery-auth/config"
	"github.com/librarium/discovery-auth/internal/domain/auth"
	autherr "github.com/librarium/discovery-auth/internal/errors"
	"github.com/librarium/discovery-auth/internal/ports"
	"github.com/librarium/discovery-auth/internal/session"
)

// Resolver looks strategies up by name. The service registry implements it;
// composites use it to reach their sub-strategies.
type Resolver interface {
	Get(name string) (ports.Strategy, error)
}

// base carries the configuration handling shared by every strategy:
// SetConfig swaps the settings and arms a one-shot re-validation, and
// checkedConfig hands out the settings after running the strategy's
// validation the first time they are used.
//
// base also supplies the neutral defaults for the optional Strategy methods
// so concrete strategies only override what they actually do.
type base struct {
	name string

	mu        sync.Mutex
	cfg       *config.AuthConfig
	validated bool
}

func newBase(name string, cfg *config.AuthConfig) base {
	return base{name: name, cfg: cfg}
}

// SetConfig replaces the configuration and discards the validation result.
func (b *base) SetConfig(cfg *config.AuthConfig) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cfg = cfg
	b.validated = false
}

// checkedConfig returns the current settings, running validate once after
// each SetConfig. validate may be nil for strategies with nothing to check.
func (b *base) checkedConfig(validate func(*config.AuthConfig) error) (*config.AuthConfig, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cfg == nil {
		return nil, autherr.Configf("%s: no configuration set", b.name)
	}
	if !b.validated {
		if validate != nil {
			if err := validate(b.cfg); err != nil {
				return nil, err
			}
		}
		b.validated = true
	}
	return b.cfg, nil
}

// config returns the current settings without validation, for methods that
// must not fail on misconfiguration (Logout, NeedsCsrfCheck).
func (b *base) config() *config.AuthConfig {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cfg
}

func (b *base) Create(context.Context, *auth.Request, *session.Session) (*auth.Identity, error) {
	return nil, autherr.Unsupported(b.name, "account creation")
}

func (b *base) UpdatePassword(context.Context, *auth.Request, *session.Session) (*auth.Identity, error) {
	return nil, autherr.Unsupported(b.name, "password update")
}

func (b *base) SessionInitiator(context.Context, string, *session.Session) (string, error) {
	return "", nil
}

func (b *base) Logout(url string, _ *session.Session) string { return url }

func (b *base) IsExpired(context.Context, *auth.Request) bool { return false }

func (b *base) NeedsCsrfCheck(*auth.Request, *session.Session) bool { return true }

func (b *base) DelegateAuthMethod(*auth.Request, *session.Session) string { return "" }

func (b *base) PreLoginCheck(*auth.Request, *session.Session) error { return nil }

func (b *base) ResetState(*session.Session) {}

func (b *base) Capabilities() ports.Capabilities { return ports.Capabilities{} }

// UsernamePolicy returns the configured username policy.
func (b *base) UsernamePolicy() (auth.Policy, error) {
	cfg := b.config()
	if cfg == nil {
		return auth.Policy{}, autherr.Configf("%s: no configuration set", b.name)
	}
	return policyFromConfig(cfg.Username, "username"), nil
}

// PasswordPolicy returns the configured password policy.
func (b *base) PasswordPolicy() (auth.Policy, error) {
	cfg := b.config()
	if cfg == nil {
		return auth.Policy{}, autherr.Configf("%s: no configuration set", b.name)
	}
	return policyFromConfig(cfg.Password, "password"), nil
}

func policyFromConfig(pc config.PolicyConfig, field string) auth.Policy {
	return auth.NewPolicy(pc.MinLength, pc.MaxLength, pc.Pattern, pc.Hint, field)
}

// upsertIdentity finds the account for username, creating it when absent,
// applies the backend's attribute mapping and persists the result. Used by
// the strategies whose backend is the source of truth for the account.
func upsertIdentity(ctx context.Context, store ports.IdentityStore, username string, apply func(*auth.Identity)) (*auth.Identity, error) {
	user, err := store.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	created := user == nil
	if created {
		user = &auth.Identity{Username: username}
	}
	if apply != nil {
		apply(user)
	}
	if created {
		if err := store.Create(ctx, user); err != nil {
			return nil, err
		}
		return user, nil
	}
	if err := store.Save(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// assign writes value into the identity field selected by name. Strategies
// with configurable attribute maps share this dispatch.
func assign(user *auth.Identity, field, value string) {
	switch field {
	case "firstname":
		user.FirstName = value
	case "lastname":
		user.LastName = value
	case "email":
		user.Email = value
	case "cat_username":
		user.CatUsername = value
	case "cat_password":
		user.CatPassword = value
	}
}

// joinValues flattens a multi-valued attribute: all values joined when a
// separator is configured, the first value otherwise.
func joinValues(values []string, separator string) string {
	if len(values) == 0 {
		return ""
	}
	if separator == "" {
		return values[0]
	}
	return strings.Join(values, separator)
}
