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

// choiceNS is the session namespace remembering the user's method choice.
const choiceNS = "ChoiceAuth"

// ChoiceAuth presents a menu of authentication methods and proxies every
// operation to the one the user picked. The pick arrives as the auth_method
// request parameter and is remembered in the session for the rest of the
// login.
type ChoiceAuth struct {
	base
	strategies Resolver
	logger     *slog.Logger
}

// ChoiceAuthOptions configures a ChoiceAuth strategy.
type ChoiceAuthOptions struct {
	Strategies Resolver
	Logger     *slog.Logger
}

// NewChoiceAuth creates the user-selectable composite strategy.
func NewChoiceAuth(cfg *config.AuthConfig, opts ChoiceAuthOptions) *ChoiceAuth {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ChoiceAuth{
		base:       newBase("ChoiceAuth", cfg),
		strategies: opts.Strategies,
		logger:     logger.With("component", "auth.choice"),
	}
}

func (c *ChoiceAuth) validate(cfg *config.AuthConfig) error {
	if len(cfg.Choice.Order) == 0 {
		return autherr.Config("ChoiceAuth: no methods configured")
	}
	return nil
}

// SelectableOptions lists the offered method names.
func (c *ChoiceAuth) SelectableOptions() []string {
	cfg := c.config()
	if cfg == nil {
		return nil
	}
	return cfg.Choice.Order
}

// SelectedOption returns the remembered method choice, or "".
func (c *ChoiceAuth) SelectedOption(sess *session.Session) string {
	choice, _ := sess.Get(choiceNS, "auth_method")
	return choice
}

// DelegateAuthMethod reports the method the request selects, letting the
// manager switch to the concrete strategy directly.
func (c *ChoiceAuth) DelegateAuthMethod(req *auth.Request, sess *session.Session) string {
	return c.selection(req, sess)
}

func (c *ChoiceAuth) Authenticate(ctx context.Context, req *auth.Request, sess *session.Session) (*auth.Identity, error) {
	sub, name, err := c.selected(req, sess)
	if err != nil {
		return nil, err
	}
	user, err := sub.Authenticate(ctx, req, sess)
	if err != nil {
		// A failed attempt sends the user back to the method menu.
		c.ResetState(sess)
		return nil, err
	}
	sess.Set(choiceNS, "auth_method", name)
	return user, nil
}

// ValidateCredentials probes the selected method without recording a choice.
func (c *ChoiceAuth) ValidateCredentials(ctx context.Context, req *auth.Request, sess *session.Session) (bool, error) {
	sub, _, err := c.selected(req, sess)
	if err != nil {
		return false, err
	}
	if _, err := sub.Authenticate(ctx, req, sess); err != nil {
		if autherr.IsCredential(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// SessionInitiator proxies to the chosen method; with no choice yet the
// method menu is the initiator, i.e. the local form.
func (c *ChoiceAuth) SessionInitiator(ctx context.Context, target string, sess *session.Session) (string, error) {
	sub, _, err := c.selected(nil, sess)
	if err != nil || sub == nil {
		return "", nil
	}
	return sub.SessionInitiator(ctx, target, sess)
}

func (c *ChoiceAuth) Logout(url string, sess *session.Session) string {
	sub, _, _ := c.selected(nil, sess)
	c.ResetState(sess)
	if sub == nil {
		return url
	}
	return sub.Logout(url, sess)
}

func (c *ChoiceAuth) IsExpired(ctx context.Context, req *auth.Request) bool {
	// Expiry is checked on the concrete strategy the manager switched to.
	return false
}

func (c *ChoiceAuth) NeedsCsrfCheck(req *auth.Request, sess *session.Session) bool {
	sub, _, _ := c.selected(req, sess)
	if sub == nil {
		return true
	}
	return sub.NeedsCsrfCheck(req, sess)
}

func (c *ChoiceAuth) ResetState(sess *session.Session) {
	sess.Unset(choiceNS, "auth_method")
}

// selection resolves the active method name from the request or the session.
func (c *ChoiceAuth) selection(req *auth.Request, sess *session.Session) string {
	cfg := c.config()
	if cfg == nil {
		return ""
	}
	var name string
	if req != nil {
		name = req.FormValue("auth_method")
		if name == "" {
			name = req.QueryValue("auth_method")
		}
	}
	if name == "" && sess != nil {
		name = c.SelectedOption(sess)
	}
	for _, offered := range cfg.Choice.Order {
		if strings.EqualFold(offered, name) {
			return offered
		}
	}
	return ""
}

// selected resolves the chosen sub-strategy. A nil request restricts the
// lookup to the session memory; (nil, "", nil) means nothing is chosen yet.
func (c *ChoiceAuth) selected(req *auth.Request, sess *session.Session) (ports.Strategy, string, error) {
	if _, err := c.checkedConfig(c.validate); err != nil {
		return nil, "", err
	}
	name := c.selection(req, sess)
	if name == "" {
		if req == nil {
			return nil, "", nil
		}
		return nil, "", autherr.Adminf("no authentication method selected")
	}
	sub, err := c.strategies.Get(name)
	if err != nil {
		return nil, "", err
	}
	return sub, name, nil
}
