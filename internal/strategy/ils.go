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

// ILS authenticates patrons against the library catalog. Besides the plain
// password check it supports two lighter login methods: "username" trusts a
// bare barcode lookup, and "email" mails a login link to the address on the
// patron record instead of asking for a password.
type ILS struct {
	base
	catalog   ports.Catalog
	users     ports.IdentityStore
	emailAuth ports.EmailLinkAuthenticator
	logger    *slog.Logger
}

// ILSOptions configures an ILS strategy. EmailAuth is only needed when the
// email login method is enabled.
type ILSOptions struct {
	Catalog   ports.Catalog
	Users     ports.IdentityStore
	EmailAuth ports.EmailLinkAuthenticator
	Logger    *slog.Logger
}

// NewILS creates the catalog-backed strategy.
func NewILS(cfg *config.AuthConfig, opts ILSOptions) *ILS {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ILS{
		base:      newBase("ILS", cfg),
		catalog:   opts.Catalog,
		users:     opts.Users,
		emailAuth: opts.EmailAuth,
		logger:    logger.With("component", "auth.ils"),
	}
}

func (i *ILS) Capabilities() ports.Capabilities {
	return ports.Capabilities{PasswordChange: true}
}

func (i *ILS) validate(cfg *config.AuthConfig) error {
	switch cfg.ILS.LoginMethod {
	case "password", "username", "email":
	default:
		return autherr.Configf("ILS: unknown login method %q", cfg.ILS.LoginMethod)
	}
	switch cfg.ILS.UsernameField {
	case "cat_username", "email":
	default:
		return autherr.Configf("ILS: unknown username field %q", cfg.ILS.UsernameField)
	}
	if cfg.ILS.LoginMethod == "email" && i.emailAuth == nil {
		return autherr.Config("ILS: email login method requires email authentication")
	}
	return nil
}

func (i *ILS) Authenticate(ctx context.Context, req *auth.Request, sess *session.Session) (*auth.Identity, error) {
	cfg, err := i.checkedConfig(i.validate)
	if err != nil {
		return nil, err
	}

	// A hash parameter means the user came back through a mailed login link.
	if hash := req.QueryValue("hash"); hash != "" {
		payload, err := i.emailAuth.Authenticate(ctx, sess, hash)
		if err != nil {
			return nil, err
		}
		return i.processPatron(ctx, cfg, patronFromPayload(payload))
	}

	username := req.FormValue("username")
	if username == "" {
		return nil, autherr.Blank()
	}

	var patron *auth.Patron
	switch cfg.ILS.LoginMethod {
	case "password":
		password := req.FormValue("password")
		if password == "" {
			return nil, autherr.Blank()
		}
		patron, err = i.catalog.PatronLogin(ctx, username, password)
	default:
		// Barcode-only lookup for the username and email methods.
		patron, err = i.catalog.PatronLogin(ctx, username, "")
	}
	if err != nil {
		return nil, err
	}
	if patron == nil {
		return nil, autherr.Invalid()
	}

	if cfg.ILS.LoginMethod == "email" {
		if patron.Email == "" {
			return nil, autherr.Adminf("patron record has no email address")
		}
		if err := i.emailAuth.SendLoginLink(ctx, sess, patron.Email, payloadFromPatron(patron)); err != nil {
			return nil, err
		}
		return nil, autherr.InProgress("a sign-in link has been sent by email")
	}
	return i.processPatron(ctx, cfg, patron)
}

func (i *ILS) UpdatePassword(ctx context.Context, req *auth.Request, _ *session.Session) (*auth.Identity, error) {
	if _, err := i.checkedConfig(i.validate); err != nil {
		return nil, err
	}

	catUsername := req.FormValue("cat_username")
	oldPassword := req.FormValue("oldpwd")
	password := req.FormValue("password")
	if catUsername == "" || password == "" {
		return nil, autherr.Blank()
	}
	policy, err := i.PasswordPolicy()
	if err != nil {
		return nil, err
	}
	if err := policy.Validate("password", password); err != nil {
		return nil, err
	}
	if password != req.FormValue("password2") {
		return nil, autherr.NewAuth(autherr.KindInvalid, "passwords do not match")
	}

	if err := i.catalog.ChangePassword(ctx, catUsername, oldPassword, password); err != nil {
		return nil, err
	}

	user, err := i.users.FindByCatalogID(ctx, catUsername)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, autherr.Invalid()
	}
	user.CatPassword = password
	if err := i.users.Save(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// PasswordPolicy defers to the catalog's published rules when it has any,
// falling back to the locally configured policy.
func (i *ILS) PasswordPolicy() (auth.Policy, error) {
	policy, ok, err := i.catalog.PasswordPolicy(context.Background())
	if err != nil {
		return auth.Policy{}, err
	}
	if ok {
		return policy, nil
	}
	return i.base.PasswordPolicy()
}

// processPatron maps the catalog record onto a local account.
func (i *ILS) processPatron(ctx context.Context, cfg *config.AuthConfig, patron *auth.Patron) (*auth.Identity, error) {
	username := patron.CatUsername
	if cfg.ILS.UsernameField == "email" {
		username = patron.Email
	}
	if username == "" {
		return nil, autherr.Adminf("patron record has no usable username")
	}
	return upsertIdentity(ctx, i.users, username, func(user *auth.Identity) {
		user.CatUsername = patron.CatUsername
		user.CatPassword = patron.CatPassword
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

func payloadFromPatron(p *auth.Patron) map[string]string {
	return map[string]string{
		"cat_username": p.CatUsername,
		"cat_password": p.CatPassword,
		"firstname":    p.FirstName,
		"lastname":     p.LastName,
		"email":        p.Email,
	}
}

func patronFromPayload(payload map[string]string) *auth.Patron {
	return &auth.Patron{
		CatUsername: payload["cat_username"],
		CatPassword: payload["cat_password"],
		FirstName:   payload["firstname"],
		LastName:    payload["lastname"],
		Email:       payload["email"],
	}
}
