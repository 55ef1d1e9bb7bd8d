package strategy

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/librarium/discovery-auth/config"
	"github.com/librarium/discovery-auth/internal/domain/auth"
	autherr "github.com/librarium/discovery-auth/internal/errors"
	"github.com/librarium/discovery-auth/internal/ports"
	"github.com/librarium/discovery-auth/internal/session"
)

// Storage-imposed credential limits for locally managed accounts.
const (
	maxUsernameLength = 255
	maxPasswordLength = 32
)

// Database authenticates against locally stored accounts. It is the only
// strategy that manages credentials itself: account creation, password
// updates and recovery all run through it.
type Database struct {
	base
	users  ports.IdentityStore
	logger *slog.Logger
}

// DatabaseOptions configures a Database strategy.
type DatabaseOptions struct {
	Users  ports.IdentityStore
	Logger *slog.Logger
}

// NewDatabase creates the local-account strategy.
func NewDatabase(cfg *config.AuthConfig, opts DatabaseOptions) *Database {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Database{
		base:   newBase("Database", cfg),
		users:  opts.Users,
		logger: logger.With("component", "auth.database"),
	}
}

func (d *Database) Capabilities() ports.Capabilities {
	return ports.Capabilities{
		Creation:         true,
		PasswordChange:   true,
		PasswordRecovery: true,
		EmailChange:      true,
	}
}

func (d *Database) Authenticate(ctx context.Context, req *auth.Request, _ *session.Session) (*auth.Identity, error) {
	cfg, err := d.checkedConfig(nil)
	if err != nil {
		return nil, err
	}

	username := req.FormValue("username")
	password := req.FormValue("password")
	if username == "" || password == "" {
		return nil, autherr.Blank()
	}

	user, err := d.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, autherr.Invalid()
	}
	if err := checkPassword(cfg, user, password); err != nil {
		return nil, err
	}
	if cfg.VerifyEmail && !user.EmailVerified {
		return nil, autherr.EmailNotVerified(user.Email)
	}
	return user, nil
}

func (d *Database) Create(ctx context.Context, req *auth.Request, _ *session.Session) (*auth.Identity, error) {
	cfg, err := d.checkedConfig(nil)
	if err != nil {
		return nil, err
	}

	username := req.FormValue("username")
	password := req.FormValue("password")
	email := strings.ToLower(req.FormValue("email"))
	if username == "" || password == "" || email == "" {
		return nil, autherr.Blank()
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, autherr.NewAuth(autherr.KindInvalid, "invalid email address")
	}
	if !emailDomainAllowed(email, cfg.LegalDomains) {
		return nil, autherr.Denied("email domain not permitted for account creation")
	}
	if err := d.validateCredentialPolicies(username, password); err != nil {
		return nil, err
	}
	if password != req.FormValue("password2") {
		return nil, autherr.NewAuth(autherr.KindInvalid, "passwords do not match")
	}

	if existing, err := d.users.FindByUsername(ctx, username); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, autherr.NewAuth(autherr.KindInvalid, "username is already taken")
	}
	if existing, err := d.users.FindByEmail(ctx, email); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, autherr.NewAuth(autherr.KindInvalid, "email address is already in use")
	}

	user := &auth.Identity{
		Username:      username,
		FirstName:     req.FormValue("firstname"),
		LastName:      req.FormValue("lastname"),
		Email:         email,
		EmailVerified: !cfg.VerifyEmail,
	}
	if err := setPassword(cfg, user, password); err != nil {
		return nil, err
	}
	if err := d.users.Create(ctx, user); err != nil {
		return nil, err
	}
	d.logger.Info("account created", "username", username)
	return user, nil
}

func (d *Database) UpdatePassword(ctx context.Context, req *auth.Request, _ *session.Session) (*auth.Identity, error) {
	cfg, err := d.checkedConfig(nil)
	if err != nil {
		return nil, err
	}

	username := req.FormValue("username")
	password := req.FormValue("password")
	if username == "" || password == "" {
		return nil, autherr.Blank()
	}
	policy, err := d.PasswordPolicy()
	if err != nil {
		return nil, err
	}
	if err := policy.Validate("password", password); err != nil {
		return nil, err
	}
	if password != req.FormValue("password2") {
		return nil, autherr.NewAuth(autherr.KindInvalid, "passwords do not match")
	}

	user, err := d.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, autherr.Invalid()
	}
	if err := setPassword(cfg, user, password); err != nil {
		return nil, err
	}
	if err := d.users.Save(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// UsernamePolicy caps the configured policy at the storage column width.
func (d *Database) UsernamePolicy() (auth.Policy, error) {
	policy, err := d.base.UsernamePolicy()
	if err != nil {
		return auth.Policy{}, err
	}
	return policy.ClampMaxLength(maxUsernameLength), nil
}

// PasswordPolicy caps the configured policy at the supported hash input size.
func (d *Database) PasswordPolicy() (auth.Policy, error) {
	policy, err := d.base.PasswordPolicy()
	if err != nil {
		return auth.Policy{}, err
	}
	return policy.ClampMaxLength(maxPasswordLength), nil
}

func (d *Database) validateCredentialPolicies(username, password string) error {
	usernamePolicy, err := d.UsernamePolicy()
	if err != nil {
		return err
	}
	if err := usernamePolicy.Validate("username", username); err != nil {
		return err
	}
	passwordPolicy, err := d.PasswordPolicy()
	if err != nil {
		return err
	}
	return passwordPolicy.Validate("password", password)
}

// checkPassword compares the submitted password to the stored credential,
// honoring the hashing mode. A stored credential in the wrong mode is a
// configuration fault, not a bad login.
func checkPassword(cfg *config.AuthConfig, user *auth.Identity, password string) error {
	if cfg.HashPasswords {
		if user.PasswordHash == "" {
			if user.RawPassword != "" {
				return autherr.Configf("account %q stores an unhashed password while hashing is enabled", user.Username)
			}
			return autherr.Invalid()
		}
		if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
			return autherr.Invalid()
		}
		return nil
	}
	if user.PasswordHash != "" {
		return autherr.Configf("account %q stores a hashed password while hashing is disabled", user.Username)
	}
	if user.RawPassword == "" ||
		subtle.ConstantTimeCompare([]byte(user.RawPassword), []byte(password)) != 1 {
		return autherr.Invalid()
	}
	return nil
}

func setPassword(cfg *config.AuthConfig, user *auth.Identity, password string) error {
	if cfg.HashPasswords {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		user.PasswordHash = string(hash)
		user.RawPassword = ""
		return nil
	}
	user.RawPassword = password
	user.PasswordHash = ""
	return nil
}

func emailDomainAllowed(email string, domains []string) bool {
	if len(domains) == 0 {
		return true
	}
	at := strings.LastIndexByte(email, '@')
	if at < 0 {
		return false
	}
	domain := email[at+1:]
	for _, d := range domains {
		if strings.EqualFold(domain, d) {
			return true
		}
	}
	return false
}
