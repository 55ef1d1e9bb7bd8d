package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/librarium/discovery-auth/config"
	"github.com/librarium/discovery-auth/internal/domain/auth"
	autherr "github.com/librarium/discovery-auth/internal/errors"
	"github.com/librarium/discovery-auth/internal/ports"
	"github.com/librarium/discovery-auth/internal/session"
)

const (
	// loggedOutCookie marks a deliberate logout so automatic logins (token
	// cookie, SP-asserted attributes) do not immediately sign the user back
	// in.
	loggedOutCookie = "loggedOut"

	// csrfTokenLimit bounds how many CSRF tokens stay live per session.
	csrfTokenLimit = 5
)

// Manager is the session-facing façade over the strategies: it runs the
// login and logout flows, keeps the session's identity state, enforces the
// CSRF check and answers capability and policy queries for the active
// method.
//
// The active method lives in the session, so one Manager serves all
// sessions. Methods may only be activated if they are "legal": the
// configured method, an option of an activated composite, or a delegate a
// composite handed the request to.
type Manager struct {
	cfg         *config.AppConfig
	registry    *Registry
	userSession *UserSession
	csrf        ports.CsrfValidator
	tokens      *LoginTokenManager
	cookies     ports.CookieStore
	sessions    ports.SessionStore
	logger      *slog.Logger
	now         func() time.Time

	mu    sync.Mutex
	legal map[string]bool
}

// ManagerOptions groups dependencies for Manager.
type ManagerOptions struct {
	Config      *config.AppConfig // Required
	Registry    *Registry         // Required
	UserSession *UserSession      // Required
	Csrf        ports.CsrfValidator
	Tokens      *LoginTokenManager
	Cookies     ports.CookieStore
	Sessions    ports.SessionStore
	Logger      *slog.Logger // Optional: structured logger
	Now         func() time.Time
}

// NewManager constructs a Manager with validation.
func NewManager(opts ManagerOptions) (*Manager, error) {
	switch {
	case opts.Config == nil:
		return nil, errors.New("Config is required")
	case opts.Registry == nil:
		return nil, errors.New("Registry is required")
	case opts.UserSession == nil:
		return nil, errors.New("UserSession is required")
	case opts.Csrf == nil:
		return nil, errors.New("CsrfValidator is required")
	case opts.Cookies == nil:
		return nil, errors.New("CookieStore is required")
	case opts.Sessions == nil:
		return nil, errors.New("SessionStore is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	m := &Manager{
		cfg:         opts.Config,
		registry:    opts.Registry,
		userSession: opts.UserSession,
		csrf:        opts.Csrf,
		tokens:      opts.Tokens,
		cookies:     opts.Cookies,
		sessions:    opts.Sessions,
		logger:      logger.With("component", "auth.manager"),
		now:         now,
		legal:       map[string]bool{},
	}
	m.makeLegal(opts.Config.Auth.Method)
	return m, nil
}

// LoginEnabled reports whether any login method is configured at all.
func (m *Manager) LoginEnabled() bool {
	method := m.cfg.Auth.Method
	return method != "" && !strings.EqualFold(method, "none")
}

// ActiveMethod returns the method the session is using, falling back to the
// configured default.
func (m *Manager) ActiveMethod(sess *session.Session) string {
	if name, ok := sess.Get(accountNS, "auth_method"); ok && name != "" {
		return name
	}
	return m.cfg.Auth.Method
}

// SetActiveMethod switches the session to the named method. Illegal methods
// are rejected unless force is set; forcing also makes the method legal from
// then on, which is how composite delegates become switchable.
func (m *Manager) SetActiveMethod(sess *session.Session, name string, force bool) error {
	if !m.isLegal(name) {
		if !force {
			return autherr.Configf("illegal authentication method %q", name)
		}
		m.makeLegal(name)
	}
	canonical := m.registry.CanonicalName(name)
	sess.Set(accountNS, "auth_method", canonical)

	// Activating a composite makes its sub-options legal too.
	if strat, err := m.registry.Get(canonical); err == nil {
		if provider, ok := strat.(ports.OptionProvider); ok {
			for _, option := range provider.SelectableOptions() {
				m.makeLegal(option)
			}
		}
	}
	return nil
}

// Login runs the full login flow for the request and returns the identity
// now bound to the session.
func (m *Manager) Login(ctx context.Context, req *auth.Request, sess *session.Session) (*auth.Identity, error) {
	strat, name, err := m.activeStrategy(sess)
	if err != nil {
		return nil, err
	}

	if err := strat.PreLoginCheck(req, sess); err != nil {
		return nil, err
	}

	// A composite may route the whole request to one of its options; from
	// then on the session talks to the concrete method directly.
	if delegate := strat.DelegateAuthMethod(req, sess); delegate != "" {
		if err := m.SetActiveMethod(sess, delegate, true); err != nil {
			return nil, err
		}
		if strat, name, err = m.activeStrategy(sess); err != nil {
			return nil, err
		}
	}

	// Externally initiated logins (SSO callbacks) carry no local form and
	// are exempt from the CSRF check.
	initiator, err := strat.SessionInitiator(ctx, "", sess)
	if err != nil {
		return nil, m.asAuthError(ctx, name, err)
	}
	if initiator == "" && strat.NeedsCsrfCheck(req, sess) {
		if !m.csrf.IsValid(sess, req.FormValue("csrf")) {
			m.logger.WarnContext(ctx, "csrf validation failed", "method", name)
			return nil, autherr.NewAuth(autherr.KindTechnical, "request could not be verified, please try again")
		}
		// The token was good for exactly one login attempt.
		m.csrf.Trim(sess, 0)
	}

	user, err := strat.Authenticate(ctx, req, sess)
	if err != nil {
		return nil, m.asAuthError(ctx, name, err)
	}

	if err := m.finalizeLogin(ctx, req, sess, name, user); err != nil {
		return nil, err
	}
	m.logger.InfoContext(ctx, "login succeeded", "method", name, "username", user.Username)
	return user, nil
}

// Create provisions a new account through the active strategy and logs the
// session in as the new user.
func (m *Manager) Create(ctx context.Context, req *auth.Request, sess *session.Session) (*auth.Identity, error) {
	strat, name, err := m.activeStrategy(sess)
	if err != nil {
		return nil, err
	}
	user, err := strat.Create(ctx, req, sess)
	if err != nil {
		return nil, m.asAuthError(ctx, name, err)
	}
	if err := m.finalizeLogin(ctx, req, sess, name, user); err != nil {
		return nil, err
	}
	m.logger.InfoContext(ctx, "account created", "method", name, "username", user.Username)
	return user, nil
}

// UpdatePassword changes the password through the active strategy and
// refreshes the session identity.
func (m *Manager) UpdatePassword(ctx context.Context, req *auth.Request, sess *session.Session) (*auth.Identity, error) {
	strat, name, err := m.activeStrategy(sess)
	if err != nil {
		return nil, err
	}
	user, err := strat.UpdatePassword(ctx, req, sess)
	if err != nil {
		return nil, m.asAuthError(ctx, name, err)
	}
	if err := m.userSession.Set(sess, user); err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateEmail changes the account email. With email verification on, the new
// address is staged as pending until verified; otherwise it replaces the old
// one immediately.
func (m *Manager) UpdateEmail(ctx context.Context, sess *session.Session, user *auth.Identity, email string) error {
	if !m.cfg.Auth.ChangeEmail {
		return autherr.Unsupported(m.ActiveMethod(sess), "email change")
	}
	verified := !m.cfg.Auth.VerifyEmail
	if err := m.userSession.users.UpdateEmail(ctx, user, email, verified); err != nil {
		return err
	}
	return m.userSession.Set(sess, user)
}

// Logout ends the login. The returned URL is where the browser should go
// next, possibly via an external SSO sign-out. With destroy false the
// session survives emptied, which the expired-credential path relies on.
func (m *Manager) Logout(ctx context.Context, returnURL string, sess *session.Session, destroy bool) (string, error) {
	strat, _, err := m.activeStrategy(sess)
	if err != nil {
		return returnURL, err
	}
	next := strat.Logout(returnURL, sess)

	if m.tokens != nil {
		if err := m.tokens.DeleteActiveToken(ctx); err != nil {
			m.logger.WarnContext(ctx, "deleting login token on logout failed", "error", err)
		}
	}
	m.cookies.Set(loggedOutCookie, "1", m.now().Add(24*time.Hour), true)

	m.userSession.Clear(sess)
	strat.ResetState(sess)
	if destroy {
		if err := m.sessions.Destroy(ctx, sess.ID()); err != nil {
			m.logger.WarnContext(ctx, "destroying session on logout failed", "error", err)
		}
		sess.Destroy()
	} else {
		sess.Clear()
	}
	return next, nil
}

// CurrentIdentity returns the logged-in identity, attempting a token login
// when the session is anonymous and the user did not just log out.
func (m *Manager) CurrentIdentity(ctx context.Context, sess *session.Session) (*auth.Identity, error) {
	user, err := m.userSession.Get(ctx, sess)
	if err != nil || user != nil {
		return user, err
	}
	if m.tokens == nil || m.RecentlyLoggedOut() {
		return nil, nil
	}

	user, err = m.tokens.TokenLogin(ctx, sess)
	if err != nil {
		// A theft response already ran inside the token manager; the
		// request proceeds anonymously either way.
		m.logger.WarnContext(ctx, "token login failed", "error", err)
		return nil, nil
	}
	if user == nil {
		return nil, nil
	}
	if err := m.userSession.Set(sess, user); err != nil {
		return nil, err
	}
	return user, nil
}

// IsLoggedIn reports whether the session has an identity, including via a
// fresh token login.
func (m *Manager) IsLoggedIn(ctx context.Context, sess *session.Session) bool {
	user, err := m.CurrentIdentity(ctx, sess)
	return err == nil && user != nil
}

// RecentlyLoggedOut reports whether the logout marker cookie is present.
func (m *Manager) RecentlyLoggedOut() bool {
	return m.cookies.Get(loggedOutCookie) != ""
}

// ClearLoggedOutMarker removes the logout marker, re-enabling automatic
// logins.
func (m *Manager) ClearLoggedOutMarker() {
	m.cookies.Clear(loggedOutCookie)
}

// CheckForExpiredCredentials logs the session out softly when the active
// strategy reports its external session as lapsed. The local session object
// survives, emptied.
func (m *Manager) CheckForExpiredCredentials(ctx context.Context, req *auth.Request, sess *session.Session) (bool, error) {
	user, err := m.userSession.Get(ctx, sess)
	if err != nil || user == nil {
		return false, err
	}
	strat, _, err := m.activeStrategy(sess)
	if err != nil {
		return false, err
	}
	if !strat.IsExpired(ctx, req) {
		return false, nil
	}
	m.userSession.Clear(sess)
	strat.ResetState(sess)
	sess.Clear()
	return true, nil
}

// ValidateCredentials checks the request's credentials without changing any
// session state. Credential-level rejections read as (false, nil).
func (m *Manager) ValidateCredentials(ctx context.Context, req *auth.Request, sess *session.Session) (bool, error) {
	strat, _, err := m.activeStrategy(sess)
	if err != nil {
		return false, err
	}
	if validator, ok := strat.(ports.CredentialValidator); ok {
		return validator.ValidateCredentials(ctx, req, sess)
	}
	if _, err := strat.Authenticate(ctx, req, sess); err != nil {
		if autherr.IsCredential(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// SessionInitiator returns the external login entry point of the active
// method; "" means the local form.
func (m *Manager) SessionInitiator(ctx context.Context, target string, sess *session.Session) (string, error) {
	strat, _, err := m.activeStrategy(sess)
	if err != nil {
		return "", err
	}
	return strat.SessionInitiator(ctx, target, sess)
}

// GetCsrfToken returns a CSRF token for the session, bounding the number of
// live tokens.
func (m *Manager) GetCsrfToken(sess *session.Session, regenerate bool) (string, error) {
	token, err := m.csrf.Issue(sess, regenerate)
	if err != nil {
		return "", err
	}
	m.csrf.Trim(sess, csrfTokenLimit)
	return token, nil
}

// SelectableOptions lists the method names the user may pick between: the
// composite's options, or just the active method itself.
func (m *Manager) SelectableOptions(sess *session.Session) []string {
	strat, name, err := m.activeStrategy(sess)
	if err != nil {
		return nil
	}
	if provider, ok := strat.(ports.OptionProvider); ok {
		return provider.SelectableOptions()
	}
	return []string{name}
}

// SelectedOption returns the composite's remembered selection, or "".
func (m *Manager) SelectedOption(sess *session.Session) string {
	strat, _, err := m.activeStrategy(sess)
	if err != nil {
		return ""
	}
	if provider, ok := strat.(ports.OptionProvider); ok {
		return provider.SelectedOption(sess)
	}
	return ""
}

// Capabilities returns the active strategy's capability flags with the
// config-level feature gates applied.
func (m *Manager) Capabilities(sess *session.Session) ports.Capabilities {
	strat, _, err := m.activeStrategy(sess)
	if err != nil {
		return ports.Capabilities{}
	}
	caps := strat.Capabilities()
	caps.PasswordChange = caps.PasswordChange && m.cfg.Auth.ChangePassword
	caps.PasswordRecovery = caps.PasswordRecovery && m.cfg.Auth.RecoverPassword
	caps.EmailChange = caps.EmailChange && m.cfg.Auth.ChangeEmail
	return caps
}

// SupportsPersistentLogin reports whether "remember me" is enabled for the
// active method.
func (m *Manager) SupportsPersistentLogin(sess *session.Session) bool {
	return m.cfg.Auth.SupportsPersistentLogin(m.ActiveMethod(sess))
}

// UsernamePolicy returns the active strategy's username requirements.
func (m *Manager) UsernamePolicy(sess *session.Session) (auth.Policy, error) {
	strat, _, err := m.activeStrategy(sess)
	if err != nil {
		return auth.Policy{}, err
	}
	return strat.UsernamePolicy()
}

// PasswordPolicy returns the active strategy's password requirements.
func (m *Manager) PasswordPolicy(sess *session.Session) (auth.Policy, error) {
	strat, _, err := m.activeStrategy(sess)
	if err != nil {
		return auth.Policy{}, err
	}
	return strat.PasswordPolicy()
}

func (m *Manager) activeStrategy(sess *session.Session) (ports.Strategy, string, error) {
	name := m.ActiveMethod(sess)
	strat, err := m.registry.Get(name)
	if err != nil {
		return nil, "", err
	}
	return strat, m.registry.CanonicalName(name), nil
}

// finalizeLogin binds the authenticated identity to the session: stamps the
// login, persists it outside privacy mode, issues the persistent-login token
// when requested, and clears one-shot state.
func (m *Manager) finalizeLogin(ctx context.Context, req *auth.Request, sess *session.Session, method string, user *auth.Identity) error {
	user.LastLogin = m.now()
	user.AuthMethod = strings.ToLower(method)
	if !m.userSession.Privacy() {
		if err := m.userSession.users.Save(ctx, user); err != nil {
			return err
		}
	}

	if m.tokens != nil && req != nil && req.FormValue("remember_me") != "" &&
		m.cfg.Auth.SupportsPersistentLogin(method) {
		if err := m.tokens.CreateToken(ctx, user, sess, req.UserAgent); err != nil {
			// The login itself stands; the user just stays unremembered.
			m.logger.ErrorContext(ctx, "creating login token failed", "error", err)
		}
	}

	if err := m.userSession.Set(sess, user); err != nil {
		return err
	}
	m.csrf.Trim(sess, 0)
	m.cookies.Clear(loggedOutCookie)
	return nil
}

// asAuthError passes user-facing failures through untouched and converts
// anything else into a generic technical failure after logging the detail.
func (m *Manager) asAuthError(ctx context.Context, method string, err error) error {
	if autherr.IsAuth(err) || autherr.IsPolicy(err) || autherr.IsUnsupported(err) {
		return err
	}
	m.logger.ErrorContext(ctx, "authentication failed", "method", method, "error", err)
	return autherr.Technical(err)
}

func (m *Manager) isLegal(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.legal[strings.ToLower(name)]
}

func (m *Manager) makeLegal(name string) {
	if name == "" {
		return
	}
	m.mu.Lock()
	m.legal[strings.ToLower(name)] = true
	m.mu.Unlock()

	// The default method's own options are legal from the start.
	if strat, err := m.registry.Get(name); err == nil {
		if provider, ok := strat.(ports.OptionProvider); ok {
			for _, option := range provider.SelectableOptions() {
				m.mu.Lock()
				legal := m.legal[strings.ToLower(option)]
				m.mu.Unlock()
				if !legal {
					m.makeLegal(option)
				}
			}
		}
	}
}
