// Package ports defines the interfaces between the authentication core and
// its adapters. The service layer depends only on these contracts; concrete
// implementations live under internal/adapters and internal/strategy.
package ports

import (
	"context"
	"time"

	"github.com/librarium/discovery-auth/config"
	"github.com/librarium/discovery-auth/internal/domain/auth"
	"github.com/librarium/discovery-auth/internal/session"
)

// Capabilities reports which optional account operations a strategy supports.
// The manager consults these before exposing account-management flows.
type Capabilities struct {
	// Creation indicates the strategy can create new accounts.
	Creation bool
	// PasswordChange indicates the strategy can change an existing password.
	PasswordChange bool
	// PasswordRecovery indicates password recovery mails may be offered.
	PasswordRecovery bool
	// EmailChange indicates the strategy allows changing the account email.
	EmailChange bool
	// ConnectingCards indicates library cards can be connected to accounts.
	ConnectingCards bool
}

// Strategy is the contract every authentication method implements.
//
// Strategies are long-lived and must be safe for concurrent use; all
// per-request state travels through the request and session arguments.
// Configuration is validated lazily: each operation checks its settings on
// first use and reports a *errors.ConfigError when they are unusable.
type Strategy interface {
	// SetConfig replaces the strategy configuration. Any prior validation
	// result is discarded so the next operation re-validates.
	SetConfig(cfg *config.AuthConfig)

	// Authenticate validates the credentials carried by req and returns the
	// established identity. Credential failures are reported as
	// *errors.AuthError; anything else indicates a technical fault.
	Authenticate(ctx context.Context, req *auth.Request, sess *session.Session) (*auth.Identity, error)

	// Create provisions a new account from the request parameters.
	// Strategies without Capabilities().Creation return an UnsupportedError.
	Create(ctx context.Context, req *auth.Request, sess *session.Session) (*auth.Identity, error)

	// UpdatePassword changes the password for the user identified by the
	// request. Strategies without Capabilities().PasswordChange return an
	// UnsupportedError.
	UpdatePassword(ctx context.Context, req *auth.Request, sess *session.Session) (*auth.Identity, error)

	// SessionInitiator returns the external URL that starts a login, with
	// target as the return destination. An empty URL means the method uses
	// the local login form.
	SessionInitiator(ctx context.Context, target string, sess *session.Session) (string, error)

	// Logout gives the strategy a chance to redirect the logout flow, for
	// example through an SSO sign-out endpoint. It returns url unchanged
	// when no external logout is needed.
	Logout(url string, sess *session.Session) string

	// IsExpired reports whether the externally managed session backing the
	// current login has lapsed.
	IsExpired(ctx context.Context, req *auth.Request) bool

	// NeedsCsrfCheck reports whether the request must carry a valid CSRF
	// token. Externally initiated flows (SSO callbacks) opt out.
	NeedsCsrfCheck(req *auth.Request, sess *session.Session) bool

	// DelegateAuthMethod returns the name of the method this request should
	// be handled by instead, or "" to handle it here. Composite strategies
	// use this to route requests to the user's chosen method.
	DelegateAuthMethod(req *auth.Request, sess *session.Session) string

	// PreLoginCheck runs before authentication starts and may veto the
	// attempt, e.g. when a composite needs a method selection first.
	PreLoginCheck(req *auth.Request, sess *session.Session) error

	// ResetState clears any session state the strategy accumulated, such as
	// a remembered method choice.
	ResetState(sess *session.Session)

	// Capabilities reports the optional operations this strategy supports.
	Capabilities() Capabilities

	// UsernamePolicy returns the username requirements to enforce and
	// advertise. A zero policy means no restrictions.
	UsernamePolicy() (auth.Policy, error)

	// PasswordPolicy returns the password requirements to enforce and
	// advertise. A zero policy means no restrictions.
	PasswordPolicy() (auth.Policy, error)
}

// OptionProvider is implemented by composite strategies that expose a set of
// selectable sub-methods.
type OptionProvider interface {
	// SelectableOptions lists the method names a user may choose between.
	SelectableOptions() []string
	// SelectedOption returns the currently remembered choice, or "".
	SelectedOption(sess *session.Session) string
}

// CredentialValidator is implemented by strategies that can check credentials
// without establishing a login. Used by composites to probe sub-methods.
type CredentialValidator interface {
	// ValidateCredentials reports whether the request carries valid
	// credentials. Credential failures yield (false, nil); technical faults
	// are returned as errors.
	ValidateCredentials(ctx context.Context, req *auth.Request, sess *session.Session) (bool, error)
}

// CardConnector is implemented by strategies that can attach a library card
// from the request to an already logged-in user.
type CardConnector interface {
	ConnectLibraryCard(ctx context.Context, req *auth.Request, user *auth.Identity) error
}

// IdentityStore persists user accounts.
//
// Lookup methods return (nil, nil) when no matching account exists; errors
// are reserved for storage faults.
type IdentityStore interface {
	FindByID(ctx context.Context, id int64) (*auth.Identity, error)
	FindByUsername(ctx context.Context, username string) (*auth.Identity, error)
	FindByEmail(ctx context.Context, email string) (*auth.Identity, error)
	// FindByCatalogID looks an account up by its catalog username.
	FindByCatalogID(ctx context.Context, catUsername string) (*auth.Identity, error)

	// Create inserts a new account and fills in its generated ID. Username
	// and email uniqueness violations surface as *errors.AuthError values
	// with KindInvalid.
	Create(ctx context.Context, user *auth.Identity) error

	// Save writes the mutable fields of an existing account.
	Save(ctx context.Context, user *auth.Identity) error

	// UpdateEmail changes the account email, tracking verification state.
	// An unverified change is staged as the pending email instead.
	UpdateEmail(ctx context.Context, user *auth.Identity, email string, verified bool) error
}

// LoginTokenStore persists persistent-login tokens. A token belongs to a
// series; rotation replaces the token value while the series survives.
type LoginTokenStore interface {
	// Match looks up the token for (series, userID) and compares token
	// hashes. A present series with a mismatched token is reported as a
	// *errors.TokenError, the signal for possible cookie theft. A missing
	// series returns (nil, nil).
	Match(ctx context.Context, userID int64, series, token string) (*auth.LoginToken, error)

	Create(ctx context.Context, token *auth.LoginToken) error
	BySeries(ctx context.Context, series string) ([]*auth.LoginToken, error)
	ByUser(ctx context.Context, userID int64) ([]*auth.LoginToken, error)

	// DeleteBySeries removes tokens in the series except the one identified
	// by keepID; keepID 0 removes the whole series.
	DeleteBySeries(ctx context.Context, series string, keepID int64) error
	DeleteByUser(ctx context.Context, userID int64) error
}

// SessionStore loads and persists server-side sessions.
type SessionStore interface {
	// Load fetches the session with the given ID, returning a fresh empty
	// session when none is stored.
	Load(ctx context.Context, id string) (*session.Session, error)
	Save(ctx context.Context, sess *session.Session) error
	Destroy(ctx context.Context, id string) error
}

// CookieStore abstracts cookie access for the current request/response pair.
type CookieStore interface {
	// Get returns the cookie value, or "" when absent.
	Get(name string) string
	Set(name, value string, expires time.Time, httpOnly bool)
	Clear(name string)
}

// CsrfValidator manages the session-bound list of CSRF tokens.
type CsrfValidator interface {
	// Issue returns a token for the session, minting a new one when
	// regenerate is true or none exists yet.
	Issue(sess *session.Session, regenerate bool) (string, error)
	// IsValid reports whether token is one of the session's live tokens.
	IsValid(sess *session.Session, token string) bool
	// Trim discards all but the newest max tokens.
	Trim(sess *session.Session, max int)
}

// Notifier delivers user-facing mail such as login warnings.
type Notifier interface {
	Send(ctx context.Context, to, from, subject, body string) error
}

// ClientInfoResolver derives browser and platform names from a User-Agent
// string, for labelling persistent-login devices.
type ClientInfoResolver interface {
	Lookup(userAgent string) (auth.ClientInfo, error)
}

// DirectoryClient binds and searches an LDAP directory. Invalid credentials
// are reported as *errors.AuthError with KindInvalid; the attribute map keys
// are lowercase attribute names.
type DirectoryClient interface {
	AuthenticateUser(ctx context.Context, username, password string) (map[string][]string, error)
}

// TicketValidator validates CAS service tickets against the CAS server.
type TicketValidator interface {
	// Validate checks ticket for service and returns the asserted username
	// and released attributes. Rejected tickets are reported as
	// *errors.AuthError with KindInvalid.
	Validate(ctx context.Context, ticket, service string) (string, map[string]string, error)
}

// Catalog is the slice of the ILS driver surface the authentication core
// needs: patron credential checks and catalog password management.
type Catalog interface {
	// PatronLogin verifies catalog credentials. Bad credentials return
	// (nil, nil); a non-nil patron means the login succeeded.
	PatronLogin(ctx context.Context, username, password string) (*auth.Patron, error)

	// ChangePassword updates the catalog password for the given patron.
	ChangePassword(ctx context.Context, catUsername, oldPassword, newPassword string) error

	// PasswordPolicy returns the catalog's password rules when it publishes
	// any; ok is false when the catalog has no opinion.
	PasswordPolicy(ctx context.Context) (policy auth.Policy, ok bool, err error)
}

// EmailLinkAuthenticator runs the email login-link flow: a signed short-lived
// link is mailed out, and presenting it back completes authentication.
type EmailLinkAuthenticator interface {
	// SendLoginLink mails a login link to the address, embedding payload so
	// the consuming request can reconstruct the account data. The link is
	// bound to the session that requested it.
	SendLoginLink(ctx context.Context, sess *session.Session, email string, payload map[string]string) error

	// Authenticate consumes a link token and returns the embedded payload.
	// Expired, forged or cross-session tokens are reported as
	// *errors.AuthError with KindInvalid.
	Authenticate(ctx context.Context, sess *session.Session, token string) (map[string]string, error)
}

// SelfCheckClient speaks the SIP2 patron-status exchange with a self-check
// endpoint.
type SelfCheckClient interface {
	// Login runs the patron login exchange. Bad credentials return
	// (nil, nil); a non-nil patron means the endpoint accepted them.
	Login(ctx context.Context, username, password string) (*auth.Patron, error)
}
