package config

import (
	"strings"
	"time"
)

// AuthConfig groups all authentication-related configuration.
//
// Method selects the active strategy by name; the composite strategies
// (ChoiceAuth, MultiAuth) carry their own ordered method lists.
type AuthConfig struct {
	// Method is the configured default authentication method.
	Method string `env:"AUTH_METHOD" envDefault:"Database"`

	// Privacy enables privacy mode: the session carries a snapshot of the
	// identity instead of a durable user id reference.
	Privacy bool `env:"AUTH_PRIVACY" envDefault:"false"`

	// HashPasswords controls bcrypt hashing for Database authentication.
	HashPasswords bool `env:"AUTH_HASH_PASSWORDS" envDefault:"true"`

	// VerifyEmail requires a verified email address before login succeeds.
	VerifyEmail bool `env:"AUTH_VERIFY_EMAIL" envDefault:"false"`

	// ChangeEmail / ChangePassword / RecoverPassword gate the corresponding
	// self-service features on top of strategy capabilities.
	ChangeEmail     bool `env:"AUTH_CHANGE_EMAIL"     envDefault:"false"`
	ChangePassword  bool `env:"AUTH_CHANGE_PASSWORD"  envDefault:"false"`
	RecoverPassword bool `env:"AUTH_RECOVER_PASSWORD" envDefault:"false"`

	// LegalDomains restricts self-registration to the listed email domains.
	// Empty means all domains are allowed.
	LegalDomains []string `env:"AUTH_LEGAL_DOMAINS" envSeparator:","`

	// PersistentLogin lists the methods (comma separated, case insensitive)
	// for which "remember me" login tokens may be issued.
	PersistentLogin []string `env:"AUTH_PERSISTENT_LOGIN" envSeparator:","`

	// PersistentLoginLifetime is the login token lifetime in days.
	PersistentLoginLifetime int `env:"AUTH_PERSISTENT_LOGIN_LIFETIME" envDefault:"14"`

	// LenientTokenRotation keeps the just-used token row alive during
	// rotation so an in-flight parallel request does not trip theft
	// detection (e.g. a browser double-submission).
	LenientTokenRotation bool `env:"AUTH_LENIENT_TOKEN_ROTATION" envDefault:"true"`

	// SendLoginWarnings enables the token-theft warning notification.
	SendLoginWarnings bool `env:"AUTH_SEND_LOGIN_WARNINGS" envDefault:"true"`

	// Username and Password carry the credential policies applied by
	// strategies that manage local accounts.
	Username PolicyConfig `envPrefix:"AUTH_USERNAME_"`
	Password PolicyConfig `envPrefix:"AUTH_PASSWORD_"`

	// Per-strategy settings bags.
	LDAP           LDAPConfig           `envPrefix:"LDAP_"`
	CAS            CASConfig            `envPrefix:"CAS_"`
	Shibboleth     ShibbolethConfig     `envPrefix:"SHIB_"`
	OIDC           OIDCConfig           `envPrefix:"OIDC_"`
	ILS            ILSConfig            `envPrefix:"ILS_"`
	SIP2           SIP2Config           `envPrefix:"SIP2_"`
	PasswordAccess PasswordAccessConfig `envPrefix:"PASSWORD_ACCESS_"`
	SimulatedSSO   SimulatedSSOConfig   `envPrefix:"SIMULATED_SSO_"`
	Choice         ChoiceConfig         `envPrefix:"CHOICE_"`
	Multi          MultiConfig          `envPrefix:"MULTI_"`

	// EmailAuth configures email-link authentication.
	EmailAuth EmailAuthConfig `envPrefix:"EMAIL_AUTH_"`
}

// Sanitize normalizes list-valued settings.
func (c *AuthConfig) Sanitize() {
	c.LegalDomains = trimAll(c.LegalDomains)
	c.PersistentLogin = trimAll(c.PersistentLogin)
	c.Choice.Order = trimAll(c.Choice.Order)
	c.Multi.Order = trimAll(c.Multi.Order)
	if c.PersistentLoginLifetime <= 0 {
		c.PersistentLoginLifetime = 14
	}
}

// SupportsPersistentLogin reports whether persistent login is enabled for the
// named method (case insensitive).
func (c *AuthConfig) SupportsPersistentLogin(method string) bool {
	for _, m := range c.PersistentLogin {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

// PolicyConfig describes length and pattern constraints for a credential
// field. Pattern may be one of the canned tokens "numeric" or "alphanumeric",
// or a regular expression.
type PolicyConfig struct {
	MinLength int    `env:"MIN_LENGTH"`
	MaxLength int    `env:"MAX_LENGTH"`
	Pattern   string `env:"PATTERN"`
	Hint      string `env:"HINT"`
}

// LDAPConfig contains directory settings for LDAP authentication.
type LDAPConfig struct {
	Host         string `env:"HOST"`
	Port         int    `env:"PORT" envDefault:"389"`
	BaseDN       string `env:"BASEDN"`
	UsernameAttr string `env:"USERNAME_ATTR" envDefault:"uid"`
	BindUsername string `env:"BIND_USERNAME"`
	BindPassword string `env:"BIND_PASSWORD"`
	DisableTLS   bool   `env:"DISABLE_TLS" envDefault:"false"`

	// Separator joins multi-valued attributes; empty keeps the first value.
	Separator string `env:"SEPARATOR"`

	// Attribute names to map into the identity record.
	FirstNameAttr   string `env:"FIRSTNAME_ATTR"`
	LastNameAttr    string `env:"LASTNAME_ATTR"`
	EmailAttr       string `env:"EMAIL_ATTR"`
	CatUsernameAttr string `env:"CAT_USERNAME_ATTR"`
	CatPasswordAttr string `env:"CAT_PASSWORD_ATTR"`
}

// CASConfig contains settings for CAS authentication.
type CASConfig struct {
	Server  string `env:"SERVER"`
	Port    int    `env:"PORT" envDefault:"443"`
	Context string `env:"CONTEXT" envDefault:"/cas"`
	Login   string `env:"LOGIN"`
	Logout  string `env:"LOGOUT"`

	// Target overrides the post-login return URL.
	Target string `env:"TARGET"`

	// UsernameAttr selects an attribute for the username; empty uses the
	// CAS principal.
	UsernameAttr string `env:"USERNAME_ATTR"`

	// Attribute names to map into the identity record.
	FirstNameAttr   string `env:"FIRSTNAME_ATTR"`
	LastNameAttr    string `env:"LASTNAME_ATTR"`
	EmailAttr       string `env:"EMAIL_ATTR"`
	CatUsernameAttr string `env:"CAT_USERNAME_ATTR"`
	CatPasswordAttr string `env:"CAT_PASSWORD_ATTR"`
}

// ShibbolethConfig contains settings for Shibboleth/SAML authentication.
// Attribute values are asserted by the SP layer upstream; the core trusts
// them as-is.
type ShibbolethConfig struct {
	Login  string `env:"LOGIN"`
	Logout string `env:"LOGOUT"`
	Target string `env:"TARGET"`

	// UseHeaders reads attributes from request headers instead of server
	// environment attributes.
	UseHeaders bool `env:"USE_HEADERS" envDefault:"false"`

	UsernameAttr string `env:"USERNAME_ATTR"`

	// ProviderID pins the session initiator to a specific IdP entity.
	ProviderID string `env:"PROVIDER_ID"`

	// IdPServerParam is the attribute carrying the asserting IdP's entity id.
	IdPServerParam string `env:"IDP_SERVER_PARAM" envDefault:"Shib-Identity-Provider"`

	// SessionID names the attribute carrying the SP session id; when set,
	// its disappearance marks the login as expired.
	SessionID           string `env:"SESSION_ID"`
	CheckExpiredSession bool   `env:"CHECK_EXPIRED_SESSION" envDefault:"true"`

	// Required lists attribute=regex pairs that must match for login.
	Required []string `env:"REQUIRED" envSeparator:";"`

	// Prefix namespaces catalog usernames per institution.
	Prefix string `env:"PREFIX"`

	FirstNameAttr   string `env:"FIRSTNAME_ATTR"`
	LastNameAttr    string `env:"LASTNAME_ATTR"`
	EmailAttr       string `env:"EMAIL_ATTR"`
	CatUsernameAttr string `env:"CAT_USERNAME_ATTR"`
	CatPasswordAttr string `env:"CAT_PASSWORD_ATTR"`
}

// OIDCConfig contains OAuth2/OpenID Connect settings.
type OIDCConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	Issuer       string `env:"ISSUER"`
	RedirectURL  string `env:"REDIRECT_URL"`
	Scope        string `env:"SCOPE" envDefault:"openid profile email"`
	LogoutURL    string `env:"LOGOUT_URL"`

	// UsernameClaim selects the claim used as the account username.
	UsernameClaim string `env:"USERNAME_CLAIM" envDefault:"sub"`
}

// ILSConfig contains settings for catalog (ILS) backed authentication.
type ILSConfig struct {
	// LoginMethod is one of "password", "email" or "username".
	LoginMethod string `env:"LOGIN_METHOD" envDefault:"password"`

	// UsernameField selects the patron field stored as the account username.
	UsernameField string `env:"USERNAME_FIELD" envDefault:"cat_username"`
}

// SIP2Config contains settings for SIP2 self-check authentication.
type SIP2Config struct {
	Host string `env:"HOST"`
	Port int    `env:"PORT" envDefault:"6001"`
}

// PasswordAccessConfig maps a shared access password to a fixed account.
type PasswordAccessConfig struct {
	// AccessUser is the username of the shared account.
	AccessUser string `env:"USER" envDefault:"guest"`

	// AccessPassword is the shared password; comparison is constant time.
	AccessPassword string `env:"PASSWORD"`
}

// SimulatedSSOConfig configures the fake single sign-on strategy used for
// development and integration testing.
type SimulatedSSOConfig struct {
	Username  string `env:"USERNAME"   envDefault:"fakeuser1"`
	FirstName string `env:"FIRSTNAME"  envDefault:"Fake"`
	LastName  string `env:"LASTNAME"   envDefault:"User"`
	Email     string `env:"EMAIL"      envDefault:"fake@example.com"`

	// InitiatorURL is returned as the simulated SSO entry point.
	InitiatorURL string `env:"INITIATOR_URL"`
}

// ChoiceConfig configures the user-selectable composite strategy.
type ChoiceConfig struct {
	// Order lists the offered strategy names.
	Order []string `env:"ORDER" envSeparator:","`
}

// MultiConfig configures the chained-fallback composite strategy.
type MultiConfig struct {
	// Order lists the strategies tried in sequence.
	Order []string `env:"ORDER" envSeparator:","`

	// Filters lists field transforms applied to the raw input before
	// dispatch, as field:op pairs (e.g. "username:uppercase").
	Filters []string `env:"FILTERS" envSeparator:","`
}

// EmailAuthConfig configures email-link authentication.
type EmailAuthConfig struct {
	// SigningKey signs login-link tokens. Required when email auth is used.
	SigningKey string `env:"SIGNING_KEY"`

	// LinkLifetime bounds how long a login link stays valid.
	LinkLifetime time.Duration `env:"LINK_LIFETIME" envDefault:"15m"`

	// Subject for login link messages.
	Subject string `env:"SUBJECT" envDefault:"Sign-in link"`
}

func trimAll(in []string) []string {
	out := in[:0]
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
