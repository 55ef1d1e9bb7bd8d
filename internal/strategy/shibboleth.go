package strategy

import (
	"context"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/librarium/discovery-auth/config"
	"github.com/librarium/discovery-auth/internal/domain/auth"
	autherr "github.com/librarium/discovery-auth/internal/errors"
	"github.com/librarium/discovery-auth/internal/ports"
	"github.com/librarium/discovery-auth/internal/session"
)

// shibSessionNS is the session namespace holding the SP session id captured
// at login time.
const shibSessionNS = "Shibboleth"

// Shibboleth authenticates from attributes asserted by a SAML service
// provider sitting in front of the application. The SP has already verified
// the assertion; this strategy only reads the released attributes, either
// from server environment attributes or from request headers.
type Shibboleth struct {
	base
	users  ports.IdentityStore
	logger *slog.Logger
}

// ShibbolethOptions configures a Shibboleth strategy.
type ShibbolethOptions struct {
	Users  ports.IdentityStore
	Logger *slog.Logger
}

// NewShibboleth creates the SAML SP-backed strategy.
func NewShibboleth(cfg *config.AuthConfig, opts ShibbolethOptions) *Shibboleth {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Shibboleth{
		base:   newBase("Shibboleth", cfg),
		users:  opts.Users,
		logger: logger.With("component", "auth.shibboleth"),
	}
}

func (s *Shibboleth) validate(cfg *config.AuthConfig) error {
	switch {
	case cfg.Shibboleth.Login == "":
		return autherr.Config("Shibboleth: login URL is required")
	case cfg.Shibboleth.UsernameAttr == "":
		return autherr.Config("Shibboleth: username attribute is required")
	}
	for _, rule := range cfg.Shibboleth.Required {
		if !strings.Contains(rule, "=") {
			return autherr.Configf("Shibboleth: malformed required attribute rule %q", rule)
		}
	}
	return nil
}

func (s *Shibboleth) Authenticate(ctx context.Context, req *auth.Request, sess *session.Session) (*auth.Identity, error) {
	cfg, err := s.checkedConfig(s.validate)
	if err != nil {
		return nil, err
	}
	shib := cfg.Shibboleth

	for _, rule := range shib.Required {
		name, pattern, _ := strings.Cut(rule, "=")
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, autherr.Configf("Shibboleth: invalid rule pattern %q: %v", pattern, err)
		}
		if !re.MatchString(req.Attribute(name, shib.UseHeaders)) {
			return nil, autherr.Denied("required attribute did not match")
		}
	}

	username := req.Attribute(shib.UsernameAttr, shib.UseHeaders)
	if username == "" {
		return nil, autherr.Adminf("identity provider asserted no username")
	}

	user, err := upsertIdentity(ctx, s.users, username, func(user *auth.Identity) {
		for field, attr := range map[string]string{
			"firstname":    shib.FirstNameAttr,
			"lastname":     shib.LastNameAttr,
			"email":        shib.EmailAttr,
			"cat_username": shib.CatUsernameAttr,
			"cat_password": shib.CatPasswordAttr,
		} {
			if attr == "" {
				continue
			}
			value := req.Attribute(attr, shib.UseHeaders)
			if value == "" {
				continue
			}
			if field == "cat_username" && shib.Prefix != "" {
				value = shib.Prefix + "." + value
			}
			assign(user, field, value)
		}
	})
	if err != nil {
		return nil, err
	}

	// Remember the SP session so expiry checks and single logout can refer
	// back to it.
	if shib.SessionID != "" {
		if id := req.Attribute(shib.SessionID, shib.UseHeaders); id != "" {
			sess.Set(shibSessionNS, "session_id", id)
		}
	}
	return user, nil
}

// IsExpired reports the SP session as lapsed when the session attribute the
// SP normally asserts has disappeared from the request.
func (s *Shibboleth) IsExpired(_ context.Context, req *auth.Request) bool {
	cfg := s.config()
	if cfg == nil {
		return false
	}
	shib := cfg.Shibboleth
	if !shib.CheckExpiredSession || shib.SessionID == "" {
		return false
	}
	return req.Attribute(shib.SessionID, shib.UseHeaders) == ""
}

// SessionInitiator returns the SP login handler URL.
func (s *Shibboleth) SessionInitiator(_ context.Context, target string, _ *session.Session) (string, error) {
	cfg, err := s.checkedConfig(s.validate)
	if err != nil {
		return "", err
	}
	shib := cfg.Shibboleth
	if target == "" {
		target = shib.Target
	}
	initiator := shib.Login + "?target=" + url.QueryEscape(taggedTarget(target, "Shibboleth"))
	if shib.ProviderID != "" {
		initiator += "&entityID=" + url.QueryEscape(shib.ProviderID)
	}
	return initiator, nil
}

// Logout routes through the SP logout handler when one is configured.
func (s *Shibboleth) Logout(returnURL string, sess *session.Session) string {
	sess.Unset(shibSessionNS, "session_id")
	cfg := s.config()
	if cfg == nil || cfg.Shibboleth.Logout == "" {
		return returnURL
	}
	return cfg.Shibboleth.Logout + "?return=" + url.QueryEscape(returnURL)
}

// taggedTarget appends the method tag that routes the callback request back
// to the issuing strategy.
func taggedTarget(target, method string) string {
	sep := "?"
	if u, err := url.Parse(target); err == nil && u.RawQuery != "" {
		sep = "&"
	}
	return target + sep + "auth_method=" + method
}
