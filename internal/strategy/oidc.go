package strategy

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/librarium/discovery-auth/config"
	"github.com/librarium/discovery-auth/internal/domain/auth"
	autherr "github.com/librarium/discovery-auth/internal/errors"
	"github.com/librarium/discovery-auth/internal/ports"
	"github.com/librarium/discovery-auth/internal/session"
)

// oidcNS is the session namespace carrying the state and nonce across the
// authorization-code round trip.
const oidcNS = "OIDC"

// OIDC authenticates through an OpenID Connect provider using the
// authorization code flow. The provider is discovered lazily from the issuer
// URL on first use.
type OIDC struct {
	base
	users  ports.IdentityStore
	logger *slog.Logger

	pmu      sync.Mutex
	provider *oidc.Provider
	oauth    *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// OIDCOptions configures an OIDC strategy.
type OIDCOptions struct {
	Users  ports.IdentityStore
	Logger *slog.Logger
}

// NewOIDC creates the OpenID Connect strategy.
func NewOIDC(cfg *config.AuthConfig, opts OIDCOptions) *OIDC {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &OIDC{
		base:   newBase("OIDC", cfg),
		users:  opts.Users,
		logger: logger.With("component", "auth.oidc"),
	}
}

// SetConfig also drops the discovered provider so the next use rediscovers
// against the new issuer.
func (o *OIDC) SetConfig(cfg *config.AuthConfig) {
	o.base.SetConfig(cfg)
	o.pmu.Lock()
	o.provider, o.oauth, o.verifier = nil, nil, nil
	o.pmu.Unlock()
}

func (o *OIDC) validate(cfg *config.AuthConfig) error {
	c := cfg.OIDC
	if c.ClientID == "" || c.ClientSecret == "" || c.Issuer == "" || c.RedirectURL == "" {
		return autherr.Config("OIDC: client_id, client_secret, issuer and redirect_url are required")
	}
	return nil
}

// ensure discovers the provider endpoints once per configuration.
func (o *OIDC) ensure(ctx context.Context, cfg *config.AuthConfig) (*oauth2.Config, *oidc.IDTokenVerifier, error) {
	o.pmu.Lock()
	defer o.pmu.Unlock()
	if o.provider == nil {
		provider, err := oidc.NewProvider(ctx, cfg.OIDC.Issuer)
		if err != nil {
			return nil, nil, autherr.WrapConfig(err, "OIDC: provider discovery failed")
		}
		o.provider = provider
		o.oauth = &oauth2.Config{
			ClientID:     cfg.OIDC.ClientID,
			ClientSecret: cfg.OIDC.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  cfg.OIDC.RedirectURL,
			Scopes:       splitScopes(cfg.OIDC.Scope),
		}
		o.verifier = provider.Verifier(&oidc.Config{ClientID: cfg.OIDC.ClientID})
	}
	return o.oauth, o.verifier, nil
}

// SessionInitiator starts the authorization code flow, binding state and
// nonce values to the session. A pair already pending in the session is
// reused, so building the redirect URL again while a callback is in flight
// does not invalidate the values the provider will echo back.
func (o *OIDC) SessionInitiator(ctx context.Context, _ string, sess *session.Session) (string, error) {
	cfg, err := o.checkedConfig(o.validate)
	if err != nil {
		return "", err
	}
	oauth, _, err := o.ensure(ctx, cfg)
	if err != nil {
		return "", err
	}

	state, ok := sess.Get(oidcNS, "state")
	if !ok || state == "" {
		if state, err = randomHex(16); err != nil {
			return "", err
		}
		sess.Set(oidcNS, "state", state)
	}
	nonce, ok := sess.Get(oidcNS, "nonce")
	if !ok || nonce == "" {
		if nonce, err = randomHex(16); err != nil {
			return "", err
		}
		sess.Set(oidcNS, "nonce", nonce)
	}

	return oauth.AuthCodeURL(state, oidc.Nonce(nonce)), nil
}

func (o *OIDC) Authenticate(ctx context.Context, req *auth.Request, sess *session.Session) (*auth.Identity, error) {
	cfg, err := o.checkedConfig(o.validate)
	if err != nil {
		return nil, err
	}
	oauth, verifier, err := o.ensure(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if reason := req.QueryValue("error"); reason != "" {
		return nil, autherr.Denied("sign-in was rejected by the identity provider")
	}
	code := req.QueryValue("code")
	if code == "" {
		return nil, autherr.Blank()
	}

	wantState, ok := sess.Get(oidcNS, "state")
	if !ok || req.QueryValue("state") != wantState {
		return nil, autherr.NewAuth(autherr.KindInvalid, "state parameter mismatch")
	}
	wantNonce, _ := sess.Get(oidcNS, "nonce")
	o.ResetState(sess)

	token, err := oauth.Exchange(ctx, code)
	if err != nil {
		return nil, autherr.Technical(err)
	}
	rawID, ok := token.Extra("id_token").(string)
	if !ok || rawID == "" {
		return nil, autherr.Adminf("provider returned no id_token")
	}
	idToken, err := verifier.Verify(ctx, rawID)
	if err != nil {
		return nil, autherr.NewAuth(autherr.KindInvalid, "id_token verification failed")
	}
	if idToken.Nonce != wantNonce {
		return nil, autherr.NewAuth(autherr.KindInvalid, "nonce mismatch")
	}

	var claims map[string]any
	if err := idToken.Claims(&claims); err != nil {
		return nil, autherr.Technical(err)
	}
	username := stringClaim(claims, cfg.OIDC.UsernameClaim)
	if username == "" {
		return nil, autherr.Adminf("provider asserted no %q claim", cfg.OIDC.UsernameClaim)
	}

	return upsertIdentity(ctx, o.users, username, func(user *auth.Identity) {
		if v := stringClaim(claims, "given_name"); v != "" {
			user.FirstName = v
		}
		if v := stringClaim(claims, "family_name"); v != "" {
			user.LastName = v
		}
		if v := stringClaim(claims, "email"); v != "" {
			user.Email = v
		}
	})
}

// Logout routes through the provider's end-session endpoint when configured.
func (o *OIDC) Logout(returnURL string, _ *session.Session) string {
	cfg := o.config()
	if cfg == nil || cfg.OIDC.LogoutURL == "" {
		return returnURL
	}
	return cfg.OIDC.LogoutURL + "?post_logout_redirect_uri=" + url.QueryEscape(returnURL)
}

func (o *OIDC) ResetState(sess *session.Session) {
	sess.Unset(oidcNS, "state")
	sess.Unset(oidcNS, "nonce")
}

func splitScopes(scope string) []string {
	var out []string
	for _, s := range strings.Fields(scope) {
		if s == oidc.ScopeOpenID {
			// Always requested; keep the list deduplicated.
			continue
		}
		out = append(out, s)
	}
	return append([]string{oidc.ScopeOpenID}, out...)
}

func stringClaim(claims map[string]any, name string) string {
	v, _ := claims[name].(string)
	return v
}

func randomHex(bytes int) (string, error) {
	buf := make([]byte, bytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
