package strategy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librarium/discovery-auth/config"
	"github.com/librarium/discovery-auth/internal/domain/auth"
	autherr "github.com/librarium/discovery-auth/internal/errors"
	mockauth "github.com/librarium/discovery-auth/internal/mocks/auth"
	"github.com/librarium/discovery-auth/internal/session"
)

// fakeIssuer serves just enough of the OIDC discovery surface for the
// authorization-code flow to start. The token endpoint always refuses, so
// tests exercise the callback checks that run before the code exchange.
func fakeIssuer(t *testing.T) string {
	t.Helper()

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("GET /.well-known/openid-configuration", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                 srv.URL,
			"authorization_endpoint": srv.URL + "/authorize",
			"token_endpoint":         srv.URL + "/token",
			"jwks_uri":               srv.URL + "/keys",
		})
	})
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	})
	return srv.URL
}

func oidcConfig(issuer string, mutate func(*config.AuthConfig)) *config.AuthConfig {
	cfg := &config.AuthConfig{
		Method: "OIDC",
		OIDC: config.OIDCConfig{
			ClientID:      "catalog",
			ClientSecret:  "hunter2",
			Issuer:        issuer,
			RedirectURL:   "https://catalog.test.example/auth/login",
			Scope:         "openid profile email",
			UsernameClaim: "sub",
		},
	}
	if mutate != nil {
		mutate(cfg)
	}
	return cfg
}

func TestOIDC_SessionInitiator(t *testing.T) {
	t.Parallel()

	o := NewOIDC(oidcConfig(fakeIssuer(t), nil), OIDCOptions{Users: mockauth.NewMemoryIdentityStore()})
	sess := session.New("sid")

	got, err := o.SessionInitiator(context.Background(), "", sess)
	require.NoError(t, err)

	u, err := url.Parse(got)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "/authorize", u.Path)
	assert.Equal(t, "catalog", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "openid profile email", q.Get("scope"))
	assert.NotEmpty(t, q.Get("nonce"))

	// The state round trip is anchored in the session.
	state, ok := sess.Get("OIDC", "state")
	require.True(t, ok)
	assert.Equal(t, state, q.Get("state"))
	_, ok = sess.Get("OIDC", "nonce")
	assert.True(t, ok)
}

func TestOIDC_SessionInitiatorReusesPendingState(t *testing.T) {
	t.Parallel()

	o := NewOIDC(oidcConfig(fakeIssuer(t), nil), OIDCOptions{Users: mockauth.NewMemoryIdentityStore()})
	sess := session.New("sid")

	first, err := o.SessionInitiator(context.Background(), "", sess)
	require.NoError(t, err)

	// Building the URL again while the callback is pending must hand back
	// the same state and nonce, or the provider's echo would never match.
	again, err := o.SessionInitiator(context.Background(), "", sess)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	state, _ := sess.Get("OIDC", "state")
	u, err := url.Parse(again)
	require.NoError(t, err)
	assert.Equal(t, state, u.Query().Get("state"))
}

func TestOIDC_AuthenticateCallbackChecks(t *testing.T) {
	t.Parallel()

	issuer := fakeIssuer(t)

	tests := []struct {
		name     string
		query    map[string]string
		state    string
		wantKind autherr.AuthKind
		errMsg   string
	}{
		{
			name:     "provider reported an error",
			query:    map[string]string{"error": "access_denied"},
			wantKind: autherr.KindDenied,
		},
		{
			name:     "missing code",
			query:    map[string]string{},
			wantKind: autherr.KindBlank,
		},
		{
			name:     "state mismatch",
			query:    map[string]string{"code": "c1", "state": "forged"},
			state:    "expected",
			wantKind: autherr.KindInvalid,
			errMsg:   "state parameter mismatch",
		},
		{
			name:     "no state bound to the session",
			query:    map[string]string{"code": "c1", "state": "anything"},
			wantKind: autherr.KindInvalid,
		},
		{
			name:     "code exchange refused",
			query:    map[string]string{"code": "c1", "state": "expected"},
			state:    "expected",
			wantKind: autherr.KindTechnical,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			o := NewOIDC(oidcConfig(issuer, nil), OIDCOptions{Users: mockauth.NewMemoryIdentityStore()})
			sess := session.New("sid")
			if tt.state != "" {
				sess.Set("OIDC", "state", tt.state)
			}

			req := auth.NewRequest()
			for k, v := range tt.query {
				req.Query.Set(k, v)
			}

			_, err := o.Authenticate(context.Background(), req, sess)
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, autherr.AuthKindOf(err))
			if tt.errMsg != "" {
				assert.Contains(t, err.Error(), tt.errMsg)
			}
		})
	}
}

func TestOIDC_AuthenticateConsumesState(t *testing.T) {
	t.Parallel()

	o := NewOIDC(oidcConfig(fakeIssuer(t), nil), OIDCOptions{Users: mockauth.NewMemoryIdentityStore()})
	sess := session.New("sid")
	sess.Set("OIDC", "state", "expected")
	sess.Set("OIDC", "nonce", "n1")

	req := auth.NewRequest()
	req.Query.Set("code", "c1")
	req.Query.Set("state", "expected")

	_, err := o.Authenticate(context.Background(), req, sess)
	require.Error(t, err, "the fake token endpoint refuses the exchange")

	// Replaying the callback must fail the state check outright.
	_, ok := sess.Get("OIDC", "state")
	assert.False(t, ok)
	_, ok = sess.Get("OIDC", "nonce")
	assert.False(t, ok)
}

func TestOIDC_Logout(t *testing.T) {
	t.Parallel()

	o := NewOIDC(oidcConfig("https://op.test.example", func(cfg *config.AuthConfig) {
		cfg.OIDC.LogoutURL = "https://op.test.example/endsession"
	}), OIDCOptions{Users: mockauth.NewMemoryIdentityStore()})

	assert.Equal(t,
		"https://op.test.example/endsession?post_logout_redirect_uri=https%3A%2F%2Fcatalog.test.example%2F",
		o.Logout("https://catalog.test.example/", nil))

	plain := NewOIDC(oidcConfig("https://op.test.example", nil), OIDCOptions{Users: mockauth.NewMemoryIdentityStore()})
	assert.Equal(t, "/home", plain.Logout("/home", nil))
}

func TestOIDC_ConfigValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*config.AuthConfig)
	}{
		{name: "missing client id", mutate: func(cfg *config.AuthConfig) { cfg.OIDC.ClientID = "" }},
		{name: "missing client secret", mutate: func(cfg *config.AuthConfig) { cfg.OIDC.ClientSecret = "" }},
		{name: "missing issuer", mutate: func(cfg *config.AuthConfig) { cfg.OIDC.Issuer = "" }},
		{name: "missing redirect URL", mutate: func(cfg *config.AuthConfig) { cfg.OIDC.RedirectURL = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			o := NewOIDC(oidcConfig("https://op.test.example", tt.mutate), OIDCOptions{Users: mockauth.NewMemoryIdentityStore()})
			_, err := o.SessionInitiator(context.Background(), "", session.New("sid"))
			require.Error(t, err)
			assert.True(t, autherr.IsConfig(err))
		})
	}
}
