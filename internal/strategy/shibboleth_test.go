package strategy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librarium/discovery-auth/config"
	"github.com/librarium/discovery-auth/internal/domain/auth"
	autherr "github.com/librarium/discovery-auth/internal/errors"
	mockauth "github.com/librarium/discovery-auth/internal/mocks/auth"
	"github.com/librarium/discovery-auth/internal/session"
)

func shibConfig(mutate func(*config.AuthConfig)) *config.AuthConfig {
	cfg := &config.AuthConfig{
		Method: "Shibboleth",
		Shibboleth: config.ShibbolethConfig{
			Login:               "https://catalog.test.example/Shibboleth.sso/Login",
			Target:              "https://catalog.test.example/auth/login",
			UsernameAttr:        "eppn",
			FirstNameAttr:       "givenName",
			LastNameAttr:        "sn",
			EmailAttr:           "mail",
			SessionID:           "Shib-Session-ID",
			CheckExpiredSession: true,
		},
	}
	if mutate != nil {
		mutate(cfg)
	}
	return cfg
}

func shibRequest(attrs map[string]string) *auth.Request {
	req := auth.NewRequest()
	for name, value := range attrs {
		req.Attributes[name] = value
	}
	return req
}

func TestShibboleth_Authenticate(t *testing.T) {
	t.Parallel()

	users := mockauth.NewMemoryIdentityStore()
	s := NewShibboleth(shibConfig(nil), ShibbolethOptions{Users: users})
	sess := session.New("sid")

	got, err := s.Authenticate(context.Background(), shibRequest(map[string]string{
		"eppn":            "alice@campus.edu",
		"givenName":       "Alice",
		"sn":              "Liddell",
		"mail":            "alice@test.example",
		"Shib-Session-ID": "_abc123",
	}), sess)
	require.NoError(t, err)

	assert.Equal(t, "alice@campus.edu", got.Username)
	assert.Equal(t, "Alice", got.FirstName)
	assert.Equal(t, "alice@test.example", got.Email)

	id, ok := sess.Get("Shibboleth", "session_id")
	require.True(t, ok, "SP session id is remembered for expiry checks")
	assert.Equal(t, "_abc123", id)
}

func TestShibboleth_AuthenticateFromHeaders(t *testing.T) {
	t.Parallel()

	cfg := shibConfig(func(cfg *config.AuthConfig) { cfg.Shibboleth.UseHeaders = true })
	s := NewShibboleth(cfg, ShibbolethOptions{Users: mockauth.NewMemoryIdentityStore()})

	req := auth.NewRequest()
	req.Header.Set("eppn", "alice@campus.edu")
	req.Header.Set("mail", "alice@test.example")

	got, err := s.Authenticate(context.Background(), req, session.New("sid"))
	require.NoError(t, err)
	assert.Equal(t, "alice@campus.edu", got.Username)
	assert.Equal(t, "alice@test.example", got.Email)
}

func TestShibboleth_AuthenticatePrefixesCatalogID(t *testing.T) {
	t.Parallel()

	cfg := shibConfig(func(cfg *config.AuthConfig) {
		cfg.Shibboleth.CatUsernameAttr = "employeeNumber"
		cfg.Shibboleth.Prefix = "MAIN"
	})
	s := NewShibboleth(cfg, ShibbolethOptions{Users: mockauth.NewMemoryIdentityStore()})

	got, err := s.Authenticate(context.Background(), shibRequest(map[string]string{
		"eppn":           "alice@campus.edu",
		"employeeNumber": "100042",
	}), session.New("sid"))
	require.NoError(t, err)
	assert.Equal(t, "MAIN.100042", got.CatUsername)
}

func TestShibboleth_AuthenticateRequiredAttributes(t *testing.T) {
	t.Parallel()

	cfg := shibConfig(func(cfg *config.AuthConfig) {
		cfg.Shibboleth.Required = []string{"affiliation=member|staff"}
	})
	s := NewShibboleth(cfg, ShibbolethOptions{Users: mockauth.NewMemoryIdentityStore()})
	ctx := context.Background()

	_, err := s.Authenticate(ctx, shibRequest(map[string]string{
		"eppn":        "alice@campus.edu",
		"affiliation": "alum",
	}), session.New("sid"))
	require.Error(t, err)
	assert.Equal(t, autherr.KindDenied, autherr.AuthKindOf(err))

	_, err = s.Authenticate(ctx, shibRequest(map[string]string{
		"eppn":        "alice@campus.edu",
		"affiliation": "staff",
	}), session.New("sid"))
	require.NoError(t, err)
}

func TestShibboleth_AuthenticateMissingUsername(t *testing.T) {
	t.Parallel()

	s := NewShibboleth(shibConfig(nil), ShibbolethOptions{Users: mockauth.NewMemoryIdentityStore()})
	_, err := s.Authenticate(context.Background(), shibRequest(map[string]string{
		"mail": "alice@test.example",
	}), session.New("sid"))
	require.Error(t, err)
	assert.Equal(t, autherr.KindAdmin, autherr.AuthKindOf(err))
}

func TestShibboleth_IsExpired(t *testing.T) {
	t.Parallel()

	s := NewShibboleth(shibConfig(nil), ShibbolethOptions{Users: mockauth.NewMemoryIdentityStore()})
	ctx := context.Background()

	assert.False(t, s.IsExpired(ctx, shibRequest(map[string]string{
		"Shib-Session-ID": "_abc123",
	})))
	assert.True(t, s.IsExpired(ctx, shibRequest(nil)), "SP stopped asserting the session")

	// With the check disabled the lapse goes unnoticed.
	off := NewShibboleth(shibConfig(func(cfg *config.AuthConfig) {
		cfg.Shibboleth.CheckExpiredSession = false
	}), ShibbolethOptions{Users: mockauth.NewMemoryIdentityStore()})
	assert.False(t, off.IsExpired(ctx, shibRequest(nil)))
}

func TestShibboleth_SessionInitiator(t *testing.T) {
	t.Parallel()

	s := NewShibboleth(shibConfig(nil), ShibbolethOptions{Users: mockauth.NewMemoryIdentityStore()})
	got, err := s.SessionInitiator(context.Background(), "", nil)
	require.NoError(t, err)
	assert.Equal(t,
		"https://catalog.test.example/Shibboleth.sso/Login?target="+
			"https%3A%2F%2Fcatalog.test.example%2Fauth%2Flogin%3Fauth_method%3DShibboleth",
		got)
}

func TestShibboleth_SessionInitiatorWithEntityID(t *testing.T) {
	t.Parallel()

	cfg := shibConfig(func(cfg *config.AuthConfig) {
		cfg.Shibboleth.ProviderID = "https://idp.campus.edu/shibboleth"
	})
	s := NewShibboleth(cfg, ShibbolethOptions{Users: mockauth.NewMemoryIdentityStore()})

	got, err := s.SessionInitiator(context.Background(), "", nil)
	require.NoError(t, err)
	assert.Contains(t, got, "&entityID=https%3A%2F%2Fidp.campus.edu%2Fshibboleth")
}

func TestShibboleth_Logout(t *testing.T) {
	t.Parallel()

	cfg := shibConfig(func(cfg *config.AuthConfig) {
		cfg.Shibboleth.Logout = "https://catalog.test.example/Shibboleth.sso/Logout"
	})
	s := NewShibboleth(cfg, ShibbolethOptions{Users: mockauth.NewMemoryIdentityStore()})

	sess := session.New("sid")
	sess.Set("Shibboleth", "session_id", "_abc123")

	got := s.Logout("https://catalog.test.example/", sess)
	assert.Equal(t,
		"https://catalog.test.example/Shibboleth.sso/Logout?return=https%3A%2F%2Fcatalog.test.example%2F",
		got)
	_, ok := sess.Get("Shibboleth", "session_id")
	assert.False(t, ok)
}

func TestShibboleth_ConfigValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*config.AuthConfig)
	}{
		{name: "missing login URL", mutate: func(cfg *config.AuthConfig) { cfg.Shibboleth.Login = "" }},
		{name: "missing username attribute", mutate: func(cfg *config.AuthConfig) { cfg.Shibboleth.UsernameAttr = "" }},
		{name: "malformed required rule", mutate: func(cfg *config.AuthConfig) {
			cfg.Shibboleth.Required = []string{"affiliation"}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := NewShibboleth(shibConfig(tt.mutate), ShibbolethOptions{Users: mockauth.NewMemoryIdentityStore()})
			_, err := s.Authenticate(context.Background(), shibRequest(nil), session.New("sid"))
			require.Error(t, err)
			assert.True(t, autherr.IsConfig(err))
		})
	}
}
