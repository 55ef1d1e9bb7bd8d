package strategy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librarium/discovery-auth/config"
	"github.com/librarium/discovery-auth/internal/domain/auth"
	autherr "github.com/librarium/discovery-auth/internal/errors"
	"github.com/librarium/discovery-auth/internal/ports"
	"github.com/librarium/discovery-auth/internal/session"
)

// fakeSub is a scriptable sub-strategy for the composite tests.
type fakeSub struct {
	base
	authenticateFn func(ctx context.Context, req *auth.Request, sess *session.Session) (*auth.Identity, error)
	initiator      string
	logoutURL      string
	calls          int
}

func newFakeSub(name string) *fakeSub {
	return &fakeSub{base: newBase(name, &config.AuthConfig{})}
}

func (f *fakeSub) Authenticate(ctx context.Context, req *auth.Request, sess *session.Session) (*auth.Identity, error) {
	f.calls++
	if f.authenticateFn == nil {
		return nil, autherr.Invalid()
	}
	return f.authenticateFn(ctx, req, sess)
}

func (f *fakeSub) SessionInitiator(context.Context, string, *session.Session) (string, error) {
	return f.initiator, nil
}

func (f *fakeSub) Logout(url string, _ *session.Session) string {
	if f.logoutURL != "" {
		return f.logoutURL
	}
	return url
}

func acceptUser(username string) func(context.Context, *auth.Request, *session.Session) (*auth.Identity, error) {
	return func(context.Context, *auth.Request, *session.Session) (*auth.Identity, error) {
		return &auth.Identity{Username: username}, nil
	}
}

// mapResolver resolves sub-strategies from a plain map, standing in for the
// service registry.
type mapResolver map[string]ports.Strategy

func (r mapResolver) Get(name string) (ports.Strategy, error) {
	if s, ok := r[name]; ok {
		return s, nil
	}
	return nil, autherr.Configf("unknown authentication method %q", name)
}

func choiceConfig(order ...string) *config.AuthConfig {
	return &config.AuthConfig{
		Method: "ChoiceAuth",
		Choice: config.ChoiceConfig{Order: order},
	}
}

func methodForm(method string) *auth.Request {
	req := auth.NewRequest()
	req.Form.Set("auth_method", method)
	return req
}

func TestChoiceAuth_AuthenticateRemembersChoice(t *testing.T) {
	t.Parallel()

	db := newFakeSub("Database")
	db.authenticateFn = acceptUser("alice")
	c := NewChoiceAuth(choiceConfig("Database", "LDAP"), ChoiceAuthOptions{
		Strategies: mapResolver{"Database": db, "LDAP": newFakeSub("LDAP")},
	})
	sess := session.New("sid")

	got, err := c.Authenticate(context.Background(), methodForm("database"), sess)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	// The choice sticks, in its configured spelling.
	assert.Equal(t, "Database", c.SelectedOption(sess))

	// Later requests need no auth_method parameter.
	_, err = c.Authenticate(context.Background(), auth.NewRequest(), sess)
	require.NoError(t, err)
	assert.Equal(t, 2, db.calls)
}

func TestChoiceAuth_AuthenticateFailureClearsChoice(t *testing.T) {
	t.Parallel()

	db := newFakeSub("Database")
	c := NewChoiceAuth(choiceConfig("Database"), ChoiceAuthOptions{
		Strategies: mapResolver{"Database": db},
	})
	sess := session.New("sid")
	sess.Set("ChoiceAuth", "auth_method", "Database")

	_, err := c.Authenticate(context.Background(), auth.NewRequest(), sess)
	require.Error(t, err)
	assert.Empty(t, c.SelectedOption(sess), "failed attempt returns the user to the menu")
}

func TestChoiceAuth_AuthenticateWithoutSelection(t *testing.T) {
	t.Parallel()

	c := NewChoiceAuth(choiceConfig("Database"), ChoiceAuthOptions{
		Strategies: mapResolver{"Database": newFakeSub("Database")},
	})

	_, err := c.Authenticate(context.Background(), auth.NewRequest(), session.New("sid"))
	require.Error(t, err)
	assert.Equal(t, autherr.KindAdmin, autherr.AuthKindOf(err))
}

func TestChoiceAuth_AuthenticateRejectsUnofferedMethod(t *testing.T) {
	t.Parallel()

	c := NewChoiceAuth(choiceConfig("Database"), ChoiceAuthOptions{
		Strategies: mapResolver{"Database": newFakeSub("Database")},
	})

	// Shibboleth exists but is not on the menu.
	_, err := c.Authenticate(context.Background(), methodForm("Shibboleth"), session.New("sid"))
	require.Error(t, err)
	assert.Equal(t, autherr.KindAdmin, autherr.AuthKindOf(err))
}

func TestChoiceAuth_DelegateAuthMethod(t *testing.T) {
	t.Parallel()

	c := NewChoiceAuth(choiceConfig("Database", "Shibboleth"), ChoiceAuthOptions{
		Strategies: mapResolver{},
	})
	sess := session.New("sid")

	assert.Equal(t, "Shibboleth", c.DelegateAuthMethod(methodForm("shibboleth"), sess))
	assert.Empty(t, c.DelegateAuthMethod(auth.NewRequest(), sess))

	// A query parameter works too (SSO callbacks carry the tag there).
	req := auth.NewRequest()
	req.Query.Set("auth_method", "Database")
	assert.Equal(t, "Database", c.DelegateAuthMethod(req, sess))
}

func TestChoiceAuth_SessionInitiator(t *testing.T) {
	t.Parallel()

	sso := newFakeSub("Shibboleth")
	sso.initiator = "https://idp.test.example/login"
	c := NewChoiceAuth(choiceConfig("Database", "Shibboleth"), ChoiceAuthOptions{
		Strategies: mapResolver{"Shibboleth": sso, "Database": newFakeSub("Database")},
	})
	ctx := context.Background()

	// No choice yet: the menu itself is the entry point.
	got, err := c.SessionInitiator(ctx, "", session.New("sid"))
	require.NoError(t, err)
	assert.Empty(t, got)

	sess := session.New("sid")
	sess.Set("ChoiceAuth", "auth_method", "Shibboleth")
	got, err = c.SessionInitiator(ctx, "", sess)
	require.NoError(t, err)
	assert.Equal(t, "https://idp.test.example/login", got)
}

func TestChoiceAuth_Logout(t *testing.T) {
	t.Parallel()

	sso := newFakeSub("Shibboleth")
	sso.logoutURL = "https://idp.test.example/logout"
	c := NewChoiceAuth(choiceConfig("Shibboleth"), ChoiceAuthOptions{
		Strategies: mapResolver{"Shibboleth": sso},
	})

	sess := session.New("sid")
	sess.Set("ChoiceAuth", "auth_method", "Shibboleth")

	assert.Equal(t, "https://idp.test.example/logout", c.Logout("/home", sess))
	assert.Empty(t, c.SelectedOption(sess))

	// Without a remembered choice the return URL passes through.
	assert.Equal(t, "/home", c.Logout("/home", session.New("sid")))
}

func TestChoiceAuth_ValidateCredentialsLeavesNoTrace(t *testing.T) {
	t.Parallel()

	db := newFakeSub("Database")
	db.authenticateFn = acceptUser("alice")
	c := NewChoiceAuth(choiceConfig("Database"), ChoiceAuthOptions{
		Strategies: mapResolver{"Database": db},
	})
	sess := session.New("sid")

	ok, err := c.ValidateCredentials(context.Background(), methodForm("Database"), sess)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, c.SelectedOption(sess), "a probe records no choice")

	db.authenticateFn = nil
	ok, err = c.ValidateCredentials(context.Background(), methodForm("Database"), sess)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestChoiceAuth_SelectableOptions(t *testing.T) {
	t.Parallel()

	c := NewChoiceAuth(choiceConfig("Database", "LDAP"), ChoiceAuthOptions{Strategies: mapResolver{}})
	assert.Equal(t, []string{"Database", "LDAP"}, c.SelectableOptions())
}

func TestChoiceAuth_RequiresConfiguredMethods(t *testing.T) {
	t.Parallel()

	c := NewChoiceAuth(choiceConfig(), ChoiceAuthOptions{Strategies: mapResolver{}})
	_, err := c.Authenticate(context.Background(), methodForm("Database"), session.New("sid"))
	require.Error(t, err)
	assert.True(t, autherr.IsConfig(err))
}
