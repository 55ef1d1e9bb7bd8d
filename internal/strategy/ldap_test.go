package strategy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/librarium/discovery-auth/config"
	"github.com/librarium/discovery-auth/internal/domain/auth"
	autherr "github.com/librarium/discovery-auth/internal/errors"
	"github.com/librarium/discovery-auth/internal/mocks"
	mockauth "github.com/librarium/discovery-auth/internal/mocks/auth"
)

func ldapConfig(mutate func(*config.AuthConfig)) *config.AuthConfig {
	cfg := &config.AuthConfig{
		Method: "LDAP",
		LDAP: config.LDAPConfig{
			Host:            "ldap.test.example",
			Port:            389,
			BaseDN:          "ou=people,dc=test,dc=example",
			UsernameAttr:    "uid",
			FirstNameAttr:   "givenName",
			LastNameAttr:    "sn",
			EmailAttr:       "mail",
			CatUsernameAttr: "employeeNumber",
		},
	}
	if mutate != nil {
		mutate(cfg)
	}
	return cfg
}

func TestLDAP_Authenticate(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	directory := mocks.NewMockDirectoryClient(ctrl)
	directory.EXPECT().
		AuthenticateUser(gomock.Any(), "alice", "s3cret").
		Return(map[string][]string{
			"givenname":      {"Alice"},
			"sn":             {"Liddell"},
			"mail":           {"alice@test.example"},
			"employeenumber": {"100042"},
		}, nil)

	users := mockauth.NewMemoryIdentityStore()
	l := NewLDAP(ldapConfig(nil), LDAPOptions{Directory: directory, Users: users})

	// Mixed-case input must collapse onto one account.
	got, err := l.Authenticate(context.Background(), loginForm("Alice", "s3cret"), nil)
	require.NoError(t, err)

	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "Alice", got.FirstName)
	assert.Equal(t, "Liddell", got.LastName)
	assert.Equal(t, "alice@test.example", got.Email)
	assert.Equal(t, "100042", got.CatUsername)

	stored, err := users.FindByUsername(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, stored, "first login provisions the account")
}

func TestLDAP_AuthenticateUpdatesExistingAccount(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	directory := mocks.NewMockDirectoryClient(ctrl)
	directory.EXPECT().
		AuthenticateUser(gomock.Any(), "alice", "s3cret").
		Return(map[string][]string{"mail": {"new@test.example"}}, nil)

	users := mockauth.NewMemoryIdentityStore()
	seeded := users.Seed(testDirectoryUser("alice", "old@test.example"))

	l := NewLDAP(ldapConfig(nil), LDAPOptions{Directory: directory, Users: users})
	got, err := l.Authenticate(context.Background(), loginForm("alice", "s3cret"), nil)
	require.NoError(t, err)

	assert.Equal(t, seeded.ID, got.ID, "same account, refreshed attributes")
	assert.Equal(t, "new@test.example", got.Email)
}

func TestLDAP_AuthenticateJoinsMultiValuedAttributes(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	directory := mocks.NewMockDirectoryClient(ctrl)
	directory.EXPECT().
		AuthenticateUser(gomock.Any(), "alice", "s3cret").
		Return(map[string][]string{"mail": {"a@test.example", "b@test.example"}}, nil)

	cfg := ldapConfig(func(cfg *config.AuthConfig) { cfg.LDAP.Separator = ";" })
	l := NewLDAP(cfg, LDAPOptions{Directory: directory, Users: mockauth.NewMemoryIdentityStore()})

	got, err := l.Authenticate(context.Background(), loginForm("alice", "s3cret"), nil)
	require.NoError(t, err)
	assert.Equal(t, "a@test.example;b@test.example", got.Email)
}

func TestLDAP_AuthenticatePassesBackendRejectionThrough(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	directory := mocks.NewMockDirectoryClient(ctrl)
	directory.EXPECT().
		AuthenticateUser(gomock.Any(), "alice", "wrong").
		Return(nil, autherr.Invalid())

	l := NewLDAP(ldapConfig(nil), LDAPOptions{Directory: directory, Users: mockauth.NewMemoryIdentityStore()})
	_, err := l.Authenticate(context.Background(), loginForm("alice", "wrong"), nil)
	require.Error(t, err)
	assert.Equal(t, autherr.KindInvalid, autherr.AuthKindOf(err))
}

func TestLDAP_AuthenticateBlankCredentials(t *testing.T) {
	t.Parallel()

	// The directory must never be consulted for blank credentials: some
	// servers treat an empty bind password as an anonymous bind success.
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	directory := mocks.NewMockDirectoryClient(ctrl)

	l := NewLDAP(ldapConfig(nil), LDAPOptions{Directory: directory, Users: mockauth.NewMemoryIdentityStore()})
	_, err := l.Authenticate(context.Background(), loginForm("alice", ""), nil)
	require.Error(t, err)
	assert.Equal(t, autherr.KindBlank, autherr.AuthKindOf(err))
}

func testDirectoryUser(username, email string) *auth.Identity {
	return &auth.Identity{Username: username, Email: email}
}

func TestLDAP_ConfigValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*config.AuthConfig)
	}{
		{name: "missing host", mutate: func(cfg *config.AuthConfig) { cfg.LDAP.Host = "" }},
		{name: "missing basedn", mutate: func(cfg *config.AuthConfig) { cfg.LDAP.BaseDN = "" }},
		{name: "missing username attribute", mutate: func(cfg *config.AuthConfig) { cfg.LDAP.UsernameAttr = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			t.Cleanup(ctrl.Finish)

			l := NewLDAP(ldapConfig(tt.mutate), LDAPOptions{
				Directory: mocks.NewMockDirectoryClient(ctrl),
				Users:     mockauth.NewMemoryIdentityStore(),
			})
			_, err := l.Authenticate(context.Background(), loginForm("alice", "s3cret"), nil)
			require.Error(t, err)
			assert.True(t, autherr.IsConfig(err))
		})
	}
}
