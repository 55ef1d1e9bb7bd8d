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
)

func passwordAccessConfig() *config.AuthConfig {
	return &config.AuthConfig{
		Method: "PasswordAccess",
		PasswordAccess: config.PasswordAccessConfig{
			AccessUser:     "walkin",
			AccessPassword: "open-sesame",
		},
	}
}

func TestPasswordAccess_Authenticate(t *testing.T) {
	t.Parallel()

	users := mockauth.NewMemoryIdentityStore()
	p := NewPasswordAccess(passwordAccessConfig(), users)
	ctx := context.Background()

	req := auth.NewRequest()
	req.Form.Set("password", "open-sesame")

	got, err := p.Authenticate(ctx, req, nil)
	require.NoError(t, err)
	assert.Equal(t, "walkin", got.Username)

	// Every guest lands on the same account.
	again, err := p.Authenticate(ctx, req, nil)
	require.NoError(t, err)
	assert.Equal(t, got.ID, again.ID)
}

func TestPasswordAccess_AuthenticateRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		password string
		wantKind autherr.AuthKind
	}{
		{name: "wrong password", password: "guess", wantKind: autherr.KindInvalid},
		{name: "blank password", password: "", wantKind: autherr.KindBlank},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := NewPasswordAccess(passwordAccessConfig(), mockauth.NewMemoryIdentityStore())
			req := auth.NewRequest()
			req.Form.Set("password", tt.password)

			_, err := p.Authenticate(context.Background(), req, nil)
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, autherr.AuthKindOf(err))
		})
	}
}

func TestPasswordAccess_RequiresConfiguredSecret(t *testing.T) {
	t.Parallel()

	cfg := passwordAccessConfig()
	cfg.PasswordAccess.AccessPassword = ""
	p := NewPasswordAccess(cfg, mockauth.NewMemoryIdentityStore())

	req := auth.NewRequest()
	req.Form.Set("password", "anything")
	_, err := p.Authenticate(context.Background(), req, nil)
	require.Error(t, err)
	assert.True(t, autherr.IsConfig(err))
}
