package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthError_Classification(t *testing.T) {
	t.Parallel()

	assert.True(t, IsAuth(Blank()))
	assert.True(t, IsAuth(Invalid()))
	assert.True(t, IsAuth(Technical(errors.New("db down"))))
	assert.False(t, IsAuth(errors.New("plain")))
	assert.False(t, IsAuth(Config("missing setting")))

	assert.Equal(t, KindBlank, AuthKindOf(Blank()))
	assert.Equal(t, KindInvalid, AuthKindOf(Invalid()))
	assert.Equal(t, AuthKind(""), AuthKindOf(errors.New("plain")))
}

func TestAuthError_WrappedStillDetected(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("login: %w", Invalid())
	assert.True(t, IsAuth(wrapped))
	assert.Equal(t, KindInvalid, AuthKindOf(wrapped))
}

func TestIsCredential(t *testing.T) {
	t.Parallel()

	assert.True(t, IsCredential(Blank()))
	assert.True(t, IsCredential(Invalid()))
	assert.False(t, IsCredential(Technical(errors.New("x"))))
	assert.False(t, IsCredential(Denied("no")))
	assert.False(t, IsCredential(errors.New("plain")))
}

func TestTechnical_MessageDoesNotLeakCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused to 10.0.0.5")
	err := Technical(cause)
	assert.Equal(t, KindTechnical, err.Kind)
	assert.Equal(t, "authentication failed due to a technical problem", err.Message)
	assert.ErrorIs(t, err, cause)
}

func TestPolicyError_Messages(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "password must be at least 8 characters", TooShort("password", 8).Error())
	assert.Equal(t, "username must be at most 255 characters", TooLong("username", 255).Error())
	assert.Equal(t, "password does not match the required pattern", PatternMismatch("password").Error())

	assert.True(t, IsPolicy(TooShort("password", 8)))
	assert.False(t, IsPolicy(Invalid()))
}

func TestTokenError(t *testing.T) {
	t.Parallel()

	err := NewToken(42, "series-1", "secret mismatch")
	require.True(t, IsToken(err))
	assert.Equal(t, int64(42), err.UserID)
	assert.Equal(t, "series-1", err.Series)
	assert.Contains(t, err.Error(), "user 42")
	assert.False(t, IsToken(Invalid()))
}

func TestUnsupportedError(t *testing.T) {
	t.Parallel()

	err := Unsupported("ldap", "account creation")
	require.True(t, IsUnsupported(err))
	assert.Equal(t, "account creation not supported by ldap", err.Error())
}

func TestConfigError_Wrapping(t *testing.T) {
	t.Parallel()

	cause := errors.New("bad regex")
	err := WrapConfig(cause, "invalid pattern")
	require.True(t, IsConfig(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "invalid pattern: bad regex", err.Error())
}
