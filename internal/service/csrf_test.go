package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librarium/discovery-auth/internal/session"
)

func TestCsrfTokenList_IssueIsIdempotent(t *testing.T) {
	t.Parallel()

	csrf := NewCsrfTokenList()
	sess := session.New("sid")

	first, err := csrf.Issue(sess, false)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := csrf.Issue(sess, false)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCsrfTokenList_RegenerateKeepsOldTokensValid(t *testing.T) {
	t.Parallel()

	csrf := NewCsrfTokenList()
	sess := session.New("sid")

	first, err := csrf.Issue(sess, false)
	require.NoError(t, err)
	second, err := csrf.Issue(sess, true)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	// Both tokens stay valid so parallel tabs keep working.
	assert.True(t, csrf.IsValid(sess, first))
	assert.True(t, csrf.IsValid(sess, second))
}

func TestCsrfTokenList_IsValid(t *testing.T) {
	t.Parallel()

	csrf := NewCsrfTokenList()
	sess := session.New("sid")

	assert.False(t, csrf.IsValid(sess, ""))
	assert.False(t, csrf.IsValid(sess, "anything"))

	token, err := csrf.Issue(sess, false)
	require.NoError(t, err)
	assert.True(t, csrf.IsValid(sess, token))
	assert.False(t, csrf.IsValid(sess, token+"x"))
}

func TestCsrfTokenList_Trim(t *testing.T) {
	t.Parallel()

	csrf := NewCsrfTokenList()
	sess := session.New("sid")

	var tokens []string
	for range 5 {
		token, err := csrf.Issue(sess, true)
		require.NoError(t, err)
		tokens = append(tokens, token)
	}

	csrf.Trim(sess, 2)
	assert.False(t, csrf.IsValid(sess, tokens[2]))
	assert.True(t, csrf.IsValid(sess, tokens[3]))
	assert.True(t, csrf.IsValid(sess, tokens[4]))

	csrf.Trim(sess, 0)
	assert.False(t, csrf.IsValid(sess, tokens[4]))
}
