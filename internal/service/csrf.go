package service

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/librarium/discovery-auth/internal/ports"
	"github.com/librarium/discovery-auth/internal/session"
)

const (
	csrfNS        = "csrf"
	csrfTokensKey = "tokens"
)

// CsrfTokenList keeps a bounded list of live CSRF tokens in the session.
// Several tokens stay valid at once so parallel tabs each holding their own
// form do not invalidate each other; Trim bounds the window.
type CsrfTokenList struct{}

var _ ports.CsrfValidator = (*CsrfTokenList)(nil)

// NewCsrfTokenList constructs the session-backed CSRF token list.
func NewCsrfTokenList() *CsrfTokenList {
	return &CsrfTokenList{}
}

// Issue returns the newest live token, minting one when the list is empty or
// regenerate is set. Issuing without regenerate is idempotent.
func (c *CsrfTokenList) Issue(sess *session.Session, regenerate bool) (string, error) {
	tokens := c.load(sess)
	if !regenerate && len(tokens) > 0 {
		return tokens[len(tokens)-1], nil
	}
	token, err := randomToken(16)
	if err != nil {
		return "", err
	}
	c.store(sess, append(tokens, token))
	return token, nil
}

// IsValid reports whether token is one of the session's live tokens. Every
// comparison runs in constant time.
func (c *CsrfTokenList) IsValid(sess *session.Session, token string) bool {
	if token == "" {
		return false
	}
	valid := false
	for _, t := range c.load(sess) {
		if subtle.ConstantTimeCompare([]byte(t), []byte(token)) == 1 {
			valid = true
		}
	}
	return valid
}

// Trim keeps only the newest max tokens; 0 empties the list.
func (c *CsrfTokenList) Trim(sess *session.Session, max int) {
	tokens := c.load(sess)
	if len(tokens) <= max {
		return
	}
	c.store(sess, tokens[len(tokens)-max:])
}

func (c *CsrfTokenList) load(sess *session.Session) []string {
	raw, ok := sess.Get(csrfNS, csrfTokensKey)
	if !ok || raw == "" {
		return nil
	}
	return strings.Split(raw, " ")
}

func (c *CsrfTokenList) store(sess *session.Session, tokens []string) {
	if len(tokens) == 0 {
		sess.Unset(csrfNS, csrfTokensKey)
		return
	}
	sess.Set(csrfNS, csrfTokensKey, strings.Join(tokens, " "))
}

// randomToken returns a hex-encoded random string of the given entropy.
func randomToken(bytes int) (string, error) {
	buf := make([]byte, bytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
