package web

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJar(t *testing.T, secure bool, inbound map[string]string) (*CookieJar, *httptest.ResponseRecorder) {
	t.Helper()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for name, value := range inbound {
		r.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	w := httptest.NewRecorder()
	return NewCookieJar(w, r, secure), w
}

func TestCookieJar_GetInbound(t *testing.T) {
	t.Parallel()

	jar, _ := newJar(t, true, map[string]string{"sessionID": "abc"})
	assert.Equal(t, "abc", jar.Get("sessionID"))
	assert.Empty(t, jar.Get("missing"))
}

func TestCookieJar_SetShadowsInbound(t *testing.T) {
	t.Parallel()

	jar, w := newJar(t, true, map[string]string{"loginToken": "old"})
	expires := time.Now().Add(14 * 24 * time.Hour)
	jar.Set("loginToken", "new", expires, true)

	// Reads within the same request see the written value.
	assert.Equal(t, "new", jar.Get("loginToken"))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, "loginToken", c.Name)
	assert.Equal(t, "new", c.Value)
	assert.Equal(t, "/", c.Path)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.WithinDuration(t, expires, c.Expires, time.Second)
}

func TestCookieJar_Clear(t *testing.T) {
	t.Parallel()

	jar, w := newJar(t, false, map[string]string{"loggedOut": "1"})
	jar.Clear("loggedOut")

	// Cleared this request means absent for the rest of it.
	assert.Empty(t, jar.Get("loggedOut"))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "loggedOut", cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.Negative(t, cookies[0].MaxAge)
}

func TestCookieJar_InsecureMode(t *testing.T) {
	t.Parallel()

	jar, w := newJar(t, false, nil)
	jar.Set("sessionID", "abc", time.Time{}, true)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.False(t, cookies[0].Secure, "local development runs without TLS")
}
