// Package web adapts per-request HTTP state onto the core ports.
package web

import (
	"net/http"
	"time"

	"github.com/librarium/discovery-auth/internal/ports"
)

// CookieJar implements the CookieStore port over one request/response pair.
// Values set during the request shadow the inbound cookies, so a read after
// a write sees the new value.
type CookieJar struct {
	r       *http.Request
	w       http.ResponseWriter
	secure  bool
	path    string
	pending map[string]string
}

var _ ports.CookieStore = (*CookieJar)(nil)

// NewCookieJar creates a jar bound to the given exchange. secure marks
// emitted cookies HTTPS-only.
func NewCookieJar(w http.ResponseWriter, r *http.Request, secure bool) *CookieJar {
	return &CookieJar{r: r, w: w, secure: secure, path: "/", pending: map[string]string{}}
}

// Get returns the cookie value, preferring values written this request.
func (j *CookieJar) Get(name string) string {
	if v, ok := j.pending[name]; ok {
		return v
	}
	cookie, err := j.r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// Set emits the cookie on the response.
func (j *CookieJar) Set(name, value string, expires time.Time, httpOnly bool) {
	j.pending[name] = value
	http.SetCookie(j.w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     j.path,
		Expires:  expires,
		HttpOnly: httpOnly,
		Secure:   j.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear expires the cookie on the client; later reads in this request see
// it as absent.
func (j *CookieJar) Clear(name string) {
	j.pending[name] = ""
	http.SetCookie(j.w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     j.path,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   j.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
