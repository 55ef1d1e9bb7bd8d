package auth

import (
	"net/http"
	"net/url"
	"strings"
)

// Request carries the pieces of an inbound login/account request the
// strategies need: submitted form fields, query parameters, headers and
// server-asserted attributes (e.g. values set by an authenticating reverse
// proxy). Strategies never see the web framework's request type directly.
type Request struct {
	Form  url.Values
	Query url.Values

	Header http.Header

	// Attributes holds transport-layer asserted values (REMOTE_USER and
	// friends). Trust in these is enforced upstream.
	Attributes map[string]string

	RemoteAddr string
	UserAgent  string
}

// NewRequest returns an empty request, convenient for tests and for callers
// assembling a request field by field.
func NewRequest() *Request {
	return &Request{
		Form:       url.Values{},
		Query:      url.Values{},
		Header:     http.Header{},
		Attributes: map[string]string{},
	}
}

// FromHTTP adapts a parsed *http.Request. ParseForm must have been called.
func FromHTTP(r *http.Request) *Request {
	return &Request{
		Form:       r.PostForm,
		Query:      r.URL.Query(),
		Header:     r.Header,
		Attributes: map[string]string{},
		RemoteAddr: r.RemoteAddr,
		UserAgent:  r.UserAgent(),
	}
}

// FormValue returns the trimmed form field value.
func (r *Request) FormValue(name string) string {
	return strings.TrimSpace(r.Form.Get(name))
}

// QueryValue returns the trimmed query parameter value.
func (r *Request) QueryValue(name string) string {
	return strings.TrimSpace(r.Query.Get(name))
}

// Attribute returns a server-asserted attribute, falling back to the header
// of the same name when useHeaders is set.
func (r *Request) Attribute(name string, useHeaders bool) string {
	if useHeaders {
		return strings.TrimSpace(r.Header.Get(name))
	}
	return strings.TrimSpace(r.Attributes[name])
}
