package cas

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librarium/discovery-auth/config"
	autherr "github.com/librarium/discovery-auth/internal/errors"
)

const successResponse = `<cas:serviceResponse xmlns:cas="http://www.yale.edu/tp/cas">
  <cas:authenticationSuccess>
    <cas:user> alice </cas:user>
    <cas:attributes>
      <cas:mail>alice@test.example</cas:mail>
      <cas:givenName>Alice</cas:givenName>
    </cas:attributes>
  </cas:authenticationSuccess>
</cas:serviceResponse>`

const failureResponse = `<cas:serviceResponse xmlns:cas="http://www.yale.edu/tp/cas">
  <cas:authenticationFailure code="INVALID_TICKET">
    Ticket ST-spent not recognized
  </cas:authenticationFailure>
</cas:serviceResponse>`

func TestValidator_Validate(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/serviceValidate", r.URL.Path)
		assert.Equal(t, "ST-12345", r.URL.Query().Get("ticket"))
		assert.Equal(t, "https://catalog.test.example/auth/login", r.URL.Query().Get("service"))
		_, _ = w.Write([]byte(successResponse))
	}))
	t.Cleanup(srv.Close)

	v := NewValidator(config.CASConfig{}, ValidatorOptions{BaseURL: srv.URL})
	principal, attrs, err := v.Validate(context.Background(), "ST-12345", "https://catalog.test.example/auth/login")
	require.NoError(t, err)

	assert.Equal(t, "alice", principal, "whitespace around the principal is stripped")
	assert.Equal(t, map[string]string{
		"mail":      "alice@test.example",
		"givenName": "Alice",
	}, attrs)
}

func TestValidator_ValidateRejectedTicket(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(failureResponse))
	}))
	t.Cleanup(srv.Close)

	v := NewValidator(config.CASConfig{}, ValidatorOptions{BaseURL: srv.URL})
	_, _, err := v.Validate(context.Background(), "ST-spent", "https://catalog.test.example/auth/login")
	require.Error(t, err)
	assert.Equal(t, autherr.KindInvalid, autherr.AuthKindOf(err))
	assert.Contains(t, err.Error(), "INVALID_TICKET")
	assert.Contains(t, err.Error(), "Ticket ST-spent not recognized")
}

func TestValidator_ValidateServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	v := NewValidator(config.CASConfig{}, ValidatorOptions{BaseURL: srv.URL})
	_, _, err := v.Validate(context.Background(), "ST-12345", "svc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 502")
}

func TestValidator_ValidateMalformedResponses(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{name: "not xml", body: "splash page"},
		{name: "wrong document", body: "<html><body>login</body></html>"},
		{name: "success without user", body: `<serviceResponse><authenticationSuccess/></serviceResponse>`},
		{name: "neither success nor failure", body: `<serviceResponse/>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			t.Cleanup(srv.Close)

			v := NewValidator(config.CASConfig{}, ValidatorOptions{BaseURL: srv.URL})
			_, _, err := v.Validate(context.Background(), "ST-12345", "svc")
			require.Error(t, err)
			assert.False(t, autherr.IsAuth(err), "protocol breakage is not a login failure")
		})
	}
}

func TestNewValidator_DerivesBaseURL(t *testing.T) {
	t.Parallel()

	v := NewValidator(config.CASConfig{
		Server:  "sso.test.example",
		Port:    8443,
		Context: "/cas",
	}, ValidatorOptions{})
	assert.Equal(t, "https://sso.test.example:8443/cas", v.baseURL)
}
