// Package useragent implements the ClientInfoResolver port.
package useragent

import (
	"fmt"

	ua "github.com/mileusna/useragent"

	"github.com/librarium/discovery-auth/internal/domain/auth"
	"github.com/librarium/discovery-auth/internal/ports"
)

// Resolver classifies User-Agent strings into browser and platform names
// for the persistent-login device audit trail.
type Resolver struct{}

var _ ports.ClientInfoResolver = (*Resolver)(nil)

// NewResolver creates a Resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Lookup parses the User-Agent string. A string the parser cannot attribute
// to any browser is an error: persistent logins are not issued to clients
// that cannot be described back to the user later.
func (r *Resolver) Lookup(userAgent string) (auth.ClientInfo, error) {
	if userAgent == "" {
		return auth.ClientInfo{}, fmt.Errorf("empty user agent")
	}
	parsed := ua.Parse(userAgent)
	if parsed.Name == "" {
		return auth.ClientInfo{}, fmt.Errorf("unrecognized user agent %q", userAgent)
	}
	return auth.ClientInfo{Browser: parsed.Name, Platform: parsed.OS}, nil
}
