package auth

// Package auth contains domain-level types for authentication, sessions and
// persistent login tokens. It is pure and free of framework/adapter concerns.

import "time"

// Identity represents the authenticated principal. Strategies map
// backend-specific records (database rows, directory entries, IdP claims,
// patron records) into this shape.
type Identity struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
	Email     string

	// EmailVerified reports whether the address has been confirmed.
	EmailVerified bool

	// PendingEmail holds an address awaiting verification.
	PendingEmail string

	// CatUsername / CatPassword are the catalog (ILS) credentials linked to
	// this account.
	CatUsername string
	CatPassword string

	// PasswordHash is the bcrypt hash for database-backed accounts;
	// RawPassword is only populated when hashing is disabled.
	PasswordHash string
	RawPassword  string

	// AuthMethod tags the strategy that last authenticated this identity.
	AuthMethod string

	LastLogin time.Time
}

// DisplayName returns a human-readable name, falling back to the username.
func (i *Identity) DisplayName() string {
	switch {
	case i.FirstName != "" && i.LastName != "":
		return i.FirstName + " " + i.LastName
	case i.FirstName != "":
		return i.FirstName
	case i.LastName != "":
		return i.LastName
	default:
		return i.Username
	}
}

// Patron is the record returned by a catalog (ILS) patron login.
type Patron struct {
	CatUsername string
	CatPassword string
	FirstName   string
	LastName    string
	Email       string
}

// ClientInfo is the best-effort browser/platform fingerprint stored with a
// login token for the admin audit trail.
type ClientInfo struct {
	Browser  string
	Platform string
}

// LoginToken is one generation of a persistent "remember me" relationship.
// Series groups successive rotations; Token is the opaque secret for this
// generation.
type LoginToken struct {
	ID            int64
	UserID        int64
	Series        string
	Token         string
	LastSessionID string
	Browser       string
	Platform      string
	Expires       time.Time
}

// Expired reports whether the token is past its expiration at the given time.
func (t *LoginToken) Expired(now time.Time) bool {
	return !t.Expires.IsZero() && now.After(t.Expires)
}
