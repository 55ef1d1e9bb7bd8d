package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/librarium/discovery-auth/internal/domain/auth"
	"github.com/librarium/discovery-auth/internal/ports"
	"github.com/librarium/discovery-auth/internal/session"
)

// accountNS is the session namespace holding the logged-in account state.
const accountNS = "Account"

// UserSession stores the logged-in identity in the session. In normal mode
// only the account id is kept and the record is re-read from storage; in
// privacy mode a full snapshot lives in the session and nothing references
// the account server-side. The mode is fixed at construction.
type UserSession struct {
	users   ports.IdentityStore
	privacy bool
}

// UserSessionOptions groups dependencies for UserSession.
type UserSessionOptions struct {
	Users   ports.IdentityStore // Required in normal mode
	Privacy bool
}

// NewUserSession constructs a UserSession with validation.
func NewUserSession(opts UserSessionOptions) (*UserSession, error) {
	if !opts.Privacy && opts.Users == nil {
		return nil, errors.New("IdentityStore is required outside privacy mode")
	}
	return &UserSession{users: opts.Users, privacy: opts.Privacy}, nil
}

// Privacy reports whether snapshot mode is active.
func (u *UserSession) Privacy() bool { return u.privacy }

// Set records user as the session's logged-in identity.
func (u *UserSession) Set(sess *session.Session, user *auth.Identity) error {
	if u.privacy {
		snapshot, err := json.Marshal(user)
		if err != nil {
			return fmt.Errorf("marshal identity snapshot: %w", err)
		}
		sess.Unset(accountNS, "user_id")
		sess.Set(accountNS, "identity", string(snapshot))
		return nil
	}
	sess.Unset(accountNS, "identity")
	sess.Set(accountNS, "user_id", strconv.FormatInt(user.ID, 10))
	return nil
}

// Get returns the session's logged-in identity, or nil when anonymous. In
// normal mode a stale reference to a deleted account reads as anonymous.
func (u *UserSession) Get(ctx context.Context, sess *session.Session) (*auth.Identity, error) {
	if u.privacy {
		snapshot, ok := sess.Get(accountNS, "identity")
		if !ok {
			return nil, nil
		}
		var user auth.Identity
		if err := json.Unmarshal([]byte(snapshot), &user); err != nil {
			return nil, fmt.Errorf("unmarshal identity snapshot: %w", err)
		}
		return &user, nil
	}

	raw, ok := sess.Get(accountNS, "user_id")
	if !ok {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed session user id %q: %w", raw, err)
	}
	return u.users.FindByID(ctx, id)
}

// Clear drops the logged-in identity from the session.
func (u *UserSession) Clear(sess *session.Session) {
	sess.Unset(accountNS, "user_id")
	sess.Unset(accountNS, "identity")
}
