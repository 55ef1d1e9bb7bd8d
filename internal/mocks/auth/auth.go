// Package auth contains simple hand-written test doubles for the storage and
// per-request authentication ports. These are lightweight and suitable for
// unit tests without codegen; gomock mocks for the remote backend ports live
// in the parent package.
package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	domainauth "github.com/librarium/discovery-auth/internal/domain/auth"
	autherr "github.com/librarium/discovery-auth/internal/errors"
	"github.com/librarium/discovery-auth/internal/ports"
	"github.com/librarium/discovery-auth/internal/session"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.IdentityStore      = (*MemoryIdentityStore)(nil)
	_ ports.LoginTokenStore    = (*MemoryTokenStore)(nil)
	_ ports.SessionStore       = (*MemorySessionStore)(nil)
	_ ports.CookieStore        = (*MemoryCookieJar)(nil)
	_ ports.Notifier           = (*RecordingNotifier)(nil)
	_ ports.ClientInfoResolver = (*StaticClientInfo)(nil)
)

// MemoryIdentityStore is an in-memory IdentityStore. Err, when set, is
// returned from every call for fault-path testing.
type MemoryIdentityStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*domainauth.Identity

	Err error
}

// NewMemoryIdentityStore creates an empty store.
func NewMemoryIdentityStore() *MemoryIdentityStore {
	return &MemoryIdentityStore{users: map[int64]*domainauth.Identity{}}
}

// Seed inserts an account directly, assigning an ID when missing.
func (s *MemoryIdentityStore) Seed(user *domainauth.Identity) *domainauth.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.ID == 0 {
		s.nextID++
		user.ID = s.nextID
	} else if user.ID > s.nextID {
		s.nextID = user.ID
	}
	s.users[user.ID] = cloneIdentity(user)
	return user
}

func (s *MemoryIdentityStore) FindByID(_ context.Context, id int64) (*domainauth.Identity, error) {
	return s.find(func(u *domainauth.Identity) bool { return u.ID == id })
}

func (s *MemoryIdentityStore) FindByUsername(_ context.Context, username string) (*domainauth.Identity, error) {
	return s.find(func(u *domainauth.Identity) bool { return u.Username == username })
}

func (s *MemoryIdentityStore) FindByEmail(_ context.Context, email string) (*domainauth.Identity, error) {
	return s.find(func(u *domainauth.Identity) bool { return u.Email == email })
}

func (s *MemoryIdentityStore) FindByCatalogID(_ context.Context, catUsername string) (*domainauth.Identity, error) {
	return s.find(func(u *domainauth.Identity) bool { return u.CatUsername == catUsername })
}

func (s *MemoryIdentityStore) find(match func(*domainauth.Identity) bool) (*domainauth.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for _, u := range s.users {
		if match(u) {
			return cloneIdentity(u), nil
		}
	}
	return nil, nil
}

func (s *MemoryIdentityStore) Create(_ context.Context, user *domainauth.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	for _, u := range s.users {
		if u.Username == user.Username || (user.Email != "" && u.Email == user.Email) {
			return autherr.NewAuth(autherr.KindInvalid, "username or email is already in use")
		}
	}
	s.nextID++
	user.ID = s.nextID
	s.users[user.ID] = cloneIdentity(user)
	return nil
}

func (s *MemoryIdentityStore) Save(_ context.Context, user *domainauth.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.users[user.ID]; !ok {
		return fmt.Errorf("save user: id %d not found", user.ID)
	}
	s.users[user.ID] = cloneIdentity(user)
	return nil
}

func (s *MemoryIdentityStore) UpdateEmail(_ context.Context, user *domainauth.Identity, email string, verified bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	stored, ok := s.users[user.ID]
	if !ok {
		return fmt.Errorf("update email: id %d not found", user.ID)
	}
	if verified {
		stored.Email = email
		stored.EmailVerified = true
		stored.PendingEmail = ""
		user.Email = email
		user.EmailVerified = true
		user.PendingEmail = ""
		return nil
	}
	stored.PendingEmail = email
	user.PendingEmail = email
	return nil
}

func cloneIdentity(user *domainauth.Identity) *domainauth.Identity {
	c := *user
	return &c
}

// MemoryTokenStore is an in-memory LoginTokenStore. Unlike the real store it
// keeps secrets in the clear, so Match compares them directly.
type MemoryTokenStore struct {
	mu     sync.Mutex
	nextID int64
	tokens []*domainauth.LoginToken

	Err error
}

// NewMemoryTokenStore creates an empty store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (s *MemoryTokenStore) Match(_ context.Context, userID int64, series, token string) (*domainauth.LoginToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	seen := false
	for _, t := range s.tokens {
		if t.UserID != userID || t.Series != series {
			continue
		}
		seen = true
		if t.Token == token {
			return cloneToken(t), nil
		}
	}
	if seen {
		return nil, autherr.NewToken(userID, series, "presented secret does not match any live token")
	}
	return nil, nil
}

func (s *MemoryTokenStore) Create(_ context.Context, token *domainauth.LoginToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.nextID++
	token.ID = s.nextID
	s.tokens = append(s.tokens, cloneToken(token))
	return nil
}

func (s *MemoryTokenStore) BySeries(_ context.Context, series string) ([]*domainauth.LoginToken, error) {
	return s.list(func(t *domainauth.LoginToken) bool { return t.Series == series })
}

func (s *MemoryTokenStore) ByUser(_ context.Context, userID int64) ([]*domainauth.LoginToken, error) {
	return s.list(func(t *domainauth.LoginToken) bool { return t.UserID == userID })
}

func (s *MemoryTokenStore) list(match func(*domainauth.LoginToken) bool) ([]*domainauth.LoginToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []*domainauth.LoginToken
	for _, t := range s.tokens {
		if match(t) {
			out = append(out, cloneToken(t))
		}
	}
	return out, nil
}

func (s *MemoryTokenStore) DeleteBySeries(_ context.Context, series string, keepID int64) error {
	return s.remove(func(t *domainauth.LoginToken) bool {
		return t.Series == series && (keepID == 0 || t.ID != keepID)
	})
}

func (s *MemoryTokenStore) DeleteByUser(_ context.Context, userID int64) error {
	return s.remove(func(t *domainauth.LoginToken) bool { return t.UserID == userID })
}

func (s *MemoryTokenStore) remove(match func(*domainauth.LoginToken) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	kept := s.tokens[:0]
	for _, t := range s.tokens {
		if !match(t) {
			kept = append(kept, t)
		}
	}
	s.tokens = kept
	return nil
}

// All returns a snapshot of every stored token.
func (s *MemoryTokenStore) All() []*domainauth.LoginToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domainauth.LoginToken, 0, len(s.tokens))
	for _, t := range s.tokens {
		out = append(out, cloneToken(t))
	}
	return out
}

func cloneToken(token *domainauth.LoginToken) *domainauth.LoginToken {
	c := *token
	return &c
}

// MemorySessionStore is an in-memory SessionStore. Destroyed session IDs are
// recorded for assertions.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]map[string]map[string]string

	Destroyed []string
	Err       error
}

// NewMemorySessionStore creates an empty store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: map[string]map[string]map[string]string{}}
}

func (s *MemorySessionStore) Load(_ context.Context, id string) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	data, ok := s.sessions[id]
	if !ok {
		return session.New(id), nil
	}
	return session.Restore(id, data), nil
}

func (s *MemorySessionStore) Save(_ context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if sess.Destroyed() {
		delete(s.sessions, sess.ID())
		return nil
	}
	s.sessions[sess.ID()] = sess.Data()
	return nil
}

func (s *MemorySessionStore) Destroy(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	delete(s.sessions, id)
	s.Destroyed = append(s.Destroyed, id)
	return nil
}

// Has reports whether a session with the given ID is stored.
func (s *MemorySessionStore) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	return ok
}

// MemoryCookieJar is an in-memory CookieStore for a single simulated
// request/response pair.
type MemoryCookieJar struct {
	mu      sync.Mutex
	values  map[string]string
	expires map[string]time.Time

	Cleared []string
}

// NewMemoryCookieJar creates an empty jar.
func NewMemoryCookieJar() *MemoryCookieJar {
	return &MemoryCookieJar{values: map[string]string{}, expires: map[string]time.Time{}}
}

func (j *MemoryCookieJar) Get(name string) string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.values[name]
}

func (j *MemoryCookieJar) Set(name, value string, expires time.Time, _ bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.values[name] = value
	j.expires[name] = expires
}

func (j *MemoryCookieJar) Clear(name string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.values, name)
	delete(j.expires, name)
	j.Cleared = append(j.Cleared, name)
}

// Expiry returns the expiration recorded with the last Set for name.
func (j *MemoryCookieJar) Expiry(name string) time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.expires[name]
}

// Message is one captured notification.
type Message struct {
	To      string
	From    string
	Subject string
	Body    string
}

// RecordingNotifier captures sent mail instead of delivering it.
type RecordingNotifier struct {
	mu       sync.Mutex
	messages []Message

	Err error
}

// NewRecordingNotifier creates an empty notifier.
func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{}
}

func (n *RecordingNotifier) Send(_ context.Context, to, from, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Err != nil {
		return n.Err
	}
	n.messages = append(n.messages, Message{To: to, From: from, Subject: subject, Body: body})
	return nil
}

// Messages returns the captured mail in send order.
func (n *RecordingNotifier) Messages() []Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Message, len(n.messages))
	copy(out, n.messages)
	return out
}

// StaticClientInfo resolves every User-Agent to a fixed browser/platform pair.
type StaticClientInfo struct {
	Info domainauth.ClientInfo
	Err  error
}

// NewStaticClientInfo creates a resolver with a recognizable default.
func NewStaticClientInfo() *StaticClientInfo {
	return &StaticClientInfo{Info: domainauth.ClientInfo{Browser: "Firefox", Platform: "Linux"}}
}

func (r *StaticClientInfo) Lookup(string) (domainauth.ClientInfo, error) {
	if r.Err != nil {
		return domainauth.ClientInfo{}, r.Err
	}
	return r.Info, nil
}
