// Package session provides the namespaced per-request session container the
// authentication core mutates. Loading and persisting the container is the
// session store adapter's job; the core only sees this in-memory view.
package session

import "github.com/google/uuid"

// Session is a keyed container scoped per logical namespace. One namespace is
// used per composite strategy instance, one for the manager and one each for
// the email-link and token-login flows.
type Session struct {
	id        string
	data      map[string]map[string]string
	destroyed bool
}

// New creates an empty session with the given id.
func New(id string) *Session {
	return &Session{id: id, data: map[string]map[string]string{}}
}

// NewID generates a fresh opaque session id.
func NewID() string {
	return uuid.NewString()
}

// Restore rebuilds a session from persisted namespace data.
func Restore(id string, data map[string]map[string]string) *Session {
	if data == nil {
		data = map[string]map[string]string{}
	}
	return &Session{id: id, data: data}
}

// ID returns the opaque session identifier.
func (s *Session) ID() string { return s.id }

// Get returns the value stored under ns/key.
func (s *Session) Get(ns, key string) (string, bool) {
	values, ok := s.data[ns]
	if !ok {
		return "", false
	}
	v, ok := values[key]
	return v, ok
}

// Set stores a value under ns/key.
func (s *Session) Set(ns, key, value string) {
	values, ok := s.data[ns]
	if !ok {
		values = map[string]string{}
		s.data[ns] = values
	}
	values[key] = value
}

// Unset removes ns/key if present.
func (s *Session) Unset(ns, key string) {
	if values, ok := s.data[ns]; ok {
		delete(values, key)
		if len(values) == 0 {
			delete(s.data, ns)
		}
	}
}

// Clear empties every namespace but keeps the session alive. Used for
// credential-expiry resets that must not drop the session itself.
func (s *Session) Clear() {
	s.data = map[string]map[string]string{}
}

// Destroy empties the session and marks it for removal from the store.
func (s *Session) Destroy() {
	s.Clear()
	s.destroyed = true
}

// Destroyed reports whether Destroy has been called.
func (s *Session) Destroyed() bool { return s.destroyed }

// Data exposes a deep copy of the namespace data for persistence.
func (s *Session) Data() map[string]map[string]string {
	out := make(map[string]map[string]string, len(s.data))
	for ns, values := range s.data {
		nv := make(map[string]string, len(values))
		for k, v := range values {
			nv[k] = v
		}
		out[ns] = nv
	}
	return out
}

// Namespace returns a view bound to one namespace.
func (s *Session) Namespace(name string) Namespace {
	return Namespace{s: s, name: name}
}

// Namespace is a convenience view over one session namespace.
type Namespace struct {
	s    *Session
	name string
}

// Get returns the value stored under key.
func (n Namespace) Get(key string) (string, bool) { return n.s.Get(n.name, key) }

// Set stores a value under key.
func (n Namespace) Set(key, value string) { n.s.Set(n.name, key, value) }

// Unset removes key if present.
func (n Namespace) Unset(key string) { n.s.Unset(n.name, key) }
