// Package session holds the state of an authenticated user between
// registry verification and logout.
//
// The master password is the only authentication evidence. It is kept in a
// memguard locked buffer (mlocked, guard-paged) and wiped by Destroy; it is
// never written to disk.
package session

import (
	"errors"
	"sync"

	"github.com/awnumar/memguard"
)

// ErrNotAuthenticated is returned for operations on a nil or destroyed session
var ErrNotAuthenticated = errors.New("not authenticated")

// Session is the descriptor returned by a successful register or verify.
type Session struct {
	Username  string
	VaultPath string

	mu       sync.RWMutex
	password *memguard.LockedBuffer
}

// New creates an authenticated session. The password slice is moved into
// protected memory and wiped. An empty password yields a session that is
// not authenticated.
func New(username, vaultPath string, password []byte) *Session {
	return &Session{
		Username:  username,
		VaultPath: vaultPath,
		password:  memguard.NewBufferFromBytes(password),
	}
}

// Password returns the master password, or nil after Destroy. The returned
// slice aliases protected memory and is unmapped by Destroy or Replace; use
// WithPassword when either may run concurrently.
func (s *Session) Password() []byte {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.password == nil || !s.password.IsAlive() {
		return nil
	}
	return s.password.Bytes()
}

// WithPassword calls fn with the master password. Destroy and Replace wait
// until fn returns, so the slice stays valid for the duration of the call.
// fn must not retain the slice or call Destroy or Replace.
func (s *Session) WithPassword(fn func(password []byte) error) error {
	if s == nil {
		return ErrNotAuthenticated
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.password == nil || !s.password.IsAlive() {
		return ErrNotAuthenticated
	}
	return fn(s.password.Bytes())
}

// Authenticated reports whether the session still holds its password
func (s *Session) Authenticated() bool {
	return s.Password() != nil
}

// Replace swaps the held password, e.g. after a password change. The new
// slice is wiped.
func (s *Session) Replace(password []byte) {
	next := memguard.NewBufferFromBytes(password)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.password != nil {
		s.password.Destroy()
	}
	s.password = next
}

// Destroy wipes the password. It is safe to call more than once.
func (s *Session) Destroy() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.password != nil {
		s.password.Destroy()
		s.password = nil
	}
}
