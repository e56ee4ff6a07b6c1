package vault

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrSessionNotFound is returned when a session ID has no vault.
var ErrSessionNotFound = errors.New("session not found")

type session struct {
	vault    *Vault
	lastSeen time.Time
}

// Store keeps one Vault per session and expires sessions that have been
// idle for longer than the TTL.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*session
	ttl      time.Duration
	now      func() time.Time
}

// NewStore creates a Store. A ttl <= 0 disables expiry.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// GetOrCreate returns the vault for id, creating it if needed. The second
// return value is true when the vault was created by this call.
func (s *Store) GetOrCreate(id string) (*Vault, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[id]; ok {
		sess.lastSeen = s.now()
		return sess.vault, false
	}
	sess := &session{vault: New(), lastSeen: s.now()}
	s.sessions[id] = sess
	return sess.vault, true
}

// Get returns the vault for an existing session.
func (s *Store) Get(id string) (*Vault, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	sess.lastSeen = s.now()
	return sess.vault, nil
}

// Delete ends a session and discards its vault.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, id)
	return nil
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep removes sessions idle since before now-TTL and returns how many
// were removed.
func (s *Store) Sweep(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.lastSeen) > s.ttl {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Run sweeps expired sessions every interval until ctx is cancelled.
func (s *Store) Run(ctx context.Context, every time.Duration) error {
	if every <= 0 || s.ttl <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-ticker.C:
			if n := s.Sweep(t); n > 0 {
				slog.Debug("expired sessions swept", "count", n, "remaining", s.Len())
			}
		}
	}
}
