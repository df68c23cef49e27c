package auth

import (
	"sync"
	"time"
)

type issuedToken struct {
	jti       string
	expiresAt time.Time
}

// TokenRevocationStore remembers revoked token ids until the tokens would
// have expired anyway. It also tracks issued ids per user so a password
// reset can sign a user out everywhere.
type TokenRevocationStore struct {
	mu sync.RWMutex

	// revoked maps jti to token expiry.
	revoked map[string]time.Time
	issued  map[int64][]issuedToken
	now     func() time.Time
	done    chan struct{}
	once    sync.Once
}

// NewTokenRevocationStore starts a cleanup loop that runs every interval.
// Call Close to stop it.
func NewTokenRevocationStore(interval time.Duration) *TokenRevocationStore {
	s := &TokenRevocationStore{
		revoked: make(map[string]time.Time),
		issued:  make(map[int64][]issuedToken),
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go s.cleanupLoop(interval)
	return s
}

// Track records a freshly issued token.
func (s *TokenRevocationStore) Track(userID int64, jti string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued[userID] = append(s.issued[userID], issuedToken{jti: jti, expiresAt: expiresAt})
}

// Revoke invalidates one token.
func (s *TokenRevocationStore) Revoke(jti string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[jti] = expiresAt
}

// RevokeAllForUser revokes every tracked token of the user and returns how
// many were newly revoked.
func (s *TokenRevocationStore) RevokeAllForUser(userID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.issued[userID] {
		if _, ok := s.revoked[t.jti]; !ok {
			s.revoked[t.jti] = t.expiresAt
			n++
		}
	}
	delete(s.issued, userID)
	return n
}

func (s *TokenRevocationStore) IsRevoked(jti string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.revoked[jti]
	return ok
}

// Count returns the number of revoked, unexpired tokens.
func (s *TokenRevocationStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.revoked)
}

// Close stops the cleanup loop. Safe to call more than once.
func (s *TokenRevocationStore) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *TokenRevocationStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

// cleanup drops entries for tokens past their expiry.
func (s *TokenRevocationStore) cleanup() {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	for jti, exp := range s.revoked {
		if now.After(exp) {
			delete(s.revoked, jti)
		}
	}
	for user, tokens := range s.issued {
		live := tokens[:0]
		for _, t := range tokens {
			if !now.After(t.expiresAt) {
				live = append(live, t)
			}
		}
		if len(live) == 0 {
			delete(s.issued, user)
			continue
		}
		s.issued[user] = live
	}
}
