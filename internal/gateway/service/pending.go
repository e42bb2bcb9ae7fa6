package service

import (
	"errors"
	"sync"
	"time"

	"github.com/adminbridge/authgate/internal/gateway/domain"
)

var (
	// ErrStateNotFound covers unknown, expired, and already-consumed states
	// alike so a caller cannot probe which one it was.
	ErrStateNotFound = errors.New("state not found or expired")

	// ErrTooManyPending is returned when the correlation store is at
	// capacity. The client should restart the login flow later.
	ErrTooManyPending = errors.New("too many pending authorizations")
)

const (
	// DefaultPendingTTL is how long a login redirect may stay outstanding
	// before the state is discarded.
	DefaultPendingTTL = 10 * time.Minute

	// DefaultPendingCap bounds the correlation store so unfinished login
	// attempts cannot grow memory without limit.
	DefaultPendingCap = 10000
)

// PendingStore correlates in-flight authorization redirects with their PKCE
// verifiers. Entries are single-use: Take removes the entry whether or not
// the subsequent exchange succeeds.
type PendingStore struct {
	mu      sync.Mutex
	entries map[string]domain.PendingAuthorization
	ttl     time.Duration
	cap     int
	now     func() time.Time
}

// NewPendingStore creates a correlation store. Non-positive ttl or cap fall
// back to the defaults.
func NewPendingStore(ttl time.Duration, capacity int) *PendingStore {
	if ttl <= 0 {
		ttl = DefaultPendingTTL
	}
	if capacity <= 0 {
		capacity = DefaultPendingCap
	}
	return &PendingStore{
		entries: make(map[string]domain.PendingAuthorization),
		ttl:     ttl,
		cap:     capacity,
		now:     time.Now,
	}
}

// Put stores the verifier under the opaque state value.
func (s *PendingStore) Put(state, verifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if len(s.entries) >= s.cap {
		s.sweepLocked(now)
		if len(s.entries) >= s.cap {
			return ErrTooManyPending
		}
	}

	s.entries[state] = domain.PendingAuthorization{
		State:        state,
		CodeVerifier: verifier,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.ttl),
	}
	return nil
}

// Take removes and returns the verifier for state. The removal happens
// exactly once; a second Take for the same state fails no matter how the
// first caller fared.
func (s *PendingStore) Take(state string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[state]
	if !ok {
		return "", ErrStateNotFound
	}
	delete(s.entries, state)

	if entry.Expired(s.now()) {
		return "", ErrStateNotFound
	}
	return entry.CodeVerifier, nil
}

// Sweep drops expired entries and returns how many were removed.
func (s *PendingStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked(s.now())
}

// Len reports the number of outstanding authorizations.
func (s *PendingStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *PendingStore) sweepLocked(now time.Time) int {
	var removed int
	for state, entry := range s.entries {
		if entry.Expired(now) {
			delete(s.entries, state)
			removed++
		}
	}
	return removed
}
