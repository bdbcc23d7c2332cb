// Package session persists per-browser dashboard state between requests.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kjstillabower/nimbus/internal/dashboard"
	"github.com/kjstillabower/nimbus/internal/observability"
)

// CookieName is the cookie carrying the session ID.
const CookieName = "nimbus_session"

// Store defines the interface for session state implementations.
// Get returns stored state if present and not expired, Set stores state with TTL.
type Store interface {
	Get(ctx context.Context, id string) (dashboard.State, bool, error)
	Set(ctx context.Context, id string, state dashboard.State, ttl time.Duration) error
}

// NewID returns a fresh session ID.
func NewID() string {
	return uuid.New().String()
}

// ValidID reports whether id looks like one issued by NewID. Anything else is treated as no session.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// DefaultMaxEntries caps an InMemoryStore built by NewInMemoryStore.
const DefaultMaxEntries = 100000

// sweepInterval is the minimum time between full expiry sweeps run from Set.
const sweepInterval = time.Minute

// InMemoryStore implements Store using a map with TTL-based expiration. Expired entries are
// removed on access and by a periodic sweep on Set; at capacity, the entry closest to expiry is
// evicted. Safe for concurrent use.
type InMemoryStore struct {
	mu         sync.Mutex
	data       map[string]entry
	maxEntries int
	nextSweep  time.Time
	now        func() time.Time
}

type entry struct {
	state     dashboard.State
	expiresAt time.Time
}

// NewInMemoryStore creates a new in-memory store holding at most DefaultMaxEntries sessions.
func NewInMemoryStore() *InMemoryStore {
	return NewInMemoryStoreWithLimit(DefaultMaxEntries)
}

// NewInMemoryStoreWithLimit creates a store holding at most maxEntries sessions. Zero or less
// means DefaultMaxEntries.
func NewInMemoryStoreWithLimit(maxEntries int) *InMemoryStore {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &InMemoryStore{
		data:       make(map[string]entry),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get retrieves state for id if present and not expired.
// Returns (state, true, nil) on hit, (zero, false, nil) on miss or expiration.
func (s *InMemoryStore) Get(ctx context.Context, id string) (dashboard.State, bool, error) {
	if err := ctx.Err(); err != nil {
		return dashboard.State{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[id]
	if !ok {
		return dashboard.State{}, false, nil
	}
	if s.now().After(e.expiresAt) {
		delete(s.data, id)
		return dashboard.State{}, false, nil
	}
	return e.state, true, nil
}

// Set stores state under id; the entry expires after ttl.
func (s *InMemoryStore) Set(ctx context.Context, id string, state dashboard.State, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if !now.Before(s.nextSweep) {
		s.sweep(now)
	}
	if _, exists := s.data[id]; !exists && len(s.data) >= s.maxEntries {
		s.sweep(now)
		if len(s.data) >= s.maxEntries {
			s.evictSoonest()
		}
	}
	s.data[id] = entry{state: state, expiresAt: now.Add(ttl)}
	return nil
}

// sweep drops expired entries. Caller holds mu.
func (s *InMemoryStore) sweep(now time.Time) {
	for id, e := range s.data {
		if now.After(e.expiresAt) {
			delete(s.data, id)
		}
	}
	s.nextSweep = now.Add(sweepInterval)
}

// evictSoonest drops the entry closest to expiry. Caller holds mu.
func (s *InMemoryStore) evictSoonest() {
	var (
		victim string
		first  time.Time
	)
	for id, e := range s.data {
		if victim == "" || e.expiresAt.Before(first) {
			victim, first = id, e.expiresAt
		}
	}
	if victim != "" {
		delete(s.data, victim)
		observability.SessionsEvictedTotal.Inc()
	}
}

// Len returns the number of entries, expired ones included until they are next swept or read.
func (s *InMemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}
