package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"task-tracker/backend/internal/session/domain"
)

type memoryEntry struct {
	session   domain.Session
	expiresAt time.Time
}

// MemoryStore is an in-process Store with the same TTL and overwrite semantics as RedisStore.
// Used for local development and tests.
type MemoryStore struct {
	mu  sync.Mutex
	m   map[string]memoryEntry
	ttl time.Duration
	now func() time.Time
}

// NewMemoryStore returns an empty MemoryStore. A non-positive ttl uses domain.DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = domain.DefaultTTL
	}
	return &MemoryStore{m: make(map[string]memoryEntry), ttl: ttl, now: time.Now}
}

// SetClock replaces the time source. Tests use it to expire records.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) Put(_ context.Context, username, accessToken, refreshToken string) error {
	if username == "" {
		return errors.New("session: username is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[username] = memoryEntry{
		session:   domain.Session{Username: username, AccessToken: accessToken, RefreshToken: refreshToken},
		expiresAt: s.now().Add(s.ttl),
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, username string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[username]
	if !ok {
		return nil, nil
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.m, username)
		return nil, nil
	}
	sess := e.session
	return &sess, nil
}

func (s *MemoryStore) Delete(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, username)
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

// Len reports how many records are held, expired ones included until next touched.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}
