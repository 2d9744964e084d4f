package session

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// MemoryStore holds a single session in memory and serves it to every
// request. It stands in for the browser cookie jar in tests.
type MemoryStore struct {
	mu        sync.Mutex
	now       func() time.Time
	token     string
	username  string
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

// SetClock replaces the clock used for expiry.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryStore) Open(w http.ResponseWriter, r *http.Request) Store {
	return m
}

func (m *MemoryStore) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token == "" || !m.now().Before(m.expiresAt) {
		return "", ErrNoToken
	}
	return m.token, nil
}

func (m *MemoryStore) Username(ctx context.Context) (string, error) {
	if _, err := m.Token(ctx); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.username, nil
}

func (m *MemoryStore) Save(ctx context.Context, token, username string, ttl time.Duration) error {
	if token == "" {
		return ErrEmptyToken
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.token = token
	m.username = username
	m.expiresAt = m.now().Add(ttl)
	return nil
}

func (m *MemoryStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.token = ""
	m.username = ""
	m.expiresAt = time.Time{}
	return nil
}
