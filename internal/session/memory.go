package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps tokens in process; used by tests and one-shot commands.
type MemoryStore struct {
	mu    sync.RWMutex
	store map[string]*Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{store: make(map[string]*Record)}
}

func (m *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	r, ok := m.store[key]
	m.mu.RUnlock()
	if !ok {
		return "", nil
	}
	if r.expired(time.Now().UTC()) {
		_ = m.Delete(ctx, key)
		return "", nil
	}
	return r.Token, nil
}

func (m *MemoryStore) Set(ctx context.Context, key, token string, ttl time.Duration) error {
	now := time.Now().UTC()
	r := &Record{Key: key, Token: token, CreatedAt: now}
	if ttl > 0 {
		r.ExpiresAt = now.Add(ttl)
	}
	m.mu.Lock()
	m.store[key] = r
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.store, key)
	m.mu.Unlock()
	return nil
}
