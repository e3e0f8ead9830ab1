package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/docflow/docflow/client/internal/token"
)

// Service issues opaque session ids that map to upstream bearer tokens.
type Service struct {
	store Store
	ttl   time.Duration
}

func NewService(s Store, ttl time.Duration) *Service { return &Service{store: s, ttl: ttl} }

// CreateSession stores tok under a fresh random id and returns the id.
// The session never outlives the token's own exp claim.
func (s *Service) CreateSession(ctx context.Context, tok string) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	id := hex.EncodeToString(b)
	if err := s.store.Set(ctx, id, token.Strip(tok), s.lifetime(tok)); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Service) lifetime(tok string) time.Duration {
	ttl := s.ttl
	c, err := token.Decode(tok)
	if err != nil || c.ExpiresAt == nil {
		return ttl
	}
	left := time.Until(c.ExpiresAt.Time)
	if left <= 0 {
		// keep a minimal TTL so stores never persist an already-expired token
		return time.Second
	}
	if ttl <= 0 || left < ttl {
		return left
	}
	return ttl
}

// Resolve returns the token for id, or "" when the session is unknown.
func (s *Service) Resolve(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", nil
	}
	return s.store.Get(ctx, id)
}

func (s *Service) Destroy(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// Handle returns the token source bound to session id.
func (s *Service) Handle(id string) *Handle {
	return NewHandle(s.store, id)
}
