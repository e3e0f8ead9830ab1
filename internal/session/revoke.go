package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/docflow/docflow/client/internal/token"
)

const revokedPrefix = "revoked:"

func revokedKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return revokedPrefix + hex.EncodeToString(sum[:])
}

// Revoke remembers tok as logged out until its own expiry, so the same token
// presented as a Bearer header is refused afterwards.
func (s *Service) Revoke(ctx context.Context, tok string) error {
	raw := token.Strip(tok)
	if raw == "" {
		return nil
	}
	return s.store.Set(ctx, revokedKey(raw), "1", s.lifetime(raw))
}

// Revoked reports whether tok was logged out through Revoke.
func (s *Service) Revoked(ctx context.Context, tok string) (bool, error) {
	raw := token.Strip(tok)
	if raw == "" {
		return false, nil
	}
	v, err := s.store.Get(ctx, revokedKey(raw))
	if err != nil {
		return false, err
	}
	return v != "", nil
}
