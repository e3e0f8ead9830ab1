package session

import (
	"context"
	"errors"
	"time"
)

// TokenKey is the well-known key the CLI keeps its bearer token under.
const TokenKey = "jwtToken"

var ErrNoToken = errors.New("no token stored")

// Record is a stored token as persisted by the document-oriented stores.
type Record struct {
	ID        string    `bson:"_id,omitempty" json:"id,omitempty"`
	Key       string    `bson:"key" json:"key"`
	Token     string    `bson:"token" json:"token"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	// ExpiresAt is zero for tokens without an expiry.
	ExpiresAt time.Time `bson:"expiresAt,omitempty" json:"expiresAt,omitempty"`
}

func (r *Record) expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}

// Store persists bearer tokens by key. Get returns "" and a nil error when
// the key is absent or expired.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, token string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
