package session

import (
	"context"
	"testing"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/docflow/docflow/client/internal/config"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()

	cfg := &config.Config{}
	cfg.Session.Store = "memory"
	s, closeFn, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer closeFn()
	require.IsType(t, &MemoryStore{}, s)

	cfg.Session.Store = "file"
	cfg.Session.TokenFile = t.TempDir()
	s, _, err = Open(ctx, cfg)
	require.NoError(t, err)
	require.IsType(t, &FileStore{}, s)

	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()
	cfg.Session.Store = "redis"
	cfg.Redis.Host = m.Host()
	cfg.Redis.Port = m.Port()
	s, closeRedis, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer closeRedis()
	require.NoError(t, s.Set(ctx, "k", "tok", 0))
	require.True(t, m.Exists("docflow:token:k"))

	cfg.Session.Store = "bogus"
	_, _, err = Open(ctx, cfg)
	require.Error(t, err)
}
