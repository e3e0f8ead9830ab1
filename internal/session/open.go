package session

import (
	"context"
	"fmt"
	"time"

	"github.com/docflow/docflow/client/internal/config"
	"github.com/docflow/docflow/client/internal/database"
	"github.com/docflow/docflow/client/pkg/logger"
)

// Open builds the store named by cfg.Session.Store. The returned close
// function releases any connection it opened.
func Open(ctx context.Context, cfg *config.Config) (Store, func(), error) {
	noop := func() {}
	switch cfg.Session.Store {
	case "memory":
		return NewMemoryStore(), noop, nil
	case "file":
		fs, err := NewFileStore(cfg.Session.TokenFile)
		if err != nil {
			return nil, noop, err
		}
		return fs, noop, nil
	case "redis":
		client, err := database.ConnectRedis(ctx, cfg.RedisAddr(), cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, noop, err
		}
		logger.Infof("using Redis token store at %s", cfg.RedisAddr())
		return NewRedisStore(client, ""), func() { _ = client.Close() }, nil
	case "mongo":
		client, err := database.ConnectMongoRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, 5, time.Second)
		if err != nil {
			return nil, noop, err
		}
		col := client.Database(cfg.MongoDB.Database).Collection("sessions")
		logger.Infof("using MongoDB token store %s.sessions", cfg.MongoDB.Database)
		return NewMongoStore(col), func() { _ = client.Disconnect(context.Background()) }, nil
	}
	return nil, noop, fmt.Errorf("unknown token store %q", cfg.Session.Store)
}
