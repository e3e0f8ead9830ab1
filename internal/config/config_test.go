package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("DOCFLOW_ENV_FILE", "does-not-exist.env")
	t.Setenv("DOCFLOW_API_BASE_URL", "http://api.local/")
	t.Setenv("DOCFLOW_REQUEST_TIMEOUT", "5")
	t.Setenv("DOCFLOW_TOKEN_STORE", "redis")
	t.Setenv("REDIS_HOST", "localhost")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "http://api.local", cfg.API.BaseURL)
	require.Equal(t, 5*time.Second, cfg.API.RequestTimeout)
	require.Equal(t, AdminRealmsAll, cfg.API.AdminRealmPolicy)
	require.Equal(t, "/login", cfg.API.LoginPath)
	require.Equal(t, "localhost:6379", cfg.RedisAddr())
}

func TestLoadConfig_RejectsUnknownPolicy(t *testing.T) {
	t.Setenv("DOCFLOW_ENV_FILE", "does-not-exist.env")
	t.Setenv("DOCFLOW_ADMIN_REALM_POLICY", "some")
	t.Setenv("DOCFLOW_TOKEN_STORE", "memory")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestValidate_StoreRequirements(t *testing.T) {
	cfg := &Config{}
	cfg.API.BaseURL = "http://x"
	cfg.API.RequestTimeout = time.Second
	cfg.API.AdminRealmPolicy = AdminRealmsDefault
	cfg.API.DefaultRealm = "1"
	cfg.Session.Store = "mongo"
	require.Error(t, cfg.Validate())

	cfg.MongoDB.URI = "mongodb://localhost:27017"
	require.NoError(t, cfg.Validate())
	require.Equal(t, 1, cfg.API.FetchConcurrency)
}
