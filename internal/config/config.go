package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration shared by the CLI and the gateway.
type Config struct {
	API       APIConfig
	Session   SessionConfig
	Server    ServerConfig
	RateLimit RateLimitConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	MinIO     MinIOConfig
	JWT       JWTConfig
}

// APIConfig describes the upstream flow/auth/minio-api services.
type APIConfig struct {
	BaseURL          string
	RequestTimeout   time.Duration
	FetchConcurrency int
	// AdminRealmPolicy is "all" (every realm the backend reports) or "default".
	AdminRealmPolicy string
	DefaultRealm     string
	LoginPath        string
	ClientRPS        float64
	ClientBurst      int
	DirectoryTTL     time.Duration
}

type SessionConfig struct {
	// Store selects the token store: memory|file|redis|mongo.
	Store     string
	TokenFile string
	TTL       time.Duration
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type RateLimitConfig struct {
	Enabled       bool
	UseRedis      bool
	RPS           float64
	Burst         int
	WindowSeconds int
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	Region    string
}

type JWTConfig struct {
	Secret string
}

const (
	AdminRealmsAll     = "all"
	AdminRealmsDefault = "default"
)

// LoadConfig loads configuration from environment variables and an optional .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(envFile())

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("DOCFLOW_API_BASE_URL", "http://localhost:8080")
	v.SetDefault("DOCFLOW_REQUEST_TIMEOUT", 15)
	v.SetDefault("DOCFLOW_FETCH_CONCURRENCY", 8)
	v.SetDefault("DOCFLOW_ADMIN_REALM_POLICY", AdminRealmsAll)
	v.SetDefault("DOCFLOW_DEFAULT_REALM", "1")
	v.SetDefault("DOCFLOW_LOGIN_PATH", "/login")
	v.SetDefault("DOCFLOW_CLIENT_RPS", 0)
	v.SetDefault("DOCFLOW_CLIENT_BURST", 10)
	v.SetDefault("DOCFLOW_DIRECTORY_CACHE_TTL", 300)
	v.SetDefault("DOCFLOW_TOKEN_STORE", "file")
	v.SetDefault("DOCFLOW_TOKEN_FILE", defaultTokenDir())
	v.SetDefault("SESSION_TTL", 60)
	v.SetDefault("SERVER_PORT", "5020")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_ENVIRONMENT", "development")
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("RATE_LIMIT_WINDOW", 1)
	v.SetDefault("MONGODB_DATABASE", "docflow")
	v.SetDefault("MONGODB_TIMEOUT", 10)
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("MINIO_BUCKET", "documents")
	v.SetDefault("MINIO_REGION", "us-east-1")

	cfg := &Config{
		API: APIConfig{
			BaseURL:          strings.TrimRight(v.GetString("DOCFLOW_API_BASE_URL"), "/"),
			RequestTimeout:   time.Duration(v.GetInt("DOCFLOW_REQUEST_TIMEOUT")) * time.Second,
			FetchConcurrency: v.GetInt("DOCFLOW_FETCH_CONCURRENCY"),
			AdminRealmPolicy: strings.ToLower(v.GetString("DOCFLOW_ADMIN_REALM_POLICY")),
			DefaultRealm:     v.GetString("DOCFLOW_DEFAULT_REALM"),
			LoginPath:        v.GetString("DOCFLOW_LOGIN_PATH"),
			ClientRPS:        v.GetFloat64("DOCFLOW_CLIENT_RPS"),
			ClientBurst:      v.GetInt("DOCFLOW_CLIENT_BURST"),
			DirectoryTTL:     time.Duration(v.GetInt("DOCFLOW_DIRECTORY_CACHE_TTL")) * time.Second,
		},
		Session: SessionConfig{
			Store:     strings.ToLower(v.GetString("DOCFLOW_TOKEN_STORE")),
			TokenFile: v.GetString("DOCFLOW_TOKEN_FILE"),
			TTL:       time.Duration(v.GetInt("SESSION_TTL")) * time.Minute,
		},
		Server: ServerConfig{
			Port:         v.GetString("SERVER_PORT"),
			Host:         v.GetString("SERVER_HOST"),
			Environment:  v.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled:       v.GetBool("RATE_LIMIT_ENABLED"),
			UseRedis:      v.GetBool("RATE_LIMIT_USE_REDIS"),
			RPS:           v.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         v.GetInt("RATE_LIMIT_BURST"),
			WindowSeconds: v.GetInt("RATE_LIMIT_WINDOW"),
		},
		MongoDB: MongoDBConfig{
			URI:      v.GetString("MONGODB_URI"),
			Database: v.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(v.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		MinIO: MinIOConfig{
			Endpoint:  v.GetString("MINIO_ENDPOINT"),
			AccessKey: v.GetString("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			UseSSL:    v.GetBool("MINIO_USE_SSL"),
			Bucket:    v.GetString("MINIO_BUCKET"),
			Region:    v.GetString("MINIO_REGION"),
		},
		JWT: JWTConfig{
			Secret: os.Getenv("JWT_SECRET"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects combinations the client cannot run with.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("DOCFLOW_API_BASE_URL is required")
	}
	if c.API.RequestTimeout <= 0 {
		return fmt.Errorf("DOCFLOW_REQUEST_TIMEOUT must be positive")
	}
	switch c.API.AdminRealmPolicy {
	case AdminRealmsAll, AdminRealmsDefault:
	default:
		return fmt.Errorf("unknown DOCFLOW_ADMIN_REALM_POLICY %q (want all|default)", c.API.AdminRealmPolicy)
	}
	if c.API.AdminRealmPolicy == AdminRealmsDefault && c.API.DefaultRealm == "" {
		return fmt.Errorf("DOCFLOW_DEFAULT_REALM is required with the default admin realm policy")
	}
	switch c.Session.Store {
	case "memory", "file":
	case "redis":
		if c.Redis.Host == "" {
			return fmt.Errorf("REDIS_HOST is required for the redis token store")
		}
	case "mongo":
		if c.MongoDB.URI == "" {
			return fmt.Errorf("MONGODB_URI is required for the mongo token store")
		}
	default:
		return fmt.Errorf("unknown DOCFLOW_TOKEN_STORE %q", c.Session.Store)
	}
	if c.API.FetchConcurrency <= 0 {
		c.API.FetchConcurrency = 1
	}
	return nil
}

// RedisAddr joins host and port.
func (c *Config) RedisAddr() string {
	return c.Redis.Host + ":" + c.Redis.Port
}

func envFile() string {
	if p := os.Getenv("DOCFLOW_ENV_FILE"); p != "" {
		return p
	}
	return ".env"
}

func defaultTokenDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".docflow"
	}
	return filepath.Join(home, ".docflow")
}
