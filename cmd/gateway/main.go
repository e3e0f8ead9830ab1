package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/docflow/docflow/client/handlers"
	"github.com/docflow/docflow/client/internal/config"
	"github.com/docflow/docflow/client/internal/database"
	"github.com/docflow/docflow/client/internal/session"
	"github.com/docflow/docflow/client/internal/storage"
	"github.com/docflow/docflow/client/pkg/logger"
	"github.com/docflow/docflow/client/pkg/metrics"
	"github.com/docflow/docflow/client/pkg/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

func main() {
	// LOG_LEVEL: debug|info|warn|error|fatal
	logger.Init(os.Getenv("LOG_LEVEL"))
	defer logger.Sync()
	logger.Debugf("startup: LOG_LEVEL=%s", logger.LevelString())

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	if cfg.Session.Store == "file" {
		logger.Warnf("file token store selected for the gateway; sessions are local to this process")
	}
	logger.Infof("config loaded: api=%s store=%s redis=%v mongo=%v minio=%v",
		cfg.API.BaseURL, cfg.Session.Store, cfg.Redis.Host != "", cfg.MongoDB.URI != "", cfg.MinIO.Endpoint != "")

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(cors)

	ctx := context.Background()
	probes := map[string]handlers.Probe{}

	store, closeStore, err := session.Open(ctx, cfg)
	if err != nil {
		logger.Fatalf("failed to open %s token store: %v", cfg.Session.Store, err)
	}
	defer closeStore()
	sessions := session.NewService(store, cfg.Session.TTL)
	probes["sessions"] = func(ctx context.Context) error {
		_, err := store.Get(ctx, "readiness-probe")
		return err
	}

	// Redis for the shared rate limiter, when configured
	var rdb *redis.Client
	if cfg.RateLimit.Enabled && cfg.RateLimit.UseRedis && cfg.Redis.Host != "" {
		rdb, err = database.ConnectRedis(ctx, cfg.RedisAddr(), cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Warnf("redis rate limiter unavailable, falling back to in-memory: %v", err)
			rdb = nil
		} else {
			defer rdb.Close()
			probes["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		}
	}
	var limit []gin.HandlerFunc
	if cfg.RateLimit.Enabled {
		win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
		limit = append(limit, middleware.RedisRateLimitMiddleware(rdb, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		logger.Infof("rate limiter enabled: rps=%.1f burst=%d shared=%v", cfg.RateLimit.RPS, cfg.RateLimit.Burst, rdb != nil)
	}

	// presign locally when MinIO credentials are present, else ask minio-api
	var presigner storage.Presigner
	if cfg.MinIO.Endpoint != "" && cfg.MinIO.AccessKey != "" {
		mp, err := storage.NewMinIOPresigner(cfg.MinIO)
		if err != nil {
			logger.Fatalf("invalid MinIO configuration: %v", err)
		}
		if err := mp.EnsureBucket(ctx); err != nil {
			logger.Warnf("MinIO bucket %s not ready: %v", cfg.MinIO.Bucket, err)
		}
		presigner = mp
		probes["minio"] = mp.EnsureBucket
	}

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	handlers.RegisterHealth(r, probes)
	handlers.RegisterSwagger(r)
	handlers.NewGateway(handlers.Options{
		Config:    cfg,
		Sessions:  sessions,
		Presigner: presigner,
	}).Register(r, limit...)

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Infof("starting docflow gateway on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("graceful shutdown failed: %v", err)
	}
}

// cors is the permissive dev policy.
func cors(c *gin.Context) {
	c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
	c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
	c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
	c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length")
	if c.Request.Method == http.MethodOptions {
		c.AbortWithStatus(http.StatusOK)
		return
	}
	c.Next()
}
