package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Hamish-Leahy/NEIS/internal/config"
	internalhttp "github.com/Hamish-Leahy/NEIS/internal/http"
	"github.com/Hamish-Leahy/NEIS/internal/identity"
	"github.com/Hamish-Leahy/NEIS/internal/jobs"
	"github.com/Hamish-Leahy/NEIS/internal/live"
	"github.com/Hamish-Leahy/NEIS/internal/logger"
	"github.com/Hamish-Leahy/NEIS/internal/repository"
	"github.com/Hamish-Leahy/NEIS/internal/session"
)

func main() {
	cfg := config.Load()

	zlog, err := logger.New(cfg.LogLevel, cfg.LogFormat, "neis-platform")
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	if cfg.JWTSecret == "" {
		zlog.Fatal("JWT_SECRET is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		cancel()
		zlog.Fatal("redis ping failed", zap.Error(err))
	}
	cancel()
	defer func() {
		if err := redisClient.Close(); err != nil {
			zlog.Warn("redis close error", zap.Error(err))
		}
	}()

	sessions := session.NewStore(session.NewRedisKV(redisClient), cfg.SessionKeyPrefix, cfg.RefreshTokenTTL)

	var verifier identity.Verifier
	if cfg.DatabaseURL != "" {
		pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			zlog.Fatal("db connection failed", zap.Error(err))
		}
		defer pool.Close()
		verifier = identity.NewRepoVerifier(repository.NewStore(pool))
		zlog.Info("using repository identity verifier")
	} else if cfg.DemoLoginEnabled {
		verifier = identity.NewDemoVerifier()
		zlog.Warn("using demo identity table; do not deploy this configuration")
	} else {
		zlog.Fatal("no identity verifier configured: set DATABASE_URL or DEMO_LOGIN_ENABLED")
	}

	liveManager := live.NewManager(live.Config{
		ConnectDelay:     cfg.ConnectDelay,
		ParticipantDelay: cfg.ParticipantDelay,
		ReplyDelay:       cfg.ChatReplyDelay,
		Tick:             cfg.SessionTick,
	})
	jobs.StartSessionSweepJob(ctx, cfg, liveManager, zlog)

	server := internalhttp.NewServer(cfg, zlog, verifier, sessions, liveManager, nil)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		zlog.Info("neis-platform listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("http server error", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zlog.Error("shutdown error", zap.Error(err))
	}
}
