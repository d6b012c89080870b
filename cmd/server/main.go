package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/jeanfsantos/cloud-capstone-project/internal/app"
	"github.com/jeanfsantos/cloud-capstone-project/internal/attachments"
	"github.com/jeanfsantos/cloud-capstone-project/internal/auth"
	"github.com/jeanfsantos/cloud-capstone-project/internal/broadcast"
	"github.com/jeanfsantos/cloud-capstone-project/internal/config"
	"github.com/jeanfsantos/cloud-capstone-project/internal/logging"
	"github.com/jeanfsantos/cloud-capstone-project/internal/postgres"
	"github.com/jeanfsantos/cloud-capstone-project/internal/redis"
	"github.com/jeanfsantos/cloud-capstone-project/internal/server"
	"github.com/jeanfsantos/cloud-capstone-project/internal/websocket"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

func setupRedis(ctx context.Context, cfg *config.Config) *goredis.Client {
	client, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func runGracefulShutdown(srv *server.Server, hub *websocket.Hub, subscription *redis.Subscription, cancelBroadcast context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		subscription.Close()
		cancelBroadcast()
		hub.Stop()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	// Identifies this process in the shared connection registry.
	instanceID := uuid.NewString()

	// Initialize structured logging
	logging.Init(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "instance_id", instanceID)

	pool := setupDB(cfg)
	defer pool.Close()

	redisClient := setupRedis(context.Background(), cfg)
	defer func() { _ = redisClient.Close() }()

	// Storage and event collaborators
	messageRepo := postgres.NewMessageRepo(pool, clock)
	channelRepo := postgres.NewChannelRepo(pool, clock)
	registry := redis.NewConnectionRegistry(redisClient)
	publisher := redis.NewPublisher(redisClient)

	appSvc := app.NewService(messageRepo, channelRepo, publisher, clock)

	// Transport and fan-out
	hub := websocket.NewHub(int(cfg.MaxConnections))
	broadcaster := broadcast.NewBroadcaster(registry, hub, clock, instanceID, cfg.BroadcastParallelism, cfg.PushTimeout)

	broadcastCtx, cancelBroadcast := context.WithCancel(context.Background())
	subscription := redis.SubscribeMessageCreated(broadcastCtx, redisClient)
	go broadcaster.Run(broadcastCtx, subscription.Ch)

	// Heartbeat marks this instance's registry entries as owned by a live
	// process; registry-cleanup prunes entries of instances without one.
	presence := redis.NewInstancePresence(redisClient, instanceID, clock)
	go presence.Start(broadcastCtx)

	verifier := auth.NewVerifier(cfg.AuthJWTSecret, clock)
	signer := attachments.NewSigner(cfg.UploadURLSecret, cfg.AttachmentBaseURL, cfg.UploadURLExpiry, clock)

	srv := server.NewServer(cfg, instanceID, appSvc, verifier, signer, hub, registry, redisClient, pool)

	done := runGracefulShutdown(srv, hub, subscription, cancelBroadcast)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
