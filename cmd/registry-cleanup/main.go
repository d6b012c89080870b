// Command registry-cleanup removes connection ids from the shared registry
// whose owning instance no longer holds a heartbeat, e.g. after a crash or
// an unclean deploy. Connections owned by a live instance are left alone.
// Stale ids are otherwise only removed lazily when a broadcast hits them
// and the transport reports them gone.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/url"
	"os"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/jeanfsantos/cloud-capstone-project/internal/redis"
)

func main() {
	var (
		redisURL = flag.String("redis", os.Getenv("REDIS_URL"), "Redis URL (or set REDIS_URL env)")
		dryRun   = flag.Bool("dry-run", false, "Dry run mode (don't write to Redis)")
		verbose  = flag.Bool("verbose", false, "Verbose logging")
	)
	flag.Parse()

	if *redisURL == "" {
		log.Fatal("Redis URL required (--redis or REDIS_URL env)")
	}

	// Configure logging
	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))

	// Connect to Redis
	opts, err := goredis.ParseURL(*redisURL)
	if err != nil {
		log.Fatalf("Failed to parse Redis URL: %v", err)
	}
	rdb := goredis.NewClient(opts)
	defer rdb.Close()

	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	slog.Info("Connected to Redis", "url", sanitizeURL(*redisURL))

	if err := cleanupRegistry(ctx, rdb, *dryRun); err != nil {
		log.Fatalf("Cleanup failed: %v", err)
	}

	slog.Info("Cleanup complete")
}

func cleanupRegistry(ctx context.Context, rdb *goredis.Client, dryRun bool) error {
	start := time.Now()
	registry := redis.NewConnectionRegistry(rdb)

	slog.Info("Starting registry cleanup", "dry_run", dryRun)

	conns, err := registry.ListAll(ctx)
	if err != nil {
		return err
	}

	// One liveness check per instance, not per connection.
	alive := make(map[string]bool)

	var removed, skipped int
	for _, conn := range conns {
		live, ok := alive[conn.InstanceID]
		if !ok {
			live, err = redis.InstanceAlive(ctx, rdb, conn.InstanceID)
			if err != nil {
				return err
			}
			alive[conn.InstanceID] = live
		}

		if live {
			slog.Debug("Skipping connection of live instance",
				"connection_id", conn.ID, "instance_id", conn.InstanceID)
			skipped++
			continue
		}

		slog.Debug("Found orphaned connection",
			"connection_id", conn.ID, "instance_id", conn.InstanceID)
		if dryRun {
			removed++
			continue
		}
		if err := registry.Remove(ctx, conn.ID); err != nil {
			return err
		}
		removed++
	}

	slog.Info("Registry cleanup finished",
		"found", len(conns),
		"removed", removed,
		"skipped", skipped,
		"dry_run", dryRun,
		"duration", time.Since(start))

	return nil
}

func sanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "(unparseable)"
	}
	if u.User != nil {
		u.User = url.User("***")
	}
	return u.String()
}
