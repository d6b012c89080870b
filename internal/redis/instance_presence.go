package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
)

const (
	// presenceTTL bounds how long a crashed instance still counts as live.
	presenceTTL       = 30 * time.Second
	presenceRefresh   = 10 * time.Second
	presenceKeyPrefix = "instance:alive:"
)

// InstancePresence maintains a heartbeat key for one server instance so that
// other processes can tell live instances from crashed ones. The registry
// keeps connection ids across restarts; a connection whose owning instance
// has no heartbeat can never be delivered to again and is safe to prune.
type InstancePresence struct {
	rdb        *goredis.Client
	instanceID string
	clock      clockwork.Clock
}

func NewInstancePresence(rdb *goredis.Client, instanceID string, clock clockwork.Clock) *InstancePresence {
	return &InstancePresence{rdb: rdb, instanceID: instanceID, clock: clock}
}

func presenceKey(instanceID string) string {
	return presenceKeyPrefix + instanceID
}

// Start writes the heartbeat immediately and then refreshes it until ctx is
// cancelled. On shutdown the key is deleted so the instance reads as dead
// right away instead of after the TTL.
func (p *InstancePresence) Start(ctx context.Context) {
	if err := p.beat(ctx); err != nil {
		slog.Error("Failed to write instance heartbeat", "instance_id", p.instanceID, "error", err)
	}

	ticker := p.clock.NewTicker(presenceRefresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := p.rdb.Del(cleanupCtx, presenceKey(p.instanceID)).Err(); err != nil {
				slog.Error("Failed to delete instance heartbeat", "instance_id", p.instanceID, "error", err)
			}
			cancel()
			return
		case <-ticker.Chan():
			if err := p.beat(ctx); err != nil {
				slog.Error("Failed to refresh instance heartbeat", "instance_id", p.instanceID, "error", err)
			}
		}
	}
}

func (p *InstancePresence) beat(ctx context.Context) error {
	if err := p.rdb.Set(ctx, presenceKey(p.instanceID), "1", presenceTTL).Err(); err != nil {
		return fmt.Errorf("failed to set heartbeat for instance %s: %w", p.instanceID, err)
	}
	return nil
}

// InstanceAlive reports whether the given instance currently holds a
// heartbeat key.
func InstanceAlive(ctx context.Context, rdb *goredis.Client, instanceID string) (bool, error) {
	n, err := rdb.Exists(ctx, presenceKey(instanceID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check heartbeat for instance %s: %w", instanceID, err)
	}
	return n > 0, nil
}
