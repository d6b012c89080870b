package redis

import (
	"context"
	"fmt"

	"github.com/jeanfsantos/cloud-capstone-project/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

// connectionsKey is the hash of every registered connection, keyed by
// connection id with the owning instance id as value. Connections are
// global, not scoped to a channel; the instance id records which server
// process hosts the socket.
const connectionsKey = "connections"

// ConnectionRegistry is the Redis-backed implementation of
// domain.ConnectionRegistry. Hash semantics give the idempotence the
// contract requires: re-adding an id overwrites its owner, removing an
// absent id is a no-op, and concurrent removals of the same id are safe.
type ConnectionRegistry struct {
	rdb *goredis.Client
}

var _ domain.ConnectionRegistry = (*ConnectionRegistry)(nil)

func NewConnectionRegistry(rdb *goredis.Client) *ConnectionRegistry {
	return &ConnectionRegistry{rdb: rdb}
}

func (r *ConnectionRegistry) Add(ctx context.Context, conn domain.Connection) error {
	if err := r.rdb.HSet(ctx, connectionsKey, conn.ID, conn.InstanceID).Err(); err != nil {
		return fmt.Errorf("failed to register connection %s: %w", conn.ID, err)
	}
	return nil
}

func (r *ConnectionRegistry) Remove(ctx context.Context, connectionID string) error {
	if err := r.rdb.HDel(ctx, connectionsKey, connectionID).Err(); err != nil {
		return fmt.Errorf("failed to remove connection %s: %w", connectionID, err)
	}
	return nil
}

func (r *ConnectionRegistry) ListAll(ctx context.Context) ([]domain.Connection, error) {
	entries, err := r.rdb.HGetAll(ctx, connectionsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	conns := make([]domain.Connection, 0, len(entries))
	for id, instanceID := range entries {
		conns = append(conns, domain.Connection{ID: id, InstanceID: instanceID})
	}
	return conns, nil
}
