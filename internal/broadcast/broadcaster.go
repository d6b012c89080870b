package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/jeanfsantos/cloud-capstone-project/internal/domain"
	"github.com/jeanfsantos/cloud-capstone-project/internal/logging"
	"github.com/jeanfsantos/cloud-capstone-project/internal/metrics"
)

const cleanupTimeout = 5 * time.Second

// Broadcaster delivers persisted messages to the connections this instance
// hosts. Every instance consumes every message-created event, so the union
// of all instances covers the full registry; connections owned by other
// instances are skipped here because only their host can reach them or
// judge them gone.
type Broadcaster struct {
	registry    domain.ConnectionRegistry
	pusher      domain.MessagePusher
	clock       clockwork.Clock
	instanceID  string
	parallelism int
	pushTimeout time.Duration
}

func NewBroadcaster(registry domain.ConnectionRegistry, pusher domain.MessagePusher, clock clockwork.Clock, instanceID string, parallelism int, pushTimeout time.Duration) *Broadcaster {
	if parallelism < 1 {
		parallelism = 1
	}
	return &Broadcaster{
		registry:    registry,
		pusher:      pusher,
		clock:       clock,
		instanceID:  instanceID,
		parallelism: parallelism,
		pushTimeout: pushTimeout,
	}
}

// Broadcast pushes msg to every connection of this instance found in a
// snapshot of the shared registry. Per-connection failures are recorded in
// the returned outcomes, never returned as an error. An error is returned
// only when the registry snapshot itself cannot be taken or the message
// cannot be encoded.
func (b *Broadcaster) Broadcast(ctx context.Context, msg *domain.Message) ([]domain.DeliveryOutcome, error) {
	start := b.clock.Now()

	snapshot, err := b.registry.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot connections: %w", err)
	}

	local := make([]domain.Connection, 0, len(snapshot))
	for _, conn := range snapshot {
		if conn.InstanceID == b.instanceID {
			local = append(local, conn)
		}
	}
	if len(local) == 0 {
		// An empty batch still counts as a processed broadcast.
		b.observeBatch(start)
		return nil, nil
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}

	outcomes := make([]domain.DeliveryOutcome, len(local))
	sem := make(chan struct{}, b.parallelism)
	var wg sync.WaitGroup

	for i, conn := range local {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, id string) {
			defer wg.Done()
			defer func() { <-sem }()
			outcomes[i] = domain.DeliveryOutcome{
				ConnectionID: id,
				Result:       b.deliver(ctx, id, payload),
			}
		}(i, conn.ID)
	}
	wg.Wait()

	b.record(ctx, msg, outcomes, len(snapshot)-len(local))
	b.observeBatch(start)

	return outcomes, nil
}

func (b *Broadcaster) observeBatch(start time.Time) {
	metrics.BroadcastsTotal.Inc()
	metrics.BroadcastDuration.Observe(b.clock.Since(start).Seconds())
}

func (b *Broadcaster) deliver(ctx context.Context, connectionID string, payload []byte) domain.DeliveryResult {
	pushCtx, cancel := context.WithTimeout(ctx, b.pushTimeout)
	defer cancel()

	result := b.pusher.Push(pushCtx, connectionID, payload)
	metrics.DeliveryAttemptsTotal.WithLabelValues(result.Status.String()).Inc()

	if result.Status == domain.Gone {
		b.removeStale(connectionID)
	}
	return result
}

// removeStale drops a connection the transport reported as gone. Removal uses
// its own deadline so cleanup still happens when the broadcast context is
// already cancelled. Removal is idempotent, so concurrent gone signals for
// the same connection are harmless.
func (b *Broadcaster) removeStale(connectionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	logger := logging.WithConnection(connectionID)
	if err := b.registry.Remove(ctx, connectionID); err != nil {
		logger.Error("failed to remove stale connection", "error", err)
		return
	}
	metrics.StaleConnectionsRemoved.Inc()
	logger.Info("removed stale connection")
}

func (b *Broadcaster) record(ctx context.Context, msg *domain.Message, outcomes []domain.DeliveryOutcome, foreign int) {
	logger := logging.WithChannel(msg.ChannelID.String())

	var delivered, gone, transient int
	for _, o := range outcomes {
		switch o.Result.Status {
		case domain.Delivered:
			delivered++
		case domain.Gone:
			gone++
		case domain.Transient:
			transient++
			logger.WarnContext(ctx, "transient delivery failure",
				"connection_id", o.ConnectionID,
				"message_id", msg.MessageID,
				"error", o.Result.Err)
		}
	}

	logger.InfoContext(ctx, "broadcast finished",
		"message_id", msg.MessageID,
		"connections", len(outcomes),
		"foreign", foreign,
		"delivered", delivered,
		"gone", gone,
		"transient", transient)
}

// Run consumes message-created events until ctx is cancelled or the events
// channel is closed. Each event triggers one broadcast.
func (b *Broadcaster) Run(ctx context.Context, events <-chan domain.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-events:
			if !ok {
				return
			}
			if _, err := b.Broadcast(ctx, &msg); err != nil {
				logging.WithChannel(msg.ChannelID.String()).
					ErrorContext(ctx, "broadcast failed", "message_id", msg.MessageID, "error", err)
			}
		}
	}
}
