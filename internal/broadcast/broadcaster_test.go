package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeanfsantos/cloud-capstone-project/internal/domain"
	"github.com/jeanfsantos/cloud-capstone-project/internal/metrics"
)

const testInstanceID = "instance-1"

type mockRegistry struct {
	mu        sync.Mutex
	listAllFn func(ctx context.Context) ([]domain.Connection, error)
	removeFn  func(ctx context.Context, connectionID string) error
	removed   []string
}

func (m *mockRegistry) Add(_ context.Context, _ domain.Connection) error {
	return nil
}

func (m *mockRegistry) Remove(ctx context.Context, connectionID string) error {
	m.mu.Lock()
	m.removed = append(m.removed, connectionID)
	m.mu.Unlock()
	if m.removeFn != nil {
		return m.removeFn(ctx, connectionID)
	}
	return nil
}

func (m *mockRegistry) ListAll(ctx context.Context) ([]domain.Connection, error) {
	if m.listAllFn != nil {
		return m.listAllFn(ctx)
	}
	return nil, nil
}

func (m *mockRegistry) removedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.removed...)
}

func localConns(ids ...string) []domain.Connection {
	conns := make([]domain.Connection, len(ids))
	for i, id := range ids {
		conns[i] = domain.Connection{ID: id, InstanceID: testInstanceID}
	}
	return conns
}

type mockPusher struct {
	pushFn func(ctx context.Context, connectionID string, payload []byte) domain.DeliveryResult
}

func (m *mockPusher) Push(ctx context.Context, connectionID string, payload []byte) domain.DeliveryResult {
	if m.pushFn != nil {
		return m.pushFn(ctx, connectionID, payload)
	}
	return domain.DeliveryResult{Status: domain.Delivered}
}

func testMessage() *domain.Message {
	return &domain.Message{
		MessageID: uuid.New(),
		ChannelID: uuid.New(),
		User:      domain.User{ID: "user-1", Name: "alice"},
		Text:      "hello",
		CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestBroadcastDeliversToEveryConnection(t *testing.T) {
	registry := &mockRegistry{
		listAllFn: func(_ context.Context) ([]domain.Connection, error) {
			return localConns("conn-a", "conn-b", "conn-c"), nil
		},
	}

	var mu sync.Mutex
	pushed := make(map[string][]byte)
	pusher := &mockPusher{
		pushFn: func(_ context.Context, connectionID string, payload []byte) domain.DeliveryResult {
			mu.Lock()
			pushed[connectionID] = payload
			mu.Unlock()
			return domain.DeliveryResult{Status: domain.Delivered}
		},
	}

	b := NewBroadcaster(registry, pusher, clockwork.NewFakeClock(), testInstanceID, 4, time.Second)
	msg := testMessage()

	outcomes, err := b.Broadcast(context.Background(), msg)
	require.NoError(t, err)
	require.Len(t, outcomes, 3)

	for _, o := range outcomes {
		assert.Equal(t, domain.Delivered, o.Result.Status)
	}

	require.Len(t, pushed, 3)
	var got domain.Message
	require.NoError(t, json.Unmarshal(pushed["conn-b"], &got))
	assert.Equal(t, msg.MessageID, got.MessageID)
	assert.Equal(t, "hello", got.Text)
	assert.Empty(t, registry.removedIDs())
}

func TestBroadcastSkipsConnectionsOfOtherInstances(t *testing.T) {
	registry := &mockRegistry{
		listAllFn: func(_ context.Context) ([]domain.Connection, error) {
			return []domain.Connection{
				{ID: "conn-a", InstanceID: testInstanceID},
				{ID: "conn-b", InstanceID: "instance-2"},
			}, nil
		},
	}

	var mu sync.Mutex
	var pushedIDs []string
	pusher := &mockPusher{
		pushFn: func(_ context.Context, connectionID string, _ []byte) domain.DeliveryResult {
			mu.Lock()
			pushedIDs = append(pushedIDs, connectionID)
			mu.Unlock()
			// A hub reports ids it does not host as gone; foreign ids must
			// never get that far.
			if connectionID != "conn-a" {
				return domain.DeliveryResult{Status: domain.Gone, Err: errors.New("unknown connection")}
			}
			return domain.DeliveryResult{Status: domain.Delivered}
		},
	}

	b := NewBroadcaster(registry, pusher, clockwork.NewFakeClock(), testInstanceID, 4, time.Second)

	outcomes, err := b.Broadcast(context.Background(), testMessage())
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, "conn-a", outcomes[0].ConnectionID)
	assert.Equal(t, domain.Delivered, outcomes[0].Result.Status)

	assert.Equal(t, []string{"conn-a"}, pushedIDs)
	assert.Empty(t, registry.removedIDs())
}

// sharedRegistry is an in-memory stand-in for the Redis registry, shared by
// several broadcasters the way the real one is shared by server instances.
type sharedRegistry struct {
	mu    sync.Mutex
	conns map[string]string
}

func newSharedRegistry() *sharedRegistry {
	return &sharedRegistry{conns: make(map[string]string)}
}

func (r *sharedRegistry) Add(_ context.Context, conn domain.Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[conn.ID] = conn.InstanceID
	return nil
}

func (r *sharedRegistry) Remove(_ context.Context, connectionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, connectionID)
	return nil
}

func (r *sharedRegistry) ListAll(_ context.Context) ([]domain.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conns := make([]domain.Connection, 0, len(r.conns))
	for id, instanceID := range r.conns {
		conns = append(conns, domain.Connection{ID: id, InstanceID: instanceID})
	}
	return conns, nil
}

// instancePusher mimics one instance's hub: it delivers to the ids it hosts
// and reports everything else gone.
type instancePusher struct {
	mu     sync.Mutex
	hosted map[string]int
}

func newInstancePusher(ids ...string) *instancePusher {
	hosted := make(map[string]int, len(ids))
	for _, id := range ids {
		hosted[id] = 0
	}
	return &instancePusher{hosted: hosted}
}

func (p *instancePusher) Push(_ context.Context, connectionID string, _ []byte) domain.DeliveryResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.hosted[connectionID]; !ok {
		return domain.DeliveryResult{Status: domain.Gone, Err: errors.New("unknown connection")}
	}
	p.hosted[connectionID]++
	return domain.DeliveryResult{Status: domain.Delivered}
}

func (p *instancePusher) deliveries(connectionID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hosted[connectionID]
}

func TestBroadcastAcrossInstancesKeepsLiveConnections(t *testing.T) {
	ctx := context.Background()
	registry := newSharedRegistry()
	require.NoError(t, registry.Add(ctx, domain.Connection{ID: "conn-a", InstanceID: "instance-1"}))
	require.NoError(t, registry.Add(ctx, domain.Connection{ID: "conn-b", InstanceID: "instance-2"}))

	pusher1 := newInstancePusher("conn-a")
	pusher2 := newInstancePusher("conn-b")
	b1 := NewBroadcaster(registry, pusher1, clockwork.NewFakeClock(), "instance-1", 4, time.Second)
	b2 := NewBroadcaster(registry, pusher2, clockwork.NewFakeClock(), "instance-2", 4, time.Second)

	msg := testMessage()
	_, err := b1.Broadcast(ctx, msg)
	require.NoError(t, err)
	_, err = b2.Broadcast(ctx, msg)
	require.NoError(t, err)

	// Each connection got the message exactly once, from its own instance.
	assert.Equal(t, 1, pusher1.deliveries("conn-a"))
	assert.Equal(t, 1, pusher2.deliveries("conn-b"))

	// Neither instance evicted the other's live connection.
	conns, err := registry.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, conns, 2)
}

func TestBroadcastIsolatesTransientFailures(t *testing.T) {
	registry := &mockRegistry{
		listAllFn: func(_ context.Context) ([]domain.Connection, error) {
			return localConns("conn-a", "conn-b"), nil
		},
	}
	pusher := &mockPusher{
		pushFn: func(_ context.Context, connectionID string, _ []byte) domain.DeliveryResult {
			if connectionID == "conn-a" {
				return domain.DeliveryResult{Status: domain.Transient, Err: errors.New("write buffer full")}
			}
			return domain.DeliveryResult{Status: domain.Delivered}
		},
	}

	b := NewBroadcaster(registry, pusher, clockwork.NewFakeClock(), testInstanceID, 4, time.Second)

	outcomes, err := b.Broadcast(context.Background(), testMessage())
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	byID := make(map[string]domain.DeliveryResult)
	for _, o := range outcomes {
		byID[o.ConnectionID] = o.Result
	}
	assert.Equal(t, domain.Transient, byID["conn-a"].Status)
	assert.Equal(t, domain.Delivered, byID["conn-b"].Status)

	// transient failures never trigger cleanup
	assert.Empty(t, registry.removedIDs())
}

func TestBroadcastRemovesGoneConnections(t *testing.T) {
	registry := &mockRegistry{
		listAllFn: func(_ context.Context) ([]domain.Connection, error) {
			return localConns("conn-a", "conn-b"), nil
		},
	}
	pusher := &mockPusher{
		pushFn: func(_ context.Context, connectionID string, _ []byte) domain.DeliveryResult {
			if connectionID == "conn-a" {
				return domain.DeliveryResult{Status: domain.Gone, Err: errors.New("peer closed")}
			}
			return domain.DeliveryResult{Status: domain.Delivered}
		},
	}

	b := NewBroadcaster(registry, pusher, clockwork.NewFakeClock(), testInstanceID, 4, time.Second)

	outcomes, err := b.Broadcast(context.Background(), testMessage())
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	assert.Equal(t, []string{"conn-a"}, registry.removedIDs())
}

func TestBroadcastToleratesCleanupFailure(t *testing.T) {
	registry := &mockRegistry{
		listAllFn: func(_ context.Context) ([]domain.Connection, error) {
			return localConns("conn-a", "conn-b"), nil
		},
		removeFn: func(_ context.Context, _ string) error {
			return errors.New("redis unavailable")
		},
	}
	pusher := &mockPusher{
		pushFn: func(_ context.Context, _ string, _ []byte) domain.DeliveryResult {
			return domain.DeliveryResult{Status: domain.Gone, Err: errors.New("peer closed")}
		},
	}

	b := NewBroadcaster(registry, pusher, clockwork.NewFakeClock(), testInstanceID, 4, time.Second)

	outcomes, err := b.Broadcast(context.Background(), testMessage())
	require.NoError(t, err)
	assert.Len(t, outcomes, 2)
}

func TestBroadcastEmptyRegistry(t *testing.T) {
	registry := &mockRegistry{}
	pusher := &mockPusher{
		pushFn: func(_ context.Context, _ string, _ []byte) domain.DeliveryResult {
			t.Fatal("push should not be called")
			return domain.DeliveryResult{}
		},
	}

	b := NewBroadcaster(registry, pusher, clockwork.NewFakeClock(), testInstanceID, 4, time.Second)

	before := testutil.ToFloat64(metrics.BroadcastsTotal)
	outcomes, err := b.Broadcast(context.Background(), testMessage())
	require.NoError(t, err)
	assert.Empty(t, outcomes)

	// empty batches still count as processed broadcasts
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.BroadcastsTotal))
}

func TestBroadcastSnapshotErrorPropagates(t *testing.T) {
	registry := &mockRegistry{
		listAllFn: func(_ context.Context) ([]domain.Connection, error) {
			return nil, errors.New("connection refused")
		},
	}

	b := NewBroadcaster(registry, &mockPusher{}, clockwork.NewFakeClock(), testInstanceID, 4, time.Second)

	before := testutil.ToFloat64(metrics.BroadcastsTotal)
	outcomes, err := b.Broadcast(context.Background(), testMessage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "snapshot connections")
	assert.Nil(t, outcomes)

	// a failed snapshot is not a processed broadcast
	assert.Equal(t, before, testutil.ToFloat64(metrics.BroadcastsTotal))
}

func TestBroadcastBoundsParallelism(t *testing.T) {
	ids := make([]string, 16)
	for i := range ids {
		ids[i] = uuid.NewString()
	}
	registry := &mockRegistry{
		listAllFn: func(_ context.Context) ([]domain.Connection, error) {
			return localConns(ids...), nil
		},
	}

	var inFlight, maxInFlight atomic.Int32
	pusher := &mockPusher{
		pushFn: func(_ context.Context, _ string, _ []byte) domain.DeliveryResult {
			n := inFlight.Add(1)
			for {
				cur := maxInFlight.Load()
				if n <= cur || maxInFlight.CompareAndSwap(cur, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inFlight.Add(-1)
			return domain.DeliveryResult{Status: domain.Delivered}
		},
	}

	b := NewBroadcaster(registry, pusher, clockwork.NewRealClock(), testInstanceID, 3, time.Second)

	outcomes, err := b.Broadcast(context.Background(), testMessage())
	require.NoError(t, err)
	require.Len(t, outcomes, 16)
	assert.LessOrEqual(t, maxInFlight.Load(), int32(3))
}

func TestRunBroadcastsEventsUntilChannelCloses(t *testing.T) {
	registry := &mockRegistry{
		listAllFn: func(_ context.Context) ([]domain.Connection, error) {
			return localConns("conn-a"), nil
		},
	}

	var pushes atomic.Int32
	pusher := &mockPusher{
		pushFn: func(_ context.Context, _ string, _ []byte) domain.DeliveryResult {
			pushes.Add(1)
			return domain.DeliveryResult{Status: domain.Delivered}
		},
	}

	b := NewBroadcaster(registry, pusher, clockwork.NewRealClock(), testInstanceID, 2, time.Second)

	events := make(chan domain.Message)
	done := make(chan struct{})
	go func() {
		b.Run(context.Background(), events)
		close(done)
	}()

	events <- *testMessage()
	events <- *testMessage()
	close(events)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after events channel closed")
	}
	assert.Equal(t, int32(2), pushes.Load())
}

func TestRunStopsOnContextCancel(t *testing.T) {
	b := NewBroadcaster(&mockRegistry{}, &mockPusher{}, clockwork.NewRealClock(), testInstanceID, 2, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan domain.Message)
	done := make(chan struct{})
	go func() {
		b.Run(ctx, events)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after context cancel")
	}
}
