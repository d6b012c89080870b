package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jeanfsantos/cloud-capstone-project/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

// messageCreatedChannel carries every successfully persisted message.
// Publishing after the store write decouples persistence from delivery:
// a failed or slow fan-out never reaches the message-creation caller.
const messageCreatedChannel = "messages.created"

// Publisher implements domain.EventPublisher on top of Redis Pub/Sub.
type Publisher struct {
	rdb *goredis.Client
}

var _ domain.EventPublisher = (*Publisher)(nil)

func NewPublisher(rdb *goredis.Client) *Publisher {
	return &Publisher{rdb: rdb}
}

func (p *Publisher) PublishMessageCreated(ctx context.Context, msg *domain.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message event: %w", err)
	}
	if err := p.rdb.Publish(ctx, messageCreatedChannel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish message event: %w", err)
	}
	return nil
}

// Subscription is an active subscription to message-created events.
type Subscription struct {
	sub    *goredis.PubSub
	Ch     <-chan domain.Message
	cancel context.CancelFunc
}

// Close unsubscribes and closes the subscription. The Ch channel is closed
// afterwards.
func (s *Subscription) Close() {
	s.cancel()
	_ = s.sub.Close()
}

// SubscribeMessageCreated subscribes to message-created events. Malformed
// payloads are logged and skipped.
func SubscribeMessageCreated(ctx context.Context, rdb *goredis.Client) *Subscription {
	sub := rdb.Subscribe(ctx, messageCreatedChannel)

	subCtx, cancel := context.WithCancel(ctx)
	ch := make(chan domain.Message, 64)

	go func() {
		defer close(ch)
		msgCh := sub.Channel()
		for {
			select {
			case raw, ok := <-msgCh:
				if !ok {
					return
				}
				var msg domain.Message
				if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
					slog.Error("Failed to unmarshal message event", "error", err)
					continue
				}
				select {
				case ch <- msg:
				case <-subCtx.Done():
					return
				}
			case <-subCtx.Done():
				return
			}
		}
	}()

	return &Subscription{sub: sub, Ch: ch, cancel: cancel}
}
