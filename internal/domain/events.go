package domain

import "context"

// EventPublisher announces a successfully persisted message to whatever
// reacts to it. Persistence succeeds independently of delivery: the message
// service publishes after the store write and never waits on fan-out.
type EventPublisher interface {
	PublishMessageCreated(ctx context.Context, msg *Message) error
}
