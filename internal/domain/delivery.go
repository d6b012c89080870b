package domain

import "context"

// DeliveryStatus classifies the outcome of a single delivery attempt.
type DeliveryStatus int

const (
	// Delivered means the payload was handed to the peer's writer.
	Delivered DeliveryStatus = iota
	// Gone means the peer is permanently unreachable; the connection id
	// should be removed from the registry and never retried.
	Gone
	// Transient covers every other delivery failure. No cleanup, no retry.
	Transient
)

func (s DeliveryStatus) String() string {
	switch s {
	case Delivered:
		return "delivered"
	case Gone:
		return "gone"
	case Transient:
		return "transient"
	default:
		return "unknown"
	}
}

// DeliveryResult is the two-way result the transport returns per attempt.
// Err is set for Gone and Transient outcomes.
type DeliveryResult struct {
	Status DeliveryStatus
	Err    error
}

// DeliveryOutcome records the result of one connection's delivery attempt
// within a fan-out, for observability only.
type DeliveryOutcome struct {
	ConnectionID string
	Result       DeliveryResult
}

// MessagePusher pushes a serialized payload to a single connection. It is
// implemented by the transport collaborator, which owns the Gone vs
// Transient classification.
type MessagePusher interface {
	Push(ctx context.Context, connectionID string, payload []byte) DeliveryResult
}
