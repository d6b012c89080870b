package domain

import "context"

// Connection is a registry entry for one live client connection. InstanceID
// names the server instance hosting the socket; only that instance can reach
// the client, so only that instance may judge the connection gone.
type Connection struct {
	ID         string
	InstanceID string
}

// ConnectionRegistry is the durable membership set of live client
// connections, shared by every server instance. Connections are global:
// they are not scoped to a channel.
//
// A connection is ACTIVE while registered and becomes REMOVED on explicit
// disconnect or on a gone-signal during delivery. There is no way back to
// ACTIVE without a fresh connect.
type ConnectionRegistry interface {
	// Add registers a connection. Re-adding an existing id overwrites its
	// instance ownership, which only happens on id collision.
	Add(ctx context.Context, conn Connection) error

	// Remove unregisters a connection id. Removing an absent id is not an
	// error; concurrent removals of the same id are safe.
	Remove(ctx context.Context, connectionID string) error

	// ListAll returns a snapshot of every registered connection, in no
	// particular order. The snapshot may be stale by the time it is used.
	ListAll(ctx context.Context) ([]Connection, error)
}
