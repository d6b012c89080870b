// Package redis contains the Redis-backed adapters: the connection
// registry, the instance heartbeat, the message-created pub/sub fabric,
// and the client hooks for metrics and circuit breaking.
package redis
