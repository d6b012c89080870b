// Package server wires the HTTP and WebSocket surface: REST handlers for
// channels, messages and attachment grants, the WebSocket connect endpoint,
// and the health and metrics endpoints.
package server
