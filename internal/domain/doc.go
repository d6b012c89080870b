// Package domain contains the core entities and ports of the chat backend:
// messages, channels, connections, and the interfaces the adapters implement.
// It has no dependencies on transport or storage packages.
package domain
