// Package websocket owns the WebSocket transport: a hub tracking the clients
// attached to this instance and the per-connection writers that push payloads
// to them.
package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jeanfsantos/cloud-capstone-project/internal/domain"
	"github.com/jeanfsantos/cloud-capstone-project/internal/metrics"
)

const (
	sendBufferSize = 16
	writeDeadline  = 5 * time.Second
)

var (
	errUnknownConnection = errors.New("connection not attached to this instance")
	errWriterClosed      = errors.New("connection writer closed")
	errSendBufferFull    = errors.New("send buffer full")
)

// --- Command types ---

type hubCmd interface{ hubCmd() }

type cmdRegister struct {
	connectionID string
	conn         *websocket.Conn
	errCh        chan error
}

func (cmdRegister) hubCmd() {}

type cmdUnregister struct {
	connectionID string
}

func (cmdUnregister) hubCmd() {}

type cmdPush struct {
	connectionID string
	payload      []byte
	replyCh      chan domain.DeliveryResult
}

func (cmdPush) hubCmd() {}

type cmdClientCount struct {
	replyCh chan int
}

func (cmdClientCount) hubCmd() {}

type cmdStop struct{}

func (cmdStop) hubCmd() {}

// --- Per-connection writer ---

type clientWriter struct {
	conn     *websocket.Conn
	sendCh   chan []byte
	done     chan struct{}
	stopOnce sync.Once
}

func newClientWriter(conn *websocket.Conn) *clientWriter {
	cw := &clientWriter{
		conn:   conn,
		sendCh: make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
	}
	go cw.run()
	return cw
}

func (cw *clientWriter) run() {
	for {
		select {
		case msg, ok := <-cw.sendCh:
			if !ok {
				return
			}
			cw.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := cw.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				cw.stop()
				return
			}
		case <-cw.done:
			return
		}
	}
}

func (cw *clientWriter) stop() {
	cw.stopOnce.Do(func() {
		close(cw.done)
		cw.conn.Close()
	})
}

func (cw *clientWriter) closed() bool {
	select {
	case <-cw.done:
		return true
	default:
		return false
	}
}

// --- Hub ---

// Hub is the single-goroutine owner of this instance's client connections.
// All state is confined to the run loop; the public API communicates with it
// through commands.
type Hub struct {
	cmdCh          chan hubCmd
	clients        map[string]*clientWriter
	maxConnections int
}

func NewHub(maxConnections int) *Hub {
	hub := &Hub{
		cmdCh:          make(chan hubCmd, 256),
		clients:        make(map[string]*clientWriter),
		maxConnections: maxConnections,
	}
	go hub.run()
	return hub
}

func (h *Hub) run() {
	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case cmdRegister:
			h.handleRegister(c)
		case cmdUnregister:
			h.handleUnregister(c.connectionID)
		case cmdPush:
			c.replyCh <- h.handlePush(c)
		case cmdClientCount:
			c.replyCh <- len(h.clients)
		case cmdStop:
			h.handleStop()
			return
		}
	}
}

func (h *Hub) handleRegister(c cmdRegister) {
	if h.maxConnections > 0 && len(h.clients) >= h.maxConnections {
		slog.Warn("rejecting connection: instance at capacity", "max_connections", h.maxConnections)
		metrics.ConnectionsRejected.WithLabelValues("capacity").Inc()
		c.conn.Close()
		c.errCh <- fmt.Errorf("max connections (%d) reached", h.maxConnections)
		return
	}

	// Connection ids are server-generated, so a collision means a stale
	// writer from an earlier life of the same id. Replace it.
	if old, exists := h.clients[c.connectionID]; exists {
		old.stop()
	}

	h.clients[c.connectionID] = newClientWriter(c.conn)
	metrics.ConnectedClients.Set(float64(len(h.clients)))
	slog.Info("client registered", "connection_id", c.connectionID, "total_clients", len(h.clients))
	c.errCh <- nil
}

func (h *Hub) handleUnregister(connectionID string) {
	cw, exists := h.clients[connectionID]
	if !exists {
		return
	}

	cw.stop()
	delete(h.clients, connectionID)
	metrics.ConnectedClients.Set(float64(len(h.clients)))
	slog.Info("client unregistered", "connection_id", connectionID, "total_clients", len(h.clients))
}

func (h *Hub) handlePush(c cmdPush) domain.DeliveryResult {
	cw, exists := h.clients[c.connectionID]
	if !exists {
		return domain.DeliveryResult{Status: domain.Gone, Err: errUnknownConnection}
	}

	if cw.closed() {
		h.handleUnregister(c.connectionID)
		return domain.DeliveryResult{Status: domain.Gone, Err: errWriterClosed}
	}

	select {
	case cw.sendCh <- c.payload:
		return domain.DeliveryResult{Status: domain.Delivered}
	default:
		// A full buffer means the client is not keeping up. The connection
		// may still recover, so this is not a gone-signal.
		return domain.DeliveryResult{Status: domain.Transient, Err: errSendBufferFull}
	}
}

func (h *Hub) handleStop() {
	for connectionID, cw := range h.clients {
		cw.stop()
		delete(h.clients, connectionID)
	}
	metrics.ConnectedClients.Set(0)
}

// --- Public API ---

// Register attaches a connection to the hub and starts its writer.
func (h *Hub) Register(connectionID string, conn *websocket.Conn) error {
	errCh := make(chan error, 1)
	h.cmdCh <- cmdRegister{connectionID: connectionID, conn: conn, errCh: errCh}
	return <-errCh
}

// Unregister detaches a connection and stops its writer. Unknown ids are
// ignored.
func (h *Hub) Unregister(connectionID string) {
	h.cmdCh <- cmdUnregister{connectionID: connectionID}
}

// Push hands a payload to the connection's writer. Unknown or closed
// connections are reported as gone; a full send buffer or an expired context
// is a transient failure. Callers must only push ids this hub registered,
// connections hosted elsewhere would read as gone here.
func (h *Hub) Push(ctx context.Context, connectionID string, payload []byte) domain.DeliveryResult {
	replyCh := make(chan domain.DeliveryResult, 1)

	select {
	case h.cmdCh <- cmdPush{connectionID: connectionID, payload: payload, replyCh: replyCh}:
	case <-ctx.Done():
		return domain.DeliveryResult{Status: domain.Transient, Err: ctx.Err()}
	}

	select {
	case result := <-replyCh:
		return result
	case <-ctx.Done():
		return domain.DeliveryResult{Status: domain.Transient, Err: ctx.Err()}
	}
}

// ClientCount reports the number of clients attached to this instance.
func (h *Hub) ClientCount() int {
	replyCh := make(chan int, 1)
	h.cmdCh <- cmdClientCount{replyCh: replyCh}
	return <-replyCh
}

// Stop closes every client connection and terminates the run loop.
func (h *Hub) Stop() {
	h.cmdCh <- cmdStop{}
}

var _ domain.MessagePusher = (*Hub)(nil)
