package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/jeanfsantos/cloud-capstone-project/internal/domain"
	"github.com/jeanfsantos/cloud-capstone-project/internal/logging"
	"github.com/jeanfsantos/cloud-capstone-project/internal/metrics"
)

const registryTimeout = 5 * time.Second

var upgrader = ws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleWebSocket upgrades the request, registers the connection with the hub
// and the shared registry, and then blocks on the read pump until the client
// goes away. Explicit disconnect and a dropped peer both end in the same
// cleanup path; the registry removal is idempotent with the gone-signal
// cleanup done during fan-out.
func (s *Server) handleWebSocket(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	ip := c.RealIP()
	ok, reason := s.limits.Acquire(ip)
	if !ok {
		metrics.ConnectionsRejected.WithLabelValues(string(reason)).Inc()
		slog.Warn("rejecting connection", "reason", reason, "ip", ip)
		return c.JSON(429, map[string]string{"error": "too many connections"})
	}
	defer s.limits.Release(ip)

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error("Failed to upgrade WebSocket", "error", err)
		return nil
	}

	connectionID := uuid.NewString()

	if err := s.hub.Register(connectionID, conn); err != nil {
		slog.Error("Failed to register with hub", "error", err, "connection_id", connectionID)
		// Connection already closed by hub, just return
		return nil
	}

	addCtx, cancel := context.WithTimeout(context.Background(), registryTimeout)
	err = s.registry.Add(addCtx, domain.Connection{ID: connectionID, InstanceID: s.instanceID})
	cancel()
	if err != nil {
		slog.Error("Failed to add connection to registry", "error", err, "connection_id", connectionID)
		s.hub.Unregister(connectionID)
		return nil
	}

	logger := logging.WithUser(user.ID).With("connection_id", connectionID)
	logger.Info("client connected")

	// Read pump (blocks until disconnect)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	removeCtx, cancel := context.WithTimeout(context.Background(), registryTimeout)
	if err := s.registry.Remove(removeCtx, connectionID); err != nil {
		slog.Error("Failed to remove connection from registry", "error", err, "connection_id", connectionID)
	}
	cancel()
	s.hub.Unregister(connectionID)

	logger.Info("client disconnected")

	return nil
}
