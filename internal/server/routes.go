package server

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

func (s *Server) registerRoutes() {
	// Observability endpoints (no auth required)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	rateLimiter := middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(s.config.RateLimitPerSecond),
			Burst:     s.config.RateLimitBurst,
			ExpiresIn: 3 * time.Minute,
		}),
	})

	// REST API (bearer auth, rate limited)
	api := s.echo.Group("", s.requireAuth, rateLimiter)
	api.POST("/channels", s.handleCreateChannel)
	api.GET("/channels", s.handleGetChannels)
	api.GET("/channels/mine", s.handleGetMyChannels)
	api.GET("/channels/:channelId", s.handleGetChannel)
	api.POST("/channels/:channelId/messages", s.handleCreateMessage)
	api.GET("/channels/:channelId/messages", s.handleGetMessages)
	api.PATCH("/messages/:messageId", s.handleUpdateMessage)
	api.DELETE("/messages/:messageId", s.handleDeleteMessage)
	api.POST("/channels/:channelId/attachment", s.handleGenerateUploadURL)

	// WebSocket connect (bearer auth, limited by the connection limiters
	// instead of the request rate limiter)
	s.echo.GET("/ws", s.handleWebSocket, s.requireAuth)
}
