package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/jeanfsantos/cloud-capstone-project/internal/attachments"
	"github.com/jeanfsantos/cloud-capstone-project/internal/auth"
	"github.com/jeanfsantos/cloud-capstone-project/internal/config"
	"github.com/jeanfsantos/cloud-capstone-project/internal/correlation"
	"github.com/jeanfsantos/cloud-capstone-project/internal/domain"
	apperrors "github.com/jeanfsantos/cloud-capstone-project/internal/errors"
	"github.com/jeanfsantos/cloud-capstone-project/internal/websocket"
)

// appService is the slice of the application service the handlers need.
type appService interface {
	CreateMessage(ctx context.Context, channelID uuid.UUID, user domain.User, text, attachmentURL string) (*domain.Message, error)
	GetMessagesByChannel(ctx context.Context, channelID uuid.UUID) ([]domain.Message, error)
	UpdateMessage(ctx context.Context, user domain.User, messageID uuid.UUID, text string) error
	DeleteMessage(ctx context.Context, user domain.User, messageID uuid.UUID) error

	CreateChannel(ctx context.Context, name string, user domain.User) (*domain.Channel, error)
	GetChannels(ctx context.Context) ([]domain.Channel, error)
	GetMyChannels(ctx context.Context, user domain.User) ([]domain.Channel, error)
	GetChannel(ctx context.Context, channelID uuid.UUID) (*domain.Channel, error)
}

type Server struct {
	echo       *echo.Echo
	config     *config.Config
	instanceID string
	app        appService
	verifier   *auth.Verifier
	signer     *attachments.Signer
	hub        *websocket.Hub
	registry   domain.ConnectionRegistry
	limits     *ConnectionLimits
	startTime  time.Time

	redisHealthCheck    redisHealthChecker
	postgresHealthCheck postgresHealthChecker
}

func NewServer(cfg *config.Config, instanceID string, app appService, verifier *auth.Verifier, signer *attachments.Signer, hub *websocket.Hub, registry domain.ConnectionRegistry, redis redisHealthChecker, pg postgresHealthChecker) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(correlationMiddleware())
	e.Use(apperrors.Middleware())

	srv := &Server{
		echo:                e,
		config:              cfg,
		instanceID:          instanceID,
		app:                 app,
		verifier:            verifier,
		signer:              signer,
		hub:                 hub,
		registry:            registry,
		limits:              NewConnectionLimits(cfg.MaxConnections, cfg.MaxConnectionsPerIP, cfg.RateLimitPerSecond, cfg.RateLimitBurst),
		startTime:           time.Now(),
		redisHealthCheck:    redis,
		postgresHealthCheck: pg,
	}

	srv.registerRoutes()

	return srv
}

// correlationMiddleware stamps every request with a correlation id, carries it
// in the request context for log enrichment, and echoes it back to the client.
func correlationMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get("X-Correlation-ID")
			if id == "" {
				id = correlation.NewID()
			}
			ctx := correlation.WithID(c.Request().Context(), id)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Response().Header().Set("X-Correlation-ID", id)
			return next(c)
		}
	}
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
