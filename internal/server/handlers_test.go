package server

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"

	"github.com/jeanfsantos/cloud-capstone-project/internal/attachments"
	"github.com/jeanfsantos/cloud-capstone-project/internal/auth"
	"github.com/jeanfsantos/cloud-capstone-project/internal/config"
	"github.com/jeanfsantos/cloud-capstone-project/internal/domain"
	apperrors "github.com/jeanfsantos/cloud-capstone-project/internal/errors"
)

// --- Mock implementations ---

type mockAppService struct {
	createMessageFn        func(ctx context.Context, channelID uuid.UUID, user domain.User, text, attachmentURL string) (*domain.Message, error)
	getMessagesByChannelFn func(ctx context.Context, channelID uuid.UUID) ([]domain.Message, error)
	updateMessageFn        func(ctx context.Context, user domain.User, messageID uuid.UUID, text string) error
	deleteMessageFn        func(ctx context.Context, user domain.User, messageID uuid.UUID) error
	createChannelFn        func(ctx context.Context, name string, user domain.User) (*domain.Channel, error)
	getChannelsFn          func(ctx context.Context) ([]domain.Channel, error)
	getMyChannelsFn        func(ctx context.Context, user domain.User) ([]domain.Channel, error)
	getChannelFn           func(ctx context.Context, channelID uuid.UUID) (*domain.Channel, error)
}

func (m *mockAppService) CreateMessage(ctx context.Context, channelID uuid.UUID, user domain.User, text, attachmentURL string) (*domain.Message, error) {
	if m.createMessageFn != nil {
		return m.createMessageFn(ctx, channelID, user, text, attachmentURL)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockAppService) GetMessagesByChannel(ctx context.Context, channelID uuid.UUID) ([]domain.Message, error) {
	if m.getMessagesByChannelFn != nil {
		return m.getMessagesByChannelFn(ctx, channelID)
	}
	return nil, nil
}

func (m *mockAppService) UpdateMessage(ctx context.Context, user domain.User, messageID uuid.UUID, text string) error {
	if m.updateMessageFn != nil {
		return m.updateMessageFn(ctx, user, messageID, text)
	}
	return nil
}

func (m *mockAppService) DeleteMessage(ctx context.Context, user domain.User, messageID uuid.UUID) error {
	if m.deleteMessageFn != nil {
		return m.deleteMessageFn(ctx, user, messageID)
	}
	return nil
}

func (m *mockAppService) CreateChannel(ctx context.Context, name string, user domain.User) (*domain.Channel, error) {
	if m.createChannelFn != nil {
		return m.createChannelFn(ctx, name, user)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockAppService) GetChannels(ctx context.Context) ([]domain.Channel, error) {
	if m.getChannelsFn != nil {
		return m.getChannelsFn(ctx)
	}
	return nil, nil
}

func (m *mockAppService) GetMyChannels(ctx context.Context, user domain.User) ([]domain.Channel, error) {
	if m.getMyChannelsFn != nil {
		return m.getMyChannelsFn(ctx, user)
	}
	return nil, nil
}

func (m *mockAppService) GetChannel(ctx context.Context, channelID uuid.UUID) (*domain.Channel, error) {
	if m.getChannelFn != nil {
		return m.getChannelFn(ctx, channelID)
	}
	return &domain.Channel{ChannelID: channelID, OwnerID: "owner-1", Name: "general"}, nil
}

// --- Test helpers ---

const testAuthSecret = "test-secret-key-32-bytes-long!!!"

func newTestServer(t *testing.T, app appService) *Server {
	t.Helper()

	e := echo.New()
	// Install error middleware for tests to match production behavior
	e.Use(apperrors.Middleware())

	clock := clockwork.NewRealClock()
	cfg := &config.Config{
		Port:                 "8080",
		AuthJWTSecret:        testAuthSecret,
		RateLimitPerSecond:   1000,
		RateLimitBurst:       1000,
		MaxConnections:       100,
		MaxConnectionsPerIP:  10,
		BroadcastParallelism: 4,
		PushTimeout:          time.Second,
	}

	srv := &Server{
		echo:       e,
		config:     cfg,
		instanceID: "test-instance",
		app:        app,
		verifier:   auth.NewVerifier(testAuthSecret, clock),
		signer:     attachments.NewSigner(testAuthSecret, "http://localhost/attachments", 300*time.Second, clock),
		limits:     NewConnectionLimits(cfg.MaxConnections, cfg.MaxConnectionsPerIP, cfg.RateLimitPerSecond, cfg.RateLimitBurst),
		startTime:  time.Now(),
	}

	srv.registerRoutes()

	return srv
}

// callHandler wraps a handler with error middleware, matching production behavior
func callHandler(handler echo.HandlerFunc, c echo.Context) error {
	return apperrors.Middleware()(handler)(c)
}

func testUser() domain.User {
	return domain.User{ID: "user-1", Name: "alice"}
}
