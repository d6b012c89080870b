package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeanfsantos/cloud-capstone-project/internal/domain"
	apperrors "github.com/jeanfsantos/cloud-capstone-project/internal/errors"
)

func TestHandleCreateChannel_Success(t *testing.T) {
	app := &mockAppService{
		createChannelFn: func(_ context.Context, name string, user domain.User) (*domain.Channel, error) {
			assert.Equal(t, "general", name)
			assert.Equal(t, "user-1", user.ID)
			return &domain.Channel{ChannelID: uuid.New(), OwnerID: user.ID, Name: name}, nil
		},
	}
	srv := newTestServer(t, app)

	req := httptest.NewRequest(http.MethodPost, "/channels", strings.NewReader(`{"name":"general"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := srv.echo.NewContext(req, rec)
	c.Set(userContextKey, testUser())

	err := srv.handleCreateChannel(c)
	require.NoError(t, err)
	assert.Equal(t, 201, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"general"`)
}

func TestHandleCreateChannel_EmptyName(t *testing.T) {
	srv := newTestServer(t, &mockAppService{})

	req := httptest.NewRequest(http.MethodPost, "/channels", strings.NewReader(`{"name":"  "}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := srv.echo.NewContext(req, rec)
	c.Set(userContextKey, testUser())

	_ = callHandler(srv.handleCreateChannel, c)
	assert.Equal(t, 400, rec.Code)
}

func TestHandleCreateChannel_NameTooLong(t *testing.T) {
	srv := newTestServer(t, &mockAppService{})

	name := strings.Repeat("x", maxChannelNameLength+1)
	req := httptest.NewRequest(http.MethodPost, "/channels", strings.NewReader(`{"name":"`+name+`"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := srv.echo.NewContext(req, rec)
	c.Set(userContextKey, testUser())

	_ = callHandler(srv.handleCreateChannel, c)
	assert.Equal(t, 400, rec.Code)
}

func TestHandleGetChannels_Success(t *testing.T) {
	app := &mockAppService{
		getChannelsFn: func(_ context.Context) ([]domain.Channel, error) {
			return []domain.Channel{
				{ChannelID: uuid.New(), OwnerID: "user-1", Name: "general"},
				{ChannelID: uuid.New(), OwnerID: "user-2", Name: "random"},
			}, nil
		},
	}
	srv := newTestServer(t, app)

	req := httptest.NewRequest(http.MethodGet, "/channels", nil)
	rec := httptest.NewRecorder()
	c := srv.echo.NewContext(req, rec)
	c.Set(userContextKey, testUser())

	err := srv.handleGetChannels(c)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `"general"`)
	assert.Contains(t, rec.Body.String(), `"random"`)
}

func TestHandleGetMyChannels_Success(t *testing.T) {
	app := &mockAppService{
		getMyChannelsFn: func(_ context.Context, user domain.User) ([]domain.Channel, error) {
			assert.Equal(t, "user-1", user.ID)
			return []domain.Channel{{ChannelID: uuid.New(), OwnerID: user.ID, Name: "mine"}}, nil
		},
	}
	srv := newTestServer(t, app)

	req := httptest.NewRequest(http.MethodGet, "/channels/mine", nil)
	rec := httptest.NewRecorder()
	c := srv.echo.NewContext(req, rec)
	c.Set(userContextKey, testUser())

	err := srv.handleGetMyChannels(c)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `"mine"`)
}

func TestHandleGetChannel_NotFound(t *testing.T) {
	channelID := uuid.New()
	app := &mockAppService{
		getChannelFn: func(_ context.Context, _ uuid.UUID) (*domain.Channel, error) {
			return nil, apperrors.NotFoundError("channel not found")
		},
	}
	srv := newTestServer(t, app)

	req := httptest.NewRequest(http.MethodGet, "/channels/"+channelID.String(), nil)
	rec := httptest.NewRecorder()
	c := srv.echo.NewContext(req, rec)
	c.SetParamNames("channelId")
	c.SetParamValues(channelID.String())
	c.Set(userContextKey, testUser())

	_ = callHandler(srv.handleGetChannel, c)
	assert.Equal(t, 404, rec.Code)
}

func TestHandleGetChannel_BadID(t *testing.T) {
	srv := newTestServer(t, &mockAppService{})

	req := httptest.NewRequest(http.MethodGet, "/channels/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	c := srv.echo.NewContext(req, rec)
	c.SetParamNames("channelId")
	c.SetParamValues("not-a-uuid")
	c.Set(userContextKey, testUser())

	_ = callHandler(srv.handleGetChannel, c)
	assert.Equal(t, 400, rec.Code)
}
