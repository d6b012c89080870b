package server

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	apperrors "github.com/jeanfsantos/cloud-capstone-project/internal/errors"
)

const maxChannelNameLength = 100

type createChannelRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateChannel(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	var req createChannelRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return apperrors.ValidationError("channel name cannot be empty")
	}
	if len(name) > maxChannelNameLength {
		return apperrors.ValidationError("channel name too long").
			WithContext("max_length", maxChannelNameLength)
	}

	ch, err := s.app.CreateChannel(c.Request().Context(), name, user)
	if err != nil {
		return err
	}

	if err := c.JSON(201, ch); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleGetChannels(c echo.Context) error {
	channels, err := s.app.GetChannels(c.Request().Context())
	if err != nil {
		return err
	}

	if err := c.JSON(200, map[string]any{"items": channels}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleGetMyChannels(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	channels, err := s.app.GetMyChannels(c.Request().Context(), user)
	if err != nil {
		return err
	}

	if err := c.JSON(200, map[string]any{"items": channels}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleGetChannel(c echo.Context) error {
	channelID, err := uuid.Parse(c.Param("channelId"))
	if err != nil {
		return apperrors.ValidationError("invalid channel id").
			WithContext("channel_id", c.Param("channelId"))
	}

	ch, err := s.app.GetChannel(c.Request().Context(), channelID)
	if err != nil {
		return err
	}

	if err := c.JSON(200, ch); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}
