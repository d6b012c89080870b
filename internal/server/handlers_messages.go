package server

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	apperrors "github.com/jeanfsantos/cloud-capstone-project/internal/errors"
)

const maxMessageLength = 4000

type createMessageRequest struct {
	Text          string `json:"text"`
	AttachmentURL string `json:"attachmentUrl"`
}

type updateMessageRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleCreateMessage(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	channelID, err := uuid.Parse(c.Param("channelId"))
	if err != nil {
		return apperrors.ValidationError("invalid channel id").
			WithContext("channel_id", c.Param("channelId"))
	}

	var req createMessageRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if err := validateMessageText(req.Text); err != nil {
		return err
	}

	msg, err := s.app.CreateMessage(c.Request().Context(), channelID, user, req.Text, req.AttachmentURL)
	if err != nil {
		return err
	}

	if err := c.JSON(201, msg); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleGetMessages(c echo.Context) error {
	channelID, err := uuid.Parse(c.Param("channelId"))
	if err != nil {
		return apperrors.ValidationError("invalid channel id").
			WithContext("channel_id", c.Param("channelId"))
	}

	messages, err := s.app.GetMessagesByChannel(c.Request().Context(), channelID)
	if err != nil {
		return err
	}

	if err := c.JSON(200, map[string]any{"items": messages}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleUpdateMessage(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	messageID, err := uuid.Parse(c.Param("messageId"))
	if err != nil {
		return apperrors.ValidationError("invalid message id").
			WithContext("message_id", c.Param("messageId"))
	}

	var req updateMessageRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if err := validateMessageText(req.Text); err != nil {
		return err
	}

	if err := s.app.UpdateMessage(c.Request().Context(), user, messageID, req.Text); err != nil {
		return err
	}

	return c.NoContent(204)
}

func (s *Server) handleDeleteMessage(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	messageID, err := uuid.Parse(c.Param("messageId"))
	if err != nil {
		return apperrors.ValidationError("invalid message id").
			WithContext("message_id", c.Param("messageId"))
	}

	if err := s.app.DeleteMessage(c.Request().Context(), user, messageID); err != nil {
		return err
	}

	return c.NoContent(204)
}

func validateMessageText(text string) error {
	if strings.TrimSpace(text) == "" {
		return apperrors.ValidationError("message text cannot be empty")
	}
	if len(text) > maxMessageLength {
		return apperrors.ValidationError("message text too long").
			WithContext("max_length", maxMessageLength)
	}
	return nil
}
