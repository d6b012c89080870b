package server

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	apperrors "github.com/jeanfsantos/cloud-capstone-project/internal/errors"
)

// handleGenerateUploadURL issues a time-limited signed URL granting a single
// attachment upload into the channel. The channel must exist and belong to
// the caller; the grant does not create a message, the client references the
// attachment URL when it posts one.
func (s *Server) handleGenerateUploadURL(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	channelID, err := uuid.Parse(c.Param("channelId"))
	if err != nil {
		return apperrors.ValidationError("invalid channel id").
			WithContext("channel_id", c.Param("channelId"))
	}

	channel, err := s.app.GetChannel(c.Request().Context(), channelID)
	if err != nil {
		return err
	}
	if channel.OwnerID != user.ID {
		return apperrors.ForbiddenError("only the channel owner can request upload URLs").
			WithContext("channel_id", channelID.String())
	}

	grant, err := s.signer.GenerateUploadURL(channelID)
	if err != nil {
		return apperrors.InternalError("failed to generate upload URL", err).
			WithContext("channel_id", channelID.String())
	}

	if err := c.JSON(201, grant); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}
