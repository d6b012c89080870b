package app

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/jeanfsantos/cloud-capstone-project/internal/domain"
	apperrors "github.com/jeanfsantos/cloud-capstone-project/internal/errors"
)

// CreateChannel creates a channel owned by the caller.
func (s *Service) CreateChannel(ctx context.Context, name string, user domain.User) (*domain.Channel, error) {
	ch := &domain.Channel{
		ChannelID: uuid.New(),
		OwnerID:   user.ID,
		Name:      name,
	}
	if err := s.channels.Create(ctx, ch); err != nil {
		return nil, apperrors.StorageError("failed to create channel", err)
	}
	return ch, nil
}

// GetChannels lists every channel.
func (s *Service) GetChannels(ctx context.Context) ([]domain.Channel, error) {
	channels, err := s.channels.GetAll(ctx)
	if err != nil {
		return nil, apperrors.StorageError("failed to get channels", err)
	}
	return channels, nil
}

// GetMyChannels lists the channels owned by the caller.
func (s *Service) GetMyChannels(ctx context.Context, user domain.User) ([]domain.Channel, error) {
	channels, err := s.channels.GetByOwner(ctx, user.ID)
	if err != nil {
		return nil, apperrors.StorageError("failed to get channels by owner", err)
	}
	return channels, nil
}

// GetChannel returns a single channel by id.
func (s *Service) GetChannel(ctx context.Context, channelID uuid.UUID) (*domain.Channel, error) {
	ch, err := s.channels.Get(ctx, channelID)
	if errors.Is(err, domain.ErrChannelNotFound) {
		return nil, apperrors.NotFoundError("channel not found").WithContext("channel_id", channelID.String())
	}
	if err != nil {
		return nil, apperrors.StorageError("failed to get channel", err)
	}
	return ch, nil
}
