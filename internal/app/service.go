package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/jeanfsantos/cloud-capstone-project/internal/domain"
	apperrors "github.com/jeanfsantos/cloud-capstone-project/internal/errors"
	"github.com/jeanfsantos/cloud-capstone-project/internal/metrics"
)

// Service orchestrates the message use cases. It persists through the
// message repository and announces each created message through the event
// publisher; it never talks to the broadcaster directly.
type Service struct {
	messages  domain.MessageRepository
	channels  domain.ChannelRepository
	publisher domain.EventPublisher
	clock     clockwork.Clock

	// lastCreated enforces non-decreasing timestamps for messages created
	// through this instance even if the wall clock steps backwards.
	mu          sync.Mutex
	lastCreated time.Time
}

func NewService(messages domain.MessageRepository, channels domain.ChannelRepository, publisher domain.EventPublisher, clock clockwork.Clock) *Service {
	return &Service{
		messages:  messages,
		channels:  channels,
		publisher: publisher,
		clock:     clock,
	}
}

// CreateMessage persists a new message and returns it. The message id is a
// fresh random UUID; the timestamp is wall-clock time at millisecond
// granularity. A storage failure propagates and leaves no partial state.
// Fan-out happens as a reaction to the published event, so a delivery
// failure can never reach this caller.
func (s *Service) CreateMessage(ctx context.Context, channelID uuid.UUID, user domain.User, text, attachmentURL string) (*domain.Message, error) {
	msg := &domain.Message{
		MessageID:     uuid.New(),
		ChannelID:     channelID,
		User:          user,
		Text:          text,
		CreatedAt:     s.nextTimestamp(),
		AttachmentURL: attachmentURL,
	}

	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, apperrors.StorageError("failed to create message", err)
	}
	metrics.MessagesCreatedTotal.Inc()

	if err := s.publisher.PublishMessageCreated(ctx, msg); err != nil {
		// The message is durably stored; delivery is best effort.
		slog.ErrorContext(ctx, "Failed to publish message created event",
			"message_id", msg.MessageID.String(), "error", err)
	}

	return msg, nil
}

// GetMessagesByChannel returns all messages of a channel ordered by
// ascending timestamp.
func (s *Service) GetMessagesByChannel(ctx context.Context, channelID uuid.UUID) ([]domain.Message, error) {
	messages, err := s.messages.GetByChannel(ctx, channelID)
	if err != nil {
		return nil, apperrors.StorageError("failed to get messages by channel", err)
	}
	return messages, nil
}

// UpdateMessage replaces the text of a message owned by the caller.
func (s *Service) UpdateMessage(ctx context.Context, user domain.User, messageID uuid.UUID, text string) error {
	err := s.messages.Update(ctx, user.ID, messageID, text)
	if errors.Is(err, domain.ErrMessageNotFound) {
		return apperrors.NotFoundError("message not found").WithContext("message_id", messageID.String())
	}
	if err != nil {
		return apperrors.StorageError("failed to update message", err)
	}
	return nil
}

// DeleteMessage removes a message owned by the caller.
func (s *Service) DeleteMessage(ctx context.Context, user domain.User, messageID uuid.UUID) error {
	err := s.messages.Delete(ctx, user.ID, messageID)
	if errors.Is(err, domain.ErrMessageNotFound) {
		return apperrors.NotFoundError("message not found").WithContext("message_id", messageID.String())
	}
	if err != nil {
		return apperrors.StorageError("failed to delete message", err)
	}
	return nil
}

func (s *Service) nextTimestamp() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now().UTC().Truncate(time.Millisecond)
	if now.Before(s.lastCreated) {
		now = s.lastCreated
	}
	s.lastCreated = now
	return now
}
