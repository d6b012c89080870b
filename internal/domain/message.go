package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// User is the opaque author identity supplied by the authentication
// collaborator. The core trusts it unvalidated.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Message is immutable after creation; update and delete go through the
// explicit owner-scoped repository operations, never the broadcast path.
type Message struct {
	MessageID     uuid.UUID `json:"messageId"`
	ChannelID     uuid.UUID `json:"channelId"`
	User          User      `json:"user"`
	Text          string    `json:"text"`
	CreatedAt     time.Time `json:"timestamp"`
	AttachmentURL string    `json:"attachmentUrl,omitempty"`
}

// MessageRepository is the durable, append-only per-channel message log.
// Records are keyed by (userID, messageID) with a secondary ordering index
// on (channelID, createdAt).
type MessageRepository interface {
	// Create persists a new message. It must not retry internally; storage
	// failures propagate to the caller unchanged.
	Create(ctx context.Context, msg *Message) error

	// GetByChannel returns every message of a channel present at query time,
	// ordered by ascending creation timestamp.
	GetByChannel(ctx context.Context, channelID uuid.UUID) ([]Message, error)

	// Update replaces the text of a message owned by userID.
	Update(ctx context.Context, userID string, messageID uuid.UUID, text string) error

	// Delete removes a message owned by userID.
	Delete(ctx context.Context, userID string, messageID uuid.UUID) error
}
