package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Channel is referenced by the message core only as an opaque foreign key;
// membership of the channel is not validated on message creation.
type Channel struct {
	ChannelID uuid.UUID `json:"channelId"`
	OwnerID   string    `json:"userId"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// ChannelRepository owns channel metadata CRUD.
type ChannelRepository interface {
	Create(ctx context.Context, ch *Channel) error
	GetAll(ctx context.Context) ([]Channel, error)
	GetByOwner(ctx context.Context, ownerID string) ([]Channel, error)
	Get(ctx context.Context, channelID uuid.UUID) (*Channel, error)
}
