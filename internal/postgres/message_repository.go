package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"

	"github.com/jeanfsantos/cloud-capstone-project/internal/domain"
)

// MessageRepo implements domain.MessageRepository backed by PostgreSQL.
// Records are keyed by (user_id, message_id); channel-scoped retrieval goes
// through the (channel_id, created_at) index.
type MessageRepo struct {
	pool  *pgxpool.Pool
	clock clockwork.Clock
}

var _ domain.MessageRepository = (*MessageRepo)(nil)

func NewMessageRepo(pool *pgxpool.Pool, clock clockwork.Clock) *MessageRepo {
	return &MessageRepo{pool: pool, clock: clock}
}

func (r *MessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = r.clock.Now().UTC()
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO messages (user_id, message_id, channel_id, user_name, body, attachment_url, created_at)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)`,
		msg.User.ID, msg.MessageID, msg.ChannelID, msg.User.Name, msg.Text, msg.AttachmentURL, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

func (r *MessageRepo) GetByChannel(ctx context.Context, channelID uuid.UUID) ([]domain.Message, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id, message_id, channel_id, user_name, body, COALESCE(attachment_url, ''), created_at
		 FROM messages
		 WHERE channel_id = $1
		 ORDER BY created_at`,
		channelID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(&msg.User.ID, &msg.MessageID, &msg.ChannelID, &msg.User.Name,
			&msg.Text, &msg.AttachmentURL, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}
	return messages, nil
}

func (r *MessageRepo) Update(ctx context.Context, userID string, messageID uuid.UUID, text string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE messages SET body = $3 WHERE user_id = $1 AND message_id = $2`,
		userID, messageID, text,
	)
	if err != nil {
		return fmt.Errorf("failed to update message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMessageNotFound
	}
	return nil
}

func (r *MessageRepo) Delete(ctx context.Context, userID string, messageID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM messages WHERE user_id = $1 AND message_id = $2`,
		userID, messageID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMessageNotFound
	}
	return nil
}
