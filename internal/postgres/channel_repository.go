package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"

	"github.com/jeanfsantos/cloud-capstone-project/internal/domain"
)

// ChannelRepo implements domain.ChannelRepository backed by PostgreSQL.
type ChannelRepo struct {
	pool  *pgxpool.Pool
	clock clockwork.Clock
}

var _ domain.ChannelRepository = (*ChannelRepo)(nil)

func NewChannelRepo(pool *pgxpool.Pool, clock clockwork.Clock) *ChannelRepo {
	return &ChannelRepo{pool: pool, clock: clock}
}

func (r *ChannelRepo) Create(ctx context.Context, ch *domain.Channel) error {
	if ch.CreatedAt.IsZero() {
		ch.CreatedAt = r.clock.Now().UTC()
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO channels (channel_id, owner_id, name, created_at) VALUES ($1, $2, $3, $4)`,
		ch.ChannelID, ch.OwnerID, ch.Name, ch.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert channel: %w", err)
	}
	return nil
}

func (r *ChannelRepo) Get(ctx context.Context, channelID uuid.UUID) (*domain.Channel, error) {
	var ch domain.Channel
	err := r.pool.QueryRow(ctx,
		`SELECT channel_id, owner_id, name, created_at FROM channels WHERE channel_id = $1`,
		channelID,
	).Scan(&ch.ChannelID, &ch.OwnerID, &ch.Name, &ch.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrChannelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}
	return &ch, nil
}

func (r *ChannelRepo) GetAll(ctx context.Context) ([]domain.Channel, error) {
	return r.queryChannels(ctx,
		`SELECT channel_id, owner_id, name, created_at FROM channels ORDER BY created_at`)
}

func (r *ChannelRepo) GetByOwner(ctx context.Context, ownerID string) ([]domain.Channel, error) {
	return r.queryChannels(ctx,
		`SELECT channel_id, owner_id, name, created_at FROM channels WHERE owner_id = $1 ORDER BY created_at`,
		ownerID)
}

func (r *ChannelRepo) queryChannels(ctx context.Context, sql string, args ...any) ([]domain.Channel, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query channels: %w", err)
	}
	defer rows.Close()

	var channels []domain.Channel
	for rows.Next() {
		var ch domain.Channel
		if err := rows.Scan(&ch.ChannelID, &ch.OwnerID, &ch.Name, &ch.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan channel: %w", err)
		}
		channels = append(channels, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read channels: %w", err)
	}
	return channels, nil
}
