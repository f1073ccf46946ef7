package repositories

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zyra-market/backend/internal/models"
)

const channelColumns = `
	id, telegram_id, owner_user_id, title, username, payout_address,
	verified_at, created_at, updated_at`

type ChannelRepo struct {
	pool *pgxpool.Pool
}

func NewChannelRepo(pool *pgxpool.Pool) *ChannelRepo {
	return &ChannelRepo{pool: pool}
}

func scanChannel(row pgx.Row) (*models.Channel, error) {
	var c models.Channel
	err := row.Scan(
		&c.ID, &c.TelegramID, &c.OwnerUserID, &c.Title, &c.Username,
		&c.PayoutAddress, &c.VerifiedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ChannelRepo) Create(ctx context.Context, c *models.Channel) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO channels (telegram_id, owner_user_id, title, username, payout_address)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, c.TelegramID, c.OwnerUserID, c.Title, c.Username, c.PayoutAddress,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

func (r *ChannelRepo) GetByID(ctx context.Context, id int64) (*models.Channel, error) {
	return scanChannel(r.pool.QueryRow(ctx,
		`SELECT `+channelColumns+` FROM channels WHERE id = $1`, id))
}

func (r *ChannelRepo) SetPayoutAddress(ctx context.Context, id int64, addr string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE channels SET payout_address = $1, updated_at = now() WHERE id = $2
	`, addr, id)
	return err
}
