package repositories

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zyra-market/backend/internal/models"
)

const orderColumns = `
	id, payment_id, channel_id, publish_status,
	published_message_id, published_channel_id, published_at,
	verify_status, verified_at, verify_error,
	created_at, updated_at`

type OrderRepo struct {
	pool *pgxpool.Pool
}

func NewOrderRepo(pool *pgxpool.Pool) *OrderRepo {
	return &OrderRepo{pool: pool}
}

func scanOrder(row pgx.Row) (*models.Order, error) {
	var o models.Order
	err := row.Scan(
		&o.ID, &o.PaymentID, &o.ChannelID, &o.PublishStatus,
		&o.PublishedMessageID, &o.PublishedChannelID, &o.PublishedAt,
		&o.VerifyStatus, &o.VerifiedAt, &o.VerifyError,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// ListByPayment возвращает размещения платежа.
func (r *OrderRepo) ListByPayment(ctx context.Context, paymentID int64) ([]*models.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE payment_id = $1 ORDER BY id`, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (r *OrderRepo) SetVerifyResult(ctx context.Context, id int64, status string, verifyErr *string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE orders
		SET verify_status = $1, verify_error = $2, verified_at = now(), updated_at = now()
		WHERE id = $3
	`, status, verifyErr, id)
	return err
}
