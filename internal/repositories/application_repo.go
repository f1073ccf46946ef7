package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zyra-market/backend/internal/models"
)

const applicationColumns = `
	id, campaign_id, channel_id, status, proposed_price::text,
	published_message_id, published_at,
	verify_status, verified_at, verify_error,
	payout_ready_at, payout_status, payout_error, payout_tx_hash, payout_at,
	created_at, updated_at`

type ApplicationRepo struct {
	pool *pgxpool.Pool
}

func NewApplicationRepo(pool *pgxpool.Pool) *ApplicationRepo {
	return &ApplicationRepo{pool: pool}
}

func scanApplication(row pgx.Row) (*models.CampaignApplication, error) {
	var a models.CampaignApplication
	err := row.Scan(
		&a.ID, &a.CampaignID, &a.ChannelID, &a.Status, &a.ProposedPrice,
		&a.PublishedMessageID, &a.PublishedAt,
		&a.VerifyStatus, &a.VerifiedAt, &a.VerifyError,
		&a.PayoutReadyAt, &a.PayoutStatus, &a.PayoutError, &a.PayoutTxHash, &a.PayoutAt,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *ApplicationRepo) Create(ctx context.Context, a *models.CampaignApplication) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO campaign_applications (campaign_id, channel_id, status, proposed_price)
		VALUES ($1, $2, $3, $4::numeric)
		RETURNING id, created_at, updated_at
	`, a.CampaignID, a.ChannelID, a.Status, a.ProposedPrice,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
}

func (r *ApplicationRepo) GetByID(ctx context.Context, id int64) (*models.CampaignApplication, error) {
	return scanApplication(r.pool.QueryRow(ctx,
		`SELECT `+applicationColumns+` FROM campaign_applications WHERE id = $1`, id))
}

// ClaimStatus условно переводит заявку из from в to.
func (r *ApplicationRepo) ClaimStatus(ctx context.Context, id int64, from, to string) error {
	var claimed int64
	err := r.pool.QueryRow(ctx, `
		UPDATE campaign_applications SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3
		RETURNING id
	`, to, id, from).Scan(&claimed)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotClaimed
	}
	return err
}

// MarkPublished фиксирует публикацию поста и планирует выплату.
func (r *ApplicationRepo) MarkPublished(ctx context.Context, id, messageID int64, payoutReadyAt time.Time) error {
	var claimed int64
	err := r.pool.QueryRow(ctx, `
		UPDATE campaign_applications
		SET status = $1, published_message_id = $2, published_at = now(),
		    payout_ready_at = $3, payout_status = NULL, payout_error = NULL,
		    updated_at = now()
		WHERE id = $4 AND status = $5
		RETURNING id
	`, models.ApplicationStatusPublished, messageID, payoutReadyAt,
		id, models.ApplicationStatusAccepted).Scan(&claimed)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotClaimed
	}
	return err
}

// ListDueForPayout возвращает опубликованные заявки без выплаченного
// хеша, у которых настал payout_ready_at. Старые первыми.
func (r *ApplicationRepo) ListDueForPayout(ctx context.Context, limit int) ([]*models.CampaignApplication, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+applicationColumns+`
		FROM campaign_applications
		WHERE status = $1
		  AND payout_tx_hash IS NULL
		  AND payout_ready_at IS NOT NULL
		  AND payout_ready_at <= now()
		  AND payout_status IS NULL
		ORDER BY payout_ready_at ASC
		LIMIT $2
	`, models.ApplicationStatusPublished, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var apps []*models.CampaignApplication
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, a)
	}
	return apps, rows.Err()
}

// ClaimPayoutProcessing забирает заявку в обработку.
func (r *ApplicationRepo) ClaimPayoutProcessing(ctx context.Context, id int64) error {
	var claimed int64
	err := r.pool.QueryRow(ctx, `
		UPDATE campaign_applications
		SET payout_status = $1, updated_at = now()
		WHERE id = $2 AND payout_tx_hash IS NULL AND payout_status IS NULL
		RETURNING id
	`, models.PayoutStatusProcessing, id).Scan(&claimed)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotClaimed
	}
	return err
}

func (r *ApplicationRepo) SetPayoutSent(ctx context.Context, id int64, txHash string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE campaign_applications
		SET payout_status = $1, payout_tx_hash = $2, payout_error = NULL,
		    payout_at = now(), verify_status = $3, verified_at = now(), updated_at = now()
		WHERE id = $4
	`, models.PayoutStatusSent, txHash, models.VerifyStatusVerified, id)
	return err
}

func (r *ApplicationRepo) SetPayoutFailed(ctx context.Context, id int64, reason string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE campaign_applications
		SET payout_status = $1, payout_error = $2, updated_at = now()
		WHERE id = $3
	`, models.PayoutStatusFailed, truncate(reason, 500), id)
	return err
}

// ClearPayoutClaim снимает processing-claim без терминальной записи
// (повтор после rate limit).
func (r *ApplicationRepo) ClearPayoutClaim(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE campaign_applications
		SET payout_status = NULL, updated_at = now()
		WHERE id = $1 AND payout_status = $2
	`, id, models.PayoutStatusProcessing)
	return err
}

// RevertPublication откатывает публикацию: пост удалён до выплаты.
func (r *ApplicationRepo) RevertPublication(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE campaign_applications
		SET status = $1, published_message_id = NULL, published_at = NULL,
		    verify_status = $2, verified_at = now(),
		    payout_status = $3, payout_ready_at = NULL, updated_at = now()
		WHERE id = $4
	`, models.ApplicationStatusAccepted, models.VerifyStatusDeleted,
		models.PayoutStatusCancelled, id)
	return err
}
