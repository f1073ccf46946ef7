package repositories

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zyra-market/backend/internal/models"
)

const campaignColumns = `
	id, owner_user_id, ad_text, budget_usdt::text, price_per_post::text, remaining_usdt::text,
	status, payment_reference,
	escrow_address, escrow_address_raw, escrow_private_key_encrypted,
	payer_address, paid_tx_hash, paid_at, confirmations,
	refund_tx_hash, refund_error,
	created_at, updated_at`

type CampaignRepo struct {
	pool *pgxpool.Pool
}

func NewCampaignRepo(pool *pgxpool.Pool) *CampaignRepo {
	return &CampaignRepo{pool: pool}
}

func scanCampaign(row pgx.Row) (*models.Campaign, error) {
	var c models.Campaign
	err := row.Scan(
		&c.ID, &c.OwnerUserID, &c.AdText, &c.BudgetUSDT, &c.PricePerPost, &c.RemainingUSDT,
		&c.Status, &c.PaymentReference,
		&c.EscrowAddress, &c.EscrowAddressRaw, &c.EscrowPrivateKeyEncrypted,
		&c.PayerAddress, &c.PaidTxHash, &c.PaidAt, &c.Confirmations,
		&c.RefundTxHash, &c.RefundError,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CampaignRepo) Create(ctx context.Context, c *models.Campaign) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO campaigns (owner_user_id, ad_text, budget_usdt, price_per_post,
		                       remaining_usdt, status, payment_reference,
		                       escrow_address, escrow_address_raw, escrow_private_key_encrypted)
		VALUES ($1, $2, $3::numeric, $4::numeric, 0, $5, $6, $7, $8, $9)
		RETURNING id, remaining_usdt::text, created_at, updated_at
	`, c.OwnerUserID, c.AdText, c.BudgetUSDT, c.PricePerPost, c.Status,
		c.PaymentReference, c.EscrowAddress, c.EscrowAddressRaw, c.EscrowPrivateKeyEncrypted,
	).Scan(&c.ID, &c.RemainingUSDT, &c.CreatedAt, &c.UpdatedAt)
}

func (r *CampaignRepo) GetByID(ctx context.Context, id int64) (*models.Campaign, error) {
	return scanCampaign(r.pool.QueryRow(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id))
}

// ListPendingForRefresh возвращает неоплаченные кампании для сверки,
// новые в приоритете.
func (r *CampaignRepo) ListPendingForRefresh(ctx context.Context, limit int) ([]*models.Campaign, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+campaignColumns+`
		FROM campaigns
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, models.CampaignStatusPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var campaigns []*models.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

// MarkActive переводит pending -> active после подтверждённой оплаты
// и инициализирует бюджетный пул.
func (r *CampaignRepo) MarkActive(ctx context.Context, id int64, payerAddress, txHash string, confirmations int) error {
	var claimed int64
	err := r.pool.QueryRow(ctx, `
		UPDATE campaigns
		SET status = $1, payer_address = $2, paid_tx_hash = $3, confirmations = $4,
		    paid_at = now(), remaining_usdt = budget_usdt, updated_at = now()
		WHERE id = $5 AND status = $6
		RETURNING id
	`, models.CampaignStatusActive, payerAddress, txHash, confirmations,
		id, models.CampaignStatusPending).Scan(&claimed)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotClaimed
	}
	return err
}

// ClaimStatus условно переводит кампанию из from в to.
func (r *CampaignRepo) ClaimStatus(ctx context.Context, id int64, from, to string) error {
	var claimed int64
	err := r.pool.QueryRow(ctx, `
		UPDATE campaigns SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3
		RETURNING id
	`, to, id, from).Scan(&claimed)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotClaimed
	}
	return err
}

// DecrementRemaining атомарно списывает выплату из пула. Не даёт пулу
// уйти в минус: при нехватке средств возвращает ErrNotClaimed.
func (r *CampaignRepo) DecrementRemaining(ctx context.Context, id int64, amount string) error {
	var claimed int64
	err := r.pool.QueryRow(ctx, `
		UPDATE campaigns
		SET remaining_usdt = remaining_usdt - $1::numeric, updated_at = now()
		WHERE id = $2 AND remaining_usdt >= $1::numeric
		RETURNING id
	`, amount, id).Scan(&claimed)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotClaimed
	}
	return err
}

// SetRefundResult записывает итог возврата и обнуляет пул.
func (r *CampaignRepo) SetRefundResult(ctx context.Context, id int64, txHash, refundErr *string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE campaigns
		SET refund_tx_hash = COALESCE($1, refund_tx_hash),
		    refund_error = $2,
		    remaining_usdt = CASE WHEN $1 IS NOT NULL THEN 0 ELSE remaining_usdt END,
		    updated_at = now()
		WHERE id = $3
	`, txHash, refundErr, id)
	return err
}

// CountPendingPayouts считает заявки кампании, по которым выплата ещё
// впереди. Используется для резерва газа при свипе TON.
func (r *CampaignRepo) CountPendingPayouts(ctx context.Context, id int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM campaign_applications
		WHERE campaign_id = $1
		  AND status = $2
		  AND payout_tx_hash IS NULL
		  AND (payout_status IS NULL OR payout_status NOT IN ($3, $4))
	`, id, models.ApplicationStatusPublished,
		models.PayoutStatusSent, models.PayoutStatusCancelled).Scan(&n)
	return n, err
}
