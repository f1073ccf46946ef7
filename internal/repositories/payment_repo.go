package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zyra-market/backend/internal/models"
)

// ErrNotClaimed — условное обновление не прошло: строку уже забрал
// другой воркер или статус изменился. Не ошибка, а сигнал пропустить.
var ErrNotClaimed = errors.New("repositories: row not claimed")

const paymentColumns = `
	id, group_id, user_id, amount_usdt::text, fee_usdt::text, total_usdt::text,
	reference, provider, status,
	escrow_address, escrow_address_raw, escrow_private_key_encrypted,
	payer_address, paid_tx_hash, paid_at, confirmations,
	refund_status, refund_tx_hash, refund_error,
	payout_status, payout_ready_at, payout_tx_hash, payout_error, payout_at,
	created_at, updated_at`

type PaymentRepo struct {
	pool *pgxpool.Pool
}

func NewPaymentRepo(pool *pgxpool.Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

func scanPayment(row pgx.Row) (*models.Payment, error) {
	var p models.Payment
	err := row.Scan(
		&p.ID, &p.GroupID, &p.UserID, &p.AmountUSDT, &p.FeeUSDT, &p.TotalUSDT,
		&p.Reference, &p.Provider, &p.Status,
		&p.EscrowAddress, &p.EscrowAddressRaw, &p.EscrowPrivateKeyEncrypted,
		&p.PayerAddress, &p.PaidTxHash, &p.PaidAt, &p.Confirmations,
		&p.RefundStatus, &p.RefundTxHash, &p.RefundError,
		&p.PayoutStatus, &p.PayoutReadyAt, &p.PayoutTxHash, &p.PayoutError, &p.PayoutAt,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepo) Create(ctx context.Context, p *models.Payment) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO payments (group_id, user_id, amount_usdt, fee_usdt, total_usdt,
		                      reference, provider, status,
		                      escrow_address, escrow_address_raw, escrow_private_key_encrypted)
		VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at
	`, p.GroupID, p.UserID, p.AmountUSDT, p.FeeUSDT, p.TotalUSDT,
		p.Reference, p.Provider, p.Status,
		p.EscrowAddress, p.EscrowAddressRaw, p.EscrowPrivateKeyEncrypted,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

func (r *PaymentRepo) GetByID(ctx context.Context, id int64) (*models.Payment, error) {
	return scanPayment(r.pool.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id))
}

// ListPendingForRefresh возвращает свежие pending-платежи для сверки с
// цепочкой. Старше суток не трогаем: платёж считается заброшенным.
func (r *PaymentRepo) ListPendingForRefresh(ctx context.Context, limit int) ([]*models.Payment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE status = $1 AND created_at > now() - interval '24 hours'
		ORDER BY created_at ASC
		LIMIT $2
	`, models.PaymentStatusPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPayments(rows)
}

// ListDueForPayout возвращает принятые платежи, у которых настало время
// верификации перед выплатой.
func (r *PaymentRepo) ListDueForPayout(ctx context.Context, limit int) ([]*models.Payment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE status = $1
		  AND payout_status = $2
		  AND payout_ready_at IS NOT NULL
		  AND payout_ready_at <= now()
		ORDER BY payout_ready_at ASC
		LIMIT $3
	`, models.PaymentStatusAccepted, models.PayoutStatusVerificationPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPayments(rows)
}

func collectPayments(rows pgx.Rows) ([]*models.Payment, error) {
	var payments []*models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// MarkPaid переводит pending -> paid, фиксируя детали ончейн-платежа.
// Guard по статусу делает повторную обработку того же перевода no-op.
func (r *PaymentRepo) MarkPaid(ctx context.Context, id int64, payerAddress, txHash string, confirmations int) error {
	var claimed int64
	err := r.pool.QueryRow(ctx, `
		UPDATE payments
		SET status = $1, payer_address = $2, paid_tx_hash = $3,
		    confirmations = $4, paid_at = now(), updated_at = now()
		WHERE id = $5 AND status = $6
		RETURNING id
	`, models.PaymentStatusPaid, payerAddress, txHash, confirmations,
		id, models.PaymentStatusPending).Scan(&claimed)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotClaimed
	}
	return err
}

// UpdateStatus меняет статус с guard'ом по прежнему значению.
func (r *PaymentRepo) UpdateStatus(ctx context.Context, id int64, from, to string) error {
	var claimed int64
	err := r.pool.QueryRow(ctx, `
		UPDATE payments SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3
		RETURNING id
	`, to, id, from).Scan(&claimed)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotClaimed
	}
	return err
}

// SchedulePayout ставит принятый платёж в очередь на верификацию.
func (r *PaymentRepo) SchedulePayout(ctx context.Context, id int64, readyAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE payments
		SET payout_status = $1, payout_ready_at = $2, payout_error = NULL, updated_at = now()
		WHERE id = $3
	`, models.PayoutStatusVerificationPending, readyAt, id)
	return err
}

// ClaimPayoutStatus условно переводит payout_status из from в to.
func (r *PaymentRepo) ClaimPayoutStatus(ctx context.Context, id int64, from, to string) error {
	var claimed int64
	err := r.pool.QueryRow(ctx, `
		UPDATE payments SET payout_status = $1, updated_at = now()
		WHERE id = $2 AND payout_status = $3
		RETURNING id
	`, to, id, from).Scan(&claimed)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotClaimed
	}
	return err
}

func (r *PaymentRepo) SetPayoutSent(ctx context.Context, id int64, txHash string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE payments
		SET payout_status = $1, payout_tx_hash = $2, payout_error = NULL,
		    payout_at = now(), updated_at = now()
		WHERE id = $3
	`, models.PayoutStatusSent, txHash, id)
	return err
}

func (r *PaymentRepo) SetPayoutFailed(ctx context.Context, id int64, reason string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE payments
		SET payout_status = $1, payout_error = $2, updated_at = now()
		WHERE id = $3
	`, models.PayoutStatusFailed, truncate(reason, 500), id)
	return err
}

// SetPayoutStatus выставляет payout_status без guard'а (возврат в очередь
// после rate limit, отмена при отклонении платежа).
func (r *PaymentRepo) SetPayoutStatus(ctx context.Context, id int64, status string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE payments SET payout_status = $1, updated_at = now() WHERE id = $2
	`, status, id)
	return err
}

func (r *PaymentRepo) SetRefundPending(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE payments SET refund_status = $1, refund_error = NULL, updated_at = now()
		WHERE id = $2
	`, models.RefundStatusPending, id)
	return err
}

func (r *PaymentRepo) SetRefundSent(ctx context.Context, id int64, txHash string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE payments
		SET refund_status = $1, refund_tx_hash = $2, refund_error = NULL, updated_at = now()
		WHERE id = $3
	`, models.RefundStatusSent, txHash, id)
	return err
}

func (r *PaymentRepo) SetRefundFailed(ctx context.Context, id int64, reason string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE payments
		SET refund_status = $1, refund_error = $2, updated_at = now()
		WHERE id = $3
	`, models.RefundStatusFailed, truncate(reason, 500), id)
	return err
}

// ReclaimStuckVerifying возвращает в очередь строки, зависшие в verifying
// дольше grace-периода (обычно после падения воркера между claim и
// терминальной записью).
func (r *PaymentRepo) ReclaimStuckVerifying(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE payments
		SET payout_status = $1, updated_at = now()
		WHERE payout_status = $2 AND updated_at < now() - $3::interval
	`, models.PayoutStatusVerificationPending, models.PayoutStatusVerifying,
		fmt.Sprintf("%d seconds", int(olderThan.Seconds())))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
