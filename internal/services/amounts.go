package services

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// SplitPayoutAmount делит сумму на комиссию сервиса и чистую выплату.
// Обе части округляются до 2 знаков (half-up), выплата должна остаться
// положительной после вычета комиссии.
func SplitPayoutAmount(total string, commissionPercent float64) (payout, commission string, err error) {
	amount, err := decimal.NewFromString(total)
	if err != nil {
		return "", "", fmt.Errorf("invalid amount %q: %w", total, err)
	}
	if amount.Sign() <= 0 {
		return "", "", fmt.Errorf("amount %q must be positive", total)
	}
	if commissionPercent < 0 || commissionPercent > 1 {
		return "", "", fmt.Errorf("commission percent %v out of range [0,1]", commissionPercent)
	}

	fee := amount.Mul(decimal.NewFromFloat(commissionPercent)).Round(2)
	net := amount.Sub(fee).Round(2)
	if net.Sign() <= 0 {
		return "", "", fmt.Errorf("payout is not positive after %v%% commission on %s",
			commissionPercent*100, total)
	}

	return net.StringFixed(2), fee.StringFixed(2), nil
}

// SubtractMoney возвращает a-b с точностью 2 знака (суммы в USDT).
func SubtractMoney(a, b string) (string, error) {
	da, err := decimal.NewFromString(a)
	if err != nil {
		return "", fmt.Errorf("invalid amount %q: %w", a, err)
	}
	db, err := decimal.NewFromString(b)
	if err != nil {
		return "", fmt.Errorf("invalid amount %q: %w", b, err)
	}
	return da.Sub(db).Round(2).StringFixed(2), nil
}

// MoneyGTE сообщает, что a >= b.
func MoneyGTE(a, b string) (bool, error) {
	da, err := decimal.NewFromString(a)
	if err != nil {
		return false, fmt.Errorf("invalid amount %q: %w", a, err)
	}
	db, err := decimal.NewFromString(b)
	if err != nil {
		return false, fmt.Errorf("invalid amount %q: %w", b, err)
	}
	return da.GreaterThanOrEqual(db), nil
}
