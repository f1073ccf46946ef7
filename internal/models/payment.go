package models

import "time"

// Payment statuses
const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusAccepted = "accepted"
	PaymentStatusRejected = "rejected"
)

// Payout sub-statuses (NULL until a payout is scheduled)
const (
	PayoutStatusVerificationPending = "verification_pending"
	PayoutStatusVerifying           = "verifying"
	PayoutStatusProcessing          = "processing"
	PayoutStatusSent                = "sent"
	PayoutStatusFailed              = "failed"
	PayoutStatusCancelled           = "cancelled"
)

// Refund sub-statuses (NULL until a refund is owed)
const (
	RefundStatusPending = "pending"
	RefundStatusSent    = "sent"
	RefundStatusFailed  = "failed"
)

// Valid payment state transitions: from -> []to.
// Оплата подтверждается только ончейн-матчем, поэтому pending -> paid
// доступен и через API (ручной refresh), и через фоновый свип.
var ValidPaymentTransitions = map[string][]string{
	PaymentStatusPending:  {PaymentStatusPaid, PaymentStatusRejected},
	PaymentStatusPaid:     {PaymentStatusAccepted, PaymentStatusRejected},
	PaymentStatusAccepted: {PaymentStatusRejected},
	PaymentStatusRejected: {},
}

func IsValidPaymentTransition(from, to string) bool {
	allowed, ok := ValidPaymentTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

type Payment struct {
	ID         int64  `json:"id"`
	GroupID    int64  `json:"group_id"`
	UserID     int64  `json:"user_id"`
	AmountUSDT string `json:"amount_usdt"` // numeric as string
	FeeUSDT    string `json:"fee_usdt"`
	TotalUSDT  string `json:"total_usdt"`
	Reference  string `json:"reference"`
	Provider   string `json:"provider"`
	Status     string `json:"status"`

	EscrowAddress             *string `json:"escrow_address,omitempty"`
	EscrowAddressRaw          *string `json:"escrow_address_raw,omitempty"`
	EscrowPrivateKeyEncrypted *string `json:"-"`

	PayerAddress  *string    `json:"payer_address,omitempty"`
	PaidTxHash    *string    `json:"paid_tx_hash,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	Confirmations int        `json:"confirmations"`

	RefundStatus *string `json:"refund_status,omitempty"`
	RefundTxHash *string `json:"refund_tx_hash,omitempty"`
	RefundError  *string `json:"refund_error,omitempty"`

	PayoutStatus  *string    `json:"payout_status,omitempty"`
	PayoutReadyAt *time.Time `json:"payout_ready_at,omitempty"`
	PayoutTxHash  *string    `json:"payout_tx_hash,omitempty"`
	PayoutError   *string    `json:"payout_error,omitempty"`
	PayoutAt      *time.Time `json:"payout_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasEscrow reports whether the payment carries a usable escrow wallet.
func (p *Payment) HasEscrow() bool {
	return p.EscrowAddress != nil && *p.EscrowAddress != "" &&
		p.EscrowPrivateKeyEncrypted != nil && *p.EscrowPrivateKeyEncrypted != ""
}
