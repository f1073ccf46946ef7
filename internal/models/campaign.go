package models

import "time"

// Campaign statuses
const (
	CampaignStatusPending   = "pending"
	CampaignStatusActive    = "active"
	CampaignStatusClosed    = "closed"
	CampaignStatusCancelled = "cancelled"
)

var ValidCampaignTransitions = map[string][]string{
	CampaignStatusPending:   {CampaignStatusActive, CampaignStatusCancelled},
	CampaignStatusActive:    {CampaignStatusClosed, CampaignStatusCancelled},
	CampaignStatusClosed:    {},
	CampaignStatusCancelled: {},
}

func IsValidCampaignTransition(from, to string) bool {
	allowed, ok := ValidCampaignTransitions[from]
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

// Campaign — рекламная кампания с бюджетным пулом.
// remaining_usdt уменьшается при каждой выплате за публикацию.
type Campaign struct {
	ID            int64   `json:"id"`
	OwnerUserID   int64   `json:"owner_user_id"`
	AdText        string  `json:"ad_text"`
	BudgetUSDT    string  `json:"budget_usdt"` // numeric as string
	PricePerPost  *string `json:"price_per_post,omitempty"`
	RemainingUSDT string  `json:"remaining_usdt"`
	Status        string  `json:"status"`

	PaymentReference          string  `json:"payment_reference"`
	EscrowAddress             *string `json:"escrow_address,omitempty"`
	EscrowAddressRaw          *string `json:"escrow_address_raw,omitempty"`
	EscrowPrivateKeyEncrypted *string `json:"-"`

	PayerAddress  *string    `json:"payer_address,omitempty"`
	PaidTxHash    *string    `json:"paid_tx_hash,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	Confirmations int        `json:"confirmations"`

	RefundTxHash *string `json:"refund_tx_hash,omitempty"`
	RefundError  *string `json:"refund_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Campaign) HasEscrow() bool {
	return c.EscrowAddress != nil && *c.EscrowAddress != "" &&
		c.EscrowPrivateKeyEncrypted != nil && *c.EscrowPrivateKeyEncrypted != ""
}
