package models

import "time"

// Application statuses
const (
	ApplicationStatusPending   = "pending"
	ApplicationStatusAccepted  = "accepted"
	ApplicationStatusRejected  = "rejected"
	ApplicationStatusPublished = "published"
)

// Verify statuses for the published post
const (
	VerifyStatusVerified = "verified"
	VerifyStatusDeleted  = "deleted"
	VerifyStatusFailed   = "failed"
)

var ValidApplicationTransitions = map[string][]string{
	ApplicationStatusPending:   {ApplicationStatusAccepted, ApplicationStatusRejected},
	ApplicationStatusAccepted:  {ApplicationStatusPublished, ApplicationStatusRejected},
	ApplicationStatusRejected:  {},
	ApplicationStatusPublished: {ApplicationStatusAccepted}, // пост удалён до выплаты
}

func IsValidApplicationTransition(from, to string) bool {
	allowed, ok := ValidApplicationTransitions[from]
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

// CampaignApplication — заявка канала на участие в кампании.
// После публикации поста планируется выплата с эскроу кампании.
type CampaignApplication struct {
	ID            int64   `json:"id"`
	CampaignID    int64   `json:"campaign_id"`
	ChannelID     int64   `json:"channel_id"`
	Status        string  `json:"status"`
	ProposedPrice *string `json:"proposed_price,omitempty"` // numeric as string

	PublishedMessageID *int64     `json:"published_message_id,omitempty"`
	PublishedAt        *time.Time `json:"published_at,omitempty"`

	VerifyStatus *string    `json:"verify_status,omitempty"`
	VerifiedAt   *time.Time `json:"verified_at,omitempty"`
	VerifyError  *string    `json:"verify_error,omitempty"`

	PayoutReadyAt *time.Time `json:"payout_ready_at,omitempty"`
	PayoutStatus  *string    `json:"payout_status,omitempty"`
	PayoutError   *string    `json:"payout_error,omitempty"`
	PayoutTxHash  *string    `json:"payout_tx_hash,omitempty"`
	PayoutAt      *time.Time `json:"payout_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
