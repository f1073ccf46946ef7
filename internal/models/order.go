package models

import "time"

// Order publish statuses
const (
	OrderPublishPending   = "pending"
	OrderPublishPublished = "published"
	OrderPublishFailed    = "failed"
)

// Order — размещение, оплаченное одним платежом. Перед выплатой
// проверяется, что опубликованный пост всё ещё существует.
type Order struct {
	ID                 int64      `json:"id"`
	PaymentID          int64      `json:"payment_id"`
	ChannelID          int64      `json:"channel_id"`
	PublishStatus      string     `json:"publish_status"`
	PublishedMessageID *int64     `json:"published_message_id,omitempty"`
	PublishedChannelID *int64     `json:"published_channel_id,omitempty"`
	PublishedAt        *time.Time `json:"published_at,omitempty"`
	VerifyStatus       *string    `json:"verify_status,omitempty"`
	VerifiedAt         *time.Time `json:"verified_at,omitempty"`
	VerifyError        *string    `json:"verify_error,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}
