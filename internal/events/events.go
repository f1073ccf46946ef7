package events

import "context"

// Event types
const (
	EventPaymentPaid       = "payment_paid"
	EventPaymentRejected   = "payment_rejected"
	EventPayoutSent        = "payout_sent"
	EventPayoutFailed      = "payout_failed"
	EventRefundSent        = "refund_sent"
	EventCampaignActivated = "campaign_activated"
	EventCampaignRefunded  = "campaign_refunded"
)

// StreamSettlement — канал, в который сервисы публикуют события
// жизненного цикла платежей. Подписчики (бот, фронт) читают из него.
const StreamSettlement = "events:settlement"

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
