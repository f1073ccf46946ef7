package dto

type AuthTelegramRequest struct {
	InitData string `json:"init_data"`
}

type CreatePaymentRequest struct {
	GroupID    int64  `json:"group_id"`
	AmountUSDT string `json:"amount_usdt"`
}

type UpdatePaymentStatusRequest struct {
	Status string `json:"status"` // paid / accepted / rejected
}

type CreateChannelRequest struct {
	TelegramID    int64   `json:"telegram_id"`
	Title         string  `json:"title"`
	Username      *string `json:"username,omitempty"`
	PayoutAddress *string `json:"payout_address,omitempty"`
}

type SetPayoutAddressRequest struct {
	PayoutAddress string `json:"payout_address"`
}

type CreateCampaignRequest struct {
	AdText       string  `json:"ad_text"`
	BudgetUSDT   string  `json:"budget_usdt"`
	PricePerPost *string `json:"price_per_post,omitempty"`
}

type ApplyToCampaignRequest struct {
	ChannelID     int64   `json:"channel_id"`
	ProposedPrice *string `json:"proposed_price,omitempty"`
}

type MarkPublishedRequest struct {
	MessageID int64 `json:"message_id"`
}
