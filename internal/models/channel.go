package models

import "time"

// Channel — телеграм-канал, зарегистрированный владельцем для публикаций.
// payout_address — TON-адрес, на который уходят выплаты за посты.
type Channel struct {
	ID            int64      `json:"id"`
	TelegramID    int64      `json:"telegram_id"`
	OwnerUserID   int64      `json:"owner_user_id"`
	Title         string     `json:"title"`
	Username      *string    `json:"username,omitempty"`
	PayoutAddress *string    `json:"payout_address,omitempty"`
	VerifiedAt    *time.Time `json:"verified_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
