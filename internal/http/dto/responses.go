package dto

type AuthResponse struct {
	Token string `json:"token"`
	User  any    `json:"user"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

// PaymentWithIntent отдаётся при создании платежа или кампании:
// сам объект плюс реквизиты для перевода USDT.
type PaymentWithIntent struct {
	Payment any `json:"payment,omitempty"`
	Intent  any `json:"intent"`
}
