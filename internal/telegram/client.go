package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrNotConfigured — у клиента нет токена или лог-чата, операция невозможна.
// Это ошибка конфигурации: вызывающие не должны трактовать её как
// окончательный провал проверки.
var ErrNotConfigured = errors.New("telegram: bot is not configured")

// RateLimitedError — Bot API ответил retry_after. Операцию нужно
// повторить позже, состояние не менять.
type RateLimitedError struct {
	RetryAfter int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("telegram: rate limited, retry after %ds", e.RetryAfter)
}

type User struct {
	ID       int64  `json:"id"`
	IsBot    bool   `json:"is_bot"`
	Username string `json:"username"`
}

type Message struct {
	MessageID int64 `json:"message_id"`
}

type ChatMember struct {
	Status string `json:"status"`
	User   User   `json:"user"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// Client — минимальный клиент Telegram Bot API. Используется для проверки
// существования опубликованных постов и для уведомлений о выплатах.
type Client struct {
	token     string
	logChatID int64
	baseURL   string
	http      *http.Client
	log       *zap.Logger

	mu sync.Mutex
	me *User // getMe кэшируется после первого успеха
}

func NewClient(token string, logChatID int64, log *zap.Logger) *Client {
	return &Client{
		token:     token,
		logChatID: logChatID,
		baseURL:   "https://api.telegram.org",
		http:      &http.Client{Timeout: 15 * time.Second},
		log:       log,
	}
}

func (c *Client) Enabled() bool {
	return c.token != ""
}

func (c *Client) call(ctx context.Context, method string, params url.Values, result any) error {
	if c.token == "" {
		return ErrNotConfigured
	}

	u := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: %s failed: %w", method, err)
	}
	defer resp.Body.Close()

	var api apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&api); err != nil {
		return fmt.Errorf("telegram: %s decode failed: %w", method, err)
	}

	if !api.OK {
		if api.Parameters != nil && api.Parameters.RetryAfter > 0 {
			return &RateLimitedError{RetryAfter: api.Parameters.RetryAfter}
		}
		if strings.Contains(strings.ToLower(api.Description), "retry_after") {
			return &RateLimitedError{}
		}
		return fmt.Errorf("telegram: %s: %s", method, api.Description)
	}

	if result != nil {
		if err := json.Unmarshal(api.Result, result); err != nil {
			return fmt.Errorf("telegram: %s result decode failed: %w", method, err)
		}
	}
	return nil
}

// GetMe возвращает идентичность бота, кэшируя её навсегда.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	c.mu.Lock()
	if c.me != nil {
		me := c.me
		c.mu.Unlock()
		return me, nil
	}
	c.mu.Unlock()

	var me User
	if err := c.call(ctx, "getMe", nil, &me); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.me = &me
	c.mu.Unlock()
	return &me, nil
}

func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	params := url.Values{}
	params.Set("chat_id", strconv.FormatInt(chatID, 10))
	params.Set("text", text)
	return c.call(ctx, "sendMessage", params, nil)
}

func (c *Client) CopyMessage(ctx context.Context, fromChatID, messageID, toChatID int64) (int64, error) {
	params := url.Values{}
	params.Set("chat_id", strconv.FormatInt(toChatID, 10))
	params.Set("from_chat_id", strconv.FormatInt(fromChatID, 10))
	params.Set("message_id", strconv.FormatInt(messageID, 10))
	params.Set("disable_notification", "true")

	var msg Message
	if err := c.call(ctx, "copyMessage", params, &msg); err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

func (c *Client) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	params := url.Values{}
	params.Set("chat_id", strconv.FormatInt(chatID, 10))
	params.Set("message_id", strconv.FormatInt(messageID, 10))
	return c.call(ctx, "deleteMessage", params, nil)
}

func (c *Client) GetChatMember(ctx context.Context, chatID, userID int64) (*ChatMember, error) {
	params := url.Values{}
	params.Set("chat_id", strconv.FormatInt(chatID, 10))
	params.Set("user_id", strconv.FormatInt(userID, 10))

	var m ChatMember
	if err := c.call(ctx, "getChatMember", params, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// CheckMessageExists проверяет, что сообщение всё ещё существует:
// копирует его в лог-чат и тут же удаляет копию. Bot API не даёт
// способа спросить о сообщении напрямую.
func (c *Client) CheckMessageExists(ctx context.Context, chatID, messageID int64) (bool, error) {
	if c.token == "" || c.logChatID == 0 {
		return false, ErrNotConfigured
	}

	copiedID, err := c.CopyMessage(ctx, chatID, messageID, c.logChatID)
	if err != nil {
		var rl *RateLimitedError
		if errors.As(err, &rl) {
			return false, err
		}
		if isMessageGone(err) {
			return false, nil
		}
		return false, err
	}

	// копия своё отслужила
	if err := c.DeleteMessage(ctx, c.logChatID, copiedID); err != nil {
		c.log.Debug("failed to delete probe copy", zap.Int64("message_id", copiedID), zap.Error(err))
	}
	return true, nil
}

func isMessageGone(err error) bool {
	desc := strings.ToLower(err.Error())
	return strings.Contains(desc, "message to copy not found") ||
		strings.Contains(desc, "message_id_invalid")
}
