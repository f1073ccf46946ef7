package tonapi

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/xssnick/tonutils-go/address"
	"go.uber.org/zap"
)

// Client — HTTP-клиент индексатора TON (tonapi.io v2).
// Сервис не индексирует блоки сам, все ончейн-данные берутся отсюда.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *zap.Logger

	// простой троттлинг: без ключа публичный tonapi режет частые запросы
	mu          sync.Mutex
	minInterval time.Duration
	lastRequest time.Time
}

func NewClient(baseURL, apiKey string, log *zap.Logger) *Client {
	minInterval := 350 * time.Millisecond
	if apiKey != "" {
		minInterval = 50 * time.Millisecond
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		http:        &http.Client{Timeout: 15 * time.Second},
		log:         log,
		minInterval: minInterval,
	}
}

func (c *Client) throttle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if wait := c.minInterval - time.Since(c.lastRequest); wait > 0 {
		time.Sleep(wait)
	}
	c.lastRequest = time.Now()
}

// get выполняет GET-запрос и декодирует JSON. Возвращает HTTP-статус,
// чтобы вызывающие могли по-своему обработать 404.
func (c *Client) get(ctx context.Context, path string, out any) (int, error) {
	c.throttle()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("tonapi request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, fmt.Errorf("tonapi returned %d for %s", resp.StatusCode, path)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("tonapi decode failed: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// GetAccountEvents возвращает последние события аккаунта (новые первыми).
func (c *Client) GetAccountEvents(ctx context.Context, account string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	var out AccountEventsResponse
	path := fmt.Sprintf("/accounts/%s/events?limit=%d", url.PathEscape(account), limit)
	if _, err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Events, nil
}

// GetMasterchainSeqno возвращает seqno головы мастерчейна.
func (c *Client) GetMasterchainSeqno(ctx context.Context) (int64, error) {
	var out MasterchainHead
	if _, err := c.get(ctx, "/blockchain/masterchain-head", &out); err != nil {
		return 0, err
	}
	return out.Seqno, nil
}

// GetTransactionSeqno возвращает seqno блока транзакции.
// ok=false, если транзакция ещё не найдена или seqno недоступен.
func (c *Client) GetTransactionSeqno(ctx context.Context, txHash string) (int64, bool, error) {
	var out BlockchainTransaction
	status, err := c.get(ctx, "/blockchain/transactions/"+url.PathEscape(txHash), &out)
	if err != nil {
		if status == http.StatusNotFound {
			return 0, false, nil
		}
		return 0, false, err
	}
	if out.MCBlockSeqno != nil {
		return *out.MCBlockSeqno, true, nil
	}
	if out.Block != nil && out.Block.Seqno != nil {
		return *out.Block.Seqno, true, nil
	}
	return 0, false, nil
}

// GetAccountTonBalance возвращает баланс аккаунта в нанотонах.
// Неинициализированный аккаунт (404) считается нулевым балансом.
func (c *Client) GetAccountTonBalance(ctx context.Context, account string) (*big.Int, error) {
	var out Account
	status, err := c.get(ctx, "/accounts/"+url.PathEscape(account), &out)
	if err != nil {
		if status == http.StatusNotFound {
			return big.NewInt(0), nil
		}
		return nil, err
	}
	return big.NewInt(out.Balance), nil
}

// GetJettonDecimals возвращает число десятичных знаков жетона.
// Отсутствующие или невалидные метаданные — ошибка, молчаливый дефолт
// здесь привёл бы к выплатам с неверной суммой.
func (c *Client) GetJettonDecimals(ctx context.Context, master string) (int, error) {
	var out JettonInfo
	if _, err := c.get(ctx, "/jettons/"+url.PathEscape(master), &out); err != nil {
		return 0, err
	}
	if out.Metadata.Decimals != "" {
		d, err := strconv.Atoi(out.Metadata.Decimals)
		if err != nil || d < 0 {
			return 0, fmt.Errorf("jetton %s has invalid decimals %q", master, out.Metadata.Decimals)
		}
		return d, nil
	}
	if out.Decimals != nil {
		return *out.Decimals, nil
	}
	return 0, fmt.Errorf("jetton %s has no decimals in metadata", master)
}

// GetJettonWalletAddress возвращает адрес жетон-кошелька owner для master.
// Пустая строка без ошибки — кошелёк ещё не развёрнут.
func (c *Client) GetJettonWalletAddress(ctx context.Context, owner, master string) (string, error) {
	want := NormalizeAddress(master)

	var wallets jettonWalletsResponse
	status, err := c.get(ctx, "/accounts/"+url.PathEscape(owner)+"/jetton-wallets", &wallets)
	if err == nil {
		for _, w := range wallets.JettonWallets {
			if NormalizeAddress(w.Jetton) == want {
				return w.Address, nil
			}
		}
		return "", nil
	}
	if status != http.StatusNotFound {
		c.log.Debug("jetton-wallets endpoint failed, falling back to balances", zap.Error(err))
	}

	var balances jettonBalancesResponse
	status, err = c.get(ctx, "/accounts/"+url.PathEscape(owner)+"/jettons", &balances)
	if err != nil {
		if status == http.StatusNotFound {
			return "", nil
		}
		return "", err
	}
	for _, b := range balances.Balances {
		if NormalizeAddress(b.Jetton.Address) == want {
			return b.WalletAddress.Address, nil
		}
	}
	return "", nil
}

// NormalizeAddress приводит адрес к нижнему регистру raw-формы
// (workchain:hex). Непарсибельный вход возвращается как trim+lower,
// чтобы сравнения оставались детерминированными.
func NormalizeAddress(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if a, err := address.ParseAddr(s); err == nil {
		return strings.ToLower(a.StringRaw())
	}
	if a, err := address.ParseRawAddr(s); err == nil {
		return strings.ToLower(a.StringRaw())
	}
	return strings.ToLower(s)
}
