package ton

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton"
	"github.com/xssnick/tonutils-go/ton/wallet"
	"github.com/xssnick/tonutils-go/tvm/cell"
	"go.uber.org/zap"

	"github.com/zyra-market/backend/internal/tonapi"
)

const (
	jettonTransferOp  = 0xf8a7ea5
	forwardTonNano    = 10000000 // 0.01 TON форвардится получателю вместе с жетонами
	seqnoWaitAttempts = 20
	seqnoWaitDelay    = 500 * time.Millisecond
)

// ErrKeyMismatch — расшифрованный ключ не соответствует сохранённому
// адресу эскроу. Отправка с таким ключом ушла бы не с того кошелька.
var ErrKeyMismatch = errors.New("ton: secret key does not match source address")

// InsufficientGasError — на кошельке не хватает TON на комиссию перевода.
type InsufficientGasError struct {
	Required  *big.Int
	Available *big.Int
}

func (e *InsufficientGasError) Error() string {
	return fmt.Sprintf("ton: insufficient TON for gas: need %s, have %s nanoton", e.Required, e.Available)
}

// Signer подписывает и отправляет переводы с эскроу-кошельков.
// Все кошельки — V5R1, идентификатор сети зависит от TON_NETWORK.
type Signer struct {
	api     ton.APIClientWrapped
	log     *zap.Logger
	testnet bool
}

func NewSigner(api ton.APIClientWrapped, network string, log *zap.Logger) *Signer {
	return &Signer{api: api, log: log, testnet: network == "testnet"}
}

func (s *Signer) walletVersion() wallet.ConfigV5R1Final {
	networkID := int32(wallet.MainnetGlobalID)
	if s.testnet {
		networkID = wallet.TestnetGlobalID
	}
	return wallet.ConfigV5R1Final{NetworkGlobalID: networkID}
}

// openWallet строит кошелёк из ключа и сверяет адрес с ожидаемым.
func (s *Signer) openWallet(key ed25519.PrivateKey, expectedAddr string) (*wallet.Wallet, error) {
	w, err := wallet.FromPrivateKey(s.api, key, s.walletVersion())
	if err != nil {
		return nil, fmt.Errorf("ton: open wallet: %w", err)
	}
	if expectedAddr != "" &&
		tonapi.NormalizeAddress(w.WalletAddress().String()) != tonapi.NormalizeAddress(expectedAddr) {
		return nil, ErrKeyMismatch
	}
	return w, nil
}

// WalletSeqno возвращает текущий seqno кошелька. Неразвёрнутый аккаунт — 0.
func (s *Signer) WalletSeqno(ctx context.Context, addr *address.Address) (uint64, error) {
	block, err := s.api.CurrentMasterchainInfo(ctx)
	if err != nil {
		return 0, fmt.Errorf("ton: masterchain info: %w", err)
	}

	acc, err := s.api.GetAccount(ctx, block, addr)
	if err != nil {
		return 0, fmt.Errorf("ton: get account: %w", err)
	}
	if acc == nil || !acc.IsActive {
		return 0, nil
	}

	res, err := s.api.RunGetMethod(ctx, block, addr, "seqno")
	if err != nil {
		return 0, fmt.Errorf("ton: run seqno: %w", err)
	}
	n, err := res.Int(0)
	if err != nil {
		return 0, fmt.Errorf("ton: seqno result: %w", err)
	}
	return n.Uint64(), nil
}

// tonBalance возвращает баланс аккаунта в нанотонах (0 для неактивного).
func (s *Signer) tonBalance(ctx context.Context, addr *address.Address) (*big.Int, error) {
	block, err := s.api.CurrentMasterchainInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("ton: masterchain info: %w", err)
	}
	acc, err := s.api.GetAccount(ctx, block, addr)
	if err != nil {
		return nil, fmt.Errorf("ton: get account: %w", err)
	}
	if acc == nil || !acc.IsActive {
		return big.NewInt(0), nil
	}
	return acc.State.Balance.Nano(), nil
}

// resolveJettonWallet запрашивает адрес жетон-кошелька через get-метод
// get_wallet_address на мастер-контракте жетона.
func (s *Signer) resolveJettonWallet(ctx context.Context, master, owner *address.Address) (*address.Address, error) {
	block, err := s.api.CurrentMasterchainInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("ton: masterchain info: %w", err)
	}

	ownerSlice := cell.BeginCell().MustStoreAddr(owner).EndCell().BeginParse()
	res, err := s.api.RunGetMethod(ctx, block, master, "get_wallet_address", ownerSlice)
	if err != nil {
		return nil, fmt.Errorf("ton: get_wallet_address: %w", err)
	}

	slice, err := res.Slice(0)
	if err != nil {
		return nil, fmt.Errorf("ton: get_wallet_address result: %w", err)
	}
	addr, err := slice.LoadAddr()
	if err != nil {
		return nil, fmt.Errorf("ton: get_wallet_address address: %w", err)
	}
	return addr, nil
}

type JettonTransferParams struct {
	SecretKey       ed25519.PrivateKey
	FromAddress     string // ожидаемый адрес кошелька-отправителя
	ToAddress       string
	JettonMaster    string
	AmountBaseUnits string // сумма в базовых единицах жетона
	Comment         string
	GasNano         *big.Int // TON, прикладываемый к переводу жетонов
}

// SendJetton отправляет жетоны с эскроу-кошелька и возвращает
// корреляционный токен "seqno:N", где N — seqno кошелька перед отправкой.
func (s *Signer) SendJetton(ctx context.Context, p JettonTransferParams) (string, error) {
	amount, ok := new(big.Int).SetString(p.AmountBaseUnits, 10)
	if !ok || amount.Sign() <= 0 {
		return "", fmt.Errorf("ton: invalid jetton amount %q", p.AmountBaseUnits)
	}

	w, err := s.openWallet(p.SecretKey, p.FromAddress)
	if err != nil {
		return "", err
	}

	dest, err := address.ParseAddr(p.ToAddress)
	if err != nil {
		return "", fmt.Errorf("ton: invalid destination %q: %w", p.ToAddress, err)
	}
	master, err := address.ParseAddr(p.JettonMaster)
	if err != nil {
		return "", fmt.Errorf("ton: invalid jetton master %q: %w", p.JettonMaster, err)
	}

	balance, err := s.tonBalance(ctx, w.WalletAddress())
	if err != nil {
		return "", err
	}
	if balance.Cmp(p.GasNano) < 0 {
		return "", &InsufficientGasError{Required: new(big.Int).Set(p.GasNano), Available: balance}
	}

	jettonWallet, err := s.resolveJettonWallet(ctx, master, w.WalletAddress())
	if err != nil {
		return "", err
	}

	body := BuildJettonTransferBody(amount, dest, w.WalletAddress(), p.Comment)

	seqno, err := s.WalletSeqno(ctx, w.WalletAddress())
	if err != nil {
		return "", err
	}

	msg := wallet.SimpleMessage(jettonWallet, tlb.FromNanoTON(p.GasNano), body)
	if err := w.Send(ctx, msg, false); err != nil {
		return "", fmt.Errorf("ton: send jetton transfer: %w", err)
	}

	s.log.Info("jetton transfer submitted",
		zap.String("from", w.WalletAddress().String()),
		zap.String("to", dest.String()),
		zap.String("amount", amount.String()),
		zap.Uint64("seqno", seqno),
	)
	return fmt.Sprintf("seqno:%d", seqno), nil
}

type TonSweepParams struct {
	SecretKey   ed25519.PrivateKey
	FromAddress string
	ToAddress   string
	Comment     string
	GasNano     *big.Int // запас на комиссию, вычитается из баланса
	MinRemain   *big.Int // остаток, который не выметается
	ReserveNano *big.Int // дополнительный резерв (газ будущих выплат), может быть nil
	AfterSeqno  *uint64  // ждать, пока seqno кошелька не превысит это значение
}

// SendTon выметает свободный TON с эскроу-кошелька. Возвращает ok=false
// без ошибки, если после вычета резервов выметать нечего.
func (s *Signer) SendTon(ctx context.Context, p TonSweepParams) (string, bool, error) {
	w, err := s.openWallet(p.SecretKey, p.FromAddress)
	if err != nil {
		return "", false, err
	}

	dest, err := address.ParseAddr(p.ToAddress)
	if err != nil {
		return "", false, fmt.Errorf("ton: invalid destination %q: %w", p.ToAddress, err)
	}

	// Предыдущий перевод жетонов должен провестись до свипа, иначе
	// у кошелька не останется TON на его исполнение.
	if p.AfterSeqno != nil {
		if err := s.waitSeqnoAbove(ctx, w.WalletAddress(), *p.AfterSeqno); err != nil {
			return "", false, err
		}
	}

	balance, err := s.tonBalance(ctx, w.WalletAddress())
	if err != nil {
		return "", false, err
	}

	amount := new(big.Int).Sub(balance, p.GasNano)
	amount.Sub(amount, p.MinRemain)
	if p.ReserveNano != nil {
		amount.Sub(amount, p.ReserveNano)
	}
	if amount.Sign() <= 0 {
		return "", false, nil
	}

	seqno, err := s.WalletSeqno(ctx, w.WalletAddress())
	if err != nil {
		return "", false, err
	}

	body := cell.BeginCell().MustStoreUInt(0, 32).MustStoreStringSnake(p.Comment).EndCell()
	msg := wallet.SimpleMessage(dest, tlb.FromNanoTON(amount), body)
	if err := w.Send(ctx, msg, false); err != nil {
		return "", false, fmt.Errorf("ton: send ton sweep: %w", err)
	}

	s.log.Info("ton sweep submitted",
		zap.String("from", w.WalletAddress().String()),
		zap.String("to", dest.String()),
		zap.String("amount_nano", amount.String()),
		zap.Uint64("seqno", seqno),
	)
	return fmt.Sprintf("seqno:%d", seqno), true, nil
}

func (s *Signer) waitSeqnoAbove(ctx context.Context, addr *address.Address, after uint64) error {
	for i := 0; i < seqnoWaitAttempts; i++ {
		seqno, err := s.WalletSeqno(ctx, addr)
		if err == nil && seqno > after {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(seqnoWaitDelay):
		}
	}
	s.log.Warn("previous transfer not confirmed in time, sweeping anyway",
		zap.String("wallet", addr.String()),
		zap.Uint64("after_seqno", after),
	)
	return nil
}

// BuildJettonTransferBody собирает тело стандартного перевода жетонов
// (TEP-74): op 0xf8a7ea5, query_id 0, текстовый комментарий в форвард-пейлоаде.
func BuildJettonTransferBody(amount *big.Int, dest, responseTo *address.Address, comment string) *cell.Cell {
	commentRef := cell.BeginCell().MustStoreUInt(0, 32).MustStoreStringSnake(comment).EndCell()

	return cell.BeginCell().
		MustStoreUInt(jettonTransferOp, 32).
		MustStoreUInt(0, 64).
		MustStoreBigCoins(amount).
		MustStoreAddr(dest).
		MustStoreAddr(responseTo).
		MustStoreBoolBit(false). // custom_payload отсутствует
		MustStoreBigCoins(big.NewInt(forwardTonNano)).
		MustStoreBoolBit(true). // forward_payload в ссылке
		MustStoreRef(commentRef).
		EndCell()
}
