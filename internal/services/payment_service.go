package services

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zyra-market/backend/internal/config"
	"github.com/zyra-market/backend/internal/escrow"
	"github.com/zyra-market/backend/internal/events"
	"github.com/zyra-market/backend/internal/models"
	"github.com/zyra-market/backend/internal/repositories"
	"github.com/zyra-market/backend/internal/tasks"
	"github.com/zyra-market/backend/internal/telegram"
	"github.com/zyra-market/backend/internal/ton"
	"github.com/zyra-market/backend/internal/tonapi"
)

// Refresh outcomes
const (
	RefreshPaid    = "paid"
	RefreshPending = "pending"
	RefreshSkip    = "skip"
)

// RefreshResult — итог одной сверки платежа с цепочкой.
type RefreshResult struct {
	Outcome       string `json:"outcome"`
	Reason        string `json:"reason,omitempty"`
	Confirmations int    `json:"confirmations,omitempty"`
}

// PaymentIntent — реквизиты для оплаты: куда, сколько и с каким
// комментарием переводить USDT.
type PaymentIntent struct {
	Address         string `json:"address"`
	AmountBaseUnits string `json:"amount_base_units"`
	Reference       string `json:"reference"`
	JettonMaster    string `json:"jetton_master"`
	TonkeeperLink   string `json:"tonkeeper_link"`
	// TON, который плательщик кладёт на эскроу сверх жетонов: газ на
	// выплату, комиссию и свип
	TonDepositNano string `json:"ton_deposit_nano"`
}

type PaymentService struct {
	payments *repositories.PaymentRepo
	orders   *repositories.OrderRepo
	channels *repositories.ChannelRepo

	indexer   *tonapi.Client
	signer    *ton.Signer
	wallets   *escrow.Generator
	bot       *telegram.Client
	runner    *tasks.Runner
	publisher events.Publisher
	cfg       *config.Config
	log       *zap.Logger

	decimalsMu sync.Mutex
	decimals   int // кэш decimals жетона, 0 = ещё не запрошены
}

func NewPaymentService(
	payments *repositories.PaymentRepo,
	orders *repositories.OrderRepo,
	channels *repositories.ChannelRepo,
	indexer *tonapi.Client,
	signer *ton.Signer,
	wallets *escrow.Generator,
	bot *telegram.Client,
	runner *tasks.Runner,
	publisher events.Publisher,
	cfg *config.Config,
	log *zap.Logger,
) *PaymentService {
	return &PaymentService{
		payments:  payments,
		orders:    orders,
		channels:  channels,
		indexer:   indexer,
		signer:    signer,
		wallets:   wallets,
		bot:       bot,
		runner:    runner,
		publisher: publisher,
		cfg:       cfg,
		log:       log,
	}
}

func (s *PaymentService) jettonDecimals(ctx context.Context) (int, error) {
	s.decimalsMu.Lock()
	defer s.decimalsMu.Unlock()
	if s.decimals > 0 {
		return s.decimals, nil
	}
	if s.cfg.JettonMaster == "" {
		return 0, fmt.Errorf("USDT_JETTON_MASTER is not configured")
	}
	d, err := s.indexer.GetJettonDecimals(ctx, s.cfg.JettonMaster)
	if err != nil {
		return 0, err
	}
	s.decimals = d
	return d, nil
}

// CreateIntent создаёт платёж с одноразовым эскроу-кошельком и возвращает
// реквизиты для оплаты. Комиссия сервиса берётся на выплате, не здесь.
func (s *PaymentService) CreateIntent(ctx context.Context, groupID, userID int64, amountUSDT string) (*models.Payment, *PaymentIntent, error) {
	if _, _, err := SplitPayoutAmount(amountUSDT, s.cfg.CommissionPercent); err != nil {
		return nil, nil, fmt.Errorf("amount not payable: %w", err)
	}

	w, err := s.wallets.Generate()
	if err != nil {
		return nil, nil, fmt.Errorf("create escrow wallet: %w", err)
	}

	ref := fmt.Sprintf("pay_%d_%s", groupID, randomHex(4))
	p := &models.Payment{
		GroupID:                   groupID,
		UserID:                    userID,
		AmountUSDT:                amountUSDT,
		FeeUSDT:                   "0.00",
		TotalUSDT:                 amountUSDT,
		Reference:                 ref,
		Provider:                  "ton_usdt",
		Status:                    models.PaymentStatusPending,
		EscrowAddress:             &w.Address,
		EscrowAddressRaw:          &w.AddressRaw,
		EscrowPrivateKeyEncrypted: &w.SecretKeyEncrypted,
	}
	if err := s.payments.Create(ctx, p); err != nil {
		return nil, nil, fmt.Errorf("insert payment: %w", err)
	}

	intent, err := s.buildIntent(ctx, w.Address, p.TotalUSDT, ref)
	if err != nil {
		return nil, nil, err
	}

	s.log.Info("payment intent created",
		zap.Int64("payment_id", p.ID),
		zap.String("reference", ref),
		zap.String("escrow", w.Address),
	)
	return p, intent, nil
}

func (s *PaymentService) buildIntent(ctx context.Context, escrowAddr, amountUSDT, reference string) (*PaymentIntent, error) {
	decimals, err := s.jettonDecimals(ctx)
	if err != nil {
		return nil, err
	}
	base, err := ton.ToJettonAmount(amountUSDT, decimals)
	if err != nil {
		return nil, err
	}
	link := fmt.Sprintf("https://app.tonkeeper.com/transfer/%s?jetton=%s&amount=%s&text=%s",
		url.PathEscape(escrowAddr), url.QueryEscape(s.cfg.JettonMaster), base, url.QueryEscape(reference))
	return &PaymentIntent{
		Address:         escrowAddr,
		AmountBaseUnits: base,
		Reference:       reference,
		JettonMaster:    s.cfg.JettonMaster,
		TonkeeperLink:   link,
		TonDepositNano:  s.cfg.EscrowRequiredTON.String(),
	}, nil
}

// Refresh сверяет платёж с цепочкой и при подтверждённом совпадении
// переводит его в paid. Условный UPDATE делает повторную сверку
// идемпотентной.
func (s *PaymentService) Refresh(ctx context.Context, p *models.Payment) (RefreshResult, error) {
	if p.Status != models.PaymentStatusPending {
		return RefreshResult{Outcome: RefreshSkip, Reason: "payment is not pending"}, nil
	}
	if p.Reference == "" {
		return RefreshResult{Outcome: RefreshSkip, Reason: "no reference"}, nil
	}
	if !p.HasEscrow() {
		return RefreshResult{Outcome: RefreshSkip, Reason: "no escrow address"}, nil
	}

	decimals, err := s.jettonDecimals(ctx)
	if err != nil {
		return RefreshResult{}, err
	}
	expected, err := ton.ToJettonAmount(p.TotalUSDT, decimals)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("expected amount: %w", err)
	}

	evs, err := s.indexer.GetAccountEvents(ctx, *p.EscrowAddress, 50)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("account events: %w", err)
	}

	match, ok := MatchIncomingTransfer(evs, MatchExpectation{
		AmountBaseUnits: expected,
		Reference:       p.Reference,
		RecipientAddrs:  recipientForms(p.EscrowAddress, p.EscrowAddressRaw),
		JettonMasters:   s.expectedMasters(),
	})
	if !ok {
		return RefreshResult{Outcome: RefreshPending, Reason: "no matching transfer"}, nil
	}

	// Сначала резерв TON: без него выплата потом не пройдёт, ждать
	// подтверждений бессмысленно.
	balance, err := s.indexer.GetAccountTonBalance(ctx, *p.EscrowAddress)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("escrow balance: %w", err)
	}
	if reason, short := tonReserveShort(balance, s.cfg.EscrowRequiredMin); short {
		return RefreshResult{Outcome: RefreshSkip, Reason: reason}, nil
	}

	confirmations := s.resolveConfirmations(ctx, match)
	if confirmations < s.cfg.ConfirmationsRequired {
		return RefreshResult{
			Outcome:       RefreshPending,
			Reason:        "waiting for confirmations",
			Confirmations: confirmations,
		}, nil
	}

	txHash := match.EventID
	if len(match.TxHashes) > 0 {
		txHash = match.TxHashes[0]
	}
	err = s.payments.MarkPaid(ctx, p.ID, match.PayerAddress, txHash, confirmations)
	if errors.Is(err, repositories.ErrNotClaimed) {
		return RefreshResult{Outcome: RefreshSkip, Reason: "already claimed"}, nil
	}
	if err != nil {
		return RefreshResult{}, fmt.Errorf("mark paid: %w", err)
	}

	s.log.Info("payment confirmed on-chain",
		zap.Int64("payment_id", p.ID),
		zap.String("reference", p.Reference),
		zap.String("payer", match.PayerAddress),
		zap.Int("confirmations", confirmations),
	)
	_ = s.publisher.Publish(ctx, events.StreamSettlement, events.Event{
		Type: events.EventPaymentPaid,
		Payload: map[string]any{
			"payment_id": p.ID,
			"reference":  p.Reference,
			"tx_hash":    txHash,
		},
	})
	s.notify(p.UserID, fmt.Sprintf("Payment %s confirmed: %s USDT received", p.Reference, p.TotalUSDT))

	return RefreshResult{Outcome: RefreshPaid, Confirmations: confirmations}, nil
}

// resolveConfirmations перебирает кандидатов на хеш транзакции; если ни
// один не разрешился в seqno блока, применяется время события.
func (s *PaymentService) resolveConfirmations(ctx context.Context, m *MatchedTransfer) int {
	head, err := s.indexer.GetMasterchainSeqno(ctx)
	if err != nil {
		s.log.Warn("masterchain head unavailable", zap.Error(err))
		return FallbackConfirmations(time.Unix(m.Timestamp, 0), time.Now(),
			s.cfg.BlockTimeSeconds, s.cfg.ConfirmationsRequired)
	}

	for _, h := range m.TxHashes {
		seqno, ok, err := s.indexer.GetTransactionSeqno(ctx, h)
		if err != nil {
			s.log.Debug("transaction seqno lookup failed", zap.String("hash", h), zap.Error(err))
			continue
		}
		if ok {
			return Confirmations(head, seqno)
		}
	}

	return FallbackConfirmations(time.Unix(m.Timestamp, 0), time.Now(),
		s.cfg.BlockTimeSeconds, s.cfg.ConfirmationsRequired)
}

// tonReserveShort сверяет TON-баланс эскроу с минимальным резервом и
// формирует причину скипа с требуемой и фактической суммой.
func tonReserveShort(balance, required *big.Int) (string, bool) {
	if balance.Cmp(required) >= 0 {
		return "", false
	}
	return fmt.Sprintf("escrow TON deposit missing: need %s, have %s nanoton",
		required.String(), balance.String()), true
}

func (s *PaymentService) expectedMasters() []string {
	var masters []string
	if s.cfg.JettonMaster != "" {
		masters = append(masters, s.cfg.JettonMaster)
	}
	if s.cfg.JettonMasterRaw != "" {
		masters = append(masters, s.cfg.JettonMasterRaw)
	}
	return masters
}

func recipientForms(addrs ...*string) []string {
	var out []string
	for _, a := range addrs {
		if a != nil && *a != "" {
			out = append(out, *a)
		}
	}
	return out
}

// UpdateStatus применяет ручной переход статуса. Принятие планирует
// выплату после задержки, отклонение профинансированного платежа
// запускает возврат.
func (s *PaymentService) UpdateStatus(ctx context.Context, id int64, to string) (*models.Payment, error) {
	p, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !models.IsValidPaymentTransition(p.Status, to) {
		return nil, fmt.Errorf("invalid transition %s -> %s", p.Status, to)
	}

	from := p.Status
	if err := s.payments.UpdateStatus(ctx, id, from, to); err != nil {
		if errors.Is(err, repositories.ErrNotClaimed) {
			return nil, fmt.Errorf("payment status changed concurrently")
		}
		return nil, err
	}

	switch to {
	case models.PaymentStatusAccepted:
		readyAt := time.Now().Add(s.cfg.PayoutDelay)
		if err := s.payments.SchedulePayout(ctx, id, readyAt); err != nil {
			return nil, fmt.Errorf("schedule payout: %w", err)
		}
		s.log.Info("payout scheduled",
			zap.Int64("payment_id", id),
			zap.Time("ready_at", readyAt),
		)

	case models.PaymentStatusRejected:
		_ = s.publisher.Publish(ctx, events.StreamSettlement, events.Event{
			Type:    events.EventPaymentRejected,
			Payload: map[string]any{"payment_id": id},
		})
		if p.PayoutStatus != nil {
			_ = s.payments.SetPayoutStatus(ctx, id, models.PayoutStatusCancelled)
		}
		// Деньги уже на эскроу: владельцу платежа положен возврат
		if from != models.PaymentStatusPending {
			if err := s.payments.SetRefundPending(ctx, id); err != nil {
				return nil, fmt.Errorf("set refund pending: %w", err)
			}
			s.detachRefund(id)
		}
	}

	return s.payments.GetByID(ctx, id)
}

// TriggerPayout — явный запуск выплаты (API). Забирает платёж в
// processing и выполняет выплату в фоне.
func (s *PaymentService) TriggerPayout(ctx context.Context, id int64) error {
	p, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if p.Status != models.PaymentStatusAccepted {
		return fmt.Errorf("payment is not accepted")
	}
	if p.PayoutTxHash != nil {
		return fmt.Errorf("payout already sent")
	}
	if p.PayoutStatus == nil {
		return fmt.Errorf("payout is not scheduled")
	}
	if err := payoutTriggerable(*p.PayoutStatus); err != nil {
		return err
	}

	if err := s.verifyOrdersPublished(ctx, p); err != nil {
		return err
	}

	if err := s.payments.ClaimPayoutStatus(ctx, id, *p.PayoutStatus, models.PayoutStatusProcessing); err != nil {
		if errors.Is(err, repositories.ErrNotClaimed) {
			return fmt.Errorf("payout already in progress")
		}
		return err
	}
	s.detachPayout(id)
	return nil
}

// payoutTriggerable проверяет, можно ли забрать выплату в processing из
// текущего под-статуса. Уже запущенную или завершённую выплату повторный
// вызов не трогает: ровно один перевод на платёж.
func payoutTriggerable(status string) error {
	switch status {
	case models.PayoutStatusVerificationPending,
		models.PayoutStatusVerifying,
		models.PayoutStatusFailed:
		return nil
	case models.PayoutStatusProcessing:
		return fmt.Errorf("payout already in progress")
	case models.PayoutStatusSent:
		return fmt.Errorf("payout already sent")
	case models.PayoutStatusCancelled:
		return fmt.Errorf("payout is cancelled")
	default:
		return fmt.Errorf("unexpected payout status %s", status)
	}
}

// verifyOrdersPublished проверяет, что все размещения платежа
// опубликованы и верифицированы.
func (s *PaymentService) verifyOrdersPublished(ctx context.Context, p *models.Payment) error {
	orders, err := s.orders.ListByPayment(ctx, p.ID)
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		return fmt.Errorf("orders are missing")
	}
	for _, o := range orders {
		if o.PublishStatus != models.OrderPublishPublished || o.PublishedMessageID == nil {
			return fmt.Errorf("order %d is not published", o.ID)
		}
		if o.VerifyStatus == nil || *o.VerifyStatus != models.VerifyStatusVerified {
			return fmt.Errorf("order %d is not verified", o.ID)
		}
	}
	return nil
}

func (s *PaymentService) detachPayout(id int64) {
	s.runner.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		s.executePayout(ctx, id)
	})
}

func (s *PaymentService) detachRefund(id int64) {
	s.runner.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		s.executeRefund(ctx, id)
	})
}

// payoutDestination находит адрес выплаты: единственный канал среди
// размещений платежа и его payout_address.
func (s *PaymentService) payoutDestination(ctx context.Context, p *models.Payment) (string, error) {
	orders, err := s.orders.ListByPayment(ctx, p.ID)
	if err != nil {
		return "", err
	}
	if len(orders) == 0 {
		return "", fmt.Errorf("orders are missing")
	}

	channelID := orders[0].ChannelID
	for _, o := range orders[1:] {
		if o.ChannelID != channelID {
			return "", fmt.Errorf("multiple channels in one payment")
		}
	}

	ch, err := s.channels.GetByID(ctx, channelID)
	if err != nil {
		return "", fmt.Errorf("channel lookup: %w", err)
	}
	if ch.PayoutAddress == nil || *ch.PayoutAddress == "" {
		return "", fmt.Errorf("payout_address is missing")
	}
	return *ch.PayoutAddress, nil
}

// executePayout выполняет выплату: комиссия сервису, затем чистая сумма
// каналу, затем свип остатка TON. Любой исход записывается терминально.
func (s *PaymentService) executePayout(ctx context.Context, id int64) {
	p, err := s.payments.GetByID(ctx, id)
	if err != nil {
		s.log.Error("payout: load payment failed", zap.Int64("payment_id", id), zap.Error(err))
		return
	}
	if p.PayoutStatus == nil || *p.PayoutStatus != models.PayoutStatusProcessing {
		s.log.Warn("payout: payment not claimed", zap.Int64("payment_id", id))
		return
	}

	fail := func(reason string) {
		s.log.Warn("payout failed", zap.Int64("payment_id", id), zap.String("reason", reason))
		if err := s.payments.SetPayoutFailed(ctx, id, reason); err != nil {
			s.log.Error("payout: terminal write failed", zap.Int64("payment_id", id), zap.Error(err))
		}
		_ = s.publisher.Publish(ctx, events.StreamSettlement, events.Event{
			Type:    events.EventPayoutFailed,
			Payload: map[string]any{"payment_id": id, "reason": reason},
		})
	}

	if !p.HasEscrow() {
		fail("escrow is missing")
		return
	}

	dest, err := s.payoutDestination(ctx, p)
	if err != nil {
		fail(err.Error())
		return
	}

	key, err := s.wallets.DecryptKey(*p.EscrowPrivateKeyEncrypted)
	if err != nil {
		fail("escrow key decryption failed")
		return
	}

	payout, commission, err := SplitPayoutAmount(p.TotalUSDT, s.cfg.CommissionPercent)
	if err != nil {
		fail(err.Error())
		return
	}

	decimals, err := s.jettonDecimals(ctx)
	if err != nil {
		fail(fmt.Sprintf("jetton decimals: %v", err))
		return
	}

	var lastSeqno *uint64

	// Сначала комиссия: если она не проходит, канал не получает ничего,
	// и выплату можно безопасно повторить.
	if commission != "0.00" && s.cfg.ServiceWalletAddress != "" {
		base, err := ton.ToJettonAmount(commission, decimals)
		if err != nil {
			fail(fmt.Sprintf("commission amount: %v", err))
			return
		}
		token, err := s.signer.SendJetton(ctx, ton.JettonTransferParams{
			SecretKey:       key,
			FromAddress:     *p.EscrowAddress,
			ToAddress:       s.cfg.ServiceWalletAddress,
			JettonMaster:    s.cfg.JettonMaster,
			AmountBaseUnits: base,
			Comment:         "commission_" + p.Reference,
			GasNano:         s.cfg.JettonGasTON,
		})
		if err != nil {
			fail(fmt.Sprintf("commission transfer: %v", err))
			return
		}
		if n, ok := ton.ParseSeqno(token); ok {
			lastSeqno = &n
		}
	}

	payoutBase, err := ton.ToJettonAmount(payout, decimals)
	if err != nil {
		fail(fmt.Sprintf("payout amount: %v", err))
		return
	}
	token, err := s.signer.SendJetton(ctx, ton.JettonTransferParams{
		SecretKey:       key,
		FromAddress:     *p.EscrowAddress,
		ToAddress:       dest,
		JettonMaster:    s.cfg.JettonMaster,
		AmountBaseUnits: payoutBase,
		Comment:         "payout_" + p.Reference,
		GasNano:         s.cfg.JettonGasTON,
	})
	if err != nil {
		fail(fmt.Sprintf("payout transfer: %v", err))
		return
	}

	if err := s.payments.SetPayoutSent(ctx, id, token); err != nil {
		s.log.Error("payout: terminal write failed", zap.Int64("payment_id", id), zap.Error(err))
		return
	}

	if n, ok := ton.ParseSeqno(token); ok {
		lastSeqno = &n
	}
	s.sweepEscrowTon(ctx, p, key, lastSeqno)

	s.log.Info("payout sent",
		zap.Int64("payment_id", id),
		zap.String("reference", p.Reference),
		zap.String("payout", payout),
		zap.String("commission", commission),
	)
	_ = s.publisher.Publish(ctx, events.StreamSettlement, events.Event{
		Type: events.EventPayoutSent,
		Payload: map[string]any{
			"payment_id": id,
			"reference":  p.Reference,
			"amount":     payout,
		},
	})
	s.notify(p.UserID, fmt.Sprintf("Payout for %s sent: %s USDT", p.Reference, payout))
}

// sweepEscrowTon возвращает неиспользованный TON с эскроу на сервисный
// кошелёк. Свип ждёт проводки последнего перевода жетонов, иначе тому
// не хватит газа.
func (s *PaymentService) sweepEscrowTon(ctx context.Context, p *models.Payment, key []byte, afterSeqno *uint64) {
	if s.cfg.ServiceWalletAddress == "" {
		return
	}
	_, swept, err := s.signer.SendTon(ctx, ton.TonSweepParams{
		SecretKey:   key,
		FromAddress: *p.EscrowAddress,
		ToAddress:   s.cfg.ServiceWalletAddress,
		Comment:     "sweep_" + p.Reference,
		GasNano:     s.cfg.EscrowTONBuffer,
		MinRemain:   s.cfg.EscrowTONMinRemain,
		AfterSeqno:  afterSeqno,
	})
	if err != nil {
		s.log.Warn("escrow TON sweep failed", zap.Int64("payment_id", p.ID), zap.Error(err))
		return
	}
	if swept {
		s.log.Info("escrow TON swept", zap.Int64("payment_id", p.ID))
	}
}

// refundSource выбирает кошелёк, с которого уходит возврат: эскроу
// платежа, а при отсутствующем или нечитаемом ключе — сервисный кошелёк.
// Возврат не должен умирать вместе с ключом эскроу.
func refundSource(
	p *models.Payment,
	decrypt func(string) (ed25519.PrivateKey, error),
	serviceKey, serviceAddr string,
) (key ed25519.PrivateKey, from string, fromEscrow bool, err error) {
	if p.HasEscrow() {
		if key, derr := decrypt(*p.EscrowPrivateKeyEncrypted); derr == nil {
			return key, *p.EscrowAddress, true, nil
		}
	}
	if serviceKey == "" || serviceAddr == "" {
		return nil, "", false, fmt.Errorf("escrow key is unusable and service wallet key is not configured")
	}
	key, err = escrow.ParsePrivateKey(serviceKey)
	if err != nil {
		return nil, "", false, fmt.Errorf("service wallet key: %w", err)
	}
	return key, serviceAddr, false, nil
}

// executeRefund возвращает полную сумму плательщику.
func (s *PaymentService) executeRefund(ctx context.Context, id int64) {
	p, err := s.payments.GetByID(ctx, id)
	if err != nil {
		s.log.Error("refund: load payment failed", zap.Int64("payment_id", id), zap.Error(err))
		return
	}
	if p.RefundStatus == nil || *p.RefundStatus != models.RefundStatusPending {
		return
	}

	fail := func(reason string) {
		s.log.Warn("refund failed", zap.Int64("payment_id", id), zap.String("reason", reason))
		if err := s.payments.SetRefundFailed(ctx, id, reason); err != nil {
			s.log.Error("refund: terminal write failed", zap.Int64("payment_id", id), zap.Error(err))
		}
	}

	if p.PayerAddress == nil || *p.PayerAddress == "" {
		fail("payer address is missing")
		return
	}

	key, from, fromEscrow, err := refundSource(p, s.wallets.DecryptKey,
		s.cfg.ServiceWalletKey, s.cfg.ServiceWalletAddress)
	if err != nil {
		fail(err.Error())
		return
	}
	if !fromEscrow {
		s.log.Warn("refund falls back to the service wallet", zap.Int64("payment_id", id))
	}

	decimals, err := s.jettonDecimals(ctx)
	if err != nil {
		fail(fmt.Sprintf("jetton decimals: %v", err))
		return
	}
	base, err := ton.ToJettonAmount(p.TotalUSDT, decimals)
	if err != nil {
		fail(fmt.Sprintf("refund amount: %v", err))
		return
	}

	token, err := s.signer.SendJetton(ctx, ton.JettonTransferParams{
		SecretKey:       key,
		FromAddress:     from,
		ToAddress:       *p.PayerAddress,
		JettonMaster:    s.cfg.JettonMaster,
		AmountBaseUnits: base,
		Comment:         "refund_" + p.Reference,
		GasNano:         s.cfg.JettonGasTON,
	})
	if err != nil {
		fail(fmt.Sprintf("refund transfer: %v", err))
		return
	}

	if err := s.payments.SetRefundSent(ctx, id, token); err != nil {
		s.log.Error("refund: terminal write failed", zap.Int64("payment_id", id), zap.Error(err))
		return
	}

	if fromEscrow {
		var after *uint64
		if n, ok := ton.ParseSeqno(token); ok {
			after = &n
		}
		s.sweepEscrowTon(ctx, p, key, after)
	}

	s.log.Info("refund sent", zap.Int64("payment_id", id), zap.String("reference", p.Reference))
	_ = s.publisher.Publish(ctx, events.StreamSettlement, events.Event{
		Type:    events.EventRefundSent,
		Payload: map[string]any{"payment_id": id, "reference": p.Reference},
	})
	s.notify(p.UserID, fmt.Sprintf("Refund for %s sent: %s USDT", p.Reference, p.TotalUSDT))
}

// ProcessPendingPayments — свип сверки: прогоняет Refresh по свежим
// pending-платежам. Ошибка одного платежа не останавливает остальные.
func (s *PaymentService) ProcessPendingPayments(ctx context.Context) error {
	pending, err := s.payments.ListPendingForRefresh(ctx, 10)
	if err != nil {
		return fmt.Errorf("list pending payments: %w", err)
	}

	for _, p := range pending {
		res, err := s.Refresh(ctx, p)
		if err != nil {
			s.log.Error("payment refresh failed", zap.Int64("payment_id", p.ID), zap.Error(err))
			continue
		}
		if res.Outcome != RefreshPending {
			s.log.Info("payment refresh",
				zap.Int64("payment_id", p.ID),
				zap.String("outcome", res.Outcome),
				zap.String("reason", res.Reason),
			)
		}
	}
	return nil
}

// ProcessScheduledPayouts — свип выплат: верифицирует размещения и
// запускает выплаты по принятым платежам.
func (s *PaymentService) ProcessScheduledPayouts(ctx context.Context) error {
	if n, err := s.payments.ReclaimStuckVerifying(ctx, s.cfg.VerifyReclaimAfter); err != nil {
		s.log.Warn("reclaim stuck verifying failed", zap.Error(err))
	} else if n > 0 {
		s.log.Warn("reclaimed stuck payouts", zap.Int64("count", n))
	}

	due, err := s.payments.ListDueForPayout(ctx, 10)
	if err != nil {
		return fmt.Errorf("list due payouts: %w", err)
	}

	for _, p := range due {
		if err := s.payments.ClaimPayoutStatus(ctx, p.ID,
			models.PayoutStatusVerificationPending, models.PayoutStatusVerifying); err != nil {
			if !errors.Is(err, repositories.ErrNotClaimed) {
				s.log.Error("claim verifying failed", zap.Int64("payment_id", p.ID), zap.Error(err))
			}
			continue
		}
		s.verifyAndPay(ctx, p)
	}
	return nil
}

// verifyAndPay выполняет верификацию одного принятого платежа.
// Вызывается с заявкой в статусе verifying.
func (s *PaymentService) verifyAndPay(ctx context.Context, p *models.Payment) {
	requeue := func(why string, err error) {
		s.log.Warn("verification postponed",
			zap.Int64("payment_id", p.ID),
			zap.String("why", why),
			zap.Error(err),
		)
		if err := s.payments.SetPayoutStatus(ctx, p.ID, models.PayoutStatusVerificationPending); err != nil {
			s.log.Error("requeue failed", zap.Int64("payment_id", p.ID), zap.Error(err))
		}
	}

	orders, err := s.orders.ListByPayment(ctx, p.ID)
	if err != nil {
		requeue("orders lookup failed", err)
		return
	}
	if len(orders) == 0 {
		_ = s.payments.SetPayoutFailed(ctx, p.ID, "orders are missing")
		return
	}

	channelID := orders[0].ChannelID
	for _, o := range orders[1:] {
		if o.ChannelID != channelID {
			_ = s.payments.SetPayoutFailed(ctx, p.ID, "multiple channels in one payment")
			return
		}
	}

	for _, o := range orders {
		if o.PublishedMessageID == nil || o.PublishedChannelID == nil {
			_ = s.payments.SetPayoutFailed(ctx, p.ID, "published message is missing")
			return
		}

		exists, err := s.bot.CheckMessageExists(ctx, *o.PublishedChannelID, *o.PublishedMessageID)
		if err != nil {
			var rl *telegram.RateLimitedError
			if errors.As(err, &rl) || errors.Is(err, telegram.ErrNotConfigured) {
				// не терминально: вернётся в очередь и попробуем позже
				requeue("message check unavailable", err)
				return
			}
			requeue("message check failed", err)
			return
		}

		if !exists {
			s.handleDeletedPost(ctx, p, o)
			return
		}
		_ = s.orders.SetVerifyResult(ctx, o.ID, models.VerifyStatusVerified, nil)
	}

	ch, err := s.channels.GetByID(ctx, channelID)
	if err != nil {
		requeue("channel lookup failed", err)
		return
	}
	if ch.PayoutAddress == nil || *ch.PayoutAddress == "" {
		_ = s.payments.SetPayoutFailed(ctx, p.ID, "payout_address is missing")
		return
	}

	if err := s.payments.ClaimPayoutStatus(ctx, p.ID,
		models.PayoutStatusVerifying, models.PayoutStatusProcessing); err != nil {
		if !errors.Is(err, repositories.ErrNotClaimed) {
			s.log.Error("claim processing failed", zap.Int64("payment_id", p.ID), zap.Error(err))
		}
		return
	}
	s.detachPayout(p.ID)
}

// handleDeletedPost — опубликованный пост удалили до выплаты: платёж
// отклоняется, выплата отменяется, плательщику готовится возврат.
func (s *PaymentService) handleDeletedPost(ctx context.Context, p *models.Payment, o *models.Order) {
	s.log.Warn("published post deleted before payout",
		zap.Int64("payment_id", p.ID),
		zap.Int64("order_id", o.ID),
	)

	reason := "published message was deleted"
	_ = s.orders.SetVerifyResult(ctx, o.ID, models.VerifyStatusDeleted, &reason)
	_ = s.payments.SetPayoutStatus(ctx, p.ID, models.PayoutStatusCancelled)

	if err := s.payments.UpdateStatus(ctx, p.ID, models.PaymentStatusAccepted, models.PaymentStatusRejected); err != nil {
		if !errors.Is(err, repositories.ErrNotClaimed) {
			s.log.Error("reject payment failed", zap.Int64("payment_id", p.ID), zap.Error(err))
			return
		}
	}
	if err := s.payments.SetRefundPending(ctx, p.ID); err != nil {
		s.log.Error("set refund pending failed", zap.Int64("payment_id", p.ID), zap.Error(err))
		return
	}
	s.detachRefund(p.ID)
	s.notify(p.UserID, fmt.Sprintf("Payment %s rejected: the published post was deleted. Refund is on the way.", p.Reference))
}

// notify шлёт уведомление в личку, не мешая основному потоку.
func (s *PaymentService) notify(userID int64, text string) {
	if !s.bot.Enabled() || userID == 0 {
		return
	}
	s.runner.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.bot.SendMessage(ctx, userID, text); err != nil {
			s.log.Debug("notification failed", zap.Int64("user_id", userID), zap.Error(err))
		}
	})
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
