package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
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

type CampaignService struct {
	campaigns    *repositories.CampaignRepo
	applications *repositories.ApplicationRepo
	channels     *repositories.ChannelRepo

	indexer   *tonapi.Client
	signer    *ton.Signer
	wallets   *escrow.Generator
	bot       *telegram.Client
	runner    *tasks.Runner
	publisher events.Publisher
	cfg       *config.Config
	log       *zap.Logger

	// сверка и decimals жетона переиспользуются из платёжного сервиса
	payments *PaymentService
}

func NewCampaignService(
	campaigns *repositories.CampaignRepo,
	applications *repositories.ApplicationRepo,
	channels *repositories.ChannelRepo,
	indexer *tonapi.Client,
	signer *ton.Signer,
	wallets *escrow.Generator,
	bot *telegram.Client,
	runner *tasks.Runner,
	publisher events.Publisher,
	cfg *config.Config,
	payments *PaymentService,
	log *zap.Logger,
) *CampaignService {
	return &CampaignService{
		campaigns:    campaigns,
		applications: applications,
		channels:     channels,
		indexer:      indexer,
		signer:       signer,
		wallets:      wallets,
		bot:          bot,
		runner:       runner,
		publisher:    publisher,
		cfg:          cfg,
		payments:     payments,
		log:          log,
	}
}

// Create создаёт кампанию в статусе pending с собственным эскроу.
// Бюджет блокируется после подтверждения оплаты (RefreshPayment).
func (s *CampaignService) Create(ctx context.Context, ownerUserID int64, adText, budgetUSDT string, pricePerPost *string) (*models.Campaign, *PaymentIntent, error) {
	if _, _, err := SplitPayoutAmount(budgetUSDT, s.cfg.CommissionPercent); err != nil {
		return nil, nil, fmt.Errorf("budget not payable: %w", err)
	}
	if pricePerPost != nil {
		if _, _, err := SplitPayoutAmount(*pricePerPost, s.cfg.CommissionPercent); err != nil {
			return nil, nil, fmt.Errorf("price_per_post not payable: %w", err)
		}
	}

	w, err := s.wallets.Generate()
	if err != nil {
		return nil, nil, fmt.Errorf("create escrow wallet: %w", err)
	}

	c := &models.Campaign{
		OwnerUserID:               ownerUserID,
		AdText:                    adText,
		BudgetUSDT:                budgetUSDT,
		PricePerPost:              pricePerPost,
		Status:                    models.CampaignStatusPending,
		PaymentReference:          "campaign_" + randomHex(8),
		EscrowAddress:             &w.Address,
		EscrowAddressRaw:          &w.AddressRaw,
		EscrowPrivateKeyEncrypted: &w.SecretKeyEncrypted,
	}
	if err := s.campaigns.Create(ctx, c); err != nil {
		return nil, nil, fmt.Errorf("insert campaign: %w", err)
	}

	intent, err := s.payments.buildIntent(ctx, w.Address, budgetUSDT, c.PaymentReference)
	if err != nil {
		return nil, nil, err
	}

	s.log.Info("campaign created",
		zap.Int64("campaign_id", c.ID),
		zap.String("reference", c.PaymentReference),
		zap.String("escrow", w.Address),
	)
	return c, intent, nil
}

// RefreshPayment сверяет бюджетный депозит кампании с цепочкой и при
// подтверждённом совпадении активирует её.
func (s *CampaignService) RefreshPayment(ctx context.Context, c *models.Campaign) (RefreshResult, error) {
	if c.Status != models.CampaignStatusPending {
		return RefreshResult{Outcome: RefreshSkip, Reason: "campaign is not pending"}, nil
	}
	if !c.HasEscrow() {
		return RefreshResult{Outcome: RefreshSkip, Reason: "no escrow address"}, nil
	}

	decimals, err := s.payments.jettonDecimals(ctx)
	if err != nil {
		return RefreshResult{}, err
	}
	expected, err := ton.ToJettonAmount(c.BudgetUSDT, decimals)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("expected amount: %w", err)
	}

	evs, err := s.indexer.GetAccountEvents(ctx, *c.EscrowAddress, 50)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("account events: %w", err)
	}

	match, ok := MatchIncomingTransfer(evs, MatchExpectation{
		AmountBaseUnits: expected,
		Reference:       c.PaymentReference,
		RecipientAddrs:  recipientForms(c.EscrowAddress, c.EscrowAddressRaw),
		JettonMasters:   s.payments.expectedMasters(),
	})
	if !ok {
		return RefreshResult{Outcome: RefreshPending, Reason: "no matching transfer"}, nil
	}

	balance, err := s.indexer.GetAccountTonBalance(ctx, *c.EscrowAddress)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("escrow balance: %w", err)
	}
	if reason, short := tonReserveShort(balance, s.cfg.EscrowRequiredMin); short {
		return RefreshResult{Outcome: RefreshSkip, Reason: reason}, nil
	}

	confirmations := s.payments.resolveConfirmations(ctx, match)
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
	err = s.campaigns.MarkActive(ctx, c.ID, match.PayerAddress, txHash, confirmations)
	if errors.Is(err, repositories.ErrNotClaimed) {
		return RefreshResult{Outcome: RefreshSkip, Reason: "already claimed"}, nil
	}
	if err != nil {
		return RefreshResult{}, fmt.Errorf("mark active: %w", err)
	}

	s.log.Info("campaign activated",
		zap.Int64("campaign_id", c.ID),
		zap.String("budget", c.BudgetUSDT),
		zap.Int("confirmations", confirmations),
	)
	_ = s.publisher.Publish(ctx, events.StreamSettlement, events.Event{
		Type: events.EventCampaignActivated,
		Payload: map[string]any{
			"campaign_id": c.ID,
			"budget":      c.BudgetUSDT,
			"tx_hash":     txHash,
		},
	})
	s.notifyOwner(c, fmt.Sprintf("Campaign #%d activated: %s USDT budget locked", c.ID, c.BudgetUSDT))

	return RefreshResult{Outcome: RefreshPaid, Confirmations: confirmations}, nil
}

// Close закрывает активную кампанию и возвращает остаток пула
// рекламодателю.
func (s *CampaignService) Close(ctx context.Context, id int64) (*models.Campaign, error) {
	return s.finish(ctx, id, models.CampaignStatusActive, models.CampaignStatusClosed)
}

// Cancel отменяет кампанию. У pending денег ещё нет, active возвращает
// остаток как при закрытии.
func (s *CampaignService) Cancel(ctx context.Context, id int64) (*models.Campaign, error) {
	c, err := s.campaigns.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status == models.CampaignStatusPending {
		if err := s.campaigns.ClaimStatus(ctx, id, models.CampaignStatusPending, models.CampaignStatusCancelled); err != nil {
			if errors.Is(err, repositories.ErrNotClaimed) {
				return nil, fmt.Errorf("campaign status changed concurrently")
			}
			return nil, err
		}
		return s.campaigns.GetByID(ctx, id)
	}
	return s.finish(ctx, id, models.CampaignStatusActive, models.CampaignStatusCancelled)
}

func (s *CampaignService) finish(ctx context.Context, id int64, from, to string) (*models.Campaign, error) {
	c, err := s.campaigns.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !models.IsValidCampaignTransition(c.Status, to) {
		return nil, fmt.Errorf("invalid transition %s -> %s", c.Status, to)
	}

	if err := s.campaigns.ClaimStatus(ctx, id, from, to); err != nil {
		if errors.Is(err, repositories.ErrNotClaimed) {
			return nil, fmt.Errorf("campaign status changed concurrently")
		}
		return nil, err
	}

	// Возврат в фоне: ответ API не ждёт цепочку
	s.runner.Go(func() {
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		s.refundRemaining(rctx, id, to)
	})

	return s.campaigns.GetByID(ctx, id)
}

// refundRemaining возвращает остаток бюджета рекламодателю и свипает
// TON с эскроу, оставляя газ под ещё не выплаченные публикации.
func (s *CampaignService) refundRemaining(ctx context.Context, id int64, finalStatus string) {
	c, err := s.campaigns.GetByID(ctx, id)
	if err != nil {
		s.log.Error("campaign refund: load failed", zap.Int64("campaign_id", id), zap.Error(err))
		return
	}

	fail := func(reason string) {
		s.log.Warn("campaign refund failed", zap.Int64("campaign_id", id), zap.String("reason", reason))
		if err := s.campaigns.SetRefundResult(ctx, id, nil, &reason); err != nil {
			s.log.Error("campaign refund: terminal write failed", zap.Int64("campaign_id", id), zap.Error(err))
		}
	}

	if c.RefundTxHash != nil {
		return
	}
	if !c.HasEscrow() {
		fail("escrow is missing")
		return
	}
	if c.PayerAddress == nil || *c.PayerAddress == "" {
		fail("payer address is missing")
		return
	}

	key, err := s.wallets.DecryptKey(*c.EscrowPrivateKeyEncrypted)
	if err != nil {
		fail("escrow key decryption failed")
		return
	}

	comment := fmt.Sprintf("campaign_refund_%d", id)
	if finalStatus == models.CampaignStatusCancelled {
		comment = fmt.Sprintf("campaign_cancel_%d", id)
	}

	var after *uint64
	refundable, err := MoneyGTE(c.RemainingUSDT, "0.01")
	if err != nil {
		fail(fmt.Sprintf("remaining amount: %v", err))
		return
	}
	if refundable {
		decimals, err := s.payments.jettonDecimals(ctx)
		if err != nil {
			fail(fmt.Sprintf("jetton decimals: %v", err))
			return
		}
		base, err := ton.ToJettonAmount(c.RemainingUSDT, decimals)
		if err != nil {
			fail(fmt.Sprintf("refund amount: %v", err))
			return
		}
		token, err := s.signer.SendJetton(ctx, ton.JettonTransferParams{
			SecretKey:       key,
			FromAddress:     *c.EscrowAddress,
			ToAddress:       *c.PayerAddress,
			JettonMaster:    s.cfg.JettonMaster,
			AmountBaseUnits: base,
			Comment:         comment,
			GasNano:         s.cfg.JettonGasTON,
		})
		if err != nil {
			fail(fmt.Sprintf("refund transfer: %v", err))
			return
		}
		if err := s.campaigns.SetRefundResult(ctx, id, &token, nil); err != nil {
			s.log.Error("campaign refund: terminal write failed", zap.Int64("campaign_id", id), zap.Error(err))
			return
		}
		if n, ok := ton.ParseSeqno(token); ok {
			after = &n
		}

		s.log.Info("campaign refund sent",
			zap.Int64("campaign_id", id),
			zap.String("amount", c.RemainingUSDT),
		)
		_ = s.publisher.Publish(ctx, events.StreamSettlement, events.Event{
			Type: events.EventCampaignRefunded,
			Payload: map[string]any{
				"campaign_id": id,
				"amount":      c.RemainingUSDT,
			},
		})
		s.notifyOwner(c, fmt.Sprintf("Campaign #%d %s: %s USDT refunded", id, finalStatus, c.RemainingUSDT))
	} else {
		// пул пуст, фиксируем без перевода жетонов
		empty := ""
		if err := s.campaigns.SetRefundResult(ctx, id, &empty, nil); err != nil {
			s.log.Error("campaign refund: terminal write failed", zap.Int64("campaign_id", id), zap.Error(err))
		}
	}

	s.sweepCampaignTon(ctx, c, key, after)
}

// sweepCampaignTon возвращает TON с эскроу кампании, резервируя газ под
// выплаты, которые ещё не прошли.
func (s *CampaignService) sweepCampaignTon(ctx context.Context, c *models.Campaign, key []byte, afterSeqno *uint64) {
	if s.cfg.ServiceWalletAddress == "" {
		return
	}

	pending, err := s.campaigns.CountPendingPayouts(ctx, c.ID)
	if err != nil {
		s.log.Warn("pending payouts count failed", zap.Int64("campaign_id", c.ID), zap.Error(err))
		return
	}
	var reserve *big.Int
	if pending > 0 {
		reserve = new(big.Int).Mul(s.cfg.CampaignPayoutGas, big.NewInt(int64(pending)))
	}

	_, swept, err := s.signer.SendTon(ctx, ton.TonSweepParams{
		SecretKey:   key,
		FromAddress: *c.EscrowAddress,
		ToAddress:   s.cfg.ServiceWalletAddress,
		Comment:     fmt.Sprintf("campaign_sweep_%d", c.ID),
		GasNano:     s.cfg.EscrowTONBuffer,
		MinRemain:   s.cfg.EscrowTONMinRemain,
		ReserveNano: reserve,
		AfterSeqno:  afterSeqno,
	})
	if err != nil {
		s.log.Warn("campaign TON sweep failed", zap.Int64("campaign_id", c.ID), zap.Error(err))
		return
	}
	if swept {
		s.log.Info("campaign TON swept", zap.Int64("campaign_id", c.ID), zap.Int("gas_reserved_for", pending))
	}
}

// Apply создаёт заявку канала на участие в кампании.
func (s *CampaignService) Apply(ctx context.Context, campaignID, channelID int64, proposedPrice *string) (*models.CampaignApplication, error) {
	c, err := s.campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if c.Status != models.CampaignStatusActive {
		return nil, fmt.Errorf("campaign is not active")
	}
	if proposedPrice == nil && c.PricePerPost == nil {
		return nil, fmt.Errorf("price is missing")
	}
	if proposedPrice != nil {
		if _, _, err := SplitPayoutAmount(*proposedPrice, s.cfg.CommissionPercent); err != nil {
			return nil, fmt.Errorf("proposed price not payable: %w", err)
		}
	}
	if _, err := s.channels.GetByID(ctx, channelID); err != nil {
		return nil, fmt.Errorf("channel lookup: %w", err)
	}

	a := &models.CampaignApplication{
		CampaignID:    campaignID,
		ChannelID:     channelID,
		Status:        models.ApplicationStatusPending,
		ProposedPrice: proposedPrice,
	}
	if err := s.applications.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("insert application: %w", err)
	}
	return a, nil
}

// ApproveApplication — рекламодатель одобрил канал.
func (s *CampaignService) ApproveApplication(ctx context.Context, id int64) (*models.CampaignApplication, error) {
	return s.transitionApplication(ctx, id, models.ApplicationStatusAccepted)
}

// RejectApplication отклоняет заявку.
func (s *CampaignService) RejectApplication(ctx context.Context, id int64) (*models.CampaignApplication, error) {
	return s.transitionApplication(ctx, id, models.ApplicationStatusRejected)
}

func (s *CampaignService) transitionApplication(ctx context.Context, id int64, to string) (*models.CampaignApplication, error) {
	a, err := s.applications.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !models.IsValidApplicationTransition(a.Status, to) {
		return nil, fmt.Errorf("invalid transition %s -> %s", a.Status, to)
	}
	if err := s.applications.ClaimStatus(ctx, id, a.Status, to); err != nil {
		if errors.Is(err, repositories.ErrNotClaimed) {
			return nil, fmt.Errorf("application status changed concurrently")
		}
		return nil, err
	}
	return s.applications.GetByID(ctx, id)
}

// MarkPublished фиксирует публикацию поста каналом и ставит выплату в
// очередь с задержкой.
func (s *CampaignService) MarkPublished(ctx context.Context, id, messageID int64) (*models.CampaignApplication, error) {
	readyAt := time.Now().Add(s.cfg.PayoutDelay)
	if err := s.applications.MarkPublished(ctx, id, messageID, readyAt); err != nil {
		if errors.Is(err, repositories.ErrNotClaimed) {
			return nil, fmt.Errorf("application is not accepted")
		}
		return nil, err
	}

	s.log.Info("application published",
		zap.Int64("application_id", id),
		zap.Int64("message_id", messageID),
		zap.Time("payout_ready_at", readyAt),
	)
	return s.applications.GetByID(ctx, id)
}

// ProcessPendingCampaignPayments — свип сверки бюджетных депозитов.
func (s *CampaignService) ProcessPendingCampaignPayments(ctx context.Context) error {
	pending, err := s.campaigns.ListPendingForRefresh(ctx, 25)
	if err != nil {
		return fmt.Errorf("list pending campaigns: %w", err)
	}

	for _, c := range pending {
		res, err := s.RefreshPayment(ctx, c)
		if err != nil {
			s.log.Error("campaign refresh failed", zap.Int64("campaign_id", c.ID), zap.Error(err))
			continue
		}
		if res.Outcome != RefreshPending {
			s.log.Info("campaign refresh",
				zap.Int64("campaign_id", c.ID),
				zap.String("outcome", res.Outcome),
				zap.String("reason", res.Reason),
			)
		}
	}
	return nil
}

// ProcessApplicationPayouts — свип выплат за публикации. Выплаты идут
// по одной: два перевода с одного эскроу нельзя параллелить из-за
// seqno кошелька.
func (s *CampaignService) ProcessApplicationPayouts(ctx context.Context) error {
	due, err := s.applications.ListDueForPayout(ctx, 25)
	if err != nil {
		return fmt.Errorf("list due application payouts: %w", err)
	}

	for _, a := range due {
		s.payApplication(ctx, a)
	}
	return nil
}

// jettonSender — операция подписанта, которой пользуется выплата заявки.
type jettonSender interface {
	SendJetton(ctx context.Context, p ton.JettonTransferParams) (string, error)
}

// runApplicationTransfers шлёт комиссию и выплату с эскроу кампании и
// списывает пул только после того, как оба перевода ушли: сорвавшийся
// перевод не должен оставить remaining_usdt уменьшенным без движения
// жетонов. Непрошедшее списание после отправки возвращает токен выплаты
// вместе с ошибкой.
func runApplicationTransfers(
	ctx context.Context,
	sender jettonSender,
	commission *ton.JettonTransferParams,
	payout ton.JettonTransferParams,
	decrement func(context.Context) error,
) (string, error) {
	if commission != nil {
		if _, err := sender.SendJetton(ctx, *commission); err != nil {
			return "", fmt.Errorf("commission transfer: %v", err)
		}
	}
	token, err := sender.SendJetton(ctx, payout)
	if err != nil {
		return "", fmt.Errorf("payout transfer: %v", err)
	}
	if err := decrement(ctx); err != nil {
		return token, fmt.Errorf("pool decrement: %w", err)
	}
	return token, nil
}

func (s *CampaignService) payApplication(ctx context.Context, a *models.CampaignApplication) {
	c, err := s.campaigns.GetByID(ctx, a.CampaignID)
	if err != nil {
		s.log.Error("application payout: campaign load failed",
			zap.Int64("application_id", a.ID), zap.Error(err))
		return
	}
	if c.Status != models.CampaignStatusActive {
		// кампания закрыта между постановкой и выплатой
		_ = s.applications.SetPayoutFailed(ctx, a.ID, "campaign is not active")
		return
	}

	if err := s.applications.ClaimPayoutProcessing(ctx, a.ID); err != nil {
		if !errors.Is(err, repositories.ErrNotClaimed) {
			s.log.Error("application payout: claim failed",
				zap.Int64("application_id", a.ID), zap.Error(err))
		}
		return
	}

	fail := func(reason string) {
		s.log.Warn("application payout failed",
			zap.Int64("application_id", a.ID),
			zap.Int64("campaign_id", c.ID),
			zap.String("reason", reason),
		)
		if err := s.applications.SetPayoutFailed(ctx, a.ID, reason); err != nil {
			s.log.Error("application payout: terminal write failed",
				zap.Int64("application_id", a.ID), zap.Error(err))
		}
	}
	retry := func(why string, err error) {
		s.log.Warn("application payout postponed",
			zap.Int64("application_id", a.ID),
			zap.String("why", why),
			zap.Error(err),
		)
		if err := s.applications.ClearPayoutClaim(ctx, a.ID); err != nil {
			s.log.Error("application payout: clear claim failed",
				zap.Int64("application_id", a.ID), zap.Error(err))
		}
	}

	ch, err := s.channels.GetByID(ctx, a.ChannelID)
	if err != nil {
		retry("channel lookup failed", err)
		return
	}

	if a.PublishedMessageID == nil {
		fail("published message is missing")
		return
	}
	exists, err := s.bot.CheckMessageExists(ctx, ch.TelegramID, *a.PublishedMessageID)
	if err != nil {
		var rl *telegram.RateLimitedError
		if errors.As(err, &rl) || errors.Is(err, telegram.ErrNotConfigured) {
			retry("message check unavailable", err)
			return
		}
		retry("message check failed", err)
		return
	}
	if !exists {
		s.log.Warn("published post deleted before payout",
			zap.Int64("application_id", a.ID),
			zap.Int64("campaign_id", c.ID),
		)
		if err := s.applications.RevertPublication(ctx, a.ID); err != nil {
			s.log.Error("revert publication failed", zap.Int64("application_id", a.ID), zap.Error(err))
		}
		s.notifyOwner(c, fmt.Sprintf("Campaign #%d: a published post was deleted, payout withheld", c.ID))
		return
	}

	price := a.ProposedPrice
	if price == nil {
		price = c.PricePerPost
	}
	if price == nil {
		fail("price is missing")
		return
	}

	if ch.PayoutAddress == nil || *ch.PayoutAddress == "" {
		fail("payout_address is missing")
		return
	}
	if !c.HasEscrow() {
		fail("escrow is missing")
		return
	}
	enough, err := MoneyGTE(c.RemainingUSDT, *price)
	if err != nil {
		fail(fmt.Sprintf("price amount: %v", err))
		return
	}
	if !enough {
		fail("insufficient campaign funds")
		return
	}

	payout, commission, err := SplitPayoutAmount(*price, s.cfg.CommissionPercent)
	if err != nil {
		fail(err.Error())
		return
	}

	key, err := s.wallets.DecryptKey(*c.EscrowPrivateKeyEncrypted)
	if err != nil {
		fail("escrow key decryption failed")
		return
	}
	decimals, err := s.payments.jettonDecimals(ctx)
	if err != nil {
		retry("jetton decimals unavailable", err)
		return
	}

	var commissionParams *ton.JettonTransferParams
	if commission != "0.00" && s.cfg.ServiceWalletAddress != "" {
		base, err := ton.ToJettonAmount(commission, decimals)
		if err != nil {
			fail(fmt.Sprintf("commission amount: %v", err))
			return
		}
		commissionParams = &ton.JettonTransferParams{
			SecretKey:       key,
			FromAddress:     *c.EscrowAddress,
			ToAddress:       s.cfg.ServiceWalletAddress,
			JettonMaster:    s.cfg.JettonMaster,
			AmountBaseUnits: base,
			Comment:         fmt.Sprintf("campaign_commission_%d_%d", c.ID, a.ID),
			GasNano:         s.cfg.CampaignPayoutGas,
		}
	}

	payoutBase, err := ton.ToJettonAmount(payout, decimals)
	if err != nil {
		fail(fmt.Sprintf("payout amount: %v", err))
		return
	}

	token, err := runApplicationTransfers(ctx, s.signer, commissionParams, ton.JettonTransferParams{
		SecretKey:       key,
		FromAddress:     *c.EscrowAddress,
		ToAddress:       *ch.PayoutAddress,
		JettonMaster:    s.cfg.JettonMaster,
		AmountBaseUnits: payoutBase,
		Comment:         fmt.Sprintf("campaign_payout_%d_%d", c.ID, a.ID),
		GasNano:         s.cfg.CampaignPayoutGas,
	}, func(dctx context.Context) error {
		return s.campaigns.DecrementRemaining(dctx, c.ID, *price)
	})
	if err != nil && token == "" {
		fail(err.Error())
		return
	}
	if err != nil {
		// выплата ушла, а пул не списался: фиксируем отправку, остаток
		// сверяет оператор
		s.log.Error("application payout: pool decrement failed after transfer",
			zap.Int64("application_id", a.ID),
			zap.Int64("campaign_id", c.ID),
			zap.Error(err),
		)
	}

	if err := s.applications.SetPayoutSent(ctx, a.ID, token); err != nil {
		s.log.Error("application payout: terminal write failed",
			zap.Int64("application_id", a.ID), zap.Error(err))
		return
	}

	s.log.Info("application payout sent",
		zap.Int64("application_id", a.ID),
		zap.Int64("campaign_id", c.ID),
		zap.String("payout", payout),
		zap.String("commission", commission),
	)
	_ = s.publisher.Publish(ctx, events.StreamSettlement, events.Event{
		Type: events.EventPayoutSent,
		Payload: map[string]any{
			"campaign_id":    c.ID,
			"application_id": a.ID,
			"amount":         payout,
		},
	})
	s.notifyChannelOwner(ch, fmt.Sprintf("Payout for campaign #%d sent: %s USDT", c.ID, payout))
}

func (s *CampaignService) notifyOwner(c *models.Campaign, text string) {
	s.notifyUser(c.OwnerUserID, text)
}

func (s *CampaignService) notifyChannelOwner(ch *models.Channel, text string) {
	s.notifyUser(ch.OwnerUserID, text)
}

func (s *CampaignService) notifyUser(userID int64, text string) {
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
