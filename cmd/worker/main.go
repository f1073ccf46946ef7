package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/zyra-market/backend/internal/config"
	"github.com/zyra-market/backend/internal/db"
	"github.com/zyra-market/backend/internal/escrow"
	"github.com/zyra-market/backend/internal/events"
	"github.com/zyra-market/backend/internal/repositories"
	"github.com/zyra-market/backend/internal/scheduler"
	"github.com/zyra-market/backend/internal/services"
	"github.com/zyra-market/backend/internal/tasks"
	"github.com/zyra-market/backend/internal/telegram"
	"github.com/zyra-market/backend/internal/ton"
	"github.com/zyra-market/backend/internal/tonapi"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Repositories
	paymentRepo := repositories.NewPaymentRepo(pool)
	campaignRepo := repositories.NewCampaignRepo(pool)
	applicationRepo := repositories.NewApplicationRepo(pool)
	channelRepo := repositories.NewChannelRepo(pool)
	orderRepo := repositories.NewOrderRepo(pool)

	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)

	// TON stack
	indexer := tonapi.NewClient(cfg.TonAPIBaseURL, cfg.TonAPIKey, log)
	tonAPI, err := ton.Connect(ctx, cfg.TONNetwork, cfg.LiteServerHost, cfg.LiteServerPort, cfg.LiteServerKey, log)
	if err != nil {
		log.Fatal("failed to connect to TON", zap.Error(err))
	}
	signer := ton.NewSigner(tonAPI, cfg.TONNetwork, log)

	cipher, err := escrow.NewCipher(cfg.EscrowEncryptionKey)
	if err != nil {
		log.Fatal("invalid escrow encryption key", zap.Error(err))
	}
	wallets := escrow.NewGenerator(cipher, cfg.TONNetwork)

	bot := telegram.NewClient(cfg.BotToken, cfg.BotLogChatID, log)

	runner, err := tasks.NewRunner(16, log)
	if err != nil {
		log.Fatal("failed to create task pool", zap.Error(err))
	}
	defer runner.Release()

	paymentService := services.NewPaymentService(
		paymentRepo, orderRepo, channelRepo,
		indexer, signer, wallets, bot, runner, publisher, cfg, log)
	campaignService := services.NewCampaignService(
		campaignRepo, applicationRepo, channelRepo,
		indexer, signer, wallets, bot, runner, publisher, cfg, paymentService, log)

	// Sweeps
	mgr, err := scheduler.NewManager(log)
	if err != nil {
		log.Fatal("failed to create scheduler", zap.Error(err))
	}

	sweeps := []scheduler.Sweep{
		{Name: "payments:refresh", Run: paymentService.ProcessPendingPayments},
		{Name: "payments:payouts", Run: paymentService.ProcessScheduledPayouts},
		{Name: "campaigns:refresh", Run: campaignService.ProcessPendingCampaignPayments},
		{Name: "campaigns:app-payouts", Run: campaignService.ProcessApplicationPayouts},
	}
	for _, sw := range sweeps {
		if err := mgr.Register(ctx, cfg.SweepInterval, sw); err != nil {
			log.Fatal("failed to register sweep", zap.String("sweep", sw.Name), zap.Error(err))
		}
	}

	// Лента расчётов дублируется в лог-чат бота
	if err := subscriber.Subscribe(ctx, events.StreamSettlement, func(e events.Event) {
		log.Info("settlement event", zap.String("type", e.Type), zap.Any("payload", e.Payload))
		if bot.Enabled() && cfg.BotLogChatID != 0 {
			nctx, ncancel := context.WithTimeout(ctx, 15*time.Second)
			defer ncancel()
			_ = bot.SendMessage(nctx, cfg.BotLogChatID, fmt.Sprintf("%s: %v", e.Type, e.Payload))
		}
	}); err != nil {
		log.Warn("settlement stream subscribe failed", zap.Error(err))
	}

	mgr.Start()
	log.Info("worker started", zap.Duration("sweep_interval", cfg.SweepInterval))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down worker")
	cancel()
	if err := mgr.Shutdown(); err != nil {
		log.Warn("scheduler shutdown error", zap.Error(err))
	}
}
