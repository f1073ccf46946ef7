package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/zyra-market/backend/internal/config"
	"github.com/zyra-market/backend/internal/db"
	"github.com/zyra-market/backend/internal/escrow"
	"github.com/zyra-market/backend/internal/events"
	apphttp "github.com/zyra-market/backend/internal/http"
	"github.com/zyra-market/backend/internal/http/handlers"
	"github.com/zyra-market/backend/internal/repositories"
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

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	// Run migrations
	if err := db.RunMigrations(ctx, pool, "migrations", log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
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

	// Events
	publisher := events.NewRedisPublisher(rdb, log)

	// TON stack. Фоновые свипы живут в worker, но выплату и возврат
	// можно запустить явно через API, поэтому сайнер нужен и здесь.
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

	// Services
	paymentService := services.NewPaymentService(
		paymentRepo, orderRepo, channelRepo,
		indexer, signer, wallets, bot, runner, publisher, cfg, log)
	campaignService := services.NewCampaignService(
		campaignRepo, applicationRepo, channelRepo,
		indexer, signer, wallets, bot, runner, publisher, cfg, paymentService, log)

	// Handlers
	authHandler := handlers.NewAuthHandler(cfg, log)
	paymentHandler := handlers.NewPaymentHandler(paymentService, paymentRepo, log)
	campaignHandler := handlers.NewCampaignHandler(campaignService, campaignRepo, log)
	channelHandler := handlers.NewChannelHandler(channelRepo, log)

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, authHandler, paymentHandler, campaignHandler, channelHandler)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
