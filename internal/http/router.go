package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/zyra-market/backend/internal/config"
	"github.com/zyra-market/backend/internal/http/handlers"
	"github.com/zyra-market/backend/internal/middleware"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	authHandler *handlers.AuthHandler,
	paymentHandler *handlers.PaymentHandler,
	campaignHandler *handlers.CampaignHandler,
	channelHandler *handlers.ChannelHandler,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")

	// Auth (public)
	api.Post("/auth/telegram", authHandler.TelegramAuth)

	api.Use(middleware.RateLimitMiddleware(rdb, 100, time.Minute))

	// Protected endpoints
	protected := api.Group("", middleware.AuthMiddleware(cfg, log))

	// Channels
	protected.Post("/channels", channelHandler.CreateChannel)
	protected.Get("/channels/:id", channelHandler.GetChannel)
	protected.Put("/channels/:id/payout-address", channelHandler.SetPayoutAddress)

	// Payments
	protected.Post("/payments", paymentHandler.CreatePayment)
	protected.Get("/payments/:id", paymentHandler.GetPayment)
	protected.Post("/payments/:id/refresh", paymentHandler.RefreshPayment)
	protected.Patch("/payments/:id/status", paymentHandler.UpdateStatus)
	protected.Post("/payments/:id/payout", paymentHandler.TriggerPayout)

	// Campaigns
	protected.Post("/campaigns", campaignHandler.CreateCampaign)
	protected.Get("/campaigns/:id", campaignHandler.GetCampaign)
	protected.Post("/campaigns/:id/refresh", campaignHandler.RefreshCampaign)
	protected.Post("/campaigns/:id/close", campaignHandler.CloseCampaign)
	protected.Post("/campaigns/:id/cancel", campaignHandler.CancelCampaign)
	protected.Post("/campaigns/:id/applications", campaignHandler.ApplyToCampaign)

	// Applications
	protected.Post("/applications/:id/approve", campaignHandler.ApproveApplication)
	protected.Post("/applications/:id/reject", campaignHandler.RejectApplication)
	protected.Post("/applications/:id/published", campaignHandler.MarkPublished)
}
