package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/zyra-market/backend/internal/http/dto"
	"github.com/zyra-market/backend/internal/middleware"
	"github.com/zyra-market/backend/internal/models"
	"github.com/zyra-market/backend/internal/repositories"
	"github.com/zyra-market/backend/internal/services"
)

type CampaignHandler struct {
	campaigns    *services.CampaignService
	campaignRepo *repositories.CampaignRepo
	log          *zap.Logger
}

func NewCampaignHandler(campaigns *services.CampaignService, campaignRepo *repositories.CampaignRepo, log *zap.Logger) *CampaignHandler {
	return &CampaignHandler{campaigns: campaigns, campaignRepo: campaignRepo, log: log}
}

func (h *CampaignHandler) CreateCampaign(c *fiber.Ctx) error {
	var req dto.CreateCampaignRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}
	if req.AdText == "" || req.BudgetUSDT == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "ad_text and budget_usdt are required"})
	}

	ownerID := middleware.GetTelegramUserID(c)
	campaign, intent, err := h.campaigns.Create(c.Context(), ownerID, req.AdText, req.BudgetUSDT, req.PricePerPost)
	if err != nil {
		h.log.Error("create campaign failed", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{
		OK:   true,
		Data: dto.PaymentWithIntent{Payment: campaign, Intent: intent},
	})
}

func (h *CampaignHandler) GetCampaign(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid campaign id"})
	}

	campaign, err := h.campaignRepo.GetByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "campaign not found"})
		}
		h.log.Error("get campaign failed", zap.Int64("campaign_id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: campaign})
}

// RefreshCampaign — ручная сверка бюджетного депозита.
func (h *CampaignHandler) RefreshCampaign(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid campaign id"})
	}

	campaign, err := h.campaignRepo.GetByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "campaign not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}

	res, err := h.campaigns.RefreshPayment(c.Context(), campaign)
	if err != nil {
		h.log.Error("campaign refresh failed", zap.Int64("campaign_id", id), zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Error: "refresh failed"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: res})
}

func (h *CampaignHandler) CloseCampaign(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid campaign id"})
	}

	campaign, err := h.campaigns.Close(c.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "campaign not found"})
		}
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: campaign})
}

func (h *CampaignHandler) CancelCampaign(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid campaign id"})
	}

	campaign, err := h.campaigns.Cancel(c.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "campaign not found"})
		}
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: campaign})
}

// --- Applications ---

func (h *CampaignHandler) ApplyToCampaign(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid campaign id"})
	}

	var req dto.ApplyToCampaignRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}
	if req.ChannelID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "channel_id is required"})
	}

	app, err := h.campaigns.Apply(c.Context(), id, req.ChannelID, req.ProposedPrice)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "campaign not found"})
		}
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: app})
}

func (h *CampaignHandler) ApproveApplication(c *fiber.Ctx) error {
	return h.applicationTransition(c, h.campaigns.ApproveApplication)
}

func (h *CampaignHandler) RejectApplication(c *fiber.Ctx) error {
	return h.applicationTransition(c, h.campaigns.RejectApplication)
}

func (h *CampaignHandler) applicationTransition(c *fiber.Ctx, fn func(context.Context, int64) (*models.CampaignApplication, error)) error {
	id, err := parseID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid application id"})
	}

	app, err := fn(c.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "application not found"})
		}
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: app})
}

// MarkPublished — канал опубликовал пост, выплата встаёт в очередь.
func (h *CampaignHandler) MarkPublished(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid application id"})
	}

	var req dto.MarkPublishedRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}
	if req.MessageID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "message_id is required"})
	}

	app, err := h.campaigns.MarkPublished(c.Context(), id, req.MessageID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "application not found"})
		}
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: app})
}
