package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/zyra-market/backend/internal/http/dto"
	"github.com/zyra-market/backend/internal/middleware"
	"github.com/zyra-market/backend/internal/models"
	"github.com/zyra-market/backend/internal/repositories"
)

type ChannelHandler struct {
	channels *repositories.ChannelRepo
	log      *zap.Logger
}

func NewChannelHandler(channels *repositories.ChannelRepo, log *zap.Logger) *ChannelHandler {
	return &ChannelHandler{channels: channels, log: log}
}

func (h *ChannelHandler) CreateChannel(c *fiber.Ctx) error {
	var req dto.CreateChannelRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}
	if req.TelegramID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "telegram_id is required"})
	}

	ch := &models.Channel{
		TelegramID:    req.TelegramID,
		OwnerUserID:   middleware.GetTelegramUserID(c),
		Title:         req.Title,
		Username:      req.Username,
		PayoutAddress: req.PayoutAddress,
	}
	if err := h.channels.Create(c.Context(), ch); err != nil {
		h.log.Error("create channel failed", zap.Error(err))
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: "channel already registered"})
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: ch})
}

func (h *ChannelHandler) GetChannel(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid channel id"})
	}

	ch, err := h.channels.GetByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "channel not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: ch})
}

// SetPayoutAddress задаёт TON-адрес, на который каналу идут выплаты.
func (h *ChannelHandler) SetPayoutAddress(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid channel id"})
	}

	var req dto.SetPayoutAddressRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}
	if req.PayoutAddress == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "payout_address is required"})
	}

	ch, err := h.channels.GetByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "channel not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}
	if ch.OwnerUserID != middleware.GetTelegramUserID(c) {
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Error: "not a channel owner"})
	}

	if err := h.channels.SetPayoutAddress(c.Context(), id, req.PayoutAddress); err != nil {
		h.log.Error("set payout address failed", zap.Int64("channel_id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}
