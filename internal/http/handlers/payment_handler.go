package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/zyra-market/backend/internal/http/dto"
	"github.com/zyra-market/backend/internal/middleware"
	"github.com/zyra-market/backend/internal/repositories"
	"github.com/zyra-market/backend/internal/services"
)

type PaymentHandler struct {
	payments    *services.PaymentService
	paymentRepo *repositories.PaymentRepo
	log         *zap.Logger
}

func NewPaymentHandler(payments *services.PaymentService, paymentRepo *repositories.PaymentRepo, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{payments: payments, paymentRepo: paymentRepo, log: log}
}

func parseID(c *fiber.Ctx) (int64, error) {
	return strconv.ParseInt(c.Params("id"), 10, 64)
}

func (h *PaymentHandler) CreatePayment(c *fiber.Ctx) error {
	var req dto.CreatePaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}
	if req.GroupID == 0 || req.AmountUSDT == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "group_id and amount_usdt are required"})
	}

	userID := middleware.GetTelegramUserID(c)
	p, intent, err := h.payments.CreateIntent(c.Context(), req.GroupID, userID, req.AmountUSDT)
	if err != nil {
		h.log.Error("create payment failed", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{
		OK:   true,
		Data: dto.PaymentWithIntent{Payment: p, Intent: intent},
	})
}

func (h *PaymentHandler) GetPayment(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid payment id"})
	}

	p, err := h.paymentRepo.GetByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "payment not found"})
		}
		h.log.Error("get payment failed", zap.Int64("payment_id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: p})
}

// RefreshPayment — ручная сверка платежа с цепочкой.
func (h *PaymentHandler) RefreshPayment(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid payment id"})
	}

	p, err := h.paymentRepo.GetByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "payment not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}

	res, err := h.payments.Refresh(c.Context(), p)
	if err != nil {
		h.log.Error("payment refresh failed", zap.Int64("payment_id", id), zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Error: "refresh failed"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: res})
}

func (h *PaymentHandler) UpdateStatus(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid payment id"})
	}

	var req dto.UpdatePaymentStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}
	if req.Status == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "status is required"})
	}

	p, err := h.payments.UpdateStatus(c.Context(), id, req.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "payment not found"})
		}
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: p})
}

// TriggerPayout — явный запуск выплаты без ожидания свипа.
func (h *PaymentHandler) TriggerPayout(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid payment id"})
	}

	if err := h.payments.TriggerPayout(c.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "payment not found"})
		}
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	return c.Status(fiber.StatusAccepted).JSON(dto.SuccessResponse{OK: true})
}
