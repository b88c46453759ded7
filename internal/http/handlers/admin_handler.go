package handlers

import (
	"time"

	"github.com/digital-goods/backend/internal/http/dto"
	"github.com/digital-goods/backend/internal/middleware"
	"github.com/digital-goods/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AdminHandler struct {
	orderService   *services.OrderService
	disputeService *services.DisputeService
	walletService  *services.WalletService
	financeService *services.FinanceService
	log            *zap.Logger
}

func NewAdminHandler(
	orderService *services.OrderService,
	disputeService *services.DisputeService,
	walletService *services.WalletService,
	financeService *services.FinanceService,
	log *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		orderService:   orderService,
		disputeService: disputeService,
		walletService:  walletService,
		financeService: financeService,
		log:            log,
	}
}

func (h *AdminHandler) ForceComplete(c *fiber.Ctx) error {
	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid order id"})
	}

	if err := h.orderService.ForceComplete(c.Context(), orderID, middleware.GetUserID(c), middleware.GetRole(c)); err != nil {
		return respondErr(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *AdminHandler) ForceCancelRefund(c *fiber.Ctx) error {
	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid order id"})
	}

	var req dto.ForceCancelRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	if err := h.orderService.ForceCancelRefund(c.Context(), orderID, middleware.GetUserID(c), middleware.GetRole(c), req.Reason); err != nil {
		return respondErr(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *AdminHandler) ListOpenDisputes(c *fiber.Ctx) error {
	limit, offset := pagination(c)
	disputes, err := h.disputeService.ListOpen(c.Context(), limit, offset)
	if err != nil {
		return respondErr(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: disputes})
}

// OrderLedger exposes all ledger entries of one order for arbitration.
func (h *AdminHandler) OrderLedger(c *fiber.Ctx) error {
	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid order id"})
	}

	txs, err := h.walletService.ListTransactionsByOrder(c.Context(), orderID)
	if err != nil {
		return respondErr(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: txs})
}

func (h *AdminHandler) FinanceSummary(c *fiber.Ctx) error {
	var from, to *time.Time
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid from timestamp"})
		}
		from = &t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid to timestamp"})
		}
		to = &t
	}

	summary, err := h.financeService.Summary(c.Context(), from, to)
	if err != nil {
		return respondErr(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: summary})
}
