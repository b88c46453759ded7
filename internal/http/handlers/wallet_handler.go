package handlers

import (
	"context"

	"github.com/digital-goods/backend/internal/http/dto"
	"github.com/digital-goods/backend/internal/middleware"
	"github.com/digital-goods/backend/internal/models"
	"github.com/digital-goods/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type WalletHandler struct {
	walletService *services.WalletService
	log           *zap.Logger
}

func NewWalletHandler(walletService *services.WalletService, log *zap.Logger) *WalletHandler {
	return &WalletHandler{walletService: walletService, log: log}
}

func (h *WalletHandler) GetWallet(c *fiber.Ctx) error {
	w, err := h.walletService.GetWallet(c.Context(), middleware.GetUserID(c))
	if err != nil {
		return respondErr(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: walletResponse(w)})
}

func (h *WalletHandler) ListTransactions(c *fiber.Ctx) error {
	limit, offset := pagination(c)
	txs, err := h.walletService.ListTransactions(c.Context(), middleware.GetUserID(c), limit, offset)
	if err != nil {
		return respondErr(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: txs})
}

func (h *WalletHandler) Deposit(c *fiber.Ctx) error {
	return h.move(c, h.walletService.Deposit)
}

func (h *WalletHandler) Withdraw(c *fiber.Ctx) error {
	return h.move(c, h.walletService.Withdraw)
}

func (h *WalletHandler) move(c *fiber.Ctx, fn func(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*models.Wallet, error)) error {
	var req dto.AmountRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid amount"})
	}

	w, err := fn(c.Context(), middleware.GetUserID(c), amount)
	if err != nil {
		return respondErr(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: walletResponse(w)})
}

func walletResponse(w *models.Wallet) dto.WalletResponse {
	return dto.WalletResponse{
		UserID:         w.UserID.String(),
		Balance:        w.Balance.StringFixed(2),
		PendingBalance: w.PendingBalance.StringFixed(2),
	}
}
