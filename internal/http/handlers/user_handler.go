package handlers

import (
	"strconv"

	"github.com/digital-goods/backend/internal/http/dto"
	"github.com/digital-goods/backend/internal/middleware"
	"github.com/digital-goods/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type UserHandler struct {
	userService *services.UserService
	log         *zap.Logger
}

func NewUserHandler(userService *services.UserService, log *zap.Logger) *UserHandler {
	return &UserHandler{userService: userService, log: log}
}

func (h *UserHandler) GetMe(c *fiber.Ctx) error {
	user, err := h.userService.GetByID(c.Context(), middleware.GetUserID(c))
	if err != nil {
		return respondErr(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: user})
}

func (h *UserHandler) SellerRating(c *fiber.Ctx) error {
	sellerID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid seller id"})
	}

	limit, offset := pagination(c)
	rating, err := h.userService.SellerRating(c.Context(), sellerID, limit, offset)
	if err != nil {
		return respondErr(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: rating})
}

// Negative values are clamped; a negative OFFSET is a postgres error and must
// not surface as a storage failure.
func pagination(c *fiber.Ctx) (limit, offset int) {
	limit = 20
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			offset = n
		}
	}
	return limit, offset
}
