package handlers

import (
	"context"

	"github.com/digital-goods/backend/internal/http/dto"
	"github.com/digital-goods/backend/internal/middleware"
	"github.com/digital-goods/backend/internal/repositories"
	"github.com/digital-goods/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type OrderHandler struct {
	orderService   *services.OrderService
	disputeService *services.DisputeService
	reviewService  *services.ReviewService
	log            *zap.Logger
}

func NewOrderHandler(
	orderService *services.OrderService,
	disputeService *services.DisputeService,
	reviewService *services.ReviewService,
	log *zap.Logger,
) *OrderHandler {
	return &OrderHandler{
		orderService:   orderService,
		disputeService: disputeService,
		reviewService:  reviewService,
		log:            log,
	}
}

func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	var req dto.CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	sellerID, err := uuid.Parse(req.SellerID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid seller_id"})
	}
	unitPrice, err := decimal.NewFromString(req.UnitPrice)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid unit_price"})
	}
	discount := decimal.Zero
	if req.Discount != "" {
		discount, err = decimal.NewFromString(req.Discount)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid discount"})
		}
	}

	order, err := h.orderService.CreateOrder(c.Context(), middleware.GetUserID(c), services.CreateOrderInput{
		SellerID:   sellerID,
		ListingRef: req.ListingRef,
		UnitPrice:  unitPrice,
		Quantity:   req.Quantity,
		Discount:   discount,
	})
	if err != nil {
		return respondErr(c, h.log, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: order})
}

func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid order id"})
	}

	order, err := h.orderService.GetOrder(c.Context(), orderID, middleware.GetUserID(c), middleware.GetRole(c))
	if err != nil {
		return respondErr(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: order})
}

func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	limit, offset := pagination(c)

	filter := repositories.OrderFilter{Limit: limit, Offset: offset}
	if v := c.Query("status"); v != "" {
		filter.Status = &v
	}
	switch c.Query("role") {
	case "seller":
		filter.SellerID = &userID
	default:
		filter.BuyerID = &userID
	}

	orders, err := h.orderService.ListOrders(c.Context(), filter)
	if err != nil {
		return respondErr(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: orders})
}

func (h *OrderHandler) GetTimeline(c *fiber.Ctx) error {
	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid order id"})
	}

	timeline, err := h.orderService.GetTimeline(c.Context(), orderID, middleware.GetUserID(c), middleware.GetRole(c))
	if err != nil {
		return respondErr(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: timeline})
}

func (h *OrderHandler) Pay(c *fiber.Ctx) error {
	return h.transition(c, h.orderService.Pay)
}

func (h *OrderHandler) MarkDelivered(c *fiber.Ctx) error {
	return h.transition(c, h.orderService.MarkDelivered)
}

func (h *OrderHandler) Confirm(c *fiber.Ctx) error {
	return h.transition(c, h.orderService.Confirm)
}

func (h *OrderHandler) Cancel(c *fiber.Ctx) error {
	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid order id"})
	}

	var req dto.CancelOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	if err := h.orderService.Cancel(c.Context(), orderID, middleware.GetUserID(c), middleware.GetRole(c), req.Reason); err != nil {
		return respondErr(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *OrderHandler) OpenDispute(c *fiber.Ctx) error {
	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid order id"})
	}

	var req dto.OpenDisputeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	if err := h.disputeService.OpenDispute(c.Context(), orderID, middleware.GetUserID(c), middleware.GetRole(c), req.Reason, req.Description); err != nil {
		return respondErr(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true})
}

func (h *OrderHandler) GetDispute(c *fiber.Ctx) error {
	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid order id"})
	}

	dispute, err := h.disputeService.GetByOrder(c.Context(), orderID, middleware.GetUserID(c), middleware.GetRole(c))
	if err != nil {
		return respondErr(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dispute})
}

func (h *OrderHandler) SubmitReview(c *fiber.Ctx) error {
	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid order id"})
	}

	var req dto.SubmitReviewRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	review, err := h.reviewService.SubmitReview(c.Context(), orderID, middleware.GetUserID(c), middleware.GetRole(c), req.Rating, req.Content)
	if err != nil {
		return respondErr(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: review})
}

type transitionFunc func(ctx context.Context, orderID, actorID uuid.UUID, role string) error

func (h *OrderHandler) transition(c *fiber.Ctx, fn transitionFunc) error {
	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid order id"})
	}

	if err := fn(c.Context(), orderID, middleware.GetUserID(c), middleware.GetRole(c)); err != nil {
		return respondErr(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}
