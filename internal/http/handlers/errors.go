package handlers

import (
	"github.com/digital-goods/backend/internal/apperr"
	"github.com/digital-goods/backend/internal/http/dto"
	"github.com/digital-goods/backend/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// respondErr maps the error classification to an HTTP status. Storage
// failures are logged with detail but reported opaquely.
func respondErr(c *fiber.Ctx, log *zap.Logger, err error) error {
	code := apperr.CodeOf(err)

	status := fiber.StatusInternalServerError
	switch code {
	case apperr.CodeNotFound:
		status = fiber.StatusNotFound
	case apperr.CodeUnauthorized:
		status = fiber.StatusForbidden
	case apperr.CodeInvalidState:
		status = fiber.StatusConflict
	case apperr.CodeValidation:
		status = fiber.StatusBadRequest
	case apperr.CodeInsufficientFunds:
		status = fiber.StatusPaymentRequired
	}

	reqID, _ := c.Locals(middleware.CtxRequestID).(string)
	if status == fiber.StatusInternalServerError {
		log.Error("request failed",
			zap.String("request_id", reqID),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
	}

	return c.Status(status).JSON(dto.ErrorResponse{
		Error:     apperr.MessageOf(err),
		Code:      string(code),
		RequestID: reqID,
	})
}
