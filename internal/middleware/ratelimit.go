package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/digital-goods/backend/internal/http/dto"
)

// RateLimitMiddleware enforces a fixed window of `limit` requests per client
// IP and path. Counting lives in redis so replicas share the window. Redis
// being down disables limiting rather than the API.
func RateLimitMiddleware(rdb *redis.Client, limit int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := fmt.Sprintf("rl:%s:%s", c.Path(), c.IP())
		ctx := c.UserContext()

		pipe := rdb.TxPipeline()
		incr := pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, window)
		if _, err := pipe.Exec(ctx); err != nil {
			return c.Next()
		}

		if incr.Val() > int64(limit) {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(window.Seconds())))
			reqID, _ := c.Locals(CtxRequestID).(string)
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.ErrorResponse{
				Error:     "rate limit exceeded, retry later",
				Code:      "RATE_LIMITED",
				RequestID: reqID,
			})
		}

		return c.Next()
	}
}
