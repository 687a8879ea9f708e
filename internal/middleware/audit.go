package middleware

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/mobile_money/internal/apierr"
)

// Audit logs one line per request. Failed requests are logged with the
// status and code the error handler will render, since the response has not
// been written yet when the error passes through here.
func Audit(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		attrs := []any{
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Duration("duration", time.Since(start)),
		}
		if id := RequestIDFrom(c); id != "" {
			attrs = append(attrs, slog.String("request_id", id))
		}
		if caller, _ := c.Locals("user_id").(string); caller != "" {
			attrs = append(attrs, slog.String("caller", caller))
		}

		if err != nil {
			status, code := apierr.Classify(err)
			attrs = append(attrs, slog.Int("status", status), slog.String("code", code), slog.Any("error", err))
			if status >= fiber.StatusInternalServerError {
				logger.Error("request failed", attrs...)
			} else {
				logger.Warn("request rejected", attrs...)
			}
			return err
		}

		attrs = append(attrs, slog.Int("status", c.Response().StatusCode()))
		logger.Info("request completed", attrs...)
		return nil
	}
}
