// Package apierr renders every failure at the HTTP boundary as a JSON body
// with a stable, machine-readable code.
package apierr

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/mobile_money/internal/storage"
)

// CodeInternal is returned for unmapped errors and atomic-unit failures.
const CodeInternal = "internal_failure"

// Error is a failure that has already been classified by a handler.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// New classifies err with an HTTP status and code.
func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Message: err.Error()}
}

type body struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Handler is the Fiber error handler for the API.
func Handler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var (
			apiErr   *Error
			fiberErr *fiber.Error
		)
		switch {
		case errors.As(err, &apiErr):
			return c.Status(apiErr.Status).JSON(body{Error: apiErr.Code, Message: apiErr.Message})
		case errors.As(err, &fiberErr):
			return c.Status(fiberErr.Code).JSON(body{Error: statusCode(fiberErr.Code), Message: fiberErr.Message})
		}

		if logger != nil {
			logger.Error("unhandled request error",
				slog.String("method", c.Method()),
				slog.String("path", c.Path()),
				slog.Bool("unit_failure", errors.Is(err, storage.ErrInternal)),
				slog.Any("error", err),
			)
		}
		return c.Status(http.StatusInternalServerError).JSON(body{Error: CodeInternal, Message: "internal failure, the request can be retried"})
	}
}

func statusCode(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return "error"
	}
	return strings.ReplaceAll(strings.ToLower(text), " ", "_")
}

// Classify returns the status and code Handler will render for err.
func Classify(err error) (int, string) {
	var (
		apiErr   *Error
		fiberErr *fiber.Error
	)
	switch {
	case errors.As(err, &apiErr):
		return apiErr.Status, apiErr.Code
	case errors.As(err, &fiberErr):
		return fiberErr.Code, statusCode(fiberErr.Code)
	}
	return http.StatusInternalServerError, CodeInternal
}
