package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/mobile_money/internal/payments"
)

// RegisterPaymentRoutes wires payment endpoints.
func RegisterPaymentRoutes(r fiber.Router, h *payments.Handler, guards ...fiber.Handler) {
	r.Post("/send-money", chain(guards, h.SendMoney)...)
}
