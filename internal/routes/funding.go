package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/mobile_money/internal/funding"
)

// RegisterFundingRoutes wires agent cash request endpoints.
func RegisterFundingRoutes(r fiber.Router, h *funding.Handler, guards ...fiber.Handler) {
	r.Post("/cash-in", chain(guards, h.CashIn)...)
	r.Post("/cash-out", chain(guards, h.CashOut)...)
	r.Get("/pending-transactions", h.Pending)
}
