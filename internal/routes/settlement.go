package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/mobile_money/internal/settlement"
)

// RegisterSettlementRoutes wires the agent approval endpoint.
func RegisterSettlementRoutes(r fiber.Router, h *settlement.Handler, guards ...fiber.Handler) {
	r.Patch("/approve-transaction/:id", chain(guards, h.Approve)...)
}
