package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/mobile_money/internal/account"
	"github.com/congo-pay/mobile_money/internal/ledger"
)

// RegisterLedgerRoutes wires transaction history endpoints.
func RegisterLedgerRoutes(r fiber.Router, h *ledger.Handler) {
	r.Get("/transactions", h.Transactions)
}

// RegisterAccountRoutes wires account read endpoints.
func RegisterAccountRoutes(r fiber.Router, h *account.Handler) {
	r.Get("/balance", h.Balance)
}
