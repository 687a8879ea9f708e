package funding

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/mobile_money/internal/account"
	"github.com/congo-pay/mobile_money/internal/apierr"
	"github.com/congo-pay/mobile_money/internal/ledger"
	"github.com/congo-pay/mobile_money/internal/money"
)

// Handler exposes HTTP endpoints for agent cash requests.
type Handler struct {
	service *Service
}

// NewHandler constructs a funding handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// CashIn queues a cash deposit with an agent.
func (h *Handler) CashIn(c *fiber.Ctx) error {
	var req CashRequest
	if err := c.BodyParser(&req); err != nil {
		return apierr.New(http.StatusBadRequest, "invalid_request", err)
	}
	uid, _ := c.Locals("user_id").(string)

	tx, err := h.service.RequestCashIn(c.UserContext(), CashInput{UserID: uid, AgentID: req.AgentID, Amount: req.Amount})
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(CashResponse{
		Message:     "cash-in request pending agent approval",
		Transaction: ledger.ToResponse(tx),
	})
}

// CashOut queues a cash withdrawal with an agent.
func (h *Handler) CashOut(c *fiber.Ctx) error {
	var req CashRequest
	if err := c.BodyParser(&req); err != nil {
		return apierr.New(http.StatusBadRequest, "invalid_request", err)
	}
	uid, _ := c.Locals("user_id").(string)

	tx, err := h.service.RequestCashOut(c.UserContext(), CashInput{UserID: uid, AgentID: req.AgentID, Amount: req.Amount})
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(CashResponse{
		Message:     "cash-out request pending agent approval",
		Transaction: ledger.ToResponse(tx),
	})
}

// Pending lists the calling agent's pending requests.
func (h *Handler) Pending(c *fiber.Ctx) error {
	if role, _ := c.Locals("role").(string); role != string(account.RoleAgent) {
		return apierr.New(http.StatusForbidden, "not_agent", ErrNotAgent)
	}
	uid, _ := c.Locals("user_id").(string)

	txs, err := h.service.Pending(c.UserContext(), uid)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(ledger.ToResponses(txs))
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotAgent):
		return apierr.New(http.StatusForbidden, "not_agent", err)
	case errors.Is(err, ErrUserNotFound):
		return apierr.New(http.StatusBadRequest, "user_not_found", err)
	case errors.Is(err, ErrAgentNotFound):
		return apierr.New(http.StatusBadRequest, "agent_not_found", err)
	case errors.Is(err, account.ErrInsufficientFunds):
		return apierr.New(http.StatusBadRequest, "insufficient_funds", err)
	case errors.Is(err, account.ErrAccountBlocked):
		return apierr.New(http.StatusBadRequest, "account_blocked", err)
	case errors.Is(err, account.ErrSameAccount):
		return apierr.New(http.StatusBadRequest, "same_account", err)
	case errors.Is(err, money.ErrInvalidAmount):
		return apierr.New(http.StatusBadRequest, "invalid_amount", err)
	default:
		return err
	}
}
