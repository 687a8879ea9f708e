package settlement

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/mobile_money/internal/account"
	"github.com/congo-pay/mobile_money/internal/apierr"
	"github.com/congo-pay/mobile_money/internal/ledger"
)

// Handler exposes the agent settlement endpoint.
type Handler struct {
	service *Service
}

// NewHandler constructs a settlement handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type settleRequest struct {
	Approve *bool `json:"approve"`
}

// Approve applies the calling agent's decision on a pending transaction.
func (h *Handler) Approve(c *fiber.Ctx) error {
	if role, _ := c.Locals("role").(string); role != string(account.RoleAgent) {
		return apierr.New(http.StatusForbidden, "not_agent", ErrNotAuthorized)
	}
	var req settleRequest
	if err := c.BodyParser(&req); err != nil {
		return apierr.New(http.StatusBadRequest, "invalid_request", err)
	}
	if req.Approve == nil {
		return apierr.New(http.StatusBadRequest, "invalid_request", errors.New("approve is required"))
	}
	uid, _ := c.Locals("user_id").(string)

	tx, err := h.service.Settle(c.UserContext(), SettleInput{
		TransactionID: c.Params("id"),
		AgentID:       uid,
		Approve:       *req.Approve,
	})
	if err != nil {
		return mapError(err)
	}

	message := "transaction rejected"
	if tx.Status == ledger.StatusApproved {
		message = "transaction approved"
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message":     message,
		"transaction": ledger.ToResponse(tx),
	})
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotAuthorized):
		return apierr.New(http.StatusForbidden, "not_authorized", err)
	case errors.Is(err, ledger.ErrTransactionNotFound):
		return apierr.New(http.StatusBadRequest, "not_found", err)
	case errors.Is(err, ledger.ErrAlreadyProcessed):
		return apierr.New(http.StatusBadRequest, "already_processed", err)
	case errors.Is(err, account.ErrInsufficientFunds):
		return apierr.New(http.StatusBadRequest, "insufficient_funds", err)
	case errors.Is(err, account.ErrAccountBlocked):
		return apierr.New(http.StatusBadRequest, "account_blocked", err)
	default:
		return err
	}
}
