package payments

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/congo-pay/mobile_money/internal/account"
	"github.com/congo-pay/mobile_money/internal/apierr"
	"github.com/congo-pay/mobile_money/internal/fee"
	"github.com/congo-pay/mobile_money/internal/ledger"
	"github.com/congo-pay/mobile_money/internal/money"
)

// Handler exposes payment endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a payment handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type transferRequest struct {
	Recipient string          `json:"recipient"`
	Amount    decimal.Decimal `json:"amount"`
}

// SendMoney transfers funds from the caller to the recipient.
func (h *Handler) SendMoney(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return apierr.New(http.StatusBadRequest, "invalid_request", err)
	}
	uid, _ := c.Locals("user_id").(string)

	tx, err := h.service.Transfer(c.UserContext(), TransferInput{
		SenderID:    uid,
		RecipientID: req.Recipient,
		Amount:      req.Amount,
	})
	if err != nil {
		return mapError(err)
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"message":     "transfer completed",
		"transaction": ledger.ToResponse(tx),
	})
}

func mapError(err error) error {
	switch {
	case errors.Is(err, fee.ErrBelowMinimum):
		return apierr.New(http.StatusBadRequest, "below_minimum", err)
	case errors.Is(err, money.ErrInvalidAmount):
		return apierr.New(http.StatusBadRequest, "invalid_amount", err)
	case errors.Is(err, account.ErrSameAccount):
		return apierr.New(http.StatusBadRequest, "same_account", err)
	case errors.Is(err, account.ErrInsufficientFunds):
		return apierr.New(http.StatusBadRequest, "insufficient_funds", err)
	case errors.Is(err, ErrRecipientNotFound):
		return apierr.New(http.StatusBadRequest, "recipient_not_found", err)
	case errors.Is(err, account.ErrAccountNotFound):
		return apierr.New(http.StatusNotFound, "account_not_found", err)
	case errors.Is(err, account.ErrAccountBlocked):
		return apierr.New(http.StatusBadRequest, "account_blocked", err)
	default:
		return err
	}
}
