package ledger

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/congo-pay/mobile_money/internal/apierr"
)

// HistoryLimit caps the caller's transaction history.
const HistoryLimit = 10

// Response is the wire form of a transaction.
type Response struct {
	ID             string          `json:"id"`
	Kind           Kind            `json:"kind"`
	UserID         string          `json:"user_id"`
	CounterpartyID string          `json:"counterparty_id"`
	Amount         decimal.Decimal `json:"amount"`
	Fee            decimal.Decimal `json:"fee"`
	Status         Status          `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	SettledAt      *time.Time      `json:"settled_at,omitempty"`
}

// ToResponse converts a transaction to its wire form.
func ToResponse(tx Transaction) Response {
	return Response{
		ID:             tx.ID,
		Kind:           tx.Kind,
		UserID:         tx.UserID,
		CounterpartyID: tx.CounterpartyID,
		Amount:         tx.Amount,
		Fee:            tx.Fee,
		Status:         tx.Status,
		CreatedAt:      tx.CreatedAt,
		SettledAt:      tx.SettledAt,
	}
}

// ToResponses converts a list of transactions.
func ToResponses(txs []Transaction) []Response {
	out := make([]Response, 0, len(txs))
	for _, tx := range txs {
		out = append(out, ToResponse(tx))
	}
	return out
}

// Handler exposes transaction history endpoints.
type Handler struct {
	ledger Ledger
}

// NewHandler constructs a ledger handler.
func NewHandler(ledger Ledger) *Handler {
	return &Handler{ledger: ledger}
}

// Transactions lists the caller's most recent transactions.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	kind := Kind(c.Query("kind"))
	if kind != "" && !kind.Valid() {
		return apierr.New(http.StatusBadRequest, "invalid_kind", fmt.Errorf("unknown transaction kind %q", kind))
	}

	txs, err := h.ledger.Query(c.UserContext(), Query{AccountID: uid, Kind: kind, Limit: HistoryLimit})
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(ToResponses(txs))
}
