package funding

import (
	"github.com/shopspring/decimal"

	"github.com/congo-pay/mobile_money/internal/ledger"
)

// CashRequest is the body of a cash-in or cash-out request.
type CashRequest struct {
	AgentID string          `json:"agentId"`
	Amount  decimal.Decimal `json:"amount"`
}

// CashResponse is returned once a request is queued for the agent.
type CashResponse struct {
	Message     string          `json:"message"`
	Transaction ledger.Response `json:"transaction"`
}
