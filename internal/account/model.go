package account

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role is the closed set of account roles.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
	// RoleSystem is held only by platform-owned accounts such as the fee account.
	RoleSystem Role = "system"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAgent, RoleSystem:
		return true
	}
	return false
}

// State is the activation state of an account.
type State string

const (
	StatePending  State = "pending"
	StateApproved State = "approved"
	StateActive   State = "active"
	StateBlocked  State = "blocked"
)

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	switch s {
	case StatePending, StateApproved, StateActive, StateBlocked:
		return true
	}
	return false
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s State) CanTransitionTo(next State) bool {
	switch s {
	case StatePending:
		return next == StateApproved || next == StateBlocked
	case StateApproved:
		return next == StateActive || next == StateBlocked
	case StateActive:
		return next == StateBlocked
	case StateBlocked:
		return next == StateActive
	}
	return false
}

// Account is a balance holder.
type Account struct {
	ID        string
	Role      Role
	State     State
	Balance   decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Blocked reports whether the account is barred from moving money.
func (a Account) Blocked() bool {
	return a.State == StateBlocked
}

// Balance is a point-in-time balance read for display.
type Balance struct {
	AccountID string
	Amount    decimal.Decimal
	AsOf      time.Time
}
