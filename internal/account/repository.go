package account

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/congo-pay/mobile_money/internal/storage"
)

var (
	// ErrAccountNotFound is returned when no account has the requested id.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountExists is returned when creating an id that is already taken.
	ErrAccountExists = errors.New("account exists")
	// ErrInsufficientFunds is returned when an adjustment would take a balance below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrAccountBlocked is returned when a blocked account takes part in a money movement.
	ErrAccountBlocked = errors.New("account blocked")
	// ErrInvalidStateTransition is returned for a state change the lifecycle does not allow.
	ErrInvalidStateTransition = errors.New("invalid state transition")
	// ErrInvalidRole is returned for a role that cannot be opened.
	ErrInvalidRole = errors.New("invalid role")
	// ErrSameAccount is returned when both parties of a movement are one account.
	ErrSameAccount = errors.New("cannot move money to the same account")
)

// Store owns every account mutation. Inside a storage unit all calls share
// the unit's isolation and rollback.
type Store interface {
	Create(ctx context.Context, account Account) error
	Get(ctx context.Context, id string) (Account, error)
	// Lock takes the named accounts for the rest of the unit, lowest id first.
	Lock(ctx context.Context, ids ...string) error
	// AdjustBalance applies delta and returns the new balance. It fails with
	// ErrInsufficientFunds, leaving the balance untouched, if the result
	// would be negative.
	AdjustBalance(ctx context.Context, id string, delta decimal.Decimal) (decimal.Decimal, error)
	SetState(ctx context.Context, id string, state State) error
}

// Credit adds amount to the account balance.
func Credit(ctx context.Context, s Store, id string, amount decimal.Decimal) (decimal.Decimal, error) {
	return s.AdjustBalance(ctx, id, amount)
}

// Debit removes amount from the account balance.
func Debit(ctx context.Context, s Store, id string, amount decimal.Decimal) (decimal.Decimal, error) {
	return s.AdjustBalance(ctx, id, amount.Neg())
}

// GetBalance returns the current balance of the account.
func GetBalance(ctx context.Context, s Store, id string) (decimal.Decimal, error) {
	acc, err := s.Get(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return acc.Balance, nil
}

// PostgresStore keeps accounts in the accounts table.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore builds a Store backed by PostgreSQL.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create inserts a new account row.
func (s *PostgresStore) Create(ctx context.Context, account Account) error {
	cmd, err := storage.Conn(ctx, s.db).Exec(ctx, `INSERT INTO accounts (id, role, state, balance, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $5) ON CONFLICT (id) DO NOTHING`,
		account.ID, string(account.Role), string(account.State), account.Balance, account.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountExists
	}
	return nil
}

// Get fetches an account by id.
func (s *PostgresStore) Get(ctx context.Context, id string) (Account, error) {
	row := storage.Conn(ctx, s.db).QueryRow(ctx, `SELECT id, role, state, balance, created_at, updated_at
        FROM accounts WHERE id = $1`, id)
	var (
		a     Account
		role  string
		state string
	)
	if err := row.Scan(&a.ID, &role, &state, &a.Balance, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, fmt.Errorf("select account: %w", err)
	}
	a.Role = Role(role)
	a.State = State(state)
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return a, nil
}

// Lock row-locks the accounts in ascending id order.
func (s *PostgresStore) Lock(ctx context.Context, ids ...string) error {
	sorted := sortedUnique(ids)
	rows, err := storage.Conn(ctx, s.db).Query(ctx, `SELECT id FROM accounts WHERE id = ANY($1) ORDER BY id FOR UPDATE`, sorted)
	if err != nil {
		return fmt.Errorf("%w: lock accounts: %v", storage.ErrInternal, err)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: lock accounts: %v", storage.ErrInternal, err)
	}
	return nil
}

// AdjustBalance applies delta in a single guarded UPDATE.
func (s *PostgresStore) AdjustBalance(ctx context.Context, id string, delta decimal.Decimal) (decimal.Decimal, error) {
	q := storage.Conn(ctx, s.db)
	var balance decimal.Decimal
	err := q.QueryRow(ctx, `UPDATE accounts SET balance = balance + $2, updated_at = now()
        WHERE id = $1 AND balance + $2 >= 0 RETURNING balance`, id, delta).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("adjust balance: %w", err)
	}

	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, id).Scan(&exists); err != nil {
		return decimal.Zero, fmt.Errorf("adjust balance: %w", err)
	}
	if !exists {
		return decimal.Zero, ErrAccountNotFound
	}
	return decimal.Zero, ErrInsufficientFunds
}

// SetState stores a new activation state.
func (s *PostgresStore) SetState(ctx context.Context, id string, state State) error {
	cmd, err := storage.Conn(ctx, s.db).Exec(ctx, `UPDATE accounts SET state = $2, updated_at = now() WHERE id = $1`, id, string(state))
	if err != nil {
		return fmt.Errorf("update state: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func sortedUnique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
