package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/congo-pay/mobile_money/internal/storage"
)

const uniqueViolation = "23505"

const selectColumns = `SELECT id, kind, user_id, counterparty_id, amount, fee, status, created_at, settled_at FROM transactions`

// PostgresLedger persists transaction records in PostgreSQL.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// Record inserts a new transaction row.
func (l *PostgresLedger) Record(ctx context.Context, tx Transaction) error {
	id, err := uuid.Parse(tx.ID)
	if err != nil {
		return fmt.Errorf("transaction id: %w", err)
	}
	_, err = storage.Conn(ctx, l.db).Exec(ctx, `INSERT INTO transactions
        (id, kind, user_id, counterparty_id, amount, fee, status, created_at, settled_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, string(tx.Kind), tx.UserID, tx.CounterpartyID, tx.Amount, tx.Fee, string(tx.Status), tx.CreatedAt.UTC(), tx.SettledAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateTransaction
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// Get fetches a transaction by id.
func (l *PostgresLedger) Get(ctx context.Context, id string) (Transaction, error) {
	return l.get(ctx, id, "")
}

// GetForUpdate fetches a transaction and row-locks it.
func (l *PostgresLedger) GetForUpdate(ctx context.Context, id string) (Transaction, error) {
	return l.get(ctx, id, " FOR UPDATE")
}

func (l *PostgresLedger) get(ctx context.Context, id, suffix string) (Transaction, error) {
	txID, err := uuid.Parse(id)
	if err != nil {
		return Transaction{}, ErrTransactionNotFound
	}
	row := storage.Conn(ctx, l.db).QueryRow(ctx, selectColumns+` WHERE id = $1`+suffix, txID)
	tx, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrTransactionNotFound
		}
		return Transaction{}, fmt.Errorf("select transaction: %w", err)
	}
	return tx, nil
}

// Transition moves a pending transaction to a terminal status.
func (l *PostgresLedger) Transition(ctx context.Context, id string, to Status, at time.Time) (Transaction, error) {
	if !StatusPending.CanTransitionTo(to) {
		return Transaction{}, ErrAlreadyProcessed
	}
	txID, err := uuid.Parse(id)
	if err != nil {
		return Transaction{}, ErrTransactionNotFound
	}
	row := storage.Conn(ctx, l.db).QueryRow(ctx, `UPDATE transactions SET status = $2, settled_at = $3
        WHERE id = $1 AND status = $4
        RETURNING id, kind, user_id, counterparty_id, amount, fee, status, created_at, settled_at`,
		txID, string(to), at.UTC(), string(StatusPending))
	tx, err := scanTransaction(row)
	if err == nil {
		return tx, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	if _, getErr := l.Get(ctx, id); getErr != nil {
		return Transaction{}, getErr
	}
	return Transaction{}, ErrAlreadyProcessed
}

// Query lists transactions of one account, most recent first.
func (l *PostgresLedger) Query(ctx context.Context, q Query) ([]Transaction, error) {
	var (
		where []string
		args  []any
	)
	args = append(args, q.AccountID)
	switch q.Side {
	case SideUser:
		where = append(where, "user_id = $1")
	case SideCounterparty:
		where = append(where, "counterparty_id = $1")
	default:
		where = append(where, "(user_id = $1 OR counterparty_id = $1)")
	}
	if q.Kind != "" {
		args = append(args, string(q.Kind))
		where = append(where, fmt.Sprintf("kind = $%d", len(args)))
	}
	if q.Status != "" {
		args = append(args, string(q.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	sql := selectColumns + " WHERE " + strings.Join(where, " AND ") + " ORDER BY created_at DESC, id DESC"
	if q.Limit > 0 {
		args = append(args, q.Limit)
		sql += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := storage.Conn(ctx, l.db).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	out := make([]Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var (
		tx     Transaction
		id     uuid.UUID
		kind   string
		status string
	)
	if err := row.Scan(&id, &kind, &tx.UserID, &tx.CounterpartyID, &tx.Amount, &tx.Fee, &status, &tx.CreatedAt, &tx.SettledAt); err != nil {
		return Transaction{}, err
	}
	tx.ID = id.String()
	tx.Kind = Kind(kind)
	tx.Status = Status(status)
	tx.CreatedAt = tx.CreatedAt.UTC()
	if tx.SettledAt != nil {
		settled := tx.SettledAt.UTC()
		tx.SettledAt = &settled
	}
	return tx, nil
}
