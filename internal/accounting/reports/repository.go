package reports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/gstbooks/internal/accounting/accounts"
)

// ReadRepository exposes the read-only queries reports need.
type ReadRepository interface {
	GetLedger(ctx context.Context, tenantID, id int64) (accounts.Ledger, error)
	ListLedgers(ctx context.Context, tenantID int64) ([]accounts.Ledger, error)
	ListGroups(ctx context.Context, tenantID int64) ([]accounts.Group, error)
	Movement(ctx context.Context, tenantID, ledgerID int64, asOf time.Time) (Movement, error)
	Movements(ctx context.Context, tenantID int64, from *time.Time, to time.Time) (map[int64]Movement, error)
}

// RepositoryPort hands out a consistent read view.
type RepositoryPort interface {
	View(ctx context.Context, fn func(context.Context, ReadRepository) error) error
}

// Repository reads balances from Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// View runs fn inside a read-only repeatable read transaction so every query
// of one report sees the same snapshot. No rows are locked.
func (r *Repository) View(ctx context.Context, fn func(context.Context, ReadRepository) error) error {
	if r == nil || r.pool == nil {
		return errors.New("reports repository not initialised")
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return fmt.Errorf("reports: begin read tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	return fn(ctx, &readRepository{TxRepository: accounts.NewTxRepository(tx), tx: tx})
}

type readRepository struct {
	accounts.TxRepository
	tx pgx.Tx
}

// Entries count while their voucher is POSTED or CANCELLED: a cancelled
// voucher keeps its entries and its reversal nets them out.
const movementFilter = `v.status IN ('POSTED','CANCELLED') AND v.voucher_date <= $2`

func (r *readRepository) Movement(ctx context.Context, tenantID, ledgerID int64, asOf time.Time) (Movement, error) {
	var m Movement
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(e.debit_amount),0), COALESCE(SUM(e.credit_amount),0)
FROM voucher_entries e JOIN vouchers v ON v.id = e.voucher_id
WHERE e.tenant_id=$1 AND `+movementFilter+` AND e.ledger_id=$3`, tenantID, asOf, ledgerID).Scan(&m.Debit, &m.Credit)
	return m, err
}

func (r *readRepository) Movements(ctx context.Context, tenantID int64, from *time.Time, to time.Time) (map[int64]Movement, error) {
	rows, err := r.tx.Query(ctx, `SELECT e.ledger_id, SUM(e.debit_amount), SUM(e.credit_amount)
FROM voucher_entries e JOIN vouchers v ON v.id = e.voucher_id
WHERE e.tenant_id=$1 AND `+movementFilter+` AND ($3::date IS NULL OR v.voucher_date >= $3)
GROUP BY e.ledger_id`, tenantID, to, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[int64]Movement{}
	for rows.Next() {
		var (
			ledgerID      int64
			debit, credit decimal.Decimal
		)
		if err := rows.Scan(&ledgerID, &debit, &credit); err != nil {
			return nil, err
		}
		out[ledgerID] = Movement{Debit: debit, Credit: credit}
	}
	return out, rows.Err()
}
