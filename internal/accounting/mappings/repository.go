package mappings

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/gstbooks/internal/accounting/shared"
	"github.com/odyssey-erp/gstbooks/internal/platform/db"
)

// Querier is satisfied by pgx.Tx and *pgxpool.Pool.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Load reads every mapping of the tenant.
func Load(ctx context.Context, q Querier, tenantID int64) (TaxLedgers, error) {
	rows, err := q.Query(ctx, `SELECT key, ledger_id FROM ledger_mappings WHERE tenant_id=$1`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := TaxLedgers{}
	for rows.Next() {
		var key string
		var ledgerID int64
		if err := rows.Scan(&key, &ledgerID); err != nil {
			return nil, err
		}
		out[key] = ledgerID
	}
	return out, rows.Err()
}

// Repository maintains ledger mappings.
type Repository struct {
	pool *pgxpool.Pool
	opts db.TxOptions
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool, opts db.TxOptions) *Repository {
	return &Repository{pool: pool, opts: opts}
}

// List returns the tenant's mappings.
func (r *Repository) List(ctx context.Context, tenantID int64) ([]LedgerMapping, error) {
	rows, err := r.pool.Query(ctx, `SELECT tenant_id, key, ledger_id, created_at, updated_at FROM ledger_mappings WHERE tenant_id=$1 ORDER BY key`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LedgerMapping
	for rows.Next() {
		var m LedgerMapping
		if err := rows.Scan(&m.TenantID, &m.Key, &m.LedgerID, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Set points key at a ledger of the same tenant.
func (r *Repository) Set(ctx context.Context, tenantID int64, key string, ledgerID int64) (LedgerMapping, error) {
	if !ValidKey(key) {
		return LedgerMapping{}, shared.Validation("invalid_mapping_key", "unsupported mapping key %s", key)
	}
	var m LedgerMapping
	err := db.WithTx(ctx, r.pool, r.opts, func(tx pgx.Tx) error {
		var owner int64
		if err := tx.QueryRow(ctx, `SELECT tenant_id FROM ledgers WHERE id=$1 AND tenant_id=$2`, ledgerID, tenantID).Scan(&owner); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return shared.NotFound("ledger", ledgerID)
			}
			return err
		}
		return tx.QueryRow(ctx, `INSERT INTO ledger_mappings (tenant_id, key, ledger_id) VALUES ($1,$2,$3)
ON CONFLICT (tenant_id, key) DO UPDATE SET ledger_id=EXCLUDED.ledger_id, updated_at=NOW()
RETURNING tenant_id, key, ledger_id, created_at, updated_at`, tenantID, key, ledgerID).
			Scan(&m.TenantID, &m.Key, &m.LedgerID, &m.CreatedAt, &m.UpdatedAt)
	})
	return m, err
}
