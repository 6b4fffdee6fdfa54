package accounts

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/gstbooks/internal/accounting/shared"
	"github.com/odyssey-erp/gstbooks/internal/platform/db"
)

// hierarchyLockClass namespaces the advisory lock serialising re-parenting per tenant.
const hierarchyLockClass = 7301

// TxRepository exposes transactional operations on groups and ledgers.
type TxRepository interface {
	LockHierarchy(ctx context.Context, tenantID int64) error
	GetGroup(ctx context.Context, tenantID, id int64) (Group, error)
	ListGroups(ctx context.Context, tenantID int64) ([]Group, error)
	InsertGroup(ctx context.Context, tenantID int64, in GroupInput) (Group, error)
	UpdateGroupParent(ctx context.Context, tenantID, id int64, parentID *int64, typ *GroupType) error
	CountGroupDependents(ctx context.Context, tenantID, id int64) (int, error)
	DeleteGroup(ctx context.Context, tenantID, id int64) error
	InsertLedger(ctx context.Context, tenantID int64, in LedgerInput) (Ledger, error)
	GetLedger(ctx context.Context, tenantID, id int64) (Ledger, error)
	ListLedgers(ctx context.Context, tenantID int64) ([]Ledger, error)
}

// Repository persists groups and ledgers.
type Repository struct {
	pool *pgxpool.Pool
	opts db.TxOptions
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool, opts db.TxOptions) *Repository {
	return &Repository{pool: pool, opts: opts}
}

// WithTx executes fn within a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("accounts repository not initialised")
	}
	return db.WithTx(ctx, r.pool, r.opts, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository wraps an open transaction, letting other packages reuse
// group and ledger lookups inside their own transactions.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

const groupColumns = `id, tenant_id, code, name, parent_id, type, schedule_iii, is_system, created_at, updated_at`

const ledgerColumns = `id, tenant_id, group_id, code, name, opening_balance, opening_side, gstin, pan, address, state_code, bill_wise, credit_days, is_active, created_at, updated_at`

func scanGroup(row pgx.Row) (Group, error) {
	var g Group
	err := row.Scan(&g.ID, &g.TenantID, &g.Code, &g.Name, &g.ParentID, &g.Type, &g.ScheduleIII, &g.IsSystem, &g.CreatedAt, &g.UpdatedAt)
	return g, err
}

// ScanLedger scans a row selected with the ledger column list.
func ScanLedger(row pgx.Row) (Ledger, error) {
	var l Ledger
	err := row.Scan(&l.ID, &l.TenantID, &l.GroupID, &l.Code, &l.Name, &l.OpeningBalance, &l.OpeningSide, &l.GSTIN, &l.PAN, &l.Address, &l.StateCode, &l.BillWise, &l.CreditDays, &l.IsActive, &l.CreatedAt, &l.UpdatedAt)
	return l, err
}

func (r *txRepository) LockHierarchy(ctx context.Context, tenantID int64) error {
	_, err := r.tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1, $2::int)`, hierarchyLockClass, tenantID)
	return err
}

func (r *txRepository) GetGroup(ctx context.Context, tenantID, id int64) (Group, error) {
	g, err := scanGroup(r.tx.QueryRow(ctx, `SELECT `+groupColumns+` FROM account_groups WHERE tenant_id=$1 AND id=$2`, tenantID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Group{}, shared.NotFound("group", id)
		}
		return Group{}, err
	}
	return g, nil
}

func (r *txRepository) ListGroups(ctx context.Context, tenantID int64) ([]Group, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+groupColumns+` FROM account_groups WHERE tenant_id=$1 ORDER BY code`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var groups []Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (r *txRepository) InsertGroup(ctx context.Context, tenantID int64, in GroupInput) (Group, error) {
	g, err := scanGroup(r.tx.QueryRow(ctx, `INSERT INTO account_groups (tenant_id, code, name, parent_id, type, schedule_iii)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING `+groupColumns, tenantID, in.Code, in.Name, in.ParentID, in.Type, in.ScheduleIII))
	if err != nil {
		if db.IsUniqueViolation(err, "uq_account_groups_code") {
			return Group{}, shared.Validation("duplicate_code", "group code %s already exists", in.Code)
		}
		return Group{}, err
	}
	return g, nil
}

func (r *txRepository) UpdateGroupParent(ctx context.Context, tenantID, id int64, parentID *int64, typ *GroupType) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE account_groups SET parent_id=$3, type=$4, updated_at=NOW() WHERE tenant_id=$1 AND id=$2`, tenantID, id, parentID, typ)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.NotFound("group", id)
	}
	return nil
}

func (r *txRepository) CountGroupDependents(ctx context.Context, tenantID, id int64) (int, error) {
	var count int
	err := r.tx.QueryRow(ctx, `SELECT
  (SELECT COUNT(*) FROM account_groups WHERE tenant_id=$1 AND parent_id=$2) +
  (SELECT COUNT(*) FROM ledgers WHERE tenant_id=$1 AND group_id=$2)`, tenantID, id).Scan(&count)
	return count, err
}

func (r *txRepository) DeleteGroup(ctx context.Context, tenantID, id int64) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM account_groups WHERE tenant_id=$1 AND id=$2`, tenantID, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.NotFound("group", id)
	}
	return nil
}

func (r *txRepository) InsertLedger(ctx context.Context, tenantID int64, in LedgerInput) (Ledger, error) {
	l, err := ScanLedger(r.tx.QueryRow(ctx, `INSERT INTO ledgers (tenant_id, group_id, code, name, opening_balance, opening_side, gstin, pan, address, state_code, bill_wise, credit_days)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12) RETURNING `+ledgerColumns,
		tenantID, in.GroupID, in.Code, in.Name, in.OpeningBalance, in.OpeningSide, in.GSTIN, in.PAN, in.Address, in.StateCode, in.BillWise, in.CreditDays))
	if err != nil {
		if db.IsUniqueViolation(err, "uq_ledgers_code") {
			return Ledger{}, shared.Validation("duplicate_code", "ledger code %s already exists", in.Code)
		}
		return Ledger{}, err
	}
	return l, nil
}

func (r *txRepository) GetLedger(ctx context.Context, tenantID, id int64) (Ledger, error) {
	l, err := ScanLedger(r.tx.QueryRow(ctx, `SELECT `+ledgerColumns+` FROM ledgers WHERE tenant_id=$1 AND id=$2`, tenantID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Ledger{}, shared.NotFound("ledger", id)
		}
		return Ledger{}, err
	}
	return l, nil
}

func (r *txRepository) ListLedgers(ctx context.Context, tenantID int64) ([]Ledger, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+ledgerColumns+` FROM ledgers WHERE tenant_id=$1 ORDER BY code`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ledgers []Ledger
	for rows.Next() {
		l, err := ScanLedger(rows)
		if err != nil {
			return nil, err
		}
		ledgers = append(ledgers, l)
	}
	return ledgers, rows.Err()
}
