package bills

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/gstbooks/internal/accounting/shared"
	"github.com/odyssey-erp/gstbooks/internal/platform/db"
)

// TxRepository exposes transactional operations on bills and allocations.
type TxRepository interface {
	InsertBill(ctx context.Context, in OpenBillInput) (Bill, error)
	GetBillForUpdate(ctx context.Context, tenantID, id int64) (Bill, error)
	BillByVoucherForUpdate(ctx context.Context, tenantID, voucherID int64) (*Bill, error)
	CancelBill(ctx context.Context, tenantID, id int64) error
	AllocatedTotal(ctx context.Context, billID int64) (decimal.Decimal, error)
	InsertAllocation(ctx context.Context, a Allocation) (Allocation, error)
	LockOpenBills(ctx context.Context, tenantID, ledgerID int64, direction Direction) ([]Outstanding, error)
	ListOutstanding(ctx context.Context, tenantID int64, ledgerID *int64) ([]Outstanding, error)
	OpenAllocationsByVoucher(ctx context.Context, tenantID, voucherID int64) ([]Allocation, error)
	SettlingVoucher(ctx context.Context, tenantID, voucherID, ledgerID int64) (Settler, error)
	VoucherAllocated(ctx context.Context, tenantID, voucherID, ledgerID int64, direction Direction) (decimal.Decimal, error)
}

// Repository persists bills.
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
		return errors.New("bills repository not initialised")
	}
	return db.WithTx(ctx, r.pool, r.opts, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository wraps an open transaction so the posting engine can
// settle bills in the same commit as the voucher.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

const billColumns = `b.id, b.tenant_id, b.voucher_id, b.ledger_id, b.bill_number, b.bill_date, b.bill_amount, b.direction, b.due_date, b.cancelled_at, b.created_at`

const allocationColumns = `id, tenant_id, bill_id, voucher_id, allocated_amount, allocation_date, reversal_of_id, created_at`

func scanBill(row pgx.Row, extra ...any) (Bill, error) {
	var b Bill
	dest := []any{&b.ID, &b.TenantID, &b.VoucherID, &b.LedgerID, &b.Number, &b.Date, &b.Amount, &b.Direction, &b.DueDate, &b.CancelledAt, &b.CreatedAt}
	err := row.Scan(append(dest, extra...)...)
	return b, err
}

func scanAllocation(row pgx.Row) (Allocation, error) {
	var a Allocation
	err := row.Scan(&a.ID, &a.TenantID, &a.BillID, &a.VoucherID, &a.Amount, &a.Date, &a.ReversalOfID, &a.CreatedAt)
	return a, err
}

func (r *txRepository) InsertBill(ctx context.Context, in OpenBillInput) (Bill, error) {
	b, err := scanBill(r.tx.QueryRow(ctx, `INSERT INTO bill_wise_details AS b (tenant_id, voucher_id, ledger_id, bill_number, bill_date, bill_amount, direction, due_date)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING `+billColumns,
		in.TenantID, in.VoucherID, in.LedgerID, in.Number, in.Date, in.Amount, in.Direction, in.DueDate))
	if err != nil {
		if db.IsUniqueViolation(err, "uq_bill_wise_voucher") {
			return Bill{}, shared.Validation("duplicate_bill", "voucher %d already opened a bill on ledger %d", in.VoucherID, in.LedgerID)
		}
		return Bill{}, err
	}
	return b, nil
}

func (r *txRepository) GetBillForUpdate(ctx context.Context, tenantID, id int64) (Bill, error) {
	b, err := scanBill(r.tx.QueryRow(ctx, `SELECT `+billColumns+` FROM bill_wise_details b WHERE b.tenant_id=$1 AND b.id=$2 FOR UPDATE`, tenantID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Bill{}, shared.NotFound("bill", id)
		}
		return Bill{}, err
	}
	return b, nil
}

func (r *txRepository) BillByVoucherForUpdate(ctx context.Context, tenantID, voucherID int64) (*Bill, error) {
	b, err := scanBill(r.tx.QueryRow(ctx, `SELECT `+billColumns+` FROM bill_wise_details b
WHERE b.tenant_id=$1 AND b.voucher_id=$2 AND b.cancelled_at IS NULL FOR UPDATE`, tenantID, voucherID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}

func (r *txRepository) CancelBill(ctx context.Context, tenantID, id int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE bill_wise_details SET cancelled_at=NOW() WHERE tenant_id=$1 AND id=$2 AND cancelled_at IS NULL`, tenantID, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.NotFound("bill", id)
	}
	return nil
}

func (r *txRepository) AllocatedTotal(ctx context.Context, billID int64) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(allocated_amount), 0) FROM bill_allocations WHERE bill_id=$1`, billID).Scan(&total)
	return total, err
}

func (r *txRepository) InsertAllocation(ctx context.Context, a Allocation) (Allocation, error) {
	return scanAllocation(r.tx.QueryRow(ctx, `INSERT INTO bill_allocations (tenant_id, bill_id, voucher_id, allocated_amount, allocation_date, reversal_of_id)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING `+allocationColumns,
		a.TenantID, a.BillID, a.VoucherID, a.Amount, a.Date, a.ReversalOfID))
}

// LockOpenBills locks the ledger's live bills in id order, which keeps
// concurrent settlements of one party from deadlocking, then attaches totals.
func (r *txRepository) LockOpenBills(ctx context.Context, tenantID, ledgerID int64, direction Direction) ([]Outstanding, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+billColumns+` FROM bill_wise_details b
WHERE b.tenant_id=$1 AND b.ledger_id=$2 AND b.direction=$3 AND b.cancelled_at IS NULL
ORDER BY b.id FOR UPDATE`, tenantID, ledgerID, direction)
	if err != nil {
		return nil, err
	}
	var locked []Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		locked = append(locked, b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(locked) == 0 {
		return nil, nil
	}
	ids := make([]int64, len(locked))
	for i, b := range locked {
		ids[i] = b.ID
	}
	totals, err := r.allocatedTotals(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]Outstanding, 0, len(locked))
	for _, b := range locked {
		o := NewOutstanding(b, totals[b.ID])
		if o.Status == StatusSettled {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (r *txRepository) allocatedTotals(ctx context.Context, ids []int64) (map[int64]decimal.Decimal, error) {
	rows, err := r.tx.Query(ctx, `SELECT bill_id, SUM(allocated_amount) FROM bill_allocations WHERE bill_id = ANY($1) GROUP BY bill_id`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	totals := make(map[int64]decimal.Decimal, len(ids))
	for rows.Next() {
		var id int64
		var sum decimal.Decimal
		if err := rows.Scan(&id, &sum); err != nil {
			return nil, err
		}
		totals[id] = sum
	}
	return totals, rows.Err()
}

func (r *txRepository) ListOutstanding(ctx context.Context, tenantID int64, ledgerID *int64) ([]Outstanding, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+billColumns+`, COALESCE(a.total, 0)
FROM bill_wise_details b
LEFT JOIN (SELECT bill_id, SUM(allocated_amount) AS total FROM bill_allocations GROUP BY bill_id) a ON a.bill_id = b.id
WHERE b.tenant_id=$1 AND ($2::bigint IS NULL OR b.ledger_id=$2) AND b.cancelled_at IS NULL
  AND b.bill_amount - COALESCE(a.total, 0) > $3
ORDER BY b.bill_date, b.id`, tenantID, ledgerID, Tolerance)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Outstanding
	for rows.Next() {
		var allocated decimal.Decimal
		b, err := scanBill(rows, &allocated)
		if err != nil {
			return nil, err
		}
		out = append(out, NewOutstanding(b, allocated))
	}
	return out, rows.Err()
}

// OpenAllocationsByVoucher returns the positive allocations of a voucher that
// have not been reversed yet.
func (r *txRepository) OpenAllocationsByVoucher(ctx context.Context, tenantID, voucherID int64) ([]Allocation, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+allocationColumns+` FROM bill_allocations a
WHERE a.tenant_id=$1 AND a.voucher_id=$2 AND a.reversal_of_id IS NULL
  AND NOT EXISTS (SELECT 1 FROM bill_allocations r WHERE r.reversal_of_id = a.id)
ORDER BY a.bill_id, a.id`, tenantID, voucherID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Allocation
	for rows.Next() {
		a, err := scanAllocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// SettlingVoucher locks the voucher row, so allocations drawing on one
// voucher serialise with each other and with its cancellation, then sums its
// entries on ledgerID.
func (r *txRepository) SettlingVoucher(ctx context.Context, tenantID, voucherID, ledgerID int64) (Settler, error) {
	var s Settler
	err := r.tx.QueryRow(ctx, `SELECT v.status, t.kind, v.reversal_of_id IS NOT NULL
FROM vouchers v JOIN voucher_types t ON t.id = v.voucher_type_id
WHERE v.tenant_id=$1 AND v.id=$2 FOR UPDATE OF v`, tenantID, voucherID).Scan(&s.Status, &s.Kind, &s.Reversal)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Settler{}, shared.NotFound("voucher", voucherID)
		}
		return Settler{}, err
	}
	err = r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(debit_amount), 0), COALESCE(SUM(credit_amount), 0)
FROM voucher_entries WHERE tenant_id=$1 AND voucher_id=$2 AND ledger_id=$3`, tenantID, voucherID, ledgerID).Scan(&s.Debit, &s.Credit)
	if err != nil {
		return Settler{}, err
	}
	return s, nil
}

// VoucherAllocated nets what voucherID has already applied to bills of one
// ledger and direction.
func (r *txRepository) VoucherAllocated(ctx context.Context, tenantID, voucherID, ledgerID int64, direction Direction) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(a.allocated_amount), 0)
FROM bill_allocations a JOIN bill_wise_details b ON b.id = a.bill_id
WHERE a.tenant_id=$1 AND a.voucher_id=$2 AND b.ledger_id=$3 AND b.direction=$4`, tenantID, voucherID, ledgerID, direction).Scan(&total)
	return total, err
}
