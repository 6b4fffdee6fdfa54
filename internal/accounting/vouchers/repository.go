package vouchers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/gstbooks/internal/accounting/accounts"
	"github.com/odyssey-erp/gstbooks/internal/accounting/bills"
	"github.com/odyssey-erp/gstbooks/internal/accounting/mappings"
	"github.com/odyssey-erp/gstbooks/internal/accounting/numbering"
	"github.com/odyssey-erp/gstbooks/internal/accounting/shared"
	"github.com/odyssey-erp/gstbooks/internal/platform/db"
	internalShared "github.com/odyssey-erp/gstbooks/internal/shared"
)

// TxRepository exposes transactional voucher operations plus the
// collaborators that must share the posting transaction.
type TxRepository interface {
	GetVoucherType(ctx context.Context, id int64) (VoucherType, error)
	GetCompany(ctx context.Context, tenantID int64) (Company, error)
	GetLedger(ctx context.Context, tenantID, id int64) (accounts.Ledger, error)
	TaxLedgers(ctx context.Context, tenantID int64) (mappings.TaxLedgers, error)
	InsertVoucher(ctx context.Context, v Voucher) (Voucher, error)
	ReplaceItems(ctx context.Context, voucherID int64, items []Item) error
	ReplaceEntries(ctx context.Context, tenantID, voucherID int64, entries []Entry) error
	GetVoucher(ctx context.Context, tenantID, id int64, forUpdate bool) (Voucher, error)
	ListVouchers(ctx context.Context, tenantID int64, filter ListFilter) ([]Voucher, error)
	MarkPosted(ctx context.Context, v Voucher) error
	MarkCancelled(ctx context.Context, v Voucher) error
	DeleteVoucher(ctx context.Context, tenantID, id int64) error
	Counter() numbering.Counter
	Bills() bills.TxRepository
	WriteAudit(ctx context.Context, log internalShared.AuditLog) error
}

// Repository persists vouchers.
type Repository struct {
	pool *pgxpool.Pool
	opts db.TxOptions
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool, opts db.TxOptions) *Repository {
	return &Repository{pool: pool, opts: opts}
}

// WithTx executes fn within a read-committed transaction, retried on
// serialization failures and deadlocks.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("vouchers repository not initialised")
	}
	return db.WithTx(ctx, r.pool, r.opts, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

const voucherColumns = `v.id, v.tenant_id, v.voucher_type_id, t.kind, v.voucher_number, v.voucher_date, v.reference_number, v.narration,
v.total_amount, v.status, v.party_ledger_id, v.item_ledger_id, v.place_of_supply, v.due_date, v.bill_refs,
v.reversal_of_id, v.reversed_by_id, v.posted_at, v.posted_by, v.cancelled_at, v.cancelled_by, v.cancel_reason,
v.created_by, v.created_at, v.updated_at`

const itemColumns = `id, voucher_id, line_no, item_name, hsn_sac, quantity, unit, rate, discount, amount, ledger_id, rate_override,
cgst_rate, sgst_rate, igst_rate, cess_rate, cgst_amount, sgst_amount, igst_amount, cess_amount, total_amount`

func scanVoucher(row pgx.Row) (Voucher, error) {
	var v Voucher
	err := row.Scan(&v.ID, &v.TenantID, &v.TypeID, &v.Kind, &v.Number, &v.Date, &v.Reference, &v.Narration,
		&v.Total, &v.Status, &v.PartyLedgerID, &v.ItemLedgerID, &v.PlaceOfSupply, &v.DueDate, &v.BillRefs,
		&v.ReversalOfID, &v.ReversedByID, &v.PostedAt, &v.PostedBy, &v.CancelledAt, &v.CancelledBy, &v.CancelReason,
		&v.CreatedBy, &v.CreatedAt, &v.UpdatedAt)
	return v, err
}

func (r *txRepository) GetVoucherType(ctx context.Context, id int64) (VoucherType, error) {
	var t VoucherType
	err := r.tx.QueryRow(ctx, `SELECT id, code, name, kind, prefix, numbering FROM voucher_types WHERE id=$1`, id).
		Scan(&t.ID, &t.Code, &t.Name, &t.Kind, &t.Prefix, &t.Numbering)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return VoucherType{}, shared.NotFound("voucher_type", id)
		}
		return VoucherType{}, err
	}
	return t, nil
}

func (r *txRepository) GetCompany(ctx context.Context, tenantID int64) (Company, error) {
	var c Company
	err := r.tx.QueryRow(ctx, `SELECT tenant_id, name, gstin, state_code, currency, einvoice_enabled FROM companies WHERE tenant_id=$1`, tenantID).
		Scan(&c.TenantID, &c.Name, &c.GSTIN, &c.StateCode, &c.Currency, &c.EInvoiceEnabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Company{}, shared.NotFound("company", tenantID)
		}
		return Company{}, err
	}
	return c, nil
}

func (r *txRepository) GetLedger(ctx context.Context, tenantID, id int64) (accounts.Ledger, error) {
	return accounts.NewTxRepository(r.tx).GetLedger(ctx, tenantID, id)
}

func (r *txRepository) TaxLedgers(ctx context.Context, tenantID int64) (mappings.TaxLedgers, error) {
	return mappings.Load(ctx, r.tx, tenantID)
}

func (r *txRepository) InsertVoucher(ctx context.Context, v Voucher) (Voucher, error) {
	refs := v.BillRefs
	if refs == nil {
		refs = []bills.Ref{}
	}
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO vouchers (tenant_id, voucher_type_id, voucher_number, voucher_date, reference_number, narration,
total_amount, status, party_ledger_id, item_ledger_id, place_of_supply, due_date, bill_refs, reversal_of_id, posted_at, posted_by, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17) RETURNING id`,
		v.TenantID, v.TypeID, v.Number, v.Date, v.Reference, v.Narration,
		v.Total, v.Status, v.PartyLedgerID, v.ItemLedgerID, v.PlaceOfSupply, v.DueDate, refs, v.ReversalOfID, v.PostedAt, v.PostedBy, v.CreatedBy).
		Scan(&id)
	if err != nil {
		if db.IsUniqueViolation(err, "uq_vouchers_number") {
			return Voucher{}, shared.Validation("duplicate_voucher_number", "voucher number %s already used", v.NumberOrEmpty())
		}
		return Voucher{}, err
	}
	return r.GetVoucher(ctx, v.TenantID, id, false)
}

func (r *txRepository) ReplaceItems(ctx context.Context, voucherID int64, items []Item) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM voucher_items WHERE voucher_id=$1`, voucherID); err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, it := range items {
		batch.Queue(`INSERT INTO voucher_items (voucher_id, line_no, item_name, hsn_sac, quantity, unit, rate, discount, amount, ledger_id, rate_override,
cgst_rate, sgst_rate, igst_rate, cess_rate, cgst_amount, sgst_amount, igst_amount, cess_amount, total_amount)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`,
			voucherID, it.LineNo, it.ItemName, it.HSNSAC, it.Quantity, it.Unit, it.Rate, it.Discount, it.Amount, it.LedgerID, it.RateOverride,
			it.CGSTRate, it.SGSTRate, it.IGSTRate, it.CessRate, it.CGSTAmount, it.SGSTAmount, it.IGSTAmount, it.CessAmount, it.TotalAmount)
	}
	return r.tx.SendBatch(ctx, batch).Close()
}

func (r *txRepository) ReplaceEntries(ctx context.Context, tenantID, voucherID int64, entries []Entry) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM voucher_entries WHERE voucher_id=$1`, voucherID); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`INSERT INTO voucher_entries (tenant_id, voucher_id, ledger_id, debit_amount, credit_amount) VALUES ($1,$2,$3,$4,$5)`,
			tenantID, voucherID, e.LedgerID, e.Debit, e.Credit)
	}
	return r.tx.SendBatch(ctx, batch).Close()
}

func (r *txRepository) GetVoucher(ctx context.Context, tenantID, id int64, forUpdate bool) (Voucher, error) {
	query := `SELECT ` + voucherColumns + ` FROM vouchers v JOIN voucher_types t ON t.id = v.voucher_type_id WHERE v.tenant_id=$1 AND v.id=$2`
	if forUpdate {
		query += ` FOR UPDATE OF v`
	}
	v, err := scanVoucher(r.tx.QueryRow(ctx, query, tenantID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Voucher{}, shared.NotFound("voucher", id)
		}
		return Voucher{}, err
	}
	if v.Items, err = r.items(ctx, v.ID); err != nil {
		return Voucher{}, err
	}
	if v.Entries, err = r.entries(ctx, v.ID); err != nil {
		return Voucher{}, err
	}
	return v, nil
}

func (r *txRepository) items(ctx context.Context, voucherID int64) ([]Item, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+itemColumns+` FROM voucher_items WHERE voucher_id=$1 ORDER BY line_no`, voucherID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.VoucherID, &it.LineNo, &it.ItemName, &it.HSNSAC, &it.Quantity, &it.Unit, &it.Rate, &it.Discount, &it.Amount,
			&it.LedgerID, &it.RateOverride, &it.CGSTRate, &it.SGSTRate, &it.IGSTRate, &it.CessRate,
			&it.CGSTAmount, &it.SGSTAmount, &it.IGSTAmount, &it.CessAmount, &it.TotalAmount); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *txRepository) entries(ctx context.Context, voucherID int64) ([]Entry, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, tenant_id, voucher_id, ledger_id, debit_amount, credit_amount FROM voucher_entries WHERE voucher_id=$1 ORDER BY id`, voucherID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.TenantID, &e.VoucherID, &e.LedgerID, &e.Debit, &e.Credit); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *txRepository) ListVouchers(ctx context.Context, tenantID int64, filter ListFilter) ([]Voucher, error) {
	var (
		conds = []string{"v.tenant_id=$1"}
		args  = []any{tenantID}
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.Kind != "" {
		add("t.kind=$%d", filter.Kind)
	}
	if filter.Status != "" {
		add("v.status=$%d", filter.Status)
	}
	if filter.From != nil {
		add("v.voucher_date >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("v.voucher_date <= $%d", *filter.To)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit)
	query := fmt.Sprintf(`SELECT %s FROM vouchers v JOIN voucher_types t ON t.id = v.voucher_type_id
WHERE %s ORDER BY v.voucher_date DESC, v.id DESC LIMIT $%d`, voucherColumns, strings.Join(conds, " AND "), len(args))
	rows, err := r.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Voucher
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *txRepository) MarkPosted(ctx context.Context, v Voucher) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE vouchers SET status='POSTED', voucher_number=$3, total_amount=$4, posted_at=$5, posted_by=$6,
place_of_supply=$7, due_date=$8, updated_at=NOW()
WHERE tenant_id=$1 AND id=$2 AND status='DRAFT'`, v.TenantID, v.ID, v.Number, v.Total, v.PostedAt, v.PostedBy, v.PlaceOfSupply, v.DueDate)
	if err != nil {
		if db.IsUniqueViolation(err, "uq_vouchers_number") {
			return shared.Validation("duplicate_voucher_number", "voucher number %s already used", v.NumberOrEmpty())
		}
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.InvalidState("voucher_not_draft", "voucher %d is no longer a draft", v.ID)
	}
	return nil
}

func (r *txRepository) MarkCancelled(ctx context.Context, v Voucher) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE vouchers SET status='CANCELLED', cancelled_at=$3, cancelled_by=$4, cancel_reason=$5, reversed_by_id=$6, updated_at=NOW()
WHERE tenant_id=$1 AND id=$2 AND status='POSTED'`, v.TenantID, v.ID, v.CancelledAt, v.CancelledBy, v.CancelReason, v.ReversedByID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.InvalidState("voucher_not_posted", "voucher %d is not posted", v.ID)
	}
	return nil
}

func (r *txRepository) DeleteVoucher(ctx context.Context, tenantID, id int64) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM vouchers WHERE tenant_id=$1 AND id=$2 AND status='DRAFT'`, tenantID, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.InvalidState("voucher_not_draft", "voucher %d is not a draft", id)
	}
	return nil
}

func (r *txRepository) Counter() numbering.Counter {
	return numbering.NewPgCounter(r.tx)
}

func (r *txRepository) Bills() bills.TxRepository {
	return bills.NewTxRepository(r.tx)
}

func (r *txRepository) WriteAudit(ctx context.Context, log internalShared.AuditLog) error {
	return internalShared.WriteAudit(ctx, r.tx, log)
}
