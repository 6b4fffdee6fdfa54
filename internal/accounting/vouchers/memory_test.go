package vouchers_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/odyssey-erp/gstbooks/internal/accounting/accounts"
	"github.com/odyssey-erp/gstbooks/internal/accounting/bills"
	"github.com/odyssey-erp/gstbooks/internal/accounting/bills/billstest"
	"github.com/odyssey-erp/gstbooks/internal/accounting/mappings"
	"github.com/odyssey-erp/gstbooks/internal/accounting/numbering"
	"github.com/odyssey-erp/gstbooks/internal/accounting/shared"
	"github.com/odyssey-erp/gstbooks/internal/accounting/vouchers"
	internalShared "github.com/odyssey-erp/gstbooks/internal/shared"
)

type seqKey struct {
	tenantID int64
	typeID   int64
}

// memoryRepo is an in-memory vouchers.TxRepository. WithTx serialises callers
// and rolls every table back, bills included, when fn fails.
type memoryRepo struct {
	mu       sync.Mutex
	types    map[int64]vouchers.VoucherType
	company  vouchers.Company
	ledgers  map[int64]accounts.Ledger
	tax      mappings.TaxLedgers
	vouchers map[int64]vouchers.Voucher
	seq      map[seqKey]int64
	audits   []internalShared.AuditLog
	nextID   int64
	bills    *billstest.Store
}

func newMemoryRepo() *memoryRepo {
	r := &memoryRepo{
		types:    map[int64]vouchers.VoucherType{},
		ledgers:  map[int64]accounts.Ledger{},
		tax:      mappings.TaxLedgers{},
		vouchers: map[int64]vouchers.Voucher{},
		seq:      map[seqKey]int64{},
	}
	r.bills = billstest.NewStore(func(tenantID, voucherID, ledgerID int64) (bills.Settler, bool) {
		v, ok := r.vouchers[voucherID]
		if !ok || v.TenantID != tenantID {
			return bills.Settler{}, false
		}
		s := bills.Settler{Status: string(v.Status), Kind: string(r.types[v.TypeID].Kind), Reversal: v.ReversalOfID != nil}
		for _, e := range v.Entries {
			if e.LedgerID == ledgerID {
				s.Debit = s.Debit.Add(e.Debit)
				s.Credit = s.Credit.Add(e.Credit)
			}
		}
		return s, true
	})
	return r
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, vouchers.TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	saved := r.snapshot()
	restoreBills := r.bills.Snapshot()
	if err := fn(ctx, r); err != nil {
		saved()
		restoreBills()
		return err
	}
	return nil
}

func (r *memoryRepo) snapshot() func() {
	vs := make(map[int64]vouchers.Voucher, len(r.vouchers))
	for k, v := range r.vouchers {
		vs[k] = v
	}
	seq := make(map[seqKey]int64, len(r.seq))
	for k, v := range r.seq {
		seq[k] = v
	}
	audits := len(r.audits)
	nextID := r.nextID
	return func() {
		r.vouchers = vs
		r.seq = seq
		r.audits = r.audits[:audits]
		r.nextID = nextID
	}
}

func (r *memoryRepo) GetVoucherType(ctx context.Context, id int64) (vouchers.VoucherType, error) {
	t, ok := r.types[id]
	if !ok {
		return vouchers.VoucherType{}, shared.NotFound("voucher_type", id)
	}
	return t, nil
}

func (r *memoryRepo) GetCompany(ctx context.Context, tenantID int64) (vouchers.Company, error) {
	if r.company.TenantID != tenantID {
		return vouchers.Company{}, shared.NotFound("company", tenantID)
	}
	return r.company, nil
}

func (r *memoryRepo) GetLedger(ctx context.Context, tenantID, id int64) (accounts.Ledger, error) {
	l, ok := r.ledgers[id]
	if !ok || l.TenantID != tenantID {
		return accounts.Ledger{}, shared.NotFound("ledger", id)
	}
	return l, nil
}

func (r *memoryRepo) TaxLedgers(ctx context.Context, tenantID int64) (mappings.TaxLedgers, error) {
	return r.tax, nil
}

func (r *memoryRepo) InsertVoucher(ctx context.Context, v vouchers.Voucher) (vouchers.Voucher, error) {
	if v.Number != nil {
		for _, existing := range r.vouchers {
			if existing.TenantID == v.TenantID && existing.TypeID == v.TypeID && existing.Number != nil && *existing.Number == *v.Number {
				return vouchers.Voucher{}, shared.Validation("duplicate_voucher_number", "voucher number %s already used", *v.Number)
			}
		}
	}
	r.nextID++
	v.ID = r.nextID
	v.CreatedAt = time.Now()
	v.UpdatedAt = v.CreatedAt
	v.Items, v.Entries = nil, nil
	r.vouchers[v.ID] = v
	return r.GetVoucher(ctx, v.TenantID, v.ID, false)
}

func (r *memoryRepo) ReplaceItems(ctx context.Context, voucherID int64, items []vouchers.Item) error {
	v := r.vouchers[voucherID]
	v.Items = make([]vouchers.Item, len(items))
	for i, it := range items {
		r.nextID++
		it.ID = r.nextID
		it.VoucherID = voucherID
		v.Items[i] = it
	}
	r.vouchers[voucherID] = v
	return nil
}

func (r *memoryRepo) ReplaceEntries(ctx context.Context, tenantID, voucherID int64, entries []vouchers.Entry) error {
	v := r.vouchers[voucherID]
	v.Entries = make([]vouchers.Entry, len(entries))
	for i, e := range entries {
		r.nextID++
		e.ID = r.nextID
		e.TenantID = tenantID
		e.VoucherID = voucherID
		v.Entries[i] = e
	}
	r.vouchers[voucherID] = v
	return nil
}

func (r *memoryRepo) GetVoucher(ctx context.Context, tenantID, id int64, forUpdate bool) (vouchers.Voucher, error) {
	v, ok := r.vouchers[id]
	if !ok || v.TenantID != tenantID {
		return vouchers.Voucher{}, shared.NotFound("voucher", id)
	}
	v.Kind = r.types[v.TypeID].Kind
	v.Items = append([]vouchers.Item(nil), v.Items...)
	v.Entries = append([]vouchers.Entry(nil), v.Entries...)
	return v, nil
}

func (r *memoryRepo) ListVouchers(ctx context.Context, tenantID int64, filter vouchers.ListFilter) ([]vouchers.Voucher, error) {
	var out []vouchers.Voucher
	for _, v := range r.vouchers {
		v.Kind = r.types[v.TypeID].Kind
		switch {
		case v.TenantID != tenantID:
		case filter.Kind != "" && v.Kind != filter.Kind:
		case filter.Status != "" && v.Status != filter.Status:
		case filter.From != nil && v.Date.Before(*filter.From):
		case filter.To != nil && v.Date.After(*filter.To):
		default:
			v.Items, v.Entries = nil, nil
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r *memoryRepo) MarkPosted(ctx context.Context, v vouchers.Voucher) error {
	stored, ok := r.vouchers[v.ID]
	if !ok || stored.Status != vouchers.StatusDraft {
		return shared.InvalidState("voucher_not_draft", "voucher %d is no longer a draft", v.ID)
	}
	stored.Status = vouchers.StatusPosted
	stored.Number = v.Number
	stored.Total = v.Total
	stored.PostedAt = v.PostedAt
	stored.PostedBy = v.PostedBy
	stored.PlaceOfSupply = v.PlaceOfSupply
	stored.DueDate = v.DueDate
	r.vouchers[v.ID] = stored
	return nil
}

func (r *memoryRepo) MarkCancelled(ctx context.Context, v vouchers.Voucher) error {
	stored, ok := r.vouchers[v.ID]
	if !ok || stored.Status != vouchers.StatusPosted {
		return shared.InvalidState("voucher_not_posted", "voucher %d is not posted", v.ID)
	}
	stored.Status = vouchers.StatusCancelled
	stored.CancelledAt = v.CancelledAt
	stored.CancelledBy = v.CancelledBy
	stored.CancelReason = v.CancelReason
	stored.ReversedByID = v.ReversedByID
	r.vouchers[v.ID] = stored
	return nil
}

func (r *memoryRepo) DeleteVoucher(ctx context.Context, tenantID, id int64) error {
	v, ok := r.vouchers[id]
	if !ok || v.TenantID != tenantID || v.Status != vouchers.StatusDraft {
		return shared.InvalidState("voucher_not_draft", "voucher %d is not a draft", id)
	}
	delete(r.vouchers, id)
	return nil
}

func (r *memoryRepo) Counter() numbering.Counter { return memoryCounter{r: r} }

func (r *memoryRepo) Bills() bills.TxRepository { return r.bills }

func (r *memoryRepo) WriteAudit(ctx context.Context, log internalShared.AuditLog) error {
	r.audits = append(r.audits, log)
	return nil
}

// voucher reads a stored voucher outside any transaction.
func (r *memoryRepo) voucher(id int64) vouchers.Voucher {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, _ := r.GetVoucher(context.Background(), r.vouchers[id].TenantID, id, false)
	return v
}

func (r *memoryRepo) auditActions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.audits))
	for i, a := range r.audits {
		out[i] = a.Action
	}
	return out
}

type memoryCounter struct {
	r *memoryRepo
}

func (c memoryCounter) Increment(ctx context.Context, tenantID, typeID int64) (int64, error) {
	k := seqKey{tenantID: tenantID, typeID: typeID}
	c.r.seq[k]++
	return c.r.seq[k], nil
}

func (c memoryCounter) NumberExists(ctx context.Context, tenantID, typeID int64, number string) (bool, error) {
	for _, v := range c.r.vouchers {
		if v.TenantID == tenantID && v.TypeID == typeID && v.Status != vouchers.StatusDraft && v.NumberOrEmpty() == number {
			return true, nil
		}
	}
	return false, nil
}

func (c memoryCounter) NumberInUse(ctx context.Context, tenantID, typeID int64, number string) (bool, error) {
	for _, v := range c.r.vouchers {
		if v.TenantID == tenantID && v.TypeID == typeID && v.NumberOrEmpty() == number {
			return true, nil
		}
	}
	return false, nil
}
