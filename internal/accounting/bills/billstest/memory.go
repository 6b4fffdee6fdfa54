// Package billstest provides an in-memory bills repository for tests.
package billstest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/gstbooks/internal/accounting/bills"
	"github.com/odyssey-erp/gstbooks/internal/accounting/shared"
)

// Store keeps bills and allocations in memory. WithTx serialises callers and
// restores the previous state when fn fails.
type Store struct {
	mu     sync.Mutex
	state  state
	lookup Lookup
}

// Lookup reports what a voucher posted on a ledger. ok is false for vouchers
// the tenant does not own.
type Lookup func(tenantID, voucherID, ledgerID int64) (s bills.Settler, ok bool)

// Receipts is a Lookup in which every voucher is a posted receipt moving
// amount on both sides of every ledger.
func Receipts(amount decimal.Decimal) Lookup {
	return func(int64, int64, int64) (bills.Settler, bool) {
		return bills.Settler{Status: "POSTED", Kind: "RECEIPT", Debit: amount, Credit: amount}, true
	}
}

type state struct {
	nextID      int64
	bills       []bills.Bill
	allocations []bills.Allocation
}

func (s state) clone() state {
	return state{
		nextID:      s.nextID,
		bills:       append([]bills.Bill(nil), s.bills...),
		allocations: append([]bills.Allocation(nil), s.allocations...),
	}
}

// NewStore returns an empty store. A nil lookup knows no vouchers.
func NewStore(lookup Lookup) *Store {
	if lookup == nil {
		lookup = func(int64, int64, int64) (bills.Settler, bool) { return bills.Settler{}, false }
	}
	return &Store{lookup: lookup}
}

// WithTx implements bills.RepositoryPort.
func (s *Store) WithTx(ctx context.Context, fn func(context.Context, bills.TxRepository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	restore := s.Snapshot()
	if err := fn(ctx, s); err != nil {
		restore()
		return err
	}
	return nil
}

// Snapshot captures the current state and returns a func restoring it. It
// does not lock; callers composing the store into a larger fake hold their
// own lock.
func (s *Store) Snapshot() func() {
	saved := s.state.clone()
	return func() { s.state = saved }
}

// Bills returns a copy of every stored bill.
func (s *Store) Bills() []bills.Bill {
	return append([]bills.Bill(nil), s.state.bills...)
}

// Allocations returns a copy of every stored allocation.
func (s *Store) Allocations() []bills.Allocation {
	return append([]bills.Allocation(nil), s.state.allocations...)
}

func (s *Store) id() int64 {
	s.state.nextID++
	return s.state.nextID
}

func (s *Store) InsertBill(ctx context.Context, in bills.OpenBillInput) (bills.Bill, error) {
	for _, b := range s.state.bills {
		if b.VoucherID == in.VoucherID && b.LedgerID == in.LedgerID {
			return bills.Bill{}, shared.Validation("duplicate_bill", "voucher %d already opened a bill on ledger %d", in.VoucherID, in.LedgerID)
		}
	}
	b := bills.Bill{
		ID:        s.id(),
		TenantID:  in.TenantID,
		VoucherID: in.VoucherID,
		LedgerID:  in.LedgerID,
		Number:    in.Number,
		Date:      in.Date,
		Amount:    in.Amount,
		Direction: in.Direction,
		DueDate:   in.DueDate,
		CreatedAt: time.Now(),
	}
	s.state.bills = append(s.state.bills, b)
	return b, nil
}

func (s *Store) GetBillForUpdate(ctx context.Context, tenantID, id int64) (bills.Bill, error) {
	for _, b := range s.state.bills {
		if b.ID == id && b.TenantID == tenantID {
			return b, nil
		}
	}
	return bills.Bill{}, shared.NotFound("bill", id)
}

func (s *Store) BillByVoucherForUpdate(ctx context.Context, tenantID, voucherID int64) (*bills.Bill, error) {
	for _, b := range s.state.bills {
		if b.TenantID == tenantID && b.VoucherID == voucherID && b.CancelledAt == nil {
			found := b
			return &found, nil
		}
	}
	return nil, nil
}

func (s *Store) CancelBill(ctx context.Context, tenantID, id int64) error {
	for i, b := range s.state.bills {
		if b.ID == id && b.TenantID == tenantID && b.CancelledAt == nil {
			now := time.Now()
			s.state.bills[i].CancelledAt = &now
			return nil
		}
	}
	return shared.NotFound("bill", id)
}

func (s *Store) AllocatedTotal(ctx context.Context, billID int64) (decimal.Decimal, error) {
	return s.allocated(billID), nil
}

func (s *Store) allocated(billID int64) decimal.Decimal {
	total := decimal.Zero
	for _, a := range s.state.allocations {
		if a.BillID == billID {
			total = total.Add(a.Amount)
		}
	}
	return total
}

func (s *Store) InsertAllocation(ctx context.Context, a bills.Allocation) (bills.Allocation, error) {
	a.ID = s.id()
	a.CreatedAt = time.Now()
	s.state.allocations = append(s.state.allocations, a)
	return a, nil
}

func (s *Store) LockOpenBills(ctx context.Context, tenantID, ledgerID int64, direction bills.Direction) ([]bills.Outstanding, error) {
	var out []bills.Outstanding
	for _, b := range s.state.bills {
		if b.TenantID != tenantID || b.LedgerID != ledgerID || b.Direction != direction || b.CancelledAt != nil {
			continue
		}
		o := bills.NewOutstanding(b, s.allocated(b.ID))
		if o.Status != bills.StatusSettled {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *Store) ListOutstanding(ctx context.Context, tenantID int64, ledgerID *int64) ([]bills.Outstanding, error) {
	var out []bills.Outstanding
	for _, b := range s.state.bills {
		if b.TenantID != tenantID || b.CancelledAt != nil {
			continue
		}
		if ledgerID != nil && b.LedgerID != *ledgerID {
			continue
		}
		o := bills.NewOutstanding(b, s.allocated(b.ID))
		if o.Remaining.GreaterThan(bills.Tolerance) {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) OpenAllocationsByVoucher(ctx context.Context, tenantID, voucherID int64) ([]bills.Allocation, error) {
	reversed := map[int64]bool{}
	for _, a := range s.state.allocations {
		if a.ReversalOfID != nil {
			reversed[*a.ReversalOfID] = true
		}
	}
	var out []bills.Allocation
	for _, a := range s.state.allocations {
		if a.TenantID == tenantID && a.VoucherID == voucherID && a.ReversalOfID == nil && !reversed[a.ID] {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) SettlingVoucher(ctx context.Context, tenantID, voucherID, ledgerID int64) (bills.Settler, error) {
	settler, ok := s.lookup(tenantID, voucherID, ledgerID)
	if !ok {
		return bills.Settler{}, shared.NotFound("voucher", voucherID)
	}
	return settler, nil
}

func (s *Store) VoucherAllocated(ctx context.Context, tenantID, voucherID, ledgerID int64, direction bills.Direction) (decimal.Decimal, error) {
	onLedger := map[int64]bool{}
	for _, b := range s.state.bills {
		if b.LedgerID == ledgerID && b.Direction == direction {
			onLedger[b.ID] = true
		}
	}
	total := decimal.Zero
	for _, a := range s.state.allocations {
		if a.TenantID == tenantID && a.VoucherID == voucherID && onLedger[a.BillID] {
			total = total.Add(a.Amount)
		}
	}
	return total, nil
}
