// Package bills tracks outstanding invoices per party ledger and the
// payments, receipts and journals that settle them.
package bills

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/gstbooks/internal/accounting/shared"
)

const statusPosted = "POSTED"

var invoiceKinds = map[string]bool{"SALE": true, "PURCHASE": true}

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// Tracker opens bills and applies settlements to them. The *Tx methods run
// inside a transaction owned by the caller.
type Tracker struct {
	repo   RepositoryPort
	logger *slog.Logger
	now    func() time.Time
}

// NewTracker constructs the bill-wise tracker.
func NewTracker(repo RepositoryPort, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{repo: repo, logger: logger, now: time.Now}
}

// OpenBill starts tracking a bill in its own transaction.
func (t *Tracker) OpenBill(ctx context.Context, in OpenBillInput) (Bill, error) {
	var bill Bill
	err := t.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		bill, err = t.OpenBillTx(ctx, tx, in)
		return err
	})
	return bill, err
}

// OpenBillTx inserts a bill using tx.
func (t *Tracker) OpenBillTx(ctx context.Context, tx TxRepository, in OpenBillInput) (Bill, error) {
	if err := shared.ValidateStruct(in); err != nil {
		return Bill{}, err
	}
	if !in.Amount.IsPositive() {
		return Bill{}, shared.Validation("invalid_bill_amount", "bill amount must be positive, got %s", in.Amount)
	}
	bill, err := tx.InsertBill(ctx, in)
	if err != nil {
		return Bill{}, err
	}
	t.logger.Debug("bill opened",
		slog.Int64("tenant_id", bill.TenantID),
		slog.Int64("bill_id", bill.ID),
		slog.Int64("ledger_id", bill.LedgerID),
		slog.String("amount", bill.Amount.StringFixed(2)))
	return bill, nil
}

// Allocate applies part of a posted voucher to one bill. The voucher must be
// a settling kind that moved money on the bill's ledger on the settling side,
// and its allocations across that ledger's bills may not exceed that amount.
func (t *Tracker) Allocate(ctx context.Context, in AllocateInput) (Allocation, error) {
	if err := shared.ValidateStruct(in); err != nil {
		return Allocation{}, err
	}
	var alloc Allocation
	err := t.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		bill, err := tx.GetBillForUpdate(ctx, in.TenantID, in.BillID)
		if err != nil {
			return err
		}
		if err := t.checkSettler(ctx, tx, bill, in); err != nil {
			return err
		}
		alloc, err = t.AllocateTx(ctx, tx, in)
		return err
	})
	if err != nil {
		return Allocation{}, err
	}
	t.logger.Info("bill allocated",
		slog.Int64("tenant_id", in.TenantID),
		slog.Int64("bill_id", in.BillID),
		slog.Int64("voucher_id", in.VoucherID),
		slog.String("amount", alloc.Amount.StringFixed(2)))
	return alloc, nil
}

func (t *Tracker) checkSettler(ctx context.Context, tx TxRepository, bill Bill, in AllocateInput) error {
	s, err := tx.SettlingVoucher(ctx, in.TenantID, in.VoucherID, bill.LedgerID)
	if err != nil {
		return err
	}
	if s.Status != statusPosted {
		return shared.InvalidState("voucher_not_posted", "voucher %d is %s", in.VoucherID, s.Status)
	}
	if invoiceKinds[s.Kind] {
		return shared.Validation("invoice_cannot_settle", "%s voucher %d raises bills, it cannot settle them", s.Kind, in.VoucherID)
	}
	if s.Reversal {
		return shared.Validation("reversal_cannot_settle", "voucher %d is a reversal", in.VoucherID)
	}
	capacity := s.Capacity(bill.Direction)
	if !capacity.IsPositive() {
		return shared.Validation("voucher_not_on_ledger", "voucher %d does not settle ledger %d", in.VoucherID, bill.LedgerID)
	}
	used, err := tx.VoucherAllocated(ctx, in.TenantID, in.VoucherID, bill.LedgerID, bill.Direction)
	if err != nil {
		return err
	}
	if used.Add(in.Amount).GreaterThan(capacity) {
		return shared.Validation("exceeds_voucher_amount", "voucher %d has %s left to allocate on ledger %d, requested %s",
			in.VoucherID, capacity.Sub(used).StringFixed(2), bill.LedgerID, in.Amount.StringFixed(2))
	}
	return nil
}

// AllocateTx locks the bill, re-reads its allocated total and records the
// allocation when it stays within the bill amount.
func (t *Tracker) AllocateTx(ctx context.Context, tx TxRepository, in AllocateInput) (Allocation, error) {
	if !in.Amount.IsPositive() {
		return Allocation{}, shared.Validation("invalid_allocation_amount", "allocation must be positive, got %s", in.Amount)
	}
	bill, err := tx.GetBillForUpdate(ctx, in.TenantID, in.BillID)
	if err != nil {
		return Allocation{}, err
	}
	if bill.CancelledAt != nil {
		return Allocation{}, shared.InvalidState("bill_cancelled", "bill %d is cancelled", bill.ID)
	}
	allocated, err := tx.AllocatedTotal(ctx, bill.ID)
	if err != nil {
		return Allocation{}, err
	}
	if allocated.Add(in.Amount).GreaterThan(bill.Amount.Add(Tolerance)) {
		return Allocation{}, shared.OverAllocation(bill.ID, bill.Amount.Sub(allocated), in.Amount)
	}
	date := in.Date
	if date.IsZero() {
		date = t.today()
	}
	return tx.InsertAllocation(ctx, Allocation{
		TenantID:  in.TenantID,
		BillID:    bill.ID,
		VoucherID: in.VoucherID,
		Amount:    in.Amount,
		Date:      date,
	})
}

// SettleTx settles bills of a party ledger from a posted voucher. Explicit
// references are honoured first; without them the amount runs FIFO over the
// ledger's open bills. Whatever is left is reported as on-account.
func (t *Tracker) SettleTx(ctx context.Context, tx TxRepository, req SettleRequest) (SettleResult, error) {
	result := SettleResult{Unallocated: req.Amount}
	if !req.Amount.IsPositive() {
		return result, nil
	}
	if len(req.Refs) > 0 {
		return t.settleRefs(ctx, tx, req)
	}
	open, err := tx.LockOpenBills(ctx, req.TenantID, req.LedgerID, req.Direction)
	if err != nil {
		return SettleResult{}, err
	}
	plan, remainder := PlanFIFO(open, req.Amount)
	for _, step := range plan {
		alloc, err := t.AllocateTx(ctx, tx, AllocateInput{
			TenantID:  req.TenantID,
			BillID:    step.BillID,
			VoucherID: req.VoucherID,
			Amount:    step.Amount,
			Date:      req.Date,
		})
		if err != nil {
			return SettleResult{}, err
		}
		result.Allocations = append(result.Allocations, alloc)
	}
	result.Unallocated = remainder
	return result, nil
}

func (t *Tracker) settleRefs(ctx context.Context, tx TxRepository, req SettleRequest) (SettleResult, error) {
	refs := append([]Ref(nil), req.Refs...)
	sort.SliceStable(refs, func(i, j int) bool { return refs[i].BillID < refs[j].BillID })

	total := decimal.Zero
	for _, ref := range refs {
		total = total.Add(ref.Amount)
	}
	if total.GreaterThan(req.Amount) {
		return SettleResult{}, shared.Validation("bill_refs_exceed_amount", "bill references total %s exceeds %s", total, req.Amount)
	}

	result := SettleResult{}
	for _, ref := range refs {
		bill, err := tx.GetBillForUpdate(ctx, req.TenantID, ref.BillID)
		if err != nil {
			return SettleResult{}, err
		}
		if bill.LedgerID != req.LedgerID || bill.Direction != req.Direction {
			return SettleResult{}, shared.Validation("bill_ledger_mismatch", "bill %d does not belong to ledger %d", bill.ID, req.LedgerID)
		}
		alloc, err := t.AllocateTx(ctx, tx, AllocateInput{
			TenantID:  req.TenantID,
			BillID:    ref.BillID,
			VoucherID: req.VoucherID,
			Amount:    ref.Amount,
			Date:      req.Date,
		})
		if err != nil {
			return SettleResult{}, err
		}
		result.Allocations = append(result.Allocations, alloc)
	}
	result.Unallocated = req.Amount.Sub(total)
	return result, nil
}

// ReverseVoucherTx writes a negative allocation for every live allocation of
// voucherID, attributed to the reversing voucher.
func (t *Tracker) ReverseVoucherTx(ctx context.Context, tx TxRepository, tenantID, voucherID, reversalID int64, date time.Time) ([]Allocation, error) {
	open, err := tx.OpenAllocationsByVoucher(ctx, tenantID, voucherID)
	if err != nil {
		return nil, err
	}
	reversed := make([]Allocation, 0, len(open))
	for _, a := range open {
		if _, err := tx.GetBillForUpdate(ctx, tenantID, a.BillID); err != nil {
			return nil, err
		}
		origID := a.ID
		rev, err := tx.InsertAllocation(ctx, Allocation{
			TenantID:     tenantID,
			BillID:       a.BillID,
			VoucherID:    reversalID,
			Amount:       a.Amount.Neg(),
			Date:         date,
			ReversalOfID: &origID,
		})
		if err != nil {
			return nil, err
		}
		reversed = append(reversed, rev)
	}
	return reversed, nil
}

// VoidBillOfVoucherTx cancels the bill raised by voucherID. A bill that
// still carries settlements cannot be voided; those must be reversed first.
func (t *Tracker) VoidBillOfVoucherTx(ctx context.Context, tx TxRepository, tenantID, voucherID int64) error {
	bill, err := tx.BillByVoucherForUpdate(ctx, tenantID, voucherID)
	if err != nil || bill == nil {
		return err
	}
	allocated, err := tx.AllocatedTotal(ctx, bill.ID)
	if err != nil {
		return err
	}
	if allocated.IsPositive() {
		return shared.InvalidState("bill_has_settlements", "bill %d has %s allocated", bill.ID, allocated.StringFixed(2))
	}
	return tx.CancelBill(ctx, tenantID, bill.ID)
}

// OutstandingBills lists open and partially settled bills of a ledger,
// oldest first.
func (t *Tracker) OutstandingBills(ctx context.Context, tenantID, ledgerID int64) ([]Outstanding, error) {
	var out []Outstanding
	err := t.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		out, err = tx.ListOutstanding(ctx, tenantID, &ledgerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Outstanding{}
	}
	return out, nil
}

// Aging buckets outstanding amounts for a tenant, optionally for one ledger.
func (t *Tracker) Aging(ctx context.Context, tenantID int64, ledgerID *int64, asOf time.Time) (AgingBuckets, error) {
	var open []Outstanding
	err := t.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		open, err = tx.ListOutstanding(ctx, tenantID, ledgerID)
		return err
	})
	if err != nil {
		return AgingBuckets{}, err
	}
	return Age(open, asOf), nil
}

func (t *Tracker) today() time.Time {
	now := t.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
