package bills

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Direction tells whether a bill is owed to us or by us. Amounts are
// always stored as positive magnitudes.
type Direction string

const (
	DirectionReceivable Direction = "RECEIVABLE"
	DirectionPayable    Direction = "PAYABLE"
)

// SettledByCredit reports whether credit entries on the party ledger settle
// bills of this direction. Receivables are cleared by credits (receipts),
// payables by debits (payments).
func (d Direction) SettledByCredit() bool {
	return d == DirectionReceivable
}

// Status is derived from the allocated total, never stored.
type Status string

const (
	StatusOpen             Status = "OPEN"
	StatusPartiallySettled Status = "PARTIALLY_SETTLED"
	StatusSettled          Status = "SETTLED"
)

// Tolerance absorbs rounding residue when comparing allocations to a bill.
var Tolerance = decimal.New(1, -2)

// StatusFor derives the bill status from its amount and allocated total.
func StatusFor(amount, allocated decimal.Decimal) Status {
	switch {
	case !allocated.IsPositive():
		return StatusOpen
	case allocated.LessThan(amount.Sub(Tolerance)):
		return StatusPartiallySettled
	default:
		return StatusSettled
	}
}

// Bill is an outstanding invoice tracked for settlement.
type Bill struct {
	ID          int64           `json:"id"`
	TenantID    int64           `json:"tenant_id"`
	VoucherID   int64           `json:"voucher_id"`
	LedgerID    int64           `json:"ledger_id"`
	Number      string          `json:"bill_number"`
	Date        time.Time       `json:"bill_date"`
	Amount      decimal.Decimal `json:"bill_amount"`
	Direction   Direction       `json:"direction"`
	DueDate     *time.Time      `json:"due_date,omitempty"`
	CancelledAt *time.Time      `json:"cancelled_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Allocation applies part of a settling voucher to a bill. Reversals are
// recorded as negative rows pointing at the allocation they undo.
type Allocation struct {
	ID           int64           `json:"id"`
	TenantID     int64           `json:"tenant_id"`
	BillID       int64           `json:"bill_id"`
	VoucherID    int64           `json:"voucher_id"`
	Amount       decimal.Decimal `json:"allocated_amount"`
	Date         time.Time       `json:"allocation_date"`
	ReversalOfID *int64          `json:"reversal_of_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Outstanding is a bill with its allocated and remaining amounts.
type Outstanding struct {
	Bill
	Allocated decimal.Decimal `json:"allocated_amount"`
	Remaining decimal.Decimal `json:"remaining_amount"`
	Status    Status          `json:"status"`
}

// NewOutstanding derives remaining and status.
func NewOutstanding(b Bill, allocated decimal.Decimal) Outstanding {
	return Outstanding{Bill: b, Allocated: allocated, Remaining: b.Amount.Sub(allocated), Status: StatusFor(b.Amount, allocated)}
}

// OpenBillInput captures fields required to start tracking a bill.
type OpenBillInput struct {
	TenantID  int64     `validate:"required,gt=0"`
	VoucherID int64     `validate:"required,gt=0"`
	LedgerID  int64     `validate:"required,gt=0"`
	Number    string    `validate:"required,max=64"`
	Date      time.Time `validate:"required"`
	Amount    decimal.Decimal
	Direction Direction `validate:"required,oneof=RECEIVABLE PAYABLE"`
	DueDate   *time.Time
}

// AllocateInput applies an amount of a settling voucher to one bill.
type AllocateInput struct {
	TenantID  int64           `json:"-" validate:"required,gt=0"`
	BillID    int64           `json:"-" validate:"required,gt=0"`
	VoucherID int64           `json:"voucher_id" validate:"required,gt=0"`
	Amount    decimal.Decimal `json:"amount"`
	Date      time.Time       `json:"allocation_date"`
}

// Settler describes a voucher offered to settle a bill: its state and what it
// posted on the bill's ledger.
type Settler struct {
	Status   string
	Kind     string
	Reversal bool
	Debit    decimal.Decimal
	Credit   decimal.Decimal
}

// Capacity is the amount the voucher moved on the settling side of the
// ledger for bills of direction d.
func (s Settler) Capacity(d Direction) decimal.Decimal {
	if d.SettledByCredit() {
		return s.Credit
	}
	return s.Debit
}

// Ref is an explicit bill reference carried by a settling voucher.
type Ref struct {
	BillID int64           `json:"bill_id"`
	Amount decimal.Decimal `json:"amount"`
}

// SettleRequest settles bills of one ledger from a posted voucher.
type SettleRequest struct {
	TenantID  int64
	LedgerID  int64
	Direction Direction
	VoucherID int64
	Amount    decimal.Decimal
	Date      time.Time
	Refs      []Ref
}

// SettleResult lists allocations made and the on-account remainder.
type SettleResult struct {
	Allocations []Allocation    `json:"allocations"`
	Unallocated decimal.Decimal `json:"unallocated"`
}

// PlannedAllocation is one step of a FIFO plan.
type PlannedAllocation struct {
	BillID int64
	Amount decimal.Decimal
}

// PlanFIFO consumes amount against bills oldest first (bill date, then id)
// and returns the allocations plus the unallocated remainder.
func PlanFIFO(open []Outstanding, amount decimal.Decimal) ([]PlannedAllocation, decimal.Decimal) {
	bills := append([]Outstanding(nil), open...)
	sort.SliceStable(bills, func(i, j int) bool {
		if !bills[i].Date.Equal(bills[j].Date) {
			return bills[i].Date.Before(bills[j].Date)
		}
		return bills[i].ID < bills[j].ID
	})
	remaining := amount
	var plan []PlannedAllocation
	for _, b := range bills {
		if !remaining.IsPositive() {
			break
		}
		if !b.Remaining.IsPositive() {
			continue
		}
		take := decimal.Min(remaining, b.Remaining)
		plan = append(plan, PlannedAllocation{BillID: b.ID, Amount: take})
		remaining = remaining.Sub(take)
	}
	return plan, remaining
}

// AgingBuckets splits remaining amounts by days past due.
type AgingBuckets struct {
	Current   decimal.Decimal `json:"current"`
	Bucket30  decimal.Decimal `json:"bucket_30"`
	Bucket60  decimal.Decimal `json:"bucket_60"`
	Bucket90  decimal.Decimal `json:"bucket_90"`
	Bucket120 decimal.Decimal `json:"bucket_120"`
	Total     decimal.Decimal `json:"total"`
}

// Age buckets outstanding bills as of a date. Bills without a due date age
// from their bill date.
func Age(open []Outstanding, asOf time.Time) AgingBuckets {
	var b AgingBuckets
	for _, o := range open {
		if !o.Remaining.IsPositive() {
			continue
		}
		due := o.Date
		if o.DueDate != nil {
			due = *o.DueDate
		}
		daysOverdue := int(asOf.Sub(due).Hours() / 24)
		switch {
		case daysOverdue <= 0:
			b.Current = b.Current.Add(o.Remaining)
		case daysOverdue <= 30:
			b.Bucket30 = b.Bucket30.Add(o.Remaining)
		case daysOverdue <= 60:
			b.Bucket60 = b.Bucket60.Add(o.Remaining)
		case daysOverdue <= 90:
			b.Bucket90 = b.Bucket90.Add(o.Remaining)
		default:
			b.Bucket120 = b.Bucket120.Add(o.Remaining)
		}
		b.Total = b.Total.Add(o.Remaining)
	}
	return b
}
