package vouchers

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/gstbooks/internal/accounting/bills"
	"github.com/odyssey-erp/gstbooks/internal/accounting/numbering"
)

// Kind tags the voucher variant the engine dispatches on.
type Kind string

const (
	KindSale          Kind = "SALE"
	KindPurchase      Kind = "PURCHASE"
	KindPayment       Kind = "PAYMENT"
	KindReceipt       Kind = "RECEIPT"
	KindJournal       Kind = "JOURNAL"
	KindTDSSettlement Kind = "TDS_SETTLEMENT"
)

// IsInvoice reports whether the kind carries line items.
func (k Kind) IsInvoice() bool {
	return k == KindSale || k == KindPurchase
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindSale, KindPurchase, KindPayment, KindReceipt, KindJournal, KindTDSSettlement:
		return true
	}
	return false
}

// Status enumerates voucher lifecycle states.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusPosted    Status = "POSTED"
	StatusCancelled Status = "CANCELLED"
)

// VoucherType is seeded reference data.
type VoucherType struct {
	ID        int64            `json:"id"`
	Code      string           `json:"code"`
	Name      string           `json:"name"`
	Kind      Kind             `json:"kind"`
	Prefix    string           `json:"prefix"`
	Numbering numbering.Method `json:"numbering"`
}

// Series returns the numbering series of the type.
func (t VoucherType) Series() numbering.Series {
	return numbering.Series{TypeID: t.ID, Prefix: t.Prefix, Method: t.Numbering}
}

// Company holds the tenant settings posting depends on.
type Company struct {
	TenantID        int64  `json:"tenant_id"`
	Name            string `json:"name"`
	GSTIN           string `json:"gstin"`
	StateCode       string `json:"state_code"`
	Currency        string `json:"currency"`
	EInvoiceEnabled bool   `json:"einvoice_enabled"`
}

// Item is an invoice line. Tax rates and amounts are filled at posting.
type Item struct {
	ID           int64           `json:"id"`
	VoucherID    int64           `json:"voucher_id"`
	LineNo       int             `json:"line_no"`
	ItemName     string          `json:"item_name"`
	HSNSAC       string          `json:"hsn_sac"`
	Quantity     decimal.Decimal `json:"quantity"`
	Unit         string          `json:"unit"`
	Rate         decimal.Decimal `json:"rate"`
	Discount     decimal.Decimal `json:"discount"`
	Amount       decimal.Decimal `json:"amount"`
	LedgerID     *int64          `json:"ledger_id,omitempty"`
	RateOverride bool            `json:"rate_override"`
	CGSTRate     decimal.Decimal `json:"cgst_rate"`
	SGSTRate     decimal.Decimal `json:"sgst_rate"`
	IGSTRate     decimal.Decimal `json:"igst_rate"`
	CessRate     decimal.Decimal `json:"cess_rate"`
	CGSTAmount   decimal.Decimal `json:"cgst_amount"`
	SGSTAmount   decimal.Decimal `json:"sgst_amount"`
	IGSTAmount   decimal.Decimal `json:"igst_amount"`
	CessAmount   decimal.Decimal `json:"cess_amount"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
}

// TaxTotal is the sum of the line's tax components.
func (i Item) TaxTotal() decimal.Decimal {
	return i.CGSTAmount.Add(i.SGSTAmount).Add(i.IGSTAmount).Add(i.CessAmount)
}

// Entry is one side of a ledger posting. Exactly one of Debit and Credit is
// non-zero.
type Entry struct {
	ID        int64           `json:"id"`
	TenantID  int64           `json:"tenant_id"`
	VoucherID int64           `json:"voucher_id"`
	LedgerID  int64           `json:"ledger_id"`
	Debit     decimal.Decimal `json:"debit_amount"`
	Credit    decimal.Decimal `json:"credit_amount"`
}

// Swapped returns the entry with debit and credit exchanged.
func (e Entry) Swapped() Entry {
	return Entry{TenantID: e.TenantID, LedgerID: e.LedgerID, Debit: e.Credit, Credit: e.Debit}
}

// Voucher is the persisted header plus its lines and entries.
type Voucher struct {
	ID            int64           `json:"id"`
	TenantID      int64           `json:"tenant_id"`
	TypeID        int64           `json:"voucher_type_id"`
	Kind          Kind            `json:"kind"`
	Number        *string         `json:"voucher_number,omitempty"`
	Date          time.Time       `json:"voucher_date"`
	Reference     string          `json:"reference_number"`
	Narration     string          `json:"narration"`
	Total         decimal.Decimal `json:"total_amount"`
	Status        Status          `json:"status"`
	PartyLedgerID *int64          `json:"party_ledger_id,omitempty"`
	ItemLedgerID  *int64          `json:"item_ledger_id,omitempty"`
	PlaceOfSupply string          `json:"place_of_supply"`
	DueDate       *time.Time      `json:"due_date,omitempty"`
	BillRefs      []bills.Ref     `json:"bill_refs"`
	ReversalOfID  *int64          `json:"reversal_of_id,omitempty"`
	ReversedByID  *int64          `json:"reversed_by_id,omitempty"`
	PostedAt      *time.Time      `json:"posted_at,omitempty"`
	PostedBy      *int64          `json:"posted_by,omitempty"`
	CancelledAt   *time.Time      `json:"cancelled_at,omitempty"`
	CancelledBy   *int64          `json:"cancelled_by,omitempty"`
	CancelReason  string          `json:"cancel_reason,omitempty"`
	CreatedBy     int64           `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Items         []Item          `json:"items,omitempty"`
	Entries       []Entry         `json:"entries,omitempty"`
}

// NumberOrEmpty dereferences Number.
func (v Voucher) NumberOrEmpty() string {
	if v.Number == nil {
		return ""
	}
	return *v.Number
}

// Body is the kind-specific payload of a voucher.
type Body interface {
	isBody()
}

// Invoice is the body of sale and purchase vouchers.
type Invoice struct {
	PartyLedgerID int64
	ItemLedgerID  *int64
	PlaceOfSupply string
	DueDate       *time.Time
	Items         []Item
}

// Settlement is the body of payment, receipt, journal and TDS vouchers.
type Settlement struct {
	Entries  []Entry
	BillRefs []bills.Ref
}

func (Invoice) isBody()    {}
func (Settlement) isBody() {}

// Body rebuilds the kind-specific payload from the stored columns.
func (v Voucher) Body() Body {
	if v.Kind.IsInvoice() {
		inv := Invoice{ItemLedgerID: v.ItemLedgerID, PlaceOfSupply: v.PlaceOfSupply, DueDate: v.DueDate, Items: v.Items}
		if v.PartyLedgerID != nil {
			inv.PartyLedgerID = *v.PartyLedgerID
		}
		return inv
	}
	return Settlement{Entries: v.Entries, BillRefs: v.BillRefs}
}

// CreateDraftInput captures a new voucher.
type CreateDraftInput struct {
	TenantID      int64     `validate:"required,gt=0"`
	ActorID       int64     `validate:"required,gt=0"`
	VoucherTypeID int64     `validate:"required,gt=0"`
	Date          time.Time `validate:"required"`
	Number        string    `validate:"max=50"`
	Reference     string    `validate:"max=64"`
	Narration     string    `validate:"max=500"`
	Body          Body      `validate:"required"`
}

// PostInput identifies the draft to post.
type PostInput struct {
	TenantID  int64 `validate:"required,gt=0"`
	VoucherID int64 `validate:"required,gt=0"`
	ActorID   int64 `validate:"required,gt=0"`
}

// CancelInput identifies the posted voucher to reverse.
type CancelInput struct {
	TenantID  int64      `validate:"required,gt=0"`
	VoucherID int64      `validate:"required,gt=0"`
	ActorID   int64      `validate:"required,gt=0"`
	Reason    string     `validate:"required,max=500"`
	Date      *time.Time `validate:"-"`
}

// ListFilter narrows voucher listings.
type ListFilter struct {
	Kind   Kind
	Status Status
	From   *time.Time
	To     *time.Time
	Limit  int
}

// PostResult reports the posted voucher and its bill-wise effects.
type PostResult struct {
	Voucher     Voucher              `json:"voucher"`
	Bill        *bills.Bill          `json:"bill,omitempty"`
	Settlements []bills.SettleResult `json:"settlements,omitempty"`
	OnAccount   decimal.Decimal      `json:"on_account"`
}

// CancelResult reports both halves of a cancellation.
type CancelResult struct {
	Original Voucher `json:"original"`
	Reversal Voucher `json:"reversal"`
}
