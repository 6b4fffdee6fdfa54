package accounts

import (
	"time"

	"github.com/shopspring/decimal"
)

// GroupType enumerates the root natures of the chart of accounts.
type GroupType string

const (
	GroupTypeAsset     GroupType = "ASSET"
	GroupTypeLiability GroupType = "LIABILITY"
	GroupTypeIncome    GroupType = "INCOME"
	GroupTypeExpense   GroupType = "EXPENSE"
	GroupTypeCapital   GroupType = "CAPITAL"
)

// Valid reports whether t is a known group type.
func (t GroupType) Valid() bool {
	switch t {
	case GroupTypeAsset, GroupTypeLiability, GroupTypeIncome, GroupTypeExpense, GroupTypeCapital:
		return true
	}
	return false
}

// Side is the debit or credit side of a balance.
type Side string

const (
	SideDebit  Side = "DR"
	SideCredit Side = "CR"
)

// NormalSide is the side on which balances of type t normally sit.
func NormalSide(t GroupType) Side {
	switch t {
	case GroupTypeAsset, GroupTypeExpense:
		return SideDebit
	default:
		return SideCredit
	}
}

// Group is a node of the account hierarchy. Only root groups carry a Type.
type Group struct {
	ID          int64      `json:"id"`
	TenantID    int64      `json:"tenant_id"`
	Code        string     `json:"code"`
	Name        string     `json:"name"`
	ParentID    *int64     `json:"parent_id"`
	Type        *GroupType `json:"type"`
	ScheduleIII string     `json:"schedule_iii"`
	IsSystem    bool       `json:"is_system"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Ledger is a posting account under a group.
type Ledger struct {
	ID             int64           `json:"id"`
	TenantID       int64           `json:"tenant_id"`
	GroupID        int64           `json:"group_id"`
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	OpeningSide    Side            `json:"opening_side"`
	GSTIN          string          `json:"gstin"`
	PAN            string          `json:"pan"`
	Address        string          `json:"address"`
	StateCode      string          `json:"state_code"`
	BillWise       bool            `json:"bill_wise"`
	CreditDays     int             `json:"credit_days"`
	IsActive       bool            `json:"is_active"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// SignedOpening returns the opening balance as debit-positive.
func (l Ledger) SignedOpening() decimal.Decimal {
	if l.OpeningSide == SideCredit {
		return l.OpeningBalance.Neg()
	}
	return l.OpeningBalance
}

// GroupInput captures group creation fields.
type GroupInput struct {
	ParentID    *int64     `json:"parent_id"`
	Type        *GroupType `json:"type"`
	Code        string     `json:"code" validate:"required,max=32"`
	Name        string     `json:"name" validate:"required,max=128"`
	ScheduleIII string     `json:"schedule_iii" validate:"max=64"`
}

// MoveGroupInput re-parents a group. Type is accepted only when the group
// becomes a root.
type MoveGroupInput struct {
	ParentID *int64     `json:"parent_id"`
	Type     *GroupType `json:"type"`
}

// LedgerInput captures ledger creation fields.
type LedgerInput struct {
	GroupID        int64           `json:"group_id" validate:"required,gt=0"`
	Code           string          `json:"code" validate:"required,max=32"`
	Name           string          `json:"name" validate:"required,max=128"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	OpeningSide    Side            `json:"opening_side" validate:"omitempty,oneof=DR CR"`
	GSTIN          string          `json:"gstin" validate:"omitempty,gstin"`
	PAN            string          `json:"pan" validate:"omitempty,pan"`
	Address        string          `json:"address" validate:"max=512"`
	StateCode      string          `json:"state_code" validate:"omitempty,statecode"`
	BillWise       bool            `json:"bill_wise"`
	CreditDays     int             `json:"credit_days" validate:"gte=0,lte=3650"`
}
