// Package reports derives balances and statements from posted ledger entries.
package reports

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/gstbooks/internal/accounting/accounts"
)

// Movement is the sum of entries on a ledger over a date range.
type Movement struct {
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

// Net is debit minus credit.
func (m Movement) Net() decimal.Decimal {
	return m.Debit.Sub(m.Credit)
}

// Balance is a ledger balance at the end of a day.
type Balance struct {
	LedgerID int64           `json:"ledger_id"`
	AsOf     time.Time       `json:"as_of"`
	Opening  decimal.Decimal `json:"opening"`
	Debit    decimal.Decimal `json:"debit"`
	Credit   decimal.Decimal `json:"credit"`
	Amount   decimal.Decimal `json:"amount"`
	Side     accounts.Side   `json:"side"`
}

// NewBalance folds the signed opening and the movement into a magnitude and
// side. A zero balance sits on the ledger's normal side.
func NewBalance(ledger accounts.Ledger, normal accounts.Side, asOf time.Time, m Movement) Balance {
	signed := ledger.SignedOpening().Add(m.Net())
	return Balance{
		LedgerID: ledger.ID,
		AsOf:     asOf,
		Opening:  ledger.SignedOpening(),
		Debit:    m.Debit,
		Credit:   m.Credit,
		Amount:   signed.Abs(),
		Side:     sideOf(signed, normal),
	}
}

func sideOf(signed decimal.Decimal, normal accounts.Side) accounts.Side {
	switch {
	case signed.IsPositive():
		return accounts.SideDebit
	case signed.IsNegative():
		return accounts.SideCredit
	default:
		return normal
	}
}
