package vouchers

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/gstbooks/internal/masterdata/taxes"
	"github.com/odyssey-erp/gstbooks/internal/money"
)

// IsInterstate compares the party's registered state with the place of
// supply. An unregistered party is treated as located in the company state.
func IsInterstate(partyState, placeOfSupply, companyState string) bool {
	if placeOfSupply == "" {
		placeOfSupply = companyState
	}
	if partyState == "" {
		partyState = companyState
	}
	return partyState != placeOfSupply
}

// LineAmount is quantity × rate − discount rounded to the policy scale.
func LineAmount(p money.Policy, qty, rate, discount decimal.Decimal) decimal.Decimal {
	return p.Round(qty.Mul(rate).Sub(discount))
}

// ApplyRate copies the resolved rate onto the line for the supply type.
func ApplyRate(item Item, rate taxes.Rate, interstate bool) Item {
	item.CessRate = rate.Cess
	if interstate {
		item.IGSTRate = rate.IGST
		item.CGSTRate, item.SGSTRate = decimal.Zero, decimal.Zero
		return item
	}
	item.CGSTRate = rate.CGST
	item.SGSTRate = rate.SGST
	item.IGSTRate = decimal.Zero
	return item
}

// NormalizeOverride reconciles caller supplied rates with the supply type:
// an interstate line given only CGST/SGST uses their sum as IGST, and an
// intrastate line given only IGST splits it in half.
func NormalizeOverride(item Item, interstate bool) Item {
	if interstate {
		if item.IGSTRate.IsZero() {
			item.IGSTRate = item.CGSTRate.Add(item.SGSTRate)
		}
		item.CGSTRate, item.SGSTRate = decimal.Zero, decimal.Zero
		return item
	}
	if item.CGSTRate.IsZero() && item.SGSTRate.IsZero() && !item.IGSTRate.IsZero() {
		half := item.IGSTRate.Div(decimal.NewFromInt(2))
		item.CGSTRate, item.SGSTRate = half, half
	}
	item.IGSTRate = decimal.Zero
	return item
}

type component struct {
	rate   func(Item) decimal.Decimal
	amount func(*Item) *decimal.Decimal
}

var components = []component{
	{func(i Item) decimal.Decimal { return i.CGSTRate }, func(i *Item) *decimal.Decimal { return &i.CGSTAmount }},
	{func(i Item) decimal.Decimal { return i.SGSTRate }, func(i *Item) *decimal.Decimal { return &i.SGSTAmount }},
	{func(i Item) decimal.Decimal { return i.IGSTRate }, func(i *Item) *decimal.Decimal { return &i.IGSTAmount }},
	{func(i Item) decimal.Decimal { return i.CessRate }, func(i *Item) *decimal.Decimal { return &i.CessAmount }},
}

// absorb applies a rounding remainder walking back from the last line. A
// positive remainder lands on the last line with a non-zero rate; a negative
// one is taken from lines holding tax, never below zero.
func (c component) absorb(items []Item, diff decimal.Decimal) {
	for i := len(items) - 1; i >= 0 && !diff.IsZero(); i-- {
		amt := c.amount(&items[i])
		if diff.IsPositive() {
			if !c.rate(items[i]).IsZero() {
				*amt = amt.Add(diff)
				diff = decimal.Zero
			}
			continue
		}
		if !amt.IsPositive() {
			continue
		}
		take := decimal.Min(*amt, diff.Neg())
		*amt = amt.Sub(take)
		diff = diff.Add(take)
	}
}

// ComputeTaxes fills tax amounts and line totals. Every component is rounded
// per line; the difference between the rounded sum of exact amounts and the
// sum of rounded amounts goes to the last line carrying that component, so
// the voucher total reconciles with the exact tax to the unit. A line never
// ends up with a negative tax.
func ComputeTaxes(p money.Policy, items []Item) []Item {
	out := append([]Item(nil), items...)
	if len(out) == 0 {
		return out
	}
	for _, c := range components {
		exact := decimal.Zero
		rounded := decimal.Zero
		for i := range out {
			tax := p.Percent(out[i].Amount, c.rate(out[i]))
			r := p.Round(tax)
			*c.amount(&out[i]) = r
			exact = exact.Add(tax)
			rounded = rounded.Add(r)
		}
		if diff := p.Round(exact).Sub(rounded); !diff.IsZero() {
			c.absorb(out, diff)
		}
	}
	for i := range out {
		out[i].TotalAmount = out[i].Amount.Add(out[i].TaxTotal())
	}
	return out
}

// InvoiceTotals sums taxable value, each tax head and the grand total.
type InvoiceTotals struct {
	Taxable decimal.Decimal
	CGST    decimal.Decimal
	SGST    decimal.Decimal
	IGST    decimal.Decimal
	Cess    decimal.Decimal
	Total   decimal.Decimal
}

// Totals adds up computed lines.
func Totals(items []Item) InvoiceTotals {
	var t InvoiceTotals
	for _, it := range items {
		t.Taxable = t.Taxable.Add(it.Amount)
		t.CGST = t.CGST.Add(it.CGSTAmount)
		t.SGST = t.SGST.Add(it.SGSTAmount)
		t.IGST = t.IGST.Add(it.IGSTAmount)
		t.Cess = t.Cess.Add(it.CessAmount)
		t.Total = t.Total.Add(it.TotalAmount)
	}
	return t
}
