package vouchers

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/gstbooks/internal/accounting/mappings"
	"github.com/odyssey-erp/gstbooks/internal/accounting/shared"
)

// InvoiceEntries derives the ledger entries of a computed invoice. A sale
// debits the party and credits revenue plus output tax; a purchase mirrors
// it against expense and input tax.
func InvoiceEntries(kind Kind, inv Invoice, items []Item, taxLedgers mappings.TaxLedgers) ([]Entry, error) {
	flow := mappings.FlowOutput
	if kind == KindPurchase {
		flow = mappings.FlowInput
	}
	totals := Totals(items)

	lines := []posting{{ledgerID: inv.PartyLedgerID, amount: totals.Total, partySide: true}}
	for _, it := range items {
		ledgerID := inv.ItemLedgerID
		if it.LedgerID != nil {
			ledgerID = it.LedgerID
		}
		if ledgerID == nil {
			return nil, shared.Validation("missing_item_ledger", "line %d has no revenue or expense ledger", it.LineNo)
		}
		lines = append(lines, posting{ledgerID: *ledgerID, amount: it.Amount})
	}
	taxes := []struct {
		component mappings.Component
		amount    decimal.Decimal
	}{
		{mappings.ComponentCGST, totals.CGST},
		{mappings.ComponentSGST, totals.SGST},
		{mappings.ComponentIGST, totals.IGST},
		{mappings.ComponentCess, totals.Cess},
	}
	for _, tax := range taxes {
		if tax.amount.IsZero() {
			continue
		}
		ledgerID, err := taxLedgers.Ledger(flow, tax.component)
		if err != nil {
			return nil, err
		}
		lines = append(lines, posting{ledgerID: ledgerID, amount: tax.amount})
	}

	entries := make([]Entry, 0, len(lines))
	for _, l := range lines {
		if l.amount.IsZero() {
			continue
		}
		// Sale: party Dr, the rest Cr. Purchase flips both.
		debit := l.partySide == (kind == KindSale)
		if debit {
			entries = append(entries, Entry{LedgerID: l.ledgerID, Debit: l.amount, Credit: decimal.Zero})
		} else {
			entries = append(entries, Entry{LedgerID: l.ledgerID, Debit: decimal.Zero, Credit: l.amount})
		}
	}
	return entries, nil
}

type posting struct {
	ledgerID  int64
	amount    decimal.Decimal
	partySide bool
}

// MergeEntries folds entries on the same ledger and side together, keeping
// first-seen order.
func MergeEntries(entries []Entry) []Entry {
	type key struct {
		ledgerID int64
		debit    bool
	}
	index := make(map[key]int, len(entries))
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		k := key{ledgerID: e.LedgerID, debit: e.Debit.IsPositive()}
		if i, ok := index[k]; ok {
			out[i].Debit = out[i].Debit.Add(e.Debit)
			out[i].Credit = out[i].Credit.Add(e.Credit)
			continue
		}
		index[k] = len(out)
		out = append(out, e)
	}
	return out
}

// ValidateEntries checks the shape of caller supplied entries.
func ValidateEntries(entries []Entry) error {
	if len(entries) < 2 {
		return shared.Validation("too_few_entries", "a voucher needs at least two entries, got %d", len(entries))
	}
	for i, e := range entries {
		if e.LedgerID <= 0 {
			return shared.Validation("missing_ledger", "entry %d has no ledger", i+1)
		}
		if e.Debit.IsNegative() || e.Credit.IsNegative() {
			return shared.Validation("negative_amount", "entry %d has a negative amount", i+1)
		}
		if e.Debit.IsPositive() == e.Credit.IsPositive() {
			return shared.Validation("entry_one_side", "entry %d must carry exactly one of debit or credit", i+1)
		}
	}
	return nil
}

// CheckBalance returns the common total when debits equal credits exactly.
func CheckBalance(entries []Entry) (decimal.Decimal, error) {
	debit, credit := decimal.Zero, decimal.Zero
	for _, e := range entries {
		debit = debit.Add(e.Debit)
		credit = credit.Add(e.Credit)
	}
	if !debit.Equal(credit) {
		return decimal.Zero, shared.Unbalanced(debit, credit)
	}
	if !debit.IsPositive() {
		return decimal.Zero, shared.Validation("zero_value_voucher", "voucher has no value to post")
	}
	return debit, nil
}

// Reverse swaps every entry, for the reversing voucher.
func Reverse(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[i] = e.Swapped()
	}
	return out
}

// LedgerIDs lists the distinct ledgers touched, ascending.
func LedgerIDs(entries []Entry) []int64 {
	seen := make(map[int64]bool, len(entries))
	var ids []int64
	for _, e := range entries {
		if !seen[e.LedgerID] {
			seen[e.LedgerID] = true
			ids = append(ids, e.LedgerID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
