package vouchers_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/gstbooks/internal/accounting/shared"
	"github.com/odyssey-erp/gstbooks/internal/accounting/vouchers"
)

func TestCheckBalance(t *testing.T) {
	_, err := vouchers.CheckBalance([]vouchers.Entry{
		{LedgerID: 1, Debit: dec("100.01"), Credit: decimal.Zero},
		{LedgerID: 2, Debit: decimal.Zero, Credit: dec("100")},
	})
	require.ErrorIs(t, err, shared.ErrUnbalanced)

	_, err = vouchers.CheckBalance([]vouchers.Entry{
		{LedgerID: 1, Debit: decimal.Zero, Credit: decimal.Zero},
		{LedgerID: 2, Debit: decimal.Zero, Credit: decimal.Zero},
	})
	require.Equal(t, "zero_value_voucher", shared.Reason(err))

	total, err := vouchers.CheckBalance([]vouchers.Entry{
		{LedgerID: 1, Debit: dec("60"), Credit: decimal.Zero},
		{LedgerID: 3, Debit: dec("40"), Credit: decimal.Zero},
		{LedgerID: 2, Debit: decimal.Zero, Credit: dec("100")},
	})
	require.NoError(t, err)
	requireAmount(t, "100", total)
}

func TestValidateEntries(t *testing.T) {
	cases := []struct {
		name    string
		entries []vouchers.Entry
		reason  string
	}{
		{"single entry", []vouchers.Entry{{LedgerID: 1, Debit: dec("1"), Credit: decimal.Zero}}, "too_few_entries"},
		{"missing ledger", []vouchers.Entry{{Debit: dec("1"), Credit: decimal.Zero}, {LedgerID: 2, Debit: decimal.Zero, Credit: dec("1")}}, "missing_ledger"},
		{"negative", []vouchers.Entry{{LedgerID: 1, Debit: dec("-1"), Credit: decimal.Zero}, {LedgerID: 2, Debit: decimal.Zero, Credit: dec("1")}}, "negative_amount"},
		{"empty side", []vouchers.Entry{{LedgerID: 1, Debit: decimal.Zero, Credit: decimal.Zero}, {LedgerID: 2, Debit: decimal.Zero, Credit: dec("1")}}, "entry_one_side"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := vouchers.ValidateEntries(tc.entries)
			require.ErrorIs(t, err, shared.ErrValidation)
			require.Equal(t, tc.reason, shared.Reason(err))
		})
	}
}

func TestMergeEntriesKeepsSidesApart(t *testing.T) {
	merged := vouchers.MergeEntries([]vouchers.Entry{
		{LedgerID: 1, Debit: dec("10"), Credit: decimal.Zero},
		{LedgerID: 2, Debit: decimal.Zero, Credit: dec("5")},
		{LedgerID: 1, Debit: dec("15"), Credit: decimal.Zero},
		{LedgerID: 1, Debit: decimal.Zero, Credit: dec("20")},
	})
	require.Len(t, merged, 3)
	require.Equal(t, int64(1), merged[0].LedgerID)
	requireAmount(t, "25", merged[0].Debit)
	requireAmount(t, "20", merged[2].Credit)
}

func TestReverseSwapsSides(t *testing.T) {
	in := []vouchers.Entry{
		{ID: 9, VoucherID: 4, LedgerID: 1, Debit: dec("118"), Credit: decimal.Zero},
		{ID: 10, VoucherID: 4, LedgerID: 2, Debit: decimal.Zero, Credit: dec("118")},
	}
	out := vouchers.Reverse(in)
	require.Len(t, out, 2)
	requireAmount(t, "118", out[0].Credit)
	require.True(t, out[0].Debit.IsZero())
	require.Zero(t, out[0].ID)
	require.Zero(t, out[0].VoucherID)
	require.Equal(t, []int64{1, 2}, vouchers.LedgerIDs(append(in, out...)))
}
