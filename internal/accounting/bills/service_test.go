package bills_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/gstbooks/internal/accounting/bills"
	"github.com/odyssey-erp/gstbooks/internal/accounting/bills/billstest"
	"github.com/odyssey-erp/gstbooks/internal/accounting/shared"
)

const tenant = int64(1)

func amt(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func openBill(t *testing.T, tracker *bills.Tracker, voucherID int64, number, date, amount string) bills.Bill {
	t.Helper()
	bill, err := tracker.OpenBill(context.Background(), bills.OpenBillInput{
		TenantID:  tenant,
		VoucherID: voucherID,
		LedgerID:  10,
		Number:    number,
		Date:      day(date),
		Amount:    amt(amount),
		Direction: bills.DirectionReceivable,
	})
	require.NoError(t, err)
	return bill
}

func TestStatusFor(t *testing.T) {
	require.Equal(t, bills.StatusOpen, bills.StatusFor(amt("1180"), decimal.Zero))
	require.Equal(t, bills.StatusPartiallySettled, bills.StatusFor(amt("1180"), amt("700")))
	require.Equal(t, bills.StatusSettled, bills.StatusFor(amt("1180"), amt("1179.995")))
	require.Equal(t, bills.StatusSettled, bills.StatusFor(amt("1180"), amt("1180")))
}

func TestPartialPaymentLeavesRemaining(t *testing.T) {
	tracker := bills.NewTracker(billstest.NewStore(billstest.Receipts(amt("1180"))), nil)
	bill := openBill(t, tracker, 100, "SAL/000001", "2024-04-01", "1180")

	_, err := tracker.Allocate(context.Background(), bills.AllocateInput{TenantID: tenant, BillID: bill.ID, VoucherID: 200, Amount: amt("700"), Date: day("2024-04-10")})
	require.NoError(t, err)

	out, err := tracker.OutstandingBills(context.Background(), tenant, 10)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.True(t, out[0].Remaining.Equal(amt("480")))
	require.Equal(t, bills.StatusPartiallySettled, out[0].Status)
}

func TestOverAllocationRejected(t *testing.T) {
	tracker := bills.NewTracker(billstest.NewStore(billstest.Receipts(amt("1180"))), nil)
	bill := openBill(t, tracker, 100, "SAL/000001", "2024-04-01", "1180")
	ctx := context.Background()

	_, err := tracker.Allocate(ctx, bills.AllocateInput{TenantID: tenant, BillID: bill.ID, VoucherID: 200, Amount: amt("700")})
	require.NoError(t, err)
	_, err = tracker.Allocate(ctx, bills.AllocateInput{TenantID: tenant, BillID: bill.ID, VoucherID: 201, Amount: amt("500")})
	require.ErrorIs(t, err, shared.ErrOverAllocation)

	_, err = tracker.Allocate(ctx, bills.AllocateInput{TenantID: tenant, BillID: bill.ID, VoucherID: 201, Amount: amt("480")})
	require.NoError(t, err)
	out, err := tracker.OutstandingBills(ctx, tenant, 10)
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestAllocateRequiresPostedVoucher(t *testing.T) {
	store := billstest.NewStore(func(tenantID, voucherID, ledgerID int64) (bills.Settler, bool) {
		s := bills.Settler{Status: "POSTED", Kind: "RECEIPT", Credit: amt("1180")}
		if voucherID == 300 {
			s.Status = "DRAFT"
		}
		return s, voucherID != 404
	})
	tracker := bills.NewTracker(store, nil)
	bill := openBill(t, tracker, 100, "SAL/000001", "2024-04-01", "1180")

	_, err := tracker.Allocate(context.Background(), bills.AllocateInput{TenantID: tenant, BillID: bill.ID, VoucherID: 300, Amount: amt("10")})
	require.ErrorIs(t, err, shared.ErrInvalidState)
	_, err = tracker.Allocate(context.Background(), bills.AllocateInput{TenantID: tenant, BillID: bill.ID, VoucherID: 404, Amount: amt("10")})
	require.ErrorIs(t, err, shared.ErrNotFound)
	_, err = tracker.Allocate(context.Background(), bills.AllocateInput{TenantID: 2, BillID: bill.ID, VoucherID: 200, Amount: amt("10")})
	require.ErrorIs(t, err, shared.ErrNotFound)
	_, err = tracker.Allocate(context.Background(), bills.AllocateInput{TenantID: tenant, BillID: bill.ID, VoucherID: 200, Amount: amt("-5")})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestAllocateChecksSettlingVoucher(t *testing.T) {
	settlers := map[int64]bills.Settler{
		200: {Status: "POSTED", Kind: "RECEIPT", Credit: amt("700")},
		201: {Status: "POSTED", Kind: "SALE", Debit: amt("1180")},
		202: {Status: "POSTED", Kind: "RECEIPT", Credit: amt("500"), Reversal: true},
		203: {Status: "POSTED", Kind: "PAYMENT", Debit: amt("900")},
		204: {Status: "POSTED", Kind: "JOURNAL", Credit: amt("300")},
	}
	store := billstest.NewStore(func(tenantID, voucherID, ledgerID int64) (bills.Settler, bool) {
		s, ok := settlers[voucherID]
		if ledgerID != 10 {
			s.Debit, s.Credit = decimal.Zero, decimal.Zero
		}
		return s, ok && tenantID == tenant
	})
	tracker := bills.NewTracker(store, nil)
	first := openBill(t, tracker, 100, "SAL/000001", "2024-04-01", "1180")
	second := openBill(t, tracker, 101, "SAL/000002", "2024-04-02", "1180")
	ctx := context.Background()

	cases := []struct {
		name    string
		bill    int64
		voucher int64
		amount  string
		reason  string
	}{
		{"invoice settles own bill", second.ID, 201, "1180", "invoice_cannot_settle"},
		{"reversal voucher", first.ID, 202, "100", "reversal_cannot_settle"},
		{"wrong side of ledger", first.ID, 203, "100", "voucher_not_on_ledger"},
		{"beyond receipt amount", first.ID, 200, "701", "exceeds_voucher_amount"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tracker.Allocate(ctx, bills.AllocateInput{TenantID: tenant, BillID: tc.bill, VoucherID: tc.voucher, Amount: amt(tc.amount)})
			require.ErrorIs(t, err, shared.ErrValidation)
			require.Equal(t, tc.reason, shared.Reason(err))
		})
	}

	_, err := tracker.Allocate(ctx, bills.AllocateInput{TenantID: tenant, BillID: first.ID, VoucherID: 200, Amount: amt("400")})
	require.NoError(t, err)
	_, err = tracker.Allocate(ctx, bills.AllocateInput{TenantID: tenant, BillID: second.ID, VoucherID: 200, Amount: amt("301")})
	require.Equal(t, "exceeds_voucher_amount", shared.Reason(err))
	_, err = tracker.Allocate(ctx, bills.AllocateInput{TenantID: tenant, BillID: second.ID, VoucherID: 200, Amount: amt("300")})
	require.NoError(t, err)

	_, err = tracker.Allocate(ctx, bills.AllocateInput{TenantID: tenant, BillID: first.ID, VoucherID: 204, Amount: amt("300")})
	require.NoError(t, err)

	out, err := tracker.OutstandingBills(ctx, tenant, 10)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.True(t, out[0].Remaining.Equal(amt("480")))
	require.True(t, out[1].Remaining.Equal(amt("880")))
}

func TestOpenBillRejectsNonPositiveAmount(t *testing.T) {
	tracker := bills.NewTracker(billstest.NewStore(billstest.Receipts(amt("1180"))), nil)
	_, err := tracker.OpenBill(context.Background(), bills.OpenBillInput{
		TenantID: tenant, VoucherID: 1, LedgerID: 10, Number: "X", Date: day("2024-01-01"), Amount: decimal.Zero, Direction: bills.DirectionPayable,
	})
	require.Equal(t, "invalid_bill_amount", shared.Reason(err))
}

func TestSettleFIFOOldestFirst(t *testing.T) {
	store := billstest.NewStore(billstest.Receipts(amt("1180")))
	tracker := bills.NewTracker(store, nil)
	newer := openBill(t, tracker, 101, "SAL/000002", "2024-05-01", "500")
	older := openBill(t, tracker, 100, "SAL/000001", "2024-04-01", "300")

	var result bills.SettleResult
	err := store.WithTx(context.Background(), func(ctx context.Context, tx bills.TxRepository) error {
		var err error
		result, err = tracker.SettleTx(ctx, tx, bills.SettleRequest{
			TenantID: tenant, LedgerID: 10, Direction: bills.DirectionReceivable, VoucherID: 200, Amount: amt("1000"), Date: day("2024-06-01"),
		})
		return err
	})
	require.NoError(t, err)
	require.Len(t, result.Allocations, 2)
	require.Equal(t, older.ID, result.Allocations[0].BillID)
	require.True(t, result.Allocations[0].Amount.Equal(amt("300")))
	require.Equal(t, newer.ID, result.Allocations[1].BillID)
	require.True(t, result.Allocations[1].Amount.Equal(amt("500")))
	require.True(t, result.Unallocated.Equal(amt("200")))
}

func TestSettleExplicitRefs(t *testing.T) {
	store := billstest.NewStore(billstest.Receipts(amt("1180")))
	tracker := bills.NewTracker(store, nil)
	openBill(t, tracker, 100, "SAL/000001", "2024-04-01", "300")
	newer := openBill(t, tracker, 101, "SAL/000002", "2024-05-01", "500")

	var result bills.SettleResult
	err := store.WithTx(context.Background(), func(ctx context.Context, tx bills.TxRepository) error {
		var err error
		result, err = tracker.SettleTx(ctx, tx, bills.SettleRequest{
			TenantID: tenant, LedgerID: 10, Direction: bills.DirectionReceivable, VoucherID: 200, Amount: amt("600"),
			Refs: []bills.Ref{{BillID: newer.ID, Amount: amt("450")}},
		})
		return err
	})
	require.NoError(t, err)
	require.Len(t, result.Allocations, 1)
	require.Equal(t, newer.ID, result.Allocations[0].BillID)
	require.True(t, result.Unallocated.Equal(amt("150")))

	err = store.WithTx(context.Background(), func(ctx context.Context, tx bills.TxRepository) error {
		_, err := tracker.SettleTx(ctx, tx, bills.SettleRequest{
			TenantID: tenant, LedgerID: 10, Direction: bills.DirectionReceivable, VoucherID: 201, Amount: amt("100"),
			Refs: []bills.Ref{{BillID: newer.ID, Amount: amt("200")}},
		})
		return err
	})
	require.Equal(t, "bill_refs_exceed_amount", shared.Reason(err))
}

func TestReverseVoucherRestoresRemaining(t *testing.T) {
	store := billstest.NewStore(billstest.Receipts(amt("1180")))
	tracker := bills.NewTracker(store, nil)
	bill := openBill(t, tracker, 100, "SAL/000001", "2024-04-01", "1180")
	_, err := tracker.Allocate(context.Background(), bills.AllocateInput{TenantID: tenant, BillID: bill.ID, VoucherID: 200, Amount: amt("700")})
	require.NoError(t, err)

	err = store.WithTx(context.Background(), func(ctx context.Context, tx bills.TxRepository) error {
		reversed, err := tracker.ReverseVoucherTx(ctx, tx, tenant, 200, 201, day("2024-04-20"))
		if err != nil {
			return err
		}
		require.Len(t, reversed, 1)
		require.True(t, reversed[0].Amount.Equal(amt("-700")))
		again, err := tracker.ReverseVoucherTx(ctx, tx, tenant, 200, 202, day("2024-04-20"))
		require.Empty(t, again)
		return err
	})
	require.NoError(t, err)

	out, err := tracker.OutstandingBills(context.Background(), tenant, 10)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.True(t, out[0].Remaining.Equal(amt("1180")))
	require.Equal(t, bills.StatusOpen, out[0].Status)
}

func TestVoidBillRejectsSettledBill(t *testing.T) {
	store := billstest.NewStore(billstest.Receipts(amt("1180")))
	tracker := bills.NewTracker(store, nil)
	bill := openBill(t, tracker, 100, "SAL/000001", "2024-04-01", "1180")
	_, err := tracker.Allocate(context.Background(), bills.AllocateInput{TenantID: tenant, BillID: bill.ID, VoucherID: 200, Amount: amt("100")})
	require.NoError(t, err)

	err = store.WithTx(context.Background(), func(ctx context.Context, tx bills.TxRepository) error {
		return tracker.VoidBillOfVoucherTx(ctx, tx, tenant, 100)
	})
	require.ErrorIs(t, err, shared.ErrInvalidState)

	other := openBill(t, tracker, 101, "SAL/000002", "2024-04-02", "50")
	err = store.WithTx(context.Background(), func(ctx context.Context, tx bills.TxRepository) error {
		return tracker.VoidBillOfVoucherTx(ctx, tx, tenant, 101)
	})
	require.NoError(t, err)
	_, err = tracker.Allocate(context.Background(), bills.AllocateInput{TenantID: tenant, BillID: other.ID, VoucherID: 200, Amount: amt("10")})
	require.Equal(t, "bill_cancelled", shared.Reason(err))
}

func TestAgingBuckets(t *testing.T) {
	due := day("2024-04-30")
	open := []bills.Outstanding{
		bills.NewOutstanding(bills.Bill{ID: 1, Date: day("2024-06-01"), Amount: amt("100")}, decimal.Zero),
		bills.NewOutstanding(bills.Bill{ID: 2, Date: day("2024-04-01"), DueDate: &due, Amount: amt("200")}, amt("50")),
		bills.NewOutstanding(bills.Bill{ID: 3, Date: day("2024-01-01"), Amount: amt("300")}, decimal.Zero),
		bills.NewOutstanding(bills.Bill{ID: 4, Date: day("2024-01-01"), Amount: amt("80")}, amt("80")),
	}
	buckets := bills.Age(open, day("2024-06-10"))
	require.True(t, buckets.Current.Equal(amt("0")))
	require.True(t, buckets.Bucket30.Equal(amt("100")))
	require.True(t, buckets.Bucket60.Equal(amt("150")))
	require.True(t, buckets.Bucket120.Equal(amt("300")))
	require.True(t, buckets.Total.Equal(amt("550")))
}

func TestPlanFIFOSkipsSettledBills(t *testing.T) {
	open := []bills.Outstanding{
		bills.NewOutstanding(bills.Bill{ID: 7, Date: day("2024-01-01"), Amount: amt("100")}, amt("100")),
		bills.NewOutstanding(bills.Bill{ID: 8, Date: day("2024-01-01"), Amount: amt("100")}, amt("40")),
		bills.NewOutstanding(bills.Bill{ID: 5, Date: day("2024-02-01"), Amount: amt("100")}, decimal.Zero),
	}
	plan, rest := bills.PlanFIFO(open, amt("80"))
	require.Len(t, plan, 2)
	require.Equal(t, int64(8), plan[0].BillID)
	require.True(t, plan[0].Amount.Equal(amt("60")))
	require.Equal(t, int64(5), plan[1].BillID)
	require.True(t, plan[1].Amount.Equal(amt("20")))
	require.True(t, rest.IsZero())
}
