package reports

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/gstbooks/internal/accounting/accounts"
	"github.com/odyssey-erp/gstbooks/internal/accounting/shared"
	_ "github.com/odyssey-erp/gstbooks/testing"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestBuildTrialBalance(t *testing.T) {
	balances := []AccountBalance{
		{Code: "1000", Name: "Cash", GroupCode: "CA", Type: accounts.GroupTypeAsset, Opening: d("1000"), Debit: d("200"), Credit: d("150")},
		{Code: "1001", Name: "Bank", GroupCode: "CA", Type: accounts.GroupTypeAsset, Opening: d("500"), Debit: d("100"), Credit: d("50")},
		{Code: "2000", Name: "Accounts Payable", GroupCode: "CL", Type: accounts.GroupTypeLiability, Opening: d("-1500"), Debit: d("10"), Credit: d("110")},
	}

	tb := BuildTrialBalance(balances)
	if len(tb.Groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(tb.Groups))
	}
	if !tb.TotalDebit.Equal(d("310")) {
		t.Fatalf("unexpected total debit: %v", tb.TotalDebit)
	}
	if !tb.TotalCredit.Equal(d("310")) {
		t.Fatalf("unexpected total credit: %v", tb.TotalCredit)
	}
	if !tb.TotalOpening.IsZero() || !tb.TotalClosing.IsZero() {
		t.Fatalf("unexpected opening/closing totals: %v %v", tb.TotalOpening, tb.TotalClosing)
	}
	require.True(t, tb.Balanced())

	payable := tb.Groups[1].Accounts[0]
	require.Equal(t, accounts.SideCredit, payable.Side)
	require.True(t, payable.Closing.Equal(d("1600")))
}

func TestBuildProfitAndLoss(t *testing.T) {
	balances := []AccountBalance{
		{Code: "4000", Name: "Sales", Type: accounts.GroupTypeIncome, Debit: decimal.Zero, Credit: d("1200")},
		{Code: "5000", Name: "COGS", Type: accounts.GroupTypeExpense, Debit: d("300"), Credit: decimal.Zero},
		{Code: "5100", Name: "Marketing", Type: accounts.GroupTypeExpense, Debit: d("200"), Credit: decimal.Zero},
		{Code: "1000", Name: "Cash", Type: accounts.GroupTypeAsset, Debit: d("999"), Credit: decimal.Zero},
	}

	pl := BuildProfitAndLoss(balances)
	if !pl.Income.Total.Equal(d("1200")) {
		t.Fatalf("expected income total 1200 got %v", pl.Income.Total)
	}
	if !pl.Expense.Total.Equal(d("500")) {
		t.Fatalf("expected expense total 500 got %v", pl.Expense.Total)
	}
	if !pl.NetIncome.Equal(d("700")) {
		t.Fatalf("expected net income 700 got %v", pl.NetIncome)
	}
}

func TestBuildBalanceSheet(t *testing.T) {
	balances := []AccountBalance{
		{Code: "1000", Name: "Cash", Type: accounts.GroupTypeAsset, Opening: d("500"), Debit: d("1200"), Credit: d("100")},
		{Code: "2000", Name: "AP", Type: accounts.GroupTypeLiability, Opening: decimal.Zero, Debit: d("200"), Credit: d("400")},
		{Code: "3000", Name: "Capital", Type: accounts.GroupTypeCapital, Opening: d("-500"), Debit: decimal.Zero, Credit: decimal.Zero},
		{Code: "4000", Name: "Sales", Type: accounts.GroupTypeIncome, Opening: decimal.Zero, Debit: decimal.Zero, Credit: d("1200")},
		{Code: "5000", Name: "Purchases", Type: accounts.GroupTypeExpense, Opening: decimal.Zero, Debit: d("400"), Credit: d("100")},
	}

	bs := BuildBalanceSheet(balances)
	if !bs.Assets.Total.Equal(d("1600")) {
		t.Fatalf("expected assets 1600 got %v", bs.Assets.Total)
	}
	if !bs.Liabilities.Total.Equal(d("200")) {
		t.Fatalf("expected liabilities 200 got %v", bs.Liabilities.Total)
	}
	if !bs.Capital.Total.Equal(d("500")) {
		t.Fatalf("expected capital 500 got %v", bs.Capital.Total)
	}
	if !bs.CurrentEarnings.Equal(d("900")) {
		t.Fatalf("expected current earnings 900 got %v", bs.CurrentEarnings)
	}
	require.True(t, bs.Balanced())
}

type entry struct {
	ledgerID int64
	date     time.Time
	status   string
	debit    decimal.Decimal
	credit   decimal.Decimal
}

type memoryReader struct {
	groups  []accounts.Group
	ledgers []accounts.Ledger
	entries []entry
}

func (m *memoryReader) View(ctx context.Context, fn func(context.Context, ReadRepository) error) error {
	return fn(ctx, m)
}

func (m *memoryReader) GetLedger(ctx context.Context, tenantID, id int64) (accounts.Ledger, error) {
	for _, l := range m.ledgers {
		if l.ID == id && l.TenantID == tenantID {
			return l, nil
		}
	}
	return accounts.Ledger{}, shared.NotFound("ledger", id)
}

func (m *memoryReader) ListLedgers(ctx context.Context, tenantID int64) ([]accounts.Ledger, error) {
	return m.ledgers, nil
}

func (m *memoryReader) ListGroups(ctx context.Context, tenantID int64) ([]accounts.Group, error) {
	return m.groups, nil
}

func (m *memoryReader) Movement(ctx context.Context, tenantID, ledgerID int64, asOf time.Time) (Movement, error) {
	all, err := m.Movements(ctx, tenantID, nil, asOf)
	if err != nil {
		return Movement{}, err
	}
	if mv, ok := all[ledgerID]; ok {
		return mv, nil
	}
	return Movement{Debit: decimal.Zero, Credit: decimal.Zero}, nil
}

func (m *memoryReader) Movements(ctx context.Context, tenantID int64, from *time.Time, to time.Time) (map[int64]Movement, error) {
	out := map[int64]Movement{}
	for _, e := range m.entries {
		if e.status == "DRAFT" || e.date.After(to) || (from != nil && e.date.Before(*from)) {
			continue
		}
		mv := out[e.ledgerID]
		mv.Debit = mv.Debit.Add(e.debit)
		mv.Credit = mv.Credit.Add(e.credit)
		out[e.ledgerID] = mv
	}
	return out, nil
}

func newReader() *memoryReader {
	asset, income := accounts.GroupTypeAsset, accounts.GroupTypeIncome
	parent := int64(1)
	return &memoryReader{
		groups: []accounts.Group{
			{ID: 1, TenantID: 1, Code: "AST", Type: &asset},
			{ID: 2, TenantID: 1, Code: "DEBTORS", ParentID: &parent},
			{ID: 3, TenantID: 1, Code: "INC", Type: &income},
		},
		ledgers: []accounts.Ledger{
			{ID: 10, TenantID: 1, GroupID: 2, Code: "C001", Name: "Customer", OpeningBalance: d("500"), OpeningSide: accounts.SideCredit},
			{ID: 11, TenantID: 1, GroupID: 3, Code: "S001", Name: "Sales", OpeningBalance: decimal.Zero, OpeningSide: accounts.SideCredit},
		},
	}
}

func TestBalanceAsOf(t *testing.T) {
	reader := newReader()
	apr := func(day int) time.Time { return time.Date(2026, 4, day, 0, 0, 0, 0, time.UTC) }
	reader.entries = []entry{
		{ledgerID: 10, date: apr(1), status: "POSTED", debit: d("1180"), credit: decimal.Zero},
		{ledgerID: 10, date: apr(3), status: "DRAFT", debit: d("9999"), credit: decimal.Zero},
		{ledgerID: 10, date: apr(5), status: "CANCELLED", debit: d("590"), credit: decimal.Zero},
		{ledgerID: 10, date: apr(6), status: "POSTED", debit: decimal.Zero, credit: d("590")},
	}
	svc := NewService(reader, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	bal, err := svc.BalanceAsOf(ctx, 1, 10, apr(1))
	require.NoError(t, err)
	require.True(t, bal.Amount.Equal(d("680")), "got %s", bal.Amount)
	require.Equal(t, accounts.SideDebit, bal.Side)

	// The cancelled invoice counts until its reversal lands.
	bal, err = svc.BalanceAsOf(ctx, 1, 10, apr(5).Add(15*time.Hour))
	require.NoError(t, err)
	require.True(t, bal.Amount.Equal(d("1270")), "got %s", bal.Amount)
	require.Equal(t, apr(5), bal.AsOf)

	bal, err = svc.BalanceAsOf(ctx, 1, 10, apr(30))
	require.NoError(t, err)
	require.True(t, bal.Amount.Equal(d("680")), "got %s", bal.Amount)

	before, err := svc.BalanceAsOf(ctx, 1, 10, apr(1).AddDate(0, 0, -1))
	require.NoError(t, err)
	require.True(t, before.Amount.Equal(d("500")))
	require.Equal(t, accounts.SideCredit, before.Side)

	zero, err := svc.BalanceAsOf(ctx, 1, 11, apr(30))
	require.NoError(t, err)
	require.True(t, zero.Amount.IsZero())
	require.Equal(t, accounts.SideCredit, zero.Side, "zero balance sits on the income ledger's normal side")

	_, err = svc.BalanceAsOf(ctx, 1, 99, apr(30))
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestTrialBalanceFromEntries(t *testing.T) {
	reader := newReader()
	apr1 := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	reader.entries = []entry{
		{ledgerID: 10, date: apr1, status: "POSTED", debit: d("1000"), credit: decimal.Zero},
		{ledgerID: 11, date: apr1, status: "POSTED", debit: decimal.Zero, credit: d("1000")},
	}
	svc := NewService(reader, slog.New(slog.NewTextHandler(io.Discard, nil)))

	tb, err := svc.TrialBalance(context.Background(), 1, apr1)
	require.NoError(t, err)
	require.True(t, tb.Balanced())
	require.Len(t, tb.Groups, 2)
	require.Equal(t, "DEBTORS", tb.Groups[0].Key)

	pl, err := svc.ProfitAndLoss(context.Background(), 1, &apr1, apr1)
	require.NoError(t, err)
	require.True(t, pl.NetIncome.Equal(d("1000")))

	later := apr1.AddDate(0, 0, 1)
	_, err = svc.ProfitAndLoss(context.Background(), 1, &later, apr1)
	require.ErrorIs(t, err, shared.ErrValidation)
}
