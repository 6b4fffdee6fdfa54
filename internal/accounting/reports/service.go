package reports

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/gstbooks/internal/accounting/accounts"
	"github.com/odyssey-erp/gstbooks/internal/accounting/shared"
)

// Service is the ledger balance calculator and statement builder.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewService constructs the reports service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// BalanceAsOf returns the balance of a ledger at the end of asOf: the signed
// opening plus every posted or cancelled entry dated on or before asOf.
// Drafts never count.
func (s *Service) BalanceAsOf(ctx context.Context, tenantID, ledgerID int64, asOf time.Time) (Balance, error) {
	asOf = day(asOf)
	var bal Balance
	err := s.repo.View(ctx, func(ctx context.Context, rr ReadRepository) error {
		ledger, err := rr.GetLedger(ctx, tenantID, ledgerID)
		if err != nil {
			return err
		}
		groups, err := rr.ListGroups(ctx, tenantID)
		if err != nil {
			return err
		}
		kind, err := accounts.NewHierarchy(groups).EffectiveType(ledger.GroupID)
		if err != nil {
			return err
		}
		m, err := rr.Movement(ctx, tenantID, ledgerID, asOf)
		if err != nil {
			return err
		}
		bal = NewBalance(ledger, accounts.NormalSide(kind), asOf, m)
		return nil
	})
	return bal, err
}

// TrialBalance lists every ledger's opening, movement and closing as of a
// date, grouped by account group code.
func (s *Service) TrialBalance(ctx context.Context, tenantID int64, asOf time.Time) (TrialBalance, error) {
	balances, err := s.accountBalances(ctx, tenantID, nil, day(asOf), true)
	if err != nil {
		return TrialBalance{}, err
	}
	tb := BuildTrialBalance(balances)
	if !tb.Balanced() {
		s.logger.Error("trial balance out of balance",
			slog.Int64("tenant_id", tenantID),
			slog.String("debit", tb.TotalDebit.String()),
			slog.String("credit", tb.TotalCredit.String()))
	}
	return tb, nil
}

// ProfitAndLoss reports income and expense movements between from and to,
// both inclusive. A nil from covers everything up to to.
func (s *Service) ProfitAndLoss(ctx context.Context, tenantID int64, from *time.Time, to time.Time) (ProfitAndLoss, error) {
	if from != nil {
		f := day(*from)
		if f.After(day(to)) {
			return ProfitAndLoss{}, shared.Validation("invalid_range", "from %s is after to %s", f.Format(time.DateOnly), to.Format(time.DateOnly))
		}
		from = &f
	}
	balances, err := s.accountBalances(ctx, tenantID, from, day(to), false)
	if err != nil {
		return ProfitAndLoss{}, err
	}
	return BuildProfitAndLoss(balances), nil
}

// BalanceSheet reports closing positions as of a date.
func (s *Service) BalanceSheet(ctx context.Context, tenantID int64, asOf time.Time) (BalanceSheet, error) {
	balances, err := s.accountBalances(ctx, tenantID, nil, day(asOf), true)
	if err != nil {
		return BalanceSheet{}, err
	}
	return BuildBalanceSheet(balances), nil
}

func (s *Service) accountBalances(ctx context.Context, tenantID int64, from *time.Time, to time.Time, withOpening bool) ([]AccountBalance, error) {
	var out []AccountBalance
	err := s.repo.View(ctx, func(ctx context.Context, rr ReadRepository) error {
		groups, err := rr.ListGroups(ctx, tenantID)
		if err != nil {
			return err
		}
		ledgers, err := rr.ListLedgers(ctx, tenantID)
		if err != nil {
			return err
		}
		movements, err := rr.Movements(ctx, tenantID, from, to)
		if err != nil {
			return err
		}
		h := accounts.NewHierarchy(groups)
		out = make([]AccountBalance, 0, len(ledgers))
		for _, l := range ledgers {
			kind, err := h.EffectiveType(l.GroupID)
			if err != nil {
				return err
			}
			group, _ := h.Get(l.GroupID)
			m := movements[l.ID]
			opening := decimal.Zero
			if withOpening {
				opening = l.SignedOpening()
			}
			out = append(out, AccountBalance{
				LedgerID:  l.ID,
				Code:      l.Code,
				Name:      l.Name,
				GroupCode: group.Code,
				Type:      kind,
				Opening:   opening,
				Debit:     orZero(m.Debit),
				Credit:    orZero(m.Credit),
			})
		}
		return nil
	})
	return out, err
}

func orZero(d decimal.Decimal) decimal.Decimal {
	if d.IsZero() {
		return decimal.Zero
	}
	return d
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
