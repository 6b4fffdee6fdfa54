package taxes

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/gstbooks/internal/accounting/shared"
	"github.com/odyssey-erp/gstbooks/internal/money"
)

// rateScale is the stored precision of GST percentages.
const rateScale = 4

// Resolver answers which GST rate applies to an HSN/SAC code on a date.
// Histories are read through the Redis cache; concurrent misses for the
// same code share one database query.
type Resolver struct {
	store  Store
	cache  *Cache
	policy money.Policy
	logger *slog.Logger
	group  singleflight.Group
}

// NewResolver constructs the resolver. cache may be nil.
func NewResolver(store Store, cache *Cache, policy money.Policy, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: store, cache: cache, policy: policy, logger: logger}
}

// ResolveRate returns the unique rate covering asOf. No match yields
// ErrRateNotFound; more than one is a configuration fault (ErrRateOverlap).
func (r *Resolver) ResolveRate(ctx context.Context, hsnSac string, asOf time.Time) (Rate, error) {
	code := NormalizeHSN(hsnSac)
	if code == "" {
		return Rate{}, shared.Validation("missing_hsn_sac", "hsn/sac code required")
	}
	history, err := r.history(ctx, code)
	if err != nil {
		return Rate{}, err
	}
	var matches []Rate
	for _, rate := range history {
		if rate.Covers(asOf) {
			matches = append(matches, rate)
		}
	}
	switch len(matches) {
	case 0:
		return Rate{}, shared.RateNotFound(code, asOf.Format(time.DateOnly))
	case 1:
		return r.normalise(matches[0]), nil
	default:
		r.logger.Error("overlapping gst rates", slog.String("hsn_sac", code), slog.Int("matches", len(matches)))
		return Rate{}, &shared.Error{Kind: shared.ErrRateOverlap, Reason: "rate_overlap", Detail: fmt.Sprintf("hsn %s has %d rates on %s", code, len(matches), asOf.Format(time.DateOnly))}
	}
}

func (r *Resolver) history(ctx context.Context, code string) ([]Rate, error) {
	if cached, ok, err := r.cache.Get(ctx, code); err != nil {
		r.logger.Warn("gst rate cache read", slog.String("hsn_sac", code), slog.Any("error", err))
	} else if ok {
		return cached, nil
	}
	v, err, _ := r.group.Do(code, func() (any, error) {
		rates, err := r.store.RatesFor(ctx, code)
		if err != nil {
			return nil, err
		}
		if err := r.cache.Set(ctx, code, rates); err != nil {
			r.logger.Warn("gst rate cache write", slog.String("hsn_sac", code), slog.Any("error", err))
		}
		return rates, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Rate), nil
}

func (r *Resolver) normalise(rate Rate) Rate {
	round := func(d decimal.Decimal) decimal.Decimal { return r.policy.RoundScale(d, rateScale) }
	rate.GST = round(rate.GST)
	rate.CGST = round(rate.CGST)
	rate.SGST = round(rate.SGST)
	rate.IGST = round(rate.IGST)
	rate.Cess = round(rate.Cess)
	return rate
}

// Import validates a batch of rates and stores it. Ranges may not overlap
// each other or any stored range of the same code.
func (r *Resolver) Import(ctx context.Context, rates []Rate) (int, error) {
	if len(rates) == 0 {
		return 0, nil
	}
	codes := make([]string, 0, len(rates))
	seen := make(map[string]bool)
	for i := range rates {
		rates[i].HSNSAC = NormalizeHSN(rates[i].HSNSAC)
		if err := validateRate(rates[i]); err != nil {
			return 0, fmt.Errorf("row %d: %w", i+1, err)
		}
		if !seen[rates[i].HSNSAC] {
			seen[rates[i].HSNSAC] = true
			codes = append(codes, rates[i].HSNSAC)
		}
	}
	existing, err := r.store.RatesForCodes(ctx, codes)
	if err != nil {
		return 0, err
	}
	if err := checkOverlaps(append(existing, rates...)); err != nil {
		return 0, err
	}
	if err := r.store.InsertRates(ctx, rates); err != nil {
		return 0, err
	}
	if err := r.cache.Bump(ctx); err != nil {
		r.logger.Warn("gst rate cache bump", slog.Any("error", err))
	}
	r.logger.Info("gst rates imported", slog.Int("rows", len(rates)), slog.Int("codes", len(codes)))
	return len(rates), nil
}
