package taxes

import (
	"time"

	"github.com/shopspring/decimal"
)

// Rate is a GST rate for an HSN/SAC code valid over [EffectiveFrom, EffectiveTo).
// A nil EffectiveTo is open ended.
type Rate struct {
	ID            int64           `json:"id"`
	HSNSAC        string          `json:"hsn_sac"`
	GST           decimal.Decimal `json:"rate"`
	CGST          decimal.Decimal `json:"cgst_rate"`
	SGST          decimal.Decimal `json:"sgst_rate"`
	IGST          decimal.Decimal `json:"igst_rate"`
	Cess          decimal.Decimal `json:"cess_rate"`
	EffectiveFrom time.Time       `json:"effective_from"`
	EffectiveTo   *time.Time      `json:"effective_to,omitempty"`
}

// Covers reports whether asOf falls inside the rate's range.
func (r Rate) Covers(asOf time.Time) bool {
	day := truncateDay(asOf)
	if day.Before(truncateDay(r.EffectiveFrom)) {
		return false
	}
	return r.EffectiveTo == nil || day.Before(truncateDay(*r.EffectiveTo))
}

// Overlaps reports whether two ranges share at least one day.
func (r Rate) Overlaps(o Rate) bool {
	// [a,b) and [c,d) overlap iff a < d and c < b; nil ends are +inf.
	if r.EffectiveTo != nil && !truncateDay(o.EffectiveFrom).Before(truncateDay(*r.EffectiveTo)) {
		return false
	}
	if o.EffectiveTo != nil && !truncateDay(r.EffectiveFrom).Before(truncateDay(*o.EffectiveTo)) {
		return false
	}
	return true
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
