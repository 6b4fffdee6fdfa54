package taxes

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/gstbooks/internal/accounting/shared"
)

var maxRate = decimal.NewFromInt(100)

// NormalizeHSN strips whitespace and dots, e.g. "8471.30" -> "847130".
func NormalizeHSN(code string) string {
	code = strings.TrimSpace(code)
	code = strings.ReplaceAll(code, ".", "")
	return strings.ReplaceAll(code, " ", "")
}

func validateRate(r Rate) error {
	if r.HSNSAC == "" {
		return shared.Validation("missing_hsn_sac", "hsn/sac code required")
	}
	for _, v := range []decimal.Decimal{r.GST, r.CGST, r.SGST, r.IGST, r.Cess} {
		if v.IsNegative() || v.GreaterThan(maxRate) {
			return shared.Validation("rate_out_of_range", "hsn %s rate must be between 0 and 100", r.HSNSAC)
		}
	}
	if !r.CGST.Add(r.SGST).Equal(r.GST) {
		return shared.Validation("split_mismatch", "hsn %s cgst+sgst must equal %s", r.HSNSAC, r.GST)
	}
	if !r.IGST.Equal(r.GST) {
		return shared.Validation("igst_mismatch", "hsn %s igst must equal %s", r.HSNSAC, r.GST)
	}
	if r.EffectiveFrom.IsZero() {
		return shared.Validation("missing_effective_from", "hsn %s needs effective_from", r.HSNSAC)
	}
	if r.EffectiveTo != nil && !truncateDay(*r.EffectiveTo).After(truncateDay(r.EffectiveFrom)) {
		return shared.Validation("invalid_range", "hsn %s effective_to must be after effective_from", r.HSNSAC)
	}
	return nil
}

// checkOverlaps fails when two rates of the same code share a day.
func checkOverlaps(rates []Rate) error {
	byCode := make(map[string][]Rate)
	for _, r := range rates {
		byCode[r.HSNSAC] = append(byCode[r.HSNSAC], r)
	}
	for code, list := range byCode {
		sort.Slice(list, func(i, j int) bool { return list[i].EffectiveFrom.Before(list[j].EffectiveFrom) })
		for i := 1; i < len(list); i++ {
			if list[i-1].Overlaps(list[i]) {
				return &shared.Error{Kind: shared.ErrValidation, Reason: "rate_overlap",
					Detail: "hsn " + code + " ranges starting " + list[i-1].EffectiveFrom.Format("2006-01-02") + " and " + list[i].EffectiveFrom.Format("2006-01-02") + " overlap"}
			}
		}
	}
	return nil
}
