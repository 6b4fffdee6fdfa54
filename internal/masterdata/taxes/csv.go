package taxes

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var csvColumns = []string{"hsn_sac", "rate", "cgst_rate", "sgst_rate", "igst_rate", "cess_rate", "effective_from", "effective_to"}

// ParseCSV reads rates from a CSV file with a header row naming the
// columns hsn_sac, rate, cgst_rate, sgst_rate, igst_rate, cess_rate,
// effective_from and effective_to. Column order is free; cess_rate and
// effective_to may be blank. When the split columns are blank they are
// derived from rate (half each for CGST/SGST, full for IGST).
func ParseCSV(r io.Reader) ([]Rate, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("taxes: read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"hsn_sac", "rate", "effective_from"} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("taxes: missing column %s", required)
		}
	}
	field := func(record []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var out []Rate
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("taxes: line %d: %w", line, err)
		}
		rate, err := parseRecord(func(name string) string { return field(record, name) })
		if err != nil {
			return nil, fmt.Errorf("taxes: line %d: %w", line, err)
		}
		out = append(out, rate)
	}
	return out, nil
}

func parseRecord(get func(string) string) (Rate, error) {
	values := make(map[string]decimal.Decimal)
	for _, col := range csvColumns[1:6] {
		raw := get(col)
		if raw == "" {
			continue
		}
		d, err := decimal.NewFromString(strings.TrimSuffix(raw, "%"))
		if err != nil {
			return Rate{}, fmt.Errorf("%s: %w", col, err)
		}
		values[col] = d
	}
	gst := values["rate"]
	rate := Rate{
		HSNSAC: NormalizeHSN(get("hsn_sac")),
		GST:    gst,
		CGST:   valueOr(values, "cgst_rate", gst.Div(decimal.NewFromInt(2))),
		SGST:   valueOr(values, "sgst_rate", gst.Div(decimal.NewFromInt(2))),
		IGST:   valueOr(values, "igst_rate", gst),
		Cess:   values["cess_rate"],
	}
	from, err := time.Parse(time.DateOnly, get("effective_from"))
	if err != nil {
		return Rate{}, fmt.Errorf("effective_from: %w", err)
	}
	rate.EffectiveFrom = from
	if raw := get("effective_to"); raw != "" {
		to, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return Rate{}, fmt.Errorf("effective_to: %w", err)
		}
		rate.EffectiveTo = &to
	}
	return rate, nil
}

func valueOr(values map[string]decimal.Decimal, key string, fallback decimal.Decimal) decimal.Decimal {
	if v, ok := values[key]; ok {
		return v
	}
	return fallback
}
