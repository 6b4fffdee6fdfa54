package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/odyssey-erp/gstbooks/internal/masterdata/taxes"
)

// RateImporter validates and stores a batch of GST rates.
type RateImporter interface {
	Import(ctx context.Context, rates []taxes.Rate) (int, error)
}

// RatesCLI offers operational helpers for the GST rate master.
type RatesCLI struct {
	importer RateImporter
}

// NewRatesCLI constructs the helper around the rate resolver.
func NewRatesCLI(importer RateImporter) *RatesCLI {
	return &RatesCLI{importer: importer}
}

// RatesImportOptions defines available flags for the rates import command.
type RatesImportOptions struct {
	Path       string
	DryRun     bool
	JSONOutput bool
	Stdin      io.Reader
	Stdout     io.Writer
	Stderr     io.Writer
}

// RatesImportSummary describes the JSON response for rates import.
type RatesImportSummary struct {
	OK       bool     `json:"ok"`
	DryRun   bool     `json:"dry_run"`
	Rows     int      `json:"rows"`
	Imported int      `json:"imported"`
	Codes    []string `json:"codes"`
}

// ImportCommand parses a rate CSV and stores it. A path of "-" reads stdin.
func (c *RatesCLI) ImportCommand(ctx context.Context, opts RatesImportOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Path == "" {
		_, _ = fmt.Fprintln(opts.Stderr, "rates import: csv path is required")
		return 1
	}
	var src io.Reader
	if opts.Path == "-" {
		src = opts.Stdin
		if src == nil {
			src = os.Stdin
		}
	} else {
		f, err := os.Open(opts.Path)
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "rates import: %v\n", err)
			return 1
		}
		defer f.Close()
		src = f
	}

	rates, err := taxes.ParseCSV(src)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "rates import: %v\n", err)
		return 1
	}
	summary := RatesImportSummary{OK: true, DryRun: opts.DryRun, Rows: len(rates), Codes: distinctCodes(rates)}
	if !opts.DryRun {
		if c == nil || c.importer == nil {
			_, _ = fmt.Fprintln(opts.Stderr, "rates import: importer not configured")
			return 1
		}
		n, err := c.importer.Import(ctx, rates)
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "rates import: %v\n", err)
			return 1
		}
		summary.Imported = n
	}

	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(summary); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "rates import: encode json: %v\n", err)
			return 1
		}
		return 0
	}
	if opts.DryRun {
		_, _ = fmt.Fprintf(opts.Stdout, "parsed %d rates for %d codes (dry run)\n", summary.Rows, len(summary.Codes))
		return 0
	}
	_, _ = fmt.Fprintf(opts.Stdout, "imported %d rates for %d codes\n", summary.Imported, len(summary.Codes))
	return 0
}

func distinctCodes(rates []taxes.Rate) []string {
	seen := make(map[string]bool, len(rates))
	codes := make([]string, 0, len(rates))
	for _, r := range rates {
		code := taxes.NormalizeHSN(r.HSNSAC)
		if !seen[code] {
			seen[code] = true
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	return codes
}
