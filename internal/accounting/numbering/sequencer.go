// Package numbering assigns voucher numbers per tenant and voucher type.
package numbering

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/gstbooks/internal/accounting/shared"
)

// Method selects who chooses the number.
type Method string

const (
	MethodAutomatic Method = "AUTOMATIC"
	MethodManual    Method = "MANUAL"
)

const (
	defaultWidth    = 6
	maxManualLength = 50
	// maxReversalSuffix bounds the -R, -R2, ... search for a free number.
	maxReversalSuffix = 999
)

// Series identifies the number space of a voucher type.
type Series struct {
	TypeID int64
	Prefix string
	Method Method
}

// Counter is the persistence behind a sequence. Implementations must run
// inside the caller's transaction so a rollback releases the number.
type Counter interface {
	Increment(ctx context.Context, tenantID, typeID int64) (int64, error)
	NumberExists(ctx context.Context, tenantID, typeID int64, number string) (bool, error)
	// NumberInUse also counts drafts, which hold their number in the unique index.
	NumberInUse(ctx context.Context, tenantID, typeID int64, number string) (bool, error)
}

// Sequencer hands out gap-free numbers for automatic series and checks
// uniqueness for manual ones.
type Sequencer struct {
	width int
}

// NewSequencer returns a sequencer padding counters to six digits.
func NewSequencer() *Sequencer {
	return &Sequencer{width: defaultWidth}
}

// Assign returns the number for a voucher being posted. manual is the
// caller-chosen number and is only accepted for manual series.
func (s *Sequencer) Assign(ctx context.Context, c Counter, tenantID int64, series Series, manual string) (string, error) {
	switch series.Method {
	case MethodAutomatic:
		if strings.TrimSpace(manual) != "" {
			return "", shared.Validation("manual_number_not_allowed", "voucher type %d numbers automatically", series.TypeID)
		}
		n, err := c.Increment(ctx, tenantID, series.TypeID)
		if err != nil {
			return "", err
		}
		return Format(series.Prefix, n, s.width), nil
	case MethodManual:
		number := strings.TrimSpace(manual)
		if err := ValidateManual(number); err != nil {
			return "", err
		}
		taken, err := c.NumberExists(ctx, tenantID, series.TypeID, number)
		if err != nil {
			return "", err
		}
		if taken {
			return "", shared.Validation("duplicate_voucher_number", "voucher number %s already used", number)
		}
		return number, nil
	default:
		return "", shared.Validation("invalid_numbering", "unknown numbering method %q", series.Method)
	}
}

// AssignReversal numbers the voucher reversing original. Automatic series
// take the next counter value. Manual series derive original-R, then
// original-R2 and so on until a free number turns up; the derived number is
// not held to the manual length limit so any posted voucher can be reversed.
func (s *Sequencer) AssignReversal(ctx context.Context, c Counter, tenantID int64, series Series, original string) (string, error) {
	if series.Method != MethodManual {
		return s.Assign(ctx, c, tenantID, series, "")
	}
	if original == "" {
		return "", shared.Validation("missing_voucher_number", "voucher to reverse has no number")
	}
	for i := 1; i <= maxReversalSuffix; i++ {
		candidate := original + "-R"
		if i > 1 {
			candidate = fmt.Sprintf("%s-R%d", original, i)
		}
		taken, err := c.NumberInUse(ctx, tenantID, series.TypeID, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", shared.InvalidState("reversal_numbers_exhausted", "no free reversal number for %s", original)
}

// ValidateManual checks the shape of a caller-chosen number.
func ValidateManual(number string) error {
	if number == "" {
		return shared.Validation("missing_voucher_number", "manual voucher types need a number")
	}
	if utf8.RuneCountInString(number) > maxManualLength {
		return shared.Validation("voucher_number_too_long", "voucher number exceeds %d characters", maxManualLength)
	}
	return nil
}

// Format renders prefix plus the zero padded counter, e.g. SAL/000042.
func Format(prefix string, n int64, width int) string {
	return fmt.Sprintf("%s%0*d", prefix, width, n)
}

// PgCounter implements Counter on an open pgx transaction.
type PgCounter struct {
	tx pgx.Tx
}

// NewPgCounter wraps tx.
func NewPgCounter(tx pgx.Tx) *PgCounter {
	return &PgCounter{tx: tx}
}

// Increment bumps the tenant/type counter. The upsert keeps the row locked
// until the transaction ends, so concurrent posts of one series queue here
// and a rolled back post leaves no gap.
func (p *PgCounter) Increment(ctx context.Context, tenantID, typeID int64) (int64, error) {
	var n int64
	err := p.tx.QueryRow(ctx, `INSERT INTO voucher_sequences (tenant_id, voucher_type_id, last_number) VALUES ($1,$2,1)
ON CONFLICT (tenant_id, voucher_type_id) DO UPDATE SET last_number = voucher_sequences.last_number + 1, updated_at = NOW()
RETURNING last_number`, tenantID, typeID).Scan(&n)
	return n, err
}

// NumberExists reports whether a posted or cancelled voucher already holds
// number. Drafts are skipped since a manual draft carries its own number.
func (p *PgCounter) NumberExists(ctx context.Context, tenantID, typeID int64, number string) (bool, error) {
	var exists bool
	err := p.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM vouchers WHERE tenant_id=$1 AND voucher_type_id=$2 AND voucher_number=$3 AND status <> 'DRAFT')`,
		tenantID, typeID, number).Scan(&exists)
	return exists, err
}

// NumberInUse reports whether any voucher of the series, draft or not, holds
// number.
func (p *PgCounter) NumberInUse(ctx context.Context, tenantID, typeID int64, number string) (bool, error) {
	var exists bool
	err := p.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM vouchers WHERE tenant_id=$1 AND voucher_type_id=$2 AND voucher_number=$3)`,
		tenantID, typeID, number).Scan(&exists)
	return exists, err
}
