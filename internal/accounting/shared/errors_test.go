package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestErrorUnwrapsToKind(t *testing.T) {
	err := fmt.Errorf("post: %w", Validation("missing_party", "party ledger required"))
	require.True(t, errors.Is(err, ErrValidation))
	require.False(t, errors.Is(err, ErrNotFound))
	require.Equal(t, "missing_party", Reason(err))
	require.Contains(t, err.Error(), "party ledger required")
}

func TestOverAllocationDetail(t *testing.T) {
	err := OverAllocation(7, decimal.RequireFromString("480"), decimal.RequireFromString("500"))
	require.ErrorIs(t, err, ErrOverAllocation)
	require.Equal(t, "accounting: allocation exceeds bill amount: over_allocation: bill 7 remaining 480 requested 500", err.Error())
}

func TestReasonOfPlainError(t *testing.T) {
	require.Empty(t, Reason(errors.New("x")))
	require.Equal(t, "ledger_not_found", Reason(NotFound("ledger", 3)))
}
