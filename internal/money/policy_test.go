package money

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestRoundHalfUp(t *testing.T) {
	p := Default()
	require.Equal(t, "90.01", p.Round(decimal.RequireFromString("90.005")).StringFixed(2))
	require.Equal(t, "90.00", p.Round(decimal.RequireFromString("90.004")).StringFixed(2))
}

func TestRoundHalfEven(t *testing.T) {
	p, err := NewPolicy("inr", 2, "half_even")
	require.NoError(t, err)
	require.Equal(t, "INR", p.Currency)
	require.Equal(t, "90.00", p.Round(decimal.RequireFromString("90.005")).StringFixed(2))
	require.Equal(t, "90.02", p.Round(decimal.RequireFromString("90.015")).StringFixed(2))
}

func TestNewPolicyRejectsUnknownMode(t *testing.T) {
	_, err := NewPolicy("INR", 2, "ceiling")
	require.Error(t, err)
	_, err = NewPolicy("INR", 9, "")
	require.Error(t, err)
}

func TestPercentAndUnit(t *testing.T) {
	p := Default()
	got := p.Percent(decimal.NewFromInt(1000), decimal.NewFromInt(9))
	require.True(t, got.Equal(decimal.NewFromInt(90)))
	require.Equal(t, "0.01", p.Unit().String())
}

func TestFormatUsesCurrencyPrefix(t *testing.T) {
	out := Default().Format(decimal.RequireFromString("1180"))
	require.True(t, strings.HasPrefix(out, "INR "), out)
	require.Contains(t, out, "1,180.00")
}
