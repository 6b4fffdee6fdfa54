// Package money holds the currency and rounding policy applied to every amount.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// RoundingMode selects how amounts are rounded to the policy scale.
type RoundingMode string

const (
	// RoundHalfUp rounds .5 away from zero.
	RoundHalfUp RoundingMode = "HALF_UP"
	// RoundHalfEven rounds .5 to the nearest even digit.
	RoundHalfEven RoundingMode = "HALF_EVEN"
)

// Policy carries the currency, scale and rounding mode. It is passed
// explicitly into the tax and posting code.
type Policy struct {
	Currency string
	Places   int32
	Mode     RoundingMode
	Locale   language.Tag
}

// Default is INR, two places, half-up.
func Default() Policy {
	return Policy{Currency: "INR", Places: 2, Mode: RoundHalfUp, Locale: language.Make("en-IN")}
}

// NewPolicy validates the supplied settings.
func NewPolicy(currency string, places int32, mode string) (Policy, error) {
	p := Default()
	if currency != "" {
		p.Currency = strings.ToUpper(currency)
	}
	if places < 0 || places > 4 {
		return Policy{}, fmt.Errorf("money: unsupported scale %d", places)
	}
	p.Places = places
	switch RoundingMode(strings.ToUpper(mode)) {
	case "", RoundHalfUp:
		p.Mode = RoundHalfUp
	case RoundHalfEven:
		p.Mode = RoundHalfEven
	default:
		return Policy{}, errors.New("money: unsupported rounding mode " + mode)
	}
	return p, nil
}

// Round applies the policy scale and mode.
func (p Policy) Round(d decimal.Decimal) decimal.Decimal {
	if p.Mode == RoundHalfEven {
		return d.RoundBank(p.Places)
	}
	return d.Round(p.Places)
}

// RoundScale applies the policy mode at an explicit scale, e.g. for rates.
func (p Policy) RoundScale(d decimal.Decimal, places int32) decimal.Decimal {
	if p.Mode == RoundHalfEven {
		return d.RoundBank(places)
	}
	return d.Round(places)
}

// Unit is the smallest representable amount, e.g. 0.01.
func (p Policy) Unit() decimal.Decimal {
	return decimal.New(1, -p.Places)
}

// Percent returns base * rate / 100 without rounding.
func (p Policy) Percent(base, rate decimal.Decimal) decimal.Decimal {
	return base.Mul(rate).Div(hundred)
}

// Format renders an amount with locale digit grouping, e.g. "INR 1,18,000.00".
func (p Policy) Format(d decimal.Decimal) string {
	tag := p.Locale
	if tag == language.Und {
		tag = language.Make("en-IN")
	}
	printer := message.NewPrinter(tag)
	value := p.Round(d).InexactFloat64()
	return printer.Sprintf("%s %v", p.Currency, number.Decimal(value, number.Scale(int(p.Places))))
}

var hundred = decimal.NewFromInt(100)
