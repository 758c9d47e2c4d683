package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// moneyExponent is the fixed-point scale (10^-6) every Price and Volume
// is rounded to at construction and arithmetic boundaries.
const moneyExponent = -6

// Price is a fixed-point probability in [0, 1], 6-decimal precision.
// It is never a float64 outside the solver/projection math (§3).
type Price struct {
	d decimal.Decimal
}

// Volume is a non-negative fixed-point quantity, 6-decimal precision.
type Volume struct {
	d decimal.Decimal
}

// NewPrice builds a Price from a decimal string, rejecting values
// outside [0, 1].
func NewPrice(s string) (Price, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Price{}, fmt.Errorf("parse price %q: %w", s, err)
	}
	return PriceFromDecimal(d)
}

// PriceFromDecimal rounds d to 6 decimals and validates [0, 1].
func PriceFromDecimal(d decimal.Decimal) (Price, error) {
	d = d.Round(-moneyExponent)
	if d.LessThan(decimal.Zero) || d.GreaterThan(decimal.NewFromInt(1)) {
		return Price{}, fmt.Errorf("price %s out of range [0,1]", d)
	}
	return Price{d: d}, nil
}

// PriceFromFloat converts solver/projection output back to fixed-point.
// Callers outside the solver must not construct prices this way.
func PriceFromFloat(f float64) Price {
	d := decimal.NewFromFloat(f).Round(-moneyExponent)
	if d.LessThan(decimal.Zero) {
		d = decimal.Zero
	}
	if d.GreaterThan(decimal.NewFromInt(1)) {
		d = decimal.NewFromInt(1)
	}
	return Price{d: d}
}

func (p Price) Decimal() decimal.Decimal { return p.d }
func (p Price) Float64() float64         { f, _ := p.d.Float64(); return f }
func (p Price) String() string           { return p.d.StringFixed(-moneyExponent) }
func (p Price) IsZero() bool             { return p.d.IsZero() }

func (p Price) Add(o Price) Price            { return Price{d: p.d.Add(o.d)} }
func (p Price) Sub(o Price) Price            { return Price{d: p.d.Sub(o.d)} }
func (p Price) Cmp(o Price) int              { return p.d.Cmp(o.d) }
func (p Price) LessThan(o Price) bool        { return p.d.LessThan(o.d) }
func (p Price) GreaterThan(o Price) bool     { return p.d.GreaterThan(o.d) }
func (p Price) LessThanOrEqual(o Price) bool { return p.d.LessThanOrEqual(o.d) }

// NewVolume builds a Volume from a decimal string, rejecting negatives.
func NewVolume(s string) (Volume, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Volume{}, fmt.Errorf("parse volume %q: %w", s, err)
	}
	return VolumeFromDecimal(d)
}

// VolumeFromDecimal rounds d to 6 decimals and validates non-negativity.
func VolumeFromDecimal(d decimal.Decimal) (Volume, error) {
	d = d.Round(-moneyExponent)
	if d.LessThan(decimal.Zero) {
		return Volume{}, fmt.Errorf("volume %s is negative", d)
	}
	return Volume{d: d}, nil
}

// VolumeFromFloat converts a raw API/wire float64 into fixed-point,
// clamping negative inputs to zero rather than erroring.
func VolumeFromFloat(f float64) Volume {
	d := decimal.NewFromFloat(f).Round(-moneyExponent)
	if d.LessThan(decimal.Zero) {
		d = decimal.Zero
	}
	return Volume{d: d}
}

func (v Volume) Decimal() decimal.Decimal { return v.d }
func (v Volume) Float64() float64         { f, _ := v.d.Float64(); return f }
func (v Volume) String() string           { return v.d.StringFixed(-moneyExponent) }
func (v Volume) IsZero() bool             { return v.d.IsZero() }

func (v Volume) Add(o Volume) Volume     { return Volume{d: v.d.Add(o.d)} }
func (v Volume) Sub(o Volume) Volume     { return Volume{d: v.d.Sub(o.d)} }
func (v Volume) Min(o Volume) Volume     { return Volume{d: decimal.Min(v.d, o.d)} }
func (v Volume) Cmp(o Volume) int        { return v.d.Cmp(o.d) }
func (v Volume) LessThan(o Volume) bool  { return v.d.LessThan(o.d) }
func (v Volume) GreaterThan(o Volume) bool { return v.d.GreaterThan(o.d) }

// Mul returns the notional (price * volume) as a Volume-scale decimal.
func (p Price) Mul(v Volume) decimal.Decimal { return p.d.Mul(v.d) }

// ZeroPrice and ZeroVolume are the canonical zero values, useful where a
// literal Price{}/Volume{} would be ambiguous at the call site.
var (
	ZeroPrice  = Price{d: decimal.Zero}
	ZeroVolume = Volume{d: decimal.Zero}
)
