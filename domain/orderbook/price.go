package orderbook

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places carried by Price and Quantity.
const Scale = 8

const unit = 100_000_000

// Price is a fixed-point price in units of 10^-Scale. Using an integer
// keeps level keys exact no matter which feed produced the order.
type Price int64

// Quantity is a fixed-point size in units of 10^-Scale.
type Quantity int64

// ErrOutOfRange reports a decimal that does not fit the fixed-point range.
var ErrOutOfRange = errors.New("orderbook: value out of fixed-point range")

// fromDecimal scales and rounds d. ok is false when the result does not
// fit an int64; v is then saturated to the nearest bound.
func fromDecimal(d decimal.Decimal) (v int64, ok bool) {
	n := d.Shift(Scale).RoundBank(0).BigInt()
	if n.IsInt64() {
		return n.Int64(), true
	}
	if n.Sign() < 0 {
		return math.MinInt64, false
	}
	return math.MaxInt64, false
}

func toDecimal(v int64) decimal.Decimal {
	return decimal.New(v, -Scale)
}

// PriceFromDecimal rounds d half-to-even at Scale digits, saturating at
// the int64 bounds.
func PriceFromDecimal(d decimal.Decimal) Price {
	v, _ := fromDecimal(d)
	return Price(v)
}

// PriceFromFloat converts f through its shortest decimal representation.
func PriceFromFloat(f float64) Price { return PriceFromDecimal(decimal.NewFromFloat(f)) }

// ParsePrice parses a decimal string such as "64012.15".
func ParsePrice(s string) (Price, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", s, err)
	}
	v, ok := fromDecimal(d)
	if !ok {
		return 0, fmt.Errorf("parse price %q: %w", s, ErrOutOfRange)
	}
	return Price(v), nil
}

func (p Price) Decimal() decimal.Decimal { return toDecimal(int64(p)) }
func (p Price) Float64() float64         { return float64(p) / unit }
func (p Price) String() string           { return p.Decimal().String() }

// QuantityFromDecimal rounds d half-to-even at Scale digits, saturating at
// the int64 bounds.
func QuantityFromDecimal(d decimal.Decimal) Quantity {
	v, _ := fromDecimal(d)
	return Quantity(v)
}

// QuantityFromFloat converts f through its shortest decimal representation.
func QuantityFromFloat(f float64) Quantity { return QuantityFromDecimal(decimal.NewFromFloat(f)) }

// ParseQuantity parses a decimal string such as "0.00150000".
func ParseQuantity(s string) (Quantity, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse quantity %q: %w", s, err)
	}
	v, ok := fromDecimal(d)
	if !ok {
		return 0, fmt.Errorf("parse quantity %q: %w", s, ErrOutOfRange)
	}
	return Quantity(v), nil
}

func (q Quantity) Decimal() decimal.Decimal { return toDecimal(int64(q)) }
func (q Quantity) Float64() float64         { return float64(q) / unit }
func (q Quantity) String() string           { return q.Decimal().String() }
