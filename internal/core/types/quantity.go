// Package types provides common value types shared by the engine.
package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Quantity is a fixed-point quantity with 4 decimal places (scale = 1e4).
//
// Stored as NUMERIC(18,4) in Postgres; converted through decimal.Decimal at
// the repository boundary so no float rounding leaks into the ledger.
type Quantity int64

// QuantityScale is the number of Quantity units per whole unit.
const QuantityScale int64 = 10_000

const quantityExp int32 = -4

// NewQuantity creates a Quantity from a whole number of units.
func NewQuantity(units int64) Quantity { return Quantity(units * QuantityScale) }

// NewQuantityFromFloat64 rounds v to 4 decimal places.
func NewQuantityFromFloat64(v float64) Quantity {
	return Quantity(math.Round(v * float64(QuantityScale)))
}

var (
	maxQuantityUnits = decimal.NewFromInt(math.MaxInt64)
	minQuantityUnits = decimal.NewFromInt(math.MinInt64)
)

// ErrQuantityOutOfRange is returned when a value does not fit in a Quantity.
var ErrQuantityOutOfRange = errors.New("quantity out of range")

// QuantityFromDecimal converts d, truncating beyond 4 decimal places.
// Values outside the int64 range of scaled units return ErrQuantityOutOfRange.
func QuantityFromDecimal(d decimal.Decimal) (Quantity, error) {
	units := d.Shift(-quantityExp).Truncate(0)
	if units.GreaterThan(maxQuantityUnits) || units.LessThan(minQuantityUnits) {
		return 0, fmt.Errorf("%w: %s", ErrQuantityOutOfRange, d.String())
	}
	return Quantity(units.IntPart()), nil
}

// QuantityDecoder converts several decimals and keeps the first error,
// so row conversions can check once at the end.
type QuantityDecoder struct {
	err error
}

// Decode converts d. After the first failure it returns 0 and keeps that error.
func (qd *QuantityDecoder) Decode(d decimal.Decimal) Quantity {
	if qd.err != nil {
		return 0
	}
	q, err := QuantityFromDecimal(d)
	if err != nil {
		qd.err = err
		return 0
	}
	return q
}

func (qd *QuantityDecoder) Err() error { return qd.err }

// ParseQuantity parses a decimal string such as "12.5".
func ParseQuantity(s string) (Quantity, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty quantity")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse quantity: %w", err)
	}
	return QuantityFromDecimal(d)
}

// Decimal returns the exact decimal value.
func (q Quantity) Decimal() decimal.Decimal { return decimal.New(int64(q), quantityExp) }

func (q Quantity) Float64() float64 { return float64(q) / float64(QuantityScale) }

func (q Quantity) IsZero() bool { return q == 0 }

func (q Quantity) IsPositive() bool { return q > 0 }

func (q Quantity) IsNegative() bool { return q < 0 }

func (q Quantity) Neg() Quantity { return -q }

// ClampZero returns max(0, q).
func (q Quantity) ClampZero() Quantity {
	if q < 0 {
		return 0
	}
	return q
}

// String returns a decimal string with 4 fractional digits.
func (q Quantity) String() string {
	return q.Decimal().StringFixed(-quantityExp)
}

// Display returns the shortest decimal form ("10", "7.5") for human-facing text.
func (q Quantity) Display() string {
	return q.Decimal().String()
}

// MarshalJSON encodes Quantity as a JSON number.
func (q Quantity) MarshalJSON() ([]byte, error) {
	return []byte(q.Display()), nil
}

// UnmarshalJSON accepts either a JSON number or string.
func (q *Quantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*q = 0
		return nil
	}

	raw := string(data)
	if len(data) >= 2 && data[0] == '"' && data[len(data)-1] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = s
	}

	parsed, err := ParseQuantity(raw)
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}
