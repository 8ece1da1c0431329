// Package money holds the monetary type used by the cart and checkout.
// Prices arrive from the catalog as display strings ("$12.00"); they are
// parsed once into an Amount and never carried as text through arithmetic.
package money

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Symbol is the currency symbol used for display and stripped on parse.
const Symbol = "$"

var ErrInvalidPrice = errors.New("invalid price")

// Amount is an immutable decimal money value. The zero value is 0.
type Amount struct {
	d decimal.Decimal
}

// Zero returns a zero amount
func Zero() Amount {
	return Amount{d: decimal.Zero}
}

// New creates an Amount from a decimal
func New(d decimal.Decimal) Amount {
	return Amount{d: d}
}

// FromCents creates an Amount from integer minor units
func FromCents(cents int64) Amount {
	return Amount{d: decimal.New(cents, -2)}
}

// FromFloat creates an Amount from a float64
func FromFloat(f float64) Amount {
	return Amount{d: decimal.NewFromFloat(f)}
}

// ParsePrice parses a display price such as "$1,250.00", "12.5" or " $3 ".
// The currency symbol is optional.
func ParsePrice(s string) (Amount, error) {
	raw := strings.TrimSpace(s)
	raw = strings.TrimPrefix(raw, Symbol)
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if raw == "" {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidPrice, s)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidPrice, s)
	}
	return Amount{d: d}, nil
}

// MustParsePrice is ParsePrice for literals; it panics on error
func MustParsePrice(s string) Amount {
	a, err := ParsePrice(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Amount) Decimal() decimal.Decimal { return a.d }

func (a Amount) Add(other Amount) Amount {
	return Amount{d: a.d.Add(other.d)}
}

// Mul multiplies the amount by an integer quantity
func (a Amount) Mul(quantity int) Amount {
	return Amount{d: a.d.Mul(decimal.NewFromInt(int64(quantity)))}
}

func (a Amount) IsZero() bool { return a.d.IsZero() }

func (a Amount) Equal(other Amount) bool { return a.d.Equal(other.d) }

// Float64 returns the numeric value for wire payloads that require a number.
// It is not rounded.
func (a Amount) Float64() float64 {
	f, _ := a.d.Float64()
	return f
}

// Cents returns the amount in minor units, rounded half away from zero
func (a Amount) Cents() int64 {
	return a.d.Shift(2).Round(0).IntPart()
}

// String formats the amount for display, e.g. "$25.00"
func (a Amount) String() string {
	return Symbol + a.d.StringFixed(2)
}

// Sum adds a list of amounts
func Sum(amounts ...Amount) Amount {
	total := Zero()
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// MarshalJSON keeps the "$12.00" shape the storefront has always written.
// Amounts finer than a cent are written in full so a round trip is exact.
func (a Amount) MarshalJSON() ([]byte, error) {
	if a.d.Equal(a.d.Round(2)) {
		return json.Marshal(a.String())
	}
	return json.Marshal(Symbol + a.d.String())
}

// UnmarshalJSON accepts a display string or a bare JSON number
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = Zero()
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := ParsePrice(s)
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	}
	d, err := decimal.NewFromString(string(data))
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidPrice, data)
	}
	*a = Amount{d: d}
	return nil
}
