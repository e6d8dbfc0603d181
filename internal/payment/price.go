package payment

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidPrice = errors.New("invalid price")

// Price is a positive USD amount such as "$0.001" or "1.00".
type Price struct {
	d decimal.Decimal
}

// ParsePrice accepts an optional leading "$".
func ParsePrice(s string) (Price, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(s), "$")
	if raw == "" {
		return Price{}, fmt.Errorf("%w: empty", ErrInvalidPrice)
	}

	d, err := decimal.NewFromString(raw)
	if err != nil {
		return Price{}, fmt.Errorf("%w: %q: %v", ErrInvalidPrice, s, err)
	}
	if !d.IsPositive() {
		return Price{}, fmt.Errorf("%w: %q must be > 0", ErrInvalidPrice, s)
	}

	return Price{d: d}, nil
}

// MustPrice is ParsePrice for constants; it panics on bad input.
func MustPrice(s string) Price {
	p, err := ParsePrice(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Price) UnmarshalText(text []byte) error {
	parsed, err := ParsePrice(string(text))
	if err != nil {
		return err
	}

	*p = parsed
	return nil
}

func (p Price) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p Price) String() string {
	return "$" + p.d.String()
}

func (p Price) IsZero() bool {
	return p.d.IsZero()
}

// AtomicAmount converts the price into integer token units for a token with
// the given number of decimals. Prices finer than one unit are rejected.
func (p Price) AtomicAmount(decimals int32) (string, error) {
	units := p.d.Shift(decimals)
	if !units.IsInteger() {
		return "", fmt.Errorf("%w: %s is below the token's precision", ErrInvalidPrice, p)
	}

	return units.String(), nil
}

// UnitsOf reports how many whole unit prices fit in p.
func (p Price) UnitsOf(unit Price) int64 {
	if !unit.d.IsPositive() {
		return 0
	}

	return p.d.Div(unit.d).Floor().IntPart()
}
