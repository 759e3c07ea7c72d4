package model

import (
	"bytes"
	"fmt"

	"github.com/shopspring/decimal"
)

// Cost is an optional price. It is stored as a decimal string and written
// to JSON as a bare number or null.
type Cost struct {
	decimal.NullDecimal
}

// NewCost returns a set cost.
func NewCost(d decimal.Decimal) Cost {
	return Cost{decimal.NullDecimal{Decimal: d, Valid: true}}
}

// ParseCost parses a decimal string into a set cost.
func ParseCost(s string) (Cost, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Cost{}, fmt.Errorf("parsing cost %q: %w", s, err)
	}
	return NewCost(d), nil
}

// Equal reports whether both costs are unset or hold the same amount.
func (c Cost) Equal(other Cost) bool {
	if c.Valid != other.Valid {
		return false
	}
	return !c.Valid || c.Decimal.Equal(other.Decimal)
}

// String renders the cost with two decimals, or an empty string when unset.
func (c Cost) String() string {
	if !c.Valid {
		return ""
	}
	return c.Decimal.StringFixed(2)
}

func (c Cost) MarshalJSON() ([]byte, error) {
	if !c.Valid {
		return []byte("null"), nil
	}
	return []byte(c.Decimal.StringFixed(2)), nil
}

func (c *Cost) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*c = Cost{}
		return nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	*c = NewCost(d)
	return nil
}
