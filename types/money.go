// Package types provides shared domain types: integer-cents Money and the
// Entity timestamp embed.
package types

import (
	"database/sql/driver"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Money is a USD amount stored as an integer number of cents.
//
// All arithmetic is integer-only. On the wire (JSON) a Money value is a
// decimal number of dollars ("25.5"), which is what the dashboard consumes;
// parsing rejects anything with sub-cent precision.
type Money int64

// Cents constructs a Money from an integer number of cents.
func Cents(n int64) Money { return Money(n) }

// Dollars constructs a Money from a whole number of dollars.
func Dollars(n int64) Money { return Money(n * 100) }

// FromFloat converts a float dollar amount to Money, rejecting values that
// do not land exactly on a cent (within half a millicent of tolerance, to
// absorb binary float representation of values like 10.1).
func FromFloat(dollars float64) (Money, error) {
	if math.IsNaN(dollars) || math.IsInf(dollars, 0) {
		return 0, fmt.Errorf("money: invalid amount %v", dollars)
	}

	cents := dollars * 100
	rounded := math.Round(cents)
	if math.Abs(cents-rounded) > 0.0005 {
		return 0, fmt.Errorf("money: amount %v has sub-cent precision", dollars)
	}
	if rounded > math.MaxInt64 || rounded < math.MinInt64 {
		return 0, fmt.Errorf("money: amount %v out of range", dollars)
	}

	return Money(int64(rounded)), nil
}

// ParseUSD parses a decimal dollar string ("25", "25.5", "-3.07") into
// Money. At most two fractional digits are accepted.
func ParseUSD(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("money: empty amount")
	}

	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return 0, fmt.Errorf("money: invalid amount %q", s)
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > 2 {
		return 0, fmt.Errorf("money: amount %q has sub-cent precision", s)
	}

	dollars, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("money: invalid amount %q: %w", s, err)
	}

	var cents int64
	if frac != "" {
		// Right-pad so ".5" means 50 cents, not 5.
		for len(frac) < 2 {
			frac += "0"
		}
		cents, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("money: invalid amount %q: %w", s, err)
		}
	}

	total := dollars*100 + cents
	if neg {
		total = -total
	}

	return Money(total), nil
}

// Cents returns the raw cent count.
func (m Money) Cents() int64 { return int64(m) }

// Float64 returns the amount as dollars. Intended for wire encoding only;
// never feed the result back into arithmetic.
func (m Money) Float64() float64 { return float64(m) / 100 }

// Add returns m + other.
func (m Money) Add(other Money) Money { return m + other }

// Sub returns m - other. The result may be negative.
func (m Money) Sub(other Money) Money { return m - other }

// Neg returns -m.
func (m Money) Neg() Money { return -m }

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool { return m == 0 }

// IsPositive reports whether the amount is strictly greater than zero.
func (m Money) IsPositive() bool { return m > 0 }

// IsNegative reports whether the amount is strictly less than zero.
func (m Money) IsNegative() bool { return m < 0 }

// String formats the amount as a dollar string, e.g. "25.50" or "-3.07".
func (m Money) String() string {
	cents := int64(m)
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}

	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// MarshalJSON encodes the amount as a decimal dollar number (25.5).
// Trailing fractional zeros are trimmed so whole amounts encode as
// integers, matching what the dashboard renders.
func (m Money) MarshalJSON() ([]byte, error) {
	cents := int64(m)
	if cents%100 == 0 {
		return []byte(strconv.FormatInt(cents/100, 10)), nil
	}

	s := m.String()
	s = strings.TrimRight(s, "0")

	return []byte(s), nil
}

// UnmarshalJSON accepts a decimal number or a quoted decimal string.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	s = strings.Trim(s, `"`)
	if s == "null" {
		return nil
	}

	parsed, err := ParseUSD(s)
	if err != nil {
		return err
	}

	*m = parsed

	return nil
}

// Value implements driver.Valuer; amounts persist as integer cents.
func (m Money) Value() (driver.Value, error) {
	return int64(m), nil
}

// Scan implements sql.Scanner.
func (m *Money) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*m = 0

		return nil
	case int64:
		*m = Money(v)

		return nil
	case float64:
		parsed, err := FromFloat(v / 100)
		if err != nil {
			return err
		}
		*m = parsed

		return nil
	case []byte:
		n, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return fmt.Errorf("money: cannot scan %q: %w", v, err)
		}
		*m = Money(n)

		return nil
	default:
		return fmt.Errorf("money: cannot scan %T into Money", src)
	}
}
