package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Money is an amount in minor currency units (1/100 of the major unit).
type Money int64

// ParseMoney parses a non-negative decimal amount with at most two fractional
// digits, e.g. "2", "2.5" or "2.50".
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" || (hasFrac && (frac == "" || len(frac) > 2)) {
		return 0, fmt.Errorf("invalid amount %q", s)
	}

	major, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || major < 0 {
		return 0, fmt.Errorf("invalid amount %q", s)
	}

	var minor int64
	if hasFrac {
		if len(frac) == 1 {
			frac += "0"
		}
		minor, err = strconv.ParseInt(frac, 10, 64)
		if err != nil || minor < 0 {
			return 0, fmt.Errorf("invalid amount %q", s)
		}
	}

	return Money(major*100 + minor), nil
}

// Times multiplies the amount by a whole quantity.
func (m Money) Times(n int64) Money {
	return m * Money(n)
}

// String formats the amount with exactly two fractional digits.
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}
