// Package money holds fixed-point currency amounts as exchanged with the
// hospital API. Decimal fields arrive either as JSON strings ("125.50") or as
// plain numbers depending on the serializer, so Amount accepts both.
package money

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Amount is a currency value in cents.
type Amount int64

// FromCents returns an Amount for a whole number of cents.
func FromCents(c int64) Amount { return Amount(c) }

// Parse reads a decimal string such as "12", "12.5" or "-3.05".
// More than two fractional digits is rejected rather than rounded.
func Parse(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	neg := false
	if s[0] == '-' || s[0] == '+' {
		neg = s[0] == '-'
		s = s[1:]
	}
	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if hasFrac && len(frac) > 2 {
		return 0, fmt.Errorf("amount %q has more than two decimal places", s)
	}
	for len(frac) < 2 {
		frac += "0"
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	c := w*100 + f
	if neg {
		c = -c
	}
	return Amount(c), nil
}

// Cents returns the raw cent value.
func (a Amount) Cents() int64 { return int64(a) }

// String formats the amount with exactly two decimals.
func (a Amount) String() string {
	c := int64(a)
	sign := ""
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}

// Float64 is for display and spreadsheet output only.
func (a Amount) Float64() float64 { return float64(a) / 100 }

// MarshalJSON writes the amount as a decimal string, matching the API.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts "12.50", 12.5 and null.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = 0
		return nil
	}
	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	}
	parsed, err := Parse(normalizeNumber(raw))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// normalizeNumber trims float artefacts like "12.500000" down to two places
// when the extra digits are zeros.
func normalizeNumber(s string) string {
	whole, frac, ok := strings.Cut(s, ".")
	if !ok {
		return s
	}
	frac = strings.TrimRight(frac, "0")
	if frac == "" {
		return whole
	}
	return whole + "." + frac
}
