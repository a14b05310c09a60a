package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Number is a float64 that tolerates the numeric strings models like to emit
// ("12.5", "1,234", "35%") in addition to plain JSON numbers.
type Number float64

// ParseNumber converts a numeric-looking string into a Number.
func ParseNumber(s string) (Number, error) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.TrimSuffix(cleaned, "%")
	cleaned = strings.NewReplacer(",", "", "_", "", " ", "").Replace(cleaned)
	if cleaned == "" {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	f, ok := finite(cleaned)
	if !ok {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return Number(f), nil
}

// finite parses s and rejects values that overflow float64.
func finite(s string) (float64, bool) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	f, _ := d.Float64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// UnmarshalJSON accepts a JSON number or a numeric string.
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := ParseNumber(s)
		if err != nil {
			return err
		}
		*n = v
		return nil
	}
	f, ok := finite(string(data))
	if !ok {
		return fmt.Errorf("not a number: %s", data)
	}
	*n = Number(f)
	return nil
}

// Float64 returns the value as a float64.
func (n Number) Float64() float64 { return float64(n) }

// NumberPtr is a convenience for building ScoreVector and ValuationMethod literals.
func NumberPtr(v float64) *Number {
	n := Number(v)
	return &n
}
