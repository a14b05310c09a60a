// Package valuation derives the blended fair value, fair-value range, margin
// of safety and verdict from the per-method valuations of an analysis.
package valuation

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"

	"alphaseeker/pkg/models"
)

// Verdicts
const (
	VerdictBuy  = "BUY"
	VerdictHold = "HOLD"
	VerdictSell = "SELL"
)

// Margin-of-safety thresholds for the verdict.
var (
	BuyThreshold  = decimal.NewFromFloat(0.20)
	SellThreshold = decimal.NewFromFloat(-0.10)
)

// ErrNoFairValues is returned when no method carries a positive fair value.
var ErrNoFairValues = errors.New("no positive fair values")

// ValuationLineItem is one row in the summary table.
type ValuationLineItem struct {
	Method    string
	FairValue float64
}

// Summary aggregates the methods of one analysis.
type Summary struct {
	Items          []ValuationLineItem // sorted by method name
	Blended        float64             // mean of method fair values
	Range          models.FairValueRange
	MarginOfSafety float64 // (blended - price) / blended; 0 when price is unknown
	HasMargin      bool
	Verdict        string
}

// Summarize computes the summary for methods at the given price. Methods with
// a non-positive fair value are ignored.
func Summarize(methods models.ValuationResult, price float64) (Summary, error) {
	var s Summary
	for name, m := range methods {
		if m.FairValue == nil || *m.FairValue <= 0 {
			continue
		}
		s.Items = append(s.Items, ValuationLineItem{Method: name, FairValue: m.FairValue.Float64()})
	}
	if len(s.Items) == 0 {
		return s, ErrNoFairValues
	}
	sort.Slice(s.Items, func(i, j int) bool { return s.Items[i].Method < s.Items[j].Method })

	values := make([]float64, len(s.Items))
	sum := decimal.Zero
	for i, it := range s.Items {
		values[i] = it.FairValue
		sum = sum.Add(decimal.NewFromFloat(it.FairValue))
	}
	blended := sum.Div(decimal.NewFromInt(int64(len(values)))).Round(4)
	s.Blended, _ = blended.Float64()

	lo, hi := getRange(values)
	s.Range = models.FairValueRange{Low: models.Number(lo), High: models.Number(hi)}

	s.Verdict = VerdictHold
	if price > 0 {
		margin := blended.Sub(decimal.NewFromFloat(price)).Div(blended).Round(4)
		s.MarginOfSafety, _ = margin.Float64()
		s.HasMargin = true
		switch {
		case margin.GreaterThanOrEqual(BuyThreshold):
			s.Verdict = VerdictBuy
		case margin.LessThanOrEqual(SellThreshold):
			s.Verdict = VerdictSell
		}
	}
	return s, nil
}

// getRange returns the 25th and 75th percentile of values (nearest rank, no interpolation).
func getRange(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	lowIdx := int(float64(len(sorted)) * 0.25)
	highIdx := int(float64(len(sorted)) * 0.75)
	if highIdx >= len(sorted) {
		highIdx = len(sorted) - 1
	}
	return sorted[lowIdx], sorted[highIdx]
}

// FormatMargin renders a margin fraction as a signed percentage ("+23.5%").
func FormatMargin(margin float64) string {
	d := decimal.NewFromFloat(margin).Mul(decimal.NewFromInt(100)).Round(1)
	if d.IsPositive() {
		return "+" + d.StringFixed(1) + "%"
	}
	return d.StringFixed(1) + "%"
}
