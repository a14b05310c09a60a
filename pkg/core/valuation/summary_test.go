package valuation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alphaseeker/pkg/models"
)

func methods(values map[string]float64) models.ValuationResult {
	out := models.ValuationResult{}
	for k, v := range values {
		out[k] = models.ValuationMethod{FairValue: models.NumberPtr(v), Reasoning: k}
	}
	return out
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name     string
		values   map[string]float64
		price    float64
		blended  float64
		low      float64
		high     float64
		margin   float64
		verdict  string
		noMargin bool
	}{
		{
			name:    "undervalued",
			values:  map[string]float64{"DCF": 120, "PEG": 100, "PB": 80, "PS": 100},
			price:   75,
			blended: 100, low: 100, high: 120, margin: 0.25, verdict: VerdictBuy,
		},
		{
			name:    "fair",
			values:  map[string]float64{"DCF": 110, "PEG": 90},
			price:   95,
			blended: 100, low: 90, high: 110, margin: 0.05, verdict: VerdictHold,
		},
		{
			name:    "overvalued",
			values:  map[string]float64{"DCF": 50},
			price:   60,
			blended: 50, low: 50, high: 50, margin: -0.2, verdict: VerdictSell,
		},
		{
			name:    "unknown price",
			values:  map[string]float64{"DCF": 50, "junk": 0},
			blended: 50, low: 50, high: 50, verdict: VerdictHold,
			noMargin: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Summarize(methods(tt.values), tt.price)
			require.NoError(t, err)
			assert.InDelta(t, tt.blended, s.Blended, 1e-9)
			assert.InDelta(t, tt.low, s.Range.Low.Float64(), 1e-9)
			assert.InDelta(t, tt.high, s.Range.High.Float64(), 1e-9)
			assert.Equal(t, tt.verdict, s.Verdict)
			assert.Equal(t, !tt.noMargin, s.HasMargin)
			if !tt.noMargin {
				assert.InDelta(t, tt.margin, s.MarginOfSafety, 1e-9)
			}
		})
	}
}

func TestSummarize_NoFairValues(t *testing.T) {
	_, err := Summarize(methods(map[string]float64{"DCF": 0}), 10)
	assert.ErrorIs(t, err, ErrNoFairValues)

	_, err = Summarize(nil, 10)
	assert.ErrorIs(t, err, ErrNoFairValues)
}

func TestSummarize_ItemsSorted(t *testing.T) {
	s, err := Summarize(methods(map[string]float64{"PS": 1, "DCF": 2, "PEG": 3}), 0)
	require.NoError(t, err)
	require.Len(t, s.Items, 3)
	assert.Equal(t, "DCF", s.Items[0].Method)
	assert.Equal(t, "PS", s.Items[2].Method)
}

func TestFormatMargin(t *testing.T) {
	assert.Equal(t, "+23.5%", FormatMargin(0.2349))
	assert.Equal(t, "-10.0%", FormatMargin(-0.1))
	assert.Equal(t, "0.0%", FormatMargin(0))
}
