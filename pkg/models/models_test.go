package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumber_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    float64
		wantErr bool
	}{
		{"plain number", `12.5`, 12.5, false},
		{"exponent", `1e3`, 1000, false},
		{"numeric string", `"7.25"`, 7.25, false},
		{"thousands separator", `"1,234"`, 1234, false},
		{"percent", `"35%"`, 35, false},
		{"word", `"high"`, 0, true},
		{"empty string", `""`, 0, true},
		{"overflow", `1e400`, 0, true},
		{"negative overflow", `-1e400`, 0, true},
		{"overflow string", `"1e400"`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var n Number
			err := json.Unmarshal([]byte(tt.input), &n)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, n.Float64(), 1e-9)
		})
	}
}

func TestNormalizeTicker(t *testing.T) {
	assert.Equal(t, "9992.HK", NormalizeTicker(" 9992.hk "))
	assert.Equal(t, "AAPL", NormalizeTicker("aapl"))
	assert.Equal(t, "", NormalizeTicker("   "))
}

func TestParseTimestamp(t *testing.T) {
	ts, err := ParseTimestamp("2025-01-02T15:04:05.123456")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 2, 15, 4, 5, 123456000, time.UTC), ts)

	ts, err = ParseTimestamp("2025-01-02T15:04:05+08:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 2, 7, 4, 5, 0, time.UTC), ts)

	_, err = ParseTimestamp("yesterday")
	assert.Error(t, err)
}

func TestHistoryEntry_LegacyRecordUpgrade(t *testing.T) {
	line := `{"timestamp": "2024-11-05T10:00:00.5", "price": null,
		"data": {"ticker": "nvda", "company_name": "NVIDIA", "radar_scores": {"moat": 9}}}`

	var e HistoryEntry
	require.NoError(t, json.Unmarshal([]byte(line), &e))
	assert.Equal(t, "NVDA", e.Ticker)
	assert.Equal(t, "nvda", e.Data.Ticker)
	assert.Equal(t, 0.0, e.Price)
	assert.NotEmpty(t, e.ID)

	// Derived ids are stable across reads.
	var again HistoryEntry
	require.NoError(t, json.Unmarshal([]byte(line), &again))
	assert.Equal(t, e.ID, again.ID)
}

func TestHistoryEntry_RejectsRecordsWithoutTickerOrData(t *testing.T) {
	var e HistoryEntry
	assert.Error(t, json.Unmarshal([]byte(`{"timestamp":"2024-01-01T00:00:00Z","data":{}}`), &e))
	assert.Error(t, json.Unmarshal([]byte(`{"ticker":"AAPL","timestamp":"2024-01-01T00:00:00Z"}`), &e))
}

func TestNewHistoryEntry_ContextTakesEntryTicker(t *testing.T) {
	e := NewHistoryEntry(" aaa ", time.Time{}, 10, AnalysisContext{Ticker: "BBB"})
	assert.Equal(t, "AAA", e.Ticker)
	assert.Equal(t, "AAA", e.Data.Ticker)
}

func TestHistoryEntry_RoundTrip(t *testing.T) {
	ctx := AnalysisContext{
		CompanyName: "Apple",
		Scores: ScoreVector{
			Moat: NumberPtr(9), Management: NumberPtr(8), FinancialHealth: NumberPtr(9),
			Growth: NumberPtr(6), Valuation: NumberPtr(5),
		},
		MasterViews: map[string]interface{}{"buffett": "wonderful business"},
		Valuations: ValuationResult{
			"DCF": {FairValue: NumberPtr(210), Reasoning: "10y DCF"},
		},
	}
	e := NewHistoryEntry("aapl", time.Time{}, 190.5, ctx)
	assert.Equal(t, "AAPL", e.Data.Ticker)

	data, err := json.Marshal(e)
	require.NoError(t, err)

	var got HistoryEntry
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, e.ID, got.ID)
	assert.True(t, e.Timestamp.Equal(got.Timestamp))
	assert.Equal(t, e.Data, got.Data)
}

func TestAnalysisContext_CloneDoesNotAlias(t *testing.T) {
	orig := &AnalysisContext{
		CompanyName:      "Pop Mart",
		MasterViews:      map[string]interface{}{"lynch": "growth"},
		NorthStarMetrics: []CustomMetric{{Name: "GMV", CurrentValue: "1.2B"}},
	}
	cp := orig.Clone()
	cp.MasterViews["lynch"] = "changed"
	cp.NorthStarMetrics[0].CurrentValue = "9.9B"

	assert.Equal(t, "growth", orig.MasterViews["lynch"])
	assert.Equal(t, "1.2B", orig.NorthStarMetrics[0].CurrentValue)
	assert.Nil(t, (*AnalysisContext)(nil).Clone())
}

func TestFinancialSnapshot_Split(t *testing.T) {
	s := FinancialSnapshot{Period: "Q3", Metrics: map[string]string{
		"revenue": "10B", "pe_ttm": "30", "gmv": "2B",
	}}
	assert.Equal(t, map[string]string{"revenue": "10B", "pe_ttm": "30"}, s.Recognized())
	assert.Equal(t, map[string]string{"gmv": "2B"}, s.Other())
	assert.Equal(t, "N/A", s.Get("net_profit", "N/A"))
	assert.False(t, s.IsEmpty())
	assert.True(t, FinancialSnapshot{}.IsEmpty())
}
