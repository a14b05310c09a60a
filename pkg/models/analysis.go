package models

import (
	"encoding/json"
	"strings"
)

// Mode selects how an analysis pass treats prior history for a ticker.
type Mode string

const (
	ModeInitial Mode = "INITIAL" // No prior history, fresh analysis
	ModeReact   Mode = "REACT"   // Incremental update reconciling a prior context
)

// Recognized FinancialSnapshot metric keys. Anything else is carried through opaquely.
const (
	MetricRevenue          = "revenue"
	MetricNetProfit        = "net_profit"
	MetricPETTM            = "pe_ttm"
	MetricRevenueGrowthYoY = "revenue_growth_yoy"
	MetricProfitGrowthYoY  = "profit_growth_yoy"
)

var recognizedMetrics = map[string]bool{
	MetricRevenue:          true,
	MetricNetProfit:        true,
	MetricPETTM:            true,
	MetricRevenueGrowthYoY: true,
	MetricProfitGrowthYoY:  true,
}

// CustomMetric is a user-defined North-Star KPI tracked alongside the standard fields.
type CustomMetric struct {
	Name         string `json:"name" validate:"required"`
	CurrentValue string `json:"current_value"`
	Unit         string `json:"unit"`
}

// FinancialSnapshot is the financial data delivered with a REACT update (e.g. a new earnings release).
type FinancialSnapshot struct {
	Period  string            `json:"period"`
	Metrics map[string]string `json:"metrics"`
}

// IsEmpty reports whether the snapshot carries no period and no metrics.
func (s FinancialSnapshot) IsEmpty() bool {
	return strings.TrimSpace(s.Period) == "" && len(s.Metrics) == 0
}

// Get returns the metric value, or fallback when the key is absent or blank.
func (s FinancialSnapshot) Get(key, fallback string) string {
	if v, ok := s.Metrics[key]; ok && strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}

// Other returns the metrics outside the recognized key set.
func (s FinancialSnapshot) Other() map[string]string {
	other := make(map[string]string)
	for k, v := range s.Metrics {
		if !recognizedMetrics[k] {
			other[k] = v
		}
	}
	return other
}

// ScoreVector is the five-dimension radar score. Every dimension is required and lies in [0,10].
type ScoreVector struct {
	Moat            *Number `json:"moat" validate:"required,gte=0,lte=10"`
	Management      *Number `json:"management" validate:"required,gte=0,lte=10"`
	FinancialHealth *Number `json:"financial_health" validate:"required,gte=0,lte=10"`
	Growth          *Number `json:"growth" validate:"required,gte=0,lte=10"`
	Valuation       *Number `json:"valuation" validate:"required,gte=0,lte=10"`
}

// ScoreDimensions lists the JSON names of the ScoreVector dimensions.
var ScoreDimensions = []string{"moat", "management", "financial_health", "growth", "valuation"}

// ValuationMethod is the outcome of one valuation model (DCF, PEG, PB, PS, ...).
type ValuationMethod struct {
	FairValue *Number                `json:"fair_value" validate:"required,gte=0"`
	Reasoning string                 `json:"reasoning" validate:"required"`
	Params    map[string]interface{} `json:"params,omitempty"`
}

// ValuationResult maps a valuation method name to its result.
type ValuationResult map[string]ValuationMethod

// FairValueRange is the low/high band of per-share fair value.
type FairValueRange struct {
	Low  Number `json:"low"`
	High Number `json:"high"`
}

// IsZero reports whether the range was never populated.
func (r *FairValueRange) IsZero() bool {
	return r == nil || (r.Low == 0 && r.High == 0)
}

// AnalysisContext is the complete structured output of one analysis pass.
// It is the unit persisted in history and carried forward into REACT updates.
// The JSON layout matches the history records written by earlier releases.
type AnalysisContext struct {
	Ticker        string                 `json:"ticker"`
	CompanyName   string                 `json:"company_name" validate:"required"`
	Currency      string                 `json:"currency,omitempty"`
	BusinessModel map[string]interface{} `json:"business_model,omitempty"`
	MoatAnalysis  map[string]interface{} `json:"moat_analysis,omitempty"`

	Scores           ScoreVector    `json:"radar_scores"`
	NorthStarMetrics []CustomMetric `json:"north_star_metrics,omitempty" validate:"omitempty,dive"`

	AnalysisNormal map[string]interface{} `json:"analysis_normal,omitempty"`
	AnalysisBroken map[string]interface{} `json:"analysis_broken,omitempty"`
	MasterViews    map[string]interface{} `json:"master_views" validate:"required,min=1"`

	ValuationType    string          `json:"valuation_type,omitempty"`
	Valuations       ValuationResult `json:"valuations" validate:"required,min=1,dive"`
	FairValueRange   *FairValueRange `json:"fair_value_range,omitempty"`
	MarginOfSafety   string          `json:"margin_of_safety,omitempty"`
	ValuationVerdict string          `json:"valuation_verdict,omitempty"`
	VerdictReasoning string          `json:"verdict_reasoning,omitempty"`

	// Populated by REACT passes
	ReactSummary                 string `json:"react_summary,omitempty"`
	NorthStarAnalysis            string `json:"north_star_analysis,omitempty"`
	ValuationAdjustmentReasoning string `json:"valuation_adjustment_reasoning,omitempty"`

	FinancialSnapshot *FinancialSnapshot `json:"financial_snapshot,omitempty"`
	ReasoningTrace    string             `json:"reasoning_trace,omitempty"`
}

// Clone returns a deep copy so callers can hold transient copies without aliasing stored data.
func (c *AnalysisContext) Clone() *AnalysisContext {
	if c == nil {
		return nil
	}
	data, err := json.Marshal(c)
	if err != nil {
		cp := *c
		return &cp
	}
	var out AnalysisContext
	if err := json.Unmarshal(data, &out); err != nil {
		cp := *c
		return &cp
	}
	return &out
}

// Recognized returns only the metrics with a well-known key.
func (s FinancialSnapshot) Recognized() map[string]string {
	out := make(map[string]string)
	for k, v := range s.Metrics {
		if recognizedMetrics[k] {
			out[k] = v
		}
	}
	return out
}
