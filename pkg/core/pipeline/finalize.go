package pipeline

import (
	"alphaseeker/pkg/core/merge"
	"alphaseeker/pkg/core/valuation"
	"alphaseeker/pkg/models"
)

// finalize fills derived fields the model left empty. It never overwrites a
// value the model supplied.
func finalize(out *models.AnalysisContext, req *merge.Request) {
	if out.Ticker == "" {
		out.Ticker = req.Ticker
	}
	if out.FinancialSnapshot == nil && !req.Snapshot.IsEmpty() {
		snap := req.Snapshot
		out.FinancialSnapshot = &snap
	}
	if len(out.NorthStarMetrics) == 0 && len(req.Metrics) > 0 {
		out.NorthStarMetrics = append([]models.CustomMetric(nil), req.Metrics...)
	}

	// Descriptive blocks a REACT reply omitted are carried over from the prior pass.
	if req.Prior != nil {
		if out.Currency == "" {
			out.Currency = req.Prior.Currency
		}
		if out.BusinessModel == nil {
			out.BusinessModel = req.Prior.BusinessModel
		}
		if out.MoatAnalysis == nil {
			out.MoatAnalysis = req.Prior.MoatAnalysis
		}
		if out.AnalysisBroken == nil {
			out.AnalysisBroken = req.Prior.AnalysisBroken
		}
		if out.ValuationType == "" {
			out.ValuationType = req.Prior.ValuationType
		}
	}

	summary, err := valuation.Summarize(out.Valuations, req.Price)
	if err != nil {
		return
	}
	if out.FairValueRange.IsZero() {
		rng := summary.Range
		out.FairValueRange = &rng
	}
	if summary.HasMargin {
		if out.MarginOfSafety == "" {
			out.MarginOfSafety = valuation.FormatMargin(summary.MarginOfSafety)
		}
		if out.ValuationVerdict == "" {
			out.ValuationVerdict = summary.Verdict
		}
	}
}
