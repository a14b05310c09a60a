// Package merge combines new inputs with a ticker's prior analysis into a
// well-formed model request.
package merge

import (
	"errors"
	"fmt"

	"alphaseeker/pkg/core/prompt"
	"alphaseeker/pkg/models"
)

// Request is a tagged variant: Prior is set exactly when Mode is REACT.
type Request struct {
	Mode     models.Mode
	Ticker   string
	Price    float64
	Snapshot models.FinancialSnapshot
	Metrics  []models.CustomMetric   // merged North-Star set
	Prior    *models.AnalysisContext // deep copy of the stored context, never shared
}

// Merge builds the request for one analysis pass. A nil prior yields an
// INITIAL request, anything else a REACT request carrying a clone of prior.
func Merge(prior *models.AnalysisContext, ticker string, snapshot models.FinancialSnapshot, metrics []models.CustomMetric, price float64) *Request {
	req := &Request{
		Mode:     models.ModeInitial,
		Ticker:   models.NormalizeTicker(ticker),
		Price:    price,
		Snapshot: snapshot,
	}
	if prior == nil {
		req.Metrics = MergeMetrics(nil, metrics)
		return req
	}

	req.Mode = models.ModeReact
	req.Prior = prior.Clone()
	req.Metrics = MergeMetrics(req.Prior.NorthStarMetrics, metrics)
	return req
}

// MergeMetrics overlays updates onto base by name. Base order is kept, names
// only in updates are appended in update order, and a later duplicate wins.
func MergeMetrics(base, updates []models.CustomMetric) []models.CustomMetric {
	out := make([]models.CustomMetric, 0, len(base)+len(updates))
	index := make(map[string]int, len(base)+len(updates))

	put := func(m models.CustomMetric) {
		if m.Name == "" {
			return
		}
		if i, ok := index[m.Name]; ok {
			out[i] = m
			return
		}
		index[m.Name] = len(out)
		out = append(out, m)
	}
	for _, m := range base {
		put(m)
	}
	for _, m := range updates {
		put(m)
	}
	return out
}

// Validate checks the variant tag against the payload.
func (r *Request) Validate() error {
	if r.Ticker == "" {
		return errors.New("request has no ticker")
	}
	switch r.Mode {
	case models.ModeInitial:
		if r.Prior != nil {
			return errors.New("INITIAL request must not carry a prior context")
		}
	case models.ModeReact:
		if r.Prior == nil {
			return errors.New("REACT request requires a prior context")
		}
	default:
		return fmt.Errorf("unknown mode %q", r.Mode)
	}
	return nil
}

// PromptID names the template used for this request's mode.
func (r *Request) PromptID() string {
	if r.Mode == models.ModeReact {
		return prompt.AnalysisReact
	}
	return prompt.AnalysisInitial
}

// Render applies the request to its prompt template.
func (r *Request) Render(reg *prompt.Registry) (system, user string, err error) {
	if err := r.Validate(); err != nil {
		return "", "", err
	}

	ctx := prompt.NewContext().
		Set("Ticker", r.Ticker).
		Set("Price", r.Price).
		Set("Period", r.Snapshot.Period).
		Set("OtherMetrics", r.Snapshot.Other()).
		Set("NorthStarMetrics", r.Metrics)

	if r.Mode == models.ModeInitial {
		ctx.Set("Financials", r.Snapshot.Recognized())
		return reg.Render(r.PromptID(), ctx)
	}

	const na = "N/A"
	ctx.Set("CompanyName", r.Prior.CompanyName).
		Set("PriorContext", r.Prior).
		Set("Revenue", r.Snapshot.Get(models.MetricRevenue, na)).
		Set("RevenueGrowth", r.Snapshot.Get(models.MetricRevenueGrowthYoY, na)).
		Set("NetProfit", r.Snapshot.Get(models.MetricNetProfit, na)).
		Set("ProfitGrowth", r.Snapshot.Get(models.MetricProfitGrowthYoY, na)).
		Set("PETTM", r.Snapshot.Get(models.MetricPETTM, na))
	if r.Snapshot.Period == "" {
		ctx.Set("Period", "Unknown")
	}
	return reg.Render(r.PromptID(), ctx)
}
