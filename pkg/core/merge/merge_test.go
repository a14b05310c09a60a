package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alphaseeker/pkg/core/prompt"
	"alphaseeker/pkg/models"
)

func priorContext() *models.AnalysisContext {
	return &models.AnalysisContext{
		Ticker:      "9992.HK",
		CompanyName: "Pop Mart",
		MasterViews: map[string]interface{}{"lynch": "fast grower"},
		NorthStarMetrics: []models.CustomMetric{
			{Name: "Overseas revenue share", CurrentValue: "20%", Unit: "%"},
			{Name: "Members", CurrentValue: "30M"},
		},
		Valuations: models.ValuationResult{"DCF": {FairValue: models.NumberPtr(150), Reasoning: "base"}},
	}
}

func TestMerge_InitialWithoutPrior(t *testing.T) {
	req := Merge(nil, " 9992.hk", models.FinancialSnapshot{}, []models.CustomMetric{
		{Name: "GMV", CurrentValue: "1B"},
		{Name: "GMV", CurrentValue: "2B"},
	}, 180)

	assert.Equal(t, models.ModeInitial, req.Mode)
	assert.Equal(t, "9992.HK", req.Ticker)
	assert.Nil(t, req.Prior)
	assert.Equal(t, []models.CustomMetric{{Name: "GMV", CurrentValue: "2B"}}, req.Metrics)
	assert.NoError(t, req.Validate())
}

func TestMerge_ReactOverridesByNameAndPassesThrough(t *testing.T) {
	prior := priorContext()
	req := Merge(prior, "9992.HK", models.FinancialSnapshot{Period: "2025H1"}, []models.CustomMetric{
		{Name: "Overseas revenue share", CurrentValue: "35%", Unit: "%"},
		{Name: "Store count", CurrentValue: "500"},
	}, 200)

	require.Equal(t, models.ModeReact, req.Mode)
	assert.Equal(t, []models.CustomMetric{
		{Name: "Overseas revenue share", CurrentValue: "35%", Unit: "%"},
		{Name: "Members", CurrentValue: "30M"},
		{Name: "Store count", CurrentValue: "500"},
	}, req.Metrics)
}

func TestMerge_PriorIsNotModified(t *testing.T) {
	prior := priorContext()
	snapshot := prior.Clone()

	req := Merge(prior, "9992.HK", models.FinancialSnapshot{}, []models.CustomMetric{{Name: "Members", CurrentValue: "40M"}}, 1)

	// The request carries an equal but independent copy.
	assert.Equal(t, snapshot, prior)
	assert.Equal(t, prior, req.Prior)
	req.Prior.MasterViews["lynch"] = "changed"
	req.Prior.NorthStarMetrics[1].CurrentValue = "changed"
	assert.Equal(t, snapshot, prior)
}

func TestRequest_Validate(t *testing.T) {
	assert.Error(t, (&Request{Mode: models.ModeReact, Ticker: "A"}).Validate())
	assert.Error(t, (&Request{Mode: models.ModeInitial, Ticker: "A", Prior: priorContext()}).Validate())
	assert.Error(t, (&Request{Mode: "BOTH", Ticker: "A"}).Validate())
	assert.Error(t, (&Request{Mode: models.ModeInitial}).Validate())
}

func TestRequest_Render(t *testing.T) {
	reg, err := prompt.Builtin()
	require.NoError(t, err)

	snapshot := models.FinancialSnapshot{Period: "2025Q2", Metrics: map[string]string{
		"revenue": "5.6B", "revenue_growth_yoy": "204%", "gmv_overseas": "2.1B",
	}}

	t.Run("initial", func(t *testing.T) {
		system, user, err := Merge(nil, "9992.HK", snapshot, nil, 250).Render(reg)
		require.NoError(t, err)
		assert.NotEmpty(t, system)
		assert.Contains(t, user, "9992.HK")
		assert.Contains(t, user, "5.6B")
		assert.Contains(t, user, "gmv_overseas")
	})

	t.Run("react", func(t *testing.T) {
		system, user, err := Merge(priorContext(), "9992.HK", snapshot, nil, 250).Render(reg)
		require.NoError(t, err)
		assert.Contains(t, system, "Pop Mart")
		assert.Contains(t, user, "Prior analysis")
		assert.Contains(t, user, "Revenue: 5.6B (YoY 204%)")
		assert.Contains(t, user, "Net profit: N/A")
		assert.Contains(t, user, "Overseas revenue share")
	})

	t.Run("invalid variant", func(t *testing.T) {
		_, _, err := (&Request{Mode: models.ModeReact, Ticker: "X"}).Render(reg)
		assert.Error(t, err)
	})
}
