package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltin_LoadsAnalysisPrompts(t *testing.T) {
	r, err := Builtin()
	require.NoError(t, err)

	assert.Equal(t, []string{AnalysisChallenge, AnalysisInitial, AnalysisReact}, r.ListPrompts())

	pt, err := r.GetPrompt(AnalysisReact)
	require.NoError(t, err)
	assert.Equal(t, "analysis", pt.Category)
	assert.Equal(t, "analysis_context", pt.ResponseSchemaID)

	_, err = r.GetSchema("analysis_context")
	assert.NoError(t, err)
}

func TestRender_InitialPrompt(t *testing.T) {
	r, err := Builtin()
	require.NoError(t, err)

	ctx := NewContext().
		Set("Ticker", "9992.HK").
		Set("Price", 185.5).
		Set("Financials", map[string]string{"revenue": "13B"}).
		Set("NorthStarMetrics", []map[string]string{{"name": "Overseas share"}})

	system, user, err := r.Render(AnalysisInitial, ctx)
	require.NoError(t, err)
	assert.Contains(t, system, "radar_scores")
	assert.Contains(t, system, "Return exactly one JSON object")
	assert.Contains(t, user, "Ticker: 9992.HK")
	assert.Contains(t, user, "185.5")
	assert.Contains(t, user, `"revenue": "13B"`)
	assert.Contains(t, user, "Overseas share")
	assert.Contains(t, user, "Reporting period: N/A")
}

func TestRender_MissingRequiredVariable(t *testing.T) {
	r, err := Builtin()
	require.NoError(t, err)

	_, _, err = r.Render(AnalysisChallenge, NewContext().Set("CompanyName", "X"))
	assert.ErrorContains(t, err, "BearArgument")

	_, _, err = r.Render("analysis.unknown", NewContext())
	assert.Error(t, err)
}

func TestLoadFromDirectory_Overrides(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "prompts", "analysis"), 0o755))
	body := `{
  # comments are fine in hjson
  system_prompt: Custom system for {{.CompanyName}}
  user_prompt_template: "{{.BearArgument}}"
  variables: [{ name: "BearArgument", required: true }]
}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prompts", "analysis", "challenge.hjson"), []byte(body), 0o644))

	r, err := Builtin()
	require.NoError(t, err)
	require.NoError(t, r.LoadFromDirectory(dir))

	system, user, err := r.Render(AnalysisChallenge, NewContext().Set("CompanyName", "Acme").Set("BearArgument", "too expensive"))
	require.NoError(t, err)
	assert.Equal(t, "Custom system for Acme", system)
	assert.Equal(t, "too expensive", user)
	assert.Equal(t, 3, r.Count())
}

func TestLoadFromDirectory_MissingPromptsDir(t *testing.T) {
	assert.Error(t, NewRegistry().LoadFromDirectory(t.TempDir()))
}
