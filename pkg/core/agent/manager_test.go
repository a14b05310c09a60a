package agent

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alphaseeker/pkg/core/llm"
)

type recordingProvider struct {
	name    string
	system  string
	options map[string]interface{}
}

func (p *recordingProvider) GenerateResponse(_ context.Context, prompt, systemPrompt string, options map[string]interface{}) (string, error) {
	p.system = systemPrompt
	p.options = options
	return p.name + ":" + prompt, nil
}

func (p *recordingProvider) AdaptInstructions(raw string) string { return "[" + p.name + "] " + raw }

func newTestManager(t *testing.T) (*Manager, *recordingProvider, *recordingProvider) {
	m, err := NewManager(Config{
		ActiveProvider: "deepseek",
		Providers: map[string]llm.Config{
			"deepseek": {Type: "deepseek"},
			"claude":   {Type: "claude"},
		},
		Agents: map[string]AgentConfig{
			RoleChallenge: {Provider: "claude", Options: map[string]any{"temperature": 0.8}},
			RoleReact:     {Provider: "missing"},
		},
	}, zerolog.Nop())
	require.NoError(t, err)

	ds := &recordingProvider{name: "deepseek"}
	cl := &recordingProvider{name: "claude"}
	m.Register("deepseek", ds)
	m.Register("claude", cl)
	return m, ds, cl
}

func TestManager_RoutesRoles(t *testing.T) {
	m, ds, cl := newTestManager(t)
	ctx := context.Background()

	out, err := m.ExecutePrompt(ctx, RoleAnalysis, "p1", "sys", nil)
	require.NoError(t, err)
	assert.Equal(t, "deepseek:p1", out)
	assert.Equal(t, "[deepseek] sys", ds.system)

	out, err = m.ExecutePrompt(ctx, RoleChallenge, "p2", "sys", map[string]interface{}{"model": "x"})
	require.NoError(t, err)
	assert.Equal(t, "claude:p2", out)
	assert.Equal(t, 0.8, cl.options["temperature"])
	assert.Equal(t, "x", cl.options["model"])

	// Unknown override falls back to the active provider.
	out, err = m.ExecutePrompt(ctx, RoleReact, "p3", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "deepseek:p3", out)
}

func TestManager_SwitchProvider(t *testing.T) {
	m, _, _ := newTestManager(t)

	require.NoError(t, m.SetGlobalProvider("claude"))
	assert.Equal(t, "claude", m.GetActiveProvider())

	out, err := m.ExecutePrompt(context.Background(), RoleAnalysis, "p", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "claude:p", out)

	assert.Error(t, m.SetGlobalProvider("kimi"))
	assert.Equal(t, []string{"claude", "deepseek"}, m.Available())
}

func TestNewManager_Defaults(t *testing.T) {
	m, err := NewManager(Config{}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "openai", m.GetActiveProvider())
	assert.Contains(t, m.Available(), "gemini_legacy")
	assert.Contains(t, m.Available(), "claude")

	_, err = NewManager(Config{ActiveProvider: "nope"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestManager_RoleOverrides(t *testing.T) {
	m, _, _ := newTestManager(t)
	assert.Equal(t, map[string]string{RoleChallenge: "claude", RoleReact: "missing"}, m.RoleOverrides())
}

func TestManager_LogsResolvedProvider(t *testing.T) {
	var buf bytes.Buffer
	m, err := NewManager(Config{
		ActiveProvider: "deepseek",
		Agents:         map[string]AgentConfig{RoleChallenge: {Provider: "claude"}},
	}, zerolog.New(&buf).Level(zerolog.DebugLevel))
	require.NoError(t, err)
	m.Register("deepseek", &recordingProvider{name: "deepseek"})
	m.Register("claude", &recordingProvider{name: "claude"})

	_, err = m.ExecutePrompt(context.Background(), RoleChallenge, "p", "", nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"provider":"claude"`)
	assert.NotContains(t, buf.String(), `"provider":"deepseek"`)
}
