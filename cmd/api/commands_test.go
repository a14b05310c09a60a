package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alphaseeker/pkg/core/prompt"
)

func TestReadRecords_JSONL(t *testing.T) {
	in := `{"ticker":"AAA","timestamp":"2024-01-02T10:00:00","price":10,"data":{"company_name":"A"}}

{"ticker":"BBB","price":null,"data":{"company_name":"B"}}
`
	recs, err := readRecords(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "AAA", recs[0].Ticker)
	assert.Equal(t, "2024-01-02T10:00:00", recs[0].Timestamp)
	assert.Equal(t, 10.0, recs[0].Price)
	assert.Zero(t, recs[1].Price)
	assert.JSONEq(t, `{"company_name":"B"}`, string(recs[1].Data))
}

func TestReadRecords_Array(t *testing.T) {
	recs, err := readRecords(strings.NewReader(` [{"ticker":"AAA","data":{}},{"ticker":"BBB","data":{}}]`))
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestReadRecords_BadLine(t *testing.T) {
	_, err := readRecords(strings.NewReader("{\"ticker\":\"AAA\"}\n{broken\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "alphaseeker dev\n", out.String())
}

func TestPromptsCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"prompts"})
	require.NoError(t, cmd.Execute())

	got := out.String()
	for _, id := range []string{prompt.AnalysisChallenge, prompt.AnalysisInitial, prompt.AnalysisReact} {
		assert.Contains(t, got, id)
	}
	assert.True(t, strings.HasSuffix(got, "3 prompts\n"))
}
