package utils

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPayload(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "bare object",
			input: `{"a": 1}`,
			want:  `{"a": 1}`,
		},
		{
			name:  "json fence wins over earlier plain fence",
			input: "Here:\n```\nnot json\n```\n\n```json\n{\"a\": 2}\n```\nbye",
			want:  `{"a": 2}`,
		},
		{
			name:  "untagged fence",
			input: "```\n{\"a\": 3}\n```",
			want:  `{"a": 3}`,
		},
		{
			name:  "prose wrapped with braces in strings",
			input: `Sure! The result is {"note": "use {braces} \" freely", "n": 4} hope it helps {x}`,
			want:  `{"note": "use {braces} \" freely", "n": 4}`,
		},
		{
			name:  "truncated object kept for repair",
			input: `Result: {"a": [1, 2`,
			want:  `{"a": [1, 2`,
		},
		{
			name:    "no object at all",
			input:   "I cannot help with that.",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractPayload(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoPayload)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSanitizeJSON(t *testing.T) {
	in := "noise {“name”: \"line1\nline2\"} trailing"
	out := SanitizeJSON(in)

	var v map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, "line1\nline2", v["name"])
}

func TestRepairJSON(t *testing.T) {
	repaired, err := RepairJSON(`{"a": 1, "b": [1, 2,],}`)
	require.NoError(t, err)

	var v map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(repaired), &v))
	assert.Equal(t, float64(1), v["a"])
}

func TestParseHJSON(t *testing.T) {
	out, err := ParseHJSON("{\n  # comment\n  name: Apple\n  score: 9\n}")
	require.NoError(t, err)

	var v map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, "Apple", v["name"])
	assert.Equal(t, float64(9), v["score"])
}

func TestSmartParse(t *testing.T) {
	var v struct {
		Verdict string `json:"verdict"`
	}

	_, err := SmartParse("```json\n{\"verdict\": \"hold\",}\n```", &v)
	require.NoError(t, err)
	assert.Equal(t, "hold", v.Verdict)

	_, err = SmartParse("nothing structured here", &v)
	assert.Error(t, err)
}

func TestFencedBlocks(t *testing.T) {
	blocks := FencedBlocks("text\n```JSON\n{}\n```\n\n```go\nfunc main() {}\n```\n")
	require.Len(t, blocks, 2)
	assert.Equal(t, "json", blocks[0].Language)
	assert.Equal(t, "{}\n", blocks[0].Body)
	assert.Equal(t, "go", blocks[1].Language)
}
