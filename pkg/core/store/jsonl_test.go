package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLStore_SkipsCorruptAndTornLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")

	good := entryAt("AAPL", 0, 1)
	line, err := json.Marshal(good)
	require.NoError(t, err)

	content := string(line) + "\n" +
		"this is not json\n" +
		`{"ticker": "AAPL", "timestamp": "2025-03-01T10:00:00Z", "data": {"company_name": "half`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	s, err := OpenJSONL(path, zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()

	entries, err := s.Query(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, good.ID, entries[0].ID)

	// The torn tail was fenced, so new appends land on their own line.
	next := entryAt("AAPL", 60_000_000_000, 2)
	require.NoError(t, s.Append(context.Background(), next))

	entries, err = s.Query(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, next.ID, entries[1].ID)
}

func TestJSONLStore_IgnoresInFlightTrailingLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")
	s, err := OpenJSONL(path, zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Append(context.Background(), entryAt("MSFT", 0, 1)))

	// Simulate a concurrent writer that has not finished its line yet.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	line, _ := json.Marshal(entryAt("MSFT", 1, 2))
	_, err = f.Write(line)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	entries, err := s.Query(context.Background(), "MSFT")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestJSONLStore_ReadsLegacyRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")
	legacy := `{"timestamp": "2024-12-01T08:30:00.123456", "price": null, "data": {"ticker": "9992.HK", "company_name": "Pop Mart", "radar_scores": {"moat": 8}}}`
	require.NoError(t, os.WriteFile(path, []byte(legacy+"\n"), 0o644))

	s, err := OpenJSONL(path, zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()

	latest, err := s.Latest(context.Background(), "9992.hk")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "9992.HK", latest.Ticker)
	assert.Equal(t, 0.0, latest.Price)
	assert.Equal(t, "Pop Mart", latest.Data.CompanyName)
	assert.NotEmpty(t, latest.ID)
}

func TestJSONLStore_EachRecordIsOneLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")
	s, err := OpenJSONL(path, zerolog.Nop())
	require.NoError(t, err)

	ctx := sampleContext("Multi\nLine Corp")
	e := entryAt("ML", 0, 1)
	e.Data = ctx
	require.NoError(t, s.Append(context.Background(), e))
	require.NoError(t, s.Append(context.Background(), entryAt("ML", 1, 2)))
	require.NoError(t, s.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(raw), "\n"), "\n")
	require.Len(t, lines, 2)
	for _, l := range lines {
		var v map[string]interface{}
		assert.NoError(t, json.Unmarshal([]byte(l), &v))
	}
}
