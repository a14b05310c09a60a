package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"alphaseeker/pkg/models"
)

// HistoryStore is the append-only, per-ticker record of analyses.
// Entries are never updated or deleted once appended.
type HistoryStore interface {
	// Append durably records one entry. Either the whole entry is stored or nothing is.
	Append(ctx context.Context, entry models.HistoryEntry) error
	// Query returns entries for ticker ("" for all tickers) in ascending timestamp
	// order, ties broken by append order.
	Query(ctx context.Context, ticker string) ([]models.HistoryEntry, error)
	// Latest returns the newest entry for ticker, or nil when it has no history.
	Latest(ctx context.Context, ticker string) (*models.HistoryEntry, error)
	// Tickers lists every ticker with at least one entry, sorted.
	Tickers(ctx context.Context) ([]string, error)
	Close() error
}

// Backend names accepted by Open.
const (
	BackendJSONL    = "jsonl"
	BackendPostgres = "postgres"
	BackendBadger   = "badger"
)

// Config selects and locates a history backend.
type Config struct {
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"` // JSONL file or badger directory
	DatabaseURL string `yaml:"database_url"`
}

// Open constructs the configured backend.
func Open(ctx context.Context, cfg Config, log zerolog.Logger) (HistoryStore, error) {
	switch cfg.Backend {
	case "", BackendJSONL:
		return OpenJSONL(cfg.Path, log)
	case BackendPostgres:
		return OpenPostgres(ctx, cfg.DatabaseURL, log)
	case BackendBadger:
		return OpenBadger(cfg.Path, log)
	default:
		return nil, fmt.Errorf("unknown history backend %q", cfg.Backend)
	}
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", models.ErrStorage, op, err)
}

// sequenced pairs an entry with its append position.
type sequenced struct {
	seq   uint64
	entry models.HistoryEntry
}

// ordered sorts by timestamp then append position and strips the positions.
func ordered(items []sequenced) []models.HistoryEntry {
	sort.SliceStable(items, func(i, j int) bool {
		ti, tj := items[i].entry.Timestamp, items[j].entry.Timestamp
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return items[i].seq < items[j].seq
	})
	out := make([]models.HistoryEntry, len(items))
	for i, it := range items {
		out[i] = it.entry
	}
	return out
}

func distinctTickers(entries []models.HistoryEntry) []string {
	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, e := range entries {
		if !seen[e.Ticker] {
			seen[e.Ticker] = true
			out = append(out, e.Ticker)
		}
	}
	sort.Strings(out)
	return out
}
