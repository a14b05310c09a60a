package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"alphaseeker/pkg/models"
)

const historySchema = `
CREATE TABLE IF NOT EXISTS analysis_history (
	seq    BIGSERIAL PRIMARY KEY,
	id     TEXT NOT NULL UNIQUE,
	ticker TEXT NOT NULL,
	ts     TIMESTAMPTZ NOT NULL,
	price  DOUBLE PRECISION NOT NULL,
	data   JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS analysis_history_ticker_ts ON analysis_history (ticker, ts, seq);
`

// PostgresStore keeps history in an insert-only table; seq records append order.
type PostgresStore struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// OpenPostgres connects and ensures the history table exists.
func OpenPostgres(ctx context.Context, dbURL string, log zerolog.Logger) (*PostgresStore, error) {
	pool, err := Connect(ctx, dbURL)
	if err != nil {
		return nil, storageErr("failed to open postgres history", err)
	}
	if _, err := pool.Exec(ctx, historySchema); err != nil {
		pool.Close()
		return nil, storageErr("failed to create history table", err)
	}
	return &PostgresStore{pool: pool, log: log.With().Str("component", "history.postgres").Logger()}, nil
}

// Append inserts one row in its own implicit transaction.
func (s *PostgresStore) Append(ctx context.Context, entry models.HistoryEntry) error {
	data, err := json.Marshal(entry.Data)
	if err != nil {
		return storageErr("failed to encode history entry", err)
	}

	query := `INSERT INTO analysis_history (id, ticker, ts, price, data) VALUES ($1, $2, $3, $4, $5)`
	if _, err := s.pool.Exec(ctx, query, entry.ID, entry.Ticker, entry.Timestamp, entry.Price, data); err != nil {
		return storageErr("failed to append history entry", err)
	}
	return nil
}

// Query returns entries in (ts, seq) order.
func (s *PostgresStore) Query(ctx context.Context, ticker string) ([]models.HistoryEntry, error) {
	query := `
		SELECT id, ticker, ts, price, data
		FROM analysis_history
		WHERE $1 = '' OR ticker = $1
		ORDER BY ts, seq`

	rows, err := s.pool.Query(ctx, query, models.NormalizeTicker(ticker))
	if err != nil {
		return nil, storageErr("failed to query history", err)
	}
	defer rows.Close()

	entries := make([]models.HistoryEntry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			s.log.Warn().Err(err).Msg("skipping unreadable history row")
			continue
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("failed to read history rows", err)
	}
	return entries, nil
}

// Latest returns the row with the greatest (ts, seq) for ticker.
func (s *PostgresStore) Latest(ctx context.Context, ticker string) (*models.HistoryEntry, error) {
	query := `
		SELECT id, ticker, ts, price, data
		FROM analysis_history
		WHERE ticker = $1
		ORDER BY ts DESC, seq DESC
		LIMIT 1`

	entry, err := scanEntry(s.pool.QueryRow(ctx, query, models.NormalizeTicker(ticker)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, storageErr("failed to load latest history entry", err)
	}
	return &entry, nil
}

// Tickers lists distinct tickers.
func (s *PostgresStore) Tickers(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT ticker FROM analysis_history ORDER BY ticker`)
	if err != nil {
		return nil, storageErr("failed to list tickers", err)
	}
	tickers, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, storageErr("failed to list tickers", err)
	}
	return tickers, nil
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanEntry(row pgx.Row) (models.HistoryEntry, error) {
	var (
		entry models.HistoryEntry
		ts    time.Time
		data  []byte
	)
	if err := row.Scan(&entry.ID, &entry.Ticker, &ts, &entry.Price, &data); err != nil {
		return entry, err
	}
	if err := json.Unmarshal(data, &entry.Data); err != nil {
		return entry, err
	}
	entry.Timestamp = ts.UTC()
	return entry, nil
}
