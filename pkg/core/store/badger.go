package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"alphaseeker/pkg/models"
)

const (
	historyPrefix = "history/"
	sequenceKey   = "seq/history"
)

// BadgerStore keeps each entry under history/<TICKER>/<seq>, one transaction per append.
type BadgerStore struct {
	db  *badger.DB
	seq *badger.Sequence
	log zerolog.Logger
}

// OpenBadger opens a badger database in dir. An empty dir runs in memory.
func OpenBadger(dir string, log zerolog.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, storageErr("failed to open badger database", err)
	}
	seq, err := db.GetSequence([]byte(sequenceKey), 64)
	if err != nil {
		db.Close()
		return nil, storageErr("failed to lease history sequence", err)
	}

	log = log.With().Str("component", "history.badger").Logger()
	log.Debug().Str("path", dir).Msg("badger history store opened")
	return &BadgerStore{db: db, seq: seq, log: log}, nil
}

func historyKey(ticker string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%s/%020d", historyPrefix, ticker, seq))
}

func tickerPrefix(ticker string) []byte {
	if ticker == "" {
		return []byte(historyPrefix)
	}
	return []byte(historyPrefix + ticker + "/")
}

// Append stores entry under the next sequence number.
func (s *BadgerStore) Append(ctx context.Context, entry models.HistoryEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return storageErr("failed to encode history entry", err)
	}
	n, err := s.seq.Next()
	if err != nil {
		return storageErr("failed to allocate history sequence", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(historyKey(entry.Ticker, n), data)
	})
	if err != nil {
		return storageErr("failed to append history entry", err)
	}
	return nil
}

// Query scans the ticker prefix ("" scans every ticker).
func (s *BadgerStore) Query(ctx context.Context, ticker string) ([]models.HistoryEntry, error) {
	prefix := tickerPrefix(models.NormalizeTicker(ticker))
	var items []sequenced

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			key := string(item.KeyCopy(nil))
			seq, err := strconv.ParseUint(key[strings.LastIndexByte(key, '/')+1:], 10, 64)
			if err != nil {
				s.log.Warn().Str("key", key).Msg("skipping history key without sequence")
				continue
			}
			var entry models.HistoryEntry
			err = item.Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil {
				s.log.Warn().Err(err).Str("key", key).Msg("skipping unreadable history record")
				continue
			}
			items = append(items, sequenced{seq: seq, entry: entry})
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, storageErr("failed to query history", err)
	}
	return ordered(items), nil
}

// Latest returns the newest entry for ticker.
func (s *BadgerStore) Latest(ctx context.Context, ticker string) (*models.HistoryEntry, error) {
	entries, err := s.Query(ctx, ticker)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	latest := entries[len(entries)-1]
	return &latest, nil
}

// Tickers walks keys only.
func (s *BadgerStore) Tickers(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var tickers []string

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(historyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			key := strings.TrimPrefix(string(it.Item().Key()), historyPrefix)
			idx := strings.LastIndexByte(key, '/')
			if idx <= 0 {
				continue
			}
			if t := key[:idx]; !seen[t] {
				seen[t] = true
				tickers = append(tickers, t)
			}
		}
		return nil
	})
	if err != nil {
		return nil, storageErr("failed to list tickers", err)
	}
	if tickers == nil {
		tickers = []string{}
	}
	sort.Strings(tickers)
	return tickers, nil
}

// Close releases unused sequence leases and closes the database.
func (s *BadgerStore) Close() error {
	if err := s.seq.Release(); err != nil {
		s.log.Warn().Err(err).Msg("failed to release history sequence")
	}
	return s.db.Close()
}
