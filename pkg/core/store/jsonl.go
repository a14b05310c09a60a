package store

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"alphaseeker/pkg/models"
)

// JSONLStore keeps history as one JSON object per line in a single file.
//
// Appends are a single write of a complete newline-terminated line followed by
// fsync, so a reader either sees the whole record or a trailing fragment
// without a newline, which it ignores. Readers open the file on their own and
// never contend with the writer.
type JSONLStore struct {
	path string
	log  zerolog.Logger

	mu sync.Mutex // serializes writers
	f  *os.File
}

// OpenJSONL opens (creating if needed) the history file at path.
func OpenJSONL(path string, log zerolog.Logger) (*JSONLStore, error) {
	if path == "" {
		return nil, errors.New("jsonl history path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open history file: %w", err)
	}

	s := &JSONLStore{path: path, f: f, log: log.With().Str("component", "history.jsonl").Logger()}
	if err := s.fenceTornTail(); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

// fenceTornTail terminates a partial last line left by a crash so the next
// append starts on a fresh line. The fragment itself is skipped by readers.
func (s *JSONLStore) fenceTornTail() error {
	st, err := s.f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat history file: %w", err)
	}
	if st.Size() == 0 {
		return nil
	}
	last := make([]byte, 1)
	if _, err := s.f.ReadAt(last, st.Size()-1); err != nil {
		return fmt.Errorf("failed to read history tail: %w", err)
	}
	if last[0] == '\n' {
		return nil
	}
	s.log.Warn().Str("path", s.path).Msg("history file ends with a partial record, fencing it off")
	if _, err := s.f.Write([]byte{'\n'}); err != nil {
		return fmt.Errorf("failed to fence history tail: %w", err)
	}
	return s.f.Sync()
}

// Append writes entry as one line.
func (s *JSONLStore) Append(ctx context.Context, entry models.HistoryEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return storageErr("failed to encode history entry", err)
	}
	line := append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.f.Stat()
	if err != nil {
		return storageErr("failed to stat history file", err)
	}
	prev := st.Size()

	n, err := s.f.Write(line)
	if err == nil && n != len(line) {
		err = io.ErrShortWrite
	}
	if err == nil {
		err = s.f.Sync()
	}
	if err != nil {
		if terr := s.f.Truncate(prev); terr != nil {
			s.log.Error().Err(terr).Int64("size", prev).Msg("failed to roll back partial history write")
		}
		return storageErr("failed to append history entry", err)
	}
	return nil
}

// Query reads the file from the start and returns the matching entries.
func (s *JSONLStore) Query(ctx context.Context, ticker string) ([]models.HistoryEntry, error) {
	items, err := s.read(ctx, models.NormalizeTicker(ticker))
	if err != nil {
		return nil, err
	}
	return ordered(items), nil
}

// Latest returns the newest entry for ticker.
func (s *JSONLStore) Latest(ctx context.Context, ticker string) (*models.HistoryEntry, error) {
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

// Tickers lists distinct tickers.
func (s *JSONLStore) Tickers(ctx context.Context) ([]string, error) {
	entries, err := s.Query(ctx, "")
	if err != nil {
		return nil, err
	}
	return distinctTickers(entries), nil
}

// Close releases the writer handle.
func (s *JSONLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}

func (s *JSONLStore) read(ctx context.Context, ticker string) ([]sequenced, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, storageErr("failed to open history file", err)
	}
	defer f.Close()

	var items []sequenced
	r := bufio.NewReader(f)
	for lineNo := uint64(1); ; lineNo++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line, err := r.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, storageErr("failed to read history file", err)
		}
		if errors.Is(err, io.EOF) {
			// A trailing fragment without a newline is an append still in flight.
			break
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var entry models.HistoryEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			s.log.Warn().Err(err).Uint64("line", lineNo).Msg("skipping unreadable history record")
			continue
		}
		if ticker != "" && entry.Ticker != ticker {
			continue
		}
		items = append(items, sequenced{seq: lineNo, entry: entry})
	}
	return items, nil
}
