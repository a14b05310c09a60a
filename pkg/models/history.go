package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// HistoryEntry is one immutable record in a ticker's analysis history.
type HistoryEntry struct {
	ID        string          `json:"id"`
	Ticker    string          `json:"ticker"`
	Timestamp time.Time       `json:"timestamp"`
	Price     float64         `json:"price"`
	Data      AnalysisContext `json:"data"`
}

// NewHistoryEntry stamps a fresh entry. A zero ts means now. The context
// always carries the entry's ticker.
func NewHistoryEntry(ticker string, ts time.Time, price float64, data AnalysisContext) HistoryEntry {
	if ts.IsZero() {
		ts = time.Now()
	}
	ticker = NormalizeTicker(ticker)
	data.Ticker = ticker
	return HistoryEntry{
		ID:        uuid.NewString(),
		Ticker:    ticker,
		Timestamp: ts.UTC(),
		Price:     price,
		Data:      data,
	}
}

// NormalizeTicker trims and upper-cases a ticker symbol ("9992.hk" -> "9992.HK").
func NormalizeTicker(t string) string {
	return strings.ToUpper(strings.TrimSpace(t))
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp accepts RFC 3339 and the zone-less ISO-8601 form of older
// records. Zone-less values are taken as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// UnmarshalJSON decodes current records and upgrades legacy ones: a missing id
// is derived from ticker and timestamp, a null price becomes 0, and a ticker
// recorded only inside data is lifted to the entry.
func (e *HistoryEntry) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID        string          `json:"id"`
		Ticker    string          `json:"ticker"`
		Timestamp string          `json:"timestamp"`
		Price     *Number         `json:"price"`
		Data      json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw.Data) == 0 || bytes.Equal(bytes.TrimSpace(raw.Data), []byte("null")) {
		return errors.New("history record has no data")
	}

	var data AnalysisContext
	if err := json.Unmarshal(raw.Data, &data); err != nil {
		return fmt.Errorf("history record data: %w", err)
	}

	ts, err := ParseTimestamp(raw.Timestamp)
	if err != nil {
		return err
	}

	ticker := NormalizeTicker(raw.Ticker)
	if ticker == "" {
		ticker = NormalizeTicker(data.Ticker)
	}
	if ticker == "" {
		return errors.New("history record has no ticker")
	}
	if data.Ticker == "" {
		data.Ticker = ticker
	}

	id := raw.ID
	if id == "" {
		id = uuid.NewSHA1(uuid.NameSpaceOID, []byte(ticker+"|"+raw.Timestamp)).String()
	}

	var price float64
	if raw.Price != nil {
		price = raw.Price.Float64()
	}

	*e = HistoryEntry{ID: id, Ticker: ticker, Timestamp: ts, Price: price, Data: data}
	return nil
}
