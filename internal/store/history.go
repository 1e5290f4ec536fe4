package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ducminhle1904/gpt-futures-bot/internal/trading"
)

// History is the append-only trade log, one JSON object per line. Records
// are never rewritten; rotation is left to the operator.
type History struct {
	mu   sync.Mutex
	path string
}

// NewHistory opens the history log at path, creating parent directories.
func NewHistory(path string) (*History, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	return &History{path: path}, nil
}

// Append writes one trade record as a JSON line.
func (h *History) Append(record *trading.TradeRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal trade record: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	f, err := os.OpenFile(h.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open history log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append trade record: %w", err)
	}
	return nil
}

// Recent reads up to limit most recent records from the log, oldest first.
// Unparseable lines are skipped.
func (h *History) Recent(limit int) ([]*trading.TradeRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	data, err := os.ReadFile(h.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read history log: %w", err)
	}

	var records []*trading.TradeRecord
	start := 0
	for i := 0; i <= len(data); i++ {
		if i == len(data) || data[i] == '\n' {
			line := data[start:i]
			start = i + 1
			if len(line) == 0 {
				continue
			}
			var record trading.TradeRecord
			if err := json.Unmarshal(line, &record); err != nil {
				continue
			}
			records = append(records, &record)
		}
	}

	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	return records, nil
}
