package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ducminhle1904/gpt-futures-bot/internal/trading"
)

// ErrFinalSourcesStale is returned by Put(final) when any source timeframe
// lacks a snapshot newer than the previous final analysis.
var ErrFinalSourcesStale = errors.New("source snapshots missing or older than previous final analysis")

// Store keeps the latest analysis per timeframe, persisted one file per
// timeframe under the analysis directory. Each entry has its own lock so a
// slow write on one timeframe never blocks reads on another.
type Store struct {
	dir     string
	entries map[trading.Timeframe]*entry
}

type entry struct {
	mu       sync.RWMutex
	analysis *trading.Analysis
}

// New opens a store rooted at dir, creating it when missing and loading any
// snapshots persisted by a previous run. A snapshot file that fails to parse
// is renamed with a .bad suffix and treated as absent.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create analysis directory: %w", err)
	}

	s := &Store{
		dir:     dir,
		entries: make(map[trading.Timeframe]*entry),
	}

	timeframes := append([]trading.Timeframe{}, trading.SourceTimeframes...)
	timeframes = append(timeframes, trading.TimeframeFinal)
	for _, tf := range timeframes {
		s.entries[tf] = &entry{analysis: s.loadSnapshot(tf)}
	}

	return s, nil
}

// Get returns the latest analysis for the timeframe, nil when none exists.
func (s *Store) Get(tf trading.Timeframe) *trading.Analysis {
	e, ok := s.entries[tf]
	if !ok {
		return nil
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.analysis
}

// Put replaces the timeframe's snapshot and persists it via atomic rename.
//
// A final analysis is accepted only when every source timeframe holds a
// snapshot generated after the previous final; otherwise ErrFinalSourcesStale
// is returned and the store is unchanged.
func (s *Store) Put(tf trading.Timeframe, analysis *trading.Analysis) error {
	e, ok := s.entries[tf]
	if !ok {
		return fmt.Errorf("unknown timeframe: %s", tf)
	}

	if tf == trading.TimeframeFinal {
		if err := s.checkFinalSources(); err != nil {
			return err
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := s.writeSnapshot(tf, analysis); err != nil {
		return err
	}
	e.analysis = analysis
	return nil
}

// checkFinalSources verifies every source timeframe has a snapshot newer
// than the current final one.
func (s *Store) checkFinalSources() error {
	finalEntry := s.entries[trading.TimeframeFinal]
	finalEntry.mu.RLock()
	var prevFinal int64
	if finalEntry.analysis != nil {
		prevFinal = finalEntry.analysis.GeneratedAt
	}
	finalEntry.mu.RUnlock()

	for _, tf := range trading.SourceTimeframes {
		src := s.entries[tf]
		src.mu.RLock()
		analysis := src.analysis
		src.mu.RUnlock()

		if analysis == nil || analysis.GeneratedAt <= prevFinal {
			return fmt.Errorf("%w: %s", ErrFinalSourcesStale, tf)
		}
	}
	return nil
}

// FreshSources returns the four source snapshots when all are newer than
// the previous final, in SourceTimeframes order.
func (s *Store) FreshSources() ([]*trading.Analysis, error) {
	if err := s.checkFinalSources(); err != nil {
		return nil, err
	}
	out := make([]*trading.Analysis, 0, len(trading.SourceTimeframes))
	for _, tf := range trading.SourceTimeframes {
		out = append(out, s.Get(tf))
	}
	return out, nil
}

func (s *Store) snapshotPath(tf trading.Timeframe) string {
	return filepath.Join(s.dir, fmt.Sprintf("analysis_%s.json", tf))
}

// writeSnapshot persists the analysis with a write-then-rename so a crash
// mid-write leaves the previous file intact.
func (s *Store) writeSnapshot(tf trading.Timeframe, analysis *trading.Analysis) error {
	data, err := json.MarshalIndent(analysis, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s analysis: %w", tf, err)
	}

	path := s.snapshotPath(tf)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s snapshot: %w", tf, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to commit %s snapshot: %w", tf, err)
	}
	return nil
}

// loadSnapshot reads the persisted snapshot for the timeframe. Corrupt
// files are quarantined with a .bad suffix and reported as missing.
func (s *Store) loadSnapshot(tf trading.Timeframe) *trading.Analysis {
	path := s.snapshotPath(tf)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var analysis trading.Analysis
	if err := json.Unmarshal(data, &analysis); err != nil {
		os.Rename(path, path+".bad")
		return nil
	}
	if err := analysis.Validate(); err != nil {
		os.Rename(path, path+".bad")
		return nil
	}
	return &analysis
}
