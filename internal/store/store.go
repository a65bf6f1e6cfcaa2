// Package store persists collected daily reports, partitioned by calendar
// day, with dedup-by-submitter and a monotonic per-date dispatched flag.
//
// The whole store is snapshotted to a single JSON file after every mutation.
// Persistence is best-effort: a write failure is logged and the in-memory
// state remains authoritative for the running process.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reportd/internal/report"
)

// partition holds one calendar day's collected reports.
type partition struct {
	Reports []report.Report `json:"reports"`
	Sent    bool            `json:"sent"`
}

// legacyFile is the old single-date file shape, accepted on load and
// upgraded in memory to the date-keyed layout.
type legacyFile struct {
	Date    string          `json:"date"`
	Reports []report.Report `json:"reports"`
	Sent    bool            `json:"sent"`
}

// Store is the date-partitioned report collection. All operations are
// serialized by a single mutex; snapshots never alias internal state.
type Store struct {
	mu         sync.Mutex
	path       string
	logger     *zap.Logger
	partitions map[string]*partition
	now        func() time.Time
}

// New creates a Store backed by the JSON file at path, loading any existing
// data. A missing file initializes an empty store; a corrupt file is an error
// so that operator attention is forced rather than silently dropping history.
func New(path string, logger *zap.Logger) (*Store, error) {
	if path == "" {
		return nil, errors.New("store path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	s := &Store{
		path:       path,
		logger:     logger,
		partitions: make(map[string]*partition),
		now:        time.Now,
	}

	if err := s.load(); err != nil {
		return nil, err
	}

	return s, nil
}

// Today returns the current partition key.
func (s *Store) Today() string {
	return s.now().Format(report.DateLayout)
}

// Upsert inserts rec into the date partition, replacing any live record from
// the same submitter, and reports whether a replacement happened. SubmittedAt
// is stamped here. The store is persisted synchronously before returning;
// persistence failure does not roll back the in-memory mutation.
func (s *Store) Upsert(rec report.Report, date string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if date == "" {
		date = s.now().Format(report.DateLayout)
	}

	p, ok := s.partitions[date]
	if !ok {
		p = &partition{}
		s.partitions[date] = p
	}

	rec.SubmittedAt = s.now()
	rec.Date = date

	replaced := false
	for i := range p.Reports {
		if p.Reports[i].Submitter == rec.Submitter {
			p.Reports[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		p.Reports = append(p.Reports, rec)
	}

	s.persistLocked()

	s.logger.Info("report stored",
		zap.String("submitter", rec.Submitter),
		zap.String("date", date),
		zap.String("message_id", rec.MessageID),
		zap.Bool("replaced", replaced),
		zap.Int("count", len(p.Reports)))

	return replaced
}

// All returns a snapshot copy of the date's reports.
func (s *Store) All(date string) []report.Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	if date == "" {
		date = s.now().Format(report.DateLayout)
	}

	p, ok := s.partitions[date]
	if !ok {
		return nil
	}

	out := make([]report.Report, len(p.Reports))
	copy(out, p.Reports)
	return out
}

// Count returns the number of live reports for the date.
func (s *Store) Count(date string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if date == "" {
		date = s.now().Format(report.DateLayout)
	}

	if p, ok := s.partitions[date]; ok {
		return len(p.Reports)
	}
	return 0
}

// IsDispatched reports whether the date's summary has already been sent.
func (s *Store) IsDispatched(date string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.partitions[date]; ok {
		return p.Sent
	}
	return false
}

// MarkDispatched sets the date's dispatched flag. Idempotent; the flag is
// monotonic (false to true only).
func (s *Store) MarkDispatched(date string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.partitions[date]
	if !ok {
		p = &partition{}
		s.partitions[date] = p
	}
	if p.Sent {
		return
	}
	p.Sent = true
	s.persistLocked()

	s.logger.Info("date marked dispatched", zap.String("date", date))
}

// RemoveByMessageID removes the first record whose MessageID matches. A
// recall event does not carry the date, so every partition is scanned.
// Returns whether anything was removed.
func (s *Store) RemoveByMessageID(messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for date, p := range s.partitions {
		for i := range p.Reports {
			if p.Reports[i].MessageID != messageID {
				continue
			}
			submitter := p.Reports[i].Submitter
			p.Reports = append(p.Reports[:i], p.Reports[i+1:]...)
			s.persistLocked()

			s.logger.Info("recalled report removed",
				zap.String("submitter", submitter),
				zap.String("date", date),
				zap.String("message_id", messageID))
			return true
		}
	}

	s.logger.Info("recall did not match a stored report",
		zap.String("message_id", messageID))
	return false
}

// Clear drops the date's partition entirely, including its dispatched flag.
// Administrative reset; not used by the automatic dispatch path.
func (s *Store) Clear(date string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.partitions[date]; !ok {
		return
	}
	delete(s.partitions, date)
	s.persistLocked()

	s.logger.Info("date cleared", zap.String("date", date))
}

// Submitters returns the set of submitter names with a live report for the
// date. Used by the reminder path.
func (s *Store) Submitters(date string) map[string]struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]struct{})
	if p, ok := s.partitions[date]; ok {
		for i := range p.Reports {
			out[p.Reports[i].Submitter] = struct{}{}
		}
	}
	return out
}

// load reads the snapshot file, accepting both the current date-keyed layout
// and the legacy single-date shape.
func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Info("no existing report file, starting empty",
				zap.String("path", s.path))
			return nil
		}
		return fmt.Errorf("failed to read report file: %w", err)
	}

	// Legacy shape has a top-level "date" string; the current layout keys the
	// object by date, so the two cannot be confused.
	var legacy legacyFile
	if err := json.Unmarshal(data, &legacy); err == nil && legacy.Date != "" {
		s.partitions[legacy.Date] = &partition{
			Reports: legacy.Reports,
			Sent:    legacy.Sent,
		}
		s.logger.Info("upgraded legacy single-date report file",
			zap.String("date", legacy.Date),
			zap.Int("reports", len(legacy.Reports)))
		return nil
	}

	partitions := make(map[string]*partition)
	if err := json.Unmarshal(data, &partitions); err != nil {
		return fmt.Errorf("failed to parse report file %s: %w", s.path, err)
	}
	for date, p := range partitions {
		if p == nil {
			partitions[date] = &partition{}
		}
	}
	s.partitions = partitions

	total := 0
	for _, p := range s.partitions {
		total += len(p.Reports)
	}
	s.logger.Info("report file loaded",
		zap.Int("dates", len(s.partitions)),
		zap.Int("reports", total))
	return nil
}

// persistLocked writes the whole store to disk. Callers hold s.mu. Failures
// are logged, not returned: the in-memory store is the source of truth and
// the next successful mutation rewrites the full snapshot.
func (s *Store) persistLocked() {
	data, err := json.MarshalIndent(s.partitions, "", "  ")
	if err != nil {
		s.logger.Error("failed to encode report file", zap.Error(err))
		return
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		s.logger.Error("failed to write report file",
			zap.String("path", s.path), zap.Error(err))
	}
}
