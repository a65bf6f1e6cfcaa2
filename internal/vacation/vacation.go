// Package vacation tracks who is off on which date so that absent team
// members do not count toward the expected daily headcount.
package vacation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Store keeps a date-keyed set of names on vacation, persisted as JSON.
type Store struct {
	mu     sync.Mutex
	path   string
	logger *zap.Logger

	// days maps "2006-01-02" to the set of names off that day.
	days map[string]map[string]struct{}
}

// New loads the vacation file at path, creating parent directories as needed.
// A missing file starts empty; a corrupt file is an error.
func New(path string, logger *zap.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("vacation store path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create vacation store directory: %w", err)
	}

	s := &Store{
		path:   path,
		logger: logger,
		days:   make(map[string]map[string]struct{}),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Set marks name as on vacation for date. Returns false when the entry
// already existed.
func (s *Store) Set(name, date string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	day, ok := s.days[date]
	if !ok {
		day = make(map[string]struct{})
		s.days[date] = day
	}
	if _, exists := day[name]; exists {
		return false
	}
	day[name] = struct{}{}
	s.persistLocked()

	s.logger.Info("vacation set", zap.String("name", name), zap.String("date", date))
	return true
}

// Cancel removes name's vacation entry for date. Returns false when no
// entry existed.
func (s *Store) Cancel(name, date string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	day, ok := s.days[date]
	if !ok {
		return false
	}
	if _, exists := day[name]; !exists {
		return false
	}
	delete(day, name)
	if len(day) == 0 {
		delete(s.days, date)
	}
	s.persistLocked()

	s.logger.Info("vacation cancelled", zap.String("name", name), zap.String("date", date))
	return true
}

// List returns the names on vacation for date, sorted.
func (s *Store) List(date string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	day := s.days[date]
	if len(day) == 0 {
		return nil
	}
	names := make([]string, 0, len(day))
	for name := range day {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsOnVacation reports whether name is off on date.
func (s *Store) IsOnVacation(name, date string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	day, ok := s.days[date]
	if !ok {
		return false
	}
	_, exists := day[name]
	return exists
}

// Count returns how many people are off on date.
func (s *Store) Count(date string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.days[date])
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read vacation store: %w", err)
	}

	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse vacation store %s: %w", s.path, err)
	}
	for date, names := range raw {
		day := make(map[string]struct{}, len(names))
		for _, name := range names {
			day[name] = struct{}{}
		}
		if len(day) > 0 {
			s.days[date] = day
		}
	}
	return nil
}

// persistLocked writes the full vacation map. Failures are logged so a
// transient disk problem does not lose the in-memory change.
func (s *Store) persistLocked() {
	raw := make(map[string][]string, len(s.days))
	for date, day := range s.days {
		names := make([]string, 0, len(day))
		for name := range day {
			names = append(names, name)
		}
		sort.Strings(names)
		raw[date] = names
	}

	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		s.logger.Error("failed to encode vacation store", zap.Error(err))
		return
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		s.logger.Error("failed to persist vacation store",
			zap.String("path", s.path), zap.Error(err))
	}
}
