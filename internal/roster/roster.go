// Package roster maintains the team membership list: chat user IDs, display
// names, and who is required to submit a daily report.
package roster

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Config controls the roster file and membership policy.
type Config struct {
	// Path is the JSON names file, a map of chat user ID to display name.
	Path string

	// Required lists the display names expected to submit every workday.
	Required []string

	// Protected names are never overwritten by SetName, so manual
	// corrections in the file survive automatic profile syncs.
	Protected []string
}

// Roster holds the name map and required-submitter list. The backing file
// is reloaded live when it changes on disk.
type Roster struct {
	mu     sync.RWMutex
	cfg    Config
	logger *zap.Logger

	names     map[string]string
	protected map[string]struct{}
	watcher   *fsnotify.Watcher
}

// New loads the roster file. A missing file starts empty.
func New(cfg Config, logger *zap.Logger) (*Roster, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("roster path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create roster directory: %w", err)
	}

	r := &Roster{
		cfg:       cfg,
		logger:    logger,
		names:     make(map[string]string),
		protected: make(map[string]struct{}, len(cfg.Protected)),
	}
	for _, name := range cfg.Protected {
		r.protected[name] = struct{}{}
	}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

// Name resolves a chat user ID to a display name, falling back to the
// raw ID for unknown users.
func (r *Roster) Name(userID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if name, ok := r.names[userID]; ok {
		return name
	}
	return userID
}

// UserID is the reverse lookup, used to @-mention someone by name.
func (r *Roster) UserID(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, n := range r.names {
		if n == name {
			return id, true
		}
	}
	return "", false
}

// SetName records a user ID to name mapping and persists it. Mappings whose
// current name is protected are left untouched.
func (r *Roster) SetName(userID, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.names[userID]; ok {
		if _, prot := r.protected[current]; prot {
			return false
		}
		if current == name {
			return false
		}
	}
	r.names[userID] = name
	r.persistLocked()
	return true
}

// Required returns the display names expected to submit each workday.
func (r *Roster) Required() []string {
	out := make([]string, len(r.cfg.Required))
	copy(out, r.cfg.Required)
	return out
}

// Missing returns the required submitters, minus those present in
// submitted and those excused by the exempt predicate. Sorted for stable
// reminder text.
func (r *Roster) Missing(submitted map[string]struct{}, exempt func(name string) bool) []string {
	var missing []string
	for _, name := range r.cfg.Required {
		if _, ok := submitted[name]; ok {
			continue
		}
		if exempt != nil && exempt(name) {
			continue
		}
		missing = append(missing, name)
	}
	sort.Strings(missing)
	return missing
}

// Watch reloads the roster file whenever it is rewritten on disk. Close
// stops the watcher.
func (r *Roster) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create roster watcher: %w", err)
	}
	// Watch the directory: editors and atomic writers replace the file.
	if err := watcher.Add(filepath.Dir(r.cfg.Path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch roster directory: %w", err)
	}
	r.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(r.cfg.Path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				r.mu.Lock()
				if err := r.loadLocked(); err != nil {
					r.logger.Warn("roster reload failed", zap.Error(err))
				} else {
					r.logger.Info("roster reloaded", zap.Int("entries", len(r.names)))
				}
				r.mu.Unlock()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				r.logger.Warn("roster watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}

// Close stops the file watcher if one is running.
func (r *Roster) Close() error {
	if r.watcher != nil {
		return r.watcher.Close()
	}
	return nil
}

func (r *Roster) load() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadLocked()
}

func (r *Roster) loadLocked() error {
	data, err := os.ReadFile(r.cfg.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read roster file: %w", err)
	}

	names := make(map[string]string)
	if err := json.Unmarshal(data, &names); err != nil {
		return fmt.Errorf("failed to parse roster file %s: %w", r.cfg.Path, err)
	}
	r.names = names
	return nil
}

func (r *Roster) persistLocked() {
	data, err := json.MarshalIndent(r.names, "", "  ")
	if err != nil {
		r.logger.Error("failed to encode roster", zap.Error(err))
		return
	}
	if err := os.WriteFile(r.cfg.Path, data, 0o600); err != nil {
		r.logger.Error("failed to persist roster",
			zap.String("path", r.cfg.Path), zap.Error(err))
	}
}
