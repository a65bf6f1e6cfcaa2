// Package workday decides whether a calendar date is a working day, so
// scheduled summaries and reminders stay quiet on weekends and holidays.
package workday

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DateLayout matches the report store's date key format.
const DateLayout = "2006-01-02"

// Config controls holiday lookups.
type Config struct {
	// APIBaseURL is the holiday info endpoint; the date is appended as a
	// path segment. Empty disables remote lookups.
	APIBaseURL string

	// CachePath persists API answers across restarts. Empty disables the
	// cache file.
	CachePath string

	// Holidays and ExtraWorkdays override both the API and the weekend
	// rule for specific dates.
	Holidays      []string
	ExtraWorkdays []string

	Timeout time.Duration
}

// Checker answers workday queries with a config override, a persistent
// cache, a remote holiday API, and a weekend fallback, in that order.
type Checker struct {
	mu     sync.Mutex
	cfg    Config
	client *http.Client
	logger *zap.Logger

	holidays map[string]struct{}
	workdays map[string]struct{}
	cache    map[string]bool
}

// New builds a Checker and loads any existing cache file.
func New(cfg Config, logger *zap.Logger) (*Checker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}

	c := &Checker{
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.Timeout},
		logger:   logger,
		holidays: make(map[string]struct{}, len(cfg.Holidays)),
		workdays: make(map[string]struct{}, len(cfg.ExtraWorkdays)),
		cache:    make(map[string]bool),
	}
	for _, d := range cfg.Holidays {
		c.holidays[d] = struct{}{}
	}
	for _, d := range cfg.ExtraWorkdays {
		c.workdays[d] = struct{}{}
	}

	if cfg.CachePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.CachePath), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create workday cache directory: %w", err)
		}
		if err := c.loadCache(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// IsWorkday reports whether date (in DateLayout form) is a working day.
// Lookup failures degrade to the Monday-to-Friday rule.
func (c *Checker) IsWorkday(ctx context.Context, date string) bool {
	if _, ok := c.holidays[date]; ok {
		return false
	}
	if _, ok := c.workdays[date]; ok {
		return true
	}

	c.mu.Lock()
	cached, ok := c.cache[date]
	c.mu.Unlock()
	if ok {
		return cached
	}

	if c.cfg.APIBaseURL != "" {
		if isWork, err := c.queryAPI(ctx, date); err == nil {
			c.mu.Lock()
			c.cache[date] = isWork
			c.persistCacheLocked()
			c.mu.Unlock()
			return isWork
		} else {
			c.logger.Warn("holiday api lookup failed, falling back to weekday rule",
				zap.String("date", date), zap.Error(err))
		}
	}

	return weekdayRule(date)
}

// apiResponse matches the holiday info endpoint. Day types: 0 workday,
// 1 weekend, 2 holiday, 3 makeup workday.
type apiResponse struct {
	Code int `json:"code"`
	Type struct {
		Type int `json:"type"`
	} `json:"type"`
}

func (c *Checker) queryAPI(ctx context.Context, date string) (bool, error) {
	url := fmt.Sprintf("%s/%s", c.cfg.APIBaseURL, date)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("holiday api returned status %d", resp.StatusCode)
	}

	var payload apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return false, fmt.Errorf("failed to decode holiday api response: %w", err)
	}
	if payload.Code != 0 {
		return false, fmt.Errorf("holiday api returned code %d", payload.Code)
	}

	return payload.Type.Type == 0 || payload.Type.Type == 3, nil
}

func weekdayRule(date string) bool {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return true
	}
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

func (c *Checker) loadCache() error {
	data, err := os.ReadFile(c.cfg.CachePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read workday cache: %w", err)
	}
	if err := json.Unmarshal(data, &c.cache); err != nil {
		// A bad cache is disposable, unlike the report store.
		c.logger.Warn("discarding corrupt workday cache",
			zap.String("path", c.cfg.CachePath), zap.Error(err))
		c.cache = make(map[string]bool)
	}
	return nil
}

func (c *Checker) persistCacheLocked() {
	if c.cfg.CachePath == "" {
		return
	}
	data, err := json.MarshalIndent(c.cache, "", "  ")
	if err != nil {
		c.logger.Error("failed to encode workday cache", zap.Error(err))
		return
	}
	if err := os.WriteFile(c.cfg.CachePath, data, 0o600); err != nil {
		c.logger.Error("failed to persist workday cache",
			zap.String("path", c.cfg.CachePath), zap.Error(err))
	}
}
