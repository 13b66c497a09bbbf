// Package config defines service configuration and how it is loaded.
package config

import (
	"fmt"
	"slices"
	"time"
)

// Log output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DBPath is the SQLite database file; ":memory:" keeps everything in RAM.
	DBPath string `koanf:"db_path"`

	// SheetsBaseURL and SheetsAPIKey address the spreadsheet API.
	SheetsBaseURL string `koanf:"sheets_base_url"`
	SheetsAPIKey  string `koanf:"sheets_api_key"`

	// FetchTimeoutMS bounds one document fetch.
	FetchTimeoutMS int `koanf:"fetch_timeout_ms"`

	// Documents maps spreadsheet IDs to campaign numbers.
	Documents map[string]int `koanf:"documents"`

	// CurrentCampaign is the campaign whose latest episode is re-imported on
	// every sync.
	CurrentCampaign int `koanf:"current_campaign"`

	// RefreshIntervalSeconds is the refresh gate cooldown.
	RefreshIntervalSeconds int `koanf:"refresh_interval_seconds"`

	// MaxQueryLimit caps the limit of list queries.
	MaxQueryLimit int `koanf:"max_query_limit"`

	// SyncFanout bounds concurrent fetches and upserts during a sync.
	SyncFanout int `koanf:"sync_fanout"`

	// SyncQueueSize bounds pending sync jobs.
	SyncQueueSize int `koanf:"sync_queue_size"`

	// SyncWorkers sets the number of sync workers.
	SyncWorkers int `koanf:"sync_workers"`

	// NameBlocklist lists placeholder participant names to discard.
	NameBlocklist []string `koanf:"name_blocklist"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:               "info",
		LogFormat:              FormatText,
		Addr:                   ":9080",
		DBPath:                 "critiql.db",
		SheetsBaseURL:          "https://sheets.googleapis.com",
		FetchTimeoutMS:         30_000,
		Documents:              map[string]int{},
		CurrentCampaign:        1,
		RefreshIntervalSeconds: 600,
		MaxQueryLimit:          1000,
		SyncFanout:             4,
		SyncQueueSize:          16,
		SyncWorkers:            1,
		NameBlocklist:          []string{"-", "?", "??", "0", "N/A", "NA", "Unknown", "TBD", "None"},
	}
}

// FetchTimeout returns FetchTimeoutMS as a duration.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutMS) * time.Millisecond
}

// RefreshInterval returns RefreshIntervalSeconds as a duration.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalSeconds) * time.Second
}

// DocumentIDs returns the configured spreadsheet IDs in sorted order.
func (c *Config) DocumentIDs() []string {
	ids := make([]string, 0, len(c.Documents))
	for id := range c.Documents {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	positive := []struct {
		key string
		val int
	}{
		{"fetch_timeout_ms", c.FetchTimeoutMS},
		{"current_campaign", c.CurrentCampaign},
		{"refresh_interval_seconds", c.RefreshIntervalSeconds},
		{"max_query_limit", c.MaxQueryLimit},
		{"sync_fanout", c.SyncFanout},
		{"sync_queue_size", c.SyncQueueSize},
		{"sync_workers", c.SyncWorkers},
	}
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.DBPath == "":
		return fmt.Errorf("%w: db_path must not be empty", ErrInvalidConfig)
	case c.LogFormat != FormatText && c.LogFormat != FormatJSON:
		return fmt.Errorf("%w: log_format %q", ErrInvalidConfig, c.LogFormat)
	}
	for _, p := range positive {
		if p.val <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidConfig, p.key, p.val)
		}
	}
	for id, campaign := range c.Documents {
		if id == "" || campaign <= 0 {
			return fmt.Errorf("%w: document %q has campaign %d", ErrInvalidConfig, id, campaign)
		}
	}
	return nil
}
