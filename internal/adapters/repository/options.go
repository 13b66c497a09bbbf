// Package repository implements the SQLite roll store.
package repository

import "time"

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithMetricsUpdateInterval sets the interval for background row count
// metrics. Zero disables the updater.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(s *Store) {
		if interval >= 0 {
			s.metricsUpdateInterval = interval
		}
	}
}

// WithBusyTimeout sets the SQLite busy timeout.
func WithBusyTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.busyTimeout = d
		}
	}
}

// WithClock overrides the time source used for row timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides how new row IDs are minted.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) {
		if gen != nil {
			s.newID = gen
		}
	}
}
