package ingest

import (
	"time"

	"github.com/avielmenter/CritiQL/internal/domain/canon"
	"github.com/avielmenter/CritiQL/pkg/logger"
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithBlocklist replaces the placeholder-name blocklist.
func WithBlocklist(b *canon.Blocklist) Option {
	return func(e *Engine) {
		if b != nil {
			e.blocklist = b
		}
	}
}

// WithCampaigns maps document IDs to campaign numbers. Unmapped documents
// belong to DefaultCampaign.
func WithCampaigns(campaigns map[string]int) Option {
	return func(e *Engine) {
		for id, c := range campaigns {
			e.campaigns[id] = c
		}
	}
}

// WithCurrentCampaign sets the campaign whose latest episode is re-imported
// on every sync.
func WithCurrentCampaign(c int) Option {
	return func(e *Engine) {
		if c > 0 {
			e.current = c
		}
	}
}

// WithFanout bounds concurrent fetches and upserts.
func WithFanout(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.fanout = n
		}
	}
}

// WithClock overrides the time source used for durations.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}
