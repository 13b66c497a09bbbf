// Package gate rate-limits spreadsheet fetches using an append-only request
// log.
package gate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/avielmenter/CritiQL/internal/domain/model"
	"github.com/avielmenter/CritiQL/pkg/logger"
	"github.com/avielmenter/CritiQL/pkg/metrics"
)

// DefaultInterval is the cooldown between two permitted fetches.
const DefaultInterval = 600 * time.Second

// Log is the request log the gate reads and appends to.
type Log interface {
	AppendRequestLog(ctx context.Context, entry model.RequestLogEntry) error
	LastFetchAt(ctx context.Context) (time.Time, bool, error)
}

// Option applies a configuration option to the Gate.
type Option func(*Gate)

// WithInterval sets the minimum time between two permitted fetches.
func WithInterval(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.interval = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(g *Gate) {
		if l != nil {
			g.logger = l
		}
	}
}

// Dispatch starts the fetch a permitted request asked for.
type Dispatch func(ctx context.Context) error

// Gate decides whether an inbound request may trigger a fetch. Decisions are
// serialized so two requests cannot both open the same cooldown window.
type Gate struct {
	mu       sync.Mutex
	log      Log
	interval time.Duration
	now      func() time.Time
	logger   logger.Logger
}

// New creates a Gate over log.
func New(log Log, opts ...Option) *Gate {
	g := &Gate{
		log:      log,
		interval: DefaultInterval,
		now:      time.Now,
		logger:   logger.Get().Named("gate"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Interval returns the configured cooldown.
func (g *Gate) Interval() time.Duration { return g.interval }

// ShouldFetch reports whether the cooldown since the last permitted fetch has
// elapsed. Every call is appended to the log with its decision and origin,
// whatever the outcome. An empty log always permits.
func (g *Gate) ShouldFetch(ctx context.Context, origin string) (bool, error) {
	return g.Admit(ctx, origin, nil)
}

// Admit is ShouldFetch with a dispatch step. When the fetch is permitted,
// dispatch runs before the decision is logged; if it fails the request is
// logged as refused, no cooldown starts, and the error is returned wrapped in
// ErrDispatchFailed.
func (g *Gate) Admit(ctx context.Context, origin string, dispatch Dispatch) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	last, seen, err := g.log.LastFetchAt(ctx)
	if err != nil {
		metrics.RecordErrorByComponent("gate", "read_log")
		return false, fmt.Errorf("read request log: %w", err)
	}

	fetch := !seen || now.Sub(last) >= g.interval
	var dispatchErr error
	if fetch && dispatch != nil {
		if dispatchErr = dispatch(ctx); dispatchErr != nil {
			fetch = false
		}
	}

	entry := model.RequestLogEntry{
		At:      now,
		Origin:  strings.TrimSpace(origin),
		Fetched: fetch,
	}
	if err := g.log.AppendRequestLog(ctx, entry); err != nil {
		metrics.RecordErrorByComponent("gate", "append_log")
		return false, fmt.Errorf("append request log: %w", err)
	}
	metrics.RecordGateDecision(fetch)

	if dispatchErr != nil {
		metrics.RecordErrorByComponent("gate", "dispatch")
		return false, fmt.Errorf("%w: %w", ErrDispatchFailed, dispatchErr)
	}
	if fetch {
		g.logger.Debug(ctx, "fetch permitted", logger.String("origin", entry.Origin))
	}
	return fetch, nil
}
