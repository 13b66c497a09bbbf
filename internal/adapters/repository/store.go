package repository

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/avielmenter/CritiQL/internal/adapters/repository/migrations"
	"github.com/avielmenter/CritiQL/pkg/metrics"
	"github.com/google/uuid"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const (
	defaultBusyTimeout           = 10 * time.Second
	defaultMetricsUpdateInterval = 5 * time.Second
)

// Counts reports stored row totals per table.
type Counts struct {
	Episodes     int64 `json:"episodes"`
	Participants int64 `json:"participants"`
	Rolls        int64 `json:"rolls"`
	RequestLog   int64 `json:"request_log"`
}

// Store persists episodes, participants, roll records and the request log in
// SQLite. It is safe for concurrent use.
type Store struct {
	db *sql.DB

	busyTimeout           time.Duration
	metricsUpdateInterval time.Duration
	now                   func() time.Time
	newID                 func() string

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func newUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Open opens the database at path, applies embedded migrations and starts the
// metrics updater. Pass MemoryPath for a throwaway database.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("%w: storage path is required", ErrInvalidInput)
	}

	s := &Store{
		busyTimeout:           defaultBusyTimeout,
		metricsUpdateInterval: defaultMetricsUpdateInterval,
		now:                   time.Now,
		newID:                 newUUID,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	db, err := sql.Open("sqlite", s.dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == MemoryPath {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := ApplyMigrations(ctx, db, migrations.FS, "."); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	s.db = db

	if s.metricsUpdateInterval > 0 {
		s.startMetricsUpdater(ctx)
	}
	return s, nil
}

func (s *Store) dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", s.busyTimeout.Milliseconds()))
	if path == MemoryPath {
		return "file::memory:?" + q.Encode()
	}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(NORMAL)")
	return "file:" + filepath.Clean(path) + "?" + q.Encode()
}

// Close stops background work and closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	return s.db.PingContext(ctx)
}

// Counts returns row totals for every table.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := s.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM episodes),
		(SELECT COUNT(*) FROM participants),
		(SELECT COUNT(*) FROM roll_records),
		(SELECT COUNT(*) FROM request_log)`).Scan(&c.Episodes, &c.Participants, &c.Rolls, &c.RequestLog)
	if err != nil {
		return Counts{}, fmt.Errorf("count rows: %w", err)
	}
	return c, nil
}

// startMetricsUpdater publishes row counts until the store is closed.
func (s *Store) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.updateMetrics(ctx)
			}
		}
	}()
}

func (s *Store) updateMetrics(ctx context.Context) {
	c, err := s.Counts(ctx)
	if err != nil {
		metrics.RecordErrorByComponent("repository", "count")
		return
	}
	metrics.UpdateRepositoryRows("episodes", c.Episodes)
	metrics.UpdateRepositoryRows("participants", c.Participants)
	metrics.UpdateRepositoryRows("roll_records", c.Rolls)
	metrics.UpdateRepositoryRows("request_log", c.RequestLog)
}

func observeWrite(start time.Time) {
	metrics.RecordRepositoryWriteLatency(float64(time.Since(start).Microseconds()) / 1000)
}

func observeRead(start time.Time) {
	metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func stringPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	v := n.String
	return &v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
