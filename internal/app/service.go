// Package service wires the store, the sync pipeline and the query engine
// into the handle the HTTP API talks to.
package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avielmenter/CritiQL/internal/adapters/mq/queue"
	"github.com/avielmenter/CritiQL/internal/adapters/mq/worker"
	"github.com/avielmenter/CritiQL/internal/adapters/repository"
	"github.com/avielmenter/CritiQL/internal/adapters/sheets"
	"github.com/avielmenter/CritiQL/internal/domain/canon"
	"github.com/avielmenter/CritiQL/internal/domain/gate"
	"github.com/avielmenter/CritiQL/internal/domain/ingest"
	"github.com/avielmenter/CritiQL/internal/domain/model"
	"github.com/avielmenter/CritiQL/internal/domain/query"
	"github.com/avielmenter/CritiQL/pkg/logger"
	"github.com/avielmenter/CritiQL/pkg/metrics"
)

// Sentinel errors returned by the service.
var (
	ErrNotStarted  = errors.New("service not started")
	ErrNoDocuments = errors.New("no documents configured")
)

// SyncStatus describes the most recent finished sync.
type SyncStatus struct {
	JobID    string          `json:"job_id,omitempty"`
	Origin   string          `json:"origin"`
	Finished time.Time       `json:"finished"`
	Reports  []ingest.Report `json:"reports"`
	Error    string          `json:"error,omitempty"`
}

// Stats is a snapshot of the service state.
type Stats struct {
	Started         bool              `json:"started"`
	Workers         int               `json:"workers"`
	ActiveWorkers   int               `json:"active_workers"`
	QueueLength     int               `json:"queue_length"`
	QueueCapacity   int               `json:"queue_capacity"`
	Documents       int               `json:"documents"`
	CurrentCampaign int               `json:"current_campaign"`
	RefreshInterval float64           `json:"refresh_interval_seconds"`
	Counts          repository.Counts `json:"counts"`
	LastSync        *SyncStatus       `json:"last_sync,omitempty"`
}

// Service owns every long-lived component. Start opens them and Stop closes
// them; calls made outside that window fail with ErrNotStarted.
type Service struct {
	mu sync.RWMutex

	// Core components
	store   *repository.Store
	fetcher ingest.Fetcher
	syncer  *serialSyncer
	queries *query.Engine
	gate    *gate.Gate
	queue   *queue.InMemoryQueue
	pool    *worker.Pool

	// Configuration
	dbPath          string
	sheetsBaseURL   string
	sheetsAPIKey    string
	fetchTimeout    time.Duration
	documents       map[string]int
	currentCampaign int
	refreshInterval time.Duration
	maxQueryLimit   int
	syncFanout      int
	syncQueueSize   int
	syncWorkers     int
	blocklist       []string
	now             func() time.Time

	// State
	started  bool
	cancel   context.CancelFunc
	statusMu sync.Mutex
	lastSync *SyncStatus

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithDBPath sets the SQLite database path.
func WithDBPath(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.dbPath = path
		}
	}
}

// WithSheets configures the spreadsheet API client.
func WithSheets(baseURL, apiKey string, timeout time.Duration) Option {
	return func(s *Service) {
		s.sheetsBaseURL = baseURL
		s.sheetsAPIKey = apiKey
		if timeout > 0 {
			s.fetchTimeout = timeout
		}
	}
}

// WithFetcher replaces the spreadsheet API client.
func WithFetcher(f ingest.Fetcher) Option {
	return func(s *Service) {
		if f != nil {
			s.fetcher = f
		}
	}
}

// WithDocuments sets the spreadsheets to sync and their campaigns.
func WithDocuments(docs map[string]int) Option {
	return func(s *Service) {
		s.documents = make(map[string]int, len(docs))
		for id, c := range docs {
			s.documents[id] = c
		}
	}
}

// WithCurrentCampaign sets the campaign whose latest episode is always
// re-imported.
func WithCurrentCampaign(c int) Option {
	return func(s *Service) {
		if c > 0 {
			s.currentCampaign = c
		}
	}
}

// WithRefreshInterval sets the refresh gate cooldown.
func WithRefreshInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.refreshInterval = d
		}
	}
}

// WithMaxQueryLimit caps list query limits.
func WithMaxQueryLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxQueryLimit = n
		}
	}
}

// WithSyncFanout bounds concurrent fetches and upserts.
func WithSyncFanout(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.syncFanout = n
		}
	}
}

// WithSyncQueueSize bounds pending sync jobs.
func WithSyncQueueSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.syncQueueSize = n
		}
	}
}

// WithSyncWorkers sets the number of sync workers.
func WithSyncWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.syncWorkers = n
		}
	}
}

// WithNameBlocklist sets the placeholder names to discard.
func WithNameBlocklist(names []string) Option {
	return func(s *Service) {
		s.blocklist = append([]string(nil), names...)
	}
}

// WithClock overrides the time source of the gate and the store.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		dbPath:          repository.MemoryPath,
		sheetsBaseURL:   sheets.DefaultBaseURL,
		fetchTimeout:    30 * time.Second,
		documents:       map[string]int{},
		currentCampaign: ingest.DefaultCampaign,
		refreshInterval: gate.DefaultInterval,
		maxQueryLimit:   1000,
		syncFanout:      ingest.DefaultFanout,
		syncQueueSize:   16,
		syncWorkers:     1,
		blocklist:       canon.DefaultBlocklist,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// serialSyncer lets one sync run at a time, whether it came from a worker
// or from a direct call.
type serialSyncer struct {
	mu     sync.Mutex
	engine *ingest.Engine
}

func (s *serialSyncer) Sync(ctx context.Context, documentID string) (ingest.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Sync(ctx, documentID)
}

func (s *serialSyncer) SyncAll(ctx context.Context, documentIDs []string) ([]ingest.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.SyncAll(ctx, documentIDs)
}

// Start opens the store and starts the sync workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.logger.Info(ctx, "starting service...", logger.String("db", s.dbPath))

	store, err := repository.Open(ctx, s.dbPath, repository.WithClock(s.now))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	s.store = store

	if s.fetcher == nil {
		s.fetcher = sheets.NewClient(
			sheets.WithBaseURL(s.sheetsBaseURL),
			sheets.WithAPIKey(s.sheetsAPIKey),
			sheets.WithTimeout(s.fetchTimeout),
		)
	}
	s.syncer = &serialSyncer{engine: ingest.NewEngine(s.fetcher, store,
		ingest.WithCampaigns(s.documents),
		ingest.WithCurrentCampaign(s.currentCampaign),
		ingest.WithFanout(s.syncFanout),
		ingest.WithBlocklist(canon.NewBlocklist(s.blocklist...)),
	)}
	s.queries = query.NewEngine(store, query.WithMaxLimit(s.maxQueryLimit))
	s.gate = gate.New(store, gate.WithInterval(s.refreshInterval), gate.WithClock(s.now))

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.syncQueueSize))
	s.pool = worker.NewPool(s.syncWorkers, s.queue, s.syncer, worker.WithResultHandler(s.recordResult))
	s.pool.Start(runCtx)

	s.started = true
	s.logger.Info(ctx, "service started",
		logger.Int("workers", s.syncWorkers),
		logger.Int("queueSize", s.syncQueueSize),
		logger.Int("documents", len(s.documents)),
	)
	return nil
}

// Stop drains the sync queue and closes the store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping service...")

	var errs []error
	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop workers: %w", err))
	}
	s.cancel()
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}

	s.started = false
	s.logger.Info(ctx, "service stopped")
	return errors.Join(errs...)
}

func (s *Service) recordResult(_ context.Context, r worker.Result) {
	status := &SyncStatus{
		JobID:    r.Job.ID,
		Origin:   r.Job.Origin,
		Finished: r.Finished,
		Reports:  r.Reports,
	}
	if r.Err != nil {
		status.Error = r.Err.Error()
	}
	s.statusMu.Lock()
	s.lastSync = status
	s.statusMu.Unlock()
}

func (s *Service) ensureStarted() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// Sync ingests one document immediately.
func (s *Service) Sync(ctx context.Context, documentID string) (ingest.Report, error) {
	if err := s.ensureStarted(); err != nil {
		return ingest.Report{}, err
	}
	report, err := s.syncer.Sync(ctx, documentID)
	s.recordResult(ctx, worker.Result{
		Job:      model.SyncJob{DocumentIDs: []string{documentID}, Origin: "direct"},
		Reports:  []ingest.Report{report},
		Err:      err,
		Finished: s.now(),
	})
	return report, err
}

// SyncAll ingests every configured document immediately.
func (s *Service) SyncAll(ctx context.Context) ([]ingest.Report, error) {
	if err := s.ensureStarted(); err != nil {
		return nil, err
	}
	ids := s.documentIDs()
	if len(ids) == 0 {
		return nil, ErrNoDocuments
	}
	reports, err := s.syncer.SyncAll(ctx, ids)
	s.recordResult(ctx, worker.Result{
		Job:      model.SyncJob{DocumentIDs: ids, Origin: "direct"},
		Reports:  reports,
		Err:      err,
		Finished: s.now(),
	})
	return reports, err
}

// RequestRefresh asks the refresh gate whether origin may trigger a fetch
// and, if so, queues a sync of every configured document. It reports
// whether a job was queued.
func (s *Service) RequestRefresh(ctx context.Context, origin string) (bool, error) {
	if err := s.ensureStarted(); err != nil {
		return false, err
	}
	ids := s.documentIDs()
	if len(ids) == 0 {
		return false, nil
	}
	job := model.SyncJob{
		ID:          uuid.Must(uuid.NewV7()).String(),
		DocumentIDs: ids,
		Origin:      origin,
		RequestedAt: s.now(),
	}
	queued, err := s.gate.Admit(ctx, origin, func(ctx context.Context) error {
		return s.queue.Submit(ctx, job)
	})
	if errors.Is(err, gate.ErrDispatchFailed) {
		s.logger.Warn(ctx, "sync job not queued",
			logger.String("origin", origin),
			logger.Error(err),
		)
		return false, nil
	}
	if err != nil || !queued {
		return false, err
	}
	s.logger.Debug(ctx, "sync job queued", logger.String("job", job.ID), logger.String("origin", origin))
	return true, nil
}

func (s *Service) documentIDs() []string {
	ids := make([]string, 0, len(s.documents))
	for id := range s.documents {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// FindEpisodes lists episodes.
func (s *Service) FindEpisodes(ctx context.Context, f query.EpisodeFilter) ([]model.Episode, error) {
	if err := s.ensureStarted(); err != nil {
		return nil, err
	}
	return s.queries.FindEpisodes(ctx, f)
}

// FindParticipants lists participants.
func (s *Service) FindParticipants(ctx context.Context, f query.ParticipantFilter) ([]model.Participant, error) {
	if err := s.ensureStarted(); err != nil {
		return nil, err
	}
	return s.queries.FindParticipants(ctx, f)
}

// FindRolls lists roll records.
func (s *Service) FindRolls(ctx context.Context, f query.RollFilter, scope query.Scope) ([]model.RollRecord, error) {
	if err := s.ensureStarted(); err != nil {
		return nil, err
	}
	return s.queries.FindRolls(ctx, f, scope)
}

// CountRolls counts roll records.
func (s *Service) CountRolls(ctx context.Context, f query.RollFilter, scope query.Scope) (int64, error) {
	if err := s.ensureStarted(); err != nil {
		return 0, err
	}
	return s.queries.CountRolls(ctx, f, scope)
}

// AggregateRollField summarizes one numeric roll field.
func (s *Service) AggregateRollField(
	ctx context.Context, field string, f query.RollFilter, scope query.Scope,
) (query.Aggregate, bool, error) {
	if err := s.ensureStarted(); err != nil {
		return query.Aggregate{}, false, err
	}
	return s.queries.AggregateRollField(ctx, field, f, scope)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		Started:         s.started,
		Workers:         s.syncWorkers,
		QueueCapacity:   s.syncQueueSize,
		Documents:       len(s.documents),
		CurrentCampaign: s.currentCampaign,
		RefreshInterval: s.refreshInterval.Seconds(),
	}
	s.statusMu.Lock()
	stats.LastSync = s.lastSync
	s.statusMu.Unlock()
	if !s.started {
		return stats, nil
	}

	counts, err := s.store.Counts(ctx)
	if err != nil {
		return stats, fmt.Errorf("counts: %w", err)
	}
	stats.Counts = counts
	stats.QueueLength = s.queue.Len(ctx)
	stats.ActiveWorkers = s.pool.Active()

	metrics.UpdateQueueSize(stats.QueueLength)
	metrics.UpdateWorkerCount(s.pool.Size())
	return stats, nil
}

// Ping checks the store.
func (s *Service) Ping(ctx context.Context) error {
	if err := s.ensureStarted(); err != nil {
		return err
	}
	return s.store.Ping(ctx)
}
