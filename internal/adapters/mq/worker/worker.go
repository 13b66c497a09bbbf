package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avielmenter/CritiQL/internal/adapters/mq/queue"
	"github.com/avielmenter/CritiQL/internal/domain/ingest"
	"github.com/avielmenter/CritiQL/pkg/logger"
	"github.com/avielmenter/CritiQL/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerCount    = 1
	metricsUpdateInterval = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Job is what workers read off the queue.
type Job = queue.Job

// Syncer ingests a set of documents.
type Syncer interface {
	SyncAll(ctx context.Context, documentIDs []string) ([]ingest.Report, error)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// Result is the outcome of one job.
type Result struct {
	Job      Job
	Reports  []ingest.Report
	Err      error
	Finished time.Time
}

// ResultHandler observes finished jobs.
type ResultHandler func(ctx context.Context, r Result)

// Worker processes sync jobs.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue closes.
	Run(ctx context.Context)

	// Shutdown stops the worker after its current job.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue    Queue
	syncer   Syncer
	name     string
	onResult ResultHandler
	active   *atomic.Int32

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, s Syncer, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		syncer:   s,
		name:     "worker",
		onResult: func(context.Context, Result) {},
		active:   &atomic.Int32{},
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, job); err != nil {
				w.logger.Error(ctx, "sync job failed",
					logger.String("job", job.ID),
					logger.Error(err),
				)
			}
		}
	}
}

func (w *InMemoryWorker) stop() {
	w.shutdownOnce.Do(func() { close(w.shutdown) })
}

// Shutdown stops the worker after its current job.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.stop()
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process runs one job.
func (w *InMemoryWorker) process(ctx context.Context, job Job) error { //nolint:gocritic // hugeParam: Job is passed by value through the channel
	start := time.Now()
	metrics.UpdateWorkerActiveCount(int(w.active.Add(1)))
	defer func() {
		metrics.UpdateWorkerActiveCount(int(w.active.Add(-1)))
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	w.logger.Info(ctx, "sync job started",
		logger.String("job", job.ID),
		logger.String("origin", job.Origin),
		logger.Int("documents", len(job.DocumentIDs)),
	)
	reports, err := w.syncer.SyncAll(ctx, job.DocumentIDs)
	w.onResult(ctx, Result{Job: job, Reports: reports, Err: err, Finished: time.Now()})
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "sync_error")
		return fmt.Errorf("sync job %s: %w", job.ID, err)
	}

	var inserted int64
	for _, r := range reports {
		inserted += r.Inserted
	}
	w.logger.Info(ctx, "sync job finished",
		logger.String("job", job.ID),
		logger.Int64("inserted", inserted),
		logger.Duration("took", time.Since(start)),
	)
	return nil
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	active  atomic.Int32

	shutdown     chan struct{}
	shutdownOnce sync.Once
	wg           sync.WaitGroup

	logger logger.Logger
}

// NewPool creates a worker pool. A non-positive count yields one worker, so
// at most one sync runs at a time.
func NewPool(workerCount int, q Queue, s Syncer, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}

	pool := &Pool{
		workers:  make([]*InMemoryWorker, workerCount),
		queue:    q,
		shutdown: make(chan struct{}),
		logger:   logger.Get().Named("worker-pool"),
	}
	for i := range workerCount {
		wopts := append(append([]Option{}, opts...), WithName("worker-"+strconv.Itoa(i)))
		w := NewInMemoryWorker(q, s, wopts...)
		w.active = &pool.active
		pool.workers[i] = w
	}

	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Active returns the number of workers currently running a job.
func (p *Pool) Active() int { return int(p.active.Load()) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	p.wg.Add(1)
	go p.startMetricsUpdater(ctx)
}

// startMetricsUpdater periodically republishes the active worker gauge.
func (p *Pool) startMetricsUpdater(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(metricsUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case <-ticker.C:
			metrics.UpdateWorkerActiveCount(p.Active())
		}
	}
}

// Stop signals every worker to stop after its current job and waits for
// them. Pending jobs stay queued.
func (p *Pool) Stop(ctx context.Context) {
	p.shutdownOnce.Do(func() { close(p.shutdown) })
	for i, w := range p.workers {
		if err := w.Shutdown(ctx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	p.wg.Wait()
}

// Shutdown closes the queue, lets workers drain the pending jobs and waits
// for them, giving up after ctx or the pool timeout expires.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}
	p.shutdownOnce.Do(func() { close(p.shutdown) })

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			timedOut = true
			w.stop()
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	p.wg.Wait()
	if timedOut {
		return fmt.Errorf("pool shutdown: %w", shutdownCtx.Err())
	}
	return nil
}
