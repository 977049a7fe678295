package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ErrQueueSaturated means the debate queue buffer is full. The pair is
// dropped; callers decide whether to retry later.
var ErrQueueSaturated = errors.New("debate queue saturated")

const (
	defaultQueueWorkers   = 2
	defaultQueueBuffer    = 64
	defaultDebateTimeout  = 10 * time.Minute
	metricsRefreshTimeout = time.Minute
)

type debatePair struct {
	FromID string
	ToID   string
}

// DebateQueue runs auto-debates in the background. Workers call the
// orchestrator, whose generation calls are already serialized by the gate,
// so the worker count bounds concurrent retrieval rather than model
// pressure. Once the queue drains, claim metrics are refreshed.
type DebateQueue struct {
	orchestrator *Orchestrator
	analyzer     *Analyzer
	logger       *zap.Logger

	workers int
	timeout time.Duration
	jobs    chan debatePair
	pending atomic.Int64
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func NewDebateQueue(orchestrator *Orchestrator, analyzer *Analyzer, workers, buffer int, logger *zap.Logger) *DebateQueue {
	if workers <= 0 {
		workers = defaultQueueWorkers
	}
	if buffer <= 0 {
		buffer = defaultQueueBuffer
	}
	return &DebateQueue{
		orchestrator: orchestrator,
		analyzer:     analyzer,
		logger:       logger,
		workers:      workers,
		timeout:      defaultDebateTimeout,
		jobs:         make(chan debatePair, buffer),
		stopCh:       make(chan struct{}),
	}
}

// SetTimeout bounds a single queued debate, including its generation calls.
func (q *DebateQueue) SetTimeout(d time.Duration) {
	q.timeout = d
}

// Start launches the worker pool.
func (q *DebateQueue) Start() {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.logger.Info("debate queue started",
		zap.Int("workers", q.workers),
		zap.Int("buffer", cap(q.jobs)))
}

// Stop waits for in-flight debates to finish. Pairs still buffered are
// dropped.
func (q *DebateQueue) Stop() {
	close(q.stopCh)
	q.wg.Wait()
	q.logger.Info("debate queue stopped", zap.Int64("dropped", q.pending.Load()))
}

// Enqueue schedules a debate without blocking. A full buffer drops the pair
// and reports saturation.
func (q *DebateQueue) Enqueue(fromID, toID string) error {
	q.pending.Add(1)
	select {
	case q.jobs <- debatePair{FromID: fromID, ToID: toID}:
		return nil
	default:
		q.pending.Add(-1)
		q.logger.Warn("debate queue saturated, dropping pair",
			zap.String("from_claim", fromID),
			zap.String("to_claim", toID))
		return ErrQueueSaturated
	}
}

// Pending returns queued plus in-flight debates.
func (q *DebateQueue) Pending() int64 {
	return q.pending.Load()
}

func (q *DebateQueue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.stopCh:
			return
		case job := <-q.jobs:
			q.process(job)
		}
	}
}

func (q *DebateQueue) process(job debatePair) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	if _, err := q.orchestrator.DebateClaimPair(ctx, job.FromID, job.ToID); err != nil {
		q.logger.Warn("queued debate failed",
			zap.String("from_claim", job.FromID),
			zap.String("to_claim", job.ToID),
			zap.Error(err))
	}

	// The last job of a batch pays for the metrics refresh.
	if q.pending.Add(-1) == 0 {
		q.refreshMetrics()
	}
}

func (q *DebateQueue) refreshMetrics() {
	ctx, cancel := context.WithTimeout(context.Background(), metricsRefreshTimeout)
	defer cancel()
	if err := q.analyzer.RefreshMetrics(ctx); err != nil {
		q.logger.Warn("metrics refresh after queue drain failed", zap.Error(err))
	}
}
