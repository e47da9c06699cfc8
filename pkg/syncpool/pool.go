// Package syncpool runs the background cache mutations that follow remote
// writes. Jobs are sharded by key so that every job for one key runs on the
// same worker, in dispatch order.
package syncpool

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Job is one unit of background work. Key picks the worker; Op is only used
// in logs.
type Job struct {
	Key     string
	Op      string
	Handler func(ctx context.Context) error
}

// PoolStats contains live pool metrics.
type PoolStats struct {
	NumWorkers      int           `json:"num_workers"`
	QueueSize       int           `json:"queue_size"`
	ActiveWorkers   int           `json:"active_workers"`
	Pending         int64         `json:"pending"`
	TotalDispatched int64         `json:"total_dispatched"`
	TotalProcessed  int64         `json:"total_processed"`
	TotalDropped    int64         `json:"total_dropped"`
	TotalErrors     int64         `json:"total_errors"`
	WorkerStats     []WorkerStats `json:"worker_stats"`
}

// WorkerStats contains metrics for one worker.
type WorkerStats struct {
	WorkerID      int   `json:"worker_id"`
	QueueDepth    int   `json:"queue_depth"`
	IsProcessing  bool  `json:"is_processing"`
	JobsProcessed int64 `json:"jobs_processed"`
}

// Pool is a fixed set of workers, each with its own queue.
type Pool struct {
	numWorkers int
	queueSize  int
	workers    []*worker
	wg         sync.WaitGroup

	// mu guards stopped/started against queue close.
	mu      sync.RWMutex
	started bool
	stopped bool
	// drainMu keeps inline drains in queue order.
	drainMu sync.Mutex

	pendingMu   sync.Mutex
	pendingCond *sync.Cond
	pending     int64

	totalDispatched int64
	totalProcessed  int64
	totalDropped    int64
	totalErrors     int64

	// OnJobDone is called after every job with its error, if any.
	OnJobDone func(job Job, err error)
}

type worker struct {
	id            int
	jobQueue      chan Job
	isProcessing  int32
	jobsProcessed int64
	pool          *Pool
}

// New creates a pool. Jobs may be dispatched before Start; they run once the
// workers are up.
func New(numWorkers, queueSize int) *Pool {
	if numWorkers <= 0 {
		numWorkers = 4
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	p := &Pool{
		numWorkers: numWorkers,
		queueSize:  queueSize,
		workers:    make([]*worker, numWorkers),
	}
	p.pendingCond = sync.NewCond(&p.pendingMu)
	for i := range p.workers {
		p.workers[i] = &worker{id: i, jobQueue: make(chan Job, queueSize), pool: p}
	}
	return p
}

// Start launches the workers. ctx is handed to every job handler.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true
	for _, w := range p.workers {
		p.wg.Add(1)
		go w.run(ctx, &p.wg)
	}
	logrus.Infof("[SYNC_POOL] Started with %d workers, queue size: %d", p.numWorkers, p.queueSize)
}

// TryDispatch queues job without blocking. It returns false when the target
// queue is full or the pool is stopped; the caller decides what to do then.
func (p *Pool) TryDispatch(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		atomic.AddInt64(&p.totalDropped, 1)
		return false
	}

	shard := p.shardFor(job.Key)
	p.addPending(1)
	select {
	case p.workers[shard].jobQueue <- job:
		atomic.AddInt64(&p.totalDispatched, 1)
		return true
	default:
		p.addPending(-1)
		atomic.AddInt64(&p.totalDropped, 1)
		logrus.Warnf("[SYNC_POOL] Worker %d queue full, rejecting %s job for %s", shard, job.Op, job.Key)
		return false
	}
}

// Wait blocks until every dispatched job has finished. On a pool that was
// never started the queued jobs run on the calling goroutine.
func (p *Pool) Wait() {
	if !p.Started() {
		p.drainInline()
	}
	p.pendingMu.Lock()
	for p.pending > 0 {
		p.pendingCond.Wait()
	}
	p.pendingMu.Unlock()
}

// Stop rejects new jobs, runs what is already queued and waits for the
// workers to exit.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	started := p.started
	for _, w := range p.workers {
		close(w.jobQueue)
	}
	p.mu.Unlock()

	logrus.Info("[SYNC_POOL] Stopping workers...")
	if !started {
		for _, w := range p.workers {
			for job := range w.jobQueue {
				w.process(context.Background(), job)
			}
		}
	}
	p.wg.Wait()
	logrus.Info("[SYNC_POOL] All workers stopped")
}

// drainInline runs whatever sits in the queues without blocking for more.
// It returns as soon as the workers take over.
func (p *Pool) drainInline() {
	p.drainMu.Lock()
	defer p.drainMu.Unlock()
	for _, w := range p.workers {
	queue:
		for !p.Started() {
			select {
			case job, ok := <-w.jobQueue:
				if !ok {
					return
				}
				w.process(context.Background(), job)
			default:
				break queue
			}
		}
	}
}

// Started reports whether Start has been called.
func (p *Pool) Started() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.started
}

// Stopped reports whether Stop has been called.
func (p *Pool) Stopped() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stopped
}

func (p *Pool) shardFor(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(p.numWorkers))
}

func (p *Pool) addPending(delta int64) {
	p.pendingMu.Lock()
	p.pending += delta
	if p.pending <= 0 {
		p.pending = 0
		p.pendingCond.Broadcast()
	}
	p.pendingMu.Unlock()
}

// GetStats returns live pool statistics.
func (p *Pool) GetStats() PoolStats {
	workerStats := make([]WorkerStats, len(p.workers))
	active := 0
	for i, w := range p.workers {
		busy := atomic.LoadInt32(&w.isProcessing) == 1
		if busy {
			active++
		}
		workerStats[i] = WorkerStats{
			WorkerID:      w.id,
			QueueDepth:    len(w.jobQueue),
			IsProcessing:  busy,
			JobsProcessed: atomic.LoadInt64(&w.jobsProcessed),
		}
	}

	p.pendingMu.Lock()
	pending := p.pending
	p.pendingMu.Unlock()

	return PoolStats{
		NumWorkers:      p.numWorkers,
		QueueSize:       p.queueSize,
		ActiveWorkers:   active,
		Pending:         pending,
		TotalDispatched: atomic.LoadInt64(&p.totalDispatched),
		TotalProcessed:  atomic.LoadInt64(&p.totalProcessed),
		TotalDropped:    atomic.LoadInt64(&p.totalDropped),
		TotalErrors:     atomic.LoadInt64(&p.totalErrors),
		WorkerStats:     workerStats,
	}
}

func (w *worker) run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	logrus.Debugf("[SYNC_POOL] Worker %d started", w.id)
	// Queues are only closed by Stop; ranging drains whatever is left.
	for job := range w.jobQueue {
		w.process(ctx, job)
	}
	logrus.Debugf("[SYNC_POOL] Worker %d shutting down", w.id)
}

func (w *worker) process(ctx context.Context, job Job) {
	var err error
	atomic.StoreInt32(&w.isProcessing, 1)
	defer func() {
		if r := recover(); r != nil {
			atomic.AddInt64(&w.pool.totalErrors, 1)
			logrus.Errorf("[SYNC_POOL] Worker %d panic in %s job for %s: %v", w.id, job.Op, job.Key, r)
		}
		if w.pool.OnJobDone != nil {
			w.pool.OnJobDone(job, err)
		}
		atomic.StoreInt32(&w.isProcessing, 0)
		atomic.AddInt64(&w.jobsProcessed, 1)
		atomic.AddInt64(&w.pool.totalProcessed, 1)
		w.pool.addPending(-1)
	}()

	if err = job.Handler(ctx); err != nil {
		atomic.AddInt64(&w.pool.totalErrors, 1)
		logrus.WithError(err).Errorf("[SYNC_POOL] Worker %d %s job failed for %s", w.id, job.Op, job.Key)
	}
}
