package worker

import (
	"context"
	"sync"
	"time"

	"github.com/vytor/lexideck/internal/logger"
)

// Job is a unit of background work. Run must honor ctx cancellation; jobs
// are never retried by the pool itself.
type Job interface {
	Run(context.Context) error
	Name() string
}

// Pool runs jobs on a fixed set of workers with a bounded queue. It caps
// global sync concurrency: however many users are tracked, at most `workers`
// sync cycles run at once.
type Pool struct {
	jobs    chan Job
	wg      sync.WaitGroup
	workers int
	cancel  context.CancelFunc
	log     *logger.Logger
}

const (
	defaultWorkers   = 2
	defaultQueueSize = 32
)

func NewPool(workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Pool{
		jobs:    make(chan Job, queueSize),
		workers: workers,
		log:     logger.Default().WithPrefix("worker-pool"),
	}
}

// Start launches the workers. They exit when ctx is cancelled or the queue
// is closed by Stop.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.log.Info("starting %d workers (queue capacity %d)", p.workers, cap(p.jobs))

	for i := 1; i <= p.workers; i++ {
		p.wg.Add(1)
		go p.runWorker(ctx, i)
	}
}

func (p *Pool) runWorker(ctx context.Context, id int) {
	defer p.wg.Done()
	log := p.log.WithField("worker_id", id)
	log.Debug("worker started")

	for {
		select {
		case <-ctx.Done():
			log.Debug("worker stopping: context cancelled")
			return
		case job, ok := <-p.jobs:
			if !ok {
				log.Debug("worker stopping: queue closed")
				return
			}
			p.execute(ctx, log, job)
		}
	}
}

func (p *Pool) execute(ctx context.Context, log *logger.Logger, job Job) {
	jobLog := log.WithField("job", job.Name())
	start := time.Now()

	if err := job.Run(logger.NewContext(ctx, jobLog)); err != nil {
		jobLog.Error("job failed after %v: %v", time.Since(start), err)
		return
	}
	jobLog.Info("job completed in %v", time.Since(start))
}

// Stop cancels in-flight jobs via their context, closes the queue, and waits
// for the workers to return. Pending queued jobs are dropped.
func (p *Pool) Stop() {
	p.log.Info("stopping worker pool")
	if p.cancel != nil {
		p.cancel()
	}
	close(p.jobs)
	p.wg.Wait()
	p.log.Info("worker pool stopped")
}

// Submit blocks until the job is queued.
func (p *Pool) Submit(job Job) {
	p.log.Debug("submitting job: %s", job.Name())
	p.jobs <- job
}

// TrySubmit enqueues the job without blocking. Returns false when the queue
// is full; the caller decides whether dropping the job is acceptable.
func (p *Pool) TrySubmit(job Job) bool {
	select {
	case p.jobs <- job:
		return true
	default:
		p.log.Warn("queue full, job dropped: %s", job.Name())
		return false
	}
}

// QueueSize returns the current number of pending jobs.
func (p *Pool) QueueSize() int {
	return len(p.jobs)
}
