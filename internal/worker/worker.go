package worker

import (
	"context"
	"sync"
	"time"

	"github.com/akolanti/FinBot/internal/job"
	"github.com/akolanti/FinBot/internal/metrics"
	"github.com/akolanti/FinBot/internal/rag"
	"github.com/akolanti/FinBot/pkg/logger_i"
)

// Pool runs ingest jobs. Ingestion holds the index write lock, so a single
// worker is usually enough; more only help with file extraction.
type Pool struct {
	jobService *job.Service
	ragService rag.Service
	count      int
	jobTimeout time.Duration

	wg     sync.WaitGroup
	logger *logger_i.Logger
}

func NewPool(jobService *job.Service, ragService rag.Service, count int, jobTimeout time.Duration) *Pool {
	if count < 1 {
		count = 1
	}
	return &Pool{
		jobService: jobService,
		ragService: ragService,
		count:      count,
		jobTimeout: jobTimeout,
		logger:     logger_i.NewLogger("WorkerPool"),
	}
}

// Start launches the workers. They stop when ctx is done.
func (p *Pool) Start(ctx context.Context) {
	p.logger.Info("Initializing worker pool", "workers", p.count)
	for i := 0; i < p.count; i++ {
		p.createWorker(ctx, i)
	}
}

// Wait blocks until every worker has returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) createWorker(ctx context.Context, id int) {
	p.wg.Add(1)
	metrics.IncrementActiveWorkerCount()
	go p.worker(ctx, id)
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.removeWorker(id)
	for {
		select {
		case currentJob := <-p.jobService.JobChannel:
			metrics.DecrementJobsInQueue()
			p.executeJob(ctx, currentJob)
		case <-ctx.Done():
			return
		}
	}
}

func (p *Pool) removeWorker(id int) {
	metrics.DecrementActiveWorkerCount()
	p.logger.Info("Removed worker", "worker", id)
	p.wg.Done()
}
