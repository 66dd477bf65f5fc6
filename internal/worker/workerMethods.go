package worker

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/akolanti/FinBot/internal/config"
	"github.com/akolanti/FinBot/internal/domain/jobModel"
	"github.com/akolanti/FinBot/internal/metrics"
)

func (p *Pool) executeJob(parent context.Context, job jobModel.Job) {
	start := time.Now()
	defer func() {
		metrics.CaptureJobMetrics(string(job.Status), time.Since(start))
	}()

	ctxTrace := context.WithValue(parent, config.TraceIDKey, job.TraceId)
	ctx, cancel := context.WithTimeout(ctxTrace, p.jobTimeout)
	defer cancel()
	log := p.logger.WithTrace(ctx)
	log.Debug("Processing job", "jobId", job.Id)

	job.Status = jobModel.JobStatusRunning
	job.CurrentStep = jobModel.IngestProcessing
	p.saveJobState(ctx, job)

	job = p.ragService.IngestDocument(ctx, job)

	if job.EndTime.IsZero() {
		job.EndTime = time.Now()
	}
	// the job context may already be spent; the final state must still land
	saveCtx, saveCancel := context.WithTimeout(context.WithoutCancel(ctxTrace), 5*time.Second)
	defer saveCancel()
	p.saveJobState(saveCtx, job)
	log.Info("job finished", "jobId", job.Id, "status", job.Status, "added", job.JobPayload.ChunksAdded)
}

func (p *Pool) saveJobState(ctx context.Context, job jobModel.Job) {
	if err := p.jobService.JobStore.SaveJob(ctx, job); err != nil {
		p.logger.WithTrace(ctx).Error("Failed to update job state", "jobId", job.Id, "err", err)
	}
}

// Drain fails every job still waiting in the queue and removes its upload.
// Call it once the workers have stopped.
func (p *Pool) Drain(ctx context.Context) int {
	drained := 0
	for {
		select {
		case queued := <-p.jobService.JobChannel:
			metrics.DecrementJobsInQueue()
			p.abandonJob(ctx, queued)
			drained++
		default:
			return drained
		}
	}
}

func (p *Pool) abandonJob(parent context.Context, job jobModel.Job) {
	ctx := context.WithValue(parent, config.TraceIDKey, job.TraceId)
	log := p.logger.WithTrace(ctx)

	path := job.JobPayload.IngestURL
	if path != "" {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn("could not remove uploaded file", "path", path, "error", err)
		}
	}

	job.Status = jobModel.JobStatusError
	job.CurrentStep = jobModel.Error
	job.Error = jobModel.JobError{
		Code:    http.StatusServiceUnavailable,
		Message: "service shut down before the job ran",
		Retry:   true,
	}
	job.EndTime = time.Now()
	p.saveJobState(ctx, job)
	log.Info("queued job abandoned on shutdown", "jobId", job.Id)
}
