package job

import (
	"context"
	"errors"
	"time"

	"github.com/akolanti/FinBot/internal/config"
	"github.com/akolanti/FinBot/internal/domain/jobModel"
	"github.com/akolanti/FinBot/internal/metrics"
	"github.com/akolanti/FinBot/pkg/logger_i"
	"github.com/google/uuid"
)

var ErrQueueFull = errors.New("ingest queue is full")

// Service queues ingest jobs for the worker pool and tracks their state.
type Service struct {
	JobChannel chan jobModel.Job
	JobStore   jobModel.JobStore
	logger     *logger_i.Logger
}

func InitJobService(store jobModel.JobStore, buffer int) *Service {
	return &Service{
		JobChannel: make(chan jobModel.Job, buffer),
		JobStore:   store,
		logger:     logger_i.NewLogger("Job Service"),
	}
}

// EnqueueIngest records a queued job for the uploaded file at path. It never
// blocks: a full queue is reported as ErrQueueFull.
func (s *Service) EnqueueIngest(ctx context.Context, fileName string, path string) (jobModel.Job, error) {
	traceID, _ := ctx.Value(config.TraceIDKey).(string)
	j := jobModel.Job{
		Id:          uuid.NewString(),
		TraceId:     traceID,
		JobType:     jobModel.JobTypeIngest,
		CreatedTime: time.Now(),
		Status:      jobModel.JobStatusQueued,
		CurrentStep: jobModel.IngestInit,
		JobPayload: jobModel.JobPayload{
			IngestFileName: fileName,
			IngestURL:      path,
		},
	}

	if err := s.JobStore.SaveJob(ctx, j); err != nil {
		return jobModel.Job{}, err
	}

	select {
	case s.JobChannel <- j:
		metrics.IncrementJobsInQueue()
		s.logger.WithTrace(ctx).Info("ingest job queued", "jobId", j.Id, "file", fileName)
		return j, nil
	default:
		s.JobStore.DeleteJob(ctx, j.Id)
		return jobModel.Job{}, ErrQueueFull
	}
}

func (s *Service) GetJob(ctx context.Context, id string) (jobModel.Job, bool) {
	return s.JobStore.GetJob(ctx, id)
}
