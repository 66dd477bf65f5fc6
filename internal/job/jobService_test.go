package job

import (
	"context"
	"errors"
	"testing"

	"github.com/akolanti/FinBot/internal/config"
	"github.com/akolanti/FinBot/internal/data/store"
	"github.com/akolanti/FinBot/internal/domain/jobModel"
)

func TestEnqueueIngest(t *testing.T) {
	s := InitJobService(store.InitInMemoryJobStore(), 1)
	ctx := context.WithValue(context.Background(), config.TraceIDKey, "trace-1")

	j, err := s.EnqueueIngest(ctx, "faq.pdf", "temporary_data/faq.pdf")
	if err != nil {
		t.Fatalf("EnqueueIngest failed: %v", err)
	}
	if j.Status != jobModel.JobStatusQueued || j.JobType != jobModel.JobTypeIngest || j.TraceId != "trace-1" {
		t.Errorf("unexpected job %+v", j)
	}

	stored, found := s.GetJob(ctx, j.Id)
	if !found || stored.JobPayload.IngestURL != "temporary_data/faq.pdf" {
		t.Errorf("job not stored: %+v (found %v)", stored, found)
	}

	queued := <-s.JobChannel
	if queued.Id != j.Id {
		t.Errorf("queued job %s, want %s", queued.Id, j.Id)
	}
}

func TestEnqueueIngest_QueueFull(t *testing.T) {
	jobs := store.InitInMemoryJobStore()
	s := InitJobService(jobs, 1)
	ctx := context.Background()

	if _, err := s.EnqueueIngest(ctx, "a.txt", "a"); err != nil {
		t.Fatalf("first enqueue failed: %v", err)
	}
	_, err := s.EnqueueIngest(ctx, "b.txt", "b")
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}
