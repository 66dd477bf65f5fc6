package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/akolanti/FinBot/internal/config"
	"github.com/akolanti/FinBot/internal/data/redisStore"
	"github.com/akolanti/FinBot/internal/data/store"
	"github.com/akolanti/FinBot/internal/domain/jobModel"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redisStore.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, redisStore.NewTestStore(client)
}

func TestRedisJobStore_Lifecycle(t *testing.T) {
	mr, internalStore := newRedis(t)
	jobStore := store.NewRedisJobStore(internalStore, time.Hour)

	ctx := context.WithValue(context.Background(), config.TraceIDKey, "test-trace")
	jobID := "job_abc_123"

	testJob := jobModel.Job{
		Id:     jobID,
		Status: jobModel.JobStatusRunning,
		JobPayload: jobModel.JobPayload{
			IngestFileName: "sofi_top_products.pdf",
		},
	}

	t.Run("Save and Get Roundtrip", func(t *testing.T) {
		if err := jobStore.SaveJob(ctx, testJob); err != nil {
			t.Fatalf("SaveJob failed: %v", err)
		}

		retrievedJob, found := jobStore.GetJob(ctx, jobID)
		if !found {
			t.Fatal("Job was saved but not found in Redis")
		}
		if retrievedJob.JobPayload.IngestFileName != testJob.JobPayload.IngestFileName {
			t.Errorf("Data mismatch! Got %s, want %s",
				retrievedJob.JobPayload.IngestFileName, testJob.JobPayload.IngestFileName)
		}
	})

	t.Run("TTL is applied", func(t *testing.T) {
		if ttl := mr.TTL("job:" + jobID); ttl != time.Hour {
			t.Errorf("expected 1h TTL, got %v", ttl)
		}
	})

	t.Run("Get Non-Existent Job", func(t *testing.T) {
		if _, found := jobStore.GetJob(ctx, "ghost-id"); found {
			t.Error("Expected found=false for non-existent key")
		}
	})

	t.Run("Delete Job", func(t *testing.T) {
		jobStore.DeleteJob(ctx, jobID)
		if mr.Exists("job:" + jobID) {
			t.Error("Job still exists in Redis after DeleteJob call")
		}
	})
}

func TestRedisJobStore_Race(t *testing.T) {
	_, internalStore := newRedis(t)
	jobStore := store.NewRedisJobStore(internalStore, time.Hour)

	ctx := context.WithValue(context.Background(), config.TraceIDKey, "race-trace")
	job := jobModel.Job{Id: "race-job"}

	var wg sync.WaitGroup
	const workers = 50
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = jobStore.SaveJob(ctx, job)
			_, _ = jobStore.GetJob(ctx, "race-job")
		}()
	}
	wg.Wait()

	if _, found := jobStore.GetJob(ctx, "race-job"); !found {
		t.Error("expected job to be stored")
	}
}

func TestInMemoryJobStore(t *testing.T) {
	ctx := context.Background()
	s := store.InitInMemoryJobStore()

	_ = s.SaveJob(ctx, jobModel.Job{Id: "a", Status: jobModel.JobStatusQueued})
	got, found := s.GetJob(ctx, "a")
	if !found || got.Status != jobModel.JobStatusQueued {
		t.Fatalf("unexpected job %+v (found %v)", got, found)
	}

	s.DeleteJob(ctx, "a")
	if _, found := s.GetJob(ctx, "a"); found {
		t.Error("job should be gone after delete")
	}
}

func TestDocumentRegistry(t *testing.T) {
	_, internalStore := newRedis(t)

	registries := map[string]store.DocumentRegistry{
		"in-memory": store.NewInMemoryRegistry(),
		"redis":     store.NewRedisRegistry(internalStore),
	}

	for name, registry := range registries {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := store.PageKey("finbot-docs", "faq.pdf", 2)
			hash := store.ContentHash("page two text")

			seen, err := registry.Seen(ctx, key, hash)
			if err != nil || seen {
				t.Fatalf("fresh registry reported seen=%v err=%v", seen, err)
			}

			if err := registry.Record(ctx, key, hash); err != nil {
				t.Fatalf("Record failed: %v", err)
			}
			if seen, _ := registry.Seen(ctx, key, hash); !seen {
				t.Error("recorded page should be seen")
			}
			if seen, _ := registry.Seen(ctx, key, store.ContentHash("edited page")); seen {
				t.Error("changed content must not count as seen")
			}
		})
	}
}

func TestPageKey(t *testing.T) {
	if got := store.PageKey("finbot-docs", "faq.pdf", 3); got != "finbot-docs:faq.pdf#3" {
		t.Errorf("unexpected key %q", got)
	}
}
