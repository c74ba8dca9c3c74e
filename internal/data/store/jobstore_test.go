package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/akolanti/GoIngest/internal/config"
	"github.com/akolanti/GoIngest/internal/data/redisStore"
	"github.com/akolanti/GoIngest/internal/data/store"
	"github.com/akolanti/GoIngest/internal/domain/jobModel"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redisStore.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, redisStore.NewFromClient(client)
}

func TestRedisJobStore_Lifecycle(t *testing.T) {
	mr, rs := newRedis(t)
	jobStore := store.NewRedisJobStore(rs)

	ctx := context.WithValue(context.Background(), config.TRACE_ID_KEY, "test-trace")
	jobID := "job_abc_123"

	testJob := jobModel.Job{
		Id:      jobID,
		JobType: jobModel.JobTypeIngest,
		Status:  jobModel.JobStatusRunning,
		JobPayload: jobModel.JobPayload{
			CollectionId: "docs",
			Filename:     "report.pdf",
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
		if retrievedJob.JobPayload.Filename != testJob.JobPayload.Filename {
			t.Errorf("Data mismatch! Got %s, want %s", retrievedJob.JobPayload.Filename, testJob.JobPayload.Filename)
		}
		if ttl := mr.TTL("job:" + jobID); ttl != config.RedisJobStoreTTL {
			t.Errorf("expected ttl %v, got %v", config.RedisJobStoreTTL, ttl)
		}
	})

	t.Run("Get Non-Existent Job", func(t *testing.T) {
		if _, found := jobStore.GetJob(ctx, "ghost-id"); found {
			t.Error("Expected found=false for non-existent key")
		}
	})

	t.Run("Corrupt Job", func(t *testing.T) {
		_ = mr.Set("job:broken", "{not json")
		if _, found := jobStore.GetJob(ctx, "broken"); found {
			t.Error("Expected found=false for a corrupt record")
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
	_, rs := newRedis(t)
	jobStore := store.NewRedisJobStore(rs)

	ctx := context.WithValue(context.Background(), config.TRACE_ID_KEY, "race-trace")
	job := jobModel.Job{Id: "race-job"}

	const workers = 50
	var wg sync.WaitGroup
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
		t.Error("expected race-job to be stored")
	}
}

func TestInMemoryJobStore(t *testing.T) {
	ctx := context.Background()
	s := store.InitInMemoryJobStore()
	_ = s.SaveJob(ctx, jobModel.Job{Id: "j1", Status: jobModel.JobStatusQueued})

	job, ok := s.GetJob(ctx, "j1")
	if !ok || job.Status != jobModel.JobStatusQueued {
		t.Fatalf("unexpected job %+v found=%v", job, ok)
	}
	s.DeleteJob(ctx, "j1")
	if _, ok := s.GetJob(ctx, "j1"); ok {
		t.Error("job survived delete")
	}
}

func TestInMemoryJobStoreEvictsOldest(t *testing.T) {
	ctx := context.Background()
	s := store.NewInMemoryJobStore(2, time.Hour)
	for _, id := range []string{"a", "b", "c"} {
		_ = s.SaveJob(ctx, jobModel.Job{Id: id})
	}
	if _, ok := s.GetJob(ctx, "a"); ok {
		t.Error("oldest job should be evicted")
	}
	if _, ok := s.GetJob(ctx, "c"); !ok {
		t.Error("newest job missing")
	}
}

func TestInMemoryJobStoreExpires(t *testing.T) {
	ctx := context.Background()
	s := store.NewInMemoryJobStore(10, 20*time.Millisecond)
	_ = s.SaveJob(ctx, jobModel.Job{Id: "short"})
	time.Sleep(60 * time.Millisecond)
	if _, ok := s.GetJob(ctx, "short"); ok {
		t.Error("job should have expired")
	}
}
