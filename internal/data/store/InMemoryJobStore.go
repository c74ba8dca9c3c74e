package store

import (
	"context"
	"time"

	"github.com/akolanti/GoIngest/internal/config"
	"github.com/akolanti/GoIngest/internal/domain/jobModel"
	"github.com/akolanti/GoIngest/pkg/logger_i"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

var inMemLogger = logger_i.NewLogger("inmem_store")

// InMemoryJobStore is the fallback when Redis is not configured. Jobs expire
// like their Redis counterparts and the oldest are evicted past the limit.
type InMemoryJobStore struct {
	jobs *expirable.LRU[string, jobModel.Job]
}

func InitInMemoryJobStore() *InMemoryJobStore {
	return NewInMemoryJobStore(config.InMemoryJobLimit, config.RedisJobStoreTTL)
}

func NewInMemoryJobStore(limit int, ttl time.Duration) *InMemoryJobStore {
	return &InMemoryJobStore{jobs: expirable.NewLRU[string, jobModel.Job](limit, nil, ttl)}
}

func (store *InMemoryJobStore) SaveJob(ctx context.Context, job jobModel.Job) error {
	store.jobs.Add(job.Id, job)
	inMemLogger.Debug("saved job", "traceId", ctx.Value(config.TRACE_ID_KEY), "jobId", job.Id, "status", job.Status)
	return nil
}

func (store *InMemoryJobStore) GetJob(_ context.Context, jobId string) (jobModel.Job, bool) {
	return store.jobs.Get(jobId)
}

func (store *InMemoryJobStore) DeleteJob(_ context.Context, jobID string) {
	store.jobs.Remove(jobID)
}
