package store

import (
	"context"
	"errors"

	"github.com/akolanti/GoIngest/internal/config"
	"github.com/akolanti/GoIngest/internal/data/redisStore"
	"github.com/akolanti/GoIngest/internal/domain/docModel"
	"github.com/akolanti/GoIngest/internal/domain/jobModel"
)

type Backends struct {
	Jobs      jobModel.JobStore
	Documents docModel.DocumentRepository
	Locker    docModel.Locker
	Redis     bool

	closers []*redisStore.Store
}

// Open returns redis-backed stores when redis is enabled and reachable,
// otherwise in-memory ones if falling back is allowed.
func Open(ctx context.Context, settings config.RedisSettings) (*Backends, error) {
	if settings.Enabled {
		jobs, docs, locks, err := redisStore.OpenAll(ctx, settings.Addr, settings.Password)
		if err == nil {
			return &Backends{
				Jobs:      NewRedisJobStore(jobs),
				Documents: NewRedisDocumentStore(docs),
				Locker:    NewRedisLocker(locks),
				Redis:     true,
				closers:   []*redisStore.Store{jobs, docs, locks},
			}, nil
		}
		if !config.FALLBACK_REDIS_TO_INTERNALSTORE {
			return nil, err
		}
		inMemLogger.Warn("redis unavailable, falling back to in-memory stores", "error", err)
	}
	return &Backends{
		Jobs:      InitInMemoryJobStore(),
		Documents: InitInMemoryDocumentStore(),
		Locker:    NewInMemoryLocker(),
	}, nil
}

func (b *Backends) Close() error {
	var errs []error
	for _, c := range b.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
