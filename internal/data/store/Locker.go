package store

import (
	"context"
	"sync"
	"time"

	"github.com/akolanti/GoIngest/internal/data/redisStore"
	"github.com/akolanti/GoIngest/internal/domain/docModel"
	"github.com/akolanti/GoIngest/pkg/logger_i"
	"github.com/google/uuid"
)

const lockKeyPrefix = "lock:"

var lockLogger = logger_i.NewLogger("locker")

// InMemoryLocker is a process-local lock table with expiry.
type InMemoryLocker struct {
	mu    sync.Mutex
	owner map[string]lease
}

type lease struct {
	token   string
	expires time.Time
}

func NewInMemoryLocker() *InMemoryLocker {
	return &InMemoryLocker{owner: make(map[string]lease)}
}

func (l *InMemoryLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if held, ok := l.owner[key]; ok && now.Before(held.expires) {
		return nil, docModel.ErrLockHeld
	}
	token := uuid.NewString()
	l.owner[key] = lease{token: token, expires: now.Add(ttl)}

	return func(context.Context) {
		l.mu.Lock()
		defer l.mu.Unlock()
		if held, ok := l.owner[key]; ok && held.token == token {
			delete(l.owner, key)
		}
	}, nil
}

// RedisLocker uses SET NX with a random token; release only deletes its own token.
type RedisLocker struct {
	store *redisStore.Store
}

func NewRedisLocker(store *redisStore.Store) *RedisLocker {
	return &RedisLocker{store: store}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context), error) {
	token := uuid.NewString()
	ok, err := l.store.SetNX(ctx, lockKeyPrefix+key, token, ttl)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, docModel.ErrLockHeld
	}

	return func(ctx context.Context) {
		released, err := l.store.ReleaseIfOwner(ctx, lockKeyPrefix+key, token)
		if err != nil {
			lockLogger.Error("lock release failed", "key", key, "error", err)
			return
		}
		if !released {
			lockLogger.Warn("lock expired before release", "key", key)
		}
	}, nil
}
