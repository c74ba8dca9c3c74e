package redisStore

import (
	"context"
	"fmt"
	"time"

	"github.com/akolanti/GoIngest/internal/config"
	"github.com/akolanti/GoIngest/pkg/logger_i"
	"github.com/redis/go-redis/v9"
)

var logger = logger_i.NewLogger("redis_store")

type Options struct {
	Addr     string
	Password string
	DB       int
}

// Store wraps one redis logical database.
type Store struct {
	client *redis.Client
	DB     int
}

// Open connects to one logical database and pings it.
func Open(ctx context.Context, opts Options) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:                  opts.Addr,
		Password:              opts.Password,
		DB:                    opts.DB,
		ContextTimeoutEnabled: true,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis %s db %d is offline: %w", opts.Addr, opts.DB, err)
	}

	logger.Info("redis store ready", "addr", opts.Addr, "db", opts.DB)
	return &Store{client: client, DB: opts.DB}, nil
}

// OpenAll opens the job, document and lock databases on one server.
func OpenAll(ctx context.Context, addr, password string) (jobs, docs, locks *Store, err error) {
	stores := make([]*Store, 0, 3)
	for _, db := range []int{config.RedisJobStore, config.RedisDocumentStore, config.RedisLockStore} {
		s, err := Open(ctx, Options{Addr: addr, Password: password, DB: db})
		if err != nil {
			for _, opened := range stores {
				_ = opened.Close()
			}
			return nil, nil, nil, err
		}
		stores = append(stores, s)
	}
	return stores[0], stores[1], stores[2], nil
}

func NewFromClient(client *redis.Client) *Store {
	return &Store{client: client, DB: client.Options().DB}
}

func (s *Store) Client() *redis.Client {
	return s.client
}

func (s *Store) Close() error {
	if err := s.client.Close(); err != nil {
		logger.Error("error closing redis client", "db", s.DB, "error", err)
		return err
	}
	return nil
}
