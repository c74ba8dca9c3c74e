package maintenance

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/akolanti/GoIngest/pkg/logger_i"
	"github.com/robfig/cron/v3"
)

var logger = logger_i.NewLogger("Maintenance")

type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler runs jobs on five-field cron specs. A run is skipped while the previous one is still going.
type Scheduler struct {
	cron    *cron.Cron
	entries map[string]cron.EntryID
	ctx     context.Context
}

func NewScheduler() *Scheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return &Scheduler{
		cron:    cron.New(cron.WithParser(parser)),
		entries: make(map[string]cron.EntryID),
		ctx:     context.Background(),
	}
}

func (s *Scheduler) AddJob(job Job, schedule string) error {
	id, err := s.cron.AddFunc(schedule, s.wrap(job))
	if err != nil {
		logger.Error("Could not schedule job", "job", job.Name(), "schedule", schedule, "error", err)
		return err
	}
	s.entries[job.Name()] = id
	logger.Info("Job scheduled", "job", job.Name(), "schedule", schedule)
	return nil
}

func (s *Scheduler) Start(ctx context.Context) {
	if ctx != nil {
		s.ctx = ctx
	}
	s.cron.Start()
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) wrap(job Job) func() {
	var running atomic.Bool
	return func() {
		if !running.CompareAndSwap(false, true) {
			logger.Info("Job skipped: still running", "job", job.Name())
			return
		}
		defer running.Store(false)

		start := time.Now()
		if err := job.Run(s.ctx); err != nil {
			logger.Error("Job failed", "job", job.Name(), "error", err, "duration", time.Since(start))
			return
		}
		logger.Debug("Job finished", "job", job.Name(), "duration", time.Since(start))
	}
}
