package job

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/akolanti/GoIngest/internal/config"
	"github.com/akolanti/GoIngest/internal/domain/jobModel"
	"github.com/akolanti/GoIngest/internal/metrics"
	"github.com/akolanti/GoIngest/pkg/logger_i"
)

var logger = logger_i.NewLogger("JobService")

// Service carries the queue shared by the HTTP handlers and the worker pool.
type Service struct {
	JobChannel        chan jobModel.Job
	RequestCount      int64
	DispatcherChannel chan bool
	JobStore          jobModel.JobStore
}

type ServiceConfig struct {
	JobChannel        chan jobModel.Job
	DispatcherChannel chan bool
	JobStore          jobModel.JobStore
}

// Request describes a document job before it is queued.
type Request struct {
	Id      string
	TraceId string
	Type    jobModel.JobType
	Payload jobModel.JobPayload
}

func InitJobService(cfg ServiceConfig) *Service {
	return &Service{
		JobChannel:        cfg.JobChannel,
		DispatcherChannel: cfg.DispatcherChannel,
		JobStore:          cfg.JobStore,
	}
}

// Enqueue records the job as queued and hands it to the worker pool.
// The send blocks while the queue is full so uploads cannot outrun the workers.
func (s *Service) Enqueue(ctx context.Context, req Request) jobModel.Job {
	queued := jobModel.Job{
		Id:          req.Id,
		TraceId:     req.TraceId,
		JobType:     req.Type,
		Status:      jobModel.JobStatusQueued,
		CurrentStep: jobModel.IngestInit,
		CreatedTime: time.Now(),
		JobPayload:  req.Payload,
	}
	log := logger.With("traceId", req.TraceId, "jobId", req.Id)

	if err := s.JobStore.SaveJob(ctx, queued); err != nil {
		log.Error("Could not save queued job", "error", err)
	}
	metrics.IncrementJobsInQueue()
	s.JobChannel <- queued
	log.Info("Queued job", "type", req.Type, "document", req.Payload.DocumentId)

	count := atomic.AddInt64(&s.RequestCount, 1)
	if wantsWorker(count, req.Type) {
		s.signalDispatcher(log, count)
	}
	return queued
}

// Status returns the last saved state of a job.
func (s *Service) Status(ctx context.Context, id string) (jobModel.Job, bool) {
	return s.JobStore.GetJob(ctx, id)
}

// an upload is extract + embed + upsert and mostly waits on remote calls,
// so every upload asks for a worker; anything else every few requests
func wantsWorker(count int64, t jobModel.JobType) bool {
	return t == jobModel.JobTypeIngest || count%config.RequestsPerNewWorkerCount == 0
}

func (s *Service) signalDispatcher(log *logger_i.Logger, count int64) {
	metrics.StartDispatcherSignalCount()
	select {
	case s.DispatcherChannel <- true:
		log.Debug("Asked dispatcher for a worker", "requests", count)
	default:
		log.Debug("Dispatcher busy, signal dropped")
	}
}
