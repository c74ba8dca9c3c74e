package worker

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/akolanti/GoIngest/internal/config"
	jobmodel "github.com/akolanti/GoIngest/internal/domain/jobModel"
	"github.com/akolanti/GoIngest/internal/metrics"
)

func executeJob(job jobmodel.Job) {
	start := time.Now()
	defer func() {
		metrics.CaptureJobMetrics(string(job.JobType), string(job.Status), time.Since(start))
	}()
	ctxTrace := context.WithValue(context.Background(), config.TRACE_ID_KEY, job.TraceId)
	ctx, cancel := context.WithTimeout(ctxTrace, jobTimeout)
	defer cancel()
	log := logger.With("traceId", job.TraceId, "jobId", job.Id)
	log.Debug("Processing job", "type", job.JobType)

	job.Status = jobmodel.JobStatusRunning
	saveJobState(ctx, job)

	switch job.JobType {
	case jobmodel.JobTypeIngest:
		job = _ragService.IngestDocument(ctx, job)
	case jobmodel.JobTypeReprocess:
		job = _ragService.ReprocessDocument(ctx, job)
	default:
		log.Warn("Unknown job type")
		job.CurrentStep = jobmodel.Error
		job.Status = jobmodel.JobStatusError
		job.Error = jobmodel.JobError{Code: http.StatusBadRequest, Message: "unknown job type " + string(job.JobType)}
	}

	job.EndTime = time.Now()
	// the job may have outlived ctx
	saveJobState(context.WithoutCancel(ctx), job)
	log.Info("Job finished", "status", job.Status, "duration", time.Since(start))
}

// removeWorker expects currentWorkerCount to be decremented already.
func removeWorker(reason string) {
	workerWaitGroup.Done()
	logger.Info("Removed worker", "reason", reason, "workerCount", atomic.LoadInt64(&currentWorkerCount))
	metrics.DecrementActiveWorkerCount()
}

func saveJobState(ctx context.Context, job jobmodel.Job) {
	if err := _jobService.JobStore.SaveJob(ctx, job); err != nil {
		logger.Error("Failed to update job state", "jobId", job.Id, "err", err)
	}
}
