package handlers

import (
	"context"
	"sync"

	"github.com/akolanti/GoIngest/internal/config"
	"github.com/akolanti/GoIngest/internal/domain/jobModel"
	"github.com/akolanti/GoIngest/internal/job"
	"github.com/akolanti/GoIngest/pkg/logger_i"
)

var (
	handlerInstance *JobHandler //private singleton
	once            sync.Once
	logJH           = logger_i.NewLogger("JobHandler")
)

type JobHandler struct {
	service *job.Service
}

func InitJobHandler(jobService *job.Service) {
	once.Do(func() {
		handlerInstance = &JobHandler{service: jobService}
		logJH.Info("Starting job handler")
	})
}

// CreateNewJob queues a document job; it blocks while the queue is full.
func CreateNewJob(newJob newJobData) {
	ctx := context.WithValue(context.Background(), config.TRACE_ID_KEY, newJob.traceId)
	handlerInstance.service.Enqueue(ctx, job.Request{
		Id:      newJob.id,
		TraceId: newJob.traceId,
		Type:    newJob.jobType,
		Payload: newJob.payload,
	})
}

func GetJobStatus(id string, traceId string) (result jobModel.Job, isFound bool) {
	if handlerInstance == nil {
		return result, false
	}
	ctx := context.WithValue(context.Background(), config.TRACE_ID_KEY, traceId)
	return handlerInstance.service.Status(ctx, id)
}
