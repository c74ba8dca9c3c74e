package rag

import (
	"net/http"

	"github.com/akolanti/GoIngest/internal/domain/docModel"
	"github.com/akolanti/GoIngest/internal/domain/jobModel"
	"github.com/akolanti/GoIngest/internal/domain/ragErrors"
	"github.com/akolanti/GoIngest/pkg/logger_i"
)

func returnOutput(job jobModel.Job) jobModel.Job {
	job.CurrentStep = jobModel.Complete
	job.Status = jobModel.JobStatusComplete
	return job
}

func logOutput(job jobModel.Job, status jobModel.InternalStatus, log *logger_i.Logger) jobModel.Job {
	job.CurrentStep = status
	log.Debug("Job step", "Current Status", job.CurrentStep)
	return job
}

func withDocument(job jobModel.Job, doc docModel.Document) jobModel.Job {
	if doc.Id == "" {
		return job
	}
	job.JobPayload.DocumentId = doc.Id
	job.JobPayload.CollectionId = doc.CollectionId
	job.JobPayload.DocumentStatus = string(doc.ProcessingStatus)
	if p, ok := doc.Metadata[docModel.MetaProcessing].(map[string]any); ok {
		switch n := p["chunk_count"].(type) {
		case int:
			job.JobPayload.ChunkCount = n
		case float64:
			job.JobPayload.ChunkCount = int(n)
		}
	}
	return job
}

func (s *service) jobError(job jobModel.Job, err error, log *logger_i.Logger) jobModel.Job {
	log.Error("Job failed", "error", err)

	code, retry := classify(err)
	job.Error = jobModel.JobError{
		Code:    code,
		Message: ragErrors.Describe(err),
		Retry:   retry,
	}
	job.CurrentStep = jobModel.Error
	job.Status = jobModel.JobStatusError
	return job
}

// classify maps an error code to the HTTP status reported on the job and whether a retry can help.
func classify(err error) (int, bool) {
	switch ragErrors.CodeOf(err) {
	case ragErrors.CollectionNotFound, ragErrors.DocumentNotFound:
		return http.StatusNotFound, false
	case ragErrors.UnsupportedMimeType:
		return http.StatusUnsupportedMediaType, false
	case ragErrors.InvalidChunkOptions, ragErrors.UnknownStrategy, ragErrors.InvalidRule,
		ragErrors.DimensionMismatch, ragErrors.InvalidCollectionName, ragErrors.InvalidDocument:
		return http.StatusBadRequest, false
	case ragErrors.NotImplemented, ragErrors.UnsupportedProvider, ragErrors.UnsupportedBackend:
		return http.StatusNotImplemented, false
	case ragErrors.AlreadyProcessing:
		return http.StatusConflict, true
	case ragErrors.CollectionExists:
		return http.StatusConflict, false
	case ragErrors.APIError, ragErrors.ConnectionFailed:
		return http.StatusBadGateway, true
	case ragErrors.MissingAPIKey:
		return http.StatusServiceUnavailable, false
	default:
		return http.StatusInternalServerError, true
	}
}

// StatusCode is the HTTP status an error is reported with.
func StatusCode(err error) int {
	code, _ := classify(err)
	return code
}
