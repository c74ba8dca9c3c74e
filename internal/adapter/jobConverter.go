package adapter

import (
	"fmt"
	"time"

	"github.com/akolanti/GoIngest/internal/api"
	"github.com/akolanti/GoIngest/internal/domain/jobModel"
	"github.com/akolanti/GoIngest/internal/rag/ingest"
)

func ToInitJobResponse(id string, documentId string) api.InitJobResponse {
	return api.InitJobResponse{
		Id:         id,
		DocumentId: documentId,
		StatusURL:  fmt.Sprintf("status/%s", id), //pass "status/job.Id"
	}
}

func ToAPIResponse(job jobModel.Job) api.JobResponse {

	var errorPtr *api.JobOutgoingError
	if job.Error.Message != "" || job.Error.Code != 0 {
		errorPtr = &api.JobOutgoingError{
			Code:    job.Error.Code,
			Message: job.Error.Message,
			Retry:   job.Error.Retry,
		}
	}

	result := api.Result{
		Status:   string(job.Status),
		Step:     string(job.CurrentStep),
		Document: ToDocumentResult(job.JobPayload),
	}

	return api.JobResponse{
		Id:        job.Id,
		JobType:   string(job.JobType),
		StartTime: job.CreatedTime,
		EndTime:   job.EndTime,
		Error:     errorPtr,
		Result:    result,
	}
}

func ToDocumentResult(payload jobModel.JobPayload) *api.DocumentResult {
	if payload.DocumentId == "" {
		return nil
	}

	return &api.DocumentResult{
		DocumentId:     payload.DocumentId,
		CollectionId:   payload.CollectionId,
		DocumentStatus: payload.DocumentStatus,
		ChunkCount:     payload.ChunkCount,
		Duplicate:      payload.Duplicate,
	}
}

func ToSearchRequest(req api.SearchRequest) ingest.SearchRequest {
	return ingest.SearchRequest{
		CollectionId: req.CollectionId,
		Query:        req.Query,
		TopK:         req.TopK,
		Filter:       req.Filter,
		Rerank:       req.Rerank,
	}
}

func BadRequest(id string, error string, code int) api.JobResponse {
	return api.JobResponse{
		Id:        id,
		StartTime: time.Time{},
		EndTime:   time.Time{},
		Result: api.Result{
			Status: string(api.JobStatusError),
		},
		Error: &api.JobOutgoingError{
			Code:    code,
			Message: error,
			Retry:   false,
		},
	}
}
