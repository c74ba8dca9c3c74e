package jobModel

import (
	"context"
	"time"
)

type JobStatus string
type InternalStatus string

type JobType string

const (
	JobStatusQueued   JobStatus = "QUEUED"
	JobStatusRunning  JobStatus = "RUNNING"
	JobStatusComplete JobStatus = "COMPLETE"
	JobStatusError    JobStatus = "Error"

	IngestInit       InternalStatus = "IngestInit"
	BlobCall         InternalStatus = "Blob"
	IngestProcessing InternalStatus = "IngestProcessing"
	Error            InternalStatus = "Error"

	Complete InternalStatus = "Complete"

	JobTypeIngest    JobType = "Ingest"
	JobTypeReprocess JobType = "Reprocess"
)

type Job struct {
	Id          string         `json:"id"`
	TraceId     string         `json:"trace_id"`
	JobType     JobType        `json:"job_type"`
	JobPayload  JobPayload     `json:"job_payload"`
	Error       JobError       `json:"error,omitempty"`
	CreatedTime time.Time      `json:"created_time"`
	EndTime     time.Time      `json:"end_time,omitempty"`
	Status      JobStatus      `json:"status"`
	CurrentStep InternalStatus `json:"current_step"`
}

type JobError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Retry   bool   `json:"retry"`
}

type JobPayload struct {
	CollectionId       string         `json:"collection_id"`
	DocumentId         string         `json:"document_id,omitempty"`
	BlobKey            string         `json:"blob_key,omitempty"`
	Filename           string         `json:"filename,omitempty"`
	Title              string         `json:"title,omitempty"`
	ContentType        string         `json:"content_type,omitempty"`
	ChunkingStrategyId string         `json:"chunking_strategy_id,omitempty"`
	CleansingConfigId  string         `json:"cleansing_config_id,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`

	// filled when the job finishes
	ChunkCount     int    `json:"chunk_count,omitempty"`
	DocumentStatus string `json:"document_status,omitempty"`
	Duplicate      bool   `json:"duplicate,omitempty"`
}

type JobStore interface {
	GetJob(ctx context.Context, jobId string) (Job, bool)
	SaveJob(ctx context.Context, job Job) error
	DeleteJob(ctx context.Context, jobID string)
}
