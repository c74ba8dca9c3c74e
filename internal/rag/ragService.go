package rag

import (
	"context"
	"time"

	"github.com/akolanti/GoIngest/internal/config"
	"github.com/akolanti/GoIngest/internal/domain/docModel"
	"github.com/akolanti/GoIngest/internal/domain/jobModel"
	"github.com/akolanti/GoIngest/internal/metrics"
	"github.com/akolanti/GoIngest/internal/rag/ingest"
	"github.com/akolanti/GoIngest/pkg/logger_i"
)

/*
Service is the only thing the worker pool calls. It turns a queued job into an
orchestrator call and folds the outcome back into the job, so the worker never
sees documents, collections or vector stores.
*/

// Service Worker will only call this service
type Service interface {
	IngestDocument(ctx context.Context, job jobModel.Job) jobModel.Job
	ReprocessDocument(ctx context.Context, job jobModel.Job) jobModel.Job
}

// Ingestor is the part of the orchestrator the jobs need.
type Ingestor interface {
	Ingest(ctx context.Context, req ingest.IngestRequest) (docModel.Document, error)
	Reprocess(ctx context.Context, documentId string, req ingest.ReprocessRequest) (docModel.Document, error)
}

type service struct {
	ingestor Ingestor
	logger   *logger_i.Logger
}

func NewService(ingestor Ingestor) Service {
	return &service{
		ingestor: ingestor,
		logger:   logger_i.NewLogger("RAG Service"),
	}
}

func (s *service) traceLogger(ctx context.Context, job jobModel.Job) *logger_i.Logger {
	traceId, _ := ctx.Value(config.TRACE_ID_KEY).(string)
	return s.logger.With("traceId", traceId, "JobId", job.Id)
}

func (s *service) IngestDocument(ctx context.Context, job jobModel.Job) jobModel.Job {
	log := s.traceLogger(ctx, job)
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("document_ingestion", time.Since(start)) }()

	job = logOutput(job, jobModel.IngestProcessing, log)
	p := job.JobPayload
	doc, err := s.ingestor.Ingest(ctx, ingest.IngestRequest{
		DocumentId:         p.DocumentId,
		CollectionId:       p.CollectionId,
		Filename:           p.Filename,
		Title:              p.Title,
		ContentType:        p.ContentType,
		BlobKey:            p.BlobKey,
		ChunkingStrategyId: p.ChunkingStrategyId,
		CleansingConfigId:  p.CleansingConfigId,
		Metadata:           p.Metadata,
	})
	if err != nil {
		job = withDocument(job, doc)
		return s.jobError(job, err, log)
	}

	job = withDocument(job, doc)
	job.JobPayload.Duplicate = p.DocumentId != "" && doc.Id != p.DocumentId
	return returnOutput(job)
}

func (s *service) ReprocessDocument(ctx context.Context, job jobModel.Job) jobModel.Job {
	log := s.traceLogger(ctx, job)
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("document_reprocess", time.Since(start)) }()

	job = logOutput(job, jobModel.IngestProcessing, log)
	p := job.JobPayload
	doc, err := s.ingestor.Reprocess(ctx, p.DocumentId, ingest.ReprocessRequest{
		CollectionId:       p.CollectionId,
		ChunkingStrategyId: p.ChunkingStrategyId,
		CleansingConfigId:  p.CleansingConfigId,
	})
	job = withDocument(job, doc)
	if err != nil {
		return s.jobError(job, err, log)
	}
	return returnOutput(job)
}
