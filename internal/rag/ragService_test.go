package rag

import (
	"context"
	"net/http"
	"testing"

	"github.com/akolanti/GoIngest/internal/config"
	"github.com/akolanti/GoIngest/internal/domain/docModel"
	"github.com/akolanti/GoIngest/internal/domain/jobModel"
	"github.com/akolanti/GoIngest/internal/domain/ragErrors"
	"github.com/akolanti/GoIngest/internal/rag/ingest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockIngestor struct {
	ingestFunc    func(ctx context.Context, req ingest.IngestRequest) (docModel.Document, error)
	reprocessFunc func(ctx context.Context, id string, req ingest.ReprocessRequest) (docModel.Document, error)
}

func (m *mockIngestor) Ingest(ctx context.Context, req ingest.IngestRequest) (docModel.Document, error) {
	return m.ingestFunc(ctx, req)
}

func (m *mockIngestor) Reprocess(ctx context.Context, id string, req ingest.ReprocessRequest) (docModel.Document, error) {
	return m.reprocessFunc(ctx, id, req)
}

func traceCtx() context.Context {
	return context.WithValue(context.Background(), config.TRACE_ID_KEY, "trace-1")
}

func completedDoc(id string, chunks int) docModel.Document {
	return docModel.Document{
		Id:               id,
		CollectionId:     "docs",
		ProcessingStatus: docModel.StatusCompleted,
		Metadata:         map[string]any{docModel.MetaProcessing: map[string]any{"chunk_count": chunks}},
	}
}

func TestIngestDocument(t *testing.T) {
	var got ingest.IngestRequest
	svc := NewService(&mockIngestor{ingestFunc: func(ctx context.Context, req ingest.IngestRequest) (docModel.Document, error) {
		got = req
		return completedDoc(req.DocumentId, 6), nil
	}})

	job := jobModel.Job{Id: "job-1", JobType: jobModel.JobTypeIngest, JobPayload: jobModel.JobPayload{
		CollectionId: "docs", DocumentId: "doc-1", BlobKey: "uploads/doc-1/a.txt", Filename: "a.txt", ContentType: "text/plain",
	}}
	out := svc.IngestDocument(traceCtx(), job)

	assert.Equal(t, "uploads/doc-1/a.txt", got.BlobKey)
	assert.Equal(t, "doc-1", got.DocumentId)
	assert.Equal(t, jobModel.JobStatusComplete, out.Status)
	assert.Equal(t, jobModel.Complete, out.CurrentStep)
	assert.Equal(t, 6, out.JobPayload.ChunkCount)
	assert.Equal(t, "completed", out.JobPayload.DocumentStatus)
	assert.False(t, out.JobPayload.Duplicate)
}

func TestIngestDocumentDuplicate(t *testing.T) {
	svc := NewService(&mockIngestor{ingestFunc: func(ctx context.Context, req ingest.IngestRequest) (docModel.Document, error) {
		return completedDoc("original", 3), nil
	}})

	out := svc.IngestDocument(traceCtx(), jobModel.Job{Id: "job-1", JobPayload: jobModel.JobPayload{DocumentId: "doc-2"}})
	assert.True(t, out.JobPayload.Duplicate)
	assert.Equal(t, "original", out.JobPayload.DocumentId)
}

func TestIngestDocumentFailure(t *testing.T) {
	svc := NewService(&mockIngestor{ingestFunc: func(ctx context.Context, req ingest.IngestRequest) (docModel.Document, error) {
		doc := docModel.Document{Id: req.DocumentId, ProcessingStatus: docModel.StatusFailed}
		return doc, ragErrors.NewProcessingError(ragErrors.UnsupportedMimeType, "unsupported media type image/png", nil)
	}})

	out := svc.IngestDocument(context.Background(), jobModel.Job{Id: "job-1", JobPayload: jobModel.JobPayload{DocumentId: "doc-1"}})
	assert.Equal(t, jobModel.JobStatusError, out.Status)
	assert.Equal(t, jobModel.Error, out.CurrentStep)
	assert.Equal(t, http.StatusUnsupportedMediaType, out.Error.Code)
	assert.Equal(t, "UNSUPPORTED_MIME_TYPE: unsupported media type image/png", out.Error.Message)
	assert.False(t, out.Error.Retry)
	assert.Equal(t, "failed", out.JobPayload.DocumentStatus)
}

func TestReprocessDocument(t *testing.T) {
	var gotId string
	var gotReq ingest.ReprocessRequest
	svc := NewService(&mockIngestor{reprocessFunc: func(ctx context.Context, id string, req ingest.ReprocessRequest) (docModel.Document, error) {
		gotId, gotReq = id, req
		return completedDoc(id, 9), nil
	}})

	out := svc.ReprocessDocument(traceCtx(), jobModel.Job{Id: "job-2", JobType: jobModel.JobTypeReprocess, JobPayload: jobModel.JobPayload{
		DocumentId: "doc-1", ChunkingStrategyId: "small",
	}})
	require.Equal(t, jobModel.JobStatusComplete, out.Status)
	assert.Equal(t, "doc-1", gotId)
	assert.Equal(t, "small", gotReq.ChunkingStrategyId)
	assert.Equal(t, 9, out.JobPayload.ChunkCount)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err   error
		code  int
		retry bool
	}{
		{ragErrors.NewProcessingError(ragErrors.DocumentNotFound, "x", nil), http.StatusNotFound, false},
		{ragErrors.NewProcessingError(ragErrors.AlreadyProcessing, "x", nil), http.StatusConflict, true},
		{ragErrors.NewEmbeddingAPIError(429, "slow down"), http.StatusBadGateway, true},
		{ragErrors.NewProcessingError(ragErrors.NotImplemented, "x", nil), http.StatusNotImplemented, false},
		{ragErrors.NewProcessingError(ragErrors.InvalidChunkOptions, "x", nil), http.StatusBadRequest, false},
		{assert.AnError, http.StatusInternalServerError, true},
	}
	for _, tt := range tests {
		code, retry := classify(tt.err)
		assert.Equal(t, tt.code, code, tt.err.Error())
		assert.Equal(t, tt.retry, retry, tt.err.Error())
	}
}
