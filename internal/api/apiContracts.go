package api

import (
	"time"

	"github.com/akolanti/GoIngest/internal/domain/commonModels"
	"github.com/akolanti/GoIngest/internal/domain/docModel"
)

type JobExternalStatus string

const (
	JobStatusError JobExternalStatus = "Error"
)

type JobResponse struct {
	Id        string            `json:"id"`
	JobType   string            `json:"job_type,omitempty"`
	Result    Result            `json:"result"`
	Error     *JobOutgoingError `json:"error,omitempty"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time,omitempty"`
}

type JobOutgoingError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Retry   bool   `json:"can_retry"`
}

type DocumentResult struct {
	DocumentId     string `json:"document_id"`
	CollectionId   string `json:"collection_id"`
	DocumentStatus string `json:"document_status,omitempty"`
	ChunkCount     int    `json:"chunk_count,omitempty"`
	Duplicate      bool   `json:"duplicate,omitempty"`
}

type Result struct {
	Status   string          `json:"status"`
	Step     string          `json:"step,omitempty"`
	Document *DocumentResult `json:"document,omitempty"`
}

type InitJobResponse struct {
	Id         string `json:"id"`
	DocumentId string `json:"document_id,omitempty"`
	StatusURL  string `json:"status_url"`
}

type DocumentResponse struct {
	Document docModel.Document      `json:"document"`
	Chunks   []docModel.ChunkRecord `json:"chunks,omitempty"`
}

type SearchResponse struct {
	Query   string                      `json:"query"`
	Results []commonModels.SearchResult `json:"results"`
}

// requests---------------------

type ReprocessRequest struct {
	CollectionId       string `json:"collection_id,omitempty"`
	ChunkingStrategyId string `json:"chunking_strategy_id,omitempty"`
	CleansingConfigId  string `json:"cleansing_config_id,omitempty"`
}

type SearchRequest struct {
	CollectionId string                 `json:"collection_id,omitempty"`
	Query        string                 `json:"query" validate:"required"`
	TopK         int                    `json:"top_k,omitempty"`
	Filter       map[string]any         `json:"filter,omitempty"`
	Rerank       *docModel.RerankConfig `json:"rerank,omitempty"`
}
