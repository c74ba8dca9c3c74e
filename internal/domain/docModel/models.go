package docModel

import (
	"time"

	"github.com/akolanti/GoIngest/internal/domain/commonModels"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

type StrategyType string

const (
	FixedSize     StrategyType = "fixed_size"
	Sentence      StrategyType = "sentence"
	Paragraph     StrategyType = "paragraph"
	SlidingWindow StrategyType = "sliding_window"
	Semantic      StrategyType = "semantic"
	Custom        StrategyType = "custom"
)

type BackendType string

const (
	ChromaDB BackendType = "chromadb"
	PgVector BackendType = "pgvector"
	Faiss    BackendType = "faiss"
	Qdrant   BackendType = "qdrant"
)

// metadata keys written by the orchestrator
const (
	MetaProcessing         = "processing"
	MetaChunkingStrategyId = "chunking_strategy_id"
	MetaCleansingConfigId  = "cleansing_config_id"
	MetaExtracted          = "extracted"
)

type Collection struct {
	Id                        string         `json:"id" yaml:"id"`
	Name                      string         `json:"name" yaml:"name"`
	Description               string         `json:"description,omitempty" yaml:"description"`
	VectorStoreId             string         `json:"vector_store_id" yaml:"vector_store_id"`
	EmbeddingProvider         string         `json:"embedding_provider" yaml:"embedding_provider"`
	EmbeddingModel            string         `json:"embedding_model" yaml:"embedding_model"`
	EmbeddingDimensions       int            `json:"embedding_dimensions" yaml:"embedding_dimensions"`
	DefaultChunkingStrategyId string         `json:"default_chunking_strategy_id,omitempty" yaml:"default_chunking_strategy_id"`
	DefaultCleansingConfigId  string         `json:"default_cleansing_config_id,omitempty" yaml:"default_cleansing_config_id"`
	IsActive                  bool           `json:"is_active" yaml:"is_active"`
	Metadata                  map[string]any `json:"metadata,omitempty" yaml:"metadata"`
	CreatedAt                 time.Time      `json:"created_at" yaml:"-"`
}

type Document struct {
	Id               string                `json:"id"`
	CollectionId     string                `json:"collection_id"`
	Title            string                `json:"title"`
	Filename         string                `json:"filename"`
	FileType         commonModels.FileType `json:"file_type"`
	FileSize         int64                 `json:"file_size"`
	ContentType      string                `json:"content_type"`
	ContentHash      string                `json:"content_hash"`
	RawText          string                `json:"raw_text,omitempty"`
	ProcessingStatus Status                `json:"processing_status"`
	ErrorMessage     string                `json:"error_message,omitempty"`
	Metadata         map[string]any        `json:"metadata,omitempty"`
	BlobKey          string                `json:"blob_key,omitempty"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

// ProcessingValue reads a key of metadata.processing.
func (d Document) ProcessingValue(key string) string {
	p, ok := d.Metadata[MetaProcessing].(map[string]any)
	if !ok {
		return ""
	}
	v, _ := p[key].(string)
	return v
}

type ChunkRecord struct {
	Id             string         `json:"id"`
	ChunkIndex     int            `json:"chunk_index"`
	Content        string         `json:"content"`
	CleanedContent string         `json:"cleaned_content,omitempty"`
	TokenCount     int            `json:"token_count"`
	StartIndex     int            `json:"start_index"`
	EndIndex       int            `json:"end_index"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

type ChunkingStrategyConfig struct {
	Id           string       `json:"id" yaml:"id"`
	Name         string       `json:"name" yaml:"name"`
	Type         StrategyType `json:"type" yaml:"type"`
	ChunkSize    int          `json:"chunk_size" yaml:"chunk_size"`
	ChunkOverlap int          `json:"chunk_overlap" yaml:"chunk_overlap"`
	MinChunkSize int          `json:"min_chunk_size,omitempty" yaml:"min_chunk_size"`
	MaxChunkSize int          `json:"max_chunk_size,omitempty" yaml:"max_chunk_size"`
	Separator    string       `json:"separator,omitempty" yaml:"separator"`
}

type CustomRule struct {
	Pattern     string `json:"pattern" yaml:"pattern"`
	Replacement string `json:"replacement" yaml:"replacement"`
}

type CleansingConfig struct {
	Id                  string       `json:"id" yaml:"id"`
	Name                string       `json:"name" yaml:"name"`
	RemoveHeaders       bool         `json:"remove_headers" yaml:"remove_headers"`
	RemoveFooters       bool         `json:"remove_footers" yaml:"remove_footers"`
	RemovePageNumbers   bool         `json:"remove_page_numbers" yaml:"remove_page_numbers"`
	NormalizeWhitespace bool         `json:"normalize_whitespace" yaml:"normalize_whitespace"`
	FixEncoding         bool         `json:"fix_encoding" yaml:"fix_encoding"`
	RemoveUrls          bool         `json:"remove_urls" yaml:"remove_urls"`
	RemoveEmails        bool         `json:"remove_emails" yaml:"remove_emails"`
	CustomRules         []CustomRule `json:"custom_rules,omitempty" yaml:"custom_rules"`
	LLMModelId          string       `json:"llm_model_id,omitempty" yaml:"llm_model_id"`
}

type VectorStoreConfig struct {
	Id               string         `json:"id" yaml:"id"`
	Name             string         `json:"name" yaml:"name"`
	Type             BackendType    `json:"type" yaml:"type"`
	ConnectionString string         `json:"connection_string" yaml:"connection_string"`
	APIKey           string         `json:"api_key,omitempty" yaml:"api_key"`
	Settings         map[string]any `json:"settings,omitempty" yaml:"settings"`
}

// Setting reads a string setting with a fallback.
func (c VectorStoreConfig) Setting(key, fallback string) string {
	if v, ok := c.Settings[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// IntSetting accepts yaml ints and json floats.
func (c VectorStoreConfig) IntSetting(key string, fallback int) int {
	switch v := c.Settings[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return fallback
}

// RerankConfig is consumed at the search boundary; only "none" is built in.
type RerankConfig struct {
	Strategy string         `json:"strategy" yaml:"strategy"`
	TopN     int            `json:"top_n,omitempty" yaml:"top_n"`
	Model    string         `json:"model,omitempty" yaml:"model"`
	Settings map[string]any `json:"settings,omitempty" yaml:"settings"`
}
