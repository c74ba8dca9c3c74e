package config

import (
	"time"
)

const (
	TRACE_ID_KEY                    = "traceId"
	FALLBACK_REDIS_TO_INTERNALSTORE = true //if redis init fails, it falls back to an internal in-memory store
	RATE_LIMIT_PER_SECOND           = 2
	BURST_RATE_LIMIT_PER_SECOND     = 5

	//embeddings
	DefaultEmbeddingDimensions = 1536
	EmbeddingBatchSize         = 100
	EmbeddingRequestsPerSecond = 5.0
	EmbeddingRateBurst         = 5
	EmbeddingCacheTTL          = 2 * time.Hour
	GoogleEmbeddingModel       = "gemini-embedding-001"
	OpenAIEmbeddingModel       = "text-embedding-3-small"

	//vector stores
	VectorStoreBatchSize    = 100
	VectorStoreHTTPTimeout  = 30 * time.Second
	QdrantConnectionTimeout = 30 * time.Second
	QdrantGrpcPort          = 6334
	QdrantPoolSize          = 1 //2-5 is preferred for prod according to documentation
	PgMaxOpenConns          = 20
	PgMaxIdleConns          = 10
	PgConnMaxLifetime       = 30 * time.Minute
	PgConnMaxIdleTime       = 10 * time.Minute
	ChromaDefaultTenant     = "default_tenant"
	ChromaDefaultDatabase   = "default_database"

	//chunking fallback when neither request nor collection names a strategy
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200

	//cleansing
	LLMCleansingBatchSize = 5
	HeaderFooterScanLines = 8
	HeaderFooterMaxLength = 50

	//extraction
	PdfPageTimeout = 10 * time.Second

	//blob store
	BlobWriteTimeout = 2 * time.Minute
	BlobReadTimeout  = 30 * time.Second

	//ingestion
	DocumentLockTTL        = 15 * time.Minute
	HashClaimTTL           = 2 * time.Minute
	LockPollInterval       = 25 * time.Millisecond
	BatchIngestConcurrency = 4
	DocumentTimeout        = 10 * time.Minute

	//llm
	ModelTemperature float32 = 0.2
	LLMMaxTokens             = 4096
	GeminiModelName          = "gemini-2.5-flash-lite"
	OpenAIChatModel          = "gpt-4o-mini"

	//workers
	RequestsPerNewWorkerCount int64 = 10
	MaxWorkerCount            int64 = 10
	MinWorkerCount            int64 = 1
	IdleWorkerTimeout               = 1 * time.Minute
	//IdleWorkerTimeout = 1 * time.Second //fo tests

	//serverTimeouts
	ReadTimeout            = 30 * time.Second
	WriteTimeout           = 30 * time.Second
	IdleTimeout            = 120 * time.Second
	ShutdownContextTimeout = 10 * time.Second
	MaxUploadSize          = 32 << 20 //32mb

	//server listening port
	ServerListenAddr = ":3000"

	//job requests buffer limit
	BufferLimit = 100

	MaxIdleConns        = 50
	MaxIdleConnsPerHost = 25
	IdleConnTimeout     = 60 * time.Second

	//redis
	redisHost = "127.0.0.1"
	redisPort = "6379"
	RedisAddr = redisHost + ":" + redisPort

	//redis has 16 DB we can use
	RedisJobStore      = 0
	RedisDocumentStore = 1
	RedisLockStore     = 2

	//redis timeouts
	RedisJobStoreTTL = 24 * time.Hour

	//in-memory fallback keeps at most this many jobs
	InMemoryJobLimit = 10000

	//maintenance
	CompactSchedule        = "*/30 * * * *"
	PersistSchedule        = "*/5 * * * *"
	CompactTombstoneRatio  = 0.2
	DefaultConfigFileEnv   = "DOCINGEST_CONFIG"
	DefaultFaissDirectory  = "data/faiss"
	DefaultBlobDirectory   = "data/blobs"
	DefaultUploadKeyPrefix = "uploads"
)
