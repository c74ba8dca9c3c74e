package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/akolanti/GoIngest/internal/domain/docModel"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type ServerSettings struct {
	ListenAddr         string  `yaml:"listen_addr"`
	AuthToken          string  `yaml:"auth_token"`
	NoAuthBypass       bool    `yaml:"no_auth_bypass"`
	RateLimitPerSecond float64 `yaml:"rate_limit_per_second"`
	RateLimitBurst     int     `yaml:"rate_limit_burst"`
}

type LogSettings struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

type RedisSettings struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
}

type BlobSettings struct {
	Backend   string `yaml:"backend"` // memory, fs or s3
	Directory string `yaml:"directory"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	Prefix    string `yaml:"prefix"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

type ProviderSettings struct {
	OpenAIAPIKey  string `yaml:"openai_api_key"`
	OpenAIBaseURL string `yaml:"openai_base_url"`
	GoogleAPIKey  string `yaml:"google_api_key"`
}

type LLMSettings struct {
	Provider string `yaml:"provider"` // google or openai
	Model    string `yaml:"model"`
}

type EmbeddingSettings struct {
	CacheEnabled      bool          `yaml:"cache_enabled"`
	CacheSize         int           `yaml:"cache_size"`
	CacheTTL          time.Duration `yaml:"cache_ttl"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
}

type IngestSettings struct {
	BatchConcurrency int           `yaml:"batch_concurrency"`
	DocumentTimeout  time.Duration `yaml:"document_timeout"`
	LockTTL          time.Duration `yaml:"lock_ttl"`
}

type MaintenanceSettings struct {
	Enabled         bool    `yaml:"enabled"`
	CompactSchedule string  `yaml:"compact_schedule"`
	PersistSchedule string  `yaml:"persist_schedule"`
	TombstoneRatio  float64 `yaml:"tombstone_ratio"`
}

// Settings is the runtime configuration: a yaml file overlaid with environment variables.
type Settings struct {
	Server      ServerSettings      `yaml:"server"`
	Log         LogSettings         `yaml:"log"`
	Redis       RedisSettings       `yaml:"redis"`
	Blob        BlobSettings        `yaml:"blob"`
	Providers   ProviderSettings    `yaml:"providers"`
	LLM         LLMSettings         `yaml:"llm"`
	Embedding   EmbeddingSettings   `yaml:"embedding"`
	Ingest      IngestSettings      `yaml:"ingest"`
	Maintenance MaintenanceSettings `yaml:"maintenance"`

	VectorStores       []docModel.VectorStoreConfig      `yaml:"vector_stores"`
	ChunkingStrategies []docModel.ChunkingStrategyConfig `yaml:"chunking_strategies"`
	CleansingConfigs   []docModel.CleansingConfig        `yaml:"cleansing_configs"`
	Collections        []docModel.Collection             `yaml:"collections"`
}

// Load reads .env, then the yaml file at path (or $DOCINGEST_CONFIG), then env overrides.
// A missing file is not an error.
func Load(path string) (*Settings, error) {
	_ = godotenv.Load()

	if path == "" {
		path = os.Getenv(DefaultConfigFileEnv)
	}

	s := &Settings{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, s); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	s.applyEnv()
	s.applyDefaults()
	return s, nil
}

func (s *Settings) applyEnv() {
	s.Server.ListenAddr = getEnv("LISTEN_ADDR", s.Server.ListenAddr)
	s.Server.AuthToken = getEnv("AUTH_TOKEN", s.Server.AuthToken)
	s.Server.NoAuthBypass = getEnvBool("NO_AUTH_BYPASS", s.Server.NoAuthBypass)

	s.Log.Level = getEnv("LOG_LEVEL", s.Log.Level)
	s.Log.JSON = getEnvBool("LOG_JSON", s.Log.JSON)

	s.Redis.Addr = getEnv("REDIS_ADDR", s.Redis.Addr)
	s.Redis.Password = getEnv("REDIS_PASSWORD", s.Redis.Password)
	s.Redis.Enabled = getEnvBool("REDIS_ENABLED", s.Redis.Enabled)

	s.Blob.Backend = getEnv("BLOB_BACKEND", s.Blob.Backend)
	s.Blob.Bucket = getEnv("BLOB_BUCKET", s.Blob.Bucket)
	s.Blob.Region = getEnv("AWS_REGION", s.Blob.Region)
	s.Blob.Endpoint = getEnv("BLOB_ENDPOINT", s.Blob.Endpoint)
	s.Blob.Bucket = getEnv("S3_BUCKET", s.Blob.Bucket)
	s.Blob.Endpoint = getEnv("S3_ENDPOINT", s.Blob.Endpoint)
	s.Blob.AccessKey = getEnv("S3_ACCESS_KEY_ID", s.Blob.AccessKey)
	s.Blob.SecretKey = getEnv("S3_SECRET_ACCESS_KEY", s.Blob.SecretKey)

	s.Providers.OpenAIAPIKey = getEnv("OPENAI_API_KEY", s.Providers.OpenAIAPIKey)
	s.Providers.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", s.Providers.OpenAIBaseURL)
	s.Providers.GoogleAPIKey = getEnv("GOOGLE_API_KEY", s.Providers.GoogleAPIKey)
	s.Providers.GoogleAPIKey = getEnv("GEMINI_API_KEY", s.Providers.GoogleAPIKey)

	s.Embedding.CacheEnabled = getEnvBool("EMBEDDING_CACHE_ENABLED", s.Embedding.CacheEnabled)
}

func (s *Settings) applyDefaults() {
	if s.Server.ListenAddr == "" {
		s.Server.ListenAddr = ServerListenAddr
	}
	if s.Server.RateLimitPerSecond == 0 {
		s.Server.RateLimitPerSecond = RATE_LIMIT_PER_SECOND
	}
	if s.Server.RateLimitBurst == 0 {
		s.Server.RateLimitBurst = BURST_RATE_LIMIT_PER_SECOND
	}
	if s.Log.Level == "" {
		s.Log.Level = "info"
	}
	if s.Redis.Addr == "" {
		s.Redis.Addr = RedisAddr
	}
	if s.Blob.Backend == "" {
		s.Blob.Backend = "fs"
	}
	if s.Blob.Directory == "" {
		s.Blob.Directory = DefaultBlobDirectory
	}
	if s.Blob.Prefix == "" {
		s.Blob.Prefix = DefaultUploadKeyPrefix
	}
	if s.LLM.Provider == "" {
		s.LLM.Provider = "google"
	}
	if s.LLM.Model == "" {
		if s.LLM.Provider == "openai" {
			s.LLM.Model = OpenAIChatModel
		} else {
			s.LLM.Model = GeminiModelName
		}
	}
	if s.Embedding.CacheSize == 0 {
		s.Embedding.CacheSize = 10000
	}
	if s.Embedding.CacheTTL == 0 {
		s.Embedding.CacheTTL = EmbeddingCacheTTL
	}
	if s.Embedding.RequestsPerSecond == 0 {
		s.Embedding.RequestsPerSecond = EmbeddingRequestsPerSecond
	}
	if s.Ingest.BatchConcurrency == 0 {
		s.Ingest.BatchConcurrency = BatchIngestConcurrency
	}
	if s.Ingest.DocumentTimeout == 0 {
		s.Ingest.DocumentTimeout = DocumentTimeout
	}
	if s.Ingest.LockTTL == 0 {
		s.Ingest.LockTTL = DocumentLockTTL
	}
	if s.Maintenance.CompactSchedule == "" {
		s.Maintenance.CompactSchedule = CompactSchedule
	}
	if s.Maintenance.PersistSchedule == "" {
		s.Maintenance.PersistSchedule = PersistSchedule
	}
	if s.Maintenance.TombstoneRatio == 0 {
		s.Maintenance.TombstoneRatio = CompactTombstoneRatio
	}
	for i := range s.Collections {
		if s.Collections[i].CreatedAt.IsZero() {
			s.Collections[i].CreatedAt = time.Now().UTC()
		}
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
