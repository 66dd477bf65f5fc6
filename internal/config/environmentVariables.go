package config

import (
	"time"
)

type traceKey string

const (
	TraceIDKey traceKey = "traceId"

	DefaultEnv      = "local"
	DefaultLogLevel = "debug"
	ConfigFileEnv   = "CONFIG_FILE"
	DefaultConfig   = "config/config.yaml"

	RATE_LIMIT_PER_SECOND       = 2
	BURST_RATE_LIMIT_PER_SECOND = 5
	MCP_RATE_LIMIT_PER_SECOND   = 10
	MCP_BURST_RATE_LIMIT        = 30
	CacheSimilarityCutoff       = 0.97

	//chunking, counted in runes
	DefaultChunkSize    = 300
	DefaultChunkOverlap = 50
	DefaultTopK         = 4

	EmbeddingOutputDimensionality int32 = 1536
	EmbeddingBatchSize                  = 100
	EmbeddingCollectionName             = "finbot-docs"
	SemanticCacheCollectionName         = "semantic-cache"

	//index
	IndexBackendLocal  = "local"
	IndexBackendQdrant = "qdrant"
	LocalIndexPath     = "finbot_store/index.db"

	//workers
	DefaultWorkerCount = 1
	BufferLimit        = 100
	IngestJobTimeout   = 5 * time.Minute

	//serverTimeouts
	ReadTimeout            = 5 * time.Second
	WriteTimeout           = 60 * time.Second
	IdleTimeout            = 120 * time.Second
	ShutdownContextTimeout = 10 * time.Second
	RequestTimeout         = 30 * time.Second

	//server listening port
	ServerListenAddr = ":3000"

	//vectorDB
	QdrantHost     = "localhost"
	QdrantGrpcPort = 6334
	QdrantUseTLS   = false
	QdrantPoolSize = 1

	//providers
	ProviderOpenAI          = "openai"
	ProviderGoogle          = "google"
	ProviderGemini          = "gemini"
	FallbackOpenAIWebSearch = "openai_web_search"
	FallbackGoogleSearch    = "google_search"

	OpenAIEmbeddingModel  = "text-embedding-3-small"
	OpenAIChatModel       = "gpt-4o-mini"
	OpenAIWebSearchModel  = "gpt-4.1-mini"
	OpenAIWebSearchSource = "OpenAI Web Search"

	GeminiModelName      = "gemini-2.5-flash"
	GoogleEmbeddingModel = "gemini-embedding-001"
	GoogleSearchSource   = "Google Search"

	ModelTemperature       float64 = 0
	WebSearchTopP          float64 = 0
	WebSearchMaxOutputToks int64   = 300

	AssistantName         = "SofiBot"
	AssistantOrganization = "SoFi"

	//retry
	DefaultMaxRetries      = 2
	DefaultRetryInitial    = 500 * time.Millisecond
	DefaultRetryMaxBackoff = 5 * time.Second

	MaxIdleConns        = 50
	MaxIdleConnsPerHost = 25
	IdleConnTimeout     = 60 * time.Second

	//redis
	redisHost = "127.0.0.1"
	redisPort = "6379"
	RedisAddr = redisHost + ":" + redisPort

	//redis has 16 DB we can use
	RedisJobStore      = 0
	RedisRegistryStore = 1

	RedisJobStoreTTL = 24 * time.Hour
)

var DefaultAllowedOrigins = []string{"https://finance-chat-rag.vercel.app", "http://localhost:3000"}
