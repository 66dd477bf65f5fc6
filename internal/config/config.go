package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the runtime configuration of the service and the indexer.
type Config struct {
	Env        string           `yaml:"env"`
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
	OpenAI     CredentialConfig `yaml:"openai"`
	Google     CredentialConfig `yaml:"google"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Fallback   FallbackConfig   `yaml:"fallback"`
	Assistant  AssistantConfig  `yaml:"assistant"`
	Index      IndexConfig      `yaml:"index"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Sources    []Source         `yaml:"sources"`
	Cache      CacheConfig      `yaml:"cache"`
	Redis      RedisConfig      `yaml:"redis"`
	Requests   RequestConfig    `yaml:"requests"`
	Worker     WorkerConfig     `yaml:"worker"`
}

type ServerConfig struct {
	ListenAddr         string   `yaml:"listen_addr"`
	ReadTimeoutSec     int      `yaml:"read_timeout_sec"`
	WriteTimeoutSec    int      `yaml:"write_timeout_sec"`
	IdleTimeoutSec     int      `yaml:"idle_timeout_sec"`
	ShutdownTimeoutSec int      `yaml:"shutdown_timeout_sec"`
	AllowedOrigins     []string `yaml:"allowed_origins"`
	RateLimitPerSecond float64  `yaml:"rate_limit_per_second"`
	RateLimitBurst     int      `yaml:"rate_limit_burst"`
	UploadDir          string   `yaml:"upload_dir"`

	// /mcp is limited separately from the REST routes
	MCPRateLimitPerSecond float64 `yaml:"mcp_rate_limit_per_second"`
	MCPRateLimitBurst     int     `yaml:"mcp_rate_limit_burst"`
}

type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

type CredentialConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // openai, google
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	BatchSize  int    `yaml:"batch_size"`
}

type GenerationConfig struct {
	Provider    string  `yaml:"provider"` // openai, gemini
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
}

type FallbackConfig struct {
	Provider        string  `yaml:"provider"` // openai_web_search, google_search
	Model           string  `yaml:"model"`
	SourceLabel     string  `yaml:"source_label"`
	Temperature     float64 `yaml:"temperature"`
	TopP            float64 `yaml:"top_p"`
	MaxOutputTokens int64   `yaml:"max_output_tokens"`
}

type AssistantConfig struct {
	Name         string `yaml:"name"`
	Organization string `yaml:"organization"`
}

type IndexConfig struct {
	Backend    string       `yaml:"backend"` // local, qdrant
	Path       string       `yaml:"path"`
	Collection string       `yaml:"collection"`
	TopK       int          `yaml:"top_k"`
	Qdrant     QdrantConfig `yaml:"qdrant"`
}

type QdrantConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	UseTLS   bool   `yaml:"use_tls"`
	APIKey   string `yaml:"api_key"`
	PoolSize int    `yaml:"pool_size"`
}

type ChunkingConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// Source is one input document. Required sources abort startup when unreadable.
type Source struct {
	Path     string `yaml:"path"`
	Required bool   `yaml:"required"`
}

type CacheConfig struct {
	Enabled          bool    `yaml:"enabled"`
	SimilarityCutoff float32 `yaml:"similarity_cutoff"`
}

type RedisConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Addr       string `yaml:"addr"`
	Password   string `yaml:"password"`
	JobDB      int    `yaml:"job_db"`
	RegistryDB int    `yaml:"registry_db"`
}

type RequestConfig struct {
	TimeoutSec int         `yaml:"timeout_sec"`
	Retry      RetryConfig `yaml:"retry"`
}

type RetryConfig struct {
	MaxRetries        int `yaml:"max_retries"`
	InitialIntervalMs int `yaml:"initial_interval_ms"`
	MaxIntervalMs     int `yaml:"max_interval_ms"`
}

type WorkerConfig struct {
	Count  int `yaml:"count"`
	Buffer int `yaml:"buffer"`
}

// Load reads the YAML file at path, expands ${VAR} and ${VAR:-default},
// then applies defaults and validates. A missing file yields defaults only.
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		path = ConfigPath()
	}

	data, err := os.ReadFile(filepath.Clean(path))
	switch {
	case err == nil:
		if err := yaml.Unmarshal(expandEnvVars(data), &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ConfigPath returns CONFIG_FILE or the default config location.
func ConfigPath() string {
	if p := os.Getenv(ConfigFileEnv); p != "" {
		return p
	}
	return DefaultConfig
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Env == "" {
		c.Env = DefaultEnv
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.OpenAI.APIKey == "" {
		c.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Google.APIKey == "" {
		c.Google.APIKey = os.Getenv("GOOGLE_API_KEY")
	}

	s := &c.Server
	if s.ListenAddr == "" {
		s.ListenAddr = ServerListenAddr
	}
	if s.ReadTimeoutSec <= 0 {
		s.ReadTimeoutSec = int(ReadTimeout / time.Second)
	}
	if s.WriteTimeoutSec <= 0 {
		s.WriteTimeoutSec = int(WriteTimeout / time.Second)
	}
	if s.IdleTimeoutSec <= 0 {
		s.IdleTimeoutSec = int(IdleTimeout / time.Second)
	}
	if s.ShutdownTimeoutSec <= 0 {
		s.ShutdownTimeoutSec = int(ShutdownContextTimeout / time.Second)
	}
	if len(s.AllowedOrigins) == 0 {
		s.AllowedOrigins = append([]string(nil), DefaultAllowedOrigins...)
	}
	if s.RateLimitPerSecond <= 0 {
		s.RateLimitPerSecond = RATE_LIMIT_PER_SECOND
	}
	if s.RateLimitBurst <= 0 {
		s.RateLimitBurst = BURST_RATE_LIMIT_PER_SECOND
	}
	if s.MCPRateLimitPerSecond <= 0 {
		s.MCPRateLimitPerSecond = MCP_RATE_LIMIT_PER_SECOND
	}
	if s.MCPRateLimitBurst <= 0 {
		s.MCPRateLimitBurst = MCP_BURST_RATE_LIMIT
	}
	if s.UploadDir == "" {
		s.UploadDir = "temporary_data"
	}

	e := &c.Embedding
	if e.Provider == "" {
		e.Provider = ProviderOpenAI
	}
	if e.Model == "" {
		e.Model = OpenAIEmbeddingModel
		if e.Provider == ProviderGoogle {
			e.Model = GoogleEmbeddingModel
		}
	}
	if e.Dimensions <= 0 {
		e.Dimensions = int(EmbeddingOutputDimensionality)
	}
	if e.BatchSize <= 0 {
		e.BatchSize = EmbeddingBatchSize
	}

	g := &c.Generation
	if g.Provider == "" {
		g.Provider = ProviderOpenAI
	}
	if g.Model == "" {
		g.Model = OpenAIChatModel
		if g.Provider == ProviderGemini {
			g.Model = GeminiModelName
		}
	}

	f := &c.Fallback
	if f.Provider == "" {
		f.Provider = FallbackOpenAIWebSearch
	}
	if f.Model == "" {
		f.Model = OpenAIWebSearchModel
		if f.Provider == FallbackGoogleSearch {
			f.Model = GeminiModelName
		}
	}
	if f.SourceLabel == "" {
		f.SourceLabel = OpenAIWebSearchSource
		if f.Provider == FallbackGoogleSearch {
			f.SourceLabel = GoogleSearchSource
		}
	}
	if f.MaxOutputTokens <= 0 {
		f.MaxOutputTokens = WebSearchMaxOutputToks
	}

	if c.Assistant.Name == "" {
		c.Assistant.Name = AssistantName
	}
	if c.Assistant.Organization == "" {
		c.Assistant.Organization = AssistantOrganization
	}

	ix := &c.Index
	if ix.Backend == "" {
		ix.Backend = IndexBackendLocal
	}
	if ix.Path == "" {
		ix.Path = LocalIndexPath
	}
	if ix.Collection == "" {
		ix.Collection = EmbeddingCollectionName
	}
	if ix.TopK <= 0 {
		ix.TopK = DefaultTopK
	}
	if ix.Qdrant.Host == "" {
		ix.Qdrant.Host = QdrantHost
	}
	if ix.Qdrant.Port <= 0 {
		ix.Qdrant.Port = QdrantGrpcPort
	}
	if ix.Qdrant.PoolSize <= 0 {
		ix.Qdrant.PoolSize = QdrantPoolSize
	}

	if c.Chunking.ChunkSize <= 0 {
		c.Chunking.ChunkSize = DefaultChunkSize
		if c.Chunking.ChunkOverlap == 0 {
			c.Chunking.ChunkOverlap = DefaultChunkOverlap
		}
	}

	if len(c.Sources) == 0 {
		c.Sources = []Source{
			{Path: "data/finance_faq_extended.pdf", Required: true},
			{Path: "data/sofi_top_products.pdf", Required: true},
			{Path: "data/faqs.txt", Required: false},
		}
	}

	if c.Cache.SimilarityCutoff <= 0 {
		c.Cache.SimilarityCutoff = CacheSimilarityCutoff
	}

	if c.Redis.Addr == "" {
		c.Redis.Addr = RedisAddr
	}
	if c.Redis.JobDB == 0 && c.Redis.RegistryDB == 0 {
		c.Redis.JobDB = RedisJobStore
		c.Redis.RegistryDB = RedisRegistryStore
	}

	if c.Requests.TimeoutSec <= 0 {
		c.Requests.TimeoutSec = int(RequestTimeout / time.Second)
	}
	r := &c.Requests.Retry
	if r.MaxRetries < 0 {
		r.MaxRetries = 0
	} else if r.MaxRetries == 0 {
		r.MaxRetries = DefaultMaxRetries
	}
	if r.InitialIntervalMs <= 0 {
		r.InitialIntervalMs = int(DefaultRetryInitial / time.Millisecond)
	}
	if r.MaxIntervalMs <= 0 {
		r.MaxIntervalMs = int(DefaultRetryMaxBackoff / time.Millisecond)
	}

	if c.Worker.Count <= 0 {
		c.Worker.Count = DefaultWorkerCount
	}
	if c.Worker.Buffer <= 0 {
		c.Worker.Buffer = BufferLimit
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	switch c.Env {
	case "local", "dev", "docker", "prod":
	default:
		return fmt.Errorf("env must be one of local, dev, docker, prod, got %q", c.Env)
	}
	if c.Chunking.ChunkOverlap < 0 || c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("chunking.chunk_overlap must be in [0, %d), got %d", c.Chunking.ChunkSize, c.Chunking.ChunkOverlap)
	}
	if c.Index.TopK < 1 {
		return fmt.Errorf("index.top_k must be >= 1, got %d", c.Index.TopK)
	}
	switch c.Index.Backend {
	case IndexBackendLocal, IndexBackendQdrant:
	default:
		return fmt.Errorf("index.backend must be %q or %q, got %q", IndexBackendLocal, IndexBackendQdrant, c.Index.Backend)
	}
	if c.Cache.Enabled && c.Index.Backend != IndexBackendQdrant {
		return fmt.Errorf("cache.enabled requires index.backend %q", IndexBackendQdrant)
	}

	switch c.Embedding.Provider {
	case ProviderOpenAI, ProviderGoogle:
	default:
		return fmt.Errorf("embedding.provider must be %q or %q, got %q", ProviderOpenAI, ProviderGoogle, c.Embedding.Provider)
	}
	switch c.Generation.Provider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("generation.provider must be %q or %q, got %q", ProviderOpenAI, ProviderGemini, c.Generation.Provider)
	}
	switch c.Fallback.Provider {
	case FallbackOpenAIWebSearch, FallbackGoogleSearch:
	default:
		return fmt.Errorf("fallback.provider must be %q or %q, got %q", FallbackOpenAIWebSearch, FallbackGoogleSearch, c.Fallback.Provider)
	}

	if c.needsOpenAI() && c.OpenAI.APIKey == "" {
		return errors.New("openai.api_key (or OPENAI_API_KEY) is required by the selected providers")
	}
	if c.needsGoogle() && c.Google.APIKey == "" {
		return errors.New("google.api_key (or GOOGLE_API_KEY) is required by the selected providers")
	}

	for i, s := range c.Sources {
		if strings.TrimSpace(s.Path) == "" {
			return fmt.Errorf("sources[%d].path is required", i)
		}
	}
	return nil
}

func (c *Config) needsOpenAI() bool {
	return c.Embedding.Provider == ProviderOpenAI ||
		c.Generation.Provider == ProviderOpenAI ||
		c.Fallback.Provider == FallbackOpenAIWebSearch
}

func (c *Config) needsGoogle() bool {
	return c.Embedding.Provider == ProviderGoogle ||
		c.Generation.Provider == ProviderGemini ||
		c.Fallback.Provider == FallbackGoogleSearch
}

// RequestTimeout is the upper bound for one question.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Requests.TimeoutSec) * time.Second
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSec) * time.Second
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
