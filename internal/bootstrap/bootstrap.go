package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"github.com/akolanti/FinBot/internal/config"
	"github.com/akolanti/FinBot/internal/customHttpClient"
	"github.com/akolanti/FinBot/internal/data/redisStore"
	"github.com/akolanti/FinBot/internal/data/store"
	"github.com/akolanti/FinBot/internal/domain/jobModel"
	"github.com/akolanti/FinBot/internal/job"
	"github.com/akolanti/FinBot/internal/rag"
	"github.com/akolanti/FinBot/internal/rag/embedding"
	"github.com/akolanti/FinBot/internal/rag/embedding/googleEmbedding"
	"github.com/akolanti/FinBot/internal/rag/embedding/openaiEmbedding"
	"github.com/akolanti/FinBot/internal/rag/ingest"
	"github.com/akolanti/FinBot/internal/rag/llm"
	"github.com/akolanti/FinBot/internal/rag/llm/gemini"
	"github.com/akolanti/FinBot/internal/rag/llm/openaiLLM"
	"github.com/akolanti/FinBot/internal/rag/retry"
	"github.com/akolanti/FinBot/internal/rag/vectorDB"
	"github.com/akolanti/FinBot/internal/rag/vectorDB/localDB"
	"github.com/akolanti/FinBot/internal/rag/vectorDB/qdrantDB"
	"github.com/akolanti/FinBot/internal/rag/websearch"
	"github.com/akolanti/FinBot/internal/rag/websearch/googleSearch"
	"github.com/akolanti/FinBot/internal/rag/websearch/openaiSearch"
	"github.com/akolanti/FinBot/internal/worker"
	"github.com/akolanti/FinBot/pkg/logger_i"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/genai"
)

// App holds every long-lived collaborator built from the config.
type App struct {
	Config config.Config
	Rag    rag.Service
	Jobs   *job.Service
	Pool   *worker.Pool

	closers []func() error
	logger  *logger_i.Logger
}

// New wires the service from cfg. Nothing is indexed yet; call BuildIndex for that.
func New(ctx context.Context, cfg config.Config) (_ *App, err error) {
	app := &App{Config: cfg, logger: logger_i.NewLogger("bootstrap")}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	policy := retry.FromConfig(cfg.Requests.Retry)
	httpClient := customHttpClient.New(config.WriteTimeout)

	var openaiClient openai.Client
	if usesOpenAI(cfg) {
		openaiClient = newOpenAIClient(cfg.OpenAI, httpClient)
	}
	var genaiClient *genai.Client
	if usesGoogle(cfg) {
		if genaiClient, err = newGenAIClient(ctx, cfg.Google, httpClient); err != nil {
			return nil, err
		}
	}

	var qdrantClient *qdrant.Client
	if cfg.Index.Backend == config.IndexBackendQdrant {
		if qdrantClient, err = qdrantDB.NewClient(cfg.Index.Qdrant); err != nil {
			return nil, err
		}
	}

	// the index owns the qdrant connection the cache shares
	index := newIndex(cfg, qdrantClient, policy)
	app.closers = append(app.closers, index.Close)

	var cache vectorDB.AnswerCache
	if cfg.Cache.Enabled {
		c := qdrantDB.NewCache(qdrantClient, config.SemanticCacheCollectionName, cfg.Embedding.Dimensions, cfg.Cache.SimilarityCutoff)
		if err := c.Init(ctx); err != nil {
			app.logger.Warn("semantic cache unavailable, continuing without it", "error", err)
		} else {
			cache = c
		}
	}

	splitter, err := ingest.NewSplitter(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	jobStore, registry := app.newStores(ctx, cfg)
	if registry == nil {
		registry = localRegistry(index)
	}

	app.Rag = rag.NewService(rag.Dependencies{
		Index:     index,
		Cache:     cache,
		Registry:  registry,
		Embedder:  newEmbedder(cfg, openaiClient, genaiClient, policy),
		Generator: newGenerator(cfg, openaiClient, genaiClient, policy),
		Searcher:  newSearcher(cfg, openaiClient, genaiClient, policy),
		Splitter:  splitter,
	}, rag.Options{
		TopK:           cfg.Index.TopK,
		BatchSize:      cfg.Embedding.BatchSize,
		Dimension:      cfg.Embedding.Dimensions,
		EmbeddingModel: cfg.Embedding.Model,
		Collection:     cfg.Index.Collection,
		SourceLabel:    cfg.Fallback.SourceLabel,
		Assistant:      cfg.Assistant.Name,
		Organization:   cfg.Assistant.Organization,
		RequestTimeout: cfg.RequestTimeout(),
	})

	app.Jobs = job.InitJobService(jobStore, cfg.Worker.Buffer)
	app.Pool = worker.NewPool(app.Jobs, app.Rag, cfg.Worker.Count, config.IngestJobTimeout)
	return app, nil
}

// BuildIndex loads the configured sources and opens or extends the index.
func (a *App) BuildIndex(ctx context.Context) (rag.IndexStats, error) {
	docs, err := ingest.LoadSources(ctx, a.Config.Sources)
	if err != nil {
		return rag.IndexStats{}, err
	}
	return a.Rag.BuildIndex(ctx, docs)
}

// Close releases clients in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}

// newStores prefers Redis. The job store falls back to memory; a nil registry
// means the caller picks one.
func (a *App) newStores(ctx context.Context, cfg config.Config) (jobModel.JobStore, store.DocumentRegistry) {
	var jobStore jobModel.JobStore = store.InitInMemoryJobStore()
	var registry store.DocumentRegistry
	if !cfg.Redis.Enabled {
		return jobStore, nil
	}

	if rs, err := redisStore.New(ctx, cfg.Redis, cfg.Redis.JobDB); err != nil {
		a.logger.Error("Redis job store is offline, using memory", "error", err)
	} else {
		a.closers = append(a.closers, rs.Close)
		jobStore = store.NewRedisJobStore(rs, config.RedisJobStoreTTL)
	}

	if rs, err := redisStore.New(ctx, cfg.Redis, cfg.Redis.RegistryDB); err != nil {
		a.logger.Error("Redis registry is offline", "error", err)
	} else {
		a.closers = append(a.closers, rs.Close)
		registry = store.NewRedisRegistry(rs)
	}
	return jobStore, registry
}

// localRegistry keeps page hashes next to the vectors when the index is a
// local file; a remote index without Redis only remembers pages until restart.
func localRegistry(index vectorDB.DataProcessor) store.DocumentRegistry {
	if ls, ok := index.(*localDB.Store); ok {
		return ls
	}
	return store.NewInMemoryRegistry()
}

func newIndex(cfg config.Config, client *qdrant.Client, policy retry.Policy) vectorDB.DataProcessor {
	if cfg.Index.Backend == config.IndexBackendQdrant {
		return qdrantDB.New(client, cfg.Index.Collection, cfg.Embedding.Dimensions, policy)
	}
	return localDB.New(cfg.Index.Path, cfg.Index.Collection)
}

func newEmbedder(cfg config.Config, oc openai.Client, gc *genai.Client, policy retry.Policy) embedding.Embedder {
	if cfg.Embedding.Provider == config.ProviderGoogle {
		return googleEmbedding.New(gc, cfg.Embedding.Model, cfg.Embedding.Dimensions, policy)
	}
	return openaiEmbedding.New(oc, cfg.Embedding.Model, cfg.Embedding.Dimensions, policy)
}

func newGenerator(cfg config.Config, oc openai.Client, gc *genai.Client, policy retry.Policy) llm.Provider {
	if cfg.Generation.Provider == config.ProviderGemini {
		return gemini.New(gc, cfg.Generation.Model, cfg.Generation.Temperature, policy)
	}
	return openaiLLM.New(oc, cfg.Generation.Model, cfg.Generation.Temperature, policy)
}

func newSearcher(cfg config.Config, oc openai.Client, gc *genai.Client, policy retry.Policy) websearch.Provider {
	f := cfg.Fallback
	instructions := websearch.Instructions(cfg.Assistant.Name, cfg.Assistant.Organization)
	if f.Provider == config.FallbackGoogleSearch {
		return googleSearch.New(gc, googleSearch.Options{
			Model:           f.Model,
			Instructions:    instructions,
			Temperature:     f.Temperature,
			TopP:            f.TopP,
			MaxOutputTokens: f.MaxOutputTokens,
		}, policy)
	}
	return openaiSearch.New(oc, openaiSearch.Options{
		Model:           f.Model,
		Instructions:    instructions,
		Temperature:     f.Temperature,
		TopP:            f.TopP,
		MaxOutputTokens: f.MaxOutputTokens,
	}, policy)
}

// SDK retries are off; retry.Call owns the policy.
func newOpenAIClient(cfg config.CredentialConfig, httpClient *http.Client) openai.Client {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return openai.NewClient(opts...)
}

func newGenAIClient(ctx context.Context, cfg config.CredentialConfig, httpClient *http.Client) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  httpClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("could not instantiate genai client: %w", err)
	}
	return client, nil
}

func usesOpenAI(cfg config.Config) bool {
	return cfg.Embedding.Provider == config.ProviderOpenAI ||
		cfg.Generation.Provider == config.ProviderOpenAI ||
		cfg.Fallback.Provider == config.FallbackOpenAIWebSearch
}

func usesGoogle(cfg config.Config) bool {
	return cfg.Embedding.Provider == config.ProviderGoogle ||
		cfg.Generation.Provider == config.ProviderGemini ||
		cfg.Fallback.Provider == config.FallbackGoogleSearch
}
