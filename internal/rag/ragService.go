package rag

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/akolanti/FinBot/internal/data/store"
	"github.com/akolanti/FinBot/internal/domain/commonModels"
	"github.com/akolanti/FinBot/internal/domain/jobModel"
	"github.com/akolanti/FinBot/internal/metrics"
	"github.com/akolanti/FinBot/internal/rag/answer"
	"github.com/akolanti/FinBot/internal/rag/embedding"
	"github.com/akolanti/FinBot/internal/rag/fallback"
	"github.com/akolanti/FinBot/internal/rag/ingest"
	"github.com/akolanti/FinBot/internal/rag/llm"
	"github.com/akolanti/FinBot/internal/rag/vectorDB"
	"github.com/akolanti/FinBot/internal/rag/websearch"
	"github.com/akolanti/FinBot/pkg/logger_i"
	"github.com/google/uuid"
)

// Service is the whole question pipeline plus the index it reads from.
// Handlers, workers and the MCP tool only see this interface.
type Service interface {
	Answer(ctx context.Context, question string) (commonModels.Answer, error)
	BuildIndex(ctx context.Context, docs []commonModels.Document) (IndexStats, error)
	IngestDocument(ctx context.Context, job jobModel.Job) jobModel.Job
	Ready() bool
}

type IndexStats struct {
	Documents int  `json:"documents"`
	Pages     int  `json:"pages"`
	Chunks    int  `json:"chunks"`
	Added     int  `json:"added"`
	Skipped   int  `json:"skipped"`
	Created   bool `json:"created"`
}

type Options struct {
	TopK           int
	BatchSize      int
	Dimension      int
	EmbeddingModel string
	Collection     string
	SourceLabel    string
	Assistant      string
	Organization   string
	RequestTimeout time.Duration
}

// Dependencies are the collaborators of the pipeline. Cache and Registry may be nil.
type Dependencies struct {
	Index     vectorDB.DataProcessor
	Cache     vectorDB.AnswerCache
	Registry  store.DocumentRegistry
	Embedder  embedding.Embedder
	Generator llm.Provider
	Searcher  websearch.Provider
	Splitter  *ingest.Splitter
}

type service struct {
	deps  Dependencies
	opts  Options
	mu    sync.RWMutex
	ready atomic.Bool
	// bumped under mu whenever the cache is reset
	cacheGen atomic.Uint64

	logger *logger_i.Logger
}

func NewService(deps Dependencies, opts Options) Service {
	return &service{
		deps:   deps,
		opts:   opts,
		logger: logger_i.NewLogger("RAG Service"),
	}
}

func (s *service) Ready() bool {
	return s.ready.Load()
}

// Answer runs retrieval, and web search only when the grounded answer carries
// an unknown-answer marker. Service failures are returned, never papered over.
func (s *service) Answer(ctx context.Context, question string) (commonModels.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return commonModels.Answer{}, ErrEmptyQuestion
	}
	if !s.Ready() {
		return commonModels.Answer{}, ErrIndexNotReady
	}

	log := s.logger.WithTrace(ctx)
	if s.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.RequestTimeout)
		defer cancel()
	}

	start := time.Now()
	status := "error"
	defer func() { metrics.CaptureJobMetrics(status, time.Since(start)) }()

	vector, err := s.executeEmbeddingStep(ctx, log, question)
	if err != nil {
		return commonModels.Answer{}, fmt.Errorf("%w: %w", ErrEmbeddingFailure, err)
	}

	if cached, found := s.executeCacheCheckStep(ctx, log, vector); found {
		status = "cache"
		metrics.CountAnswer("CACHE")
		return cached, nil
	}

	matches, gen, err := s.executeVectorSearchStep(ctx, log, vector)
	if err != nil {
		return commonModels.Answer{}, fmt.Errorf("%w: %w", ErrVectorSearchFailure, err)
	}

	text, err := s.executeLLMStep(ctx, log, matches, question)
	if err != nil {
		return commonModels.Answer{}, fmt.Errorf("%w: %w", ErrGenerationFailure, err)
	}

	var result commonModels.Answer
	switch fallback.Decide(text) {
	case fallback.StateRAGAnswered:
		result = answer.FromRetrieval(text, matches)
		s.saveToCache(ctx, vector, result, gen)
	case fallback.StateWebFallback:
		log.Info("grounded answer has no information, falling back to web search")
		result, err = s.executeWebSearchStep(ctx, log, question)
		if err != nil {
			return commonModels.Answer{}, fmt.Errorf("%w: %w", ErrWebSearchFailure, err)
		}
	}

	status = string(result.Path)
	metrics.CountAnswer(string(result.Path))
	log.Debug("question answered", "path", result.Path, "sources", len(result.Sources))
	return result, nil
}

// BuildIndex creates the index from docs, or extends the existing one with the
// pages the registry has not seen. Each batch commits whole or not at all.
func (s *service) BuildIndex(ctx context.Context, docs []commonModels.Document) (IndexStats, error) {
	log := s.logger.WithTrace(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	chunks := ingest.PrepareChunks(docs, s.deps.Splitter, s.opts.EmbeddingModel)
	stats := IndexStats{
		Documents: countDocuments(docs),
		Pages:     len(docs),
		Chunks:    len(chunks),
	}
	if len(chunks) == 0 {
		return stats, ErrEmptyCorpus
	}

	exists, err := s.deps.Index.Exists(ctx)
	if err != nil {
		return stats, fmt.Errorf("checking index: %w", err)
	}
	if !exists {
		log.Info("no index found, creating a new one")
		if err := s.deps.Index.Create(ctx); err != nil {
			return stats, fmt.Errorf("creating index: %w", err)
		}
		stats.Created = true
	}

	pending := chunks
	if !stats.Created {
		pending = s.unseenChunks(ctx, chunks)
	}
	stats.Skipped = len(chunks) - len(pending)

	committed, err := ingest.BatchIngest(ctx, pending, s.deps.Index, s.deps.Embedder, s.opts.BatchSize, s.opts.Dimension)
	stats.Added = committed
	s.recordCommitted(ctx, pending[:committed], pending[committed:])
	if committed > 0 {
		s.cacheGen.Add(1)
		s.resetCache(ctx)
	}
	if err != nil {
		log.Error("index build failed", "error", err, "committed", committed)
		return stats, fmt.Errorf("building index: %w", err)
	}

	total, err := s.deps.Index.Count(ctx)
	if err != nil {
		return stats, fmt.Errorf("counting index: %w", err)
	}
	if total == 0 {
		return stats, ErrEmptyCorpus
	}

	s.ready.Store(true)
	log.Info("index ready", "created", stats.Created, "added", stats.Added, "skipped", stats.Skipped, "total", total)
	return stats, nil
}

// IngestDocument loads one uploaded file and extends the index with it.
// The uploaded file is removed whatever the outcome.
func (s *service) IngestDocument(ctx context.Context, job jobModel.Job) jobModel.Job {
	log := s.logger.WithTrace(ctx).With("jobId", job.Id)
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("document_ingestion", time.Since(start)) }()

	path := job.JobPayload.IngestURL
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn("could not remove uploaded file", "path", path, "error", err)
		}
	}()

	job = logOutput(job, jobModel.IngestLoading, log)
	docs, err := ingest.LoadFile(ctx, path, job.JobPayload.IngestFileName)
	if err != nil {
		return s.jobError(job, err, "INGEST_LOAD_FAILURE")
	}

	job = logOutput(job, jobModel.IngestIndexing, log)
	stats, err := s.BuildIndex(ctx, docs)
	job.JobPayload.ChunksAdded = stats.Added
	job.JobPayload.ChunksSkipped = stats.Skipped
	if err != nil {
		return s.jobError(job, err, "INGEST_INDEX_FAILURE")
	}

	return returnOutput(job)
}

// unseenChunks drops chunks of pages already indexed with the same content.
// A registry error counts as unseen; re-adding is safe because chunk ids are stable.
func (s *service) unseenChunks(ctx context.Context, chunks []commonModels.DocChunk) []commonModels.DocChunk {
	if s.deps.Registry == nil {
		return chunks
	}

	seen := map[string]bool{}
	var out []commonModels.DocChunk
	for _, c := range chunks {
		key := store.PageKey(s.opts.Collection, c.Doc.Name, c.Doc.Page)
		known, checked := seen[key]
		if !checked {
			var err error
			known, err = s.deps.Registry.Seen(ctx, key, store.ContentHash(c.Doc.Text))
			if err != nil {
				s.logger.WithTrace(ctx).Warn("registry lookup failed", "key", key, "error", err)
				known = false
			}
			seen[key] = known
		}
		if !known {
			out = append(out, c)
		}
	}
	return out
}

// recordCommitted marks pages whose chunks all landed in the index.
func (s *service) recordCommitted(ctx context.Context, committed []commonModels.DocChunk, dropped []commonModels.DocChunk) {
	if s.deps.Registry == nil || len(committed) == 0 {
		return
	}

	incomplete := map[string]bool{}
	for _, c := range dropped {
		incomplete[store.PageKey(s.opts.Collection, c.Doc.Name, c.Doc.Page)] = true
	}

	recorded := map[string]bool{}
	for _, c := range committed {
		key := store.PageKey(s.opts.Collection, c.Doc.Name, c.Doc.Page)
		if incomplete[key] || recorded[key] {
			continue
		}
		recorded[key] = true
		if err := s.deps.Registry.Record(ctx, key, store.ContentHash(c.Doc.Text)); err != nil {
			s.logger.WithTrace(ctx).Warn("registry update failed", "key", key, "error", err)
		}
	}
}

// saveToCache stores the answer unless the index was extended since it was
// retrieved at generation gen.
func (s *service) saveToCache(ctx context.Context, vector []float32, result commonModels.Answer, gen uint64) {
	if s.deps.Cache == nil {
		return
	}
	// detached so a finished request does not cancel the write
	go func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, cacheWriteTimeout)
		defer cancel()

		s.mu.RLock()
		defer s.mu.RUnlock()
		if s.cacheGen.Load() != gen {
			s.logger.WithTrace(ctx).Debug("index changed since retrieval, answer not cached")
			return
		}
		if err := s.deps.Cache.SaveToCache(ctx, uuid.NewString(), vector, result); err != nil {
			s.logger.WithTrace(ctx).Error("Failed to save to cache", "error", err)
		}
	}(context.WithoutCancel(ctx))
}

func (s *service) resetCache(ctx context.Context) {
	if s.deps.Cache == nil {
		return
	}
	if err := s.deps.Cache.ResetCache(ctx); err != nil {
		s.logger.WithTrace(ctx).Error("semantic cache reset failed", "error", err)
	}
}

func countDocuments(docs []commonModels.Document) int {
	names := map[string]struct{}{}
	for _, d := range docs {
		names[d.Name] = struct{}{}
	}
	return len(names)
}
