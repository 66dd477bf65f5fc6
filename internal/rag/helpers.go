package rag

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/akolanti/FinBot/internal/domain/commonModels"
	"github.com/akolanti/FinBot/internal/domain/jobModel"
	"github.com/akolanti/FinBot/internal/metrics"
	"github.com/akolanti/FinBot/internal/rag/answer"
	"github.com/akolanti/FinBot/internal/rag/fallback"
	"github.com/akolanti/FinBot/internal/rag/ingest"
	"github.com/akolanti/FinBot/pkg/logger_i"
)

const cacheWriteTimeout = 5 * time.Second

func returnOutput(job jobModel.Job) jobModel.Job {
	job.Status = jobModel.JobStatusComplete
	job.CurrentStep = jobModel.Complete
	job.EndTime = time.Now()
	return job
}

func logOutput(job jobModel.Job, status jobModel.InternalStatus, log *logger_i.Logger) jobModel.Job {
	job.CurrentStep = status
	log.Debug("IngestDocument", "Current Status", job.CurrentStep)
	return job
}

// jobError maps bad uploads to 422 and everything else to a retryable 500.
func (s *service) jobError(job jobModel.Job, err error, message string) jobModel.Job {
	s.logger.Error(message, "jobId", job.Id, "error", err)

	code, retry, text := http.StatusInternalServerError, true, "Internal Server Error"
	switch {
	case errors.Is(err, ingest.ErrUnsupportedType), errors.Is(err, ingest.ErrNoText), errors.Is(err, ErrEmptyCorpus):
		code, retry, text = http.StatusUnprocessableEntity, false, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		code, text = http.StatusGatewayTimeout, "ingestion timed out"
	}

	job.Error = jobModel.JobError{
		Code:    code,
		Message: text,
		Retry:   retry,
	}
	job.Status = jobModel.JobStatusError
	job.CurrentStep = jobModel.Error
	job.EndTime = time.Now()
	return job
}

func (s *service) executeEmbeddingStep(ctx context.Context, log *logger_i.Logger, question string) ([]float32, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("embedding", time.Since(start)) }()

	vector, err := s.deps.Embedder.GetEmbedding(ctx, question)
	if err != nil {
		log.Error("question embedding failed", "error", err)
	}
	return vector, err
}

func (s *service) executeCacheCheckStep(ctx context.Context, log *logger_i.Logger, vector []float32) (commonModels.Answer, bool) {
	if s.deps.Cache == nil {
		return commonModels.Answer{}, false
	}
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("cache_lookup", time.Since(start)) }()

	cached, found, err := s.deps.Cache.GetCachedAnswer(ctx, vector)
	if err != nil {
		log.Warn("cache lookup failed, continuing without it", "error", err)
		return commonModels.Answer{}, false
	}
	return cached, found
}

// executeVectorSearchStep is the only read of the index on the query path. It
// also returns the cache generation the matches belong to.
func (s *service) executeVectorSearchStep(ctx context.Context, log *logger_i.Logger, vector []float32) ([]commonModels.RetrievedChunk, uint64, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("vector_search", time.Since(start)) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	gen := s.cacheGen.Load()
	matches, err := s.deps.Index.Search(ctx, vector, s.opts.TopK)
	if err != nil {
		log.Error("vector search failed", "error", err)
		return nil, gen, err
	}
	log.Debug("retrieved chunks", "count", len(matches))
	return matches, gen, nil
}

func (s *service) executeLLMStep(ctx context.Context, log *logger_i.Logger, matches []commonModels.RetrievedChunk, question string) (string, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("llm_generation", time.Since(start)) }()

	prompt := BuildPrompt(s.opts.Assistant, s.opts.Organization, matches, question)
	text, err := s.deps.Generator.Generate(ctx, prompt)
	if err != nil {
		log.Error("generation failed", "error", err)
	}
	return text, err
}

func (s *service) executeWebSearchStep(ctx context.Context, log *logger_i.Logger, question string) (commonModels.Answer, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("web_search", time.Since(start)) }()

	items, err := s.deps.Searcher.Search(ctx, question)
	if err != nil {
		log.Error("web search failed", "error", err)
		return commonModels.Answer{}, err
	}

	text := fallback.ExtractText(items)
	if strings.TrimSpace(text) == "" {
		text = fallback.NoResultsAnswer
	}
	return answer.FromWebSearch(text, s.opts.SourceLabel), nil
}
