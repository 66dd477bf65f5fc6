package rag_test

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/akolanti/FinBot/internal/domain/commonModels"
	"github.com/akolanti/FinBot/internal/rag/fallback"
)

// MockVectorDB implements vectorDB.DataProcessor
type MockVectorDB struct {
	OnExists      func(ctx context.Context) (bool, error)
	OnCreate      func(ctx context.Context) error
	OnSearch      func(ctx context.Context, vector []float32, topK int) ([]commonModels.RetrievedChunk, error)
	OnUpsertBatch func(ctx context.Context, chunks []commonModels.DocChunk, vectors [][]float32) error
	OnCount       func(ctx context.Context) (int, error)

	mu       sync.Mutex
	upserted []commonModels.DocChunk
}

func (m *MockVectorDB) Exists(ctx context.Context) (bool, error) {
	if m.OnExists != nil {
		return m.OnExists(ctx)
	}
	return false, nil
}

func (m *MockVectorDB) Create(ctx context.Context) error {
	if m.OnCreate != nil {
		return m.OnCreate(ctx)
	}
	return nil
}

func (m *MockVectorDB) Search(ctx context.Context, v []float32, topK int) ([]commonModels.RetrievedChunk, error) {
	if m.OnSearch != nil {
		return m.OnSearch(ctx, v, topK)
	}
	return []commonModels.RetrievedChunk{{Chunk: commonModels.DocChunk{Chunk: "default context"}, Score: 0.9}}, nil
}

func (m *MockVectorDB) UpsertBatch(ctx context.Context, chunks []commonModels.DocChunk, vectors [][]float32) error {
	if m.OnUpsertBatch != nil {
		if err := m.OnUpsertBatch(ctx, chunks, vectors); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserted = append(m.upserted, chunks...)
	return nil
}

func (m *MockVectorDB) Count(ctx context.Context) (int, error) {
	if m.OnCount != nil {
		return m.OnCount(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.upserted), nil
}

func (m *MockVectorDB) Close() error { return nil }

func (m *MockVectorDB) Upserted() []commonModels.DocChunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]commonModels.DocChunk(nil), m.upserted...)
}

// MockCache implements vectorDB.AnswerCache
type MockCache struct {
	OnGetCachedAnswer func(ctx context.Context, v []float32) (commonModels.Answer, bool, error)
	OnSaveToCache     func(ctx context.Context, id string, v []float32, a commonModels.Answer) error
	OnResetCache      func(ctx context.Context) error
}

func (m *MockCache) GetCachedAnswer(ctx context.Context, v []float32) (commonModels.Answer, bool, error) {
	if m.OnGetCachedAnswer != nil {
		return m.OnGetCachedAnswer(ctx, v)
	}
	return commonModels.Answer{}, false, nil
}

func (m *MockCache) SaveToCache(ctx context.Context, id string, v []float32, a commonModels.Answer) error {
	if m.OnSaveToCache != nil {
		return m.OnSaveToCache(ctx, id, v, a)
	}
	return nil
}

func (m *MockCache) ResetCache(ctx context.Context) error {
	if m.OnResetCache != nil {
		return m.OnResetCache(ctx)
	}
	return nil
}

type MockEmbedder struct {
	OnGetEmbedding   func(ctx context.Context, text string) ([]float32, error)
	OnBatchEmbedding func(ctx context.Context, chunks []string) ([][]float32, error)
}

func (m *MockEmbedder) BatchEmbedding(ctx context.Context, chunks []string) ([][]float32, error) {
	if m.OnBatchEmbedding != nil {
		return m.OnBatchEmbedding(ctx, chunks)
	}
	out := make([][]float32, len(chunks))
	for i := range out {
		out[i] = []float32{0.1, 0.2}
	}
	return out, nil
}

func (m *MockEmbedder) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	if m.OnGetEmbedding != nil {
		return m.OnGetEmbedding(ctx, query)
	}
	return []float32{0.1, 0.2}, nil
}

// MockLLM implements llm.Provider
type MockLLM struct {
	OnGenerate func(ctx context.Context, prompt string) (string, error)
}

func (m *MockLLM) Generate(ctx context.Context, prompt string) (string, error) {
	if m.OnGenerate != nil {
		return m.OnGenerate(ctx, prompt)
	}
	return "mocked llm response", nil
}

// MockSearcher implements websearch.Provider
type MockSearcher struct {
	OnSearch func(ctx context.Context, question string) ([]fallback.OutputItem, error)
	calls    atomic.Int32
}

func (m *MockSearcher) Search(ctx context.Context, question string) ([]fallback.OutputItem, error) {
	m.calls.Add(1)
	if m.OnSearch != nil {
		return m.OnSearch(ctx, question)
	}
	return []fallback.OutputItem{{
		Type:    fallback.ItemTypeMessage,
		Content: []fallback.ContentPart{{Type: fallback.PartTypeOutputText, Text: "web answer"}},
	}}, nil
}

func (m *MockSearcher) Calls() int { return int(m.calls.Load()) }
