package rag_test

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/akolanti/FinBot/internal/config"
	"github.com/akolanti/FinBot/internal/data/store"
	"github.com/akolanti/FinBot/internal/domain/commonModels"
	"github.com/akolanti/FinBot/internal/domain/jobModel"
	"github.com/akolanti/FinBot/internal/rag"
	"github.com/akolanti/FinBot/internal/rag/fallback"
	"github.com/akolanti/FinBot/internal/rag/ingest"
	"github.com/akolanti/FinBot/internal/rag/vectorDB/localDB"
)

const webLabel = "OpenAI Web Search"

type mocks struct {
	embedder *MockEmbedder
	index    *MockVectorDB
	llm      *MockLLM
	searcher *MockSearcher
	cache    *MockCache
	registry store.DocumentRegistry
}

func newMocks() *mocks {
	return &mocks{
		embedder: &MockEmbedder{},
		index:    &MockVectorDB{},
		llm:      &MockLLM{},
		searcher: &MockSearcher{},
	}
}

func (m *mocks) service(t *testing.T) rag.Service {
	t.Helper()
	splitter, err := ingest.NewSplitter(300, 50)
	if err != nil {
		t.Fatal(err)
	}
	deps := rag.Dependencies{
		Index:     m.index,
		Registry:  m.registry,
		Embedder:  m.embedder,
		Generator: m.llm,
		Searcher:  m.searcher,
		Splitter:  splitter,
	}
	if m.cache != nil {
		deps.Cache = m.cache
	}
	return rag.NewService(deps, rag.Options{
		TopK:           4,
		BatchSize:      2,
		Dimension:      2,
		EmbeddingModel: "test-embedding",
		Collection:     "finbot-docs",
		SourceLabel:    webLabel,
		Assistant:      config.AssistantName,
		Organization:   config.AssistantOrganization,
	})
}

func page(name string, n int, text string) commonModels.Document {
	return commonModels.Document{Id: name, Name: name, Source: "data/" + name, Page: n, Text: text}
}

func readyService(t *testing.T, m *mocks) rag.Service {
	t.Helper()
	svc := m.service(t)
	if _, err := svc.BuildIndex(context.Background(), []commonModels.Document{page("faq.pdf", 1, "An IRA is a retirement account.")}); err != nil {
		t.Fatalf("BuildIndex failed: %v", err)
	}
	return svc
}

func retrieved(texts ...string) []commonModels.RetrievedChunk {
	out := make([]commonModels.RetrievedChunk, len(texts))
	for i, text := range texts {
		out[i] = commonModels.RetrievedChunk{Chunk: commonModels.DocChunk{Chunk: text}, Score: 0.9}
	}
	return out
}

func TestAnswer_Scenarios(t *testing.T) {
	tests := []struct {
		name          string
		setupMocks    func(m *mocks)
		question      string
		expectedText  string
		expectedSrc   []string
		expectedPath  commonModels.AnswerPath
		expectedErr   error
		expectWebCall bool
	}{
		{
			name: "Answered_From_Documents",
			setupMocks: func(m *mocks) {
				m.index.OnSearch = func(ctx context.Context, v []float32, topK int) ([]commonModels.RetrievedChunk, error) {
					return retrieved("An IRA is a retirement account.", "Roth IRAs use after-tax money."), nil
				}
				m.llm.OnGenerate = func(ctx context.Context, prompt string) (string, error) {
					return "  An IRA is a retirement account.  \n\n", nil
				}
			},
			question:     "What is an IRA?",
			expectedText: "An IRA is a retirement account.",
			expectedSrc:  []string{"An IRA is a retirement account.", "Roth IRAs use after-tax money."},
			expectedPath: commonModels.PathRAGAnswered,
		},
		{
			name: "Falls_Back_To_Web_Search",
			setupMocks: func(m *mocks) {
				m.llm.OnGenerate = func(ctx context.Context, prompt string) (string, error) {
					return "I don't have that information.", nil
				}
				m.searcher.OnSearch = func(ctx context.Context, q string) ([]fallback.OutputItem, error) {
					return []fallback.OutputItem{
						{Type: "web_search_call"},
						{Type: fallback.ItemTypeMessage, Content: []fallback.ContentPart{
							{Type: fallback.PartTypeOutputText, Text: "- Today's rate is 6.1%"},
						}},
					}, nil
				}
			},
			question:      "What is today's mortgage rate?",
			expectedText:  "- Today's rate is 6.1%",
			expectedSrc:   []string{webLabel},
			expectedPath:  commonModels.PathWebFallback,
			expectWebCall: true,
		},
		{
			name: "Web_Search_Returns_Nothing",
			setupMocks: func(m *mocks) {
				m.llm.OnGenerate = func(ctx context.Context, prompt string) (string, error) {
					return "I'm sorry, I can't help with that.", nil
				}
				m.searcher.OnSearch = func(ctx context.Context, q string) ([]fallback.OutputItem, error) {
					return nil, nil
				}
			},
			question:      "Who won the game?",
			expectedText:  fallback.NoResultsAnswer,
			expectedSrc:   []string{webLabel},
			expectedPath:  commonModels.PathWebFallback,
			expectWebCall: true,
		},
		{
			name: "Cache_Hit",
			setupMocks: func(m *mocks) {
				m.cache = &MockCache{
					OnGetCachedAnswer: func(ctx context.Context, v []float32) (commonModels.Answer, bool, error) {
						return commonModels.Answer{Text: "cached answer", Sources: []string{"chunk"}, Path: commonModels.PathRAGAnswered}, true, nil
					},
				}
				m.llm.OnGenerate = func(ctx context.Context, prompt string) (string, error) {
					return "", errors.New("generator must not be called on a cache hit")
				}
			},
			question:     "What is an IRA?",
			expectedText: "cached answer",
			expectedSrc:  []string{"chunk"},
			expectedPath: commonModels.PathRAGAnswered,
		},
		{
			name:        "Empty_Question",
			setupMocks:  func(m *mocks) {},
			question:    "   ",
			expectedErr: rag.ErrEmptyQuestion,
		},
		{
			name: "Failure_Embedding",
			setupMocks: func(m *mocks) {
				m.embedder.OnGetEmbedding = func(ctx context.Context, text string) ([]float32, error) {
					return nil, errors.New("api limit")
				}
			},
			question:    "q",
			expectedErr: rag.ErrEmbeddingFailure,
		},
		{
			name: "Failure_Vector_Search",
			setupMocks: func(m *mocks) {
				m.index.OnSearch = func(ctx context.Context, v []float32, topK int) ([]commonModels.RetrievedChunk, error) {
					return nil, errors.New("db timeout")
				}
			},
			question:    "q",
			expectedErr: rag.ErrVectorSearchFailure,
		},
		{
			name: "Failure_LLM_Generation",
			setupMocks: func(m *mocks) {
				m.llm.OnGenerate = func(ctx context.Context, prompt string) (string, error) {
					return "", errors.New("provider down")
				}
			},
			question:    "q",
			expectedErr: rag.ErrGenerationFailure,
		},
		{
			name: "Failure_Web_Search_Is_Not_Masked",
			setupMocks: func(m *mocks) {
				m.llm.OnGenerate = func(ctx context.Context, prompt string) (string, error) {
					return "I don't have that information.", nil
				}
				m.searcher.OnSearch = func(ctx context.Context, q string) ([]fallback.OutputItem, error) {
					return nil, errors.New("search unavailable")
				}
			},
			question:      "q",
			expectedErr:   rag.ErrWebSearchFailure,
			expectWebCall: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMocks()
			tt.setupMocks(m)
			svc := readyService(t, m)

			got, err := svc.Answer(context.Background(), tt.question)

			if tt.expectedErr != nil {
				if !errors.Is(err, tt.expectedErr) {
					t.Fatalf("expected error %v, got %v", tt.expectedErr, err)
				}
			} else {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if got.Text != tt.expectedText {
					t.Errorf("answer = %q, want %q", got.Text, tt.expectedText)
				}
				if !slices.Equal(got.Sources, tt.expectedSrc) {
					t.Errorf("sources = %q, want %q", got.Sources, tt.expectedSrc)
				}
				if got.Path != tt.expectedPath {
					t.Errorf("path = %s, want %s", got.Path, tt.expectedPath)
				}
				if fallback.NeedsWebSearch(got.Text) {
					t.Errorf("final answer still carries a marker: %q", got.Text)
				}
			}

			if called := m.searcher.Calls() > 0; called != tt.expectWebCall {
				t.Errorf("web search called = %v, want %v", called, tt.expectWebCall)
			}
		})
	}
}

func TestAnswer_IndexNotReady(t *testing.T) {
	svc := newMocks().service(t)

	if svc.Ready() {
		t.Fatal("service must not be ready before an index is built")
	}
	if _, err := svc.Answer(context.Background(), "What is an IRA?"); !errors.Is(err, rag.ErrIndexNotReady) {
		t.Errorf("expected ErrIndexNotReady, got %v", err)
	}
}

func TestAnswer_PromptCarriesContextAndQuestion(t *testing.T) {
	m := newMocks()
	var prompt string
	m.index.OnSearch = func(ctx context.Context, v []float32, topK int) ([]commonModels.RetrievedChunk, error) {
		if topK != 4 {
			t.Errorf("topK = %d, want 4", topK)
		}
		return retrieved("chunk one", "chunk two"), nil
	}
	m.llm.OnGenerate = func(ctx context.Context, p string) (string, error) {
		prompt = p
		return "answer", nil
	}
	svc := readyService(t, m)

	if _, err := svc.Answer(context.Background(), "How is APR computed?"); err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	for _, want := range []string{"chunk one\n\nchunk two", "Question: How is APR computed?", fallback.NoInformationPhrase} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildIndex_EmptyCorpus(t *testing.T) {
	svc := newMocks().service(t)

	_, err := svc.BuildIndex(context.Background(), []commonModels.Document{page("blank.txt", 1, "   \n ")})
	if !errors.Is(err, rag.ErrEmptyCorpus) {
		t.Fatalf("expected ErrEmptyCorpus, got %v", err)
	}
	if svc.Ready() {
		t.Error("an empty index must never be reported ready")
	}
}

func TestBuildIndex_SkipsPagesAlreadyIndexed(t *testing.T) {
	ctx := context.Background()
	m := newMocks()
	m.registry = store.NewInMemoryRegistry()
	m.index.OnExists = func(ctx context.Context) (bool, error) { return true, nil }

	old := page("faq.pdf", 1, "Old page text.")
	_ = m.registry.Record(ctx, store.PageKey("finbot-docs", old.Name, old.Page), store.ContentHash(old.Text))

	svc := m.service(t)
	stats, err := svc.BuildIndex(ctx, []commonModels.Document{old, page("faq.pdf", 2, "New page text.")})
	if err != nil {
		t.Fatalf("BuildIndex failed: %v", err)
	}

	if stats.Created || stats.Added != 1 || stats.Skipped != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
	upserted := m.index.Upserted()
	if len(upserted) != 1 || upserted[0].Chunk != "New page text." {
		t.Errorf("unexpected upserts %+v", upserted)
	}
}

func TestBuildIndex_NewIndexIgnoresRegistry(t *testing.T) {
	ctx := context.Background()
	m := newMocks()
	m.registry = store.NewInMemoryRegistry()
	doc := page("faq.pdf", 1, "Page text.")
	_ = m.registry.Record(ctx, store.PageKey("finbot-docs", doc.Name, doc.Page), store.ContentHash(doc.Text))

	stats, err := m.service(t).BuildIndex(ctx, []commonModels.Document{doc})
	if err != nil {
		t.Fatalf("BuildIndex failed: %v", err)
	}
	if !stats.Created || stats.Added != 1 {
		t.Errorf("a new index must take every chunk, got %+v", stats)
	}
}

func TestBuildIndex_FailedBatchIsNotRecorded(t *testing.T) {
	ctx := context.Background()
	m := newMocks()
	m.registry = store.NewInMemoryRegistry()
	calls := 0
	m.embedder.OnBatchEmbedding = func(ctx context.Context, chunks []string) ([][]float32, error) {
		calls++
		if calls == 2 {
			return nil, errors.New("embedding outage")
		}
		out := make([][]float32, len(chunks))
		for i := range out {
			out[i] = []float32{1, 0}
		}
		return out, nil
	}

	docs := []commonModels.Document{
		page("a.txt", 1, "first"), page("b.txt", 1, "second"),
		page("c.txt", 1, "third"), page("d.txt", 1, "fourth"),
	}
	stats, err := m.service(t).BuildIndex(ctx, docs)
	if err == nil {
		t.Fatal("expected the build to fail")
	}
	if stats.Added != 2 || len(m.index.Upserted()) != 2 {
		t.Errorf("only the first batch should be committed, got %+v", stats)
	}

	for i, d := range docs {
		seen, _ := m.registry.Seen(ctx, store.PageKey("finbot-docs", d.Name, d.Page), store.ContentHash(d.Text))
		if want := i < 2; seen != want {
			t.Errorf("%s recorded = %v, want %v", d.Name, seen, want)
		}
	}
}

func TestBuildIndex_ResetsCacheAfterExtension(t *testing.T) {
	m := newMocks()
	resets := 0
	m.cache = &MockCache{OnResetCache: func(ctx context.Context) error { resets++; return nil }}

	readyService(t, m)
	if resets != 1 {
		t.Errorf("expected 1 cache reset, got %d", resets)
	}
}

func TestAnswer_NotCachedWhenIndexExtendedMidRequest(t *testing.T) {
	m := newMocks()
	var mu sync.Mutex
	var saved []string
	m.cache = &MockCache{
		OnSaveToCache: func(ctx context.Context, id string, v []float32, a commonModels.Answer) error {
			mu.Lock()
			defer mu.Unlock()
			saved = append(saved, a.Text)
			return nil
		},
	}
	svc := readyService(t, m)

	// the index grows between retrieval and the cache write of the first answer
	m.llm.OnGenerate = func(ctx context.Context, prompt string) (string, error) {
		if _, err := svc.BuildIndex(ctx, []commonModels.Document{page("new.pdf", 1, "A 401k is an employer plan.")}); err != nil {
			t.Errorf("extension failed: %v", err)
		}
		return "stale answer", nil
	}
	if _, err := svc.Answer(context.Background(), "What is an IRA?"); err != nil {
		t.Fatalf("Answer failed: %v", err)
	}

	m.llm.OnGenerate = func(ctx context.Context, prompt string) (string, error) { return "fresh answer", nil }
	if _, err := svc.Answer(context.Background(), "What is an IRA?"); err != nil {
		t.Fatalf("Answer failed: %v", err)
	}

	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(saved)
	}
	deadline := time.Now().Add(2 * time.Second)
	for count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	// give a late stale write the chance to show up
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if !slices.Equal(saved, []string{"fresh answer"}) {
		t.Errorf("expected only the fresh answer to be cached, got %q", saved)
	}
}

// Uses the real bbolt store: earlier chunks stay retrievable after an extension.
func TestBuildIndex_ExtensionIsAdditive(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")

	vectors := map[string][]float32{
		"Budgeting splits income into needs and wants.": {1, 0, 0},
		"A credit score ranges from 300 to 850.":        {0, 1, 0},
	}
	m := newMocks()
	m.embedder.OnBatchEmbedding = func(ctx context.Context, chunks []string) ([][]float32, error) {
		out := make([][]float32, len(chunks))
		for i, c := range chunks {
			out[i] = vectors[c]
		}
		return out, nil
	}

	build := func(docs ...commonModels.Document) (rag.Service, *localDB.Store) {
		splitter, _ := ingest.NewSplitter(300, 50)
		index := localDB.New(path, "finbot-docs")
		t.Cleanup(func() { _ = index.Close() })
		svc := rag.NewService(rag.Dependencies{
			Index: index, Embedder: m.embedder, Generator: m.llm, Searcher: m.searcher, Splitter: splitter,
		}, rag.Options{TopK: 1, BatchSize: 10, Dimension: 3, Collection: "finbot-docs", SourceLabel: webLabel})
		if _, err := svc.BuildIndex(ctx, docs); err != nil {
			t.Fatalf("BuildIndex failed: %v", err)
		}
		return svc, index
	}

	_, firstIndex := build(page("budget.txt", 1, "Budgeting splits income into needs and wants."))
	// bbolt holds a file lock until closed
	if err := firstIndex.Close(); err != nil {
		t.Fatal(err)
	}
	second, _ := build(page("credit.txt", 1, "A credit score ranges from 300 to 850."))

	for text, vec := range vectors {
		m.embedder.OnGetEmbedding = func(ctx context.Context, q string) ([]float32, error) { return vec, nil }
		got, err := second.Answer(ctx, "question")
		if err != nil {
			t.Fatalf("Answer failed: %v", err)
		}
		if !slices.Equal(got.Sources, []string{text}) {
			t.Errorf("expected %q to be retrievable, got %q", text, got.Sources)
		}
	}
}

func TestIngestDocument(t *testing.T) {
	dir := t.TempDir()

	t.Run("Complete", func(t *testing.T) {
		path := filepath.Join(dir, "upload.txt")
		if err := os.WriteFile(path, []byte("A 401(k) is an employer retirement plan."), 0o600); err != nil {
			t.Fatal(err)
		}
		m := newMocks()
		svc := m.service(t)

		job := svc.IngestDocument(context.Background(), jobModel.Job{
			Id:         "job-1",
			JobPayload: jobModel.JobPayload{IngestFileName: "401k.txt", IngestURL: path},
		})

		if job.Status != jobModel.JobStatusComplete || job.CurrentStep != jobModel.Complete {
			t.Fatalf("unexpected job %+v", job)
		}
		if job.JobPayload.ChunksAdded != 1 {
			t.Errorf("chunks added = %d", job.JobPayload.ChunksAdded)
		}
		if !svc.Ready() {
			t.Error("service should be ready after ingesting a document")
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Error("uploaded file should be removed")
		}
	})

	t.Run("Unsupported_Type", func(t *testing.T) {
		path := filepath.Join(dir, "image.png")
		_ = os.WriteFile(path, []byte{0x89, 0x50, 0x4e, 0x47}, 0o600)

		job := newMocks().service(t).IngestDocument(context.Background(), jobModel.Job{
			Id:         "job-2",
			JobPayload: jobModel.JobPayload{IngestFileName: "image.png", IngestURL: path},
		})

		if job.Status != jobModel.JobStatusError {
			t.Fatalf("expected error status, got %s", job.Status)
		}
		if job.Error.Code != http.StatusUnprocessableEntity || job.Error.Retry {
			t.Errorf("unexpected job error %+v", job.Error)
		}
	})

	t.Run("Index_Failure_Is_Retryable", func(t *testing.T) {
		path := filepath.Join(dir, "upload2.txt")
		_ = os.WriteFile(path, []byte("Some text."), 0o600)
		m := newMocks()
		m.index.OnUpsertBatch = func(ctx context.Context, c []commonModels.DocChunk, v [][]float32) error {
			return errors.New("disk full")
		}

		job := m.service(t).IngestDocument(context.Background(), jobModel.Job{
			Id:         "job-3",
			JobPayload: jobModel.JobPayload{IngestFileName: "upload2.txt", IngestURL: path},
		})
		if job.Error.Code != http.StatusInternalServerError || !job.Error.Retry {
			t.Errorf("unexpected job error %+v", job.Error)
		}
	})
}

func TestAnswer_ConcurrentWithIngestion(t *testing.T) {
	m := newMocks()
	svc := readyService(t, m)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := svc.Answer(context.Background(), "What is an IRA?"); err != nil {
				t.Errorf("Answer failed: %v", err)
			}
		}()
		go func(i int) {
			defer wg.Done()
			_, _ = svc.BuildIndex(context.Background(), []commonModels.Document{page("extra.txt", i, "More text.")})
		}(i)
	}
	wg.Wait()
}

func TestBuildPrompt(t *testing.T) {
	prompt := rag.BuildPrompt("SofiBot", "SoFi", retrieved("ctx a", "ctx b"), "What is APY?")

	for _, want := range []string{
		"You are SofiBot, SoFi's personal financial assistant",
		"Show the calculation steps",
		`respond: "I don't have that information."`,
		"Context:\nctx a\n\nctx b\n\nQuestion: What is APY?\n\nAnswer:",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
