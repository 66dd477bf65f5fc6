package googleEmbedding

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/akolanti/FinBot/internal/rag/retry"
	"google.golang.org/genai"
)

func newTestClient(t *testing.T, body string) *Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	gc, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      "test-key",
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: server.URL},
	})
	if err != nil {
		t.Fatalf("genai client: %v", err)
	}
	return New(gc, "gemini-embedding-001", 2, retry.Policy{InitialInterval: time.Millisecond})
}

func TestBatchEmbedding(t *testing.T) {
	client := newTestClient(t, `{"embeddings":[{"values":[1,0]},{"values":[0,1]}]}`)

	vectors, err := client.BatchEmbedding(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("BatchEmbedding failed: %v", err)
	}
	if len(vectors) != 2 || vectors[0][0] != 1 || vectors[1][1] != 1 {
		t.Errorf("unexpected vectors: %v", vectors)
	}
}

func TestBatchEmbedding_CountMismatch(t *testing.T) {
	client := newTestClient(t, `{"embeddings":[{"values":[1,0]}]}`)

	if _, err := client.BatchEmbedding(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatal("expected an error when fewer embeddings come back")
	}
}

func TestGetContent(t *testing.T) {
	contents := getContent([]string{"x", "y"})
	if len(contents) != 2 || contents[1].Parts[0].Text != "y" {
		t.Errorf("unexpected contents: %+v", contents)
	}
}
