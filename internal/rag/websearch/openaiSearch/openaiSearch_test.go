package openaiSearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/akolanti/FinBot/internal/rag/fallback"
	"github.com/akolanti/FinBot/internal/rag/retry"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	api := openai.NewClient(
		option.WithAPIKey("test-key"),
		option.WithBaseURL(server.URL+"/"),
		option.WithMaxRetries(0),
	)
	opts := Options{
		Model:           "gpt-4.1-mini",
		Instructions:    "You are SofiBot",
		MaxOutputTokens: 300,
	}
	return New(api, opts, retry.Policy{InitialInterval: time.Millisecond})
}

const searchResponse = `{
  "id": "resp_1",
  "object": "response",
  "created_at": 1,
  "status": "completed",
  "model": "gpt-4.1-mini",
  "output": [
    {"type": "web_search_call", "id": "ws_1", "status": "completed"},
    {"type": "message", "id": "msg_1", "role": "assistant", "status": "completed",
     "content": [{"type": "output_text", "text": "- Rates are 4.5%", "annotations": []}]}
  ]
}`

func TestSearch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/responses" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var body struct {
			Model           string `json:"model"`
			Instructions    string `json:"instructions"`
			Input           string `json:"input"`
			MaxOutputTokens int    `json:"max_output_tokens"`
			Tools           []struct {
				Type string `json:"type"`
			} `json:"tools"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Input != "current mortgage rates?" || body.Instructions != "You are SofiBot" {
			t.Errorf("unexpected request body: %+v", body)
		}
		if len(body.Tools) != 1 || body.Tools[0].Type != "web_search_preview" {
			t.Errorf("unexpected tools: %+v", body.Tools)
		}
		if body.MaxOutputTokens != 300 {
			t.Errorf("max_output_tokens = %d", body.MaxOutputTokens)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(searchResponse))
	})

	items, err := client.Search(context.Background(), "current mortgage rates?")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 output items, got %d", len(items))
	}
	if got := fallback.ExtractText(items); got != "- Rates are 4.5%\n" {
		t.Errorf("unexpected extracted text %q", got)
	}
}

func TestSearch_NoOutput(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"resp_2","object":"response","status":"completed","output":[]}`))
	})

	items, err := client.Search(context.Background(), "q")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected no items, got %d", len(items))
	}
}

func TestSearch_ClientError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	})

	if _, err := client.Search(context.Background(), "q"); err == nil {
		t.Fatal("expected an error")
	}
}
