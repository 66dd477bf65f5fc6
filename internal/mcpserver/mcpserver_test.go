package mcpserver

import (
	"context"
	"strings"
	"testing"

	"github.com/akolanti/FinBot/internal/domain/commonModels"
	"github.com/akolanti/FinBot/internal/domain/jobModel"
	"github.com/akolanti/FinBot/internal/rag"
	"github.com/akolanti/FinBot/pkg/logger_i"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type stubRag struct {
	answer commonModels.Answer
	err    error
	asked  string
}

func (s *stubRag) Answer(ctx context.Context, q string) (commonModels.Answer, error) {
	s.asked = q
	return s.answer, s.err
}

func (s *stubRag) BuildIndex(ctx context.Context, docs []commonModels.Document) (rag.IndexStats, error) {
	return rag.IndexStats{}, nil
}

func (s *stubRag) IngestDocument(ctx context.Context, j jobModel.Job) jobModel.Job { return j }

func (s *stubRag) Ready() bool { return true }

func connect(t *testing.T, r rag.Service) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	if _, err := New(r).Connect(ctx, serverTransport, nil); err != nil {
		t.Fatalf("server connect: %v", err)
	}
	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func TestAskQuestion(t *testing.T) {
	r := &stubRag{answer: commonModels.Answer{Text: "A Roth IRA is funded with after-tax money.", Sources: []string{"chunk one"}}}
	session := connect(t, r)

	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      askToolName,
		Arguments: map[string]any{"question": "What is a Roth IRA?"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %+v", res.Content)
	}
	if r.asked != "What is a Roth IRA?" {
		t.Errorf("question not forwarded, got %q", r.asked)
	}

	text, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", res.Content[0])
	}
	if !strings.Contains(text.Text, "after-tax") || !strings.Contains(text.Text, "chunk one") {
		t.Errorf("unexpected content %q", text.Text)
	}
}

func TestAskQuestion_Error(t *testing.T) {
	session := connect(t, &stubRag{err: rag.ErrIndexNotReady})

	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      askToolName,
		Arguments: map[string]any{"question": "q"},
	})
	if err != nil {
		t.Fatalf("tool errors should come back in the result, got %v", err)
	}
	if !res.IsError {
		t.Error("expected IsError")
	}
}

func TestAskQuestion_NilSourcesBecomeEmpty(t *testing.T) {
	handler := askQuestion(&stubRag{answer: commonModels.Answer{Text: "x"}}, logger_i.NewLogger("test"))
	_, out, err := handler(context.Background(), nil, AskQuestionInput{Question: "q"})
	if err != nil {
		t.Fatal(err)
	}
	if out.Sources == nil {
		t.Error("sources should be an empty list")
	}
}
