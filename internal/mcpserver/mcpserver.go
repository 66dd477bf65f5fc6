package mcpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/akolanti/FinBot/internal/rag"
	"github.com/akolanti/FinBot/pkg/logger_i"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	serverName    = "finbot"
	serverVersion = "1.0.0"
	askToolName   = "ask_question"
)

type AskQuestionInput struct {
	Question string `json:"question" jsonschema:"A financial question, e.g. what a Roth IRA is or how much interest a loan accrues"`
}

type AskQuestionOutput struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

// New exposes the question pipeline as an MCP server with a single tool.
func New(ragService rag.Service) *mcp.Server {
	log := logger_i.NewLogger("MCP")
	server := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        askToolName,
			Description: "Answer a financial question from the indexed documents, falling back to a web search when they do not cover it.",
		},
		askQuestion(ragService, log),
	)
	return server
}

func askQuestion(ragService rag.Service, log *logger_i.Logger) mcp.ToolHandlerFor[AskQuestionInput, AskQuestionOutput] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input AskQuestionInput) (*mcp.CallToolResult, AskQuestionOutput, error) {
		answer, err := ragService.Answer(ctx, input.Question)
		if err != nil {
			log.WithTrace(ctx).Warn("ask_question failed", "error", err)
			return nil, AskQuestionOutput{}, err
		}

		sources := answer.Sources
		if sources == nil {
			sources = []string{}
		}
		return nil, AskQuestionOutput{Answer: answer.Text, Sources: sources}, nil
	}
}

// HTTPHandler serves the tool over streamable HTTP. The standalone SSE stream
// (GET) is exempt from the server write timeout.
func HTTPHandler(server *mcp.Server) http.Handler {
	streamable := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, &mcp.StreamableHTTPOptions{JSONResponse: true})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})
		}
		streamable.ServeHTTP(w, r)
	})
}

// RunStdio serves the tool on stdin/stdout until ctx is done or the client leaves.
func RunStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}
