package openaiSearch

import (
	"context"

	"github.com/akolanti/FinBot/internal/rag/fallback"
	"github.com/akolanti/FinBot/internal/rag/retry"
	"github.com/akolanti/FinBot/pkg/logger_i"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
)

type Options struct {
	Model           string
	Instructions    string
	Temperature     float64
	TopP            float64
	MaxOutputTokens int64
}

// Client calls the Responses API with the web_search_preview tool.
type Client struct {
	api    openai.Client
	opts   Options
	policy retry.Policy
	logger *logger_i.Logger
}

func New(api openai.Client, opts Options, policy retry.Policy) *Client {
	return &Client{
		api:    api,
		opts:   opts,
		policy: policy,
		logger: logger_i.NewLogger("openai_web_search"),
	}
}

func (c *Client) Search(ctx context.Context, question string) ([]fallback.OutputItem, error) {
	log := c.logger.WithTrace(ctx)

	params := responses.ResponseNewParams{
		Model:        shared.ResponsesModel(c.opts.Model),
		Instructions: openai.String(c.opts.Instructions),
		Input:        responses.ResponseNewParamsInputUnion{OfString: openai.String(question)},
		Tools: []responses.ToolUnionParam{{
			OfWebSearchPreview: &responses.WebSearchToolParam{Type: responses.WebSearchToolTypeWebSearchPreview},
		}},
		Temperature: openai.Float(c.opts.Temperature),
		TopP:        openai.Float(c.opts.TopP),
	}
	if c.opts.MaxOutputTokens > 0 {
		params.MaxOutputTokens = openai.Int(c.opts.MaxOutputTokens)
	}

	resp, err := retry.Call(ctx, c.policy, "openai_web_search", retry.IsTransientOpenAI,
		func(ctx context.Context) (*responses.Response, error) {
			return c.api.Responses.New(ctx, params)
		})
	if err != nil {
		log.Error("web search failed", "error", err)
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}

	items := make([]fallback.OutputItem, 0, len(resp.Output))
	for _, out := range resp.Output {
		item := fallback.OutputItem{Type: out.Type}
		for _, part := range out.Content {
			item.Content = append(item.Content, fallback.ContentPart{Type: part.Type, Text: part.Text})
		}
		items = append(items, item)
	}
	log.Debug("web search answered", "items", len(items))
	return items, nil
}
