package googleSearch

import (
	"context"

	"github.com/akolanti/FinBot/internal/rag/fallback"
	"github.com/akolanti/FinBot/internal/rag/retry"
	"github.com/akolanti/FinBot/pkg/logger_i"
	"google.golang.org/genai"
)

type Options struct {
	Model           string
	Instructions    string
	Temperature     float64
	TopP            float64
	MaxOutputTokens int64
}

// Client grounds a Gemini call with the Google Search tool.
type Client struct {
	client *genai.Client
	opts   Options
	policy retry.Policy
	logger *logger_i.Logger
}

func New(client *genai.Client, opts Options, policy retry.Policy) *Client {
	return &Client{
		client: client,
		opts:   opts,
		policy: policy,
		logger: logger_i.NewLogger("google_search"),
	}
}

func (c *Client) Search(ctx context.Context, question string) ([]fallback.OutputItem, error) {
	log := c.logger.WithTrace(ctx)

	contentConfig := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(c.opts.Instructions, genai.RoleUser),
		Tools:             []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
		Temperature:       genai.Ptr(float32(c.opts.Temperature)),
		TopP:              genai.Ptr(float32(c.opts.TopP)),
		MaxOutputTokens:   int32(c.opts.MaxOutputTokens),
	}

	result, err := retry.Call(ctx, c.policy, "google_search", retry.IsTransientGoogle,
		func(ctx context.Context) (*genai.GenerateContentResponse, error) {
			return c.client.Models.GenerateContent(ctx, c.opts.Model, genai.Text(question), contentConfig)
		})
	if err != nil {
		log.Error("google search failed", "error", err)
		return nil, err
	}

	items := toOutputItems(result)
	log.Debug("google search answered", "items", len(items))
	return items, nil
}

// toOutputItems maps each candidate to a message item. Thought parts are dropped.
func toOutputItems(result *genai.GenerateContentResponse) []fallback.OutputItem {
	if result == nil {
		return nil
	}
	var items []fallback.OutputItem
	for _, cand := range result.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		item := fallback.OutputItem{Type: fallback.ItemTypeMessage}
		for _, part := range cand.Content.Parts {
			if part == nil || part.Thought || part.Text == "" {
				continue
			}
			item.Content = append(item.Content, fallback.ContentPart{Type: fallback.PartTypeOutputText, Text: part.Text})
		}
		items = append(items, item)
	}
	return items
}
