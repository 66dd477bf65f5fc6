package gemini

import (
	"context"

	"github.com/akolanti/FinBot/internal/rag/llm"
	"github.com/akolanti/FinBot/internal/rag/retry"
	"github.com/akolanti/FinBot/pkg/logger_i"
	"google.golang.org/genai"
)

type Client struct {
	client      *genai.Client
	modelName   string
	temperature float32
	policy      retry.Policy
	logger      *logger_i.Logger
}

func New(client *genai.Client, modelName string, temperature float64, policy retry.Policy) *Client {
	return &Client{
		client:      client,
		modelName:   modelName,
		temperature: float32(temperature),
		policy:      policy,
		logger:      logger_i.NewLogger("llm_gemini"),
	}
}

func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	log := c.logger.WithTrace(ctx)

	contentConfig := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(c.temperature),
	}

	result, err := retry.Call(ctx, c.policy, "gemini_generate", retry.IsTransientGoogle,
		func(ctx context.Context) (*genai.GenerateContentResponse, error) {
			return c.client.Models.GenerateContent(ctx, c.modelName, genai.Text(prompt), contentConfig)
		})
	if err != nil {
		log.Error("gemini generate failed", "error", err)
		return "", err
	}
	if result == nil {
		return "", llm.ErrEmptyCompletion
	}

	text := result.Text()
	if text == "" {
		return "", llm.ErrEmptyCompletion
	}
	log.Debug("gemini answered", "model", c.modelName)
	return text, nil
}
