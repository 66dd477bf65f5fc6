package openaiLLM

import (
	"context"

	"github.com/akolanti/FinBot/internal/rag/llm"
	"github.com/akolanti/FinBot/internal/rag/retry"
	"github.com/akolanti/FinBot/pkg/logger_i"
	"github.com/openai/openai-go"
)

type Client struct {
	api         openai.Client
	model       string
	temperature float64
	policy      retry.Policy
	logger      *logger_i.Logger
}

func New(api openai.Client, model string, temperature float64, policy retry.Policy) *Client {
	return &Client{
		api:         api,
		model:       model,
		temperature: temperature,
		policy:      policy,
		logger:      logger_i.NewLogger("llm_openai"),
	}
}

// Generate sends the prompt as a single user message.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	log := c.logger.WithTrace(ctx)

	params := openai.ChatCompletionNewParams{
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		Model:       openai.ChatModel(c.model),
		Temperature: openai.Float(c.temperature),
	}

	resp, err := retry.Call(ctx, c.policy, "openai_chat", retry.IsTransientOpenAI,
		func(ctx context.Context) (*openai.ChatCompletion, error) {
			return c.api.Chat.Completions.New(ctx, params)
		})
	if err != nil {
		log.Error("chat completion failed", "error", err)
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", llm.ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}
