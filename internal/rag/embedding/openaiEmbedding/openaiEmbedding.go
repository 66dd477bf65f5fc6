package openaiEmbedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/akolanti/FinBot/internal/rag/retry"
	"github.com/akolanti/FinBot/pkg/logger_i"
	"github.com/openai/openai-go"
)

var errEmptyResponse = errors.New("openai returned no embeddings")

type Client struct {
	api        openai.Client
	model      string
	dimensions int
	policy     retry.Policy
	logger     *logger_i.Logger
}

func New(api openai.Client, model string, dimensions int, policy retry.Policy) *Client {
	return &Client{
		api:        api,
		model:      model,
		dimensions: dimensions,
		policy:     policy,
		logger:     logger_i.NewLogger("openai_embedding"),
	}
}

func (c *Client) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	vectors, err := c.BatchEmbedding(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// BatchEmbedding returns vectors in input order; the API may not.
func (c *Client) BatchEmbedding(ctx context.Context, chunks []string) ([][]float32, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	log := c.logger.WithTrace(ctx)

	params := openai.EmbeddingNewParams{
		Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: chunks},
		Model:          openai.EmbeddingModel(c.model),
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	}
	// only the v3 models accept a dimensions override
	if c.dimensions > 0 && strings.HasPrefix(c.model, "text-embedding-3") {
		params.Dimensions = openai.Int(int64(c.dimensions))
	}

	resp, err := retry.Call(ctx, c.policy, "openai_embedding", retry.IsTransientOpenAI,
		func(ctx context.Context) (*openai.CreateEmbeddingResponse, error) {
			return c.api.Embeddings.New(ctx, params)
		})
	if err != nil {
		log.Error("embedding request failed", "error", err, "inputs", len(chunks))
		return nil, err
	}
	if resp == nil || len(resp.Data) != len(chunks) {
		return nil, errEmptyResponse
	}

	out := make([][]float32, len(chunks))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(out) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		out[d.Index] = vec
	}
	log.Debug("embedded batch", "inputs", len(chunks))
	return out, nil
}
