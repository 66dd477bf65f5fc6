package googleEmbedding

import (
	"context"
	"fmt"

	"github.com/akolanti/FinBot/internal/rag/retry"
	"github.com/akolanti/FinBot/pkg/logger_i"
	"google.golang.org/genai"
)

const (
	taskQuery    = "RETRIEVAL_QUERY"
	taskDocument = "RETRIEVAL_DOCUMENT"
)

type Client struct {
	genAi     *genai.Client
	model     string
	dimension int32
	policy    retry.Policy
	logger    *logger_i.Logger
}

func New(genAi *genai.Client, modelName string, dimension int, policy retry.Policy) *Client {
	return &Client{
		genAi:     genAi,
		model:     modelName,
		dimension: int32(dimension),
		policy:    policy,
		logger:    logger_i.NewLogger("google_embedding"),
	}
}

func (c *Client) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	vectors, err := c.embed(ctx, []string{query}, taskQuery)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (c *Client) BatchEmbedding(ctx context.Context, chunks []string) ([][]float32, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	return c.embed(ctx, chunks, taskDocument)
}

func (c *Client) embed(ctx context.Context, chunks []string, taskType string) ([][]float32, error) {
	log := c.logger.WithTrace(ctx)

	conf := &genai.EmbedContentConfig{TaskType: taskType}
	if c.dimension > 0 {
		conf.OutputDimensionality = &c.dimension
	}

	result, err := retry.Call(ctx, c.policy, "google_embedding", retry.IsTransientGoogle,
		func(ctx context.Context) (*genai.EmbedContentResponse, error) {
			return c.genAi.Models.EmbedContent(ctx, c.model, getContent(chunks), conf)
		})
	if err != nil {
		log.Error("embedding request failed", "error", err, "inputs", len(chunks))
		return nil, err
	}
	if result == nil || len(result.Embeddings) != len(chunks) {
		return nil, fmt.Errorf("google returned %d embeddings for %d inputs", embeddingCount(result), len(chunks))
	}

	out := make([][]float32, len(result.Embeddings))
	for i, e := range result.Embeddings {
		if e == nil || len(e.Values) == 0 {
			return nil, fmt.Errorf("empty embedding at position %d", i)
		}
		out[i] = e.Values
	}
	return out, nil
}

func getContent(chunks []string) []*genai.Content {
	contentsToSend := make([]*genai.Content, 0, len(chunks))
	for _, chunk := range chunks {
		contentsToSend = append(contentsToSend, &genai.Content{
			Parts: []*genai.Part{{Text: chunk}},
		})
	}
	return contentsToSend
}

func embeddingCount(r *genai.EmbedContentResponse) int {
	if r == nil {
		return 0
	}
	return len(r.Embeddings)
}
