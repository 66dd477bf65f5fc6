package qdrantDB

import (
	"context"
	"fmt"
	"time"

	"github.com/akolanti/FinBot/internal/domain/commonModels"
	"github.com/akolanti/FinBot/pkg/logger_i"
	"github.com/qdrant/go-client/qdrant"
)

// Cache keeps answers of past questions keyed by the question vector.
type Cache struct {
	client     *qdrant.Client
	collection string
	dimension  uint64
	cutoff     float32
	logger     *logger_i.Logger
}

func NewCache(client *qdrant.Client, collection string, dimension int, cutoff float32) *Cache {
	return &Cache{
		client:     client,
		collection: collection,
		dimension:  uint64(dimension),
		cutoff:     cutoff,
		logger:     logger_i.NewLogger("Semantic Cache"),
	}
}

func (c *Cache) Init(ctx context.Context) error {
	if err := createCollection(ctx, c.client, c.collection, c.dimension); err != nil {
		return fmt.Errorf("semantic cache collection creation failed: %w", err)
	}
	return nil
}

// GetCachedAnswer only reports a hit at or above the similarity cutoff.
func (c *Cache) GetCachedAnswer(ctx context.Context, queryVector []float32) (commonModels.Answer, bool, error) {
	log := c.logger.WithTrace(ctx)

	searchResult, err := c.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: c.collection,
		Query:          qdrant.NewQuery(queryVector...),
		Limit:          qdrant.PtrOf(uint64(1)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		log.Error("Cache query failed", "error", err)
		return commonModels.Answer{}, false, err
	}
	if len(searchResult) == 0 || searchResult[0].Score < c.cutoff {
		return commonModels.Answer{}, false, nil
	}

	log.Debug("cache hit", "score", searchResult[0].Score)
	return answerFromPayload(searchResult[0].Payload), true, nil
}

func (c *Cache) SaveToCache(ctx context.Context, id string, vector []float32, answer commonModels.Answer) error {
	log := c.logger.WithTrace(ctx)

	_, err := c.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: c.collection,
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewID(id),
				Vectors: qdrant.NewVectors(vector...),
				Payload: qdrant.NewValueMap(answerPayload(answer)),
			},
		},
	})
	if err != nil {
		log.Error("Saving answer to cache failed", "error", err)
	}
	return err
}

// ResetCache drops every cached answer. Called after the corpus changes.
func (c *Cache) ResetCache(ctx context.Context) error {
	if err := c.client.DeleteCollection(ctx, c.collection); err != nil {
		return fmt.Errorf("dropping semantic cache: %w", err)
	}
	return c.Init(ctx)
}

func answerPayload(answer commonModels.Answer) map[string]any {
	sources := make([]any, len(answer.Sources))
	for i, s := range answer.Sources {
		sources[i] = s
	}
	return map[string]any{
		"answer":    answer.Text,
		"sources":   sources,
		"path":      string(answer.Path),
		"timestamp": time.Now().Unix(),
	}
}

func answerFromPayload(p map[string]*qdrant.Value) commonModels.Answer {
	values := p["sources"].GetListValue().GetValues()
	sources := make([]string, 0, len(values))
	for _, v := range values {
		sources = append(sources, v.GetStringValue())
	}
	return commonModels.Answer{
		Text:    p["answer"].GetStringValue(),
		Sources: sources,
		Path:    commonModels.AnswerPath(p["path"].GetStringValue()),
	}
}
