package qdrantDB

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/akolanti/FinBot/internal/config"
	"github.com/akolanti/FinBot/internal/domain/commonModels"
	"github.com/akolanti/FinBot/internal/rag/retry"
	"github.com/akolanti/FinBot/internal/rag/vectorDB"
	"github.com/akolanti/FinBot/pkg/logger_i"
	"github.com/qdrant/go-client/qdrant"
)

// NewClient dials the Qdrant gRPC endpoint.
func NewClient(cfg config.QdrantConfig) (*qdrant.Client, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		APIKey:   cfg.APIKey,
		UseTLS:   cfg.UseTLS,
		PoolSize: uint(cfg.PoolSize),
	})
	if err != nil {
		return nil, fmt.Errorf("could not instantiate qdrant client: %w", err)
	}
	return client, nil
}

// Store is the Qdrant-backed index. One collection holds one corpus.
type Store struct {
	client     *qdrant.Client
	collection string
	dimension  uint64
	policy     retry.Policy
	logger     *logger_i.Logger
}

func New(client *qdrant.Client, collection string, dimension int, policy retry.Policy) *Store {
	return &Store{
		client:     client,
		collection: collection,
		dimension:  uint64(dimension),
		policy:     policy,
		logger:     logger_i.NewLogger("Qdrant"),
	}
}

func (db *Store) Exists(ctx context.Context) (bool, error) {
	return retry.Call(ctx, db.policy, "qdrant_exists", retry.IsTransientGRPC,
		func(ctx context.Context) (bool, error) {
			return db.client.CollectionExists(ctx, db.collection)
		})
}

func (db *Store) Create(ctx context.Context) error {
	return createCollection(ctx, db.client, db.collection, db.dimension)
}

func (db *Store) Search(ctx context.Context, vector []float32, topK int) ([]commonModels.RetrievedChunk, error) {
	log := db.logger.WithTrace(ctx)
	if len(vector) != int(db.dimension) {
		return nil, fmt.Errorf("%w: got %d, want %d", vectorDB.ErrDimensionMismatch, len(vector), db.dimension)
	}

	result, err := retry.Call(ctx, db.policy, "qdrant_query", retry.IsTransientGRPC,
		func(ctx context.Context) ([]*qdrant.ScoredPoint, error) {
			return db.client.Query(ctx, &qdrant.QueryPoints{
				CollectionName: db.collection,
				Query:          qdrant.NewQuery(vector...),
				Limit:          qdrant.PtrOf(uint64(topK)),
				WithPayload:    qdrant.NewWithPayload(true),
			})
		})
	if err != nil {
		log.Error("Error querying Qdrant", "error", err)
		return nil, err
	}

	matches := make([]commonModels.RetrievedChunk, 0, len(result))
	for _, hit := range result {
		matches = append(matches, commonModels.RetrievedChunk{
			Chunk: chunkFromPayload(hit.Payload),
			Score: hit.Score,
		})
	}
	log.Debug("Found matches", "count", len(matches))
	return matches, nil
}

// UpsertBatch waits for the write so a returned nil means the batch is durable.
func (db *Store) UpsertBatch(ctx context.Context, chunks []commonModels.DocChunk, vectors [][]float32) error {
	if err := vectorDB.ValidateBatch(chunks, vectors, int(db.dimension)); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, len(chunks))
	for i, chunk := range chunks {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(chunk.ChunkId),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(chunkPayload(chunk)),
		}
	}

	_, err := retry.Call(ctx, db.policy, "qdrant_upsert", retry.IsTransientGRPC,
		func(ctx context.Context) (*qdrant.UpdateResult, error) {
			return db.client.Upsert(ctx, &qdrant.UpsertPoints{
				CollectionName: db.collection,
				Points:         points,
				Wait:           qdrant.PtrOf(true),
			})
		})
	if err != nil {
		return fmt.Errorf("qdrant upsert failed: %w", err)
	}
	return nil
}

func (db *Store) Count(ctx context.Context) (int, error) {
	n, err := db.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: db.collection,
		Exact:          qdrant.PtrOf(true),
	})
	return int(n), err
}

func (db *Store) Close() error {
	db.logger.Info("Closing Qdrant")
	return db.client.Close()
}

func chunkPayload(chunk commonModels.DocChunk) map[string]any {
	return map[string]any{
		"content":         chunk.Chunk,
		"page_num":        chunk.PageNum,
		"source_doc_id":   chunk.Doc.Id,
		"doc_name":        chunk.Doc.Name,
		"source":          chunk.Doc.Source,
		"content_type":    string(chunk.Doc.ContentType),
		"chunk_order":     chunk.ChunkPageOrder,
		"chunk_id":        chunk.ChunkId,
		"embedding_model": chunk.EmbeddingModel,
		"ingested_at":     chunk.Doc.LastIngestTimestamp.Unix(),
	}
}

func chunkFromPayload(p map[string]*qdrant.Value) commonModels.DocChunk {
	page := int(p["page_num"].GetIntegerValue())
	return commonModels.DocChunk{
		Doc: commonModels.Document{
			Id:                  p["source_doc_id"].GetStringValue(),
			Name:                p["doc_name"].GetStringValue(),
			Source:              p["source"].GetStringValue(),
			Page:                page,
			ContentType:         commonModels.DocType(p["content_type"].GetStringValue()),
			LastIngestTimestamp: time.Unix(p["ingested_at"].GetIntegerValue(), 0),
		},
		ChunkId:        p["chunk_id"].GetStringValue(),
		Chunk:          p["content"].GetStringValue(),
		PageNum:        page,
		ChunkPageOrder: int(p["chunk_order"].GetIntegerValue()),
		EmbeddingModel: p["embedding_model"].GetStringValue(),
	}
}

func createCollection(ctx context.Context, client *qdrant.Client, collectionName string, dimension uint64) error {
	if collectionName == "" {
		return errors.New("empty collection name")
	}

	exists, err := client.CollectionExists(ctx, collectionName)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	return client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     dimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
}
