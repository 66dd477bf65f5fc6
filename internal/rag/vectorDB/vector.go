package vectorDB

import (
	"context"
	"errors"
	"fmt"

	"github.com/akolanti/FinBot/internal/domain/commonModels"
)

var (
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrCountMismatch     = errors.New("chunk and vector counts differ")
)

// DataProcessor is the similarity index. It only grows: there is no delete path.
type DataProcessor interface {
	// Exists reports whether an index is already persisted at the configured location.
	Exists(ctx context.Context) (bool, error)
	// Create initialises a new empty index at the configured location.
	Create(ctx context.Context) error
	// UpsertBatch writes a batch atomically: either every pair is stored or none is.
	UpsertBatch(ctx context.Context, chunks []commonModels.DocChunk, vectors [][]float32) error
	Search(ctx context.Context, vector []float32, topK int) ([]commonModels.RetrievedChunk, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// AnswerCache stores answers keyed by question vector.
type AnswerCache interface {
	GetCachedAnswer(ctx context.Context, queryVector []float32) (commonModels.Answer, bool, error)
	SaveToCache(ctx context.Context, id string, vector []float32, answer commonModels.Answer) error
	ResetCache(ctx context.Context) error
}

// ValidateBatch checks the shape of a batch before it is written.
func ValidateBatch(chunks []commonModels.DocChunk, vectors [][]float32, dimension int) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("%w: %d chunks, %d vectors", ErrCountMismatch, len(chunks), len(vectors))
	}
	for _, v := range vectors {
		if len(v) == 0 || (dimension > 0 && len(v) != dimension) {
			return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(v), dimension)
		}
	}
	return nil
}
