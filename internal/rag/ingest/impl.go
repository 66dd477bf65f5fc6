package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/akolanti/FinBot/internal/domain/commonModels"
	"github.com/akolanti/FinBot/internal/metrics"
	"github.com/akolanti/FinBot/internal/rag/embedding"
	"github.com/akolanti/FinBot/internal/rag/vectorDB"
	"github.com/akolanti/FinBot/pkg/logger_i"
	"github.com/google/uuid"
)

var chunkNamespace = uuid.MustParse("b5e0c7d2-41a9-4f6e-8c3b-7d92e1a6f054")

func getDocType(docPath string) commonModels.DocType {
	ext := strings.ToLower(filepath.Ext(docPath))
	switch ext {
	case ".pdf":
		return commonModels.PDF
	case ".txt", ".md":
		return commonModels.TXT
	case ".docx", ".rtf", ".odt":
		return commonModels.DOCX
	default:
		return commonModels.ERR
	}
}

func extractText(path string, contentType commonModels.DocType, log *logger_i.Logger) ([]rawPage, error) {
	switch contentType {
	case commonModels.PDF:
		return extractPDF(path, log)
	case commonModels.TXT, commonModels.DOCX:
		return extractPlain(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}
}

// ChunkID is stable for the same document page, position and text, so
// re-indexing a page overwrites instead of duplicating.
func ChunkID(doc commonModels.Document, order int, text string) string {
	key := fmt.Sprintf("%s|%d|%d|%s", doc.Name, doc.Page, order, text)
	return uuid.NewSHA1(chunkNamespace, []byte(key)).String()
}

// PrepareChunks splits each document on its own; chunks never span two pages.
func PrepareChunks(docs []commonModels.Document, splitter *Splitter, embeddingModel string) []commonModels.DocChunk {
	var allChunks []commonModels.DocChunk

	for _, doc := range docs {
		for i, text := range splitter.SplitText(doc.Text) {
			allChunks = append(allChunks, commonModels.DocChunk{
				Doc:            doc,
				ChunkId:        ChunkID(doc, i, text),
				Chunk:          text,
				PageNum:        doc.Page,
				ChunkPageOrder: i,
				EmbeddingModel: embeddingModel,
			})
		}
	}

	return allChunks
}

// BatchIngest embeds and stores chunks batch by batch. A batch is written only
// once all of its vectors are in hand, so a failed embedding call drops the
// whole batch. It returns the number of chunks committed before any error.
func BatchIngest(ctx context.Context, chunks []commonModels.DocChunk, store vectorDB.DataProcessor, embedder embedding.Embedder, batchSize int, dimension int) (int, error) {
	log := logger_i.NewLogger("Batch Ingestion").WithTrace(ctx)
	if batchSize <= 0 {
		batchSize = len(chunks)
	}

	committed := 0
	for i := 0; i < len(chunks); i += batchSize {
		if err := ctx.Err(); err != nil {
			return committed, err
		}
		end := min(i+batchSize, len(chunks))
		currentBatch := chunks[i:end]

		texts := make([]string, len(currentBatch))
		for j, c := range currentBatch {
			texts[j] = c.Chunk
		}

		log.Debug("embedding batch", "from", i, "size", len(texts))
		start := time.Now()
		vectors, err := embedder.BatchEmbedding(ctx, texts)
		metrics.CaptureExecutionMetrics("embedding_batch", time.Since(start))
		if err != nil {
			return committed, fmt.Errorf("embedding batch %d failed: %w", i/batchSize, err)
		}
		if err := vectorDB.ValidateBatch(currentBatch, vectors, dimension); err != nil {
			return committed, fmt.Errorf("embedding batch %d rejected: %w", i/batchSize, err)
		}

		start = time.Now()
		err = store.UpsertBatch(ctx, currentBatch, vectors)
		metrics.CaptureExecutionMetrics("index_write", time.Since(start))
		if err != nil {
			return committed, fmt.Errorf("writing batch %d failed: %w", i/batchSize, err)
		}
		committed += len(currentBatch)
		metrics.AddIndexedChunks(len(currentBatch))
	}

	return committed, nil
}
