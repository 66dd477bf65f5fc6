package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/akolanti/FinBot/internal/config"
	"github.com/akolanti/FinBot/internal/domain/commonModels"
	"github.com/akolanti/FinBot/pkg/logger_i"
	"github.com/google/uuid"
)

var (
	ErrRequiredSource  = errors.New("required source could not be loaded")
	ErrUnsupportedType = errors.New("unsupported document type")
	ErrNoText          = errors.New("document has no extractable text")
)

var documentNamespace = uuid.MustParse("6f1c2a0e-8d9b-4c35-9a57-2f0e6b8d4c11")

type rawPage struct {
	Number  int    `json:"number"`
	Content string `json:"content"`
}

// LoadSources reads every configured source. Optional sources that cannot be
// read are logged and skipped; a required one aborts the load.
func LoadSources(ctx context.Context, sources []config.Source) ([]commonModels.Document, error) {
	log := logger_i.NewLogger("Document Ingestion").WithTrace(ctx)

	var docs []commonModels.Document
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		loaded, err := LoadFile(ctx, src.Path, filepath.Base(src.Path))
		if err != nil {
			if src.Required {
				log.Error("required source failed", "path", src.Path, "error", err)
				return nil, fmt.Errorf("%w: %s: %w", ErrRequiredSource, src.Path, err)
			}
			log.Warn("optional source skipped", "path", src.Path, "error", err)
			continue
		}

		log.Info("source loaded", "path", src.Path, "pages", len(loaded))
		docs = append(docs, loaded...)
	}
	return docs, nil
}

// LoadFile extracts one Document per non-empty page. name is the stable display
// name used for ids and the ingest registry.
func LoadFile(ctx context.Context, path string, name string) ([]commonModels.Document, error) {
	log := logger_i.NewLogger("Document Ingestion").WithTrace(ctx)

	docType := getDocType(path)
	if docType == commonModels.ERR {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, filepath.Ext(path))
	}
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	log.Debug("extracting document", "path", path, "type", docType)
	pages, err := extractText(path, docType, log)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	id := uuid.NewSHA1(documentNamespace, []byte(name)).String()

	docs := make([]commonModels.Document, 0, len(pages))
	for _, p := range pages {
		if strings.TrimSpace(p.Content) == "" {
			continue
		}
		docs = append(docs, commonModels.Document{
			Id:                  id,
			Name:                name,
			Source:              path,
			Page:                p.Number,
			Text:                p.Content,
			ContentType:         docType,
			LastIngestTimestamp: now,
		})
	}
	if len(docs) == 0 {
		return nil, ErrNoText
	}
	return docs, nil
}
