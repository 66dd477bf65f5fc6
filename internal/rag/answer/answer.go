package answer

import (
	"strings"

	"github.com/akolanti/FinBot/internal/domain/commonModels"
)

// Clean trims every line, drops blank ones and joins the rest with single newlines.
func Clean(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// FromRetrieval cites the retrieved chunk texts, in rank order.
func FromRetrieval(text string, chunks []commonModels.RetrievedChunk) commonModels.Answer {
	sources := make([]string, 0, len(chunks))
	for _, c := range chunks {
		sources = append(sources, c.Chunk.Chunk)
	}
	return commonModels.Answer{
		Text:    Clean(text),
		Sources: sources,
		Path:    commonModels.PathRAGAnswered,
	}
}

// FromWebSearch cites only the search provider label.
func FromWebSearch(text string, label string) commonModels.Answer {
	return commonModels.Answer{
		Text:    Clean(text),
		Sources: []string{label},
		Path:    commonModels.PathWebFallback,
	}
}
