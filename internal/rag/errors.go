package rag

import "errors"

var (
	ErrEmptyQuestion       = errors.New("question is empty")
	ErrIndexNotReady       = errors.New("index is not ready")
	ErrEmptyCorpus         = errors.New("no chunks to index")
	ErrEmbeddingFailure    = errors.New("embedding service failed")
	ErrVectorSearchFailure = errors.New("vector search failed")
	ErrGenerationFailure   = errors.New("generation service failed")
	ErrWebSearchFailure    = errors.New("web search failed")
)
