package commonModels

import "time"

// Document is one loaded page of a source file. Immutable once loaded.
type Document struct {
	Id                  string    `json:"source_doc_id"`
	Name                string    `json:"doc_name"`
	Source              string    `json:"source"`
	Page                int       `json:"page"`
	Text                string    `json:"-"`
	ContentType         DocType   `json:"content_type"`
	LastIngestTimestamp time.Time `json:"ingested_at"`
}

type DocChunk struct {
	Doc            Document
	ChunkId        string `json:"chunk_id"`
	Chunk          string `json:"content"`
	PageNum        int    `json:"page_num"`
	ChunkPageOrder int    `json:"chunk_order"`
	EmbeddingModel string `json:"embedding_model"`
}

// RetrievedChunk is a search hit; Score is the cosine similarity.
type RetrievedChunk struct {
	Chunk DocChunk
	Score float32
}

type AnswerPath string

const (
	PathRAGAnswered AnswerPath = "RAG_ANSWERED"
	PathWebFallback AnswerPath = "WEB_FALLBACK"
)

// Answer is the uniform result of one question.
type Answer struct {
	Text    string     `json:"answer"`
	Sources []string   `json:"sources"`
	Path    AnswerPath `json:"-"`
}

type DocType string

const (
	PDF  DocType = "PDF"
	DOCX DocType = "DOCX"
	TXT  DocType = "TXT"
	ERR  DocType = "ERROR"
)
