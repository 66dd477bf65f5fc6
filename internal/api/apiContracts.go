package api

import "time"

type JobResponse struct {
	Id          string            `json:"id" example:"0b1c2d3e-4f50-4617-8293-a4b5c6d7e8f9"`
	Status      string            `json:"status" example:"COMPLETE"`
	CurrentStep string            `json:"current_step" example:"Complete"`
	Result      *IngestResult     `json:"result,omitempty"`
	Error       *JobOutgoingError `json:"error,omitempty"`
	StartTime   time.Time         `json:"start_time"`
	EndTime     time.Time         `json:"end_time,omitempty"`
}

type IngestResult struct {
	DocumentName  string `json:"document_name" example:"sofi_top_products.pdf"`
	ChunksAdded   int    `json:"chunks_added" example:"42"`
	ChunksSkipped int    `json:"chunks_skipped" example:"0"`
}

type JobOutgoingError struct {
	Code    int    `json:"code" example:"422"`
	Message string `json:"message" example:"unsupported document type"`
	Retry   bool   `json:"can_retry" example:"false"`
}

type InitJobResponse struct {
	Id        string `json:"id"`
	StatusURL string `json:"status_url"`
}

// ChatResponse is the uniform answer shape for both answer paths.
type ChatResponse struct {
	Answer  string   `json:"answer" example:"An IRA is an individual retirement account."`
	Sources []string `json:"sources"`
}

type ErrorResponse struct {
	Code    int    `json:"code" example:"503"`
	Message string `json:"message" example:"index is not ready"`
	TraceId string `json:"trace_id,omitempty"`
}

type HealthResponse struct {
	Status string `json:"status" example:"ok"`
}

// requests---------------------

type ChatRequest struct {
	Question string `json:"question" validate:"required" example:"What is a Roth IRA?"`
}
