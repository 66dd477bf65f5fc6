package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/akolanti/FinBot/internal/adapter"
	"github.com/akolanti/FinBot/internal/config"
	"github.com/akolanti/FinBot/internal/rag"
	"github.com/akolanti/FinBot/pkg/logger_i"
)

func writeJsonResponse(w http.ResponseWriter, statusCode int, data interface{}, log *logger_i.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// the status line is already out
		log.Error("Error encoding response", "error", err)
	}
}

func validateContext(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	default:
		return true
	}
}

// WriteErrorResponse writes the error body with the request's trace id.
func (h *Handler) WriteErrorResponse(w http.ResponseWriter, r *http.Request, httpCode int, message string) {
	traceId, _ := r.Context().Value(config.TraceIDKey).(string)
	writeJsonResponse(w, httpCode, adapter.ToErrorResponse(httpCode, message, traceId), h.logger)
}

// StatusFor maps a pipeline error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, rag.ErrEmptyQuestion):
		return http.StatusBadRequest
	case errors.Is(err, rag.ErrIndexNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, rag.ErrEmbeddingFailure),
		errors.Is(err, rag.ErrVectorSearchFailure),
		errors.Is(err, rag.ErrGenerationFailure),
		errors.Is(err, rag.ErrWebSearchFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func getTargetDirectory(dir string) (string, error) {
	targetDir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(targetDir, 0750); err != nil {
		return "", err
	}
	return targetDir, nil
}

func saveUpload(path string, src io.Reader) error {
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		_ = os.Remove(path)
		return err
	}
	return dst.Close()
}
