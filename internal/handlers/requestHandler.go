package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/akolanti/FinBot/internal/adapter"
	"github.com/akolanti/FinBot/internal/api"
	"github.com/akolanti/FinBot/internal/job"
	"github.com/akolanti/FinBot/internal/rag"
	"github.com/akolanti/FinBot/pkg/logger_i"
	"github.com/go-chi/chi/v5"
)

const maxUploadSize = 32 << 20 //32mb

// Handler serves the HTTP surface of the bot.
type Handler struct {
	rag       rag.Service
	jobs      *job.Service
	uploadDir string
	logger    *logger_i.Logger
}

func New(ragService rag.Service, jobService *job.Service, uploadDir string) *Handler {
	return &Handler{
		rag:       ragService,
		jobs:      jobService,
		uploadDir: uploadDir,
		logger:    logger_i.NewLogger("RequestHandler"),
	}
}

// Chat godoc
// @Summary      Ask a financial question
// @Description  Answers from the indexed documents, or from a web search when the documents do not cover the question.
// @Tags         Chat
// @Accept       json
// @Produce      json
// @Param        request  body      api.ChatRequest    true  "The question"
// @Success      200      {object}  api.ChatResponse   "Answer and its sources"
// @Failure      400      {object}  api.ErrorResponse  "Empty or malformed question"
// @Failure      502      {object}  api.ErrorResponse  "An upstream model or search call failed"
// @Failure      503      {object}  api.ErrorResponse  "Index is not ready"
// @Failure      504      {object}  api.ErrorResponse  "Request timed out"
// @Router       /chat [post]
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		h.logger.Warn("Invalid Context by request", "remote", r.RemoteAddr)
		return
	}
	log := h.logger.WithTrace(r.Context())

	var requestData api.ChatRequest
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			log.Error("Couldn't close the chat request body", "error", err)
		}
	}(r.Body)
	if err := json.NewDecoder(r.Body).Decode(&requestData); err != nil {
		log.Warn("Bad Chat Request", "error", err)
		h.WriteErrorResponse(w, r, http.StatusBadRequest, "Bad Request")
		return
	}
	if strings.TrimSpace(requestData.Question) == "" {
		h.WriteErrorResponse(w, r, http.StatusBadRequest, rag.ErrEmptyQuestion.Error())
		return
	}

	answer, err := h.rag.Answer(r.Context(), requestData.Question)
	if err != nil {
		code := StatusFor(err)
		log.Error("Answer failed", "status", code, "error", err)
		h.WriteErrorResponse(w, r, code, err.Error())
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToChatResponse(answer), log)
}

// GetStatus godoc
// @Summary      Get ingest job status
// @Description  Retrieves the current status of an ingest job using its ID.
// @Tags         Job Status
// @Produce      json
// @Param        id   path      string  true  "Job ID"
// @Success      200  {object}  api.JobResponse    "The current status of the job"
// @Failure      404  {object}  api.ErrorResponse  "Job not found"
// @Router       /status/{id} [get]
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	id := chi.URLParam(r, "id")
	if id == "" {
		h.WriteErrorResponse(w, r, http.StatusNotFound, "Job not found")
		return
	}

	result, isFound := h.jobs.GetJob(r.Context(), id)
	if !isFound {
		h.WriteErrorResponse(w, r, http.StatusNotFound, "Job not found")
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToAPIResponse(result), h.logger)
}

// PostIngest handles the uploading of documents for ingestion.
// @Summary      Upload a document for ingestion
// @Description  Receives a file via multipart/form-data, saves it to a temporary directory, and queues an ingestion job.
// @Tags         Ingestion
// @Accept       multipart/form-data
// @Produce      json
// @Param        document_name  formData  string  true  "The display name of the document"
// @Param        document       formData  file    true  "The PDF, DOCX or TXT file to upload"
// @Success      202  {object}  api.InitJobResponse  "Accepted - returns the job id"
// @Failure      400  {object}  api.ErrorResponse    "Bad Request - Missing fields or file too large"
// @Failure      500  {object}  api.ErrorResponse    "Internal Server Error - Storage or Write Error"
// @Failure      503  {object}  api.ErrorResponse    "Ingest queue is full"
// @Router       /ingest [post]
func (h *Handler) PostIngest(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	log := h.logger.WithTrace(r.Context())

	targetDir, err := getTargetDirectory(h.uploadDir)
	if err != nil {
		log.Error("Couldn't get target directory", "error", err)
		h.WriteErrorResponse(w, r, http.StatusInternalServerError, "Storage error")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		h.WriteErrorResponse(w, r, http.StatusBadRequest, "File too large or bad request")
		return
	}

	docName := r.FormValue("document_name")
	if docName == "" {
		h.WriteErrorResponse(w, r, http.StatusBadRequest, "document_name is required")
		return
	}

	fileReader, fileMetadata, err := r.FormFile("document")
	if err != nil {
		h.WriteErrorResponse(w, r, http.StatusBadRequest, "Could not retrieve file")
		return
	}
	defer fileReader.Close()

	// the extension picks the loader, so keep the uploaded one
	filename := fmt.Sprintf("%d-%s%s", time.Now().UnixNano(), filepath.Base(docName), filepath.Ext(fileMetadata.Filename))
	tempFilePath := filepath.Join(targetDir, filename)
	if err := saveUpload(tempFilePath, fileReader); err != nil {
		log.Error("Couldn't save upload", "error", err)
		h.WriteErrorResponse(w, r, http.StatusInternalServerError, "Write error")
		return
	}

	newJob, err := h.jobs.EnqueueIngest(r.Context(), docName, tempFilePath)
	if err != nil {
		_ = os.Remove(tempFilePath)
		code := http.StatusInternalServerError
		if errors.Is(err, job.ErrQueueFull) {
			code = http.StatusServiceUnavailable
		}
		log.Error("Couldn't queue ingest job", "error", err)
		h.WriteErrorResponse(w, r, code, err.Error())
		return
	}
	writeJsonResponse(w, http.StatusAccepted, adapter.ToInitJobResponse(newJob.Id), log)
}

// Health godoc
// @Summary      Liveness probe
// @Tags         Health
// @Produce      json
// @Success      200  {object}  api.HealthResponse
// @Router       /health [get]
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJsonResponse(w, http.StatusOK, api.HealthResponse{Status: "ok"}, h.logger)
}

// Ready godoc
// @Summary      Readiness probe
// @Description  Reports 200 once the index has been built or opened.
// @Tags         Health
// @Produce      json
// @Success      200  {object}  api.HealthResponse
// @Failure      503  {object}  api.ErrorResponse
// @Router       /ready [get]
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if !h.rag.Ready() {
		h.WriteErrorResponse(w, r, http.StatusServiceUnavailable, rag.ErrIndexNotReady.Error())
		return
	}
	writeJsonResponse(w, http.StatusOK, api.HealthResponse{Status: "ready"}, h.logger)
}
