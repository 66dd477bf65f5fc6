package adapter

import (
	"fmt"

	"github.com/akolanti/FinBot/internal/api"
	"github.com/akolanti/FinBot/internal/domain/commonModels"
	"github.com/akolanti/FinBot/internal/domain/jobModel"
)

func ToInitJobResponse(id string) api.InitJobResponse {
	return api.InitJobResponse{
		Id:        id,
		StatusURL: fmt.Sprintf("/status/%s", id),
	}
}

func ToAPIResponse(job jobModel.Job) api.JobResponse {
	var errorPtr *api.JobOutgoingError
	if job.Error.Message != "" || job.Error.Code != 0 {
		errorPtr = &api.JobOutgoingError{
			Code:    job.Error.Code,
			Message: job.Error.Message,
			Retry:   job.Error.Retry,
		}
	}

	return api.JobResponse{
		Id:          job.Id,
		Status:      string(job.Status),
		CurrentStep: string(job.CurrentStep),
		Result:      toIngestResult(job),
		Error:       errorPtr,
		StartTime:   job.CreatedTime,
		EndTime:     job.EndTime,
	}
}

// toIngestResult is only set once the job has finished successfully.
func toIngestResult(job jobModel.Job) *api.IngestResult {
	if job.Status != jobModel.JobStatusComplete {
		return nil
	}
	return &api.IngestResult{
		DocumentName:  job.JobPayload.IngestFileName,
		ChunksAdded:   job.JobPayload.ChunksAdded,
		ChunksSkipped: job.JobPayload.ChunksSkipped,
	}
}

// ToChatResponse never returns a nil source list; clients expect an array.
func ToChatResponse(answer commonModels.Answer) api.ChatResponse {
	sources := answer.Sources
	if sources == nil {
		sources = []string{}
	}
	return api.ChatResponse{
		Answer:  answer.Text,
		Sources: sources,
	}
}

func ToErrorResponse(code int, message string, traceId string) api.ErrorResponse {
	return api.ErrorResponse{
		Code:    code,
		Message: message,
		TraceId: traceId,
	}
}
