package retry

import (
	"errors"

	"github.com/openai/openai-go"
	"google.golang.org/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// IsTransientOpenAI retries rate limits, server errors and network failures.
func IsTransientOpenAI(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return IsTransientStatus(apiErr.StatusCode)
	}
	return IsTransientNetwork(err)
}

// IsTransientGoogle handles both the REST and gRPC shapes of Gemini errors.
func IsTransientGoogle(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return IsTransientStatus(apiErr.Code)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return IsTransientStatus(apiErrPtr.Code)
	}
	return IsTransientGRPC(err)
}

// IsTransientGRPC retries Unavailable and ResourceExhausted.
func IsTransientGRPC(err error) bool {
	if s, ok := status.FromError(err); ok && s.Code() != codes.Unknown {
		return s.Code() == codes.Unavailable || s.Code() == codes.ResourceExhausted
	}
	return IsTransientNetwork(err)
}
