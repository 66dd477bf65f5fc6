package middleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"

	"github.com/akolanti/FinBot/internal/adapter"
	"github.com/akolanti/FinBot/internal/config"
	"github.com/akolanti/FinBot/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type failureStruct struct {
	httpCode     int
	errorMessage string
}

func injectTrace(w http.ResponseWriter, req *http.Request) *http.Request {
	trace := req.Header.Get(TraceHeader)
	if trace == "" {
		trace = uuid.NewString()
	}
	w.Header().Set(TraceHeader, trace)
	ctx := context.WithValue(req.Context(), config.TraceIDKey, trace)
	return req.WithContext(ctx)
}

func (m *Middleware) rateLimiter(limiter *IPRateLimiter, req *http.Request) *failureStruct {
	ip, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		ip = req.RemoteAddr
	}

	if !limiter.Allow(ip) {
		m.logger.WithTrace(req.Context()).Warn("Rate limit exceeded", "ip", ip)
		return &failureStruct{
			httpCode:     http.StatusTooManyRequests,
			errorMessage: "Rate limit exceeded",
		}
	}
	return nil
}

func (m *Middleware) handleBadRequest(w http.ResponseWriter, req *http.Request, failure *failureStruct) {
	traceId, _ := req.Context().Value(config.TraceIDKey).(string)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(failure.httpCode)
	if err := json.NewEncoder(w).Encode(adapter.ToErrorResponse(failure.httpCode, failure.errorMessage, traceId)); err != nil {
		m.logger.Error("Error encoding response", "error", err)
	}
}

func recordRequest(w http.ResponseWriter) *metrics.HttpStatusRecorder {
	return &metrics.HttpStatusRecorder{ResponseWriter: w, Status: http.StatusOK}
}

// countRequest labels by route pattern so ids in the path do not explode the series.
func countRequest(req *http.Request, status int) {
	path := req.URL.Path
	if rctx := chi.RouteContext(req.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			path = pattern
		}
	}
	metrics.HttpRequestsTotal.WithLabelValues(path, strconv.Itoa(status)).Inc()
}
