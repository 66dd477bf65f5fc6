package middleware

import (
	"net/http"

	"github.com/akolanti/FinBot/internal/config"
	"github.com/akolanti/FinBot/pkg/logger_i"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"
)

const TraceHeader = "X-Trace-Id"

// Middleware is the request pipeline shared by every route.
type Middleware struct {
	limiter    *IPRateLimiter
	mcpLimiter *IPRateLimiter
	logger     *logger_i.Logger
}

func New(cfg config.ServerConfig) *Middleware {
	return &Middleware{
		limiter:    NewIPRateLimiter(rate.Limit(cfg.RateLimitPerSecond), cfg.RateLimitBurst),
		mcpLimiter: NewIPRateLimiter(rate.Limit(cfg.MCPRateLimitPerSecond), cfg.MCPRateLimitBurst),
		logger:     logger_i.NewLogger("middleware"),
	}
}

// Trace makes sure every request carries a trace id, in the context and in the response.
func (m *Middleware) Trace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, injectTrace(w, r))
	})
}

func (m *Middleware) RateLimit(next http.Handler) http.Handler {
	return m.limit(m.limiter, next)
}

// MCPRateLimit has its own buckets: one MCP session spends several requests
// on the handshake alone.
func (m *Middleware) MCPRateLimit(next http.Handler) http.Handler {
	return m.limit(m.mcpLimiter, next)
}

func (m *Middleware) limit(limiter *IPRateLimiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failure := m.rateLimiter(limiter, r); failure != nil {
			m.handleBadRequest(w, r, failure)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordRequest(w)
		next.ServeHTTP(rec, r)
		countRequest(r, rec.Status)
	})
}

// CORS allows the configured browser origins.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", TraceHeader},
		ExposedHeaders:   []string{TraceHeader},
		AllowCredentials: false,
		MaxAge:           300,
	})
}
