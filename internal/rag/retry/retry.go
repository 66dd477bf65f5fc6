package retry

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/akolanti/FinBot/internal/config"
	"github.com/akolanti/FinBot/internal/metrics"
	"github.com/akolanti/FinBot/pkg/logger_i"
	"github.com/cenkalti/backoff/v4"
)

// Policy bounds retries of one external call. MaxRetries counts retries, not attempts.
type Policy struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func FromConfig(c config.RetryConfig) Policy {
	return Policy{
		MaxRetries:      c.MaxRetries,
		InitialInterval: time.Duration(c.InitialIntervalMs) * time.Millisecond,
		MaxInterval:     time.Duration(c.MaxIntervalMs) * time.Millisecond,
	}
}

// Call runs fn until it succeeds, fails with a non-transient error, the context
// ends, or the retries run out. The last error is returned as is.
func Call[T any](ctx context.Context, p Policy, operation string, isTransient func(error) bool, fn func(ctx context.Context) (T, error)) (T, error) {
	log := logger_i.NewLogger("retry").WithTrace(ctx).With("operation", operation)

	var out T
	op := func() error {
		v, err := fn(ctx)
		if err != nil {
			if isTransient != nil && isTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		out = v
		return nil
	}

	err := backoff.RetryNotify(op, p.backOff(ctx), func(err error, wait time.Duration) {
		metrics.CountRetry(operation)
		log.Warn("transient failure, retrying", "error", err, "wait", wait)
	})
	return out, err
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.InitialInterval
	if p.MaxInterval > 0 {
		eb.MaxInterval = p.MaxInterval
	}
	eb.MaxElapsedTime = 0
	eb.Reset()

	retries := p.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(retries)), ctx)
}

// IsTransientNetwork reports timeouts and refused connections. Cancellation is never transient.
func IsTransientNetwork(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// IsTransientStatus reports HTTP status codes worth retrying.
func IsTransientStatus(code int) bool {
	return code == http.StatusRequestTimeout ||
		code == http.StatusTooManyRequests ||
		code >= http.StatusInternalServerError
}
