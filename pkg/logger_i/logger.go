package logger_i

import (
	"context"
	"fmt"

	"github.com/akolanti/FinBot/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger struct {
	inner *zap.SugaredLogger
}

// Init builds the process logger. prod writes JSON, every other env writes console output.
func Init(env string, level string) error {
	var cfg zap.Config
	if env == "prod" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}

	if level != "" {
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return fmt.Errorf("invalid log level %q: %w", level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	l, err := cfg.Build(zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	zap.ReplaceGlobals(l)
	return nil
}

// Sync flushes buffered entries.
func Sync() {
	_ = zap.L().Sync()
}

// NewLogger returns a logger tagged with the component name.
// Before Init it logs nowhere.
func NewLogger(section string) *Logger {
	return &Logger{
		inner: zap.S().With("component", section),
	}
}

func (l *Logger) Info(msg string, args ...any) {
	l.inner.Infow(msg, args...)
}

func (l *Logger) Error(msg string, args ...any) {
	l.inner.Errorw(msg, args...)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.inner.Warnw(msg, args...)
}

func (l *Logger) Debug(msg string, args ...any) {
	l.inner.Debugw(msg, args...)
}

func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		inner: l.inner.With(args...),
	}
}

// WithTrace attaches the request trace id, if the context carries one.
func (l *Logger) WithTrace(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}
	if trace, ok := ctx.Value(config.TraceIDKey).(string); ok && trace != "" {
		return l.With("traceId", trace)
	}
	return l
}
