// Package logger holds the process-wide zap logger and the correlation id carried on request
// contexts.
package logger

import (
	"context"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the global logger. It discards everything until InitLogger runs.
var Log *zap.Logger = zap.NewNop()

const prodStage = "prod"

// InitLogger builds Log for stage: JSON with service/stage fields in prod, a colored console
// everywhere else. LOG_LEVEL overrides the default info level.
func InitLogger(stage string) {
	logger, err := Build(stage, os.Getenv("LOG_LEVEL"))
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	Log = logger
}

// Build returns a logger for stage at level without touching Log.
func Build(stage, level string) (*zap.Logger, error) {
	cfg := configFor(stage, ParseLevel(level))
	return cfg.Build()
}

func configFor(stage string, level zapcore.Level) zap.Config {
	if stage == prodStage {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(level)
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.MessageKey = "message"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.InitialFields = map[string]interface{}{
			"service": "grantpay",
			"stage":   stage,
		}
		cfg.DisableStacktrace = level > zapcore.DebugLevel
		return cfg
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	return cfg
}

// ParseLevel maps a textual level to a zap level, defaulting to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

type correlationKey struct{}

// WithCorrelationID returns ctx carrying id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the id stored by WithCorrelationID, or "".
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// FromContext returns Log, tagged with the context's correlation id when it has one.
func FromContext(ctx context.Context) *zap.Logger {
	if id := CorrelationID(ctx); id != "" {
		return Log.With(zap.String("correlation_id", id))
	}
	return Log
}

// Token logs only the last four characters of a bearer or continuation token.
func Token(key, value string) zap.Field {
	if len(value) <= 4 {
		return zap.String(key, "****")
	}
	return zap.String(key, "****"+value[len(value)-4:])
}

func Info(msg string, fields ...zap.Field)  { Log.Info(msg, fields...) }
func Error(msg string, fields ...zap.Field) { Log.Error(msg, fields...) }
func Debug(msg string, fields ...zap.Field) { Log.Debug(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { Log.Warn(msg, fields...) }

// Fatal logs at FatalLevel and then calls os.Exit(1)
func Fatal(msg string, fields ...zap.Field) { Log.Fatal(msg, fields...) }

// Sync flushes any buffered log entries
func Sync() error { return Log.Sync() }
