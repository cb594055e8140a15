// Package logger holds the process-wide structured logger. Call sites use
// snake_case event names with key/value pairs:
//
//	logger.Info("message_saved", "id", id, "channel", ch)
package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log *zap.SugaredLogger = zap.NewNop().Sugar()

// Init configures the global logger. Level is one of debug, info, warn,
// error; format is "json" or "console". Unknown values fall back to info
// and json.
func Init(level, format string) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	if strings.EqualFold(format, "console") {
		cfg = zap.NewDevelopmentConfig()
		cfg.Encoding = "console"
	}
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	cfg.DisableStacktrace = true
	built, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		// fall back to a bare production logger rather than failing boot
		built = zap.Must(zap.NewProduction())
	}
	log = built.Sugar()
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Sync flushes buffered entries. Safe to call on shutdown paths.
func Sync() { _ = log.Sync() }

func Debug(msg string, kv ...any) { log.Debugw(msg, kv...) }

func Info(msg string, kv ...any) { log.Infow(msg, kv...) }

func Warn(msg string, kv ...any) { log.Warnw(msg, kv...) }

func Error(msg string, kv ...any) { log.Errorw(msg, kv...) }
