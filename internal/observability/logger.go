package observability

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggerOptions controls where and how verbosely the logger writes.
type LoggerOptions struct {
	// Level is used when LOG_LEVEL is unset.
	Level string
	// File, when set, receives every log line in addition to stderr. zap opens it in append mode.
	File string
}

// NewLogger builds the process logger: JSON lines with an ISO8601 "timestamp" and a level tag.
func NewLogger(opts LoggerOptions) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	level := os.Getenv("LOG_LEVEL")
	if strings.TrimSpace(level) == "" {
		level = opts.Level
	}
	config.Level = parseLogLevel(level)
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}
	if f := strings.TrimSpace(opts.File); f != "" {
		config.OutputPaths = append(config.OutputPaths, f)
	}

	return config.Build()
}

func parseLogLevel(s string) zap.AtomicLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return zap.NewAtomicLevelAt(zap.DebugLevel)
	case "WARN":
		return zap.NewAtomicLevelAt(zap.WarnLevel)
	case "ERROR":
		return zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		return zap.NewAtomicLevelAt(zap.InfoLevel)
	}
}
