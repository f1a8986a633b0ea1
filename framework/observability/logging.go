package observability

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggingConfig конфигурация структурированного логирования
type LoggingConfig struct {
	Level       string // "debug", "info", "warn", "error"
	Format      string // "json", "console"
	ServiceName string
}

// DefaultLoggingConfig возвращает конфигурацию по умолчанию
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:       "info",
		Format:      "json",
		ServiceName: "stockflow",
	}
}

// NewLogger создает zap логгер по конфигурации
func NewLogger(config LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(config.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", config.Level, err)
	}

	var zc zap.Config
	switch config.Format {
	case "json", "":
		zc = zap.NewProductionConfig()
	case "console":
		zc = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("unknown log format: %s", config.Format)
	}

	zc.Level = zap.NewAtomicLevelAt(level)
	zc.EncoderConfig.TimeKey = "timestamp"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	if config.ServiceName != "" {
		logger = logger.With(zap.String("service.name", config.ServiceName))
	}
	return logger, nil
}
