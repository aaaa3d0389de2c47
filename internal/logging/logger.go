package logging

import (
	"strings"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger struct {
	*otelzap.Logger
}

// LoggerWithCtx is a logger bound to a request or job context.
type LoggerWithCtx = otelzap.LoggerWithCtx

type LoggerOption struct {
	LogLevel    string
	ServiceName string
}

type Option func(o *LoggerOption)

func WithLogLevel(logLevel string) Option {
	return func(o *LoggerOption) {
		o.LogLevel = logLevel
	}
}

func WithServiceName(name string) Option {
	return func(o *LoggerOption) {
		o.ServiceName = name
	}
}

func NewLogger(opts ...Option) (*Logger, error) {
	option := &LoggerOption{}
	for _, opt := range opts {
		opt(option)
	}

	logger, err := makeLogger(option)
	if err != nil {
		return nil, err
	}
	return &Logger{Logger: logger}, nil
}

// FromZap wraps an existing zap logger, mostly for tests.
func FromZap(zapLogger *zap.Logger) *Logger {
	return &Logger{Logger: otelzap.New(zapLogger, otelzap.WithMinLevel(zap.DebugLevel))}
}

func ParseLevel(logLevel string) zapcore.Level {
	switch strings.ToLower(logLevel) {
	case "debug":
		return zap.DebugLevel
	case "info":
		return zap.InfoLevel
	case "warn", "warning":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	case "fatal":
		return zap.FatalLevel
	default:
		return zap.InfoLevel
	}
}

func makeLogger(option *LoggerOption) (*otelzap.Logger, error) {
	level := ParseLevel(option.LogLevel)

	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(level)
	if option.ServiceName != "" {
		zapConfig.InitialFields = map[string]interface{}{"service": option.ServiceName}
	}
	zapLogger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}

	return otelzap.New(zapLogger,
		otelzap.WithMinLevel(level),
	), nil
}
