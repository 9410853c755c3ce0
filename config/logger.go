package config

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger creates a configured Zap logger from the logging section.
// Level is one of debug, info, warn, error (default "info"); Format is json
// or console (default "json"). A disabled section yields a no-op logger.
func NewLogger(l Logging) (*zap.Logger, error) {
	if !l.Enabled {
		return zap.NewNop(), nil
	}

	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(l.Level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", l.Level, err)
	}

	var cfg zap.Config
	switch l.Format {
	case "console":
		cfg = zap.NewDevelopmentConfig()
	case "json", "":
		cfg = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("invalid log format %q: must be \"json\" or \"console\"", l.Format)
	}

	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	if l.File == "" {
		return cfg.Build()
	}

	var enc zapcore.Encoder
	if cfg.Encoding == "console" {
		enc = zapcore.NewConsoleEncoder(cfg.EncoderConfig)
	} else {
		enc = zapcore.NewJSONEncoder(cfg.EncoderConfig)
	}
	sink := zapcore.AddSync(&lumberjack.Logger{
		Filename:   l.File,
		MaxSize:    10, // megabytes before rotation
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	})
	return zap.New(zapcore.NewCore(enc, sink, cfg.Level), zap.AddCaller()), nil
}
