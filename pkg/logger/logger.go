package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log = zap.NewNop()

// Options configures the process logger. Empty fields take the defaults:
// info level and json encoding.
type Options struct {
	Level string
	// Format is "json" for production or "console" for local runs.
	Format string
	// Service, when set, is attached to every entry.
	Service string
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		MessageKey:     "message",
		LevelKey:       "level",
		TimeKey:        "time",
		CallerKey:      "caller",
		StacktraceKey:  "stacktrace",
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
}

func Initialize(opts Options) error {
	if opts.Level == "" {
		opts.Level = "info"
	}
	zLevel, err := zapcore.ParseLevel(opts.Level)
	if err != nil {
		return err
	}

	encoding := opts.Format
	enc := encoderConfig()
	switch encoding {
	case "", "json":
		encoding = "json"
	case "console":
		enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		return fmt.Errorf("unknown log format %q", opts.Format)
	}

	config := zap.Config{
		Encoding:         encoding,
		Level:            zap.NewAtomicLevelAt(zLevel),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig:    enc,
	}

	var options []zap.Option
	if opts.Service != "" {
		options = append(options, zap.Fields(zap.String("service", opts.Service)))
	}

	built, err := config.Build(options...)
	if err != nil {
		return err
	}
	log = built

	return nil
}

// Logger returns the process logger. Before Initialize it is a no-op logger.
func Logger() *zap.Logger {
	return log
}

func Sync() error {
	return log.Sync()
}
