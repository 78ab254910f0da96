// Package logging configures structured logging for the core.
//
// Every long-lived component (chain supervisor, stream consumer, warmer,
// coordinator) holds a *zap.SugaredLogger scoped with its own fields
// (chain id, stream name, component) rather than using a package-level
// global, so logs from concurrent chains/consumers never interleave
// without attribution.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config mirrors the teacher's LoggingConfig shape.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, console
}

// New builds a *zap.Logger from Config. JSON encoding is used in
// production; console encoding is easier to read during local development.
func New(cfg Config) (*zap.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var encoderCfg zapcore.EncoderConfig
	var encoder zapcore.Encoder

	switch cfg.Format {
	case "console":
		encoderCfg = zap.NewDevelopmentEncoderConfig()
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	default:
		encoderCfg = zap.NewProductionEncoderConfig()
		encoderCfg.TimeKey = "ts"
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(newSyncWriter())), level)
	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return logger, nil
}

// Must panics if New returns an error; intended for process bootstrap
// where a bad LOG_LEVEL is a configuration mistake worth failing fast on.
func Must(cfg Config) *zap.Logger {
	logger, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return logger
}

func parseLevel(level string) (zapcore.Level, error) {
	var l zapcore.Level
	if level == "" {
		return zapcore.InfoLevel, nil
	}
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return l, nil
}

// ForChain returns a logger scoped with the chain id, used by C1-C4/C7.
func ForChain(base *zap.Logger, chainID string) *zap.SugaredLogger {
	return base.With(zap.String("chain_id", chainID)).Sugar()
}

// ForStream returns a logger scoped with the stream/group/consumer names,
// used by C8/C9.
func ForStream(base *zap.Logger, stream, group, consumer string) *zap.SugaredLogger {
	return base.With(
		zap.String("stream", stream),
		zap.String("group", group),
		zap.String("consumer", consumer),
	).Sugar()
}
