// Package logger builds the zap loggers used by the rollup commands.
package logger

import (
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field names shared across components.
const (
	FieldRunID      = "run_id"
	FieldRule       = "rule"
	FieldGenotypes  = "genotypes"
	FieldTargets    = "targets"
	FieldBatch      = "batch"
	FieldAnnotation = "annotations"
	FieldDriver     = "driver"
)

// New returns a SugaredLogger at level. JSON output uses the production
// encoder; otherwise a console encoder writes to stderr.
func New(level string, json bool) (*zap.SugaredLogger, error) {
	lvl := zap.NewAtomicLevelAt(zap.InfoLevel)
	if level != "" {
		parsed, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, errors.Wrapf(err, "parse log level %q", level)
		}
		lvl = zap.NewAtomicLevelAt(parsed)
	}

	var cfg zap.Config
	if json {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		cfg.DisableStacktrace = true
	}
	cfg.Level = lvl
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	l, err := cfg.Build()
	if err != nil {
		return nil, errors.Wrap(err, "build logger")
	}
	return l.Sugar(), nil
}

// Nop returns a logger that discards everything.
func Nop() *zap.SugaredLogger { return zap.NewNop().Sugar() }

// Component returns a named child logger.
func Component(l *zap.SugaredLogger, name string) *zap.SugaredLogger {
	if l == nil {
		l = Nop()
	}
	return l.Named(name)
}
