// Package logger builds the process zap logger.
//
// JSON format for production, console for development. The returned
// AtomicLevel allows the level to be changed at runtime.
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a logger.
// level: debug, info, warn, error
// format: json or console
func New(level, format string) (*zap.Logger, zap.AtomicLevel, error) {
	atomicLevel := zap.NewAtomicLevel()
	if err := atomicLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, atomicLevel, fmt.Errorf("parse log level %q: %w", level, err)
	}

	var cfg zap.Config
	switch format {
	case "console":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	case "json", "":
		cfg = zap.NewProductionConfig()
	default:
		return nil, atomicLevel, fmt.Errorf("unknown log format %q", format)
	}
	cfg.Level = atomicLevel

	l, err := cfg.Build()
	if err != nil {
		return nil, atomicLevel, fmt.Errorf("build logger: %w", err)
	}
	return l, atomicLevel, nil
}

// Component returns a child logger tagged with a component name.
func Component(l *zap.Logger, name string) *zap.Logger {
	return l.With(zap.String("component", name))
}
