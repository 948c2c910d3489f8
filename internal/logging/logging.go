// Package logging builds the zap logger used across the CLI.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates a console logger writing to stderr. Stdout stays reserved for
// command output so that --json results remain machine-parseable.
//
// The default level is Warn, matching the quiet-by-default behavior of a
// backup tool; verbose switches to Debug, which includes one line per API
// request.
func New(verbose bool) (*zap.Logger, error) {
	level := zap.WarnLevel
	if verbose {
		level = zap.DebugLevel
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Encoding:         "console",
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
