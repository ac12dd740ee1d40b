// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package process

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newLogger constructs a zap logger from the log.* flags bound on cmd.
func newLogger(cmd *cobra.Command) (*zap.Logger, error) {
	levelText := "info"
	if f := cmd.Flags().Lookup("log.level"); f != nil {
		levelText = f.Value.String()
	}
	development := false
	if f := cmd.Flags().Lookup("log.development"); f != nil {
		development = f.Value.String() == "true"
	}

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(levelText)); err != nil {
		return nil, err
	}

	config := zap.NewProductionConfig()
	if development {
		config = zap.NewDevelopmentConfig()
	}
	config.Level = zap.NewAtomicLevelAt(level)
	config.Encoding = "console"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	return config.Build()
}
