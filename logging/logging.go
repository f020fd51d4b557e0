// SPDX-License-Identifier: MIT

// Package logging builds the zap-backed logr.Logger used by the CLI.
package logging

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a logger printing V-levels up to level. dev selects the
// console encoder; otherwise output is JSON.
func New(level int, dev bool) (logr.Logger, error) {
	if level < 0 {
		return logr.Discard(), fmt.Errorf("logging: negative level %d", level)
	}
	cfg := zap.NewProductionConfig()
	if dev {
		cfg = zap.NewDevelopmentConfig()
	}
	// logr V(n) maps to zap level -n
	cfg.Level = zap.NewAtomicLevelAt(zapcore.Level(-level))
	cfg.DisableStacktrace = !dev
	zl, err := cfg.Build()
	if err != nil {
		return logr.Discard(), fmt.Errorf("logging: %w", err)
	}
	return zapr.NewLogger(zl), nil
}

// NewWithCore wraps an existing zap core, for tests and embedding.
func NewWithCore(core zapcore.Core) logr.Logger {
	return zapr.NewLogger(zap.New(core))
}
