package system

import (
	"go.uber.org/zap"
)

// NewTestLogger returns a sugared development logger without automatic
// stacktraces, for tests that don't have a *testing.T at hand.
func NewTestLogger() *zap.SugaredLogger {
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	logger, _ := cfg.Build()
	return logger.Sugar()
}
