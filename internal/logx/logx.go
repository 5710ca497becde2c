// Package logx builds the zap logger shared by the binaries.
package logx

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a development logger when env is "development" or "dev",
// and a JSON production logger otherwise. An unknown level means info.
func New(env, level string) (*zap.Logger, error) {
	var cfg zap.Config
	switch env {
	case "development", "dev":
		cfg = zap.NewDevelopmentConfig()
	default:
		cfg = zap.NewProductionConfig()
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
