package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Env   string // "production" gets JSON output, anything else console
	Level string // zap level name; empty keeps the profile default
}

// New builds a sugared logger for the given environment profile.
func New(cfg Config) (*zap.SugaredLogger, error) {
	var zc zap.Config
	if cfg.Env == "production" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		lvl, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
		}
		zc.Level = zap.NewAtomicLevelAt(lvl)
	}
	l, err := zc.Build()
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}
