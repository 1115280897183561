// Package logger is the process-wide structured logger.
package logger

import (
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var current atomic.Pointer[zap.Logger]

func init() {
	current.Store(zap.NewNop())
}

// Init builds the global logger. format is "json" or "console".
func Init(level, format string) error {
	lvl, err := zapcore.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	var cfg zap.Config
	if format == "json" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.DisableStacktrace = true
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	l, err := cfg.Build()
	if err != nil {
		return err
	}
	SetLogger(l)
	return nil
}

// SetLogger replaces the global logger. A nil logger installs a no-op.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	current.Store(l)
}

// L returns the global logger.
func L() *zap.Logger {
	return current.Load()
}

func Debug(msg string, fields ...zap.Field) { L().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { L().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { L().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { L().Error(msg, fields...) }

// Sync flushes buffered entries. Errors from syncing stderr are ignored.
func Sync() {
	_ = L().Sync()
}
