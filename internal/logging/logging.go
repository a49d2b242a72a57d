// Package logging builds the process-wide zap logger and provides the
// pipeline audit helper. Log files rotate under cfg.LogDir; console output
// stays human readable.
package logging

import (
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/estctiger/estctiger/config"
)

// New constructs the application logger. When cfg.LogDir is set, JSON logs
// are written to a rotated file in addition to the console.
func New(cfg *config.Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Debug {
		level = zapcore.DebugLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(
			zapcore.NewConsoleEncoder(encCfg),
			zapcore.Lock(os.Stderr),
			level,
		),
	}

	if cfg.LogDir != "" {
		rotated := &lumberjack.Logger{
			Filename:   filepath.Join(cfg.LogDir, "estctiger.log"),
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encCfg),
			zapcore.AddSync(rotated),
			level,
		))
	}

	return zap.New(zapcore.NewTee(cores...)), nil
}

// Audit records the outcome of one pipeline stage with its duration.
// Every stage of the chat workflow reports through here so blocked input,
// rejected output, upstream failures and model failures all land in the
// same audit stream.
func Audit(l *zap.Logger, stage string, start time.Time, outcome string, fields ...zap.Field) {
	all := append([]zap.Field{
		zap.String("stage", stage),
		zap.Duration("duration", time.Since(start)),
		zap.String("outcome", outcome),
	}, fields...)
	l.Info("pipeline stage", all...)
}
