package logger

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	SystemLogName = "system.log"
	AccessLogName = "http-access.log"
)

// NewLog returns a JSON logger writing to stdout and, when dir is set, to a
// rotated file dir/name. The directory is created if missing.
func NewLog(dir, name string) *zap.Logger {
	return newLog(dir, name, zap.NewProductionEncoderConfig())
}

// newAccessLog is NewLog without the message key; access lines carry fields only.
func newAccessLog(dir string) *zap.Logger {
	cfg := zap.NewProductionEncoderConfig()
	cfg.MessageKey = zapcore.OmitKey
	return newLog(dir, AccessLogName, cfg)
}

func newLog(dir, name string, cfg zapcore.EncoderConfig) *zap.Logger {
	enc := zapcore.NewJSONEncoder(cfg)
	cores := []zapcore.Core{
		zapcore.NewCore(enc, zapcore.Lock(os.Stdout), zap.InfoLevel),
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err == nil {
			w := zapcore.AddSync(&lumberjack.Logger{
				Filename:   filepath.Join(dir, name),
				MaxSize:    50, // MB
				MaxBackups: 3,
				MaxAge:     7, // days
			})
			cores = append(cores, zapcore.NewCore(enc.Clone(), w, zap.InfoLevel))
		}
	}
	return zap.New(zapcore.NewTee(cores...))
}
