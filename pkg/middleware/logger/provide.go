package logger

import (
	"context"

	"github.com/joeydtaylor/tbmux/pkg/manifest"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func ProvideLoggerMiddleware(cfg manifest.Config) *Middleware {
	return New(newAccessLog(cfg.Server.LogDir))
}

func ProvideLogger(lc fx.Lifecycle, cfg manifest.Config) *zap.Logger {
	l := NewLog(cfg.Server.LogDir, SystemLogName)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			_ = l.Sync()
			return nil
		},
	})
	return l
}
