package serverfx

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"regexp"
	"time"

	"github.com/joeydtaylor/tbmux/pkg/adapter"
	"github.com/joeydtaylor/tbmux/pkg/bundlefx"
	"github.com/joeydtaylor/tbmux/pkg/core"
	"github.com/joeydtaylor/tbmux/pkg/manifest"
	"github.com/joeydtaylor/tbmux/pkg/middleware/auth"
	"github.com/joeydtaylor/tbmux/pkg/middleware/logger"
	"github.com/joeydtaylor/tbmux/pkg/registry"
	"github.com/joeydtaylor/tbmux/pkg/transport/httpx"
	"github.com/joeydtaylor/tbmux/pkg/xsrf"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Options carries the validated manifest into the fx graph.
type Options struct {
	Service string
	Config  manifest.Config
}

// ---- Instances ----

// Instances is the registry together with the route table it selects.
type Instances struct {
	Registry registry.Registry
	Variant  core.Variant
}

// NewInstances seeds the registry from cfg. A disabled or unseedable
// TensorBoard surface yields the stub variant; the server still starts.
func NewInstances(cfg manifest.Config, log *zap.Logger) Instances {
	if !cfg.TensorBoard.IsEnabled() {
		log.Warn("tensorboard disabled; instance routes answer 503")
		return Instances{Variant: core.Stub}
	}
	reg, err := registry.Seed(cfg.Instances, cfg.Server.ContentRoot, log)
	if err != nil {
		log.Error("registry seed failed; instance routes answer 503", zap.Error(err))
		return Instances{Variant: core.Stub}
	}
	log.Info("registry seeded", zap.Int("instances", reg.Len()))
	return Instances{Registry: reg, Variant: core.Full}
}

// ---- XSRF ----

// NewShim builds the compatibility shim around the host double-submit check.
// Token-authenticated requests bypass the baseline.
func NewShim(cfg manifest.XSRF, a *auth.Middleware) (*xsrf.Shim, error) {
	var base xsrf.Checker = xsrf.DoubleSubmit{CookieName: cfg.CookieName}
	if cfg.Disable {
		base = xsrf.Disabled
	}
	if a != nil {
		base = xsrf.SkipWhen(base, func(r *http.Request) bool {
			return a.IsTokenAuthenticated(r.Context())
		})
	}

	policy := xsrf.OriginPolicy{AllowOrigin: cfg.AllowOrigin}
	if cfg.AllowOriginPat != "" {
		re, err := regexp.Compile(cfg.AllowOriginPat)
		if err != nil {
			return nil, err
		}
		policy.AllowOriginPat = re
	}

	return &xsrf.Shim{
		Base:       base,
		Origin:     policy,
		Threshold:  cfg.VersionThreshold,
		CookieName: cfg.CookieName,
	}, nil
}

func provideShim(opts Options, a *auth.Middleware) (*xsrf.Shim, error) {
	return NewShim(opts.Config.XSRF, a)
}

func provideAdapter(opts Options, log *zap.Logger) *adapter.Adapter {
	return adapter.New(adapter.Options{
		Mode:    adapter.Mode(opts.Config.Adapter.Mode),
		Workers: opts.Config.Adapter.Workers,
		Logger:  log,
	})
}

func provideInstances(opts Options, log *zap.Logger) Instances {
	return NewInstances(opts.Config, log)
}

func provideConfig(opts Options) manifest.Config { return opts.Config }

// ---- Router ----

type routerDeps struct {
	fx.In

	Opts Options

	AuthMW *auth.Middleware
	LogMW  *logger.Middleware

	Metrics http.Handler `name:"metrics"`

	Instances Instances
	Adapter   *adapter.Adapter
	Shim      *xsrf.Shim
	R         httpx.Router
	Log       *zap.Logger
}

func provideRouter(d routerDeps) http.Handler {
	cfg := d.Opts.Config
	return core.BuildRouter(core.BuildDeps{
		Registry:     d.Instances.Registry,
		Variant:      d.Instances.Variant,
		Adapter:      d.Adapter,
		Shim:         d.Shim,
		Auth:         d.AuthMW,
		LogMW:        d.LogMW,
		Metrics:      d.Metrics,
		Router:       d.R,
		Logger:       d.Log,
		BaseURL:      cfg.Server.BaseURL,
		XSRFCookie:   cfg.XSRF.CookieName,
		MirrorCookie: cfg.XSRF.MirrorCookieName,
		FontInstance: cfg.TensorBoard.FontInstance,
	})
}

// ---- Server lifecycle ----

type serverDeps struct {
	fx.In
	Opts   Options
	Logger *zap.Logger
	App    http.Handler `name:"app"`
}

func registerHooks(lc fx.Lifecycle, d serverDeps) {
	cfg := d.Opts.Config.Server
	addr := cfg.Listen
	cert, key := cfg.TLSCert, cfg.TLSKey

	srv := &http.Server{
		Addr:         addr,
		Handler:      d.App,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		TLSConfig:    &tls.Config{MinVersion: tls.VersionTLS13, MaxVersion: tls.VersionTLS13},
	}
	useTLS := fileExists(cert) && fileExists(key)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if useTLS {
				d.Logger.Info("server starting (TLS)",
					zap.String("service", d.Opts.Service),
					zap.String("addr", addr),
					zap.String("cert", cert),
				)
				go func() {
					if err := srv.ListenAndServeTLS(cert, key); err != nil && err != http.ErrServerClosed {
						d.Logger.Fatal("server failed", zap.Error(err))
					}
				}()
			} else {
				d.Logger.Info("server starting (PLAINTEXT)",
					zap.String("service", d.Opts.Service),
					zap.String("addr", addr),
				)
				go func() {
					srv.TLSConfig = nil
					if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						d.Logger.Fatal("server failed", zap.Error(err))
					}
				}()
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			d.Logger.Info("server stopping", zap.String("service", d.Opts.Service))
			return srv.Shutdown(ctx)
		},
	})
}

// ---- Public Fx module ----

// Handler is the graph without the listener; tests use it with fxtest.
func Handler(opts Options) fx.Option {
	return fx.Options(
		fx.Supply(opts),
		fx.Provide(provideConfig),

		// Middleware modules
		bundlefx.Module,

		// Router implementation
		fx.Provide(httpx.NewChi),

		fx.Provide(provideInstances, provideAdapter, provideShim),

		// Router (named "app")
		fx.Provide(
			fx.Annotate(
				provideRouter,
				fx.ResultTags(`name:"app"`),
			),
		),
	)
}

func Module(opts Options) fx.Option {
	return fx.Options(
		Handler(opts),
		fx.Invoke(registerHooks),
	)
}

// ---- helpers ----

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
