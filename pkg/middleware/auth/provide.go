package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/joeydtaylor/tbmux/pkg/manifest"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// New builds the middleware from the manifest's [auth] section.
func New(cfg manifest.Auth, log *zap.Logger) *Middleware {
	if log == nil {
		log = zap.NewNop()
	}
	hc := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:       10,
			IdleConnTimeout:    30 * time.Second,
			DisableCompression: false,
		},
		Timeout: 8 * time.Second,
	}

	leeway := 60 * time.Second
	if cfg.AssertionLeeway > 0 {
		leeway = time.Duration(cfg.AssertionLeeway) * time.Second
	}

	assertCookie := strings.TrimSpace(cfg.AssertionCookie)
	if assertCookie == "" {
		assertCookie = "assert"
	}

	return &Middleware{
		httpClient:       hc,
		sessionAPI:       strings.TrimSpace(cfg.SessionAPI),
		cookieName:       strings.TrimSpace(cfg.SessionCookie),
		adminRole:        cfg.AdminRole,
		devBypass:        cfg.DevBypass,
		token:            cfg.Token,
		log:              log,
		assertCookieName: assertCookie,
		assertKeyURL:     strings.TrimSpace(cfg.AssertionKeyURL), // JWKS/PEM endpoint
		assertKeyKID:     strings.TrimSpace(cfg.AssertionKeyKID),
		assertIssuer:     strings.TrimSpace(cfg.AssertionIssuer),
		assertAudience:   strings.TrimSpace(cfg.AssertionAud),
		assertLeeway:     leeway,
		cacheTTL:         1 * time.Hour, // default; overridable by Cache-Control
	}
}

// ProvideAuthentication wires the middleware into fx. The assertion key is
// fetched on start (non-fatal) and refreshed until stop.
func ProvideAuthentication(lc fx.Lifecycle, cfg manifest.Config, log *zap.Logger) *Middleware {
	m := New(cfg.Auth, log)
	if m.assertKeyURL == "" {
		return m
	}

	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if err := m.refreshAssertionKey(ctx); err != nil {
				m.log.Warn("assertion key fetch failed", zap.String("url", m.assertKeyURL), zap.Error(err))
			}
			go m.backgroundRefresh(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
	return m
}

var Module = fx.Options(
	fx.Provide(ProvideAuthentication),
)
