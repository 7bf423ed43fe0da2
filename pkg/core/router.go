package core

import (
	"net/http"

	chimd "github.com/go-chi/chi/v5/middleware"
	hmetrics "github.com/joeydtaylor/tbmux/pkg/middleware/metrics"
	httpx "github.com/joeydtaylor/tbmux/pkg/transport/httpx"
	"go.uber.org/zap"
)

// BuildRouter assembles the front-end handler. Instance routes hang off
// d.BaseURL; /metrics and /ping stay at the root.
func BuildRouter(d BuildDeps) http.Handler {
	d.defaults()

	r := d.Router
	r.Use(chimd.RequestID, chimd.Recoverer, chimd.Heartbeat("/ping"))
	if d.Auth != nil {
		r.Use(d.Auth.Middleware())
		if d.LogMW != nil {
			r.Use(d.LogMW.Middleware(d.Auth))
		}
		r.Use(hmetrics.Collect(d.Auth))
	} else if d.LogMW != nil {
		r.Use(d.LogMW.Middleware(nil))
	}

	if d.Metrics != nil {
		r.Handle(http.MethodGet, "/metrics", d.Metrics)
	}

	if d.BaseURL == "" {
		mountInstanceRoutes(r, d)
	} else {
		sub := httpx.NewChi()
		mountInstanceRoutes(sub, d)
		r.Mount(d.BaseURL, sub.Mux())
	}

	d.Logger.Info("router built",
		zap.String("variant", d.Variant.String()),
		zap.String("baseURL", d.BaseURL),
		zap.String("adapterMode", string(d.Adapter.Mode())),
	)
	return r.Mux()
}

func mountInstanceRoutes(r httpx.Router, d BuildDeps) {
	authed := Guard{RequireAuth: true}

	if d.Variant == Stub {
		h := withGuard(unavailable, d.Auth, authed)
		for _, p := range []string{
			"/tensorboard", "/tensorboard/*",
			"/api/tensorboard", "/api/tensorboard/*",
			"/font-roboto/*",
		} {
			for _, m := range []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodDelete} {
				r.Handle(m, p, h)
			}
		}
		return
	}

	disp := &Dispatcher{
		reg:          d.Registry,
		adapter:      d.Adapter,
		shim:         d.Shim,
		log:          d.Logger,
		baseURL:      d.BaseURL,
		xsrfCookie:   d.XSRFCookie,
		mirrorCookie: d.MirrorCookie,
	}
	tb := withGuard(disp.ServeHTTP, d.Auth, authed)
	for _, p := range []string{"/tensorboard/{instance}", "/tensorboard/{instance}/*"} {
		r.Get(p, tb)
		r.Head(p, tb)
		r.Post(p, tb)
	}

	font := withGuard(fontHandler(d), d.Auth, authed)
	r.Get("/font-roboto/*", font)
	r.Head("/font-roboto/*", font)

	api := &instanceAPI{reg: d.Registry, base: d.Shim.Base, log: d.Logger}
	r.Get("/api/tensorboard", withGuard(api.list, d.Auth, authed))
	r.Get("/api/tensorboard/{instance}", withGuard(api.get, d.Auth, authed))
	r.Delete("/api/tensorboard/{instance}", withGuard(api.remove, d.Auth, Guard{RequireAuth: true, AdminOnly: true}))
}

func unavailable(w http.ResponseWriter, r *http.Request) {
	writeError(w, ErrUnavailable)
}
