package core

import (
	"net/http"

	"github.com/joeydtaylor/tbmux/pkg/adapter"
	"github.com/joeydtaylor/tbmux/pkg/middleware/auth"
	"github.com/joeydtaylor/tbmux/pkg/middleware/logger"
	"github.com/joeydtaylor/tbmux/pkg/registry"
	httpx "github.com/joeydtaylor/tbmux/pkg/transport/httpx"
	"github.com/joeydtaylor/tbmux/pkg/xsrf"
	"go.uber.org/zap"
)

// Variant selects the route table mounted under the base URL.
type Variant int

const (
	// Full mounts the dispatcher, font pass-through and listing API.
	Full Variant = iota
	// Stub answers every instance route with 503.
	Stub
)

func (v Variant) String() string {
	if v == Stub {
		return "stub"
	}
	return "full"
}

type BuildDeps struct {
	Registry registry.Registry
	Adapter  *adapter.Adapter
	Shim     *xsrf.Shim
	Auth     *auth.Middleware
	LogMW    *logger.Middleware
	Metrics  http.Handler
	Router   httpx.Router
	Logger   *zap.Logger

	Variant      Variant
	BaseURL      string
	XSRFCookie   string
	MirrorCookie string
	FontInstance string
}

func (d *BuildDeps) defaults() {
	if d.Router == nil {
		d.Router = httpx.NewChi()
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Adapter == nil {
		d.Adapter = adapter.New(adapter.Options{Logger: d.Logger})
	}
	if d.XSRFCookie == "" {
		d.XSRFCookie = xsrf.ArgName
	}
	if d.Shim == nil {
		d.Shim = &xsrf.Shim{CookieName: d.XSRFCookie, Threshold: xsrf.DefaultThreshold}
	}
	if d.Shim.Threshold == "" {
		d.Shim.Threshold = xsrf.DefaultThreshold
	}
	if d.Shim.Base == nil {
		d.Shim.Base = xsrf.DoubleSubmit{CookieName: d.XSRFCookie}
	}
	if d.MirrorCookie == "" {
		d.MirrorCookie = "XSRF-TOKEN"
	}
	if d.FontInstance == "" {
		d.FontInstance = "1"
	}
	if d.Registry == nil {
		d.Variant = Stub
	}
}
