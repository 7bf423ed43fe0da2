package core

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/joeydtaylor/tbmux/pkg/adapter"
	hmetrics "github.com/joeydtaylor/tbmux/pkg/middleware/metrics"
	"github.com/joeydtaylor/tbmux/pkg/registry"
	"github.com/joeydtaylor/tbmux/pkg/xsrf"
	"go.uber.org/zap"
)

// Dispatcher routes /tensorboard/{instance}/... to the named instance.
// It holds no per-request state; the registry is consulted once per request.
type Dispatcher struct {
	reg          registry.Registry
	adapter      *adapter.Adapter
	shim         *xsrf.Shim
	log          *zap.Logger
	baseURL      string
	xsrfCookie   string
	mirrorCookie string
}

func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "instance")

	inst, ok := d.reg.Lookup(name)
	if !ok {
		hmetrics.RecordDispatch(hmetrics.UnknownInstance, hmetrics.OutcomeNotFound)
		writeError(w, ErrNotFound)
		return
	}

	prefix := d.baseURL + "/tensorboard/" + name
	if strings.TrimPrefix(r.URL.Path, prefix) == "" {
		d.bareRoot(w, r, name)
		return
	}

	decision, err := d.shim.Check(r, inst.Version)
	if err != nil {
		d.log.Warn("xsrf check failed",
			zap.String("instance", name),
			zap.String("method", r.Method),
			zap.String("referer", r.Referer()),
			zap.Error(err),
		)
		hmetrics.RecordDispatch(name, hmetrics.OutcomeForbidden)
		writeError(w, err)
		return
	}
	if decision == xsrf.Relaxed {
		hmetrics.XSRFRelaxed.WithLabelValues(name).Inc()
		d.log.Info("xsrf relaxed by referer",
			zap.String("instance", name),
			zap.String("version", inst.Version),
			zap.String("referer", r.Referer()),
		)
	}

	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		d.mirrorXSRF(w, r)
	}

	r2 := stripPrefix(r, prefix)
	d.log.Debug("forwarding",
		zap.String("instance", name),
		zap.String("method", r.Method),
		zap.String("path", r2.URL.Path),
	)
	forward(w, r2, d.adapter, inst, d.log)
}

// forward hands r to inst and records the outcome. Once the adapter has
// started writing the response nothing more is written to w.
func forward(w http.ResponseWriter, r *http.Request, a *adapter.Adapter, inst *registry.Instance, log *zap.Logger) {
	err := a.Serve(w, r, inst)
	switch {
	case err == nil:
		hmetrics.RecordDispatch(inst.Name, hmetrics.OutcomeForwarded)
	case errors.Is(err, adapter.ErrCopy):
		log.Warn("response copy failed",
			zap.String("instance", inst.Name),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		hmetrics.RecordDispatch(inst.Name, hmetrics.OutcomeAborted)
	default:
		hmetrics.RecordDispatch(inst.Name, hmetrics.OutcomeFailed)
		writeError(w, err)
	}
}

// bareRoot handles /tensorboard/{instance} with nothing after the name.
func (d *Dispatcher) bareRoot(w http.ResponseWriter, r *http.Request, name string) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		hmetrics.RecordDispatch(name, hmetrics.OutcomeForbidden)
		writeError(w, ErrForbidden)
		return
	}
	loc := r.URL.EscapedPath() + "/"
	if r.URL.RawQuery != "" {
		loc += "?" + r.URL.RawQuery
	}
	hmetrics.RecordDispatch(name, hmetrics.OutcomeRedirect)
	w.Header().Set("Location", loc)
	w.WriteHeader(http.StatusMovedPermanently)
}

// mirrorXSRF copies the session XSRF cookie into one that page scripts can read.
func (d *Dispatcher) mirrorXSRF(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(d.xsrfCookie)
	if err != nil || c.Value == "" {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:  d.mirrorCookie,
		Value: c.Value,
		Path:  "/",
	})
}

// stripPrefix returns a shallow copy of r whose path has prefix removed,
// leaving at least "/".
func stripPrefix(r *http.Request, prefix string) *http.Request {
	p := strings.TrimPrefix(r.URL.Path, prefix)
	rp := strings.TrimPrefix(r.URL.RawPath, prefix)
	if p == "" {
		p = "/"
	}

	r2 := new(http.Request)
	*r2 = *r
	r2.URL = new(url.URL)
	*r2.URL = *r.URL
	r2.URL.Path = p
	if r.URL.RawPath != "" {
		r2.URL.RawPath = rp
	}
	r2.RequestURI = r2.URL.RequestURI()
	return r2
}
