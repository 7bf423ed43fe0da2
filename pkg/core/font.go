package core

import (
	"net/http"

	hmetrics "github.com/joeydtaylor/tbmux/pkg/middleware/metrics"
)

// fontHandler serves /font-roboto/* from the well-known font instance.
// The XSRF shim is not consulted; the route is read-only.
func fontHandler(d BuildDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inst, ok := d.Registry.Lookup(d.FontInstance)
		if !ok {
			hmetrics.RecordDispatch(hmetrics.UnknownInstance, hmetrics.OutcomeNotFound)
			writeError(w, ErrNotFound)
			return
		}
		forward(w, stripPrefix(r, d.BaseURL), d.Adapter, inst, d.Logger)
	}
}
