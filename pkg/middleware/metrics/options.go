package metrics

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// skipPaths are never counted.
var skipPaths = map[string]struct{}{"/metrics": {}}

// routePattern returns the matched chi route pattern, falling back to the path.
// Instance names stay out of the uri label.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

func isSkipPath(r *http.Request) bool {
	_, ok := skipPaths[r.URL.Path]
	return ok
}
