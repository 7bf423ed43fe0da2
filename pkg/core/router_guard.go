package core

import (
	"net/http"

	"github.com/joeydtaylor/tbmux/pkg/middleware/auth"
)

// Guard is the access rule for one route.
type Guard struct {
	RequireAuth bool
	// AdminOnly restricts the route to the configured admin role when one is set.
	AdminOnly bool
}

func withGuard(next http.HandlerFunc, a *auth.Middleware, g Guard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// If no auth middleware wired, only allow when route doesn't require auth
		if a == nil {
			if g.RequireAuth || g.AdminOnly {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next(w, r)
			return
		}

		if (g.RequireAuth || g.AdminOnly) && !a.IsAuthenticated(r.Context()) {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if g.AdminOnly && a.AdminRole() != "" && !a.IsAdmin(r.Context()) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next(w, r)
	}
}
