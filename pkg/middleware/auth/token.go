package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// tokenFromRequest returns the API token sent as `Authorization: token <t>`
// or as the `token` query argument.
func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, rest, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "token") {
			return strings.TrimSpace(rest)
		}
	}
	return r.URL.Query().Get("token")
}

func (m *Middleware) tokenUser(r *http.Request) (User, bool) {
	if m.token == "" {
		return User{}, false
	}
	got := tokenFromRequest(r)
	if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(m.token)) != 1 {
		return User{}, false
	}
	return User{
		Username:             "token",
		AuthenticationSource: AuthenticationSource{Provider: ProviderToken},
	}, true
}
