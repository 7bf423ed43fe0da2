package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

func (m *Middleware) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Dev bypass for local testing (NEVER enable in prod)
			if m.devBypass {
				if u := devUserFromHeaders(r); u.Username != "" {
					next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
					return
				}
			}

			// 1) API token
			if u, ok := m.tokenUser(r); ok {
				next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
				return
			}

			// 2) If assertion cookie present, validate locally
			if ac, _ := r.Cookie(m.assertCookieName); ac != nil && ac.Value != "" && m.getKey() != nil {
				if u, err := m.validateAssertion(ac.Value); err == nil && u.Username != "" {
					next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
					return
				}
				// fall through on error; do not 401 yet
			}

			// 3) Fallback to session API if session cookie present
			if m.cookieName != "" {
				if c, err := r.Cookie(m.cookieName); err == nil && c != nil && c.Value != "" {
					u, err := m.validateSession(r.Context(), c)
					if err == nil && u.Username != "" {
						next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
						return
					}
					m.log.Debug("session rejected", zap.Error(err))
					http.Error(w, "Unauthorized", http.StatusUnauthorized)
					return
				}
			}

			// 4) No credentials; continue unauthenticated
			next.ServeHTTP(w, r)
		})
	}
}

func (m *Middleware) validateSession(ctx context.Context, c *http.Cookie) (User, error) {
	if m.sessionAPI == "" {
		return User{}, errors.New("session api not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.sessionAPI, nil)
	if err != nil {
		return User{}, err
	}
	req.Header.Set("Accept", "application/json")
	req.AddCookie(c)

	res, err := m.httpClient.Do(req)
	if err != nil {
		return User{}, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return User{}, fmt.Errorf("session api status %d", res.StatusCode)
	}

	var u User
	if err := json.NewDecoder(res.Body).Decode(&u); err != nil {
		return User{}, err
	}
	if u.AuthenticationSource.Provider == "" {
		u.AuthenticationSource.Provider = ProviderSession
	}
	return u, nil
}
