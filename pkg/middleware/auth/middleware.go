package auth

import (
	"crypto/rsa"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Middleware is the host's session predicate: it resolves the caller from an
// API token, a signed assertion cookie or the session cookie, and stores the
// user on the request context.
type Middleware struct {
	httpClient HTTPDoer
	sessionAPI string
	cookieName string
	adminRole  string
	devBypass  bool
	token      string
	log        *zap.Logger

	// Assertion verification
	assertCookieName string
	assertKeyURL     string
	assertKeyKID     string
	assertIssuer     string
	assertAudience   string
	assertLeeway     time.Duration

	// guarded by mu
	mu         sync.RWMutex
	assertKey  *rsa.PublicKey
	assertETag string
	cacheTTL   time.Duration
	lastFetch  time.Time
}
