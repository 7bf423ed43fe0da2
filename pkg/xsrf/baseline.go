package xsrf

import (
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"regexp"
	"strings"
)

// Checker is the host's baseline XSRF capability.
type Checker interface {
	Check(r *http.Request) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(r *http.Request) error

func (f CheckerFunc) Check(r *http.Request) error { return f(r) }

// EvidenceChecker is a Checker that can reuse evidence already collected
// from the request instead of reading it again.
type EvidenceChecker interface {
	Checker
	CheckEvidence(r *http.Request, ev Evidence) error
}

func checkWith(c Checker, r *http.Request, ev Evidence) error {
	if ec, ok := c.(EvidenceChecker); ok {
		return ec.CheckEvidence(r, ev)
	}
	return c.Check(r)
}

// Disabled accepts every request.
var Disabled Checker = CheckerFunc(func(*http.Request) error { return nil })

// SkipWhen bypasses base for requests matching skip, e.g. token-authenticated ones.
func SkipWhen(base Checker, skip func(*http.Request) bool) Checker {
	return skipper{base: base, skip: skip}
}

type skipper struct {
	base Checker
	skip func(*http.Request) bool
}

func (s skipper) Check(r *http.Request) error {
	if s.skip(r) {
		return nil
	}
	return s.base.Check(r)
}

func (s skipper) CheckEvidence(r *http.Request, ev Evidence) error {
	if s.skip(r) {
		return nil
	}
	return checkWith(s.base, r, ev)
}

// DoubleSubmit compares the submitted token with the `_xsrf` cookie.
// Safe methods are never checked.
type DoubleSubmit struct {
	CookieName string
}

func (d DoubleSubmit) Check(r *http.Request) error {
	if safeMethod(r.Method) {
		return nil
	}
	name := d.CookieName
	if name == "" {
		name = ArgName
	}
	return d.CheckEvidence(r, Collect(r, name))
}

// CheckEvidence validates ev without reading the body of r again.
func (d DoubleSubmit) CheckEvidence(r *http.Request, ev Evidence) error {
	if safeMethod(r.Method) {
		return nil
	}
	name := d.CookieName
	if name == "" {
		name = ArgName
	}
	if name != ev.CookieName {
		ev.Cookie = ""
		if c, err := r.Cookie(name); err == nil {
			ev.Cookie = c.Value
		}
	}

	submitted := ev.Token()
	if submitted == "" {
		return ErrMissingArgument
	}
	got, ok := decodeToken(submitted)
	if !ok {
		return ErrInvalidFormat
	}
	if ev.Cookie == "" {
		return ErrMismatch
	}
	want, ok := decodeToken(ev.Cookie)
	if !ok || len(want) == 0 {
		return ErrMismatch
	}
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return ErrMismatch
	}
	return nil
}

func safeMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

var versionedToken = regexp.MustCompile(`^([1-9][0-9]*)\|`)

// decodeToken unwraps a token into its raw bytes. Version 2 tokens are
// "2|mask|masked|timestamp" with the token XOR-masked; unversioned tokens
// are hex when they parse as hex and raw bytes otherwise.
func decodeToken(s string) ([]byte, bool) {
	if m := versionedToken.FindStringSubmatch(s); m != nil {
		if m[1] != "2" {
			return nil, false
		}
		parts := strings.Split(s, "|")
		if len(parts) != 4 {
			return nil, false
		}
		mask, err := hex.DecodeString(parts[1])
		if err != nil || len(mask) == 0 {
			return nil, false
		}
		masked, err := hex.DecodeString(parts[2])
		if err != nil {
			return nil, false
		}
		return unmask(mask, masked), true
	}
	if b, err := hex.DecodeString(s); err == nil {
		return b, true
	}
	return []byte(s), true
}

func unmask(mask, data []byte) []byte {
	out := make([]byte, len(data))
	for i := range data {
		out[i] = data[i] ^ mask[i%len(mask)]
	}
	return out
}
