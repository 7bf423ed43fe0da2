package xsrf

import (
	"net/http"
	"net/url"
	"regexp"
)

// OriginPolicy decides whether a Referer counts as same-origin.
type OriginPolicy struct {
	// AllowOrigin is an exact origin, or "*" for any.
	AllowOrigin string
	// AllowOriginPat must match at the start of the origin.
	AllowOriginPat *regexp.Regexp
}

// CheckReferer reports whether r's Referer matches its Host or an allowed origin.
// A missing Host or Referer never passes.
func (p OriginPolicy) CheckReferer(r *http.Request) bool {
	host := r.Host
	referer := r.Header.Get("Referer")
	if host == "" || referer == "" {
		return false
	}
	u, err := url.Parse(referer)
	if err != nil {
		return false
	}
	if u.Host == host {
		return true
	}

	origin := u.Scheme + "://" + u.Host
	switch {
	case p.AllowOrigin != "":
		return p.AllowOrigin == "*" || p.AllowOrigin == origin
	case p.AllowOriginPat != nil:
		loc := p.AllowOriginPat.FindStringIndex(origin)
		return loc != nil && loc[0] == 0
	}
	return false
}
