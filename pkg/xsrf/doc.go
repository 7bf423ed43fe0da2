// Package xsrf implements the host's double-submit XSRF check and the
// compatibility shim that relaxes it for TensorBoard releases which never echo
// the token back.
//
// Evidence is read from the `_xsrf` argument (query or urlencoded body), the
// X-Xsrftoken and X-Csrftoken headers, and the `_xsrf` cookie. Angular-style
// clients send X-XSRF-TOKEN instead; the shim copies it into X-Xsrftoken before
// the baseline check runs.
//
// The shim only relaxes non-GET/HEAD requests that carry no evidence and target an
// instance older than the version threshold. Those fall back to a Referer origin
// check.
package xsrf
