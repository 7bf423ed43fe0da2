package xsrf

import "net/http"

// Decision records how a request passed the shim.
type Decision int

const (
	// Verified means the baseline check accepted the request.
	Verified Decision = iota
	// Relaxed means the baseline failed and the Referer fallback accepted it.
	Relaxed
)

func (d Decision) String() string {
	if d == Relaxed {
		return "relaxed"
	}
	return "verified"
}

// Shim wraps the host baseline for requests addressed to a TensorBoard instance.
type Shim struct {
	Base       Checker
	Origin     OriginPolicy
	Threshold  string
	CookieName string
}

// Check validates r for an instance that declares version. It may set the
// X-Xsrftoken header on r when only X-XSRF-TOKEN was sent. An empty or
// unparseable Threshold is treated as DefaultThreshold.
func (s *Shim) Check(r *http.Request, version string) (Decision, error) {
	threshold := s.Threshold
	if !ValidVersion(threshold) {
		threshold = DefaultThreshold
	}
	tbHasProtocol := AtLeast(version, threshold)

	cookie := s.CookieName
	if cookie == "" {
		cookie = ArgName
	}
	ev := Collect(r, cookie)
	reqHasEvidence := ev.Present()

	if ev.Alternate != "" && !reqHasEvidence {
		r.Header.Set(HeaderXSRFToken, ev.Alternate)
		ev.XSRFHeader = ev.Alternate
		reqHasEvidence = true
	}

	err := checkWith(s.Base, r, ev)
	if err == nil {
		return Verified, nil
	}

	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return Verified, err
	}
	if reqHasEvidence || tbHasProtocol {
		return Verified, err
	}
	if !s.Origin.CheckReferer(r) {
		return Verified, &OriginError{Referer: r.Header.Get("Referer")}
	}
	return Relaxed, nil
}
