package xsrf

import (
	"fmt"
	"regexp"

	"golang.org/x/mod/semver"
)

// DefaultThreshold is the first TensorBoard release that speaks the XSRF
// protocol.
const DefaultThreshold = "2.5"

var looseVersion = regexp.MustCompile(`^\s*v?(\d+)(?:\.(\d+))?(?:\.(\d+))?`)

// ValidVersion reports whether s has a leading numeric version AtLeast can compare.
func ValidVersion(s string) bool {
	_, ok := canonical(s)
	return ok
}

// AtLeast reports whether version >= threshold, comparing the leading numeric
// components only ("2.5.0rc1" counts as 2.5.0). An unparseable version is below
// every threshold.
func AtLeast(version, threshold string) bool {
	v, ok := canonical(version)
	if !ok {
		return false
	}
	t, ok := canonical(threshold)
	if !ok {
		return false
	}
	return semver.Compare(v, t) >= 0
}

func canonical(s string) (string, bool) {
	m := looseVersion.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	part := func(p string) string {
		if p == "" {
			return "0"
		}
		return p
	}
	v := fmt.Sprintf("v%s.%s.%s", m[1], part(m[2]), part(m[3]))
	if !semver.IsValid(v) {
		return "", false
	}
	return v, true
}
