package registry

import (
	"net/http"
	"sync"

	"github.com/joeydtaylor/tbmux/pkg/manifest"
)

// AppFactory builds the entry point for an inproc instance declared in the manifest.
type AppFactory func(in manifest.Instance) (http.Handler, error)

var (
	appsMu sync.RWMutex
	apps   = map[string]AppFactory{}
)

// RegisterApp makes a factory available under a name referenced by
// `handler = "..."` in manifest.toml.
func RegisterApp(name string, f AppFactory) {
	if name == "" || f == nil {
		panic("registry: app name and factory required")
	}
	appsMu.Lock()
	apps[name] = f
	appsMu.Unlock()
}

// LookupApp retrieves a registered app factory by name.
func LookupApp(name string) (AppFactory, bool) {
	appsMu.RLock()
	defer appsMu.RUnlock()
	f, ok := apps[name]
	return f, ok
}
