// Package registry holds the live TensorBoard instances the dispatcher addresses
// by name. Instances are immutable once registered; replacing one means removing
// it and adding a new value.
package registry

import (
	"errors"
	"net/http"
)

var (
	ErrInstanceNotFound = errors.New("registry: instance not found")
	ErrDuplicate        = errors.New("registry: instance already registered")
	ErrInvalidInstance  = errors.New("registry: instance needs a name and an app")
)

// Instance is one named sub-application reachable through the registry.
type Instance struct {
	Name     string
	Version  string
	Kind     string
	LogDir   string
	Upstream string

	// App is the synchronous entry point. It runs to completion before returning.
	App http.Handler
}

// Registry is the read side the dispatcher consumes.
type Registry interface {
	Contains(name string) bool
	Get(name string) (*Instance, error)
	// Lookup is a single consistent read of membership and handle.
	Lookup(name string) (*Instance, bool)
	List() []Instance
}

// Remover is implemented by registries that allow instances to be dropped
// through the control API.
type Remover interface {
	Remove(name string) error
}
