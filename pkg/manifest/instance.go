package manifest

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
)

// InstanceKind enumerates how a seeded instance is backed.
type InstanceKind string

const (
	KindProxy  InstanceKind = "proxy"
	KindStatic InstanceKind = "static"
	KindInproc InstanceKind = "inproc"
)

var instanceName = regexp.MustCompile(`^\w+$`)

// Instance seeds one registry entry at startup.
type Instance struct {
	Name     string       `toml:"name" validate:"required"`
	Version  string       `toml:"version"`
	Kind     InstanceKind `toml:"kind"`
	Upstream string       `toml:"upstream"`
	Dir      string       `toml:"dir"`
	Handler  string       `toml:"handler"`
	LogDir   string       `toml:"logdir"`
}

func (in *Instance) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Version = strings.TrimSpace(in.Version)
	in.Kind = InstanceKind(strings.ToLower(strings.TrimSpace(string(in.Kind))))
	if in.Kind == "" {
		in.Kind = KindProxy
	}
	in.Upstream = strings.TrimRight(strings.TrimSpace(in.Upstream), "/")
	if in.Dir != "" {
		in.Dir = path.Clean(in.Dir)
	}
}

func (in *Instance) validate() error {
	if !instanceName.MatchString(in.Name) {
		return fmt.Errorf("name %q must match \\w+", in.Name)
	}
	switch in.Kind {
	case KindProxy:
		if in.Upstream == "" {
			return errors.New("upstream required for proxy")
		}
		if !strings.HasPrefix(in.Upstream, "http://") && !strings.HasPrefix(in.Upstream, "https://") {
			return fmt.Errorf("upstream %q must be an http(s) URL", in.Upstream)
		}
	case KindStatic:
		if in.Dir == "" {
			return errors.New("dir required for static")
		}
	case KindInproc:
		if strings.TrimSpace(in.Handler) == "" {
			return errors.New("handler required for inproc")
		}
	default:
		return fmt.Errorf("unknown kind %q", in.Kind)
	}
	return nil
}
