package registry

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"path/filepath"

	"github.com/joeydtaylor/tbmux/pkg/manifest"
	"go.uber.org/zap"
)

// Seed builds a Memory registry from the manifest's instance list. Relative
// static dirs and logdirs resolve against contentRoot.
func Seed(ins []manifest.Instance, contentRoot string, log *zap.Logger) (*Memory, error) {
	if log == nil {
		log = zap.NewNop()
	}
	reg := NewMemory()
	for _, in := range ins {
		app, err := buildApp(in, contentRoot, log)
		if err != nil {
			return nil, fmt.Errorf("instance %q: %w", in.Name, err)
		}
		if err := reg.Add(Instance{
			Name:     in.Name,
			Version:  in.Version,
			Kind:     string(in.Kind),
			LogDir:   resolve(contentRoot, in.LogDir),
			Upstream: in.Upstream,
			App:      app,
		}); err != nil {
			return nil, fmt.Errorf("instance %q: %w", in.Name, err)
		}
		log.Info("instance registered",
			zap.String("instance", in.Name),
			zap.String("kind", string(in.Kind)),
			zap.String("version", in.Version),
		)
	}
	return reg, nil
}

func buildApp(in manifest.Instance, contentRoot string, log *zap.Logger) (http.Handler, error) {
	switch in.Kind {
	case manifest.KindProxy:
		u, err := url.Parse(in.Upstream)
		if err != nil {
			return nil, err
		}
		return newUpstreamProxy(in.Name, u, log), nil
	case manifest.KindStatic:
		return http.FileServer(http.Dir(resolve(contentRoot, in.Dir))), nil
	case manifest.KindInproc:
		f, ok := LookupApp(in.Handler)
		if !ok {
			return nil, fmt.Errorf("app %q not registered", in.Handler)
		}
		return f(in)
	default:
		return nil, fmt.Errorf("unknown kind %q", in.Kind)
	}
}

func newUpstreamProxy(name string, target *url.URL, log *zap.Logger) http.Handler {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			log.Warn("upstream unreachable",
				zap.String("instance", name),
				zap.String("upstream", target.String()),
				zap.Error(err),
			)
			http.Error(w, "Bad Gateway", http.StatusBadGateway)
		},
	}
}

func resolve(root, p string) string {
	if p == "" || root == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}
