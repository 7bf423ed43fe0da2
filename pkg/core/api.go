package core

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/joeydtaylor/tbmux/pkg/codec"
	"github.com/joeydtaylor/tbmux/pkg/registry"
	"github.com/joeydtaylor/tbmux/pkg/xsrf"
	"go.uber.org/zap"
)

// InstanceInfo is the listing API's view of a registered instance.
type InstanceInfo struct {
	Name    string `json:"name"`
	LogDir  string `json:"logdir"`
	Kind    string `json:"kind"`
	Version string `json:"version"`
}

func infoOf(in registry.Instance) InstanceInfo {
	return InstanceInfo{Name: in.Name, LogDir: in.LogDir, Kind: in.Kind, Version: in.Version}
}

type instanceAPI struct {
	reg  registry.Registry
	base xsrf.Checker
	log  *zap.Logger
}

func (a *instanceAPI) list(w http.ResponseWriter, r *http.Request) {
	all := a.reg.List()
	out := make([]InstanceInfo, 0, len(all))
	for _, in := range all {
		out = append(out, infoOf(in))
	}
	a.respond(w, out, http.StatusOK)
}

func (a *instanceAPI) get(w http.ResponseWriter, r *http.Request) {
	in, err := a.reg.Get(chi.URLParam(r, "instance"))
	if err != nil {
		writeError(w, err)
		return
	}
	a.respond(w, infoOf(*in), http.StatusOK)
}

func (a *instanceAPI) remove(w http.ResponseWriter, r *http.Request) {
	if err := a.base.Check(r); err != nil {
		writeError(w, err)
		return
	}
	rm, ok := a.reg.(registry.Remover)
	if !ok {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	name := chi.URLParam(r, "instance")
	if err := rm.Remove(name); err != nil {
		if !errors.Is(err, registry.ErrInstanceNotFound) {
			a.log.Error("remove instance", zap.String("instance", name), zap.Error(err))
		}
		writeError(w, err)
		return
	}
	a.log.Info("instance removed", zap.String("instance", name))
	w.WriteHeader(http.StatusNoContent)
}

func (a *instanceAPI) respond(w http.ResponseWriter, v any, status int) {
	b, err := codec.JSONStrict.Marshal(v)
	if err != nil {
		a.log.Error("encode response", zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, b, status)
}

func writeJSON(w http.ResponseWriter, payload []byte, status int) {
	w.Header().Set("Content-Type", codec.JSONStrict.ContentType())
	w.WriteHeader(status)
	if len(payload) > 0 {
		_, _ = w.Write(payload)
		return
	}
	_, _ = w.Write([]byte(`{}`))
}
