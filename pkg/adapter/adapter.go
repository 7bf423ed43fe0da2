// Package adapter invokes a sub-application's synchronous entry point on behalf
// of the front-end and copies the status, headers and body it produced back onto
// the outward response without rewriting them.
//
// Inline mode runs the entry point on the request goroutine. Pool mode bounds the
// number of concurrent invocations with a weighted semaphore; the request
// goroutine waits on a per-request completion channel, so a response always goes
// back to the connection that issued it.
package adapter

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/joeydtaylor/tbmux/pkg/middleware/metrics"
	"github.com/joeydtaylor/tbmux/pkg/registry"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

type Mode string

const (
	Inline Mode = "inline"
	Pool   Mode = "pool"
)

// ErrSaturated is returned when a pool slot could not be acquired before the
// request was cancelled.
var ErrSaturated = errors.New("adapter: no worker available")

// ErrCopy is returned when the captured response could not be written out.
// The status line and headers have already gone to the client by then.
var ErrCopy = errors.New("adapter: copy response")

type Options struct {
	Mode    Mode
	Workers int
	Logger  *zap.Logger
}

type Adapter struct {
	mode Mode
	sem  *semaphore.Weighted
	log  *zap.Logger
}

type result struct {
	resp     *capture
	panicked any
}

func New(opts Options) *Adapter {
	a := &Adapter{mode: opts.Mode, log: opts.Logger}
	if a.log == nil {
		a.log = zap.NewNop()
	}
	if a.mode == "" {
		a.mode = Inline
	}
	if a.mode == Pool {
		n := opts.Workers
		if n < 1 {
			n = 1
		}
		a.sem = semaphore.NewWeighted(int64(n))
	}
	return a
}

func (a *Adapter) Mode() Mode { return a.mode }

// Serve runs inst.App against r and replays its response onto w.
// A panic in the entry point is re-raised on the calling goroutine after it
// has been logged, so only the current request fails.
func (a *Adapter) Serve(w http.ResponseWriter, r *http.Request, inst *registry.Instance) error {
	var res result
	switch a.mode {
	case Pool:
		if err := a.sem.Acquire(r.Context(), 1); err != nil {
			return fmt.Errorf("%w: %v", ErrSaturated, err)
		}
		done := make(chan result, 1)
		go func() {
			defer a.sem.Release(1)
			done <- a.invoke(r, inst)
		}()
		res = <-done
	default:
		res = a.invoke(r, inst)
	}

	if res.panicked != nil {
		if res.panicked != http.ErrAbortHandler {
			a.log.Error("sub-application failed",
				zap.String("instance", inst.Name),
				zap.String("path", r.URL.Path),
				zap.Any("panic", res.panicked),
			)
		}
		panic(res.panicked)
	}
	if err := res.resp.copyTo(w); err != nil {
		return fmt.Errorf("%w: %v", ErrCopy, err)
	}
	return nil
}

func (a *Adapter) invoke(r *http.Request, inst *registry.Instance) (res result) {
	metrics.AdapterInflight.Inc()
	start := time.Now()
	defer func() {
		metrics.AdapterInflight.Dec()
		metrics.ObserveAdapter(inst.Name, time.Since(start))
		if p := recover(); p != nil {
			res.panicked = p
		}
	}()

	c := newCapture()
	inst.App.ServeHTTP(c, r)
	return result{resp: c}
}
