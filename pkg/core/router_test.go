package core

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/joeydtaylor/tbmux/pkg/adapter"
	"github.com/joeydtaylor/tbmux/pkg/codec"
	"github.com/joeydtaylor/tbmux/pkg/manifest"
	"github.com/joeydtaylor/tbmux/pkg/middleware/auth"
	hmetrics "github.com/joeydtaylor/tbmux/pkg/middleware/metrics"
	"github.com/joeydtaylor/tbmux/pkg/registry"
	"github.com/joeydtaylor/tbmux/pkg/xsrf"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap/zaptest"
)

const sameOrigin = "http://example.com/tensorboard/1/"

// echoApp reports what the sub-application saw and counts its invocations.
type echoApp struct{ calls atomic.Int32 }

func (e *echoApp) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e.calls.Add(1)
	w.Header().Set("X-Seen-Token", r.Header.Get(xsrf.HeaderXSRFToken))
	fmt.Fprintf(w, "%s %s", r.Method, r.URL.RequestURI())
}

type fixture struct {
	h    http.Handler
	reg  *registry.Memory
	apps map[string]*echoApp
}

type option func(*BuildDeps)

func withBase(u string) option { return func(d *BuildDeps) { d.BaseURL = u } }
func withVariant(v Variant) option { return func(d *BuildDeps) { d.Variant = v } }

func newFixture(t *testing.T, opts ...option) *fixture {
	t.Helper()

	f := &fixture{reg: registry.NewMemory(), apps: map[string]*echoApp{}}
	for name, version := range map[string]string{"1": "2.4.1", "new": "2.10.0", "old": "1.15.0"} {
		app := &echoApp{}
		f.apps[name] = app
		if err := f.reg.Add(registry.Instance{Name: name, Version: version, Kind: "inproc", LogDir: "/runs/" + name, App: app}); err != nil {
			t.Fatal(err)
		}
	}

	a := auth.New(manifest.Auth{DevBypass: true, Token: "secret", AdminRole: "admin"}, zaptest.NewLogger(t))
	base := xsrf.SkipWhen(xsrf.DoubleSubmit{}, func(r *http.Request) bool {
		return a.IsTokenAuthenticated(r.Context())
	})

	d := BuildDeps{
		Registry: f.reg,
		Adapter:  adapter.New(adapter.Options{Mode: adapter.Inline, Logger: zaptest.NewLogger(t)}),
		Shim:     &xsrf.Shim{Base: base, Threshold: "2.5"},
		Auth:     a,
		Metrics:  hmetrics.NewPromHttpHandler(),
		Logger:   zaptest.NewLogger(t),
	}
	for _, o := range opts {
		o(&d)
	}
	f.h = BuildRouter(d)
	return f
}

// do sends r as an authenticated session user.
func (f *fixture) do(r *http.Request) *httptest.ResponseRecorder {
	if r.Header.Get("Authorization") == "" && r.Header.Get("X-Dev-User") == "" {
		r.Header.Set("X-Dev-User", "alice")
		r.Header.Set("X-Dev-Role", "user")
	}
	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, r)
	return rec
}

func TestDispatch_BareRootGetRedirects(t *testing.T) {
	f := newFixture(t)
	for _, m := range []string{http.MethodGet, http.MethodHead} {
		rec := f.do(httptest.NewRequest(m, "/tensorboard/1?run=a%2Fb&x=1", nil))
		if rec.Code != http.StatusMovedPermanently {
			t.Fatalf("%s: status = %d", m, rec.Code)
		}
		if loc := rec.Header().Get("Location"); loc != "/tensorboard/1/?run=a%2Fb&x=1" {
			t.Fatalf("%s: Location = %q", m, loc)
		}
	}
	if n := f.apps["1"].calls.Load(); n != 0 {
		t.Fatalf("sub-application invoked %d times", n)
	}
}

func TestDispatch_BareRootRedirectUnderBaseURL(t *testing.T) {
	f := newFixture(t, withBase("/lab"))
	rec := f.do(httptest.NewRequest(http.MethodGet, "/lab/tensorboard/new", nil))
	if rec.Code != http.StatusMovedPermanently || rec.Header().Get("Location") != "/lab/tensorboard/new/" {
		t.Fatalf("got %d %q", rec.Code, rec.Header().Get("Location"))
	}

	rec = f.do(httptest.NewRequest(http.MethodGet, "/lab/tensorboard/new/data/runs", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "GET /data/runs" {
		t.Fatalf("got %d %q", rec.Code, rec.Body.String())
	}
}

func TestDispatch_BareRootPostForbidden(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"1", "new", "old"} {
		r := httptest.NewRequest(http.MethodPost, "/tensorboard/"+name, nil)
		r.Header.Set("Referer", sameOrigin)
		rec := f.do(r)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("%s: status = %d", name, rec.Code)
		}
		if n := f.apps[name].calls.Load(); n != 0 {
			t.Fatalf("%s: sub-application invoked", name)
		}
	}
}

func TestDispatch_UnknownInstance(t *testing.T) {
	f := newFixture(t)
	for _, m := range []string{http.MethodGet, http.MethodPost} {
		r := httptest.NewRequest(m, "/tensorboard/x/anything", nil)
		r.AddCookie(&http.Cookie{Name: "_xsrf", Value: "tok"})
		rec := f.do(r)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s: status = %d", m, rec.Code)
		}
		if sc := rec.Header().Values("Set-Cookie"); len(sc) != 0 {
			t.Fatalf("%s: unexpected Set-Cookie %v", m, sc)
		}
	}
}

func TestDispatch_UnknownNamesShareOneSeries(t *testing.T) {
	f := newFixture(t)
	f.do(httptest.NewRequest(http.MethodGet, "/tensorboard/seed/x", nil))
	before := testutil.CollectAndCount(hmetrics.DispatchTotal)

	for i := 0; i < 200; i++ {
		rec := f.do(httptest.NewRequest(http.MethodGet, fmt.Sprintf("/tensorboard/junk%d/x", i), nil))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d", rec.Code)
		}
	}
	if after := testutil.CollectAndCount(hmetrics.DispatchTotal); after != before {
		t.Fatalf("dispatch series grew from %d to %d", before, after)
	}
	if v := testutil.ToFloat64(hmetrics.DispatchTotal.WithLabelValues(hmetrics.UnknownInstance, hmetrics.OutcomeNotFound)); v < 201 {
		t.Fatalf("%s not_found = %v", hmetrics.UnknownInstance, v)
	}
}

func TestDispatch_InstanceRemovedBetweenRequests(t *testing.T) {
	f := newFixture(t)
	if rec := f.do(httptest.NewRequest(http.MethodGet, "/tensorboard/old/", nil)); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if err := f.reg.Remove("old"); err != nil {
		t.Fatal(err)
	}
	if rec := f.do(httptest.NewRequest(http.MethodGet, "/tensorboard/old/", nil)); rec.Code != http.StatusNotFound {
		t.Fatalf("status after removal = %d", rec.Code)
	}
}

func TestDispatch_PathRewrite(t *testing.T) {
	f := newFixture(t)
	tests := map[string]string{
		"/tensorboard/1/":                       "GET /",
		"/tensorboard/1/data/runs":              "GET /data/runs",
		"/tensorboard/1/data/plugin/x?tag=loss": "GET /data/plugin/x?tag=loss",
		"/tensorboard/1/a%2Fb/c":                "GET /a%2Fb/c",
	}
	for target, want := range tests {
		rec := f.do(httptest.NewRequest(http.MethodGet, target, nil))
		if rec.Code != http.StatusOK || rec.Body.String() != want {
			t.Fatalf("%s: got %d %q, want %q", target, rec.Code, rec.Body.String(), want)
		}
	}
}

func TestDispatch_ValidTokenForwardedForAnyVersion(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"1", "new", "old"} {
		r := httptest.NewRequest(http.MethodPost, "/tensorboard/"+name+"/data/plugin/hparams", strings.NewReader("{}"))
		r.AddCookie(&http.Cookie{Name: "_xsrf", Value: "2|0a0b|c0ffee|1700000000"})
		r.Header.Set(xsrf.HeaderXSRFToken, "2|0a0b|c0ffee|1700000000")
		rec := f.do(r)
		if rec.Code != http.StatusOK || rec.Body.String() != "POST /data/plugin/hparams" {
			t.Fatalf("%s: got %d %q", name, rec.Code, rec.Body.String())
		}
	}
}

func TestDispatch_RelaxedForOldProtocolSameOrigin(t *testing.T) {
	f := newFixture(t)
	before := testutil.ToFloat64(hmetrics.XSRFRelaxed.WithLabelValues("old"))

	r := httptest.NewRequest(http.MethodPost, "/tensorboard/old/data/plugin/x", nil)
	r.Header.Set("Referer", sameOrigin)
	rec := f.do(r)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %q", rec.Code, rec.Body.String())
	}
	if f.apps["old"].calls.Load() != 1 {
		t.Fatal("sub-application not invoked")
	}
	if after := testutil.ToFloat64(hmetrics.XSRFRelaxed.WithLabelValues("old")); after != before+1 {
		t.Fatalf("relaxed counter %v -> %v", before, after)
	}
}

func TestDispatch_CrossOriginBlocked(t *testing.T) {
	f := newFixture(t)
	r := httptest.NewRequest(http.MethodPost, "/tensorboard/1/data/plugin/x", nil)
	r.Header.Set("Referer", "https://evil.example")
	rec := f.do(r)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "https://evil.example") {
		t.Fatalf("body %q does not name the origin", rec.Body.String())
	}
	if f.apps["1"].calls.Load() != 0 {
		t.Fatal("sub-application invoked")
	}

	r = httptest.NewRequest(http.MethodPost, "/tensorboard/1/data/plugin/x", nil)
	rec = f.do(r)
	if rec.Code != http.StatusForbidden || !strings.Contains(rec.Body.String(), "unknown origin") {
		t.Fatalf("no referer: got %d %q", rec.Code, rec.Body.String())
	}
}

func TestDispatch_NewProtocolNoEvidenceBlocked(t *testing.T) {
	f := newFixture(t)
	for _, ref := range []string{"", sameOrigin, "https://evil.example"} {
		r := httptest.NewRequest(http.MethodPost, "/tensorboard/new/data/plugin/x", nil)
		if ref != "" {
			r.Header.Set("Referer", ref)
		}
		rec := f.do(r)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("referer %q: status = %d", ref, rec.Code)
		}
	}
	if f.apps["new"].calls.Load() != 0 {
		t.Fatal("sub-application invoked")
	}
}

func TestDispatch_AlternateHeaderNormalized(t *testing.T) {
	f := newFixture(t)

	r := httptest.NewRequest(http.MethodGet, "/tensorboard/new/", nil)
	r.Header.Set(xsrf.HeaderAngular, "tok")
	rec := f.do(r)
	if rec.Code != http.StatusOK || rec.Header().Get("X-Seen-Token") != "tok" {
		t.Fatalf("got %d, X-Xsrftoken seen %q", rec.Code, rec.Header().Get("X-Seen-Token"))
	}

	// Behaves exactly like the canonical header on writes.
	for _, name := range []string{"new", "old"} {
		r = httptest.NewRequest(http.MethodPost, "/tensorboard/"+name+"/x", nil)
		r.Header.Set(xsrf.HeaderAngular, "tok")
		r.AddCookie(&http.Cookie{Name: "_xsrf", Value: "tok"})
		if rec := f.do(r); rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", name, rec.Code)
		}
	}
}

func TestDispatch_MirrorsXSRFCookie(t *testing.T) {
	f := newFixture(t)
	const token = "2|0a0b|c0ffee|1700000000"

	r := httptest.NewRequest(http.MethodGet, "/tensorboard/1/", nil)
	r.AddCookie(&http.Cookie{Name: "_xsrf", Value: token})
	rec := f.do(r)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var mirrored *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "XSRF-TOKEN" {
			mirrored = c
		}
	}
	if mirrored == nil || mirrored.Value != token || mirrored.Path != "/" || mirrored.HttpOnly {
		t.Fatalf("mirrored cookie = %+v", mirrored)
	}

	// The redirect branch returns before any mirroring.
	r = httptest.NewRequest(http.MethodGet, "/tensorboard/1", nil)
	r.AddCookie(&http.Cookie{Name: "_xsrf", Value: token})
	if rec := f.do(r); len(rec.Header().Values("Set-Cookie")) != 0 {
		t.Fatalf("redirect set cookies %v", rec.Header().Values("Set-Cookie"))
	}
}

func TestDispatch_RequiresAuthentication(t *testing.T) {
	f := newFixture(t)
	for _, target := range []string{"/tensorboard/1/", "/font-roboto/a.woff2", "/api/tensorboard"} {
		rec := httptest.NewRecorder()
		f.h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: status = %d", target, rec.Code)
		}
	}
}

func TestDispatch_TokenAuthSkipsXSRF(t *testing.T) {
	f := newFixture(t)
	r := httptest.NewRequest(http.MethodPost, "/tensorboard/new/x", nil)
	r.Header.Set("Authorization", "token secret")
	if rec := f.do(r); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestDispatch_OtherMethodsNotAllowed(t *testing.T) {
	f := newFixture(t)
	rec := f.do(httptest.NewRequest(http.MethodPut, "/tensorboard/1/x", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestDispatch_PanicFailsOnlyThatRequest(t *testing.T) {
	f := newFixture(t)
	if err := f.reg.Add(registry.Instance{Name: "bad", Version: "2.5", App: http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})}); err != nil {
		t.Fatal(err)
	}

	if rec := f.do(httptest.NewRequest(http.MethodGet, "/tensorboard/bad/", nil)); rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if !f.reg.Contains("bad") {
		t.Fatal("registry changed by failing request")
	}
	if rec := f.do(httptest.NewRequest(http.MethodGet, "/tensorboard/1/", nil)); rec.Code != http.StatusOK {
		t.Fatalf("next request status = %d", rec.Code)
	}
}

// brokenWriter accepts the status line but fails every body write.
type brokenWriter struct {
	*httptest.ResponseRecorder
	headers int
}

func (b *brokenWriter) WriteHeader(code int) {
	b.headers++
	b.ResponseRecorder.WriteHeader(code)
}

func (b *brokenWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestDispatch_CopyFailureWritesNothingMore(t *testing.T) {
	f := newFixture(t)
	aborted := hmetrics.DispatchTotal.WithLabelValues("1", hmetrics.OutcomeAborted)
	failed := hmetrics.DispatchTotal.WithLabelValues("1", hmetrics.OutcomeFailed)
	abortedBefore, failedBefore := testutil.ToFloat64(aborted), testutil.ToFloat64(failed)

	r := httptest.NewRequest(http.MethodGet, "/tensorboard/1/data", nil)
	r.Header.Set("X-Dev-User", "alice")
	r.Header.Set("X-Dev-Role", "user")
	w := &brokenWriter{ResponseRecorder: httptest.NewRecorder()}
	f.h.ServeHTTP(w, r)

	if w.headers != 1 || w.Code != http.StatusOK {
		t.Fatalf("headers written %d times, status %d", w.headers, w.Code)
	}
	if w.Body.Len() != 0 {
		t.Fatalf("body = %q", w.Body.String())
	}
	if got := testutil.ToFloat64(aborted) - abortedBefore; got != 1 {
		t.Fatalf("aborted delta = %v", got)
	}
	if got := testutil.ToFloat64(failed) - failedBefore; got != 0 {
		t.Fatalf("failed delta = %v", got)
	}
}

func TestDispatch_DefaultShimBlocksNewProtocolWithoutToken(t *testing.T) {
	reg := registry.NewMemory()
	app := &echoApp{}
	if err := reg.Add(registry.Instance{Name: "new", Version: "2.10.0", Kind: "inproc", App: app}); err != nil {
		t.Fatal(err)
	}
	a := auth.New(manifest.Auth{DevBypass: true}, zaptest.NewLogger(t))
	h := BuildRouter(BuildDeps{Registry: reg, Auth: a, Logger: zaptest.NewLogger(t)})

	r := httptest.NewRequest(http.MethodPost, "/tensorboard/new/data/x", nil)
	r.Header.Set("Referer", sameOrigin)
	r.Header.Set("X-Dev-User", "alice")
	r.Header.Set("X-Dev-Role", "user")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	if rec.Code != http.StatusForbidden || app.calls.Load() != 0 {
		t.Fatalf("status = %d calls = %d", rec.Code, app.calls.Load())
	}
}

func TestFont_PassThrough(t *testing.T) {
	f := newFixture(t, withBase("/lab"))
	rec := f.do(httptest.NewRequest(http.MethodGet, "/lab/font-roboto/a.woff2", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "GET /font-roboto/a.woff2" {
		t.Fatalf("got %d %q", rec.Code, rec.Body.String())
	}

	if err := f.reg.Remove("1"); err != nil {
		t.Fatal(err)
	}
	if rec := f.do(httptest.NewRequest(http.MethodGet, "/lab/font-roboto/a.woff2", nil)); rec.Code != http.StatusNotFound {
		t.Fatalf("status without instance 1 = %d", rec.Code)
	}
}

func TestAPI_ListAndGet(t *testing.T) {
	f := newFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/tensorboard", nil))
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("got %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	var list []InstanceInfo
	if err := codec.JSONStrict.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 || list[0].Name != "1" || list[0].LogDir != "/runs/1" || list[0].Version != "2.4.1" {
		t.Fatalf("list = %+v", list)
	}

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/tensorboard/new", nil))
	var one InstanceInfo
	if err := codec.JSONStrict.Unmarshal(rec.Body.Bytes(), &one); err != nil {
		t.Fatal(err)
	}
	if one.Name != "new" || one.Kind != "inproc" {
		t.Fatalf("instance = %+v", one)
	}

	if rec := f.do(httptest.NewRequest(http.MethodGet, "/api/tensorboard/missing", nil)); rec.Code != http.StatusNotFound {
		t.Fatalf("missing: status = %d", rec.Code)
	}
}

func TestAPI_Delete(t *testing.T) {
	f := newFixture(t)

	// Session user without the admin role.
	r := httptest.NewRequest(http.MethodDelete, "/api/tensorboard/old", nil)
	if rec := f.do(r); rec.Code != http.StatusForbidden {
		t.Fatalf("non-admin: status = %d", rec.Code)
	}

	// Admin session user still needs the double-submit token.
	r = httptest.NewRequest(http.MethodDelete, "/api/tensorboard/old", nil)
	r.Header.Set("X-Dev-User", "root")
	r.Header.Set("X-Dev-Role", "admin")
	if rec := f.do(r); rec.Code != http.StatusForbidden {
		t.Fatalf("admin without xsrf: status = %d", rec.Code)
	}

	r = httptest.NewRequest(http.MethodDelete, "/api/tensorboard/old", nil)
	r.Header.Set("X-Dev-User", "root")
	r.Header.Set("X-Dev-Role", "admin")
	r.Header.Set(xsrf.HeaderXSRFToken, "tok")
	r.AddCookie(&http.Cookie{Name: "_xsrf", Value: "tok"})
	if rec := f.do(r); rec.Code != http.StatusNoContent {
		t.Fatalf("admin: status = %d", rec.Code)
	}
	if f.reg.Contains("old") {
		t.Fatal("instance still registered")
	}

	r = httptest.NewRequest(http.MethodDelete, "/api/tensorboard/old", nil)
	r.Header.Set("X-Dev-User", "root")
	r.Header.Set("X-Dev-Role", "admin")
	r.Header.Set(xsrf.HeaderXSRFToken, "tok")
	r.AddCookie(&http.Cookie{Name: "_xsrf", Value: "tok"})
	if rec := f.do(r); rec.Code != http.StatusNotFound {
		t.Fatalf("second delete: status = %d", rec.Code)
	}
}

func TestStubVariant(t *testing.T) {
	f := newFixture(t, withVariant(Stub))
	for _, target := range []string{"/tensorboard/1/", "/tensorboard/1", "/api/tensorboard", "/font-roboto/a.woff2"} {
		rec := f.do(httptest.NewRequest(http.MethodGet, target, nil))
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s: status = %d", target, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "tensorboard unavailable") {
			t.Fatalf("%s: body %q", target, rec.Body.String())
		}
	}
	if f.apps["1"].calls.Load() != 0 {
		t.Fatal("stub invoked a sub-application")
	}

	rec := f.do(httptest.NewRequest(http.MethodGet, "/ping", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("/ping status = %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(httptest.NewRequest(http.MethodGet, "/tensorboard/1/", nil))

	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if rec.Code != http.StatusOK || !strings.Contains(string(body), "tbmux_dispatch_total") {
		t.Fatalf("metrics: %d", rec.Code)
	}
}
