package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type fakeSamples struct {
	mu   sync.Mutex
	one  []string
	all  int
	fail error
}

func (f *fakeSamples) Invalidate(_ context.Context, catalog, collection string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.one = append(f.one, catalog+"|"+collection)
	return f.fail
}

func (f *fakeSamples) InvalidateAll(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.all++
	return f.fail
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, target, nil))
	return rr
}

func TestSampleCache_InvalidateOne(t *testing.T) {
	s := &fakeSamples{}
	h := NewRouter(Options{Samples: s})

	rr := do(t, h, http.MethodDelete, "/sample-cache?catalog=https%3A%2F%2Fcat.example%2Fapi&collection=landsat8")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if len(s.one) != 1 || s.one[0] != "https://cat.example/api|landsat8" {
		t.Fatalf("calls=%v", s.one)
	}
	if !strings.Contains(rr.Body.String(), `"invalidated":"collection"`) {
		t.Fatalf("body=%s", rr.Body.String())
	}
}

func TestSampleCache_InvalidateAll(t *testing.T) {
	s := &fakeSamples{}
	h := NewRouter(Options{Samples: s})
	if rr := do(t, h, http.MethodDelete, "/sample-cache"); rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if s.all != 1 || len(s.one) != 0 {
		t.Fatalf("all=%d one=%v", s.all, s.one)
	}
}

func TestSampleCache_PartialQueryRejected(t *testing.T) {
	s := &fakeSamples{}
	h := NewRouter(Options{Samples: s})
	if rr := do(t, h, http.MethodDelete, "/sample-cache?collection=landsat8"); rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d want 400", rr.Code)
	}
	if s.all != 0 || len(s.one) != 0 {
		t.Fatalf("nothing should be invalidated")
	}
}

func TestSampleCache_FailureIs502(t *testing.T) {
	h := NewRouter(Options{Samples: &fakeSamples{fail: errors.New("redis down")}})
	if rr := do(t, h, http.MethodDelete, "/sample-cache"); rr.Code != http.StatusBadGateway {
		t.Fatalf("status=%d want 502", rr.Code)
	}
}

func TestRouter_ProbesAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "admin_test_total", Help: "t"}))
	h := NewRouter(Options{Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})})

	if rr := do(t, h, http.MethodGet, "/healthz"); rr.Code != http.StatusOK {
		t.Fatalf("healthz=%d", rr.Code)
	}
	if rr := do(t, h, http.MethodGet, "/readyz"); rr.Code != http.StatusOK {
		t.Fatalf("readyz=%d", rr.Code)
	}
	rr := do(t, h, http.MethodGet, "/metrics")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "admin_test_total") {
		t.Fatalf("metrics=%d body=%s", rr.Code, rr.Body.String())
	}
	if rr := do(t, h, http.MethodDelete, "/sample-cache"); rr.Code != http.StatusNotFound && rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("sample-cache without a cache should not be routed, got %d", rr.Code)
	}
}
