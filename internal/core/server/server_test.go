package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mohammed-shakir/point-catalog/internal/core/config"
	"github.com/mohammed-shakir/point-catalog/internal/core/health"
	"github.com/mohammed-shakir/point-catalog/internal/core/middleware"
	"github.com/mohammed-shakir/point-catalog/internal/core/router"
	"github.com/mohammed-shakir/point-catalog/internal/logger"
)

type stubHandler struct {
	catalog, index int
	last           router.CatalogRequest
}

func (s *stubHandler) HandleCatalog(_ context.Context, w http.ResponseWriter, _ *http.Request, q router.CatalogRequest) {
	s.catalog++
	s.last = q
	w.WriteHeader(http.StatusOK)
}

func (s *stubHandler) HandleIndex(_ context.Context, w http.ResponseWriter, _ *http.Request, q router.CatalogRequest) {
	s.index++
	s.last = q
	w.Header().Set("Content-Type", q.Format.ContentType())
	w.WriteHeader(http.StatusOK)
}

func TestNewHandler_Routes(t *testing.T) {
	cfg := config.Config{Pattern: "*.laz", EquivalencePolicy: "normalized", EdgeSamples: 11}
	stub := &stubHandler{}
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("# metrics")) })
	ready := health.ReadinessFunc(func() (bool, string) { return false, "warming" })
	h := NewHandler(cfg, logger.Discard(), stub, metrics, ready)

	get := func(path string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		return rr
	}

	if rr := get("/healthz"); rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("healthz: %d %q", rr.Code, rr.Body.String())
	}
	if rr := get("/readyz"); rr.Code != http.StatusServiceUnavailable || !strings.Contains(rr.Body.String(), "warming") {
		t.Fatalf("readyz: %d %q", rr.Code, rr.Body.String())
	}
	if rr := get("/metrics"); rr.Body.String() != "# metrics" {
		t.Fatalf("metrics: %q", rr.Body.String())
	}

	rr := get("/catalog?base=https://example.com/tiles/")
	if rr.Code != http.StatusOK || stub.catalog != 1 {
		t.Fatalf("catalog: %d calls=%d", rr.Code, stub.catalog)
	}
	if stub.last.Source.Pattern != "*.laz" {
		t.Fatalf("default pattern not applied: %+v", stub.last.Source)
	}
	if rr.Header().Get(middleware.RequestIDHeader) == "" {
		t.Fatalf("request id header missing")
	}

	rr = get("/catalog/index?base=https://example.com/tiles/&format=fgb")
	if rr.Code != http.StatusOK || stub.index != 1 || rr.Header().Get("Content-Type") != "application/flatgeobuf" {
		t.Fatalf("index: %d calls=%d ct=%q", rr.Code, stub.index, rr.Header().Get("Content-Type"))
	}

	if rr := get("/catalog"); rr.Code != http.StatusBadRequest {
		t.Fatalf("missing base: %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/catalog", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("post: %d", rr.Code)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	cfg := config.Config{Addr: "127.0.0.1:0"}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, cfg, logger.Discard(), &stubHandler{}, nil) }()
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
}
