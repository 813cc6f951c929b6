package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/mohammed-shakir/point-catalog/internal/logger"
)

type fakeHandler struct {
	catalog, index int
	lastQ          CatalogRequest
}

func (f *fakeHandler) HandleCatalog(_ context.Context, w http.ResponseWriter, _ *http.Request, q CatalogRequest) {
	f.catalog++
	f.lastQ = q
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeHandler) HandleIndex(_ context.Context, w http.ResponseWriter, _ *http.Request, q CatalogRequest) {
	f.index++
	f.lastQ = q
	w.WriteHeader(http.StatusAccepted)
}

func TestHandlers_SeamDispatch(t *testing.T) {
	h := &fakeHandler{}
	q := url.Values{}
	q.Set("base", "https://example.com/tiles")
	q.Set("format", "fgb")

	rr := httptest.NewRecorder()
	HandleCatalog(logger.Discard(), testConfig(), h)(rr, request(q))
	if rr.Code != http.StatusNoContent || h.catalog != 1 {
		t.Fatalf("catalog: code=%d calls=%d", rr.Code, h.catalog)
	}
	if h.lastQ.Source.Base != "https://example.com/tiles" {
		t.Fatalf("handler did not receive parsed query: %+v", h.lastQ)
	}

	rr = httptest.NewRecorder()
	HandleIndex(logger.Discard(), testConfig(), h)(rr, request(q))
	if rr.Code != http.StatusAccepted || h.index != 1 {
		t.Fatalf("index: code=%d calls=%d", rr.Code, h.index)
	}
}

func TestHandlers_BadRequestSkipsHandler(t *testing.T) {
	h := &fakeHandler{}
	rr := httptest.NewRecorder()
	HandleCatalog(logger.Discard(), testConfig(), h)(rr, request(url.Values{}))
	if rr.Code != http.StatusBadRequest || h.catalog != 0 {
		t.Fatalf("code=%d calls=%d", rr.Code, h.catalog)
	}
}
