// Package router validates catalog query parameters and dispatches them.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mohammed-shakir/point-catalog/internal/catalog"
	"github.com/mohammed-shakir/point-catalog/internal/core/config"
	"github.com/mohammed-shakir/point-catalog/internal/core/observability"
	"github.com/mohammed-shakir/point-catalog/internal/crs"
	"github.com/mohammed-shakir/point-catalog/internal/discovery"
	"github.com/mohammed-shakir/point-catalog/internal/export"
	"github.com/mohammed-shakir/point-catalog/internal/reader"
)

const maxEdgeSamples = 1000

// CatalogRequest is a validated catalog query.
type CatalogRequest struct {
	Kind        reader.Kind
	Source      catalog.Source
	Policy      crs.Policy
	ScanHeaders bool
	CheckCRS    bool
	TargetCRS   crs.Descriptor
	EdgeSamples int
	H3Res       *int
	H3Parent    *int
	Format      export.Format
	Publish     bool
}

// receives validated catalog requests and serves them
type CatalogHandler interface {
	HandleCatalog(ctx context.Context, w http.ResponseWriter, r *http.Request, q CatalogRequest)
	HandleIndex(ctx context.Context, w http.ResponseWriter, r *http.Request, q CatalogRequest)
}

// HandleCatalog serves GET /catalog.
func HandleCatalog(logger *slog.Logger, cfg config.Config, h CatalogHandler) http.HandlerFunc {
	return handle(logger, cfg, "/catalog", h.HandleCatalog)
}

// HandleIndex serves GET /catalog/index, which additionally takes format.
func HandleIndex(logger *slog.Logger, cfg config.Config, h CatalogHandler) http.HandlerFunc {
	return handle(logger, cfg, "/catalog/index", h.HandleIndex)
}

type dispatch func(ctx context.Context, w http.ResponseWriter, r *http.Request, q CatalogRequest)

func handle(logger *slog.Logger, cfg config.Config, route string, next dispatch) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}

		q, warn, err := ParseCatalogRequest(r, cfg)
		if warn != "" {
			logger.WarnContext(r.Context(), warn)
		}
		if err != nil {
			http.Error(sw, err.Error(), http.StatusBadRequest)
			observability.ObserveHTTP(r.Method, route, http.StatusBadRequest, time.Since(start).Seconds())
			return
		}

		next(r.Context(), sw, r, q)
		observability.ObserveHTTP(r.Method, route, sw.code, time.Since(start).Seconds())
	}
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func ParseCatalogRequest(r *http.Request, cfg config.Config) (CatalogRequest, string, error) {
	var warn string
	v := r.URL.Query()

	base := strings.TrimSpace(v.Get("base"))
	var assets []string
	for _, a := range v["asset"] {
		if a = strings.TrimSpace(a); a != "" {
			assets = append(assets, a)
		}
	}
	if base == "" && len(assets) == 0 {
		return CatalogRequest{}, "", errors.New("missing required parameter: base (or asset)")
	}
	pattern := strings.TrimSpace(v.Get("pattern"))
	if len(assets) > 0 && pattern != "" {
		warn = "both asset list and pattern supplied; ignoring pattern"
		pattern = ""
	}
	if len(assets) == 0 && pattern == "" {
		pattern = cfg.Pattern
	}
	if !cfg.AllowLocal {
		if base != "" && !discovery.IsRemote(base) {
			return CatalogRequest{}, warn, fmt.Errorf("local base %q is not served", base)
		}
		for _, a := range assets {
			if !discovery.IsRemote(a) {
				return CatalogRequest{}, warn, fmt.Errorf("local asset %q is not served", a)
			}
		}
	}
	for _, loc := range append([]string{base}, assets...) {
		if discovery.IsRemote(loc) {
			if _, err := url.ParseRequestURI(loc); err != nil {
				return CatalogRequest{}, warn, fmt.Errorf("invalid url %q: %w", loc, err)
			}
		}
	}

	q := CatalogRequest{
		Kind:   reader.Kind(strings.ToLower(strings.TrimSpace(v.Get("kind")))),
		Source: catalog.Source{Base: base, Pattern: pattern, Assets: assets},
	}
	if q.Kind == "" {
		q.Kind = reader.KindPoints
	}

	policy := v.Get("policy")
	if policy == "" {
		policy = cfg.EquivalencePolicy
	}
	p, err := crs.ParsePolicy(policy)
	if err != nil {
		return CatalogRequest{}, warn, err
	}
	q.Policy = p

	if q.ScanHeaders, err = parseBool(v, "scan_headers", cfg.ScanHeaders); err != nil {
		return CatalogRequest{}, warn, err
	}
	if q.CheckCRS, err = parseBool(v, "crs_check", cfg.CRSCheck); err != nil {
		return CatalogRequest{}, warn, err
	}
	if q.Publish, err = parseBool(v, "publish", false); err != nil {
		return CatalogRequest{}, warn, err
	}

	if t := strings.TrimSpace(v.Get("target_crs")); t != "" {
		if _, err := crs.Parse(crs.Descriptor(t)); err != nil {
			return CatalogRequest{}, warn, fmt.Errorf("invalid target_crs: %w", err)
		}
		q.TargetCRS = crs.Descriptor(t)
	}

	q.EdgeSamples = cfg.EdgeSamples
	if s := v.Get("edge_samples"); s != "" {
		n, err := parseInt(s, 2, maxEdgeSamples)
		if err != nil {
			return CatalogRequest{}, warn, fmt.Errorf("edge_samples: %w", err)
		}
		q.EdgeSamples = n
	}

	if s := v.Get("h3_res"); s != "" {
		n, err := parseInt(s, 0, 15)
		if err != nil {
			return CatalogRequest{}, warn, fmt.Errorf("h3_res: %w", err)
		}
		q.H3Res = &n
	}
	if s := v.Get("h3_parent"); s != "" {
		if q.H3Res == nil {
			return CatalogRequest{}, warn, errors.New("h3_parent requires h3_res")
		}
		n, err := parseInt(s, 0, *q.H3Res)
		if err != nil {
			return CatalogRequest{}, warn, fmt.Errorf("h3_parent: %w", err)
		}
		q.H3Parent = &n
	}

	if q.Format, err = export.ParseFormat(v.Get("format")); err != nil {
		return CatalogRequest{}, warn, err
	}
	return q, warn, nil
}

func parseBool(v url.Values, key string, def bool) (bool, error) {
	s := strings.TrimSpace(v.Get(key))
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("%s: expected a boolean, got %q", key, s)
	}
	return b, nil
}

func parseInt(s string, lo, hi int) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("parse int: %w", err)
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("%d out of range [%d,%d]", n, lo, hi)
	}
	return n, nil
}
