// Package service answers catalog requests: it builds a catalog for the
// requested source, optionally covers it with H3 cells, reconciles it into a
// target CRS and publishes the resulting report.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mohammed-shakir/point-catalog/internal/app"
	"github.com/mohammed-shakir/point-catalog/internal/bounds"
	"github.com/mohammed-shakir/point-catalog/internal/catalog"
	"github.com/mohammed-shakir/point-catalog/internal/core/router"
	"github.com/mohammed-shakir/point-catalog/internal/crs"
	"github.com/mohammed-shakir/point-catalog/internal/discovery"
	"github.com/mohammed-shakir/point-catalog/internal/export"
	"github.com/mohammed-shakir/point-catalog/internal/footprint"
	"github.com/mohammed-shakir/point-catalog/internal/publish"
	"github.com/mohammed-shakir/point-catalog/internal/reader"
)

type Engine struct {
	logger *slog.Logger
	app    *app.App
	opts   catalog.Options
}

var _ router.CatalogHandler = (*Engine)(nil)

func New(a *app.App) (*Engine, error) {
	opts, err := a.Options()
	if err != nil {
		return nil, fmt.Errorf("catalog options: %w", err)
	}
	return &Engine{logger: a.Log, app: a, opts: opts}, nil
}

// Report runs the full request pipeline and returns the resulting report.
func (e *Engine) Report(ctx context.Context, q router.CatalogRequest) (catalog.Report, error) {
	opts := e.opts
	opts.Policy = q.Policy
	opts.ScanHeaders = q.ScanHeaders
	opts.CheckCRS = q.CheckCRS

	b, err := e.app.Builder(q.Kind, opts)
	if err != nil {
		return catalog.Report{}, err
	}
	c, err := b.Build(ctx, q.Source)
	if err != nil {
		return catalog.Report{}, err
	}
	rep := c.Report()

	if q.H3Res != nil {
		res := *q.H3Res
		cells, err := e.app.Mapper.Cover(ctx, e.app.Reprojector, rep, res)
		if err != nil {
			return catalog.Report{}, err
		}
		if q.H3Parent != nil {
			if cells, err = footprint.Coarsen(cells, *q.H3Parent); err != nil {
				return catalog.Report{}, err
			}
			res = *q.H3Parent
		}
		e.logger.DebugContext(ctx, "h3 cover", "res", res, "cells", len(cells))
		rep.H3Res, rep.Cells = &res, cells
	}

	if !q.TargetCRS.IsZero() {
		rec, err := c.ReconcileAgainst(ctx, q.TargetCRS, bounds.WithEdgeSamples(q.EdgeSamples))
		if err != nil {
			return catalog.Report{}, err
		}
		rec.H3Res, rec.Cells = rep.H3Res, rep.Cells
		rep = rec
	}

	if q.Publish {
		if err := e.app.Publisher.Publish(ctx, rep); err != nil {
			return catalog.Report{}, err
		}
	}
	return rep, nil
}

func (e *Engine) HandleCatalog(ctx context.Context, w http.ResponseWriter, _ *http.Request, q router.CatalogRequest) {
	rep, err := e.Report(ctx, q)
	if err != nil {
		e.fail(ctx, w, err)
		return
	}
	body, err := json.Marshal(rep)
	if err != nil {
		e.fail(ctx, w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// HandleIndex writes the readable assets as a footprint layer.
func (e *Engine) HandleIndex(ctx context.Context, w http.ResponseWriter, _ *http.Request, q router.CatalogRequest) {
	rep, err := e.Report(ctx, q)
	if err != nil {
		e.fail(ctx, w, err)
		return
	}
	var buf bytes.Buffer
	if err := export.Write(&buf, q.Format, rep); err != nil {
		e.fail(ctx, w, err)
		return
	}
	w.Header().Set("Content-Type", q.Format.ContentType())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (e *Engine) fail(ctx context.Context, w http.ResponseWriter, err error) {
	code := StatusFor(err)
	if code >= http.StatusInternalServerError {
		e.logger.ErrorContext(ctx, "catalog request failed", "status", code, "err", err)
	} else {
		e.logger.DebugContext(ctx, "catalog request rejected", "status", code, "err", err)
	}
	http.Error(w, err.Error(), code)
}

// StatusFor maps a pipeline error to an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, discovery.ErrListing):
		return http.StatusBadGateway
	case errors.Is(err, catalog.ErrNoAssetsFound):
		return http.StatusNotFound
	case errors.Is(err, reader.ErrUnsupportedKind),
		errors.Is(err, footprint.ErrInvalidRes),
		errors.Is(err, footprint.ErrTooManyCells),
		errors.Is(err, export.ErrUnsupportedFormat),
		errors.Is(err, publish.ErrDisabled):
		return http.StatusBadRequest
	case errors.Is(err, crs.ErrInvalidCRS),
		errors.Is(err, bounds.ErrTransformUnavailable),
		errors.Is(err, bounds.ErrInvalidBounds),
		errors.Is(err, catalog.ErrMissingCRS),
		errors.Is(err, export.ErrInvalidReport):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
