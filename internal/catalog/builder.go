// Package catalog scans a set of point assets and reconciles their bounds and
// coordinate systems into one description.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/mohammed-shakir/point-catalog/internal/bounds"
	"github.com/mohammed-shakir/point-catalog/internal/core/model"
	"github.com/mohammed-shakir/point-catalog/internal/core/observability"
	"github.com/mohammed-shakir/point-catalog/internal/crs"
	"github.com/mohammed-shakir/point-catalog/internal/discovery"
	"github.com/mohammed-shakir/point-catalog/internal/logger"
	"github.com/mohammed-shakir/point-catalog/internal/reader"
)

var (
	ErrNoAssetsFound = errors.New("catalog: no assets found")
	ErrMissingCRS    = errors.New("catalog: asset has bounds but no CRS")
)

const DefaultWorkers = 8

type Lister interface {
	List(ctx context.Context, base, pattern string) ([]string, error)
}

// Deps are the collaborators a Builder works with. Reader is required, the
// rest fall back to defaults.
type Deps struct {
	Lister      Lister
	Reader      reader.Interface
	Resolver    crs.Resolver
	Reprojector *bounds.Reprojector
	Logger      *slog.Logger
}

type Options struct {
	ScanHeaders bool
	CheckCRS    bool
	Policy      crs.Policy
	Workers     int
	// RateLimit caps header reads per second; 0 disables the limiter.
	RateLimit float64
	Burst     int
}

func DefaultOptions() Options {
	return Options{
		ScanHeaders: true,
		CheckCRS:    true,
		Policy:      crs.Normalized,
		Workers:     DefaultWorkers,
	}
}

// Source names the assets to catalog. Explicit Assets skip discovery.
type Source struct {
	Base    string
	Pattern string
	Assets  []string
}

type Builder struct {
	lister      Lister
	reader      reader.Interface
	resolver    crs.Resolver
	reprojector *bounds.Reprojector
	log         *slog.Logger
	opts        Options
	now         func() time.Time // for tests
}

func NewBuilder(deps Deps, opts Options) (*Builder, error) {
	if deps.Reader == nil {
		return nil, errors.New("catalog: reader is required")
	}
	if deps.Logger == nil {
		deps.Logger = logger.Discard()
	}
	if deps.Lister == nil {
		deps.Lister = discovery.NewLister(nil, false, deps.Logger)
	}
	if deps.Resolver == nil {
		deps.Resolver = crs.DefaultResolver
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Burst < 1 {
		opts.Burst = opts.Workers
	}
	return &Builder{
		lister:      deps.Lister,
		reader:      deps.Reader,
		resolver:    deps.Resolver,
		reprojector: deps.Reprojector,
		log:         deps.Logger,
		opts:        opts,
		now:         time.Now,
	}, nil
}

func (b *Builder) Options() Options { return b.opts }

// WithOptions returns a builder sharing b's collaborators with different
// options.
func (b *Builder) WithOptions(opts Options) *Builder {
	nb := *b
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Burst < 1 {
		opts.Burst = opts.Workers
	}
	nb.opts = opts
	return &nb
}

// Build discovers, scans and reconciles the assets named by src. Unreadable
// assets do not fail the build; they appear as records without bounds.
func (b *Builder) Build(ctx context.Context, src Source) (*Catalog, error) {
	ctx = logger.WithCatalog(ctx, src.Base)
	start := b.now()

	c, err := b.build(ctx, src)
	if err != nil {
		observability.ObserveCatalogBuild(false, 0)
		b.log.WarnContext(ctx, "catalog build failed", "err", err)
		return nil, err
	}
	observability.ObserveCatalogBuild(true, len(c.assets))
	b.log.InfoContext(ctx, "catalog built",
		"assets", len(c.assets),
		"unreadable", c.unreadable,
		"crs_consistent", c.consistentString(),
		"duration", time.Since(start).String())
	return c, nil
}

func (b *Builder) build(ctx context.Context, src Source) (*Catalog, error) {
	locators := src.Assets
	if len(locators) == 0 {
		found, err := b.lister.List(ctx, src.Base, src.Pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoAssetsFound, err)
		}
		locators = found
	}
	if len(locators) == 0 {
		return nil, fmt.Errorf("%w: %s matching %q", ErrNoAssetsFound, src.Base, src.Pattern)
	}

	c := &Catalog{
		base:        src.Base,
		pattern:     src.Pattern,
		remote:      discovery.IsRemote(src.Base),
		scanned:     b.opts.ScanHeaders,
		policy:      b.opts.Policy,
		resolver:    b.resolver,
		reprojector: b.reprojector,
		builtAt:     b.now().UTC(),
	}

	if !b.opts.ScanHeaders {
		c.assets = make([]model.AssetRecord, len(locators))
		for i, loc := range locators {
			c.assets[i] = model.AssetRecord{Locator: loc}
		}
		return c, nil
	}

	records, err := b.scan(ctx, locators)
	if err != nil {
		return nil, err
	}
	c.assets = records

	var present []crs.Descriptor
	for _, r := range records {
		if !r.Readable() {
			c.unreadable++
			continue
		}
		c.totalPoints += r.PointCount
		if r.HasCRS() {
			present = append(present, crs.Descriptor(r.CRS))
		} else {
			c.missingCRS++
		}
	}
	if c.unreadable == len(records) {
		return nil, fmt.Errorf("%w: all %d assets unreadable", ErrNoAssetsFound, len(records))
	}

	c.overall = bounds.MergeRecords(records)
	if len(present) > 0 {
		c.crs = present[0]
	}
	if b.opts.CheckCRS && len(present) > 0 {
		ok, err := crs.AllEquivalent(present, b.opts.Policy, b.resolver)
		if err != nil {
			return nil, fmt.Errorf("catalog %s: crs check: %w", src.Base, err)
		}
		c.consistent = &ok
	}
	return c, nil
}

// scan reads every header with a bounded worker pool. Results keep the
// locator order.
func (b *Builder) scan(ctx context.Context, locators []string) ([]model.AssetRecord, error) {
	out := make([]model.AssetRecord, len(locators))

	var lim *rate.Limiter
	if b.opts.RateLimit > 0 {
		lim = rate.NewLimiter(rate.Limit(b.opts.RateLimit), b.opts.Burst)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Workers)
	for i, loc := range locators {
		g.Go(func() error {
			if lim != nil {
				if err := lim.Wait(gctx); err != nil {
					return err
				}
			}
			if err := gctx.Err(); err != nil {
				return err
			}
			rec, err := b.reader.Read(gctx, loc)
			if err != nil {
				// per-asset failure; keep going
				rec.Locator = loc
				rec.Bounds = nil
				if rec.Err == "" {
					rec.Err = err.Error()
				}
			}
			out[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("catalog scan: %w", err)
	}
	return out, nil
}
