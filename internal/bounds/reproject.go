package bounds

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/mohammed-shakir/point-catalog/internal/core/model"
	"github.com/mohammed-shakir/point-catalog/internal/core/observability"
	"github.com/mohammed-shakir/point-catalog/internal/crs"
	"github.com/mohammed-shakir/point-catalog/internal/logger"
	"github.com/mohammed-shakir/point-catalog/internal/projection"
)

var (
	ErrInvalidBounds        = errors.New("bounds: invalid bounds")
	ErrInvalidSamples       = errors.New("bounds: edge samples must be at least 2")
	ErrTransformUnavailable = projection.ErrTransformUnavailable
)

const DefaultEdgeSamples = 11

// Transformer is the coordinate transform collaborator. *projection.Engine
// implements it.
type Transformer interface {
	Parse(d crs.Descriptor) (*crs.CRS, error)
	Pipeline(src, dst *crs.CRS) (projection.Pipeline, error)
}

type options struct {
	samples int
	refine  bool
}

type Option func(*options)

// WithEdgeSamples sets how many points are placed on each edge, corners
// included. Two samples only the corners.
func WithEdgeSamples(n int) Option {
	return func(o *options) { o.samples = n }
}

// WithoutRefinement disables the per-segment midpoint fit, leaving the plain
// envelope of the edge samples.
func WithoutRefinement() Option {
	return func(o *options) { o.refine = false }
}

type Reprojector struct {
	tr  Transformer
	log *slog.Logger
}

func NewReprojector(tr Transformer, log *slog.Logger) *Reprojector {
	if log == nil {
		log = logger.Discard()
	}
	return &Reprojector{tr: tr, log: log}
}

// Reproject maps box from src into dst by sampling its edges.
func (r *Reprojector) Reproject(ctx context.Context, box model.BoundingBox, src, dst crs.Descriptor, opts ...Option) (model.BoundingBox, error) {
	s, err := r.tr.Parse(src)
	if err != nil {
		observability.ObserveReprojection(false)
		return model.BoundingBox{}, fmt.Errorf("%w: source: %w", ErrTransformUnavailable, err)
	}
	d, err := r.tr.Parse(dst)
	if err != nil {
		observability.ObserveReprojection(false)
		return model.BoundingBox{}, fmt.Errorf("%w: target: %w", ErrTransformUnavailable, err)
	}
	return r.ReprojectCRS(ctx, box, s, d, opts...)
}

// ReprojectCRS is Reproject for already parsed CRSes.
func (r *Reprojector) ReprojectCRS(ctx context.Context, box model.BoundingBox, src, dst *crs.CRS, opts ...Option) (model.BoundingBox, error) {
	out, err := r.reproject(ctx, box, src, dst, opts)
	observability.ObserveReprojection(err == nil)
	if err != nil {
		r.log.DebugContext(ctx, "reprojection failed", "box", box.String(), "err", err)
	}
	return out, err
}

type sample struct {
	x, y float64
	ok   bool
}

func (r *Reprojector) reproject(ctx context.Context, box model.BoundingBox, src, dst *crs.CRS, opts []Option) (model.BoundingBox, error) {
	o := options{samples: DefaultEdgeSamples, refine: true}
	for _, fn := range opts {
		fn(&o)
	}
	if o.samples < 2 {
		return model.BoundingBox{}, fmt.Errorf("%w: got %d", ErrInvalidSamples, o.samples)
	}
	if box.IsEmpty() || !box.IsFinite() {
		return model.BoundingBox{}, fmt.Errorf("%w: source box %v", ErrInvalidBounds, box)
	}

	pipe, err := r.tr.Pipeline(src, dst)
	if err != nil {
		if errors.Is(err, ErrTransformUnavailable) {
			return model.BoundingBox{}, err
		}
		return model.BoundingBox{}, fmt.Errorf("%w: %w", ErrTransformUnavailable, err)
	}

	// pipelines take native axis order; boxes are always X/Y
	srcSwap := src.AxisOrder == crs.LatitudeFirst
	dstSwap := dst.AxisOrder == crs.LatitudeFirst

	var valid, invalid int
	transform := func(x, y float64) sample {
		in := projection.Coord{A: x, B: y}
		if srcSwap {
			in = projection.Coord{A: y, B: x}
		}
		out, err := pipe.Transform(in)
		if err != nil {
			invalid++
			return sample{}
		}
		valid++
		if dstSwap {
			return sample{x: out.B, y: out.A, ok: true}
		}
		return sample{x: out.A, y: out.B, ok: true}
	}

	ring := [5][2]float64{
		{box.MinX, box.MinY},
		{box.MaxX, box.MinY},
		{box.MaxX, box.MaxY},
		{box.MinX, box.MaxY},
		{box.MinX, box.MinY},
	}
	var corners [4]sample
	for i := range corners {
		corners[i] = transform(ring[i][0], ring[i][1])
	}

	env := envelope{box: model.EmptyBox()}
	n := o.samples
	pts := make([]sample, n)
	for e := range 4 {
		if err := ctx.Err(); err != nil {
			return model.BoundingBox{}, err
		}
		a, b := ring[e], ring[e+1]
		at := func(t float64) (float64, float64) {
			return a[0] + (b[0]-a[0])*t, a[1] + (b[1]-a[1])*t
		}

		pts[0], pts[n-1] = corners[e], corners[(e+1)%4]
		for i := 1; i < n-1; i++ {
			pts[i] = transform(at(float64(i) / float64(n-1)))
		}
		// the closing corner is the next edge's start
		for _, p := range pts[:n-1] {
			if p.ok {
				env.point(p.x, p.y)
			}
		}

		if !o.refine {
			continue
		}
		for i := 0; i < n-1; i++ {
			p0, p1 := pts[i], pts[i+1]
			if !p0.ok || !p1.ok {
				continue
			}
			m := transform(at((float64(i) + 0.5) / float64(n-1)))
			if !m.ok {
				continue
			}
			env.point(m.x, m.y)
			env.x(extremum(p0.x, m.x, p1.x))
			env.y(extremum(p0.y, m.y, p1.y))
		}
	}

	observability.AddTransformSamples(valid, invalid)
	if env.box.IsEmpty() || !env.box.IsFinite() {
		return model.BoundingBox{}, fmt.Errorf("%w: no sample point could be transformed (%d rejected)", ErrInvalidBounds, invalid)
	}
	return env.box, nil
}

// extremum returns the interior extreme value of the parabola through
// (0, f0), (0.5, fm), (1, f1), or fm when the vertex lies outside (0, 1).
func extremum(f0, fm, f1 float64) float64 {
	b := -3*f0 + 4*fm - f1
	c := 2*f0 - 4*fm + 2*f1
	if c == 0 {
		return fm
	}
	s := -b / (2 * c)
	if s <= 0 || s >= 1 {
		return fm
	}
	v := f0 + b*s + c*s*s
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fm
	}
	return v
}

type envelope struct {
	box model.BoundingBox
}

func (e *envelope) point(x, y float64) {
	e.box = e.box.Extend(x, y)
}

func (e *envelope) x(v float64) {
	e.box.MinX = math.Min(e.box.MinX, v)
	e.box.MaxX = math.Max(e.box.MaxX, v)
}

func (e *envelope) y(v float64) {
	e.box.MinY = math.Min(e.box.MinY, v)
	e.box.MaxY = math.Max(e.box.MaxY, v)
}
