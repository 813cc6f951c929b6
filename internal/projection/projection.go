// Package projection transforms single coordinates between the CRSes the
// crs package can describe. Coordinates are always in each CRS's native axis
// order; callers that think in X/Y swap for latitude-first CRSes themselves.
//
// Structured CRSes are projected on their own ellipsoid without a datum
// shift. Unresolved EPSG codes fall back to the wgs84 repository, whose
// systems carry their own shift to WGS 84.
package projection

import (
	"errors"
	"fmt"
	"math"

	"github.com/wroge/wgs84"

	"github.com/mohammed-shakir/point-catalog/internal/crs"
)

var (
	ErrTransformUnavailable = errors.New("projection: transform unavailable")
	ErrOutOfDomain          = errors.New("projection: coordinate outside domain of validity")
)

// Coord is a coordinate pair in the native axis order of its CRS.
type Coord struct {
	A, B float64
}

// Pipeline transforms coordinates from one fixed CRS to another.
type Pipeline interface {
	Transform(c Coord) (Coord, error)
}

// projector converts between geographic degrees and a CRS's own units in
// easting/northing (or lon/lat) order.
type projector interface {
	forward(lon, lat float64) (x, y float64, err error)
	inverse(x, y float64) (lon, lat float64, err error)
}

type Engine struct {
	resolver crs.Resolver
	epsg     *wgs84.Repository
}

func NewEngine(r crs.Resolver) *Engine {
	if r == nil {
		r = crs.DefaultResolver
	}
	return &Engine{resolver: r, epsg: wgs84.EPSG()}
}

func (e *Engine) Parse(d crs.Descriptor) (*crs.CRS, error) {
	return e.resolver.Parse(d)
}

func (e *Engine) Equal(a, b *crs.CRS) bool { return crs.Equal(a, b) }

func (e *Engine) Pipeline(src, dst *crs.CRS) (Pipeline, error) {
	if src == nil || dst == nil {
		return nil, fmt.Errorf("%w: missing CRS", ErrTransformUnavailable)
	}
	from, srcOrder, err := e.projectorFor(src)
	if err != nil {
		return nil, err
	}
	to, dstOrder, err := e.projectorFor(dst)
	if err != nil {
		return nil, err
	}
	return &pipeline{
		from:    from,
		to:      to,
		srcSwap: srcOrder == crs.LatitudeFirst,
		dstSwap: dstOrder == crs.LatitudeFirst,
	}, nil
}

// Transform builds a one-off pipeline. Prefer Pipeline for repeated use.
func (e *Engine) Transform(src, dst *crs.CRS, c Coord) (Coord, error) {
	p, err := e.Pipeline(src, dst)
	if err != nil {
		return Coord{}, err
	}
	return p.Transform(c)
}

func (e *Engine) projectorFor(c *crs.CRS) (projector, crs.AxisOrder, error) {
	switch c.Kind {
	case crs.Geographic:
		return geographic{}, c.AxisOrder, nil
	case crs.Unresolved:
		return e.repositoryProjector(c)
	}

	p := c.Params
	datum := datumFor(c.Ellipsoid)
	var sys wgs84.ProjectedReferenceSystem
	switch crs.CanonicalMethod(c.Method) {
	case crs.MethodTransverseMercator:
		sys = wgs84.ProjectedReferenceSystem{
			Datum: datum,
			Projection: transverseMercator{
				lon0: p.CentralMerid,
				lat0: p.LatOrigin,
				k0:   p.ScaleFactor,
				fe:   p.FalseEasting,
				fn:   p.FalseNorthing,
			},
		}
	case crs.MethodWebMercator:
		return webMercator{}, c.AxisOrder, nil
	case crs.MethodLambertConic2SP:
		sys = datum.LambertConformalConic2SP(p.CentralMerid, p.LatOrigin, p.StdParallel1, p.StdParallel2, p.FalseEasting, p.FalseNorthing)
	case crs.MethodAlbersEqualArea:
		sys = datum.AlbersEqualAreaConic(p.CentralMerid, p.LatOrigin, p.StdParallel1, p.StdParallel2, p.FalseEasting, p.FalseNorthing)
	case crs.MethodLambertAzimuthal:
		sys = datum.LambertAzimuthalEqualArea(p.CentralMerid, p.LatOrigin, p.FalseEasting, p.FalseNorthing)
	default:
		return nil, 0, fmt.Errorf("%w: unsupported method %q for %s", ErrTransformUnavailable, c.Method, c.Name)
	}
	return &planar{sys: sys, metres: c.Metres(), lon0: p.CentralMerid}, c.AxisOrder, nil
}

// repositoryProjector serves unresolved EPSG codes that the wgs84 repository
// knows. EPSG orders geographic axes latitude first.
func (e *Engine) repositoryProjector(c *crs.CRS) (projector, crs.AxisOrder, error) {
	if c.Authority != "EPSG" {
		return nil, 0, fmt.Errorf("%w: no definition for %s", ErrTransformUnavailable, c.ID())
	}
	sys := e.epsg.Code(c.Code)
	switch sys.(type) {
	case wgs84.GeographicReferenceSystem:
		return &shifted{sys: sys}, crs.LatitudeFirst, nil
	case wgs84.ProjectedReferenceSystem:
		return &shifted{sys: sys}, crs.LongitudeFirst, nil
	default:
		return nil, 0, fmt.Errorf("%w: no definition for %s", ErrTransformUnavailable, c.ID())
	}
}

// datumFor builds an unshifted datum on e. A zero inverse flattening is a
// sphere.
func datumFor(e crs.Ellipsoid) wgs84.Datum {
	fi := e.InverseFlattening
	if fi == 0 {
		fi = math.Inf(1)
	}
	return wgs84.Helmert(e.SemiMajor, fi, 0, 0, 0, 0, 0, 0, 0)
}

type pipeline struct {
	from, to         projector
	srcSwap, dstSwap bool
}

func (p *pipeline) Transform(c Coord) (Coord, error) {
	x, y := c.A, c.B
	if p.srcSwap {
		x, y = y, x
	}
	if !finite(x) || !finite(y) {
		return Coord{}, fmt.Errorf("%w: non-finite input", ErrOutOfDomain)
	}
	lon, lat, err := p.from.inverse(x, y)
	if err != nil {
		return Coord{}, err
	}
	ox, oy, err := p.to.forward(lon, lat)
	if err != nil {
		return Coord{}, err
	}
	if !finite(ox) || !finite(oy) {
		return Coord{}, fmt.Errorf("%w: non-finite result", ErrOutOfDomain)
	}
	if p.dstSwap {
		ox, oy = oy, ox
	}
	return Coord{A: ox, B: oy}, nil
}

type geographic struct{}

func (geographic) forward(lon, lat float64) (float64, float64, error) {
	if err := checkLonLat(lon, lat); err != nil {
		return 0, 0, err
	}
	return lon, lat, nil
}

func (geographic) inverse(x, y float64) (float64, float64, error) {
	if err := checkLonLat(x, y); err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

// planar runs a wgs84 projection directly on its datum's ellipsoid and scales
// to the CRS's linear unit.
type planar struct {
	sys    wgs84.ProjectedReferenceSystem
	metres float64
	lon0   float64
}

func (p *planar) forward(lon, lat float64) (float64, float64, error) {
	if err := checkLonLat(lon, lat); err != nil {
		return 0, 0, err
	}
	if math.Abs(wrapLon(lon-p.lon0)) >= 90 {
		return 0, 0, fmt.Errorf("%w: %g degrees from central meridian", ErrOutOfDomain, wrapLon(lon-p.lon0))
	}
	x, y := p.sys.Projection.FromLonLat(p.lon0+wrapLon(lon-p.lon0), lat, p.sys.Datum)
	if !finite(x) || !finite(y) {
		return 0, 0, fmt.Errorf("%w: lon=%g lat=%g", ErrOutOfDomain, lon, lat)
	}
	return x / p.metres, y / p.metres, nil
}

func (p *planar) inverse(x, y float64) (float64, float64, error) {
	lon, lat := p.sys.Projection.ToLonLat(x*p.metres, y*p.metres, p.sys.Datum)
	if !finite(lon) || !finite(lat) || math.Abs(lat) > 90 || math.Abs(wrapLon(lon-p.lon0)) >= 90 {
		return 0, 0, fmt.Errorf("%w: x=%g y=%g", ErrOutOfDomain, x, y)
	}
	return lon, lat, nil
}

// shifted goes through WGS 84 geographic coordinates with the system's own
// datum shift and area of use.
type shifted struct {
	sys wgs84.CoordinateReferenceSystem
}

func (s *shifted) forward(lon, lat float64) (float64, float64, error) {
	if err := checkLonLat(lon, lat); err != nil {
		return 0, 0, err
	}
	x, y, _, err := wgs84.SafeTransform(wgs84.LonLat(), s.sys)(wrapLon(lon), lat, 0)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %w", ErrOutOfDomain, err)
	}
	return x, y, nil
}

func (s *shifted) inverse(x, y float64) (float64, float64, error) {
	lon, lat, _, err := wgs84.SafeTransform(s.sys, wgs84.LonLat())(x, y, 0)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %w", ErrOutOfDomain, err)
	}
	if err := checkLonLat(lon, lat); err != nil {
		return 0, 0, err
	}
	return lon, lat, nil
}

func checkLonLat(lon, lat float64) error {
	if !finite(lon) || !finite(lat) || math.Abs(lat) > 90 || math.Abs(lon) > 540 {
		return fmt.Errorf("%w: lon=%g lat=%g", ErrOutOfDomain, lon, lat)
	}
	return nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func rad(d float64) float64 { return d * math.Pi / 180 }
func deg(r float64) float64 { return r * 180 / math.Pi }

// wrapLon maps a longitude difference into [-180, 180).
func wrapLon(d float64) float64 {
	d = math.Mod(d+180, 360)
	if d < 0 {
		d += 360
	}
	return d - 180
}
