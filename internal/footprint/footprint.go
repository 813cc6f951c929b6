// Package footprint converts catalog bounds into H3 cell coverings.
package footprint

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"
	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/point-catalog/internal/bounds"
	"github.com/mohammed-shakir/point-catalog/internal/catalog"
	"github.com/mohammed-shakir/point-catalog/internal/core/model"
	"github.com/mohammed-shakir/point-catalog/internal/crs"
)

// LonLat is the CRS cells are computed in.
const LonLat crs.Descriptor = "OGC:CRS84"

const DefaultMaxCells = 200_000

var (
	ErrInvalidRes   = errors.New("footprint: invalid H3 resolution")
	ErrTooManyCells = errors.New("footprint: covering exceeds cell limit")
)

// average hexagon area at resolution 0; each finer level divides by 7
const res0AreaKm2 = 4_357_449.416078383

type Mapper struct {
	MaxCells int
}

func New() *Mapper { return &Mapper{MaxCells: DefaultMaxCells} }

// CellsForBounds covers a lon/lat box. Cells are sorted and unique.
func (m *Mapper) CellsForBounds(bb model.BoundingBox, res int) (model.Cells, error) {
	if err := validateRes(res); err != nil {
		return nil, err
	}
	if !bb.IsFinite() || bb.IsEmpty() {
		return nil, fmt.Errorf("%w: %v", bounds.ErrInvalidBounds, bb)
	}
	if err := m.checkSize(bb, res); err != nil {
		return nil, err
	}
	cells, err := polyfill(loop(bb.Polygon()[0]), res)
	if err != nil {
		return nil, err
	}
	if m.MaxCells > 0 && len(cells) > m.MaxCells {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyCells, len(cells), m.MaxCells)
	}
	return cells, nil
}

// CellsForPolygons covers the union of lon/lat polygons, ignoring holes.
func (m *Mapper) CellsForPolygons(polys []orb.Polygon, res int) (model.Cells, error) {
	if err := validateRes(res); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var out []string
	for i, p := range polys {
		if len(p) == 0 {
			return nil, fmt.Errorf("polygon %d is empty", i)
		}
		b := p.Bound()
		if err := m.checkSize(model.NewBox(b.Min[0], b.Min[1], b.Max[0], b.Max[1]), res); err != nil {
			return nil, err
		}
		cells, err := polyfill(loop(p[0]), res)
		if err != nil {
			return nil, fmt.Errorf("polygon %d: %w", i, err)
		}
		for _, c := range cells {
			if _, ok := seen[c]; !ok {
				seen[c] = struct{}{}
				out = append(out, c)
			}
		}
	}
	sort.Strings(out)
	if m.MaxCells > 0 && len(out) > m.MaxCells {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyCells, len(out), m.MaxCells)
	}
	return out, nil
}

// Cover reprojects every readable asset of r into lon/lat and returns the
// union of their cells. Assets without a CRS fail the call.
func (m *Mapper) Cover(ctx context.Context, rp *bounds.Reprojector, r catalog.Report, res int) (model.Cells, error) {
	if err := validateRes(res); err != nil {
		return nil, err
	}
	var polys []orb.Polygon
	for _, a := range r.ReadableAssets() {
		if !a.HasCRS() {
			return nil, fmt.Errorf("footprint %s: %w", a.Locator, catalog.ErrMissingCRS)
		}
		ll, err := rp.Reproject(ctx, *a.Bounds, crs.Descriptor(a.CRS), LonLat)
		if err != nil {
			return nil, fmt.Errorf("footprint %s: %w", a.Locator, err)
		}
		polys = append(polys, ll.Polygon())
	}
	if len(polys) == 0 {
		return model.Cells{}, nil
	}
	return m.CellsForPolygons(polys, res)
}

// checkSize estimates the covering from the box area before polyfilling.
func (m *Mapper) checkSize(bb model.BoundingBox, res int) error {
	if m.MaxCells <= 0 {
		return nil
	}
	const kmPerDeg = 111.32
	midLat := (bb.MinY + bb.MaxY) / 2 * math.Pi / 180
	area := bb.Width() * kmPerDeg * math.Cos(midLat) * bb.Height() * kmPerDeg
	est := area / (res0AreaKm2 / math.Pow(7, float64(res)))
	if est > float64(m.MaxCells) {
		return fmt.Errorf("%w: about %.0f cells at res %d", ErrTooManyCells, est, res)
	}
	return nil
}

func validateRes(res int) error {
	if res < 0 || res > 15 {
		return fmt.Errorf("%w: %d (must be 0..15)", ErrInvalidRes, res)
	}
	return nil
}

// loop converts a closed orb ring to an h3 loop without the closing vertex.
func loop(r orb.Ring) h3.GeoLoop {
	out := make(h3.GeoLoop, 0, len(r))
	for _, p := range r {
		out = append(out, h3.LatLng{Lat: p[1], Lng: p[0]})
	}
	if n := len(out); n >= 2 && out[0] == out[n-1] {
		out = out[:n-1]
	}
	return out
}

// polyfill returns every cell that overlaps the ring, so a box smaller than
// one cell still maps to the cell (or cells) it touches.
func polyfill(outer h3.GeoLoop, res int) (model.Cells, error) {
	if len(outer) < 3 {
		return nil, errors.New("ring has < 3 distinct vertices")
	}
	idx, err := h3.PolygonToCellsExperimental(h3.GeoPolygon{GeoLoop: outer}, res, h3.ContainmentOverlapping)
	if err != nil {
		return nil, fmt.Errorf("h3 polyfill: %w", err)
	}
	out := make([]string, 0, len(idx))
	seen := make(map[string]struct{}, len(idx))
	for _, c := range idx {
		s := c.String()
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}
