// Package model defines core domain types shared across the catalog.
package model

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// BoundingBox is an axis-aligned envelope. X is always easting/longitude and Y
// northing/latitude, whatever axis order the owning CRS declares.
type BoundingBox struct {
	MinX float64 `json:"minx"`
	MinY float64 `json:"miny"`
	MaxX float64 `json:"maxx"`
	MaxY float64 `json:"maxy"`
}

// EmptyBox returns the fold sentinel (+Inf,+Inf,-Inf,-Inf).
func EmptyBox() BoundingBox {
	return BoundingBox{
		MinX: math.Inf(1),
		MinY: math.Inf(1),
		MaxX: math.Inf(-1),
		MaxY: math.Inf(-1),
	}
}

func NewBox(minX, minY, maxX, maxY float64) BoundingBox {
	return BoundingBox{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}
}

// String representation matching the wfs/wms bbox format
func (b BoundingBox) String() string {
	return fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", b.MinX, b.MinY, b.MaxX, b.MaxY)
}

func (b BoundingBox) IsEmpty() bool {
	return b.MinX > b.MaxX || b.MinY > b.MaxY
}

// IsFinite reports whether all four edges are finite numbers.
func (b BoundingBox) IsFinite() bool {
	for _, v := range [4]float64{b.MinX, b.MinY, b.MaxX, b.MaxY} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (b BoundingBox) Width() float64  { return b.MaxX - b.MinX }
func (b BoundingBox) Height() float64 { return b.MaxY - b.MinY }

// Extend returns b grown to include (x, y).
func (b BoundingBox) Extend(x, y float64) BoundingBox {
	b.MinX = math.Min(b.MinX, x)
	b.MinY = math.Min(b.MinY, y)
	b.MaxX = math.Max(b.MaxX, x)
	b.MaxY = math.Max(b.MaxY, y)
	return b
}

// Union returns the union of these bounds with other ones
func (b BoundingBox) Union(other BoundingBox) BoundingBox {
	if other.IsEmpty() {
		return b
	}
	return BoundingBox{
		MinX: math.Min(b.MinX, other.MinX),
		MinY: math.Min(b.MinY, other.MinY),
		MaxX: math.Max(b.MaxX, other.MaxX),
		MaxY: math.Max(b.MaxY, other.MaxY),
	}
}

// Contains reports whether other lies inside b, allowing eps of slack on every edge.
func (b BoundingBox) Contains(other BoundingBox, eps float64) bool {
	return other.MinX >= b.MinX-eps &&
		other.MinY >= b.MinY-eps &&
		other.MaxX <= b.MaxX+eps &&
		other.MaxY <= b.MaxY+eps
}

func (b BoundingBox) ContainsPoint(x, y, eps float64) bool {
	return x >= b.MinX-eps && x <= b.MaxX+eps && y >= b.MinY-eps && y <= b.MaxY+eps
}

// Align expands the box outward so each edge falls on a multiple of resolution.
func (b BoundingBox) Align(resolution float64) (BoundingBox, error) {
	if resolution <= 0 || math.IsNaN(resolution) || math.IsInf(resolution, 0) {
		return BoundingBox{}, fmt.Errorf("invalid resolution: %v", resolution)
	}
	if b.IsEmpty() || !b.IsFinite() {
		return BoundingBox{}, errors.New("cannot align an empty bounding box")
	}
	return BoundingBox{
		MinX: math.Floor(b.MinX/resolution) * resolution,
		MinY: math.Floor(b.MinY/resolution) * resolution,
		MaxX: math.Ceil(b.MaxX/resolution) * resolution,
		MaxY: math.Ceil(b.MaxY/resolution) * resolution,
	}, nil
}

func (b BoundingBox) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{b.MinX, b.MinY}, Max: orb.Point{b.MaxX, b.MaxY}}
}

// Polygon returns the closed outer ring of the box, counter-clockwise.
func (b BoundingBox) Polygon() orb.Polygon {
	return orb.Polygon{
		orb.Ring{
			{b.MinX, b.MinY},
			{b.MaxX, b.MinY},
			{b.MaxX, b.MaxY},
			{b.MinX, b.MaxY},
			{b.MinX, b.MinY},
		},
	}
}

// SourceFlags are the format details read from a point file header.
type SourceFlags struct {
	Compressed        bool `json:"compressed"`
	COPC              bool `json:"copc"`
	MajorVersion      int  `json:"major_version"`
	MinorVersion      int  `json:"minor_version"`
	PointRecordFormat int  `json:"point_record_format"`
	CreationDOY       int  `json:"creation_doy"`
	CreationYear      int  `json:"creation_year"`
}

// AssetRecord describes one scanned asset. A failed read leaves Bounds nil and
// records the reason in Err.
type AssetRecord struct {
	Locator    string       `json:"filename"`
	Bounds     *BoundingBox `json:"bounds"`
	CRS        string       `json:"srs,omitempty"`
	PointCount int64        `json:"numpoints"`
	Flags      SourceFlags  `json:"flags"`
	SizeBytes  *int64       `json:"size_bytes,omitempty"`
	Err        string       `json:"error,omitempty"`
}

func (r AssetRecord) HasCRS() bool { return r.CRS != "" }

func (r AssetRecord) Readable() bool { return r.Bounds != nil }

// Clone returns a deep copy so callers never share pointers with the owner.
func (r AssetRecord) Clone() AssetRecord {
	out := r
	if r.Bounds != nil {
		b := *r.Bounds
		out.Bounds = &b
	}
	if r.SizeBytes != nil {
		n := *r.SizeBytes
		out.SizeBytes = &n
	}
	return out
}

type Cells []string
