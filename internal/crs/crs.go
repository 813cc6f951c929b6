// Package crs parses coordinate reference system descriptors into structured
// form and decides whether two descriptors denote the same reference system.
package crs

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

var (
	ErrInvalidCRS = errors.New("crs: invalid descriptor")
)

// Descriptor is a serialized CRS: PROJJSON, WKT, or an authority string such as
// "EPSG:26908". Two descriptors may denote the same CRS with different text.
type Descriptor string

func (d Descriptor) IsZero() bool { return strings.TrimSpace(string(d)) == "" }

type Kind int

const (
	// Unresolved CRSes carry only an authority id that the built-in registry
	// does not describe. They compare by id.
	Unresolved Kind = iota
	Geographic
	Projected
)

func (k Kind) String() string {
	switch k {
	case Geographic:
		return "geographic"
	case Projected:
		return "projected"
	default:
		return "unresolved"
	}
}

// AxisOrder is the order in which a CRS expects coordinate components. It is
// fixed when the CRS is parsed.
type AxisOrder int

const (
	LongitudeFirst AxisOrder = iota
	LatitudeFirst
)

func (a AxisOrder) String() string {
	if a == LatitudeFirst {
		return "latitude-first"
	}
	return "longitude-first"
}

// Projection method names as they appear in PROJJSON conversions.
const (
	MethodTransverseMercator = "Transverse Mercator"
	MethodWebMercator        = "Popular Visualisation Pseudo Mercator"
	MethodLambertConic2SP    = "Lambert Conic Conformal (2SP)"
	MethodAlbersEqualArea    = "Albers Equal Area"
	MethodLambertAzimuthal   = "Lambert Azimuthal Equal Area"
)

var methodAliases = map[string]string{
	"transverse mercator":                   MethodTransverseMercator,
	"popular visualisation pseudo mercator": MethodWebMercator,
	"lambert conic conformal (2sp)":         MethodLambertConic2SP,
	"lambert conformal conic 2sp":           MethodLambertConic2SP,
	"lambert conformal conic":               MethodLambertConic2SP,
	"albers equal area":                     MethodAlbersEqualArea,
	"albers conic equal area":               MethodAlbersEqualArea,
	"lambert azimuthal equal area":          MethodLambertAzimuthal,
}

// CanonicalMethod maps the PROJJSON, WKT1 and WKT2 spellings of a method to
// one name. Unknown methods come back normalized but otherwise unchanged.
func CanonicalMethod(name string) string {
	n := normName(name)
	if m, ok := methodAliases[n]; ok {
		return m
	}
	return n
}

type Ellipsoid struct {
	Name              string
	SemiMajor         float64
	InverseFlattening float64
}

func (e Ellipsoid) Flattening() float64 {
	if e.InverseFlattening == 0 {
		return 0
	}
	return 1 / e.InverseFlattening
}

// Params holds the projection parameters used by the supported methods.
// False easting and northing are always in metres. Conic methods keep their
// false origin in LatOrigin and CentralMerid.
type Params struct {
	LatOrigin     float64
	CentralMerid  float64
	ScaleFactor   float64
	FalseEasting  float64
	FalseNorthing float64
	StdParallel1  float64
	StdParallel2  float64
}

// CRS is a parsed, structured coordinate reference system. UnitFactor is the
// length of one linear unit in metres and only applies to Projected.
type CRS struct {
	Kind       Kind
	Name       string
	Authority  string
	Code       int
	Datum      string
	Ellipsoid  Ellipsoid
	Method     string
	Params     Params
	Unit       string
	UnitFactor float64
	AxisOrder  AxisOrder
}

func (c *CRS) IsGeographic() bool { return c != nil && c.Kind == Geographic }

// ID returns "AUTH:code" or "" when the CRS carries no authority id.
func (c *CRS) ID() string {
	if c == nil || c.Authority == "" || c.Code == 0 {
		return ""
	}
	return strings.ToUpper(c.Authority) + ":" + strconv.Itoa(c.Code)
}

// Equal reports whether a and b describe exactly the same reference system,
// independent of how each was serialized.
func Equal(a, b *CRS) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind == Unresolved || b.Kind == Unresolved {
		return a.ID() != "" && a.ID() == b.ID()
	}
	if a.Kind != b.Kind || a.AxisOrder != b.AxisOrder {
		return false
	}
	if normName(a.Datum) != normName(b.Datum) {
		return false
	}
	if !closeTo(a.Ellipsoid.SemiMajor, b.Ellipsoid.SemiMajor, 1e-6) ||
		!closeTo(a.Ellipsoid.InverseFlattening, b.Ellipsoid.InverseFlattening, 1e-9) {
		return false
	}
	if normName(a.Unit) != normName(b.Unit) {
		return false
	}
	if a.Kind == Projected {
		if normName(a.Method) != normName(b.Method) {
			return false
		}
		pa, pb := a.Params, b.Params
		if !closeTo(pa.LatOrigin, pb.LatOrigin, 1e-12) ||
			!closeTo(pa.CentralMerid, pb.CentralMerid, 1e-12) ||
			!closeTo(pa.ScaleFactor, pb.ScaleFactor, 1e-12) ||
			!closeTo(pa.FalseEasting, pb.FalseEasting, 1e-6) ||
			!closeTo(pa.FalseNorthing, pb.FalseNorthing, 1e-6) ||
			!closeTo(pa.StdParallel1, pb.StdParallel1, 1e-12) ||
			!closeTo(pa.StdParallel2, pb.StdParallel2, 1e-12) {
			return false
		}
		if !closeTo(a.Metres(), b.Metres(), 1e-12) {
			return false
		}
	}
	if a.Code != 0 && b.Code != 0 {
		if !strings.EqualFold(a.Authority, b.Authority) || a.Code != b.Code {
			return false
		}
	}
	return true
}

// Metres returns the length of one linear unit in metres.
func (c *CRS) Metres() float64 {
	if c.UnitFactor == 0 {
		return 1
	}
	return c.UnitFactor
}

func normName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "_", " ")
	return strings.Join(strings.Fields(s), " ")
}

func closeTo(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}
