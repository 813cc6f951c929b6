package crs

import (
	"fmt"
	"strconv"
	"strings"
)

var (
	wgs84 = Ellipsoid{Name: "WGS 84", SemiMajor: 6378137, InverseFlattening: 298.257223563}
	grs80 = Ellipsoid{Name: "GRS 1980", SemiMajor: 6378137, InverseFlattening: 298.257222101}
)

const (
	datumWGS84     = "World Geodetic System 1984"
	datumNAD83     = "North American Datum 1983"
	datumNAD832011 = "NAD83 (National Spatial Reference System 2011)"

	unitDegree = "degree"
	unitMetre  = "metre"
)

type geodeticDef struct {
	name      string
	datum     string
	ellipsoid Ellipsoid
}

var geographicDefs = map[int]geodeticDef{
	4326: {"WGS 84", datumWGS84, wgs84},
	4269: {"NAD83", datumNAD83, grs80},
	6318: {"NAD83(2011)", datumNAD832011, grs80},
}

// Lookup resolves an authority code from the built-in registry. It returns a
// fresh value on every call.
func Lookup(authority string, code int) (*CRS, bool) {
	auth := strings.ToUpper(strings.TrimSpace(authority))
	switch auth {
	case "OGC":
		if code == 84 {
			c := geographic(4326)
			c.Name = "WGS 84 (CRS84)"
			c.Authority, c.Code = "OGC", 84
			c.AxisOrder = LongitudeFirst
			return c, true
		}
		return nil, false
	case "EPSG":
	default:
		return nil, false
	}

	if _, ok := geographicDefs[code]; ok {
		return geographic(code), true
	}
	switch {
	case code == 3857:
		return &CRS{
			Kind:      Projected,
			Name:      "WGS 84 / Pseudo-Mercator",
			Authority: "EPSG",
			Code:      3857,
			Datum:     datumWGS84,
			Ellipsoid: wgs84,
			Method:    MethodWebMercator,
			Unit:      unitMetre,
			AxisOrder: LongitudeFirst,
		}, true
	case code >= 32601 && code <= 32660:
		return utm(code, 4326, code-32600, false), true
	case code >= 32701 && code <= 32760:
		return utm(code, 4326, code-32700, true), true
	case code >= 26901 && code <= 26923:
		return utm(code, 4269, code-26900, false), true
	case code >= 6330 && code <= 6348:
		return utm(code, 6318, code-6329, false), true
	}
	return nil, false
}

func geographic(code int) *CRS {
	def := geographicDefs[code]
	return &CRS{
		Kind:      Geographic,
		Name:      def.name,
		Authority: "EPSG",
		Code:      code,
		Datum:     def.datum,
		Ellipsoid: def.ellipsoid,
		Unit:      unitDegree,
		AxisOrder: LatitudeFirst,
	}
}

func utm(code, base, zone int, south bool) *CRS {
	def := geographicDefs[base]
	hemi, fn := "N", 0.0
	if south {
		hemi, fn = "S", 10000000
	}
	return &CRS{
		Kind:      Projected,
		Name:      fmt.Sprintf("%s / UTM zone %d%s", def.name, zone, hemi),
		Authority: "EPSG",
		Code:      code,
		Datum:     def.datum,
		Ellipsoid: def.ellipsoid,
		Method:    MethodTransverseMercator,
		Params: Params{
			CentralMerid:  float64(6*zone - 183),
			ScaleFactor:   0.9996,
			FalseEasting:  500000,
			FalseNorthing: fn,
		},
		Unit:      unitMetre,
		AxisOrder: LongitudeFirst,
	}
}

// unresolved keeps an authority id the registry cannot describe so that it can
// still be compared with other descriptors naming the same code.
func unresolved(auth string, code int) *CRS {
	auth = strings.ToUpper(auth)
	return &CRS{
		Kind:      Unresolved,
		Name:      auth + ":" + strconv.Itoa(code),
		Authority: auth,
		Code:      code,
	}
}

// plausibleCode rejects EPSG codes outside the range EPSG reserves for itself.
func plausibleCode(auth string, code int) bool {
	if strings.EqualFold(auth, "EPSG") {
		return code >= 1024 && code <= 32767
	}
	return code > 0
}
