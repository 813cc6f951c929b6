package crs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Parse turns a descriptor into a structured CRS. PROJJSON and WKT documents
// are read node by node; authority strings are resolved through the registry.
func Parse(d Descriptor) (*CRS, error) {
	s := strings.TrimSpace(string(d))
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidCRS)
	}
	switch {
	case strings.HasPrefix(s, "{"):
		return parseProjJSON([]byte(s))
	case isWKT(s):
		return parseWKT(s)
	default:
		return parseAuthority(s)
	}
}

// authority strings

var (
	reAuthCode = regexp.MustCompile(`(?i)^([a-z]+):+(?:[0-9.]*:)?([a-z]*[0-9]+)$`)
	reOGCURL   = regexp.MustCompile(`(?i)/def/crs/([a-z]+)/[^/]*/([a-z]*[0-9]+)$`)
)

func parseAuthority(s string) (*CRS, error) {
	auth, code, ok := splitAuthority(s)
	if !ok {
		return nil, fmt.Errorf("%w: unrecognized descriptor %q", ErrInvalidCRS, truncate(s))
	}
	return resolveID(auth, code)
}

// resolveID looks auth:code up in the registry and falls back to an
// unresolved CRS for well-formed codes it does not describe.
func resolveID(auth string, code int) (*CRS, error) {
	if c, ok := Lookup(auth, code); ok {
		return c, nil
	}
	if !plausibleCode(auth, code) {
		return nil, fmt.Errorf("%w: unknown code %s:%d", ErrInvalidCRS, auth, code)
	}
	return unresolved(auth, code), nil
}

// splitAuthority accepts "EPSG:4326", "urn:ogc:def:crs:EPSG::4326",
// "http://www.opengis.net/def/crs/EPSG/0/4326", "OGC:CRS84" and "CRS84".
func splitAuthority(s string) (string, int, bool) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "CRS84") {
		return "OGC", 84, true
	}
	if m := reOGCURL.FindStringSubmatch(s); m != nil {
		return codeOf(m[1], m[2])
	}
	low := strings.ToLower(s)
	low = strings.TrimPrefix(low, "urn:ogc:def:crs:")
	if m := reAuthCode.FindStringSubmatch(low); m != nil {
		return codeOf(m[1], m[2])
	}
	return "", 0, false
}

func codeOf(auth, code string) (string, int, bool) {
	auth = strings.ToUpper(strings.TrimSpace(auth))
	code = strings.ToUpper(strings.TrimSpace(code))
	if auth == "OGC" && code == "CRS84" {
		return auth, 84, true
	}
	n, err := strconv.Atoi(code)
	if err != nil || n <= 0 {
		return "", 0, false
	}
	return auth, n, true
}

// PROJJSON

type pjID struct {
	Authority string          `json:"authority"`
	Code      json.RawMessage `json:"code"`
}

func (id *pjID) resolve() (string, int, bool) {
	if id == nil || id.Authority == "" || len(id.Code) == 0 {
		return "", 0, false
	}
	code := string(bytes.Trim(id.Code, `"`))
	return codeOf(id.Authority, code)
}

// pjNumber accepts either a bare number or {"value": n, "unit": ...}.
type pjNumber struct {
	Value float64
	Unit  pjUnit
}

func (n *pjNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		var v struct {
			Value float64 `json:"value"`
			Unit  pjUnit  `json:"unit"`
		}
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		n.Value, n.Unit = v.Value, v.Unit
		return nil
	}
	return json.Unmarshal(b, &n.Value)
}

// pjUnit accepts either "metre" or {"type": "LinearUnit", "name": "metre", ...}.
type pjUnit struct {
	Name   string
	Factor float64
}

func (u *pjUnit) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		var v struct {
			Name   string  `json:"name"`
			Factor float64 `json:"conversion_factor"`
		}
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		u.Name, u.Factor = v.Name, v.Factor
		return nil
	}
	return json.Unmarshal(b, &u.Name)
}

// metres returns the unit length in metres, or 0 when nothing says.
func (u pjUnit) metres() float64 {
	if u.Factor > 0 {
		return u.Factor
	}
	return linearUnitFactor(u.Name)
}

type pjEllipsoid struct {
	Name              string   `json:"name"`
	SemiMajor         pjNumber `json:"semi_major_axis"`
	InverseFlattening float64  `json:"inverse_flattening"`
}

type pjDatum struct {
	Name      string       `json:"name"`
	Ellipsoid *pjEllipsoid `json:"ellipsoid"`
}

type pjAxis struct {
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation"`
	Direction    string `json:"direction"`
	Unit         pjUnit `json:"unit"`
}

type pjCS struct {
	Subtype string   `json:"subtype"`
	Axis    []pjAxis `json:"axis"`
}

type pjParam struct {
	Name  string   `json:"name"`
	Value pjNumber `json:"value"`
	Unit  pjUnit   `json:"unit"`
	ID    *pjID    `json:"id"`
}

type pjConversion struct {
	Name   string `json:"name"`
	Method struct {
		Name string `json:"name"`
	} `json:"method"`
	Parameters []pjParam `json:"parameters"`
}

type pjCRS struct {
	Type          string        `json:"type"`
	Name          string        `json:"name"`
	BaseCRS       *pjCRS        `json:"base_crs"`
	SourceCRS     *pjCRS        `json:"source_crs"`
	Components    []pjCRS       `json:"components"`
	Datum         *pjDatum      `json:"datum"`
	DatumEnsemble *pjDatum      `json:"datum_ensemble"`
	Conversion    *pjConversion `json:"conversion"`
	CS            *pjCS         `json:"coordinate_system"`
	ID            *pjID         `json:"id"`
}

func parseProjJSON(b []byte) (*CRS, error) {
	var doc pjCRS
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("%w: projjson: %w", ErrInvalidCRS, err)
	}
	return fromProjJSON(&doc)
}

// fromProjJSON reads type names, datum names, methods and units without regard
// to letter case.
func fromProjJSON(doc *pjCRS) (*CRS, error) {
	typ := strings.ToLower(strings.TrimSpace(doc.Type))
	switch typ {
	case "compoundcrs":
		if len(doc.Components) == 0 {
			return nil, fmt.Errorf("%w: compound CRS without components", ErrInvalidCRS)
		}
		return fromProjJSON(&doc.Components[0])
	case "boundcrs":
		if doc.SourceCRS == nil {
			return nil, fmt.Errorf("%w: bound CRS without source_crs", ErrInvalidCRS)
		}
		return fromProjJSON(doc.SourceCRS)
	}

	auth, code, hasID := doc.ID.resolve()
	if doc.datum() == nil && doc.BaseCRS == nil {
		// id-only document
		if !hasID {
			return nil, fmt.Errorf("%w: projjson without datum or id", ErrInvalidCRS)
		}
		return resolveID(auth, code)
	}

	out := &CRS{Name: doc.Name}
	if hasID {
		out.Authority, out.Code = auth, code
	}

	switch typ {
	case "geographiccrs", "geodeticcrs":
		out.Kind = Geographic
		if err := fillDatum(out, doc.datum()); err != nil {
			return nil, err
		}
	case "projectedcrs":
		out.Kind = Projected
		if doc.BaseCRS == nil {
			return nil, fmt.Errorf("%w: projected CRS without base_crs", ErrInvalidCRS)
		}
		if err := fillDatum(out, doc.BaseCRS.datum()); err != nil {
			return nil, err
		}
		if doc.Conversion == nil {
			return nil, fmt.Errorf("%w: projected CRS without conversion", ErrInvalidCRS)
		}
		out.Method = CanonicalMethod(doc.Conversion.Method.Name)
	default:
		return nil, fmt.Errorf("%w: unsupported CRS type %q", ErrInvalidCRS, doc.Type)
	}

	if doc.CS == nil || len(doc.CS.Axis) < 2 {
		return nil, fmt.Errorf("%w: coordinate system needs two axes", ErrInvalidCRS)
	}
	first := doc.CS.Axis[0]
	out.AxisOrder = axisOrder(first.Direction, first.Abbreviation)
	out.Unit = canonicalUnit(first.Unit.Name, out.Kind)
	if out.Kind == Projected {
		out.UnitFactor = first.Unit.metres()
		if out.UnitFactor == 0 {
			out.UnitFactor = 1
		}
		ps := make([]param, 0, len(doc.Conversion.Parameters))
		for _, p := range doc.Conversion.Parameters {
			key := 0
			if _, c, ok := p.ID.resolve(); ok {
				key = c
			}
			unit := p.Unit
			if unit.Name == "" && unit.Factor == 0 {
				unit = p.Value.Unit
			}
			ps = append(ps, param{key: key, name: p.Name, value: p.Value.Value, metres: unit.metres()})
		}
		out.Params = params(ps, out.UnitFactor)
	}
	return out, nil
}

func (p *pjCRS) datum() *pjDatum {
	if p.Datum != nil {
		return p.Datum
	}
	return p.DatumEnsemble
}

func fillDatum(out *CRS, d *pjDatum) error {
	if d == nil || d.Ellipsoid == nil || d.Ellipsoid.SemiMajor.Value <= 0 {
		return fmt.Errorf("%w: missing datum or ellipsoid", ErrInvalidCRS)
	}
	out.Datum = canonicalDatum(d.Name)
	out.Ellipsoid = Ellipsoid{
		Name:              d.Ellipsoid.Name,
		SemiMajor:         d.Ellipsoid.SemiMajor.Value,
		InverseFlattening: d.Ellipsoid.InverseFlattening,
	}
	return nil
}

// parameters shared by PROJJSON and WKT

// EPSG parameter codes
const (
	paramLatOrigin      = 8801
	paramCentralMerid   = 8802
	paramScaleFactor    = 8805
	paramFalseEasting   = 8806
	paramFalseNorthing  = 8807
	paramLatFalseOrigin = 8821
	paramLonFalseOrigin = 8822
	paramStdParallel1   = 8823
	paramStdParallel2   = 8824
	paramEastingFalse   = 8826
	paramNorthingFalse  = 8827
)

var paramNames = map[string]int{
	"latitude of natural origin":        paramLatOrigin,
	"latitude of origin":                paramLatOrigin,
	"latitude of center":                paramLatOrigin,
	"latitude of centre":                paramLatOrigin,
	"longitude of natural origin":       paramCentralMerid,
	"central meridian":                  paramCentralMerid,
	"longitude of center":               paramCentralMerid,
	"longitude of centre":               paramCentralMerid,
	"scale factor at natural origin":    paramScaleFactor,
	"scale factor":                      paramScaleFactor,
	"false easting":                     paramFalseEasting,
	"false northing":                    paramFalseNorthing,
	"latitude of false origin":          paramLatFalseOrigin,
	"longitude of false origin":         paramLonFalseOrigin,
	"latitude of 1st standard parallel": paramStdParallel1,
	"standard parallel 1":               paramStdParallel1,
	"latitude of 2nd standard parallel": paramStdParallel2,
	"standard parallel 2":               paramStdParallel2,
	"easting at false origin":           paramEastingFalse,
	"northing at false origin":          paramNorthingFalse,
}

type param struct {
	key    int
	name   string
	value  float64
	metres float64 // length of the value's unit, 0 when unstated
}

// params folds raw parameters into Params. Lengths without their own unit are
// in crsUnit metres per unit.
func params(ps []param, crsUnit float64) Params {
	out := Params{ScaleFactor: 1}
	for _, p := range ps {
		key := p.key
		if key == 0 {
			key = paramNames[normName(p.name)]
		}
		length := func() float64 {
			if p.metres > 0 {
				return p.value * p.metres
			}
			return p.value * crsUnit
		}
		switch key {
		case paramLatOrigin, paramLatFalseOrigin:
			out.LatOrigin = p.value
		case paramCentralMerid, paramLonFalseOrigin:
			out.CentralMerid = p.value
		case paramScaleFactor:
			out.ScaleFactor = p.value
		case paramFalseEasting, paramEastingFalse:
			out.FalseEasting = length()
		case paramFalseNorthing, paramNorthingFalse:
			out.FalseNorthing = length()
		case paramStdParallel1:
			out.StdParallel1 = p.value
		case paramStdParallel2:
			out.StdParallel2 = p.value
		}
	}
	return out
}

func axisOrder(direction, abbreviation string) AxisOrder {
	dir := strings.ToLower(strings.TrimSpace(direction))
	abbr := strings.ToLower(strings.TrimSpace(abbreviation))
	if dir == "north" || dir == "south" || (dir == "" && (abbr == "lat" || abbr == "n")) {
		return LatitudeFirst
	}
	return LongitudeFirst
}

func canonicalUnit(u string, k Kind) string {
	switch normName(u) {
	case "degree", "degrees", "deg":
		return unitDegree
	case "metre", "meter", "metres", "meters", "m":
		return unitMetre
	case "":
		if k == Geographic {
			return unitDegree
		}
		return unitMetre
	default:
		return normName(u)
	}
}

// linearUnitFactor knows the lengths that show up in LAS headers.
func linearUnitFactor(name string) float64 {
	switch normName(name) {
	case "metre", "meter", "metres", "meters", "m":
		return 1
	case "us survey foot", "foot us", "us foot", "ftus":
		return 1200.0 / 3937.0
	case "foot", "international foot", "ft":
		return 0.3048
	case "kilometre", "kilometer", "km":
		return 1000
	default:
		return 0
	}
}

var datumAliases = map[string]string{
	"world geodetic system 1984": datumWGS84,
	"wgs 1984":                   datumWGS84,
	"wgs 84":                     datumWGS84,
	"wgs84":                      datumWGS84,
	"d wgs 1984":                 datumWGS84,
	"north american datum 1983":  datumNAD83,
	"nad83":                      datumNAD83,
	"d north american 1983":      datumNAD83,
}

func canonicalDatum(name string) string {
	n := normName(name)
	n = strings.TrimSuffix(n, " ensemble")
	if d, ok := datumAliases[n]; ok {
		return d
	}
	return n
}

func truncate(s string) string {
	if len(s) > 40 {
		return s[:40] + "..."
	}
	return s
}
