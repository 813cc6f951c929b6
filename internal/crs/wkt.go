package crs

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

var wktRoots = []string{
	"GEOGCS", "PROJCS", "GEOCCS", "COMPD_CS",
	"GEOGCRS", "GEODCRS", "GEODETICCRS", "GEOGRAPHICCRS",
	"PROJCRS", "PROJECTEDCRS", "COMPOUNDCRS", "BOUNDCRS",
}

func isWKT(s string) bool {
	i := strings.IndexAny(s, "[(")
	if i <= 0 {
		return false
	}
	head := strings.ToUpper(strings.TrimSpace(s[:i]))
	for _, r := range wktRoots {
		if head == r {
			return true
		}
	}
	return false
}

// parseWKT prefers the authority id on the horizontal CRS node when the
// registry knows it and otherwise reads datum, projection and units from the
// document itself.
func parseWKT(s string) (*CRS, error) {
	root, err := parseWKTTree(s)
	if err != nil {
		return nil, err
	}
	n, err := horizontal(root)
	if err != nil {
		return nil, err
	}
	auth, code, hasID := n.authority()
	if hasID {
		if c, ok := Lookup(auth, code); ok {
			return c, nil
		}
	}
	c, err := fromWKT(n)
	if err != nil {
		if hasID && plausibleCode(auth, code) {
			return unresolved(auth, code), nil
		}
		return nil, err
	}
	if hasID {
		c.Authority, c.Code = auth, code
	}
	return c, nil
}

// horizontal unwraps compound and bound CRSes down to the 2D component.
func horizontal(n *wktNode) (*wktNode, error) {
	switch n.key {
	case "COMPD_CS", "COMPOUNDCRS":
		for _, c := range n.nodes() {
			switch c.key {
			case "GEOGCS", "PROJCS", "GEOGCRS", "GEODCRS", "GEODETICCRS", "GEOGRAPHICCRS", "PROJCRS", "PROJECTEDCRS":
				return c, nil
			}
		}
		return nil, fmt.Errorf("%w: compound CRS without a horizontal component", ErrInvalidCRS)
	case "BOUNDCRS":
		src := n.child("SOURCECRS")
		if src == nil || len(src.nodes()) == 0 {
			return nil, fmt.Errorf("%w: bound CRS without source", ErrInvalidCRS)
		}
		return horizontal(src.nodes()[0])
	}
	return n, nil
}

func fromWKT(n *wktNode) (*CRS, error) {
	out := &CRS{Name: n.str(0)}
	switch n.key {
	case "GEOGCS", "GEOGCRS", "GEODCRS", "GEODETICCRS", "GEOGRAPHICCRS":
		out.Kind = Geographic
		if err := fillWKTDatum(out, n); err != nil {
			return nil, err
		}
		out.Unit = unitDegree
	case "PROJCS", "PROJCRS", "PROJECTEDCRS":
		out.Kind = Projected
		base := n.child("GEOGCS", "BASEGEOGCRS", "BASEGEODCRS", "GEOGCRS", "GEODCRS")
		if base == nil {
			return nil, fmt.Errorf("%w: projected WKT without a base CRS", ErrInvalidCRS)
		}
		if err := fillWKTDatum(out, base); err != nil {
			return nil, err
		}
		unit := n.child("UNIT", "LENGTHUNIT")
		if unit == nil {
			for _, ax := range n.axes() {
				if unit = ax.child("LENGTHUNIT", "UNIT"); unit != nil {
					break
				}
			}
		}
		out.Unit, out.UnitFactor = unitMetre, 1
		if unit != nil {
			out.Unit = canonicalUnit(unit.str(0), Projected)
			if f, ok := unit.num(1); ok && f > 0 {
				out.UnitFactor = f
			} else if f := linearUnitFactor(unit.str(0)); f > 0 {
				out.UnitFactor = f
			}
		}

		holder := n
		method := n.child("PROJECTION")
		if conv := n.child("CONVERSION"); conv != nil {
			holder = conv
			method = conv.child("METHOD", "PROJECTION")
		}
		if method == nil {
			return nil, fmt.Errorf("%w: projected WKT without a projection method", ErrInvalidCRS)
		}
		out.Method = CanonicalMethod(method.str(0))
		var ps []param
		for _, p := range holder.all("PARAMETER") {
			v, ok := p.num(1)
			if !ok {
				return nil, fmt.Errorf("%w: parameter %q without a value", ErrInvalidCRS, p.str(0))
			}
			key := 0
			if _, c, ok := p.authority(); ok {
				key = c
			}
			pr := param{key: key, name: p.str(0), value: v}
			if u := p.child("LENGTHUNIT"); u != nil {
				pr.metres, _ = u.num(1)
			}
			if u := p.child("ANGLEUNIT"); u != nil {
				if rad, ok := u.num(1); ok && rad > 0 {
					pr.value = v * rad * 180 / math.Pi
				}
			}
			ps = append(ps, pr)
		}
		out.Params = params(ps, out.UnitFactor)
	default:
		return nil, fmt.Errorf("%w: unsupported WKT node %s", ErrInvalidCRS, n.key)
	}

	out.AxisOrder = LongitudeFirst
	if axes := n.axes(); len(axes) > 0 {
		out.AxisOrder = axisOrder(axes[0].str(1), "")
	}
	return out, nil
}

func fillWKTDatum(out *CRS, n *wktNode) error {
	d := n.child("DATUM", "GEODETICDATUM", "TRF", "ENSEMBLE")
	if d == nil {
		return fmt.Errorf("%w: WKT without a datum", ErrInvalidCRS)
	}
	ell := d.child("SPHEROID", "ELLIPSOID")
	if ell == nil {
		ell = n.child("SPHEROID", "ELLIPSOID")
	}
	if ell == nil {
		return fmt.Errorf("%w: WKT datum without an ellipsoid", ErrInvalidCRS)
	}
	a, okA := ell.num(1)
	rf, okF := ell.num(2)
	if !okA || !okF || a <= 0 || rf < 0 {
		return fmt.Errorf("%w: bad ellipsoid in WKT", ErrInvalidCRS)
	}
	out.Datum = canonicalDatum(d.str(0))
	out.Ellipsoid = Ellipsoid{Name: ell.str(0), SemiMajor: a, InverseFlattening: rf}
	return nil
}

// WKT tree

type wktNode struct {
	key  string
	args []wktArg
}

type wktArg struct {
	text string
	node *wktNode
}

func (n *wktNode) nodes() []*wktNode {
	var out []*wktNode
	for _, a := range n.args {
		if a.node != nil {
			out = append(out, a.node)
		}
	}
	return out
}

// child returns the first direct child whose keyword is one of keys.
func (n *wktNode) child(keys ...string) *wktNode {
	for _, c := range n.nodes() {
		for _, k := range keys {
			if c.key == k {
				return c
			}
		}
	}
	return nil
}

func (n *wktNode) all(key string) []*wktNode {
	var out []*wktNode
	for _, c := range n.nodes() {
		if c.key == key {
			out = append(out, c)
		}
	}
	return out
}

// axes returns the AXIS nodes directly under n; WKT2 places them beside CS.
func (n *wktNode) axes() []*wktNode {
	return n.all("AXIS")
}

func (n *wktNode) str(i int) string {
	if i >= len(n.args) || n.args[i].node != nil {
		return ""
	}
	return n.args[i].text
}

func (n *wktNode) num(i int) (float64, bool) {
	s := n.str(i)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// authority reads the last AUTHORITY or ID node directly under n.
func (n *wktNode) authority() (string, int, bool) {
	var (
		auth  string
		code  int
		found bool
	)
	for _, c := range n.nodes() {
		if c.key != "AUTHORITY" && c.key != "ID" {
			continue
		}
		if a, k, ok := codeOf(c.str(0), c.str(1)); ok {
			auth, code, found = a, k, true
		}
	}
	return auth, code, found
}

const maxWKTDepth = 32

type wktParser struct {
	s     string
	i     int
	depth int
}

func parseWKTTree(s string) (*wktNode, error) {
	p := &wktParser{s: s}
	n, err := p.node()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.i != len(p.s) {
		return nil, p.errorf("trailing text")
	}
	return n, nil
}

func (p *wktParser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: wkt at offset %d: %s", ErrInvalidCRS, p.i, fmt.Sprintf(format, args...))
}

func (p *wktParser) skipSpace() {
	for p.i < len(p.s) {
		switch p.s[p.i] {
		case ' ', '\t', '\n', '\r':
			p.i++
		default:
			return
		}
	}
}

func (p *wktParser) node() (*wktNode, error) {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > maxWKTDepth {
		return nil, p.errorf("nesting too deep")
	}

	p.skipSpace()
	start := p.i
	for p.i < len(p.s) && isKeywordChar(p.s[p.i]) {
		p.i++
	}
	if p.i == start {
		return nil, p.errorf("expected keyword")
	}
	n := &wktNode{key: strings.ToUpper(p.s[start:p.i])}
	p.skipSpace()
	if p.i >= len(p.s) || (p.s[p.i] != '[' && p.s[p.i] != '(') {
		return nil, p.errorf("expected '[' after %s", n.key)
	}
	closer := byte(']')
	if p.s[p.i] == '(' {
		closer = ')'
	}
	p.i++

	for {
		p.skipSpace()
		if p.i >= len(p.s) {
			return nil, p.errorf("unterminated %s", n.key)
		}
		if p.s[p.i] == closer {
			p.i++
			return n, nil
		}
		if len(n.args) > 0 {
			if p.s[p.i] != ',' {
				return nil, p.errorf("expected ','")
			}
			p.i++
			p.skipSpace()
		}
		a, err := p.arg()
		if err != nil {
			return nil, err
		}
		n.args = append(n.args, a)
	}
}

func (p *wktParser) arg() (wktArg, error) {
	if p.i < len(p.s) && p.s[p.i] == '"' {
		p.i++
		var b strings.Builder
		for p.i < len(p.s) {
			c := p.s[p.i]
			p.i++
			if c == '"' {
				// "" is an escaped quote
				if p.i < len(p.s) && p.s[p.i] == '"' {
					b.WriteByte('"')
					p.i++
					continue
				}
				return wktArg{text: b.String()}, nil
			}
			b.WriteByte(c)
		}
		return wktArg{}, p.errorf("unterminated string")
	}

	start := p.i
	for p.i < len(p.s) && !strings.ContainsRune(",[]() \t\n\r", rune(p.s[p.i])) {
		p.i++
	}
	end := p.i
	p.skipSpace()
	if p.i < len(p.s) && (p.s[p.i] == '[' || p.s[p.i] == '(') {
		p.i = start
		n, err := p.node()
		if err != nil {
			return wktArg{}, err
		}
		return wktArg{node: n}, nil
	}
	if end == start {
		return wktArg{}, p.errorf("empty value")
	}
	return wktArg{text: p.s[start:end]}, nil
}

func isKeywordChar(c byte) bool {
	return c == '_' || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}
