package projection

import (
	"math"

	"github.com/wroge/wgs84"
)

// transverseMercator is a wgs84.Projection in Krüger's series form, truncated
// after the n³ terms. Sub-millimetre within a UTM zone in both directions; the
// library's own Snyder series is off by metres on the inverse.
type transverseMercator struct {
	lon0, lat0, k0, fe, fn float64
}

type krueger struct {
	e, a               float64 // eccentricity, rectifying radius
	alpha, beta, delta [3]float64
}

func newKrueger(s wgs84.Spheroid) krueger {
	f := 0.0
	if fi := s.Fi(); fi != 0 && !math.IsInf(fi, 0) {
		f = 1 / fi
	}
	n := f / (2 - f)
	n2, n3 := n*n, n*n*n
	return krueger{
		e: math.Sqrt(f * (2 - f)),
		a: s.A() / (1 + n) * (1 + n2/4 + n2*n2/64),
		alpha: [3]float64{
			n/2 - 2*n2/3 + 5*n3/16,
			13*n2/48 - 3*n3/5,
			61 * n3 / 240,
		},
		beta: [3]float64{
			n/2 - 2*n2/3 + 37*n3/96,
			n2/48 + n3/15,
			17 * n3 / 480,
		},
		delta: [3]float64{
			2*n - 2*n2/3 - 2*n3,
			7*n2/3 - 8*n3/5,
			56 * n3 / 15,
		},
	}
}

// series returns (ξ, η) for geodetic latitude phi and longitude offset lam.
func (k krueger) series(phi, lam float64) (float64, float64) {
	s := math.Sin(phi)
	tau := math.Sinh(math.Atanh(s) - k.e*math.Atanh(k.e*s))
	xiP := math.Atan2(tau, math.Cos(lam))
	etaP := math.Atanh(math.Sin(lam) / math.Sqrt(1+tau*tau))

	xi, eta := xiP, etaP
	for j := 1; j <= 3; j++ {
		a := k.alpha[j-1]
		m := 2 * float64(j)
		xi += a * math.Sin(m*xiP) * math.Cosh(m*etaP)
		eta += a * math.Cos(m*xiP) * math.Sinh(m*etaP)
	}
	return xi, eta
}

func (t transverseMercator) scale() float64 {
	if t.k0 == 0 {
		return 1
	}
	return t.k0
}

func (t transverseMercator) FromLonLat(lon, lat float64, s wgs84.Spheroid) (float64, float64) {
	k := newKrueger(s)
	xi0 := 0.0
	if t.lat0 != 0 {
		xi0, _ = k.series(rad(t.lat0), 0)
	}
	xi, eta := k.series(rad(lat), rad(wrapLon(lon-t.lon0)))
	k0 := t.scale()
	return t.fe + k0*k.a*eta, t.fn + k0*k.a*(xi-xi0)
}

func (t transverseMercator) ToLonLat(east, north float64, s wgs84.Spheroid) (float64, float64) {
	k := newKrueger(s)
	xi0 := 0.0
	if t.lat0 != 0 {
		xi0, _ = k.series(rad(t.lat0), 0)
	}
	k0 := t.scale()
	xi := (north-t.fn)/(k0*k.a) + xi0
	eta := (east - t.fe) / (k0 * k.a)

	xiP, etaP := xi, eta
	for j := 1; j <= 3; j++ {
		b := k.beta[j-1]
		m := 2 * float64(j)
		xiP -= b * math.Sin(m*xi) * math.Cosh(m*eta)
		etaP -= b * math.Cos(m*xi) * math.Sinh(m*eta)
	}

	chi := math.Asin(math.Sin(xiP) / math.Cosh(etaP))
	phi := chi
	for j := 1; j <= 3; j++ {
		phi += k.delta[j-1] * math.Sin(2*float64(j)*chi)
	}
	dl := math.Atan2(math.Sinh(etaP), math.Cos(xiP))
	return t.lon0 + deg(dl), deg(phi)
}
