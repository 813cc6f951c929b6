package projection

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// maxMercatorLat is the latitude at which Web Mercator becomes square.
const maxMercatorLat = 85.06

// webMercator is EPSG:3857, delegated to orb's spherical implementation.
type webMercator struct{}

func (webMercator) forward(lon, lat float64) (float64, float64, error) {
	if err := checkLonLat(lon, lat); err != nil {
		return 0, 0, err
	}
	if math.Abs(lat) > maxMercatorLat {
		return 0, 0, fmt.Errorf("%w: latitude %g beyond web mercator limit", ErrOutOfDomain, lat)
	}
	p := project.WGS84.ToMercator(orb.Point{lon, lat})
	return p[0], p[1], nil
}

func (webMercator) inverse(x, y float64) (float64, float64, error) {
	p := project.Mercator.ToWGS84(orb.Point{x, y})
	if !finite(p[0]) || !finite(p[1]) || math.Abs(p[1]) > maxMercatorLat+1e-9 {
		return 0, 0, fmt.Errorf("%w: x=%g y=%g", ErrOutOfDomain, x, y)
	}
	return p[0], p[1], nil
}
