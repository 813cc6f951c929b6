package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/point-catalog/internal/catalog"
)

func featureCollection(r catalog.Report) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, a := range r.ReadableAssets() {
		f := geojson.NewFeature(a.Bounds.Polygon())
		f.Properties["filename"] = a.Locator
		f.Properties["numpoints"] = a.PointCount
		f.Properties["copc"] = a.Flags.COPC
		f.Properties["compressed"] = a.Flags.Compressed
		if a.CRS != "" && a.CRS != r.CRS {
			f.Properties["srs"] = a.CRS
		}
		fc.Append(f)
	}
	if r.OverallBounds != nil {
		fc.BBox = geojson.NewBBox(r.OverallBounds.Bound())
	}

	fc.ExtraMembers = geojson.Properties{"base": r.Base}
	if c := layerCRS(r); c != nil && c.ID() != "" {
		fc.ExtraMembers["crs"] = map[string]any{
			"type":       "name",
			"properties": map[string]string{"name": c.ID()},
		}
	} else if r.CRS != "" {
		fc.ExtraMembers["crs"] = r.CRS
	}
	return fc
}

func writeGeoJSON(w io.Writer, r catalog.Report) error {
	raw, err := json.Marshal(featureCollection(r))
	if err != nil {
		return fmt.Errorf("export geojson: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return fmt.Errorf("export geojson: %w", err)
	}
	return nil
}
