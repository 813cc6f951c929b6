package catalog

import (
	"time"

	"github.com/mohammed-shakir/point-catalog/internal/core/model"
)

// Report is the serializable form of a catalog. CRSConsistent is null when the
// check was not run or no asset had a CRS.
type Report struct {
	Base          string              `json:"base"`
	Pattern       string              `json:"pattern,omitempty"`
	Remote        bool                `json:"remote"`
	CRS           string              `json:"crs,omitempty"`
	SourceCRS     string              `json:"source_crs,omitempty"`
	OverallBounds *model.BoundingBox  `json:"overall_bounds"`
	CRSConsistent *bool               `json:"crs_consistent"`
	Policy        string              `json:"policy"`
	Scanned       bool                `json:"scanned"`
	Valid         bool                `json:"valid"`
	Complete      bool                `json:"complete"`
	TotalPoints   int64               `json:"total_points"`
	Unreadable    int                 `json:"unreadable"`
	MissingCRS    int                 `json:"missing_crs"`
	BuiltAt       time.Time           `json:"built_at"`
	Assets        []model.AssetRecord `json:"assets"`
	H3Res         *int                `json:"h3_res,omitempty"`
	Cells         model.Cells         `json:"h3_cells,omitempty"`
}

func (c *Catalog) Report() Report {
	r := Report{
		Base:          c.base,
		Pattern:       c.pattern,
		Remote:        c.remote,
		CRS:           string(c.crs),
		OverallBounds: c.OverallBounds(),
		Policy:        c.policy.String(),
		Scanned:       c.scanned,
		Valid:         c.IsValid(),
		Complete:      c.IsComplete(),
		TotalPoints:   c.totalPoints,
		Unreadable:    c.unreadable,
		MissingCRS:    c.missingCRS,
		BuiltAt:       c.builtAt,
		Assets:        c.Assets(),
	}
	if c.consistent != nil {
		v := *c.consistent
		r.CRSConsistent = &v
	}
	return r
}

// ReadableAssets returns the assets that carry bounds.
func (r Report) ReadableAssets() []model.AssetRecord {
	var out []model.AssetRecord
	for _, a := range r.Assets {
		if a.Readable() {
			out = append(out, a)
		}
	}
	return out
}
