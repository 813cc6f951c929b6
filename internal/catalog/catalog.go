package catalog

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/mohammed-shakir/point-catalog/internal/bounds"
	"github.com/mohammed-shakir/point-catalog/internal/core/model"
	"github.com/mohammed-shakir/point-catalog/internal/crs"
)

// Catalog is the immutable result of a build. Accessors return copies.
type Catalog struct {
	base        string
	pattern     string
	remote      bool
	scanned     bool
	assets      []model.AssetRecord
	overall     *model.BoundingBox
	crs         crs.Descriptor
	consistent  *bool
	policy      crs.Policy
	totalPoints int64
	unreadable  int
	missingCRS  int
	builtAt     time.Time

	resolver    crs.Resolver
	reprojector *bounds.Reprojector
}

func (c *Catalog) Base() string    { return c.base }
func (c *Catalog) Pattern() string { return c.pattern }
func (c *Catalog) Remote() bool    { return c.remote }
func (c *Catalog) Scanned() bool   { return c.scanned }

func (c *Catalog) Assets() []model.AssetRecord {
	out := make([]model.AssetRecord, len(c.assets))
	for i, a := range c.assets {
		out[i] = a.Clone()
	}
	return out
}

// OverallBounds is nil when no asset had bounds.
func (c *Catalog) OverallBounds() *model.BoundingBox {
	if c.overall == nil {
		return nil
	}
	b := *c.overall
	return &b
}

// CRS is the descriptor of the first asset that has one.
func (c *Catalog) CRS() crs.Descriptor { return c.crs }

// CRSConsistent reports whether every asset CRS matched the first. defined is
// false when the check was skipped or no asset carried a CRS.
func (c *Catalog) CRSConsistent() (value, defined bool) {
	if c.consistent == nil {
		return false, false
	}
	return *c.consistent, true
}

func (c *Catalog) Policy() crs.Policy { return c.policy }
func (c *Catalog) TotalPoints() int64 { return c.totalPoints }
func (c *Catalog) Unreadable() int    { return c.unreadable }
func (c *Catalog) MissingCRS() int    { return c.missingCRS }
func (c *Catalog) BuiltAt() time.Time { return c.builtAt }
func (c *Catalog) HasAssets() bool    { return len(c.assets) > 0 }
func (c *Catalog) IsValid() bool      { return c.HasAssets() && c.scanned }

// IsComplete is IsValid plus a positive CRS consistency check.
func (c *Catalog) IsComplete() bool {
	v, ok := c.CRSConsistent()
	return c.IsValid() && ok && v
}

func (c *Catalog) consistentString() string {
	if c.consistent == nil {
		return "undefined"
	}
	return strconv.FormatBool(*c.consistent)
}

// ReconcileAgainst reprojects every asset box from its own CRS, and the overall
// envelope, into target. The catalog is left untouched; any failed
// reprojection fails the call.
func (c *Catalog) ReconcileAgainst(ctx context.Context, target crs.Descriptor, opts ...bounds.Option) (Report, error) {
	if c.reprojector == nil {
		return Report{}, fmt.Errorf("%w: catalog built without a reprojector", bounds.ErrTransformUnavailable)
	}
	if target.IsZero() {
		return Report{}, fmt.Errorf("%w: empty target", crs.ErrInvalidCRS)
	}

	rep := c.Report()
	for i, a := range rep.Assets {
		if a.Bounds == nil {
			continue
		}
		if !a.HasCRS() {
			return Report{}, fmt.Errorf("%w: %s", ErrMissingCRS, a.Locator)
		}
		box, err := c.reprojector.Reproject(ctx, *a.Bounds, crs.Descriptor(a.CRS), target, opts...)
		if err != nil {
			return Report{}, fmt.Errorf("reconcile %s: %w", a.Locator, err)
		}
		rep.Assets[i].Bounds = &box
		rep.Assets[i].CRS = string(target)
	}

	if v, ok := c.CRSConsistent(); ok && v && c.overall != nil {
		box, err := c.reprojector.Reproject(ctx, *c.overall, c.crs, target, opts...)
		if err != nil {
			return Report{}, fmt.Errorf("reconcile overall bounds: %w", err)
		}
		rep.OverallBounds = &box
	} else {
		rep.OverallBounds = bounds.MergeRecords(rep.Assets)
	}

	rep.SourceCRS = rep.CRS
	rep.CRS = string(target)
	same := true
	rep.CRSConsistent = &same
	rep.Complete = rep.Valid
	return rep, nil
}
