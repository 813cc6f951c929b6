// Package bounds merges bounding boxes and reprojects them between CRSes.
package bounds

import (
	"github.com/mohammed-shakir/point-catalog/internal/core/model"
)

// Merge returns the smallest box containing every input box, or nil when
// there is nothing to merge. Empty and non-finite boxes are skipped.
func Merge(boxes ...model.BoundingBox) *model.BoundingBox {
	acc := model.EmptyBox()
	for _, b := range boxes {
		if b.IsEmpty() || !b.IsFinite() {
			continue
		}
		acc = acc.Union(b)
	}
	if acc.IsEmpty() {
		return nil
	}
	return &acc
}

// MergeRecords merges the bounds of every record that has them.
func MergeRecords(records []model.AssetRecord) *model.BoundingBox {
	boxes := make([]model.BoundingBox, 0, len(records))
	for _, r := range records {
		if r.Bounds != nil {
			boxes = append(boxes, *r.Bounds)
		}
	}
	return Merge(boxes...)
}
