package footprint

import (
	"fmt"
	"sort"

	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/point-catalog/internal/core/model"
)

// Coarsen replaces every cell by its ancestor at parentRes. The result is
// sorted and unique.
func Coarsen(cells model.Cells, parentRes int) (model.Cells, error) {
	if err := validateRes(parentRes); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(cells))
	out := make([]string, 0, len(cells))
	for _, s := range cells {
		p, err := toParent(s, parentRes)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

func toParent(cell string, parentRes int) (string, error) {
	var c h3.Cell
	if err := c.UnmarshalText([]byte(cell)); err != nil {
		return "", fmt.Errorf("parse cell: %w", err)
	}
	if !c.IsValid() {
		return "", fmt.Errorf("invalid h3 cell %q", cell)
	}
	cur := c.Resolution()
	if parentRes > cur {
		return "", fmt.Errorf("parent res %d must be <= cell resolution %d", parentRes, cur)
	}
	if parentRes == cur {
		return cell, nil
	}
	p, err := c.Parent(parentRes)
	if err != nil {
		return "", fmt.Errorf("h3 parent: %w", err)
	}
	return p.String(), nil
}
