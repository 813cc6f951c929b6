package bounds

import (
	"math"
	"testing"

	"github.com/mohammed-shakir/point-catalog/internal/core/model"
)

func TestMerge_EmptyInputIsNil(t *testing.T) {
	if got := Merge(); got != nil {
		t.Fatalf("Merge() = %v want nil", *got)
	}
	if got := Merge(model.EmptyBox()); got != nil {
		t.Fatalf("merging only the sentinel must be nil, got %v", *got)
	}
	if got := MergeRecords([]model.AssetRecord{{Locator: "broken.laz"}}); got != nil {
		t.Fatalf("records without bounds must merge to nil, got %v", *got)
	}
}

func TestMerge_CommutativeAssociative(t *testing.T) {
	a := model.NewBox(0, 0, 10, 10)
	b := model.NewBox(-5, 3, 4, 20)
	c := model.NewBox(8, -2, 30, 6)

	abc := Merge(a, b, c)
	cab := Merge(c, a, b)
	ab := Merge(a, b)
	nested := Merge(*ab, c)
	bc := Merge(b, c)
	nested2 := Merge(a, *bc)

	want := model.NewBox(-5, -2, 30, 20)
	for name, got := range map[string]*model.BoundingBox{
		"abc": abc, "cab": cab, "(ab)c": nested, "a(bc)": nested2,
	} {
		if got == nil || *got != want {
			t.Fatalf("%s = %v want %v", name, got, want)
		}
	}
}

func TestMerge_DoesNotAliasInputs(t *testing.T) {
	a := model.NewBox(0, 0, 1, 1)
	got := Merge(a)
	got.MaxX = 100
	if a.MaxX != 1 {
		t.Fatalf("merge result aliases input")
	}
}

func TestMerge_SkipsNonFinite(t *testing.T) {
	got := Merge(model.NewBox(0, 0, 1, 1), model.NewBox(math.NaN(), 0, 5, 5))
	if got == nil || *got != model.NewBox(0, 0, 1, 1) {
		t.Fatalf("got %v", got)
	}
}

func TestMergeRecords(t *testing.T) {
	b1 := model.NewBox(664000, 6243000, 665000, 6244000)
	b2 := model.NewBox(664990, 6243000, 665990, 6244000)
	recs := []model.AssetRecord{
		{Locator: "a.laz", Bounds: &b1},
		{Locator: "b.laz", Err: "unreadable"},
		{Locator: "c.laz", Bounds: &b2},
	}
	got := MergeRecords(recs)
	want := model.NewBox(664000, 6243000, 665990, 6244000)
	if got == nil || *got != want {
		t.Fatalf("got %v want %v", got, want)
	}
}
