package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mohammed-shakir/point-catalog/internal/bounds"
	"github.com/mohammed-shakir/point-catalog/internal/core/model"
	"github.com/mohammed-shakir/point-catalog/internal/crs"
	"github.com/mohammed-shakir/point-catalog/internal/projection"
	"github.com/mohammed-shakir/point-catalog/internal/reader"
	"github.com/mohammed-shakir/point-catalog/internal/reader/lasfixture"
)

var tiles = []model.BoundingBox{
	model.NewBox(664000, 6243000, 665000, 6244000),
	model.NewBox(664990, 6243000, 665990, 6244000),
	model.NewBox(665980, 6243000, 666980, 6244000),
	model.NewBox(666970, 6243000, 667970, 6244000),
}

func writeTiles(t *testing.T, dir string, epsg uint16, boxes []model.BoundingBox) []string {
	t.Helper()
	var out []string
	for i, b := range boxes {
		name := "tile_" + string(rune('a'+i)) + ".laz"
		out = append(out, lasfixture.Write(t, dir, name, lasfixture.Spec{
			Minor: 4, Bounds: b, Points: uint64(100 * (i + 1)), Format: 6,
			Compressed: true, COPC: true, EPSG: epsg,
		}))
	}
	return out
}

func newBuilder(t *testing.T, r reader.Interface, opts Options) *Builder {
	t.Helper()
	b, err := NewBuilder(Deps{
		Reader:      r,
		Reprojector: bounds.NewReprojector(projection.NewEngine(nil), nil),
	}, opts)
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	return b
}

// fakeReader serves records keyed by locator.
func fakeReader(recs map[string]model.AssetRecord) reader.Interface {
	return reader.Func(func(_ context.Context, loc string) (model.AssetRecord, error) {
		r, ok := recs[loc]
		if !ok {
			return model.AssetRecord{Locator: loc, Err: "missing"}, reader.ErrUnreadableAsset
		}
		r.Locator = loc
		return r, nil
	})
}

func rec(box model.BoundingBox, srs string) model.AssetRecord {
	return model.AssetRecord{Bounds: &box, CRS: srs, PointCount: 10}
}

func TestBuild_AdjacentTiles(t *testing.T) {
	dir := t.TempDir()
	writeTiles(t, dir, 26908, tiles)

	b := newBuilder(t, reader.NewLAS(reader.Config{}, nil), DefaultOptions())
	c, err := b.Build(context.Background(), Source{Base: dir, Pattern: "*.laz"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	want := model.NewBox(664000, 6243000, 667970, 6244000)
	if ob := c.OverallBounds(); ob == nil || *ob != want {
		t.Fatalf("overall=%v want %v", ob, want)
	}
	if v, ok := c.CRSConsistent(); !ok || !v {
		t.Fatalf("crs consistent=%v defined=%v", v, ok)
	}
	if !c.IsValid() || !c.IsComplete() || c.Remote() {
		t.Fatalf("valid=%v complete=%v remote=%v", c.IsValid(), c.IsComplete(), c.Remote())
	}
	if c.CRS() != "EPSG:26908" || c.TotalPoints() != 1000 {
		t.Fatalf("crs=%q total=%d", c.CRS(), c.TotalPoints())
	}
	for _, a := range c.Assets() {
		if !want.Contains(*a.Bounds, 0) {
			t.Fatalf("asset %s not inside overall", a.Locator)
		}
	}

	// removing the last tile shrinks the envelope to the remaining tiles
	if err := os.Remove(filepath.Join(dir, "tile_d.laz")); err != nil {
		t.Fatal(err)
	}
	c, err = b.Build(context.Background(), Source{Base: dir, Pattern: "*.laz"})
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if ob := c.OverallBounds(); ob == nil || ob.MaxX != 666980 || ob.MinX != 664000 {
		t.Fatalf("overall after removal=%v", ob)
	}
}

func TestBuild_StatePlaneTiles(t *testing.T) {
	dir := t.TempDir()
	writeTiles(t, dir, 2927, tiles)

	for _, policy := range []crs.Policy{crs.Normalized, crs.Lexical} {
		opts := DefaultOptions()
		opts.Policy = policy
		c, err := newBuilder(t, reader.NewLAS(reader.Config{}, nil), opts).
			Build(context.Background(), Source{Base: dir, Pattern: "*.laz"})
		if err != nil {
			t.Fatalf("%v: build: %v", policy, err)
		}
		if v, ok := c.CRSConsistent(); !ok || !v {
			t.Fatalf("%v: consistent=%v defined=%v", policy, v, ok)
		}
		if !c.IsComplete() || c.CRS() != "EPSG:2927" {
			t.Fatalf("%v: complete=%v crs=%q", policy, c.IsComplete(), c.CRS())
		}
	}
}

func TestBuild_PreservesLocatorOrder(t *testing.T) {
	locs := []string{"a", "b", "c", "d", "e", "f"}
	r := reader.Func(func(_ context.Context, loc string) (model.AssetRecord, error) {
		// earlier locators finish last
		time.Sleep(time.Duration('g'-loc[0]) * 2 * time.Millisecond)
		box := model.NewBox(0, 0, 1, 1)
		return model.AssetRecord{Locator: loc, Bounds: &box, CRS: "EPSG:26908"}, nil
	})
	opts := DefaultOptions()
	opts.Workers = 4
	opts.RateLimit = 1000
	c, err := newBuilder(t, r, opts).Build(context.Background(), Source{Assets: locs})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for i, a := range c.Assets() {
		if a.Locator != locs[i] {
			t.Fatalf("[%d]=%s want %s", i, a.Locator, locs[i])
		}
	}
}

func TestBuild_PartialFailure(t *testing.T) {
	dir := t.TempDir()
	writeTiles(t, dir, 26908, tiles[:2])
	if err := os.WriteFile(filepath.Join(dir, "tile_z.laz"), []byte("junk"), 0o600); err != nil {
		t.Fatal(err)
	}
	c, err := newBuilder(t, reader.NewLAS(reader.Config{}, nil), DefaultOptions()).
		Build(context.Background(), Source{Base: dir, Pattern: "*.laz"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	assets := c.Assets()
	if len(assets) != 3 || c.Unreadable() != 1 {
		t.Fatalf("assets=%d unreadable=%d", len(assets), c.Unreadable())
	}
	bad := assets[2]
	if bad.Bounds != nil || bad.Err == "" || !strings.HasSuffix(bad.Locator, "tile_z.laz") {
		t.Fatalf("failed record=%+v", bad)
	}
	if ob := c.OverallBounds(); ob == nil || ob.MaxX != 665990 {
		t.Fatalf("overall=%v", ob)
	}
	if !c.IsComplete() {
		t.Fatalf("unreadable assets must not affect completeness")
	}
}

func TestBuild_NoAssets(t *testing.T) {
	b := newBuilder(t, reader.NewLAS(reader.Config{}, nil), DefaultOptions())
	if _, err := b.Build(context.Background(), Source{Base: t.TempDir(), Pattern: "*.laz"}); !errors.Is(err, ErrNoAssetsFound) {
		t.Fatalf("empty dir: err=%v", err)
	}

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "x.laz"), []byte("junk"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Build(context.Background(), Source{Base: dir, Pattern: "*.laz"}); !errors.Is(err, ErrNoAssetsFound) {
		t.Fatalf("all unreadable: err=%v", err)
	}
}

func TestBuild_MixedCRS(t *testing.T) {
	r := fakeReader(map[string]model.AssetRecord{
		"a": rec(tiles[0], "EPSG:26908"),
		"b": rec(tiles[1], "EPSG:32608"),
	})
	c, err := newBuilder(t, r, DefaultOptions()).Build(context.Background(), Source{Assets: []string{"a", "b"}})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if v, ok := c.CRSConsistent(); !ok || v {
		t.Fatalf("consistent=%v defined=%v", v, ok)
	}
	if !c.IsValid() || c.IsComplete() {
		t.Fatalf("valid=%v complete=%v", c.IsValid(), c.IsComplete())
	}
	if c.CRS() != "EPSG:26908" {
		t.Fatalf("catalog crs=%q", c.CRS())
	}
}

func TestBuild_Policies(t *testing.T) {
	r := fakeReader(map[string]model.AssetRecord{
		"a": rec(tiles[0], "EPSG:26908"),
		"b": rec(tiles[1], "urn:ogc:def:crs:EPSG::26908"),
		"c": rec(tiles[2], " epsg:26908"),
	})
	src := Source{Assets: []string{"a", "b"}}

	opts := DefaultOptions()
	c, err := newBuilder(t, r, opts).Build(context.Background(), src)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if v, _ := c.CRSConsistent(); !v {
		t.Fatalf("normalized policy should match authority spellings")
	}

	opts.Policy = crs.Lexical
	c, err = newBuilder(t, r, opts).Build(context.Background(), src)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if v, _ := c.CRSConsistent(); v {
		t.Fatalf("lexical policy compares text")
	}

	c, err = newBuilder(t, r, opts).Build(context.Background(), Source{Assets: []string{"a", "c"}})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if v, _ := c.CRSConsistent(); !v {
		t.Fatalf("lexical policy ignores case and surrounding space")
	}
}

func TestBuild_InvalidCRS(t *testing.T) {
	r := fakeReader(map[string]model.AssetRecord{
		"a": rec(tiles[0], "EPSG:26908"),
		"b": rec(tiles[1], "not a crs"),
	})
	src := Source{Assets: []string{"a", "b"}}
	if _, err := newBuilder(t, r, DefaultOptions()).Build(context.Background(), src); !errors.Is(err, crs.ErrInvalidCRS) {
		t.Fatalf("err=%v want ErrInvalidCRS", err)
	}

	opts := DefaultOptions()
	opts.Policy = crs.Lexical
	c, err := newBuilder(t, r, opts).Build(context.Background(), src)
	if err != nil {
		t.Fatalf("lexical must not parse: %v", err)
	}
	if v, ok := c.CRSConsistent(); !ok || v {
		t.Fatalf("consistent=%v defined=%v", v, ok)
	}

	opts.CheckCRS = false
	c, err = newBuilder(t, r, opts).Build(context.Background(), src)
	if err != nil {
		t.Fatalf("check disabled: %v", err)
	}
	if _, ok := c.CRSConsistent(); ok || c.IsComplete() {
		t.Fatalf("skipped check must leave consistency undefined")
	}
}

func TestBuild_NoCRSAnywhere(t *testing.T) {
	r := fakeReader(map[string]model.AssetRecord{"a": rec(tiles[0], ""), "b": rec(tiles[1], "")})
	c, err := newBuilder(t, r, DefaultOptions()).Build(context.Background(), Source{Assets: []string{"a", "b"}})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, ok := c.CRSConsistent(); ok {
		t.Fatalf("consistency must be undefined without any CRS")
	}
	if c.MissingCRS() != 2 || !c.IsValid() || c.IsComplete() {
		t.Fatalf("missing=%d valid=%v complete=%v", c.MissingCRS(), c.IsValid(), c.IsComplete())
	}
	raw, err := json.Marshal(c.Report())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(raw, []byte(`"crs_consistent":null`)) {
		t.Fatalf("report json: %s", raw)
	}
}

func TestBuild_WithoutHeaderScan(t *testing.T) {
	calls := 0
	r := reader.Func(func(context.Context, string) (model.AssetRecord, error) {
		calls++
		return model.AssetRecord{}, nil
	})
	opts := DefaultOptions()
	opts.ScanHeaders = false
	c, err := newBuilder(t, r, opts).Build(context.Background(), Source{Assets: []string{"x", "y"}})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if calls != 0 || c.Scanned() || c.IsValid() || c.OverallBounds() != nil {
		t.Fatalf("calls=%d scanned=%v valid=%v", calls, c.Scanned(), c.IsValid())
	}
	if a := c.Assets(); len(a) != 2 || a[1].Locator != "y" {
		t.Fatalf("assets=%+v", a)
	}
}

func TestBuild_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := fakeReader(map[string]model.AssetRecord{"a": rec(tiles[0], "EPSG:26908")})
	if _, err := newBuilder(t, r, DefaultOptions()).Build(ctx, Source{Assets: []string{"a"}}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v", err)
	}
}

func TestAssets_AreCopies(t *testing.T) {
	r := fakeReader(map[string]model.AssetRecord{"a": rec(tiles[0], "EPSG:26908")})
	c, err := newBuilder(t, r, DefaultOptions()).Build(context.Background(), Source{Assets: []string{"a"}})
	if err != nil {
		t.Fatal(err)
	}
	a := c.Assets()
	a[0].Bounds.MinX = -1
	ob := c.OverallBounds()
	ob.MaxX = -1
	if c.Assets()[0].Bounds.MinX != tiles[0].MinX || c.OverallBounds().MaxX != tiles[0].MaxX {
		t.Fatalf("catalog state leaked through accessors")
	}
}

func TestReconcileAgainst(t *testing.T) {
	recs := map[string]model.AssetRecord{}
	var locs []string
	for i, b := range tiles {
		loc := string(rune('a' + i))
		recs[loc] = rec(b, "EPSG:26908")
		locs = append(locs, loc)
	}
	c, err := newBuilder(t, fakeReader(recs), DefaultOptions()).Build(context.Background(), Source{Base: "mem", Assets: locs})
	if err != nil {
		t.Fatal(err)
	}

	rep, err := c.ReconcileAgainst(context.Background(), "EPSG:4326")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	o := rep.OverallBounds
	if o == nil || o.MinX < -134 || o.MaxX > -131 || o.MinY < 55 || o.MaxY > 57.5 {
		t.Fatalf("overall lon/lat=%v", o)
	}
	for _, a := range rep.Assets {
		if a.CRS != "EPSG:4326" || !o.Contains(*a.Bounds, 1e-6) {
			t.Fatalf("asset %s=%v crs=%q outside %v", a.Locator, a.Bounds, a.CRS, o)
		}
	}
	if rep.CRS != "EPSG:4326" || rep.SourceCRS != "EPSG:26908" || !rep.Complete {
		t.Fatalf("report crs=%q source=%q complete=%v", rep.CRS, rep.SourceCRS, rep.Complete)
	}

	// the catalog itself is unchanged
	if c.CRS() != "EPSG:26908" || *c.OverallBounds() != model.NewBox(664000, 6243000, 667970, 6244000) {
		t.Fatalf("catalog mutated: %q %v", c.CRS(), c.OverallBounds())
	}

	if _, err := c.ReconcileAgainst(context.Background(), "EPSG:2056"); !errors.Is(err, bounds.ErrTransformUnavailable) {
		t.Fatalf("unsupported target: err=%v", err)
	}
	if _, err := c.ReconcileAgainst(context.Background(), ""); !errors.Is(err, crs.ErrInvalidCRS) {
		t.Fatalf("empty target: err=%v", err)
	}
}

func TestReconcileAgainst_MixedAndMissing(t *testing.T) {
	r := fakeReader(map[string]model.AssetRecord{
		"a": rec(tiles[0], "EPSG:26908"),
		"b": rec(tiles[1], "EPSG:32608"),
		"c": rec(tiles[2], ""),
	})
	c, err := newBuilder(t, r, DefaultOptions()).Build(context.Background(), Source{Assets: []string{"a", "b"}})
	if err != nil {
		t.Fatal(err)
	}
	rep, err := c.ReconcileAgainst(context.Background(), "OGC:CRS84")
	if err != nil {
		t.Fatalf("reconcile mixed: %v", err)
	}
	merged := bounds.MergeRecords(rep.Assets)
	if rep.OverallBounds == nil || *rep.OverallBounds != *merged {
		t.Fatalf("mixed catalog overall must merge reprojected assets: %v vs %v", rep.OverallBounds, merged)
	}

	c, err = newBuilder(t, r, DefaultOptions()).Build(context.Background(), Source{Assets: []string{"a", "c"}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.ReconcileAgainst(context.Background(), "OGC:CRS84"); !errors.Is(err, ErrMissingCRS) {
		t.Fatalf("err=%v want ErrMissingCRS", err)
	}
}

func TestWriteSummary(t *testing.T) {
	r := fakeReader(map[string]model.AssetRecord{"a": rec(tiles[0], "EPSG:26908")})
	c, err := newBuilder(t, r, DefaultOptions()).Build(context.Background(), Source{Base: "mem", Pattern: "*.laz", Assets: []string{"a", "gone"}})
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	o := DefaultSummaryOptions()
	o.CRS = true
	if err := WriteSummary(&buf, c.Report(), o); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"Catalog of: mem matching *.laz",
		"Overall bounding box: 664000.000000,6243000.000000,665000.000000,6244000.000000",
		"Coordinate system information: EPSG:26908",
		"Number of assets: 2 (unreadable 1",
		"      error: missing",
		"      copc: false",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	if err := WriteSummary(&buf, Report{}, o); err != nil || strings.TrimSpace(buf.String()) != "No assets to print" {
		t.Fatalf("empty summary: %q %v", buf.String(), err)
	}
}
