package reader

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mohammed-shakir/point-catalog/internal/core/model"
	"github.com/mohammed-shakir/point-catalog/internal/reader/lasfixture"
)

const wkt26908 = `PROJCS["NAD83 / UTM zone 8N",GEOGCS["NAD83",AUTHORITY["EPSG","4269"]],AUTHORITY["EPSG","26908"]]`

var tile = model.NewBox(664000, 6243000, 665000, 6244000)

func TestLAS_LocalHeader12WithGeoKeys(t *testing.T) {
	dir := t.TempDir()
	p := lasfixture.Write(t, dir, "a.las", lasfixture.Spec{
		Bounds: tile, Points: 1234, Format: 1, EPSG: 26908, DOY: 45, Year: 2019,
	})

	rec, err := NewLAS(Config{}, nil).Read(context.Background(), p)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if rec.Bounds == nil || *rec.Bounds != tile {
		t.Fatalf("bounds=%v want %v", rec.Bounds, tile)
	}
	if rec.CRS != "EPSG:26908" || rec.PointCount != 1234 {
		t.Fatalf("crs=%q points=%d", rec.CRS, rec.PointCount)
	}
	f := rec.Flags
	if f.MajorVersion != 1 || f.MinorVersion != 2 || f.PointRecordFormat != 1 || f.Compressed || f.COPC {
		t.Fatalf("flags=%+v", f)
	}
	if f.CreationDOY != 45 || f.CreationYear != 2019 {
		t.Fatalf("creation=%d/%d", f.CreationDOY, f.CreationYear)
	}
	if rec.SizeBytes == nil || *rec.SizeBytes <= 227 {
		t.Fatalf("size=%v", rec.SizeBytes)
	}
}

func TestLAS_COPC14WithWKT(t *testing.T) {
	dir := t.TempDir()
	p := lasfixture.Write(t, dir, "a.copc.laz", lasfixture.Spec{
		Minor: 4, Bounds: tile, Points: 5_000_000_000, Format: 6,
		Compressed: true, COPC: true, WKT: wkt26908, EPSG: 6337,
	})
	rec, err := NewLAS(Config{}, nil).Read(context.Background(), p)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if rec.PointCount != 5_000_000_000 {
		t.Fatalf("64-bit count not used: %d", rec.PointCount)
	}
	if !rec.Flags.COPC || !rec.Flags.Compressed || rec.Flags.PointRecordFormat != 6 {
		t.Fatalf("flags=%+v", rec.Flags)
	}
	if rec.CRS != wkt26908 {
		t.Fatalf("WKT record must win over GeoKeys, got %q", rec.CRS)
	}
}

func TestLAS_WKTInEVLR(t *testing.T) {
	p := lasfixture.Write(t, t.TempDir(), "e.las", lasfixture.Spec{
		Minor: 4, Bounds: tile, Points: 10, WKT: wkt26908, WKTInEVLR: true,
	})
	rec, err := NewLAS(Config{}, nil).Read(context.Background(), p)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if rec.CRS != wkt26908 {
		t.Fatalf("crs=%q", rec.CRS)
	}
}

func TestLAS_GeographicKey(t *testing.T) {
	p := lasfixture.Write(t, t.TempDir(), "g.las", lasfixture.Spec{
		Bounds: model.NewBox(-135.1, 56.3, -135.0, 56.4), Points: 1, EPSG: 6318, Geographic: true,
	})
	rec, err := NewLAS(Config{}, nil).Read(context.Background(), p)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if rec.CRS != "EPSG:6318" {
		t.Fatalf("crs=%q", rec.CRS)
	}
}

func TestLAS_Unreadable(t *testing.T) {
	dir := t.TempDir()
	junk := filepath.Join(dir, "junk.las")
	if err := os.WriteFile(junk, []byte("definitely not a point cloud"), 0o600); err != nil {
		t.Fatal(err)
	}
	bad := lasfixture.Build(lasfixture.Spec{Bounds: tile, Points: 1})
	bad[24] = 2 // version 2.x
	badVersion := filepath.Join(dir, "v2.las")
	if err := os.WriteFile(badVersion, bad, 0o600); err != nil {
		t.Fatal(err)
	}
	inverted := lasfixture.Write(t, dir, "inv.las", lasfixture.Spec{
		Bounds: model.NewBox(10, 10, 0, 0), Points: 3,
	})

	l := NewLAS(Config{}, nil)
	for _, p := range []string{junk, badVersion, inverted, filepath.Join(dir, "missing.las"), dir} {
		rec, err := l.Read(context.Background(), p)
		if !errors.Is(err, ErrUnreadableAsset) {
			t.Fatalf("%s: err=%v want ErrUnreadableAsset", p, err)
		}
		if rec.Locator != p || rec.Bounds != nil || rec.Err == "" {
			t.Fatalf("%s: failed read must yield a bounds-less record: %+v", p, rec)
		}
	}
}

func TestLAS_VLRLimit(t *testing.T) {
	p := lasfixture.Write(t, t.TempDir(), "big.las", lasfixture.Spec{
		Bounds: tile, Points: 1, WKT: strings.Repeat("X", 600),
	})
	_, err := NewLAS(Config{MaxVLRBytes: 512}, nil).Read(context.Background(), p)
	if !errors.Is(err, ErrUnreadableAsset) {
		t.Fatalf("err=%v", err)
	}
}

func TestLAS_RemoteRangeRequests(t *testing.T) {
	data := lasfixture.Build(lasfixture.Spec{Minor: 4, Bounds: tile, Points: 99, EPSG: 26908})
	var ranged atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Range") != "" {
			ranged.Add(1)
		}
		http.ServeContent(w, r, "tile.laz", time.Time{}, bytes.NewReader(data))
	}))
	defer srv.Close()

	rec, err := NewLAS(Config{Client: srv.Client()}, nil).Read(context.Background(), srv.URL+"/tile.laz")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if rec.CRS != "EPSG:26908" || rec.PointCount != 99 || *rec.Bounds != tile {
		t.Fatalf("rec=%+v", rec)
	}
	if rec.SizeBytes == nil || *rec.SizeBytes != int64(len(data)) {
		t.Fatalf("size from Content-Range: %v want %d", rec.SizeBytes, len(data))
	}
	if ranged.Load() == 0 {
		t.Fatalf("expected Range requests")
	}
}

func TestLAS_RemoteIgnoringRange(t *testing.T) {
	data := lasfixture.Build(lasfixture.Spec{Bounds: tile, Points: 7, EPSG: 26908})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	rec, err := NewLAS(Config{Client: srv.Client()}, nil).Read(context.Background(), srv.URL+"/t.las")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if rec.PointCount != 7 || rec.CRS != "EPSG:26908" {
		t.Fatalf("rec=%+v", rec)
	}
}

func TestLAS_RemoteNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	_, err := NewLAS(Config{Client: srv.Client()}, nil).Read(context.Background(), srv.URL+"/nope.laz")
	if !errors.Is(err, ErrUnreadableAsset) || !strings.Contains(err.Error(), "404") {
		t.Fatalf("err=%v", err)
	}
}

func TestContentRangeTotal(t *testing.T) {
	cases := map[string]int64{"bytes 0-99/1234": 1234, "bytes 0-99/*": -1, "": -1}
	for in, want := range cases {
		if got := contentRangeTotal(in); got != want {
			t.Fatalf("%q: got %d want %d", in, got, want)
		}
	}
}

func TestGeoKeyEPSG_SkipsUserDefined(t *testing.T) {
	keys := []byte{1, 0, 1, 0, 0, 0, 2, 0,
		0x00, 0x0c, 0, 0, 1, 0, 0xff, 0x7f, // 3072 = user defined
		0x00, 0x08, 0, 0, 1, 0, 0xe6, 0x10, // 2048 = 4326
	}
	if got := geoKeyEPSG(keys); got != "EPSG:4326" {
		t.Fatalf("got %q", got)
	}
	if got := geoKeyEPSG(keys[:4]); got != "" {
		t.Fatalf("short directory: %q", got)
	}
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()
	if _, err := r.New("", Config{}, nil); err != nil {
		t.Fatalf("default kind: %v", err)
	}
	if _, err := r.New("POINTS", Config{}, nil); err != nil {
		t.Fatalf("points: %v", err)
	}
	_, err := r.New(KindRaster, Config{}, nil)
	if !errors.Is(err, ErrUnsupportedKind) || !strings.Contains(err.Error(), "points") {
		t.Fatalf("raster: err=%v", err)
	}
}

func TestIsRemote(t *testing.T) {
	if !IsRemote("HTTPS://host/x.laz") || IsRemote("/data/x.laz") || IsRemote("s3://b/k") {
		t.Fatalf("IsRemote misclassified")
	}
}
