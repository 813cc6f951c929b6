// Package lasfixture writes minimal LAS/LAZ/COPC headers for tests. The files
// carry a header and VLRs but no point records.
package lasfixture

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/mohammed-shakir/point-catalog/internal/core/model"
)

type Spec struct {
	Minor      int // LAS 1.x; defaults to 2
	Bounds     model.BoundingBox
	Points     uint64
	Format     uint8
	Compressed bool
	COPC       bool
	WKT        string
	WKTInEVLR  bool
	EPSG       uint16
	Geographic bool // EPSG goes into GeographicTypeGeoKey
	DOY, Year  uint16
}

type vlr struct {
	user string
	id   uint16
	data []byte
}

func Build(s Spec) []byte {
	le := binary.LittleEndian
	minor := s.Minor
	if minor == 0 {
		minor = 2
	}
	hsize := 227
	switch {
	case minor == 3:
		hsize = 235
	case minor >= 4:
		hsize = 375
	}

	var vlrs []vlr
	if s.COPC {
		vlrs = append(vlrs, vlr{"copc", 1, make([]byte, 160)})
	}
	if s.WKT != "" && !s.WKTInEVLR {
		vlrs = append(vlrs, vlr{"LASF_Projection", 2112, append([]byte(s.WKT), 0)})
	}
	if s.EPSG != 0 {
		key := uint16(3072)
		if s.Geographic {
			key = 2048
		}
		gk := make([]byte, 16)
		for i, v := range []uint16{1, 1, 0, 1, key, 0, 1, s.EPSG} {
			le.PutUint16(gk[i*2:], v)
		}
		vlrs = append(vlrs, vlr{"LASF_Projection", 34735, gk})
	}
	if s.Compressed {
		vlrs = append(vlrs, vlr{"laszip encoded", 22204, make([]byte, 34)})
	}

	var body bytes.Buffer
	for _, v := range vlrs {
		vh := make([]byte, 54)
		copy(vh[2:18], v.user)
		le.PutUint16(vh[18:], v.id)
		le.PutUint16(vh[20:], uint16(len(v.data)))
		body.Write(vh)
		body.Write(v.data)
	}

	h := make([]byte, hsize)
	copy(h, "LASF")
	h[24], h[25] = 1, byte(minor)
	copy(h[26:58], "lasfixture")
	le.PutUint16(h[90:], s.DOY)
	le.PutUint16(h[92:], s.Year)
	le.PutUint16(h[94:], uint16(hsize))
	pointStart := hsize + body.Len()
	le.PutUint32(h[96:], uint32(pointStart))
	le.PutUint32(h[100:], uint32(len(vlrs)))
	format := s.Format
	if s.Compressed {
		format |= 0x80
	}
	h[104] = format
	le.PutUint16(h[105:], 20)
	if s.Points <= math.MaxUint32 {
		le.PutUint32(h[107:], uint32(s.Points))
	}
	for i, v := range []float64{0.01, 0.01, 0.01} {
		le.PutUint64(h[131+i*8:], math.Float64bits(v))
	}
	b := s.Bounds
	for off, v := range map[int]float64{179: b.MaxX, 187: b.MinX, 195: b.MaxY, 203: b.MinY, 211: 100, 219: 0} {
		le.PutUint64(h[off:], math.Float64bits(v))
	}

	out := append(h, body.Bytes()...)
	if minor >= 4 {
		le.PutUint64(out[247:], s.Points)
		if s.WKTInEVLR && s.WKT != "" {
			le.PutUint64(out[235:], uint64(pointStart))
			le.PutUint32(out[243:], 1)
			data := append([]byte(s.WKT), 0)
			eh := make([]byte, 60)
			copy(eh[2:18], "LASF_Projection")
			le.PutUint16(eh[18:], 2112)
			le.PutUint64(eh[20:], uint64(len(data)))
			out = append(out, eh...)
			out = append(out, data...)
		}
	}
	return out
}

// Write stores Build(s) as dir/name and returns the path.
func Write(t testing.TB, dir, name string, s Spec) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, Build(s), 0o600); err != nil {
		t.Fatalf("write fixture %s: %v", p, err)
	}
	return p
}
