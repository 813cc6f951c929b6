package export

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/flatgeobuf/flatgeobuf/src/go/writer"
	flatbuffers "github.com/google/flatbuffers/go"

	"github.com/mohammed-shakir/point-catalog/internal/catalog"
	"github.com/mohammed-shakir/point-catalog/internal/core/model"
)

const layerName = "assets"

type column struct {
	name string
	typ  flattypes.ColumnType
}

// fixed schema; the property index is the position in this slice
var columns = []column{
	{"filename", flattypes.ColumnTypeString},
	{"numpoints", flattypes.ColumnTypeLong},
	{"copc", flattypes.ColumnTypeBool},
	{"compressed", flattypes.ColumnTypeBool},
}

func writeFlatGeobuf(w io.Writer, r catalog.Report) error {
	b := flatbuffers.NewBuilder(4096)

	header := writer.NewHeader(b)
	header.SetGeometryType(flattypes.GeometryTypePolygon)
	header.SetName(layerName)
	if r.Base != "" {
		header.SetDescription(r.Base)
	}

	cols := make([]*writer.Column, 0, len(columns))
	for _, c := range columns {
		col := writer.NewColumn(b)
		col.SetName(c.name)
		col.SetTitle(c.name)
		col.SetType(c.typ)
		col.SetNullable(false)
		cols = append(cols, col)
	}
	header.SetColumns(cols)

	if c := layerCRS(r); c != nil {
		fc := writer.NewCrs(b)
		if c.Authority != "" && c.Code > 0 {
			fc.SetOrg(c.Authority)
			fc.SetCode(int32(c.Code))
		}
		if c.Name != "" {
			fc.SetName(c.Name)
		}
		header.SetCrs(fc)
	} else if r.CRS != "" {
		fc := writer.NewCrs(b)
		fc.SetDescription(r.CRS)
		header.SetCrs(fc)
	}

	gen := &assetFeatures{assets: r.ReadableAssets()}
	if _, err := writer.NewWriter(header, true, gen, nil).Write(w); err != nil {
		return fmt.Errorf("export flatgeobuf: %w", err)
	}
	return nil
}

// assetFeatures feeds one polygon feature per asset to the writer.
type assetFeatures struct {
	assets []model.AssetRecord
	next   int
}

func (g *assetFeatures) Generate() *writer.Feature {
	if g.next >= len(g.assets) {
		return nil
	}
	a := g.assets[g.next]
	g.next++

	b := flatbuffers.NewBuilder(1024)
	geom := writer.NewGeometry(b)
	geom.SetType(flattypes.GeometryTypePolygon)
	ring := a.Bounds.Polygon()[0]
	xy := make([]float64, 0, len(ring)*2)
	for _, p := range ring {
		xy = append(xy, p[0], p[1])
	}
	geom.SetXY(xy)
	geom.SetEnds([]uint32{uint32(len(ring))})

	f := writer.NewFeature(b)
	f.SetGeometry(geom)
	f.SetProperties(properties(a))
	return f
}

// properties encodes the fixed schema: a little endian column index followed
// by the value; strings carry a uint32 byte length prefix.
func properties(a model.AssetRecord) []byte {
	var buf bytes.Buffer
	le := binary.LittleEndian
	idx := func(i int) { _ = binary.Write(&buf, le, uint16(i)) }
	boolean := func(v bool) {
		if v {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	}

	idx(0)
	_ = binary.Write(&buf, le, uint32(len(a.Locator)))
	buf.WriteString(a.Locator)
	idx(1)
	_ = binary.Write(&buf, le, a.PointCount)
	idx(2)
	boolean(a.Flags.COPC)
	idx(3)
	boolean(a.Flags.Compressed)
	return buf.Bytes()
}
