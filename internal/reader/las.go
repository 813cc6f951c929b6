package reader

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/mohammed-shakir/point-catalog/internal/core/model"
	"github.com/mohammed-shakir/point-catalog/internal/core/observability"
	"github.com/mohammed-shakir/point-catalog/internal/logger"
)

const DefaultMaxVLRBytes = 1 << 20

// public header block offsets (ASPRS LAS 1.0-1.4)
const (
	offVersionMajor  = 24
	offVersionMinor  = 25
	offCreationDOY   = 90
	offCreationYear  = 92
	offHeaderSize    = 94
	offPointData     = 96
	offNumVLR        = 100
	offPointFormat   = 104
	offLegacyCount   = 107
	offMaxX          = 179
	offMinX          = 187
	offMaxY          = 195
	offMinY          = 203
	offFirstEVLR     = 235
	offNumEVLR       = 243
	offPointCount64  = 247
	minHeaderSize    = 227
	header14Size     = 375
	vlrHeaderSize    = 54
	evlrHeaderSize   = 60
	maxVLRsScanned   = 1 << 12
	recordOGCWKT     = 2112
	recordGeoKeys    = 34735
	recordCOPCInfo   = 1
	recordLASzip     = 22204
	geoKeyProjected  = 3072
	geoKeyGeographic = 2048
	geoKeyUserDef    = 32767
)

var lasSignature = []byte("LASF")

// LAS reads the public header block and variable length records of LAS, LAZ
// and COPC files, locally or over HTTP range requests.
type LAS struct {
	client      *http.Client
	maxVLRBytes int64
	log         *slog.Logger
}

func NewLAS(cfg Config, log *slog.Logger) *LAS {
	if log == nil {
		log = logger.Discard()
	}
	limit := cfg.MaxVLRBytes
	if limit <= 0 {
		limit = DefaultMaxVLRBytes
	}
	return &LAS{client: cfg.Client, maxVLRBytes: limit, log: log}
}

func (l *LAS) Read(ctx context.Context, locator string) (model.AssetRecord, error) {
	ctx = logger.WithAsset(ctx, locator)
	start := time.Now()
	kind := "local"
	if IsRemote(locator) {
		kind = "http"
	}

	rec, err := l.read(ctx, locator)
	observability.ObserveAssetRead(kind, err == nil, time.Since(start).Seconds())
	if err != nil {
		l.log.WarnContext(ctx, "asset header read failed", "err", err)
		return model.AssetRecord{Locator: locator, Err: err.Error()},
			fmt.Errorf("%w: %s: %w", ErrUnreadableAsset, locator, err)
	}
	l.log.DebugContext(ctx, "asset header read",
		"points", rec.PointCount,
		"srs", rec.CRS != "",
		"version", fmt.Sprintf("%d.%d", rec.Flags.MajorVersion, rec.Flags.MinorVersion))
	return rec, nil
}

func (l *LAS) read(ctx context.Context, locator string) (model.AssetRecord, error) {
	src, err := openSource(ctx, locator, l.client)
	if err != nil {
		return model.AssetRecord{}, err
	}
	defer func() { _ = src.Close() }()

	h := make([]byte, header14Size)
	n, err := src.ReadAt(h, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return model.AssetRecord{}, fmt.Errorf("read header: %w", err)
	}
	h = h[:n]

	hdr, err := parseHeader(h)
	if err != nil {
		return model.AssetRecord{}, err
	}

	rec := model.AssetRecord{
		Locator:    locator,
		Bounds:     &hdr.bounds,
		PointCount: hdr.points,
		Flags:      hdr.flags,
	}
	if sz := src.Size(); sz >= 0 {
		rec.SizeBytes = &sz
	}

	vl, err := l.scanVLRs(ctx, src, hdr)
	if err != nil {
		return model.AssetRecord{}, err
	}
	rec.CRS = vl.crs()
	rec.Flags.COPC = vl.copc
	rec.Flags.Compressed = rec.Flags.Compressed || vl.laszip
	return rec, nil
}

type header struct {
	size       int
	pointStart int64
	numVLR     uint32
	firstEVLR  uint64
	numEVLR    uint32
	bounds     model.BoundingBox
	points     int64
	flags      model.SourceFlags
}

func parseHeader(h []byte) (header, error) {
	var out header
	if len(h) < minHeaderSize || !bytes.Equal(h[:4], lasSignature) {
		return out, errors.New("not a LAS/LAZ file")
	}
	le := binary.LittleEndian

	out.flags.MajorVersion = int(h[offVersionMajor])
	out.flags.MinorVersion = int(h[offVersionMinor])
	if out.flags.MajorVersion != 1 || out.flags.MinorVersion > 4 {
		return out, fmt.Errorf("unsupported LAS version %d.%d", out.flags.MajorVersion, out.flags.MinorVersion)
	}
	out.flags.CreationDOY = int(le.Uint16(h[offCreationDOY:]))
	out.flags.CreationYear = int(le.Uint16(h[offCreationYear:]))

	out.size = int(le.Uint16(h[offHeaderSize:]))
	if out.size < minHeaderSize {
		return out, fmt.Errorf("header size %d too small", out.size)
	}
	out.pointStart = int64(le.Uint32(h[offPointData:]))
	out.numVLR = le.Uint32(h[offNumVLR:])

	format := h[offPointFormat]
	out.flags.Compressed = format&0x80 != 0
	out.flags.PointRecordFormat = int(format & 0x3f)

	out.points = int64(le.Uint32(h[offLegacyCount:]))
	if out.flags.MinorVersion >= 4 && len(h) >= header14Size && out.size >= header14Size {
		out.firstEVLR = le.Uint64(h[offFirstEVLR:])
		out.numEVLR = le.Uint32(h[offNumEVLR:])
		if n := le.Uint64(h[offPointCount64:]); n > 0 && n <= math.MaxInt64 {
			out.points = int64(n)
		}
	}

	f64 := func(off int) float64 { return math.Float64frombits(le.Uint64(h[off:])) }
	out.bounds = model.NewBox(f64(offMinX), f64(offMinY), f64(offMaxX), f64(offMaxY))
	if !out.bounds.IsFinite() || out.bounds.IsEmpty() {
		if out.points == 0 {
			return out, errors.New("empty file: no points and no extent")
		}
		return out, fmt.Errorf("invalid header extent %v", out.bounds)
	}
	return out, nil
}

type vlrs struct {
	wkt     string
	geoKeys string
	copc    bool
	laszip  bool
}

// crs prefers the OGC WKT record over GeoTIFF keys.
func (v vlrs) crs() string {
	if v.wkt != "" {
		return v.wkt
	}
	return v.geoKeys
}

func (l *LAS) scanVLRs(ctx context.Context, src source, hdr header) (vlrs, error) {
	var out vlrs
	off := int64(hdr.size)
	count := min(hdr.numVLR, maxVLRsScanned)
	for i := uint32(0); i < count; i++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if hdr.pointStart > 0 && off+vlrHeaderSize > hdr.pointStart {
			break
		}
		vh := make([]byte, vlrHeaderSize)
		if _, err := src.ReadAt(vh, off); err != nil {
			return out, fmt.Errorf("read VLR %d header: %w", i, err)
		}
		user := cString(vh[2:18])
		id := binary.LittleEndian.Uint16(vh[18:])
		length := int64(binary.LittleEndian.Uint16(vh[20:]))
		body := off + vlrHeaderSize
		if i == 0 && user == "copc" && id == recordCOPCInfo {
			out.copc = true
		}
		if err := l.record(src, &out, user, id, body, length); err != nil {
			return out, err
		}
		off = body + length
	}

	if hdr.numEVLR == 0 || hdr.firstEVLR == 0 || hdr.firstEVLR > math.MaxInt64 {
		return out, nil
	}
	off = int64(hdr.firstEVLR)
	count = min(hdr.numEVLR, maxVLRsScanned)
	for i := uint32(0); i < count; i++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if sz := src.Size(); sz >= 0 && off+evlrHeaderSize > sz {
			break
		}
		eh := make([]byte, evlrHeaderSize)
		if _, err := src.ReadAt(eh, off); err != nil {
			return out, fmt.Errorf("read EVLR %d header: %w", i, err)
		}
		user := cString(eh[2:18])
		id := binary.LittleEndian.Uint16(eh[18:])
		length := binary.LittleEndian.Uint64(eh[20:])
		if length > math.MaxInt64/2 {
			break
		}
		body := off + evlrHeaderSize
		if err := l.record(src, &out, user, id, body, int64(length)); err != nil {
			return out, err
		}
		off = body + int64(length)
	}
	return out, nil
}

// record loads the payload of the records this reader understands.
func (l *LAS) record(src source, out *vlrs, user string, id uint16, off, length int64) error {
	switch {
	case user == "LASF_Projection" && (id == recordOGCWKT || id == recordGeoKeys):
	case user == "laszip encoded" && id == recordLASzip:
		out.laszip = true
		return nil
	default:
		return nil
	}
	if length > l.maxVLRBytes {
		return fmt.Errorf("CRS record of %d bytes exceeds limit %d", length, l.maxVLRBytes)
	}
	buf := make([]byte, length)
	if _, err := src.ReadAt(buf, off); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read CRS record: %w", err)
	}
	switch id {
	case recordOGCWKT:
		out.wkt = strings.TrimSpace(cString(buf))
	case recordGeoKeys:
		out.geoKeys = geoKeyEPSG(buf)
	}
	return nil
}

// geoKeyEPSG returns "EPSG:n" from a GeoKeyDirectoryTag, preferring the
// projected CRS key.
func geoKeyEPSG(b []byte) string {
	if len(b) < 8 {
		return ""
	}
	le := binary.LittleEndian
	nkeys := int(le.Uint16(b[6:]))
	var projected, geographic uint16
	for i := 0; i < nkeys; i++ {
		o := 8 + i*8
		if o+8 > len(b) {
			break
		}
		key := le.Uint16(b[o:])
		loc := le.Uint16(b[o+2:])
		val := le.Uint16(b[o+6:])
		if loc != 0 || val == 0 || val == geoKeyUserDef {
			continue
		}
		switch key {
		case geoKeyProjected:
			projected = val
		case geoKeyGeographic:
			geographic = val
		}
	}
	switch {
	case projected != 0:
		return fmt.Sprintf("EPSG:%d", projected)
	case geographic != 0:
		return fmt.Sprintf("EPSG:%d", geographic)
	}
	return ""
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
