// Package export writes catalog reports as GeoJSON or FlatGeobuf layers with
// one polygon per readable asset.
package export

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mohammed-shakir/point-catalog/internal/catalog"
	"github.com/mohammed-shakir/point-catalog/internal/crs"
)

var (
	ErrUnsupportedFormat = errors.New("export: unsupported format")
	ErrInvalidReport     = errors.New("export: report has no readable assets")
)

type Format string

const (
	GeoJSON    Format = "geojson"
	FlatGeobuf Format = "fgb"
)

func (f Format) ContentType() string {
	if f == FlatGeobuf {
		return "application/flatgeobuf"
	}
	return "application/geo+json"
}

// ParseFormat accepts a format name as used on the command line or in a
// query string.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "geojson", "json", "":
		return GeoJSON, nil
	case "fgb", "flatgeobuf":
		return FlatGeobuf, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		return GeoJSON, nil
	case ".fgb":
		return FlatGeobuf, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
}

// WriteFile writes r to path in the format implied by its extension.
func WriteFile(path string, r catalog.Report) error {
	f, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	if err := validate(r); err != nil {
		return err
	}
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	bw := bufio.NewWriter(out)
	if err := Write(bw, f, r); err != nil {
		_ = out.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = out.Close()
		return fmt.Errorf("export: %w", err)
	}
	return out.Close()
}

func Write(w io.Writer, f Format, r catalog.Report) error {
	if err := validate(r); err != nil {
		return err
	}
	switch f {
	case GeoJSON:
		return writeGeoJSON(w, r)
	case FlatGeobuf:
		return writeFlatGeobuf(w, r)
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
}

func validate(r catalog.Report) error {
	if !r.Scanned || len(r.ReadableAssets()) == 0 {
		return ErrInvalidReport
	}
	return nil
}

// layerCRS resolves the report CRS when it is known to the registry.
func layerCRS(r catalog.Report) *crs.CRS {
	if r.CRS == "" {
		return nil
	}
	c, err := crs.DefaultResolver.Parse(crs.Descriptor(r.CRS))
	if err != nil {
		return nil
	}
	return c
}
