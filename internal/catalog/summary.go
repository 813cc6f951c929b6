package catalog

import (
	"bufio"
	"fmt"
	"io"
)

type SummaryOptions struct {
	Filename  bool
	Bounds    bool
	NumPoints bool
	CRS       bool // catalog CRS
	AssetCRS  bool
	Details   bool // header flags
}

func DefaultSummaryOptions() SummaryOptions {
	return SummaryOptions{Filename: true, Bounds: true, NumPoints: true, Details: true}
}

// WriteSummary prints a human readable listing of r.
func WriteSummary(w io.Writer, r Report, o SummaryOptions) error {
	bw := bufio.NewWriter(w)
	p := func(format string, args ...any) { _, _ = fmt.Fprintf(bw, format+"\n", args...) }

	if len(r.Assets) == 0 {
		p("No assets to print")
		return bw.Flush()
	}

	p("Catalog of: %s matching %s", r.Base, r.Pattern)
	if r.OverallBounds != nil {
		p("Overall bounding box: %s", r.OverallBounds)
	} else {
		p("Overall bounding box: none")
	}
	p("Total number of points: %d", r.TotalPoints)
	if o.CRS {
		p("Coordinate system information: %s", r.CRS)
	}
	switch {
	case r.CRSConsistent == nil:
		p("CRS consistent: undefined")
	default:
		p("CRS consistent: %t", *r.CRSConsistent)
	}
	p("Number of assets: %d (unreadable %d, missing CRS %d)", len(r.Assets), r.Unreadable, r.MissingCRS)

	if !(o.Filename || o.Bounds || o.NumPoints || o.AssetCRS || o.Details) {
		return bw.Flush()
	}
	for i, a := range r.Assets {
		p("   Asset %d:", i+1)
		if o.Filename {
			p("      %s", a.Locator)
		}
		if a.Err != "" {
			p("      error: %s", a.Err)
			continue
		}
		if o.Bounds && a.Bounds != nil {
			p("      bounds: %s", a.Bounds)
		}
		if o.NumPoints {
			p("      numpoints: %d", a.PointCount)
		}
		if o.AssetCRS {
			p("      srs: %s", a.CRS)
		}
		if o.Details {
			f := a.Flags
			p("      compressed: %t", f.Compressed)
			p("      copc: %t", f.COPC)
			p("      creation_doy: %d", f.CreationDOY)
			p("      creation_year: %d", f.CreationYear)
			p("      point_record_format: %d", f.PointRecordFormat)
			p("      major_version: %d", f.MajorVersion)
			p("      minor_version: %d", f.MinorVersion)
		}
	}
	return bw.Flush()
}
