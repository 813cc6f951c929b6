package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mohammed-shakir/point-catalog/internal/app"
	"github.com/mohammed-shakir/point-catalog/internal/catalog"
	"github.com/mohammed-shakir/point-catalog/internal/core/config"
	"github.com/mohammed-shakir/point-catalog/internal/core/router"
	"github.com/mohammed-shakir/point-catalog/internal/crs"
	"github.com/mohammed-shakir/point-catalog/internal/export"
	"github.com/mohammed-shakir/point-catalog/internal/logger"
	"github.com/mohammed-shakir/point-catalog/internal/reader"
	"github.com/mohammed-shakir/point-catalog/internal/service"
)

var errUsage = errors.New("usage")

type opts struct {
	req     router.CatalogRequest
	cfg     config.Config
	out     string
	byExt   bool // export format taken from the -o extension
	pretty  bool
	summary catalog.SummaryOptions
}

func parseFlags(cmd string, args []string, stderr io.Writer) (opts, error) {
	cfg := config.FromEnv()
	o := opts{cfg: cfg, summary: catalog.DefaultSummaryOptions()}

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		pattern, assets, kind, policy, target, format, level string
		noScan, noCheck                                      bool
		workers, samples, res, parent                        int
		rate                                                 float64
	)
	fs.StringVar(&pattern, "pattern", cfg.Pattern, "glob of asset names under base")
	fs.StringVar(&assets, "assets", "", "explicit asset locators CSV (replaces the listing)")
	fs.StringVar(&kind, "kind", string(reader.KindPoints), "asset kind")
	fs.StringVar(&policy, "policy", cfg.EquivalencePolicy, "CRS equivalence policy: lexical or normalized")
	fs.BoolVar(&noScan, "no-scan", !cfg.ScanHeaders, "skip reading asset headers")
	fs.BoolVar(&noCheck, "no-crs-check", !cfg.CRSCheck, "skip the CRS consistency check")
	fs.IntVar(&workers, "workers", cfg.ScanWorkers, "concurrent header reads")
	fs.Float64Var(&rate, "rate", cfg.ScanRate, "header reads per second, 0 for unlimited")
	fs.IntVar(&res, "h3-res", -1, "cover the readable assets with H3 cells at this resolution")
	fs.IntVar(&parent, "h3-parent", -1, "coarsen the H3 cover to this resolution")
	fs.StringVar(&o.out, "o", "", "write the output to this file")
	fs.BoolVar(&o.pretty, "pretty", false, "indent JSON output")
	fs.StringVar(&level, "log-level", cfg.LogLevel, "log level")
	fs.BoolVar(&o.cfg.HrefAsIs, "href-asis", cfg.HrefAsIs, "keep remote hrefs as they appear in the listing")

	switch cmd {
	case "reconcile":
		fs.StringVar(&target, "target", "", "target CRS descriptor (required)")
		fs.IntVar(&samples, "edge-samples", cfg.EdgeSamples, "points sampled per edge when reprojecting")
	case "export":
		fs.StringVar(&format, "format", "", "geojson or fgb; defaults to the -o extension")
	case "print":
		fs.BoolVar(&o.summary.Bounds, "bounds", true, "print asset bounds")
		fs.BoolVar(&o.summary.NumPoints, "points", true, "print asset point counts")
		fs.BoolVar(&o.summary.CRS, "crs", false, "print the catalog CRS")
		fs.BoolVar(&o.summary.AssetCRS, "asset-crs", false, "print each asset's CRS")
		fs.BoolVar(&o.summary.Details, "details", true, "print header flags")
	}

	if err := fs.Parse(args); err != nil {
		return opts{}, errUsage
	}
	if fs.NArg() > 1 {
		return opts{}, fmt.Errorf("%w: expected one base, got %d arguments", errUsage, fs.NArg())
	}
	base := strings.TrimSpace(fs.Arg(0))
	list := splitCSV(assets)
	if base == "" && len(list) == 0 {
		return opts{}, fmt.Errorf("%w: base directory or URL required", errUsage)
	}
	if len(list) > 0 {
		pattern = ""
	}

	p, err := crs.ParsePolicy(policy)
	if err != nil {
		return opts{}, err
	}
	o.cfg.LogLevel = level
	o.cfg.EquivalencePolicy = p.String()
	o.cfg.ScanWorkers = max(workers, 1)
	o.cfg.ScanRate = rate

	o.req = router.CatalogRequest{
		Kind:        reader.Kind(strings.ToLower(kind)),
		Source:      catalog.Source{Base: base, Pattern: pattern, Assets: list},
		Policy:      p,
		ScanHeaders: !noScan,
		CheckCRS:    !noCheck,
		EdgeSamples: cfg.EdgeSamples,
		Publish:     cmd == "publish",
	}
	if res >= 0 {
		o.req.H3Res = &res
		if parent >= 0 {
			if parent > res {
				return opts{}, fmt.Errorf("%w: -h3-parent %d is finer than -h3-res %d", errUsage, parent, res)
			}
			o.req.H3Parent = &parent
		}
	}

	if cmd == "reconcile" {
		if strings.TrimSpace(target) == "" {
			return opts{}, fmt.Errorf("%w: -target is required", errUsage)
		}
		if samples < 2 {
			return opts{}, fmt.Errorf("%w: -edge-samples must be at least 2", errUsage)
		}
		o.req.TargetCRS = crs.Descriptor(strings.TrimSpace(target))
		o.req.EdgeSamples = samples
	}
	if cmd == "export" {
		switch {
		case format != "":
			o.req.Format, err = export.ParseFormat(format)
		case o.out != "":
			o.req.Format, err = export.FormatFromPath(o.out)
			o.byExt = true
		default:
			o.req.Format = export.GeoJSON
		}
		if err != nil {
			return opts{}, err
		}
	}
	return o, nil
}

func runCommand(cmd string, args []string, stdout, stderr io.Writer) error {
	o, err := parseFlags(cmd, args, stderr)
	if err != nil {
		return err
	}

	zl := logger.Build(logger.Config{
		Level:     o.cfg.LogLevel,
		Console:   true,
		SampleN:   o.cfg.LogSampleN,
		Component: "catalog",
	}, stderr)
	log := logger.NewSlog(&zl)

	a, err := app.New(o.cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	eng, err := service.New(a)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rep, err := eng.Report(ctx, o.req)
	if err != nil {
		return err
	}

	if o.out == "" {
		return writeOutput(stdout, cmd, o, rep)
	}
	if o.byExt {
		return export.WriteFile(o.out, rep)
	}
	f, err := os.Create(o.out)
	if err != nil {
		return fmt.Errorf("create %s: %w", o.out, err)
	}
	if err := writeOutput(f, cmd, o, rep); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", o.out, err)
	}
	return nil
}

func writeOutput(w io.Writer, cmd string, o opts, rep catalog.Report) error {
	switch cmd {
	case "print":
		return catalog.WriteSummary(w, rep, o.summary)
	case "export":
		return export.Write(w, o.req.Format, rep)
	case "publish":
		_, err := fmt.Fprintf(w, "published report for %s (%d assets)\n", rep.Base, len(rep.Assets))
		return err
	}
	enc := json.NewEncoder(w)
	if o.pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(rep)
}

func exitCode(err error) int {
	if errors.Is(err, errUsage) {
		return 2
	}
	return 1
}

func splitCSV(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if x := strings.TrimSpace(p); x != "" {
			out = append(out, x)
		}
	}
	return out
}
