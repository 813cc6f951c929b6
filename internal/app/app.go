// Package app wires the catalog collaborators from configuration. Both
// binaries build their components through it.
package app

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mohammed-shakir/point-catalog/internal/bounds"
	"github.com/mohammed-shakir/point-catalog/internal/catalog"
	"github.com/mohammed-shakir/point-catalog/internal/core/config"
	"github.com/mohammed-shakir/point-catalog/internal/core/httpclient"
	"github.com/mohammed-shakir/point-catalog/internal/crs"
	"github.com/mohammed-shakir/point-catalog/internal/discovery"
	"github.com/mohammed-shakir/point-catalog/internal/footprint"
	"github.com/mohammed-shakir/point-catalog/internal/projection"
	"github.com/mohammed-shakir/point-catalog/internal/publish"
	"github.com/mohammed-shakir/point-catalog/internal/reader"
)

type App struct {
	Config      config.Config
	Log         *slog.Logger
	Client      *http.Client
	Parser      *crs.Parser
	Projection  *projection.Engine
	Reprojector *bounds.Reprojector
	Readers     *reader.Registry
	Lister      *discovery.Lister
	Mapper      *footprint.Mapper
	Publisher   publish.Publisher
}

func New(cfg config.Config, log *slog.Logger) (*App, error) {
	parser, err := crs.NewParser(cfg.CRSCacheSize)
	if err != nil {
		return nil, fmt.Errorf("crs parser: %w", err)
	}
	pub, err := publish.New(cfg.Kafka, log.With("component", "publish"))
	if err != nil {
		return nil, err
	}
	eng := projection.NewEngine(parser)
	client := httpclient.NewOutbound(cfg.HTTPTimeout)
	return &App{
		Config:      cfg,
		Log:         log,
		Client:      client,
		Parser:      parser,
		Projection:  eng,
		Reprojector: bounds.NewReprojector(eng, log.With("component", "reproject")),
		Readers:     reader.DefaultRegistry(),
		Lister:      discovery.NewLister(client, cfg.HrefAsIs, log.With("component", "discovery")),
		Mapper:      footprint.New(),
		Publisher:   pub,
	}, nil
}

// Options returns the catalog options configured from the environment.
func (a *App) Options() (catalog.Options, error) {
	policy, err := crs.ParsePolicy(a.Config.EquivalencePolicy)
	if err != nil {
		return catalog.Options{}, err
	}
	return catalog.Options{
		ScanHeaders: a.Config.ScanHeaders,
		CheckCRS:    a.Config.CRSCheck,
		Policy:      policy,
		Workers:     a.Config.ScanWorkers,
		RateLimit:   a.Config.ScanRate,
		Burst:       a.Config.ScanBurst,
	}, nil
}

// Builder returns a catalog builder reading assets of the given kind.
func (a *App) Builder(kind reader.Kind, opts catalog.Options) (*catalog.Builder, error) {
	rd, err := a.Readers.New(kind, reader.Config{Client: a.Client, MaxVLRBytes: a.Config.MaxVLRBytes}, a.Log.With("component", "reader"))
	if err != nil {
		return nil, err
	}
	return catalog.NewBuilder(catalog.Deps{
		Lister:      a.Lister,
		Reader:      rd,
		Resolver:    a.Parser,
		Reprojector: a.Reprojector,
		Logger:      a.Log.With("component", "catalog"),
	}, opts)
}

func (a *App) Close() error {
	if a.Publisher == nil {
		return nil
	}
	return a.Publisher.Close()
}
