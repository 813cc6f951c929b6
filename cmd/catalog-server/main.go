package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mohammed-shakir/point-catalog/internal/app"
	"github.com/mohammed-shakir/point-catalog/internal/core/config"
	"github.com/mohammed-shakir/point-catalog/internal/core/observability"
	"github.com/mohammed-shakir/point-catalog/internal/core/server"
	"github.com/mohammed-shakir/point-catalog/internal/logger"
	"github.com/mohammed-shakir/point-catalog/internal/metrics"
	"github.com/mohammed-shakir/point-catalog/internal/service"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	addrFlag := flag.String("addr", "", "listen address (overrides ADDR)")
	localFlag := flag.Bool("allow-local", false, "serve catalogs of local directories")
	flag.Parse()

	cfg := config.FromEnv()
	if *addrFlag != "" {
		cfg.Addr = strings.TrimSpace(*addrFlag)
	}
	if *localFlag {
		cfg.AllowLocal = true
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Component: "catalog-server",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	observability.ExposeBuildInfo(Version)
	p := metrics.Init(metrics.Config{
		IncludeDefault: true,
		Build: metrics.BuildInfo{
			Version:   Version,
			Revision:  os.Getenv("BUILD_REVISION"),
			Branch:    os.Getenv("BUILD_BRANCH"),
			BuildDate: os.Getenv("BUILD_DATE"),
		},
	})

	appLog.Info("starting catalog-server",
		"addr", cfg.Addr,
		"version", Version,
		"allow_local", cfg.AllowLocal,
		"policy", cfg.EquivalencePolicy,
		"kafka", cfg.Kafka.Enabled)

	a, err := app.New(cfg, appLog)
	if err != nil {
		appLog.Error("app setup failed", "err", err)
		return 1
	}
	defer func() {
		if err := a.Close(); err != nil {
			appLog.Warn("close", "err", err)
		}
	}()

	handler, err := service.New(a)
	if err != nil {
		appLog.Error("service setup failed", "err", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx, cfg, appLog, handler, p.Handler()); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}
