// Package reader extracts per-asset metadata (bounds, CRS, point count and
// format flags) from point cloud files without touching the point records.
package reader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/mohammed-shakir/point-catalog/internal/core/model"
)

var (
	ErrUnreadableAsset = errors.New("reader: unreadable asset")
	ErrUnsupportedKind = errors.New("reader: unsupported asset kind")
)

// Interface reads one asset. Implementations must be safe for concurrent use.
type Interface interface {
	Read(ctx context.Context, locator string) (model.AssetRecord, error)
}

// Func adapts a plain function to Interface.
type Func func(ctx context.Context, locator string) (model.AssetRecord, error)

func (f Func) Read(ctx context.Context, locator string) (model.AssetRecord, error) {
	return f(ctx, locator)
}

type Kind string

const (
	KindPoints Kind = "points"
	KindRaster Kind = "raster"
)

type Config struct {
	Client      *http.Client
	MaxVLRBytes int64
}

type Factory func(cfg Config, logger *slog.Logger) (Interface, error)

// Registry maps asset kinds to reader factories.
type Registry struct {
	factories map[Kind]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: map[Kind]Factory{}}
}

// DefaultRegistry knows how to read point cloud headers. Raster assets are
// recognized but have no reader.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(KindPoints, func(cfg Config, logger *slog.Logger) (Interface, error) {
		return NewLAS(cfg, logger), nil
	})
	return r
}

func (r *Registry) Register(kind Kind, f Factory) {
	r.factories[kind] = f
}

func (r *Registry) New(kind Kind, cfg Config, logger *slog.Logger) (Interface, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(string(kind))))
	if k == "" {
		k = KindPoints
	}
	if f, ok := r.factories[k]; ok {
		return f(cfg, logger)
	}
	return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnsupportedKind, kind, strings.Join(r.kinds(), ", "))
}

func (r *Registry) kinds() []string {
	out := make([]string, 0, len(r.factories))
	for k := range r.factories {
		out = append(out, string(k))
	}
	sort.Strings(out)
	return out
}
