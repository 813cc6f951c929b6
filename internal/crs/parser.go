package crs

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mohammed-shakir/point-catalog/internal/core/observability"
)

// Resolver turns descriptors into structured CRSes.
type Resolver interface {
	Parse(d Descriptor) (*CRS, error)
}

// ResolverFunc adapts a plain function to Resolver.
type ResolverFunc func(Descriptor) (*CRS, error)

func (f ResolverFunc) Parse(d Descriptor) (*CRS, error) { return f(d) }

// DefaultResolver parses without caching.
var DefaultResolver Resolver = ResolverFunc(Parse)

const DefaultCacheSize = 256

type cached struct {
	text string
	crs  CRS
}

// Parser is a Resolver backed by a bounded LRU of parsed descriptors. A
// catalog of thousands of tiles usually carries a handful of distinct CRS
// texts, each of which is parsed once.
type Parser struct {
	cache *lru.Cache[uint64, cached]
}

func NewParser(size int) (*Parser, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[uint64, cached](size)
	if err != nil {
		return nil, fmt.Errorf("crs cache: %w", err)
	}
	return &Parser{cache: c}, nil
}

func (p *Parser) Parse(d Descriptor) (*CRS, error) {
	text := string(d)
	k := xxhash.Sum64String(text)
	if e, ok := p.cache.Get(k); ok && e.text == text {
		observability.IncCRSCacheHit()
		out := e.crs
		return &out, nil
	}
	observability.IncCRSCacheMiss()

	c, err := Parse(d)
	if err != nil {
		return nil, err
	}
	p.cache.Add(k, cached{text: text, crs: *c})
	return c, nil
}

func (p *Parser) Len() int { return p.cache.Len() }
