// Package discovery turns a (base, pattern) pair into a list of asset
// locators, from a local directory or a remote HTML index page.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/net/html"

	"github.com/mohammed-shakir/point-catalog/internal/logger"
	"github.com/mohammed-shakir/point-catalog/internal/reader"
)

var ErrListing = errors.New("discovery: listing failed")

// maxListingBytes bounds how much of a remote index page is parsed.
const maxListingBytes = 32 << 20

type Lister struct {
	client *http.Client
	// HrefAsIs keeps relative hrefs as they appear on the page instead of
	// joining them to the base URL. Absolute URLs are always kept.
	HrefAsIs bool
	log      *slog.Logger
}

func NewLister(client *http.Client, hrefAsIs bool, log *slog.Logger) *Lister {
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Lister{client: client, HrefAsIs: hrefAsIs, log: log}
}

// IsRemote reports whether base names an http(s) location.
func IsRemote(base string) bool { return reader.IsRemote(base) }

// List returns the locators under base matching pattern, sorted for local
// directories and in page order for remote listings.
func (l *Lister) List(ctx context.Context, base, pattern string) ([]string, error) {
	if strings.TrimSpace(base) == "" {
		return nil, fmt.Errorf("%w: empty base", ErrListing)
	}
	if pattern == "" {
		pattern = "*"
	}
	if IsRemote(base) {
		return l.listRemote(ctx, base, pattern)
	}
	return listLocal(base, pattern)
}

func listLocal(base, pattern string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(base, pattern))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrListing, err)
	}
	sort.Strings(matches)
	return matches, nil
}

func (l *Lister) listRemote(ctx context.Context, base, pattern string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrListing, err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrListing, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: GET %s: %s", ErrListing, base, resp.Status)
	}

	hrefs, err := anchors(io.LimitReader(resp.Body, maxListingBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", ErrListing, base, err)
	}

	suffix := strings.ReplaceAll(pattern, "*", "")
	prefix := strings.TrimRight(base, "/") + "/"
	seen := map[string]struct{}{}
	var out []string
	for _, h := range hrefs {
		if !strings.HasSuffix(h, suffix) {
			continue
		}
		loc := h
		if !l.HrefAsIs && !IsRemote(h) {
			loc = prefix + strings.TrimLeft(h, "/")
		}
		if _, dup := seen[loc]; dup {
			continue
		}
		seen[loc] = struct{}{}
		out = append(out, loc)
	}
	l.log.DebugContext(ctx, "remote listing", "base", base, "links", len(hrefs), "matched", len(out))
	return out, nil
}

// anchors returns the href of every <a> element in document order.
func anchors(r io.Reader) ([]string, error) {
	z := html.NewTokenizer(r)
	var out []string
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return nil, err
			}
			return out, nil
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "a" || !hasAttr {
				continue
			}
			for {
				k, v, more := z.TagAttr()
				if string(k) == "href" && len(v) > 0 {
					out = append(out, string(v))
				}
				if !more {
					break
				}
			}
		}
	}
}
