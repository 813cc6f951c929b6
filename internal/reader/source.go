package reader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
)

// source is random access to the bytes of one asset.
type source interface {
	io.ReaderAt
	io.Closer
	// Size is the total length in bytes, or -1 when unknown.
	Size() int64
	Kind() string
}

// IsRemote reports whether locator is an http(s) URL.
func IsRemote(locator string) bool {
	l := strings.ToLower(locator)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

func openSource(ctx context.Context, locator string, client *http.Client) (source, error) {
	if IsRemote(locator) {
		return openHTTP(ctx, locator, client)
	}
	return openFile(locator)
}

type fileSource struct {
	f    *os.File
	size int64
}

func openFile(path string) (*fileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if st.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("%s is a directory", path)
	}
	return &fileSource{f: f, size: st.Size()}, nil
}

func (s *fileSource) ReadAt(p []byte, off int64) (int, error) { return s.f.ReadAt(p, off) }
func (s *fileSource) Close() error                            { return s.f.Close() }
func (s *fileSource) Size() int64                             { return s.size }
func (s *fileSource) Kind() string                            { return "local" }

// prefetch covers the public header block and the VLRs of nearly every tile,
// so a typical read costs one request.
const prefetch = 64 << 10

// httpSource reads with Range requests. The first prefetch bytes are fetched
// on open and served from memory.
type httpSource struct {
	ctx    context.Context
	client *http.Client
	url    string
	size   int64
	head   []byte
}

func openHTTP(ctx context.Context, url string, client *http.Client) (*httpSource, error) {
	if client == nil {
		client = http.DefaultClient
	}
	s := &httpSource{ctx: ctx, client: client, url: url, size: -1}
	body, size, err := s.fetch(0, prefetch)
	if err != nil {
		return nil, err
	}
	s.head, s.size = body, size
	return s, nil
}

// fetch requests [off, off+n). Servers that ignore Range answer 200 with the
// whole body, which is then cut down to the window.
func (s *httpSource) fetch(off, n int64) ([]byte, int64, error) {
	req, err := http.NewRequestWithContext(s.ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, -1, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", off, off+n-1))

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, -1, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusPartialContent:
		body, err := io.ReadAll(io.LimitReader(resp.Body, n))
		if err != nil {
			return nil, -1, err
		}
		return body, contentRangeTotal(resp.Header.Get("Content-Range")), nil
	case http.StatusOK:
		if _, err := io.CopyN(io.Discard, resp.Body, off); err != nil {
			return nil, resp.ContentLength, err
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, n))
		if err != nil {
			return nil, -1, err
		}
		return body, resp.ContentLength, nil
	case http.StatusRequestedRangeNotSatisfiable:
		return nil, contentRangeTotal(resp.Header.Get("Content-Range")), io.EOF
	default:
		return nil, -1, fmt.Errorf("GET %s: %s", s.url, resp.Status)
	}
}

func (s *httpSource) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.New("negative offset")
	}
	end := off + int64(len(p))
	if end <= int64(len(s.head)) {
		return copy(p, s.head[off:end]), nil
	}
	body, _, err := s.fetch(off, int64(len(p)))
	if err != nil {
		return 0, err
	}
	n := copy(p, body)
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (s *httpSource) Close() error { return nil }
func (s *httpSource) Size() int64  { return s.size }
func (s *httpSource) Kind() string { return "http" }

// contentRangeTotal parses the complete length from "bytes 0-99/1234".
func contentRangeTotal(v string) int64 {
	i := strings.LastIndexByte(v, '/')
	if i < 0 {
		return -1
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v[i+1:]), 10, 64)
	if err != nil {
		return -1
	}
	return n
}
