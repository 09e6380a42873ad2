package raster

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/mohammed-shakir/stac-mosaic/internal/core/observability"
)

// source is random access to a remote or local raster file.
type source interface {
	io.ReaderAt
	io.Closer
}

// httpSource serves ReadAt with HTTP Range requests. The first prefix bytes are fetched
// once and kept, so header parsing normally costs a single round trip.
type httpSource struct {
	ctx    context.Context
	hc     *http.Client
	url    string
	prefix int

	once   sync.Once
	head   []byte
	eof    bool
	errHdr error
}

func newHTTPSource(ctx context.Context, hc *http.Client, rawURL string, prefix int) *httpSource {
	if prefix <= 0 {
		prefix = 64 << 10
	}
	return &httpSource{ctx: ctx, hc: hc, url: rawURL, prefix: prefix}
}

func (s *httpSource) ReadAt(p []byte, off int64) (int, error) {
	s.once.Do(func() {
		s.head, s.eof, s.errHdr = s.fetch(0, int64(s.prefix))
	})
	if s.errHdr != nil {
		return 0, s.errHdr
	}
	end := off + int64(len(p))
	if end <= int64(len(s.head)) {
		return copy(p, s.head[off:end]), nil
	}
	if s.eof {
		// the whole file is already in memory
		if off >= int64(len(s.head)) {
			return 0, io.EOF
		}
		n := copy(p, s.head[off:])
		return n, io.EOF
	}
	b, _, err := s.fetch(off, int64(len(p)))
	if err != nil {
		return 0, err
	}
	n := copy(p, b)
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// fetch reads n bytes at off. eof reports that the response held the file's tail.
func (s *httpSource) fetch(off, n int64) (b []byte, eof bool, err error) {
	start := time.Now()
	defer func() { observability.ObserveUpstreamLatency("raster", err, time.Since(start).Seconds()) }()

	req, err := http.NewRequestWithContext(s.ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", off, off+n-1))

	resp, err := s.hc.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = resp.Body.Close() }()

	var body io.Reader = resp.Body
	switch resp.StatusCode {
	case http.StatusPartialContent:
	case http.StatusOK:
		// server ignored the range
		if _, err := io.CopyN(io.Discard, resp.Body, off); err != nil {
			return nil, true, nil
		}
	case http.StatusRequestedRangeNotSatisfiable:
		return nil, true, nil
	default:
		return nil, false, fmt.Errorf("GET %s: status %d", s.url, resp.StatusCode)
	}

	b, err = io.ReadAll(io.LimitReader(body, n))
	if err != nil {
		return nil, false, fmt.Errorf("GET %s: read body: %w", s.url, err)
	}
	return b, int64(len(b)) < n, nil
}

func (s *httpSource) Close() error { return nil }

// openSource picks a transport from the URL scheme. Plain paths and file:// URLs are
// opened from the local filesystem.
func openSource(ctx context.Context, hc *http.Client, rawURL string, prefix int) (source, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	switch u.Scheme {
	case "http", "https":
		return newHTTPSource(ctx, hc, rawURL, prefix), nil
	case "file", "":
		path := u.Path
		if u.Scheme == "" {
			path = rawURL
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		return f, nil
	default:
		return nil, fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
}
