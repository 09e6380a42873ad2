package stac

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mohammed-shakir/stac-mosaic/internal/core/observability"
)

// ErrQueryFailed wraps every failed catalog search.
var ErrQueryFailed = errors.New("catalog query failed")

// Searcher is the single catalog operation the reader depends on.
type Searcher interface {
	Search(ctx context.Context, req SearchRequest) (*ItemCollection, error)
}

type Client struct {
	logger    *slog.Logger
	http      *http.Client
	searchURL *url.URL
	base      string
	startNow  func() time.Time // for tests
}

var _ Searcher = (*Client)(nil)

// NewClient returns a client for the catalog rooted at base.
func NewClient(logger *slog.Logger, hc *http.Client, base string) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	u, err := url.Parse(strings.TrimRight(base, "/") + "/search")
	if err != nil {
		return nil, fmt.Errorf("parse catalog url %q: %w", base, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("catalog url %q: unsupported scheme %q", base, u.Scheme)
	}
	return &Client{
		logger:    logger,
		http:      hc,
		searchURL: u,
		base:      base,
		startNow:  time.Now,
	}, nil
}

func (c *Client) BaseURL() string { return c.base }

// Search posts req to <base>/search and decodes the FeatureCollection.
func (c *Client) Search(ctx context.Context, req SearchRequest) (*ItemCollection, error) {
	start := c.startNow()
	out, err := c.search(ctx, req)
	observability.ObserveUpstreamLatency("stac", err, time.Since(start).Seconds())
	if err != nil {
		c.logger.Debug("stac search failed",
			"catalog", c.base, "collections", req.Collections, "err", err)
		return nil, fmt.Errorf("%w: %s collections=%v: %w", ErrQueryFailed, c.base, req.Collections, err)
	}
	c.logger.Debug("stac search done",
		"catalog", c.base, "collections", req.Collections,
		"features", len(out.Features), "duration", time.Since(start).String())
	return out, nil
}

func (c *Client) search(ctx context.Context, req SearchRequest) (*ItemCollection, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.searchURL.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	hreq.Header.Set("Content-Type", "application/json")
	hreq.Header.Set("Accept", "application/geo+json, application/json")

	resp, err := c.http.Do(hreq)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return nil, fmt.Errorf("upstream status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var out ItemCollection
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode feature collection: %w", err)
	}
	return &out, nil
}
