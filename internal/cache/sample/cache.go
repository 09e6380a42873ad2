// Package sample memoizes the representative catalog item of each collection.
package sample

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/mohammed-shakir/stac-mosaic/internal/cache/keys"
	"github.com/mohammed-shakir/stac-mosaic/internal/core/model"
	"github.com/mohammed-shakir/stac-mosaic/internal/core/observability"
	"github.com/mohammed-shakir/stac-mosaic/internal/stac"
)

// ErrCatalogEmpty is returned when the single-item query finds no features.
var ErrCatalogEmpty = errors.New("catalog returned no items")

// Scope selects what a cached sample item is shared across.
type Scope int

const (
	// ScopeCollection keeps one sample per catalog endpoint and collection.
	ScopeCollection Scope = iota
	// ScopeProcess keeps a single sample for every reader in the process: the first
	// item fetched is returned for any collection afterwards.
	ScopeProcess
)

// ParseScope maps "process" to ScopeProcess and anything else to ScopeCollection.
func ParseScope(s string) Scope {
	if s == "process" {
		return ScopeProcess
	}
	return ScopeCollection
}

func (s Scope) String() string {
	if s == ScopeProcess {
		return "process"
	}
	return "collection"
}

// Remote is the optional shared tier behind the in-process LRU.
type Remote interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	DelPrefix(ctx context.Context, prefix string) (int, error)
}

type Config struct {
	Scope Scope
	// TTL of an entry, zero never expires.
	TTL  time.Duration
	Size int
	// OpTimeout bounds each call to the remote tier.
	OpTimeout time.Duration
}

// Cache is safe for concurrent use. Concurrent misses on one key issue a single
// catalog query.
type Cache struct {
	cfg    Config
	logger *slog.Logger
	local  *expirable.LRU[string, *stac.Item]
	remote Remote
	group  singleflight.Group

	// generations move on invalidation so an in-flight fetch does not store
	// an item older than the invalidation
	mu    sync.Mutex
	gens  map[string]uint64
	epoch uint64
}

// New returns a cache. remote may be nil.
func New(logger *slog.Logger, cfg Config, remote Remote) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Size <= 0 {
		cfg.Size = 128
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 250 * time.Millisecond
	}
	return &Cache{
		cfg:    cfg,
		logger: logger,
		local:  expirable.NewLRU[string, *stac.Item](cfg.Size, nil, cfg.TTL),
		remote: remote,
		gens:   map[string]uint64{},
	}
}

func (c *Cache) generation(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[key] + c.epoch
}

// store adds it to the local tier unless key was invalidated since gen was read.
func (c *Cache) store(key string, gen uint64, it *stac.Item) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[key]+c.epoch != gen {
		return false
	}
	c.local.Add(key, it)
	return true
}

func (c *Cache) Scope() Scope { return c.cfg.Scope }

func (c *Cache) key(catalog, collection string) string {
	if c.cfg.Scope == ScopeProcess {
		return keys.ProcessKey
	}
	return keys.SampleKey(catalog, collection)
}

// Get returns the sample item for ep, querying s with limit 1 on a miss.
func (c *Cache) Get(ctx context.Context, ep model.CatalogEndpoint, s stac.Searcher) (*stac.Item, error) {
	key := c.key(ep.BaseURL, ep.Collection)
	if it, ok := c.local.Get(key); ok {
		observability.IncSampleCache("hit")
		return it, nil
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		// a flight that finished between the check above and Do already stored it
		if it, ok := c.local.Get(key); ok {
			observability.IncSampleCache("hit")
			return it, nil
		}
		gen := c.generation(key)
		if it, ok := c.getRemote(ctx, key); ok {
			c.store(key, gen, it)
			observability.IncSampleCache("remote_hit")
			return it, nil
		}
		it, err := c.fetch(ctx, ep, s)
		if err != nil {
			observability.IncSampleCache("error")
			return nil, err
		}
		observability.IncSampleCache("miss")
		if !c.store(key, gen, it) {
			c.logger.Debug("sample invalidated during fetch, not cached", "collection", ep.Collection)
			return it, nil
		}
		c.putRemote(ctx, key, it)
		if c.remote != nil && c.generation(key) != gen {
			c.delRemote(ctx, key)
		}
		return it, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.Debug("sample item shared with concurrent lookup", "collection", ep.Collection)
	}
	return v.(*stac.Item), nil
}

func (c *Cache) fetch(ctx context.Context, ep model.CatalogEndpoint, s stac.Searcher) (*stac.Item, error) {
	res, err := s.Search(ctx, stac.SearchRequest{Limit: 1, Collections: []string{ep.Collection}})
	if err != nil {
		if errors.Is(err, stac.ErrQueryFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %w", stac.ErrQueryFailed, ep, err)
	}
	if res == nil || len(res.Features) == 0 || res.Features[0] == nil {
		return nil, fmt.Errorf("%w: collection %q at %s", ErrCatalogEmpty, ep.Collection, ep.BaseURL)
	}
	it := res.Features[0]
	c.logger.Info("sample item fetched",
		"catalog", ep.BaseURL, "collection", ep.Collection, "item", it.ID, "scope", c.cfg.Scope.String())
	return it, nil
}

func (c *Cache) getRemote(ctx context.Context, key string) (*stac.Item, bool) {
	if c.remote == nil {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.OpTimeout)
	defer cancel()

	raw, ok, err := c.remote.Get(ctx, key)
	if err != nil {
		c.logger.Warn("sample cache remote get failed", "key", key, "err", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var it stac.Item
	if err := json.Unmarshal(raw, &it); err != nil {
		c.logger.Warn("sample cache remote entry undecodable", "key", key, "err", err)
		return nil, false
	}
	return &it, true
}

func (c *Cache) putRemote(ctx context.Context, key string, it *stac.Item) {
	if c.remote == nil {
		return
	}
	raw, err := json.Marshal(it)
	if err != nil {
		c.logger.Warn("sample item encode failed", "key", key, "err", err)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.OpTimeout)
	defer cancel()
	if err := c.remote.Set(ctx, key, raw, c.cfg.TTL); err != nil {
		c.logger.Warn("sample cache remote set failed", "key", key, "err", err)
	}
}

func (c *Cache) delRemote(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.OpTimeout)
	defer cancel()
	if err := c.remote.Del(ctx, key); err != nil {
		c.logger.Warn("sample cache remote del failed", "key", key, "err", err)
	}
}

// Invalidate drops the sample of one collection. In process scope the single shared
// sample is dropped.
func (c *Cache) Invalidate(ctx context.Context, catalog, collection string) error {
	key := c.key(catalog, collection)
	c.mu.Lock()
	c.gens[key]++
	c.local.Remove(key)
	c.mu.Unlock()
	c.group.Forget(key)
	c.logger.Info("sample item invalidated", "catalog", catalog, "collection", collection)
	if c.remote == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.OpTimeout)
	defer cancel()
	if err := c.remote.Del(ctx, key); err != nil {
		return fmt.Errorf("invalidate %s: %w", key, err)
	}
	return nil
}

// InvalidateAll drops every cached sample.
func (c *Cache) InvalidateAll(ctx context.Context) error {
	c.mu.Lock()
	c.epoch++
	c.local.Purge()
	c.mu.Unlock()
	c.logger.Info("sample cache purged")
	if c.remote == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.OpTimeout)
	defer cancel()
	if _, err := c.remote.DelPrefix(ctx, keys.Prefix); err != nil {
		return fmt.Errorf("invalidate all: %w", err)
	}
	return nil
}

// Len is the number of samples held in process.
func (c *Cache) Len() int { return c.local.Len() }
