package invalidation

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

type tsDedupe struct {
	mu  sync.Mutex
	lru *lru.Cache[string, int64]
}

func newTSDedupe(size int) *tsDedupe {
	if size <= 0 {
		size = 4096
	}
	c, _ := lru.New[string, int64](size)
	return &tsDedupe{lru: c}
}

// returns false when ts is not newer than the last applied event for key
func (d *tsDedupe) shouldApply(key string, ts int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.lru.Get(key); ok && ts <= last {
		return false
	}
	return true
}

func (d *tsDedupe) record(key string, ts int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.lru.Get(key); ok && ts <= last {
		return
	}
	d.lru.Add(key, ts)
}
