// Package invalidation turns catalog change events into sample cache invalidations.
package invalidation

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidEvent is returned by Validate and wraps the failing field.
var ErrInvalidEvent = errors.New("invalid invalidation event")

const (
	OpItemUpsert       = "item_upsert"
	OpItemDelete       = "item_delete"
	OpCollectionUpdate = "collection_update"
)

// Event is the wire form of a catalog change.
type Event struct {
	Version    int       `json:"version"`
	Op         string    `json:"op"`
	Catalog    string    `json:"catalog"`
	Collection string    `json:"collection"`
	TS         time.Time `json:"ts"`
	ItemID     string    `json:"item_id,omitempty"`
	Source     string    `json:"source,omitempty"`
}

func (e Event) Validate() error {
	if e.Version != 1 {
		return fmt.Errorf("%w: version must be 1", ErrInvalidEvent)
	}
	switch e.Op {
	case OpItemUpsert, OpItemDelete, OpCollectionUpdate:
	default:
		return fmt.Errorf("%w: op must be item_upsert|item_delete|collection_update", ErrInvalidEvent)
	}
	if strings.TrimSpace(e.Catalog) == "" {
		return fmt.Errorf("%w: catalog is required", ErrInvalidEvent)
	}
	if strings.TrimSpace(e.Collection) == "" {
		return fmt.Errorf("%w: collection is required", ErrInvalidEvent)
	}
	if e.TS.IsZero() {
		return fmt.Errorf("%w: ts is required", ErrInvalidEvent)
	}
	return nil
}

// dedupeKey identifies the cache entry an event targets.
func (e Event) dedupeKey() string {
	return strings.TrimRight(strings.TrimSpace(e.Catalog), "/") + "\x00" + e.Collection
}
