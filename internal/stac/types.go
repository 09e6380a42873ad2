// Package stac is the catalog client used to query items of a collection.
package stac

import (
	"encoding/json"
	"strconv"
)

// Asset is one downloadable file of an item.
type Asset struct {
	Href  string   `json:"href"`
	Type  string   `json:"type,omitempty"`
	Title string   `json:"title,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

type Link struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
	Type string `json:"type,omitempty"`
}

// Item is a STAC item (GeoJSON Feature). The reader only relies on ID and Assets;
// the rest is kept so cached items round-trip through the shared cache unchanged.
type Item struct {
	Type       string           `json:"type"`
	ID         string           `json:"id"`
	Collection string           `json:"collection,omitempty"`
	BBox       []float64        `json:"bbox,omitempty"`
	Geometry   json.RawMessage  `json:"geometry,omitempty"`
	Properties map[string]any   `json:"properties,omitempty"`
	Assets     map[string]Asset `json:"assets"`
	Links      []Link           `json:"links,omitempty"`
}

// EPSG returns the "proj:epsg" property, or 0 when absent.
func (it *Item) EPSG() int {
	if it == nil || it.Properties == nil {
		return 0
	}
	switch v := it.Properties["proj:epsg"].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case json.Number:
		n, _ := strconv.Atoi(v.String())
		return n
	case string:
		n, _ := strconv.Atoi(v)
		return n
	}
	return 0
}

// ItemCollection is the search response FeatureCollection.
type ItemCollection struct {
	Type           string  `json:"type"`
	Features       []*Item `json:"features"`
	Links          []Link  `json:"links,omitempty"`
	NumberMatched  *int    `json:"numberMatched,omitempty"`
	NumberReturned *int    `json:"numberReturned,omitempty"`
}

// SearchRequest is the item-search body.
type SearchRequest struct {
	Limit       int       `json:"limit,omitempty"`
	Collections []string  `json:"collections,omitempty"`
	BBox        []float64 `json:"bbox,omitempty"`
	Datetime    string    `json:"datetime,omitempty"`
	IDs         []string  `json:"ids,omitempty"`
}
