package stacmosaic

import (
	"context"
	"errors"
	"testing"

	"github.com/mohammed-shakir/stac-mosaic/internal/mosaic"
	"github.com/mohammed-shakir/stac-mosaic/internal/stac"
)

var noEngine = mosaic.EngineFactoryFunc(func(*Configuration, GranuleSource, GranuleOpener) (Engine, error) {
	return nil, errors.New("no engine")
})

type emptyCatalog struct{}

func (emptyCatalog) Search(context.Context, stac.SearchRequest) (*stac.ItemCollection, error) {
	return &stac.ItemCollection{Type: "FeatureCollection"}, nil
}

func TestOpen_MalformedURI(t *testing.T) {
	if _, err := Open(context.Background(), "https://cat.example/api", noEngine); !errors.Is(err, ErrEndpointParse) {
		t.Fatalf("err=%v want ErrEndpointParse", err)
	}
}

func TestOpen_EmptyCatalogSurfaces(t *testing.T) {
	_, err := Open(context.Background(), "https://cat.example/api?landsat8", noEngine, WithSearcher(emptyCatalog{}))
	if !errors.Is(err, ErrCatalogEmpty) {
		t.Fatalf("err=%v want ErrCatalogEmpty", err)
	}
}

func TestSharedSamples_IsSingleton(t *testing.T) {
	if SharedSamples() != SharedSamples() {
		t.Fatalf("shared cache must be process wide")
	}
}
