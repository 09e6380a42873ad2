// catalog-events publishes one catalog change event so running readers drop the
// cached sample of a collection.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mohammed-shakir/stac-mosaic/internal/invalidation"
	"github.com/mohammed-shakir/stac-mosaic/internal/invalidation/kafkaconsumer"
	"github.com/mohammed-shakir/stac-mosaic/internal/invalidation/kafkaproducer"
)

func main() {
	os.Exit(run())
}

func run() int {
	op := flag.String("op", invalidation.OpCollectionUpdate, "item_upsert, item_delete or collection_update")
	catalog := flag.String("catalog", "", "catalog base URL")
	collection := flag.String("collection", "", "collection id")
	item := flag.String("item", "", "item id (informational)")
	flag.Parse()

	kc := kafkaconsumer.FromEnv()
	pub, err := kafkaproducer.New(kc.Brokers, kc.Topic)
	if err != nil {
		fmt.Fprintln(os.Stderr, "kafka:", err)
		return 1
	}
	defer func() { _ = pub.Close() }()

	ev := invalidation.Event{
		Version:    1,
		Op:         *op,
		Catalog:    *catalog,
		Collection: *collection,
		TS:         time.Now().UTC(),
		ItemID:     *item,
		Source:     "catalog-events",
	}
	part, off, err := pub.Publish(ev)
	if err != nil {
		fmt.Fprintln(os.Stderr, "publish:", err)
		return 1
	}
	fmt.Printf("published %s %s?%s to %s partition %d offset %d\n",
		ev.Op, ev.Catalog, ev.Collection, kc.Topic, part, off)
	return 0
}
