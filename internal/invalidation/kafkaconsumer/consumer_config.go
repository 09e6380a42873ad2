package kafkaconsumer

import (
	"os"
	"strings"
	"time"

	"github.com/mohammed-shakir/stac-mosaic/internal/core/config"
)

type Config struct {
	Brokers             []string
	Topic               string
	GroupID             string
	SessionTimeout      time.Duration
	Heartbeat           time.Duration
	RebalanceTimeout    time.Duration
	RetryBackoff        time.Duration
	InitialOffsetOldest bool
	DedupeSize          int
}

func FromEnv() Config {
	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		brokers = "localhost:9092"
	}
	topic := os.Getenv("KAFKA_TOPIC")
	if topic == "" {
		topic = "stac-catalog-events"
	}
	group := os.Getenv("KAFKA_GROUP_ID")
	if group == "" {
		group = "stac-sample-invalidator"
	}
	return ConfigFrom(config.InvalidationCfg{Brokers: brokers, Topic: topic, GroupID: group})
}

// ConfigFrom fills the consumer tunables around the service invalidation settings.
func ConfigFrom(ic config.InvalidationCfg) Config {
	return Config{
		Brokers:             splitCSV(ic.Brokers),
		Topic:               ic.Topic,
		GroupID:             ic.GroupID,
		SessionTimeout:      30 * time.Second,
		Heartbeat:           3 * time.Second,
		RebalanceTimeout:    30 * time.Second,
		RetryBackoff:        2 * time.Second,
		InitialOffsetOldest: true,
		DedupeSize:          4096,
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
