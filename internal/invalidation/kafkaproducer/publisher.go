// Package kafkaproducer publishes catalog change events for the invalidation consumer.
package kafkaproducer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/stac-mosaic/internal/invalidation"
)

type Publisher struct {
	topic string
	prod  sarama.SyncProducer
}

// New dials brokers. Events are keyed by catalog and collection so events for one
// collection stay ordered on a single partition.
func New(brokers []string, topic string) (*Publisher, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Partitioner = sarama.NewHashPartitioner

	prod, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("kafkaproducer: create sync producer: %w", err)
	}
	return NewWithProducer(prod, topic), nil
}

func NewWithProducer(prod sarama.SyncProducer, topic string) *Publisher {
	return &Publisher{topic: topic, prod: prod}
}

// Publish validates ev and sends it, returning the partition and offset it landed on.
func (p *Publisher) Publish(ev invalidation.Event) (int32, int64, error) {
	if err := ev.Validate(); err != nil {
		return 0, 0, err
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return 0, 0, fmt.Errorf("kafkaproducer: marshal: %w", err)
	}
	part, off, err := p.prod.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(strings.TrimRight(ev.Catalog, "/") + "|" + ev.Collection),
		Value: sarama.ByteEncoder(b),
	})
	if err != nil {
		return 0, 0, fmt.Errorf("kafkaproducer: send to %s: %w", p.topic, err)
	}
	return part, off, nil
}

func (p *Publisher) Close() error {
	if err := p.prod.Close(); err != nil {
		return fmt.Errorf("kafkaproducer: close producer: %w", err)
	}
	return nil
}
