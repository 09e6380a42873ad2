package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	obs "github.com/mohammed-shakir/stac-mosaic/internal/core/observability"
	"github.com/mohammed-shakir/stac-mosaic/internal/invalidation"
	mylog "github.com/mohammed-shakir/stac-mosaic/internal/logger"
)

type Consumer struct {
	cfg     Config
	logger  *slog.Logger
	applier *invalidation.Applier
	zlog    *zerolog.Logger
}

func New(cfg Config, logger *slog.Logger, applier *invalidation.Applier) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		cfg:     cfg,
		logger:  logger,
		applier: applier,
	}
}

// consumes catalog change events until ctx is done
func (c *Consumer) Start(ctx context.Context) error {
	if c.applier == nil {
		return errors.New("kafkaconsumer: missing applier")
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Consumer.Group.Session.Timeout = c.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = c.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = c.cfg.RebalanceTimeout
	if c.cfg.InitialOffsetOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Offsets.AutoCommit.Enable = true

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, cfg)
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	defer func() { _ = group.Close() }()

	base := mylog.WithComponent(context.Background(), "kafka_consumer")
	zl := mylog.Build(mylog.Config{Level: "info", Component: "kafka_consumer"}, nil)
	c.zlog = mylog.FromContext(base, &zl)

	handler := newGroupHandler(c.logger, c.ProcessOne)
	backoff := c.cfg.RetryBackoff
	if backoff <= 0 {
		backoff = 2 * time.Second
	}

	c.logger.Info("kafka invalidation consumer starting",
		"brokers", c.cfg.Brokers, "topic", c.cfg.Topic, "group", c.cfg.GroupID)

	for {
		if err := group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil && ctx.Err() == nil {
			c.logger.Error("consumer error", "err", err)
			c.zlog.Error().Err(err).
				Strs("brokers", c.cfg.Brokers).
				Str("topic", c.cfg.Topic).
				Msg("kafka consumer error")
			select {
			case <-ctx.Done():
			case <-time.After(backoff):
			}
		}
		if ctx.Err() != nil {
			c.logger.Info("kafka invalidation consumer shutting down")
			return nil
		}
	}
}

// ProcessOne decodes one catalog change event and applies it to the sample cache.
// A non-nil error leaves the offset unmarked.
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	start := time.Now()

	var ev invalidation.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		obs.IncInvalidationEvent("decode", err)
		mylog.FromContext(ctx, c.zlog).Error().
			Str("kind", "decode").
			Str("topic", msg.Topic).
			Int32("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("kafka error")
		return fmt.Errorf("json decode: %w", err)
	}

	applied, err := c.applier.Apply(ctx, ev)
	obs.ObserveUpstreamLatency("kafka_apply", err, time.Since(start).Seconds())
	if errors.Is(err, invalidation.ErrInvalidEvent) {
		// a malformed event will never succeed, skip it
		c.logger.Warn("invalid catalog event dropped",
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "err", err)
		return nil
	}
	if err != nil {
		mylog.FromContext(ctx, c.zlog).Error().Err(err).
			Str("kind", "invalidate").
			Str("topic", msg.Topic).
			Int32("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("kafka error")
		return fmt.Errorf("apply event: %w", err)
	}

	c.logger.Debug("catalog event processed",
		"op", ev.Op, "catalog", ev.Catalog, "collection", ev.Collection, "applied", applied)
	if applied {
		mylog.FromContext(mylog.WithCollection(ctx, ev.Collection), c.zlog).Info().
			Str("event", "invalidation").
			Str("op", ev.Op).
			Str("catalog", ev.Catalog).
			Msg("sample invalidated")
	}
	return nil
}
