package kafkaconsumer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"
)

type messageProcessor func(context.Context, *sarama.ConsumerMessage) error

// groupHandler applies catalog events partition by partition. Each claim is
// drained in offset order and an offset is marked only after its event was
// applied, so a failed event is redelivered after the session restarts.
type groupHandler struct {
	logger  *slog.Logger
	process messageProcessor
}

func newGroupHandler(logger *slog.Logger, process messageProcessor) *groupHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &groupHandler{logger: logger, process: process}
}

func (h *groupHandler) Setup(sess sarama.ConsumerGroupSession) error {
	h.logger.Info("catalog event partitions assigned",
		"member", sess.MemberID(), "generation", sess.GenerationID(), "claims", sess.Claims())
	return nil
}

func (h *groupHandler) Cleanup(sess sarama.ConsumerGroupSession) error {
	h.logger.Info("catalog event partitions released", "member", sess.MemberID())
	return nil
}

func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := sess.Context()
	var applied, tombstones int
	defer func() {
		h.logger.Debug("catalog event claim drained",
			"topic", claim.Topic(), "partition", claim.Partition(),
			"applied", applied, "tombstones", tombstones)
	}()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("claim %s/%d: %w", claim.Topic(), claim.Partition(), ctx.Err())
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if msg == nil {
				continue
			}
			// compaction tombstones carry no event
			if len(msg.Value) == 0 {
				tombstones++
				sess.MarkMessage(msg, "")
				continue
			}
			if err := h.process(ctx, msg); err != nil {
				return fmt.Errorf("catalog event %s/%d@%d: %w",
					msg.Topic, msg.Partition, msg.Offset, err)
			}
			sess.MarkMessage(msg, "")
			applied++
		}
	}
}
