// Package kafkaconsumer applies incumbent update events from Kafka to the
// snapshot store.
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

	obs "github.com/mohammed-shakir/afc-spectrum-engine/internal/core/observability"
	"github.com/mohammed-shakir/afc-spectrum-engine/internal/invalidation"
	mylog "github.com/mohammed-shakir/afc-spectrum-engine/internal/logger"
)

// errPoison marks a message that can never succeed.
var errPoison = errors.New("poison message")

type Consumer struct {
	cfg    Config
	logger *slog.Logger
	store  invalidation.Target
	dedupe *seqDedupe
	zlog   *zerolog.Logger
}

func New(cfg Config, logger *slog.Logger, zl *zerolog.Logger, store invalidation.Target) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	base := mylog.WithComponent(context.Background(), "kafka_consumer")
	return &Consumer{
		cfg:    cfg,
		logger: logger,
		store:  store,
		dedupe: newSeqDedupe(cfg.DedupeSize),
		zlog:   mylog.FromContext(base, zl),
	}
}

// Start consumes update events until ctx is done.
func (c *Consumer) Start(ctx context.Context) error {
	if c.store == nil {
		return errors.New("kafkaconsumer: missing snapshot store")
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

	handler := &groupHandler{process: c.ProcessOne, logger: c.logger}

	c.logger.Info("incumbent update consumer starting",
		"brokers", c.cfg.Brokers, "topic", c.cfg.Topic, "group", c.cfg.GroupID)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("incumbent update consumer shutting down")
			return nil
		default:
			if err := group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil {
				obs.IncKafkaConsumerError("consume")
				c.zlog.Error().Err(err).
					Strs("brokers", c.cfg.Brokers).
					Str("topic", c.cfg.Topic).
					Msg("kafka consumer error")
				select {
				case <-ctx.Done():
				case <-time.After(2 * time.Second):
				}
			}
		}
	}
}

// ProcessOne decodes and applies a single update event.
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var ev invalidation.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		obs.IncKafkaConsumerError("decode")
		c.logErr(ctx, "decode", msg, err)
		return fmt.Errorf("%w: json decode: %v", errPoison, err)
	}

	if c.dedupe.stale(ev.Source, ev.Seq) {
		c.logger.Debug("dropping stale event", "source", ev.Source, "seq", ev.Seq)
		return nil
	}

	snap, err := ev.Apply(c.store)
	obs.ObserveSnapshotEvent(string(ev.Op), err)
	if err != nil {
		obs.IncKafkaConsumerError("apply")
		c.logErr(ctx, "apply", msg, err)
		return fmt.Errorf("%w: apply %s: %v", errPoison, ev.Op, err)
	}
	c.dedupe.record(ev.Source, ev.Seq)

	zl := mylog.FromContext(mylog.WithSnapshotVersion(ctx, snap.Version), c.zlog)
	zl.Info().
		Str("event", "snapshot_update").
		Str("op", string(ev.Op)).
		Str("source", ev.Source).
		Uint64("seq", ev.Seq).
		Int("incumbents", len(snap.Incumbents)).
		Msg("published incumbent snapshot")
	return nil
}

func (c *Consumer) logErr(ctx context.Context, kind string, msg *sarama.ConsumerMessage, err error) {
	mylog.FromContext(ctx, c.zlog).Error().
		Err(err).
		Str("kind", kind).
		Str("topic", msg.Topic).
		Int32("partition", msg.Partition).
		Int64("offset", msg.Offset).
		Msg("kafka error")
}
