package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaBus publishes changes to a Kafka topic and forwards the topic to the
// local hub. Everything goes to the first partition so the topic keeps the
// outbox commit order.
type KafkaBus struct {
	writer *kafka.Writer
	reader *kafka.Reader
	hub    *Hub
	log    *slog.Logger
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
	// GroupID is empty for broadcast: each instance reads the whole topic.
	GroupID string
}

func NewKafkaBus(cfg KafkaConfig, hub *Hub, log *slog.Logger) *KafkaBus {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     firstPartition,
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  3,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		Logger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			log.Debug(fmt.Sprintf(msg, args...))
		}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			log.Error(fmt.Sprintf(msg, args...))
		}),
	}

	rc := kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  250 * time.Millisecond,
	}
	if cfg.GroupID == "" {
		rc.Partition = 0
		rc.StartOffset = kafka.LastOffset
	}

	return &KafkaBus{writer: writer, reader: kafka.NewReader(rc), hub: hub, log: log}
}

var firstPartition = kafka.BalancerFunc(func(_ kafka.Message, partitions ...int) int {
	return partitions[0]
})

func (b *KafkaBus) Publish(ctx context.Context, c Change) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	return b.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(c.Table),
		Value: payload,
		Time:  c.At,
	})
}

// Start forwards the topic to the hub until ctx is done.
func (b *KafkaBus) Start(ctx context.Context) error {
	go func() {
		for {
			msg, err := b.reader.ReadMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || ctx.Err() != nil {
					return
				}
				b.log.Warn("kafka read failed", "err", err)
				time.Sleep(time.Second)
				continue
			}
			var c Change
			if err := json.Unmarshal(msg.Value, &c); err != nil {
				b.log.Warn("failed to parse change", "offset", msg.Offset, "err", err)
				continue
			}
			_ = b.hub.Publish(ctx, c)
		}
	}()
	return nil
}

func (b *KafkaBus) Close() error {
	return errors.Join(b.writer.Close(), b.reader.Close())
}
