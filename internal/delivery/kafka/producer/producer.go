package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"

	kafka "github.com/algoarena/live-session/internal/delivery/kafka"
	"github.com/algoarena/live-session/pkg/logger"
)

type Producer interface {
	PublishGameStarted(ctx context.Context, event kafka.GameStartedEvent) error
	PublishGameEnded(ctx context.Context, event kafka.GameEndedEvent) error
	PublishRoomDisbanded(ctx context.Context, event kafka.RoomDisbandedEvent) error
	Close() error
}

type implProducer struct {
	l    logger.Logger
	prod sarama.SyncProducer
}

func NewProducer(prod sarama.SyncProducer, l logger.Logger) Producer {
	return &implProducer{
		l:    l,
		prod: prod,
	}
}

func (p *implProducer) PublishGameStarted(ctx context.Context, event kafka.GameStartedEvent) error {
	event.Timestamp = time.Now()
	// Partition by game_id so downstream consumers see one game's lifecycle in order.
	return p.publish(ctx, kafka.TopicGameStarted, event.GameID, event)
}

func (p *implProducer) PublishGameEnded(ctx context.Context, event kafka.GameEndedEvent) error {
	event.Timestamp = time.Now()
	return p.publish(ctx, kafka.TopicGameEnded, event.GameID, event)
}

func (p *implProducer) PublishRoomDisbanded(ctx context.Context, event kafka.RoomDisbandedEvent) error {
	event.Timestamp = time.Now()
	return p.publish(ctx, kafka.TopicRoomDisbanded, event.RoomID, event)
}

func (p *implProducer) publish(ctx context.Context, topic, key string, event any) error {
	val, err := json.Marshal(event)
	if err != nil {
		p.l.Errorf(ctx, "delivery.kafka.producer.publish: marshal for %s: %v", topic, err)
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(val),
		Headers: []sarama.RecordHeader{
			{
				Key:   []byte("timestamp"),
				Value: []byte(time.Now().Format(time.RFC3339)),
			},
		},
	}

	_, _, err = p.prod.SendMessage(msg)
	return err
}

func (p *implProducer) Close() error {
	return p.prod.Close()
}

// noopProducer stands in when Kafka is disabled (single-node development).
type noopProducer struct{}

func NewNoopProducer() Producer {
	return noopProducer{}
}

func (noopProducer) PublishGameStarted(context.Context, kafka.GameStartedEvent) error { return nil }
func (noopProducer) PublishGameEnded(context.Context, kafka.GameEndedEvent) error     { return nil }
func (noopProducer) PublishRoomDisbanded(context.Context, kafka.RoomDisbandedEvent) error {
	return nil
}
func (noopProducer) Close() error { return nil }
