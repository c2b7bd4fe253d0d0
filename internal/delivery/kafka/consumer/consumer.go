package consumer

import (
	"context"
	"sync"

	"github.com/IBM/sarama"

	kafka "github.com/algoarena/live-session/internal/delivery/kafka"
	"github.com/algoarena/live-session/internal/service"
	"github.com/algoarena/live-session/pkg/logger"
)

// Consumer feeds externally judged verdicts into the live engine.
type Consumer struct {
	consGr  sarama.ConsumerGroup
	gameSvc service.GameService
	l       logger.Logger
	wg      sync.WaitGroup
}

func NewConsumer(
	consGr sarama.ConsumerGroup,
	gameSvc service.GameService,
	l logger.Logger,
) *Consumer {
	return &Consumer{
		consGr:  consGr,
		gameSvc: gameSvc,
		l:       l,
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	switch msg.Topic {
	case kafka.TopicJudgeVerdict:
		return c.HandleJudgeVerdict(ctx, msg)
	default:
		c.l.Warnf(ctx, "unknown topic %s", msg.Topic)
		return nil
	}
}

func (c *Consumer) Start(ctx context.Context) error {
	topics := []string{kafka.TopicJudgeVerdict}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			if err := c.consGr.Consume(ctx, topics, c); err != nil {
				c.l.Errorf(ctx, "delivery.kafka.consumer.Start: %v", err)
			}

			if ctx.Err() != nil {
				c.l.Infof(ctx, "delivery.kafka.consumer.Start: %v", ctx.Err())
				return
			}
		}
	}()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for err := range c.consGr.Errors() {
			c.l.Errorf(ctx, "delivery.kafka.consumer.Start: %v", err)
		}
	}()

	c.l.Infof(ctx, "consumer is consuming topics: %v", topics)
	return nil
}

func (c *Consumer) Close() error {
	if err := c.consGr.Close(); err != nil {
		return err
	}

	c.wg.Wait()
	return nil
}

func (c *Consumer) Setup(sarama.ConsumerGroupSession) error {
	c.l.Debug(context.Background(), "consumer group session started")
	return nil
}

func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	c.l.Debug(context.Background(), "consumer group session ended")
	return nil
}

func (c *Consumer) ConsumeClaim(ss sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message := <-claim.Messages():
			if message == nil {
				return nil
			}

			if err := c.processMessage(ss.Context(), message); err != nil {
				c.l.Errorf(ss.Context(), "delivery.kafka.consumer.ConsumeClaim: topic=%s offset=%d: %v",
					message.Topic, message.Offset, err)
				continue
			}

			ss.MarkMessage(message, "")

		case <-ss.Context().Done():
			return nil
		}
	}
}
