package kafka

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"

	"github.com/algoarena/live-session/pkg/logger"
)

type ConsumerConfig struct {
	Brokers []string
	GroupID string
}

func NewConsumer(cfg ConsumerConfig, l logger.Logger) (sarama.ConsumerGroup, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Version = sarama.V2_8_0_0
	saramaCfg.Consumer.Group.Rebalance.Strategy = sarama.NewBalanceStrategyRoundRobin()
	saramaCfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaCfg.Consumer.Return.Errors = true

	consGroup, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer group: %w", err)
	}

	l.Infof(context.Background(), "kafka consumer group %s connected to brokers: %v", cfg.GroupID, cfg.Brokers)

	return consGroup, nil
}
