package consumer

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/IBM/sarama"

	kafka "github.com/algoarena/live-session/internal/delivery/kafka"
	pkgerrors "github.com/algoarena/live-session/pkg/errors"
)

func (c *Consumer) HandleJudgeVerdict(ctx context.Context, message *sarama.ConsumerMessage) error {
	var e kafka.JudgeVerdictEvent
	if err := json.Unmarshal(message.Value, &e); err != nil {
		c.l.Errorf(ctx, "delivery.kafka.consumer.HandleJudgeVerdict: %v", err)
		return err
	}

	if e.Verdict != kafka.VerdictAccepted {
		c.l.Debugf(ctx, "ignoring verdict %s for game %s user %s", e.Verdict, e.GameID, e.UserID)
		return nil
	}

	err := c.gameSvc.ReportSolve(ctx, e.GameID, e.UserID, e.ProblemID, e.Score, e.Coins)
	if err != nil {
		// A verdict landing after the game ended or was evicted is expected;
		// the durable score was already settled. Don't hold up the partition.
		var bizErr *pkgerrors.BusinessError
		if errors.As(err, &bizErr) {
			c.l.Warnf(ctx, "verdict for game %s user %s dropped: %v", e.GameID, e.UserID, err)
			return nil
		}
		c.l.Errorf(ctx, "delivery.kafka.consumer.HandleJudgeVerdict: %v", err)
		return err
	}

	return nil
}
