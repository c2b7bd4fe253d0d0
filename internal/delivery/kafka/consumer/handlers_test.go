package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"

	kafka "github.com/algoarena/live-session/internal/delivery/kafka"
	"github.com/algoarena/live-session/internal/models"
	pkgerrors "github.com/algoarena/live-session/pkg/errors"
	"github.com/algoarena/live-session/pkg/logger"
)

type solveCall struct {
	gameID, userID, problemID string
	score, coins              int
}

type fakeGameService struct {
	calls []solveCall
	err   error
}

func (s *fakeGameService) GetGame(ctx context.Context, gameID string) (*models.GameState, error) {
	return nil, nil
}

func (s *fakeGameService) BanAlgorithm(ctx context.Context, gameID, userID, algorithmID string) error {
	return nil
}

func (s *fakeGameService) PickAlgorithm(ctx context.Context, gameID, userID, algorithmID string) error {
	return nil
}

func (s *fakeGameService) UseItem(ctx context.Context, gameID, userID, itemID string) error {
	return nil
}

func (s *fakeGameService) CastSpell(ctx context.Context, gameID, userID, spellID, targetUserID string) error {
	return nil
}

func (s *fakeGameService) ReportSolve(ctx context.Context, gameID, userID, problemID string, score, coins int) error {
	s.calls = append(s.calls, solveCall{gameID, userID, problemID, score, coins})
	return s.err
}

func (s *fakeGameService) HandleStageDeadline(gameID string, deadline time.Time) {}

func verdictMessage(t *testing.T, e kafka.JudgeVerdictEvent) *sarama.ConsumerMessage {
	t.Helper()
	value, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal verdict: %v", err)
	}
	return &sarama.ConsumerMessage{Topic: kafka.TopicJudgeVerdict, Value: value}
}

func TestHandleJudgeVerdictAccepted(t *testing.T) {
	svc := &fakeGameService{}
	c := NewConsumer(nil, svc, logger.InitializeTestZapLogger())

	msg := verdictMessage(t, kafka.JudgeVerdictEvent{
		GameID:    "g1",
		UserID:    "u1",
		ProblemID: "p1",
		Verdict:   kafka.VerdictAccepted,
		Score:     150,
		Coins:     20,
	})
	if err := c.HandleJudgeVerdict(context.Background(), msg); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if len(svc.calls) != 1 {
		t.Fatalf("ReportSolve called %d times, want 1", len(svc.calls))
	}
	want := solveCall{"g1", "u1", "p1", 150, 20}
	if svc.calls[0] != want {
		t.Errorf("call = %+v, want %+v", svc.calls[0], want)
	}
}

func TestHandleJudgeVerdictRejectedSkipped(t *testing.T) {
	svc := &fakeGameService{}
	c := NewConsumer(nil, svc, logger.InitializeTestZapLogger())

	msg := verdictMessage(t, kafka.JudgeVerdictEvent{
		GameID:  "g1",
		UserID:  "u1",
		Verdict: "wrong_answer",
	})
	if err := c.HandleJudgeVerdict(context.Background(), msg); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(svc.calls) != 0 {
		t.Errorf("rejected verdict reached ReportSolve: %+v", svc.calls)
	}
}

func TestHandleJudgeVerdictMalformed(t *testing.T) {
	svc := &fakeGameService{}
	c := NewConsumer(nil, svc, logger.InitializeTestZapLogger())

	msg := &sarama.ConsumerMessage{Topic: kafka.TopicJudgeVerdict, Value: []byte("{broken")}
	if err := c.HandleJudgeVerdict(context.Background(), msg); err == nil {
		t.Fatal("malformed verdict accepted without error")
	}
	if len(svc.calls) != 0 {
		t.Errorf("malformed verdict reached ReportSolve: %+v", svc.calls)
	}
}

// A verdict that loses the race against game end must not stall the partition.
func TestHandleJudgeVerdictLateBusinessError(t *testing.T) {
	svc := &fakeGameService{err: pkgerrors.Conflict("game already ended")}
	c := NewConsumer(nil, svc, logger.InitializeTestZapLogger())

	msg := verdictMessage(t, kafka.JudgeVerdictEvent{
		GameID:  "g1",
		UserID:  "u1",
		Verdict: kafka.VerdictAccepted,
	})
	if err := c.HandleJudgeVerdict(context.Background(), msg); err != nil {
		t.Fatalf("business error should be swallowed, got %v", err)
	}
}

func TestHandleJudgeVerdictInfraError(t *testing.T) {
	svc := &fakeGameService{err: errors.New("redis connection reset")}
	c := NewConsumer(nil, svc, logger.InitializeTestZapLogger())

	msg := verdictMessage(t, kafka.JudgeVerdictEvent{
		GameID:  "g1",
		UserID:  "u1",
		Verdict: kafka.VerdictAccepted,
	})
	if err := c.HandleJudgeVerdict(context.Background(), msg); err == nil {
		t.Fatal("infrastructure error must propagate so the offset is not marked")
	}
}
