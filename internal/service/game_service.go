package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/algoarena/live-session/config"
	kafka "github.com/algoarena/live-session/internal/delivery/kafka"
	"github.com/algoarena/live-session/internal/delivery/kafka/producer"
	"github.com/algoarena/live-session/internal/event"
	"github.com/algoarena/live-session/internal/livestore"
	"github.com/algoarena/live-session/internal/models"
	"github.com/algoarena/live-session/internal/repository"
	"github.com/algoarena/live-session/internal/snapshot"
	"github.com/algoarena/live-session/pkg/logger"
	"github.com/algoarena/live-session/pkg/util"
)

type GameService interface {
	GetGame(ctx context.Context, gameID string) (*models.GameState, error)
	BanAlgorithm(ctx context.Context, gameID, userID, algorithmID string) error
	PickAlgorithm(ctx context.Context, gameID, userID, algorithmID string) error
	UseItem(ctx context.Context, gameID, userID, itemID string) error
	CastSpell(ctx context.Context, gameID, userID, spellID, targetUserID string) error
	ReportSolve(ctx context.Context, gameID, userID, problemID string, score, coins int) error
	HandleStageDeadline(gameID string, deadline time.Time)
}

type gameService struct {
	games    *livestore.GameStore
	rooms    *livestore.RoomStore
	bus      event.Bus
	writer   snapshot.Writer
	sched    *StageScheduler
	catalog  *Catalog
	prod     producer.Producer
	stageCfg config.StageConfig
	l        logger.Logger
}

func NewGameService(
	games *livestore.GameStore,
	rooms *livestore.RoomStore,
	bus event.Bus,
	writer snapshot.Writer,
	sched *StageScheduler,
	catalog *Catalog,
	prod producer.Producer,
	stageCfg config.StageConfig,
	l logger.Logger,
) GameService {
	return &gameService{
		games:    games,
		rooms:    rooms,
		bus:      bus,
		writer:   writer,
		sched:    sched,
		catalog:  catalog,
		prod:     prod,
		stageCfg: stageCfg,
		l:        l,
	}
}

// mutate mirrors roomService.mutate for the game lane: envelopes handed to
// emit are broadcast only after the save commits, still inside the lane.
func (s *gameService) mutate(ctx context.Context, gameID string, fn func(game *models.GameState, emit func(event.Envelope)) error) (*models.GameState, error) {
	var pending []event.Envelope
	emit := func(env event.Envelope) { pending = append(pending, env) }

	return s.games.Mutate(ctx, gameID,
		func(game *models.GameState) error {
			return fn(game, emit)
		},
		func(game *models.GameState) {
			for _, env := range pending {
				s.bus.BroadcastGame(game.ID, env)
			}
		})
}

func (s *gameService) GetGame(ctx context.Context, gameID string) (*models.GameState, error) {
	game, err := s.games.Get(ctx, gameID)
	if err != nil {
		return nil, s.mapGameErr(err)
	}
	return game, nil
}

func (s *gameService) BanAlgorithm(ctx context.Context, gameID, userID, algorithmID string) error {
	return s.banOrPick(ctx, gameID, userID, algorithmID, models.KindBan)
}

func (s *gameService) PickAlgorithm(ctx context.Context, gameID, userID, algorithmID string) error {
	return s.banOrPick(ctx, gameID, userID, algorithmID, models.KindPick)
}

func (s *gameService) banOrPick(ctx context.Context, gameID, userID, algorithmID string, kind models.BanPickKind) error {
	wantStage := models.StageBan
	eventType := event.TypeAlgoBanned
	if kind == models.KindPick {
		wantStage = models.StagePick
		eventType = event.TypeAlgoPicked
	}

	game, err := s.mutate(ctx, gameID, func(game *models.GameState, emit func(event.Envelope)) error {
		if game.IsEnded() {
			return ErrGameEnded
		}
		if game.Stage != wantStage {
			return ErrWrongStage
		}
		p := game.Player(userID)
		if p == nil {
			return ErrPlayerNotInGame
		}
		if _, ok := s.catalog.Algorithm(algorithmID); !ok {
			return ErrAlgorithmUnknown
		}
		if game.HasBanPick(userID, kind) {
			return ErrAlreadyActed
		}
		if game.AlgorithmTaken(algorithmID) {
			return ErrAlgorithmTaken
		}

		now := time.Now()
		game.BanPicks = append(game.BanPicks, models.BanPickRecord{
			GameID:      gameID,
			UserID:      userID,
			AlgorithmID: algorithmID,
			Kind:        kind,
			TakenAt:     now,
		})
		if kind == models.KindBan {
			p.Banned = true
		} else {
			p.Picked = true
		}

		emit(event.New(eventType, event.AlgoBanPicked{
			GameID:      gameID,
			UserID:      userID,
			AlgorithmID: algorithmID,
		}))

		if game.StageComplete() {
			s.advanceLocked(game, now, emit)
		}
		return nil
	})
	if err != nil {
		return s.mapGameErr(err)
	}

	s.afterMutate(ctx, game)
	return nil
}

func (s *gameService) UseItem(ctx context.Context, gameID, userID, itemID string) error {
	game, err := s.mutate(ctx, gameID, func(game *models.GameState, emit func(event.Envelope)) error {
		if game.IsEnded() {
			return ErrGameEnded
		}
		if game.Stage != models.StageShop && game.Stage != models.StagePlay {
			return ErrWrongStage
		}
		p := game.Player(userID)
		if p == nil {
			return ErrPlayerNotInGame
		}
		item, ok := s.catalog.Item(itemID)
		if !ok {
			return ErrItemUnknown
		}
		if p.Coins < item.Price {
			return ErrInsufficientCoins
		}

		p.Coins -= item.Price
		p.Items = append(p.Items, itemID)

		emit(event.New(event.TypeItemUsed, event.ItemUsed{
			GameID: gameID,
			UserID: userID,
			ItemID: itemID,
			Coins:  p.Coins,
		}))
		return nil
	})
	if err != nil {
		return s.mapGameErr(err)
	}

	s.afterMutate(ctx, game)
	return nil
}

func (s *gameService) CastSpell(ctx context.Context, gameID, userID, spellID, targetUserID string) error {
	game, err := s.mutate(ctx, gameID, func(game *models.GameState, emit func(event.Envelope)) error {
		if game.IsEnded() {
			return ErrGameEnded
		}
		if game.Stage != models.StagePlay {
			return ErrWrongStage
		}
		p := game.Player(userID)
		if p == nil {
			return ErrPlayerNotInGame
		}
		if targetUserID == userID {
			return ErrSelfTarget
		}
		if game.Player(targetUserID) == nil {
			return ErrTargetNotInGame
		}
		spell, ok := s.catalog.Spell(spellID)
		if !ok {
			return ErrSpellUnknown
		}
		if p.Coins < spell.Price {
			return ErrInsufficientCoins
		}

		p.Coins -= spell.Price

		emit(event.New(event.TypeSpellCast, event.SpellCast{
			GameID:       gameID,
			UserID:       userID,
			SpellID:      spellID,
			TargetUserID: targetUserID,
		}))
		return nil
	})
	if err != nil {
		return s.mapGameErr(err)
	}

	s.afterMutate(ctx, game)
	return nil
}

// ReportSolve credits a judged submission. Fed by the judge verdict consumer;
// only accepted verdicts reach this point.
func (s *gameService) ReportSolve(ctx context.Context, gameID, userID, problemID string, score, coins int) error {
	game, err := s.mutate(ctx, gameID, func(game *models.GameState, emit func(event.Envelope)) error {
		if game.IsEnded() {
			return ErrGameEnded
		}
		if game.Stage != models.StagePlay {
			return ErrWrongStage
		}
		p := game.Player(userID)
		if p == nil {
			return ErrPlayerNotInGame
		}

		p.Score += score
		p.Coins += coins

		emit(event.New(event.TypeGameScoreUpdated, event.GameScoreUpdated{
			GameID:    gameID,
			UserID:    userID,
			ProblemID: problemID,
			Score:     p.Score,
			Coins:     p.Coins,
		}))
		return nil
	})
	if err != nil {
		return s.mapGameErr(err)
	}

	s.afterMutate(ctx, game)
	return nil
}

// HandleStageDeadline runs on the scheduler goroutine when a stage timer
// fires. It serializes on the game's mutate lane like any command; a stale
// fire (the game advanced and re-armed since) is detected by comparing the
// armed deadline against the current one and dropped.
func (s *gameService) HandleStageDeadline(gameID string, deadline time.Time) {
	ctx := context.Background()

	advanced := false
	game, err := s.mutate(ctx, gameID, func(game *models.GameState, emit func(event.Envelope)) error {
		if game.IsEnded() {
			return nil
		}
		if !game.StageDeadlineAt.Equal(deadline) {
			// Re-armed for a later stage before this fire was handled.
			return nil
		}
		s.advanceLocked(game, time.Now(), emit)
		advanced = true
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Game evicted between fire and handling.
			return
		}
		s.l.Errorf(ctx, "stage deadline handling failed for game %s: %v", gameID, err)
		return
	}

	if advanced {
		s.afterMutate(ctx, game)
	}
}

// advanceLocked moves the game to the next stage. Caller holds the game's
// mutate lane. remainingMs in the emitted event is what was left of the
// closing stage: zero on a deadline fire, positive on an early advance.
func (s *gameService) advanceLocked(game *models.GameState, now time.Time, emit func(event.Envelope)) {
	prev := game.Stage
	remaining := game.RemainingMs(now)

	next, ok := prev.Next()
	if !ok {
		return
	}
	game.EnterStage(next, now, s.stageCfg)

	emit(event.New(event.TypeGameStageChanged, event.GameStageChanged{
		GameID:          game.ID,
		Stage:           next,
		PrevStage:       prev,
		StageStartedAt:  util.TimeToISO8601Str(game.StageStartedAt),
		StageDeadlineAt: util.TimeToISO8601Str(game.StageDeadlineAt),
		RemainingMs:     remaining,
	}))

	if next == models.StageEnded {
		emit(event.New(event.TypeGameEnded, event.GameEnded{
			GameID:  game.ID,
			RoomID:  game.RoomID,
			Results: results(game),
		}))
	}
}

// afterMutate re-arms or tears down the timer to match the committed stage
// and hands the state to the snapshot writer.
func (s *gameService) afterMutate(ctx context.Context, game *models.GameState) {
	if game.IsEnded() {
		s.sched.Cancel(game.ID)
		s.finishGame(ctx, game)
		return
	}

	s.sched.Schedule(game.ID, game.StageDeadlineAt)
	s.writer.PersistGame(game.ID)
}

// finishGame runs the terminal path once the ENDED transition has committed:
// lifecycle event out, terminal flush, room released back to lobby state.
func (s *gameService) finishGame(ctx context.Context, game *models.GameState) {
	res := results(game)

	kafkaResults := make([]kafka.PlayerResult, 0, len(res))
	for _, r := range res {
		kafkaResults = append(kafkaResults, kafka.PlayerResult{
			UserID: r.UserID,
			Score:  r.Score,
			Coins:  r.Coins,
			Tier:   string(r.Tier),
		})
	}
	endedAt := game.StageStartedAt
	if game.EndedAt != nil {
		endedAt = *game.EndedAt
	}
	if err := s.prod.PublishGameEnded(ctx, kafka.GameEndedEvent{
		GameID:  game.ID,
		RoomID:  game.RoomID,
		Results: kafkaResults,
		EndedAt: endedAt,
	}); err != nil {
		s.l.Errorf(ctx, "failed to publish game ended for %s: %v", game.ID, err)
	}

	s.writer.FlushGame(game.ID)
	s.bus.UnbindGame(game.ID)

	_, err := s.rooms.Mutate(ctx, game.RoomID,
		func(room *models.RoomState) error {
			room.GameID = ""
			for i := range room.Players {
				if room.Players[i].State == models.PlayerStateInGame {
					room.Players[i].State = models.PlayerStateJoined
				}
			}
			room.Touch(time.Now())
			return nil
		},
		func(room *models.RoomState) {
			s.bus.BroadcastRoom(room.ID, upsertEvent(room))
		})
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.l.Errorf(ctx, "failed to release room %s after game %s: %v", game.RoomID, game.ID, err)
	}
	if err == nil {
		s.writer.PersistRoom(game.RoomID)
	}

	s.l.Infof(ctx, "game %s ended", game.ID)
}

// results derives the final standings, highest score first.
func results(game *models.GameState) []event.PlayerResult {
	res := make([]event.PlayerResult, 0, len(game.Players))
	for _, p := range game.Players {
		res = append(res, event.PlayerResult{
			UserID: p.UserID,
			Score:  p.Score,
			Coins:  p.Coins,
			Tier:   models.TierForScore(p.Score),
		})
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Score != res[j].Score {
			return res[i].Score > res[j].Score
		}
		return res[i].UserID < res[j].UserID
	})
	return res
}

func (s *gameService) mapGameErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrGameNotFound
	}
	return err
}
