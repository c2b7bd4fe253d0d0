package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

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

const (
	defaultMaxPlayers = 4
	minPlayersToStart = 2
	startingCoins     = 100
)

type RoomService interface {
	CreateRoom(ctx context.Context, hostID string, settings models.RoomSettings) (*models.RoomState, error)
	GetRoom(ctx context.Context, roomID string) (*models.RoomState, error)
	JoinRoom(ctx context.Context, roomID, userID string) error
	LeaveRoom(ctx context.Context, roomID, userID string) error
	SetReady(ctx context.Context, roomID, userID string, ready bool) error
	KickPlayer(ctx context.Context, roomID, byUserID, targetUserID string) error
	TransferHost(ctx context.Context, roomID, byUserID, targetUserID string) error
	StartGame(ctx context.Context, roomID, byUserID string) (*models.GameState, error)
	DisbandRoom(ctx context.Context, roomID string) error
}

type roomService struct {
	rooms    *livestore.RoomStore
	games    *livestore.GameStore
	bus      event.Bus
	writer   snapshot.Writer
	sched    *StageScheduler
	prod     producer.Producer
	stageCfg config.StageConfig
	l        logger.Logger
}

func NewRoomService(
	rooms *livestore.RoomStore,
	games *livestore.GameStore,
	bus event.Bus,
	writer snapshot.Writer,
	sched *StageScheduler,
	prod producer.Producer,
	stageCfg config.StageConfig,
	l logger.Logger,
) RoomService {
	return &roomService{
		rooms:    rooms,
		games:    games,
		bus:      bus,
		writer:   writer,
		sched:    sched,
		prod:     prod,
		stageCfg: stageCfg,
		l:        l,
	}
}

// mutate runs fn under the room's lane. Envelopes handed to emit are queued
// and broadcast only after the save commits, still inside the lane: clients
// never observe an event for a state that failed to save, and per-room event
// order matches commit order.
func (s *roomService) mutate(ctx context.Context, roomID string, fn func(room *models.RoomState, emit func(event.Envelope)) error) (*models.RoomState, error) {
	var pending []event.Envelope
	emit := func(env event.Envelope) { pending = append(pending, env) }

	return s.rooms.Mutate(ctx, roomID,
		func(room *models.RoomState) error {
			return fn(room, emit)
		},
		func(room *models.RoomState) {
			for _, env := range pending {
				s.bus.BroadcastRoom(room.ID, env)
			}
		})
}

func upsertEvent(room *models.RoomState) event.Envelope {
	return event.New(event.TypeRoomListUpsert, event.RoomListUpsert{
		Room:        room,
		ListVersion: room.ListVersion,
	})
}

func (s *roomService) CreateRoom(ctx context.Context, hostID string, settings models.RoomSettings) (*models.RoomState, error) {
	if settings.MaxPlayers == 0 {
		settings.MaxPlayers = defaultMaxPlayers
	}
	if settings.MaxPlayers < minPlayersToStart || settings.MaxPlayers > 8 {
		return nil, ErrBadMaxPlayers
	}

	now := time.Now()
	room := &models.RoomState{
		ID:     uuid.New().String(),
		HostID: hostID,
		Players: []models.RoomPlayer{
			{UserID: hostID, State: models.PlayerStateJoined, JoinedAt: now},
		},
		Settings:    settings,
		ListVersion: 1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.rooms.Create(ctx, room); err != nil {
		return nil, err
	}

	s.bus.BroadcastRoom(room.ID, upsertEvent(room))
	s.writer.PersistRoom(room.ID)

	s.l.Infof(ctx, "room %s created by %s", room.ID, hostID)
	return room, nil
}

func (s *roomService) GetRoom(ctx context.Context, roomID string) (*models.RoomState, error) {
	room, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return room, nil
}

func (s *roomService) JoinRoom(ctx context.Context, roomID, userID string) error {
	joined := false
	_, err := s.mutate(ctx, roomID, func(room *models.RoomState, emit func(event.Envelope)) error {
		if room.GameID != "" {
			return ErrGameInProgress
		}

		now := time.Now()
		if p := room.Player(userID); p != nil {
			if p.State != models.PlayerStateLeft {
				// Already a member; reconnects land here.
				return nil
			}
			p.State = models.PlayerStateJoined
			p.JoinedAt = now
		} else {
			if len(room.ActivePlayers()) >= room.Settings.MaxPlayers {
				return ErrRoomFull
			}
			room.Players = append(room.Players, models.RoomPlayer{
				UserID:   userID,
				State:    models.PlayerStateJoined,
				JoinedAt: now,
			})
		}
		joined = true
		room.Touch(now)

		emit(event.New(event.TypeRoomPlayerJoined, event.RoomPlayerJoined{
			RoomID:      room.ID,
			UserID:      userID,
			ListVersion: room.ListVersion,
		}))
		emit(upsertEvent(room))
		return nil
	})
	if err != nil {
		return s.mapRoomErr(err)
	}

	if joined {
		s.writer.PersistRoom(roomID)
	}
	return nil
}

func (s *roomService) LeaveRoom(ctx context.Context, roomID, userID string) error {
	room, err := s.mutate(ctx, roomID, func(room *models.RoomState, emit func(event.Envelope)) error {
		p := room.Player(userID)
		if p == nil || p.State == models.PlayerStateLeft {
			return ErrPlayerNotInRoom
		}

		now := time.Now()
		p.State = models.PlayerStateLeft
		room.Touch(now)

		emit(event.New(event.TypeRoomPlayerLeft, event.RoomPlayerLeft{
			RoomID:      room.ID,
			UserID:      userID,
			ListVersion: room.ListVersion,
		}))

		if userID == room.HostID && !room.IsEmpty() {
			s.promoteNewHost(room, now, emit)
		}
		emit(upsertEvent(room))
		return nil
	})
	if err != nil {
		return s.mapRoomErr(err)
	}

	if room.IsEmpty() {
		return s.disband(ctx, room)
	}

	s.writer.PersistRoom(roomID)
	return nil
}

// promoteNewHost hands the room to the earliest-joined remaining player.
// Caller holds the room's mutate lane.
func (s *roomService) promoteNewHost(room *models.RoomState, now time.Time, emit func(event.Envelope)) {
	active := room.ActivePlayers()
	next := active[0]
	for _, p := range active[1:] {
		if p.JoinedAt.Before(next.JoinedAt) {
			next = p
		}
	}

	from := room.HostID
	room.HostID = next.UserID
	room.HostChanges = append(room.HostChanges, models.HostChange{
		FromUserID: from,
		ToUserID:   next.UserID,
		ChangedAt:  now,
	})

	emit(event.New(event.TypeRoomHostChanged, event.RoomHostChanged{
		RoomID:      room.ID,
		FromUserID:  from,
		ToUserID:    next.UserID,
		ListVersion: room.ListVersion,
	}))
}

func (s *roomService) SetReady(ctx context.Context, roomID, userID string, ready bool) error {
	_, err := s.mutate(ctx, roomID, func(room *models.RoomState, emit func(event.Envelope)) error {
		if room.GameID != "" {
			return ErrGameInProgress
		}
		p := room.Player(userID)
		if p == nil || p.State == models.PlayerStateLeft {
			return ErrPlayerNotInRoom
		}

		state := models.PlayerStateJoined
		if ready {
			state = models.PlayerStateReady
		}
		if p.State == state {
			return nil
		}
		p.State = state
		room.Touch(time.Now())

		emit(event.New(event.TypeRoomPlayerStateChanged, event.RoomPlayerStateChanged{
			RoomID:      room.ID,
			UserID:      userID,
			State:       state,
			ListVersion: room.ListVersion,
		}))
		return nil
	})
	if err != nil {
		return s.mapRoomErr(err)
	}

	s.writer.PersistRoom(roomID)
	return nil
}

func (s *roomService) KickPlayer(ctx context.Context, roomID, byUserID, targetUserID string) error {
	_, err := s.mutate(ctx, roomID, func(room *models.RoomState, emit func(event.Envelope)) error {
		if byUserID != room.HostID {
			return ErrNotHost
		}
		if targetUserID == byUserID {
			return ErrSelfTarget
		}
		if room.GameID != "" {
			return ErrGameInProgress
		}
		p := room.Player(targetUserID)
		if p == nil || p.State == models.PlayerStateLeft {
			return ErrPlayerNotInRoom
		}

		now := time.Now()
		p.State = models.PlayerStateLeft
		room.Kicks = append(room.Kicks, models.KickRecord{
			UserID:   targetUserID,
			ByUserID: byUserID,
			KickedAt: now,
		})
		room.Touch(now)

		emit(event.New(event.TypeRoomPlayerKicked, event.RoomPlayerKicked{
			RoomID:      room.ID,
			UserID:      targetUserID,
			ByUserID:    byUserID,
			ListVersion: room.ListVersion,
		}))
		emit(upsertEvent(room))
		return nil
	})
	if err != nil {
		return s.mapRoomErr(err)
	}

	s.writer.PersistRoom(roomID)
	return nil
}

func (s *roomService) TransferHost(ctx context.Context, roomID, byUserID, targetUserID string) error {
	_, err := s.mutate(ctx, roomID, func(room *models.RoomState, emit func(event.Envelope)) error {
		if byUserID != room.HostID {
			return ErrNotHost
		}
		if targetUserID == byUserID {
			return ErrSelfTarget
		}
		p := room.Player(targetUserID)
		if p == nil || p.State == models.PlayerStateLeft {
			return ErrPlayerNotInRoom
		}

		now := time.Now()
		room.HostID = targetUserID
		room.HostChanges = append(room.HostChanges, models.HostChange{
			FromUserID: byUserID,
			ToUserID:   targetUserID,
			ChangedAt:  now,
		})
		room.Touch(now)

		emit(event.New(event.TypeRoomHostChanged, event.RoomHostChanged{
			RoomID:      room.ID,
			FromUserID:  byUserID,
			ToUserID:    targetUserID,
			ListVersion: room.ListVersion,
		}))
		return nil
	})
	if err != nil {
		return s.mapRoomErr(err)
	}

	s.writer.PersistRoom(roomID)
	return nil
}

func (s *roomService) StartGame(ctx context.Context, roomID, byUserID string) (*models.GameState, error) {
	var game *models.GameState
	var pending []event.Envelope
	emit := func(env event.Envelope) { pending = append(pending, env) }

	_, err := s.rooms.Mutate(ctx, roomID,
		func(room *models.RoomState) error {
			if byUserID != room.HostID {
				return ErrNotHost
			}
			if room.GameID != "" {
				return ErrGameInProgress
			}
			active := room.ActivePlayers()
			if len(active) < minPlayersToStart {
				return ErrNotEnoughPlayers
			}
			if !room.AllReady() {
				return ErrPlayersNotReady
			}

			now := time.Now()
			game = &models.GameState{
				ID:        uuid.New().String(),
				RoomID:    room.ID,
				GameType:  room.Settings.GameType,
				Players:   make(map[string]*models.GamePlayer, len(active)),
				CreatedAt: now,
			}
			for _, p := range active {
				game.Players[p.UserID] = &models.GamePlayer{
					UserID: p.UserID,
					Coins:  startingCoins,
				}
			}
			game.EnterStage(models.StageBan, now, s.stageCfg)

			if err := s.games.Create(ctx, game); err != nil {
				game = nil
				return err
			}

			room.GameID = game.ID
			for i := range room.Players {
				if room.Players[i].State != models.PlayerStateLeft {
					room.Players[i].State = models.PlayerStateInGame
				}
			}
			room.Touch(now)

			emit(event.New(event.TypeRoomGameStarted, event.RoomGameStarted{
				RoomID:          room.ID,
				GameID:          game.ID,
				GameType:        game.GameType,
				Stage:           game.Stage,
				PageRoute:       fmt.Sprintf("/games/%s", game.ID),
				StageStartedAt:  util.TimeToISO8601Str(game.StageStartedAt),
				StageDeadlineAt: util.TimeToISO8601Str(game.StageDeadlineAt),
				RemainingMs:     game.RemainingMs(now),
			}))
			emit(upsertEvent(room))
			return nil
		},
		func(room *models.RoomState) {
			// Bind before announcing, so game-topic events triggered by the
			// announcement have somewhere to land.
			s.bus.BindGame(game.ID, room.ID)
			for _, env := range pending {
				s.bus.BroadcastRoom(room.ID, env)
			}
		})
	if err != nil {
		if game != nil {
			// The game was created but the room commit failed: nothing
			// references it, so take it back out of the live store.
			if evictErr := s.games.Evict(ctx, game.ID); evictErr != nil {
				s.l.Errorf(ctx, "failed to evict orphaned game %s: %v", game.ID, evictErr)
			}
		}
		return nil, s.mapRoomErr(err)
	}

	s.sched.Schedule(game.ID, game.StageDeadlineAt)

	userIDs := make([]string, 0, len(game.Players))
	for id := range game.Players {
		userIDs = append(userIDs, id)
	}
	if err := s.prod.PublishGameStarted(ctx, kafka.GameStartedEvent{
		GameID:    game.ID,
		RoomID:    roomID,
		GameType:  game.GameType,
		UserIDs:   userIDs,
		StartedAt: game.CreatedAt,
	}); err != nil {
		s.l.Errorf(ctx, "failed to publish game started for %s: %v", game.ID, err)
	}

	s.writer.PersistRoom(roomID)
	s.writer.PersistGame(game.ID)

	s.l.Infof(ctx, "game %s started in room %s with %d players", game.ID, roomID, len(game.Players))
	return game, nil
}

func (s *roomService) DisbandRoom(ctx context.Context, roomID string) error {
	room, err := s.mutate(ctx, roomID, func(room *models.RoomState, emit func(event.Envelope)) error {
		now := time.Now()
		for i := range room.Players {
			room.Players[i].State = models.PlayerStateLeft
		}
		room.Touch(now)
		emit(upsertEvent(room))
		return nil
	})
	if err != nil {
		return s.mapRoomErr(err)
	}
	return s.disband(ctx, room)
}

// disband runs the terminal path for an empty room: any in-flight game loses
// its timer and both states get a terminal flush. Eviction happens in the
// writer after the flush succeeds.
func (s *roomService) disband(ctx context.Context, room *models.RoomState) error {
	if room.GameID != "" {
		s.sched.Cancel(room.GameID)
		s.writer.FlushGame(room.GameID)
		s.bus.UnbindGame(room.GameID)
	}
	s.writer.FlushRoom(room.ID)

	if err := s.prod.PublishRoomDisbanded(ctx, kafka.RoomDisbandedEvent{
		RoomID:      room.ID,
		DisbandedAt: time.Now(),
	}); err != nil {
		s.l.Errorf(ctx, "failed to publish room disbanded for %s: %v", room.ID, err)
	}

	s.l.Infof(ctx, "room %s disbanded", room.ID)
	return nil
}

func (s *roomService) mapRoomErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrRoomNotFound
	}
	return err
}
