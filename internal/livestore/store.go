// Package livestore is the authoritative fast store for active room and game
// state. All mutation during a live session goes through it: Mutate applies a
// transition function under a per-id exclusive lane, so command-driven and
// timer-driven updates for the same id never interleave, while different ids
// proceed independently.
package livestore

import (
	"context"

	"github.com/algoarena/live-session/internal/models"
	"github.com/algoarena/live-session/internal/repository"
	"github.com/algoarena/live-session/pkg/logger"
)

type RoomStore struct {
	repo  repository.RoomLiveRepository
	lanes *laneSet
	l     logger.Logger
}

func NewRoomStore(repo repository.RoomLiveRepository, l logger.Logger) *RoomStore {
	return &RoomStore{
		repo:  repo,
		lanes: newLaneSet(),
		l:     l,
	}
}

func (s *RoomStore) Get(ctx context.Context, roomID string) (*models.RoomState, error) {
	return s.repo.Get(ctx, roomID)
}

func (s *RoomStore) Create(ctx context.Context, room *models.RoomState) error {
	ln := s.lanes.acquire(room.ID)
	defer s.lanes.release(room.ID, ln)

	return s.repo.Save(ctx, room)
}

// Mutate loads the state for roomID, applies fn to it and saves the result,
// all under the id's exclusive lane. If fn or the save fails nothing is
// written: readers see either the full prior state or the full new one.
// committed, when non-nil, runs after a successful save while the lane is
// still held, so side effects of a commit (event broadcasts) happen in commit
// order and never for a state that failed to save.
func (s *RoomStore) Mutate(ctx context.Context, roomID string, fn func(*models.RoomState) error, committed func(*models.RoomState)) (*models.RoomState, error) {
	ln := s.lanes.acquire(roomID)
	defer s.lanes.release(roomID, ln)

	room, err := s.repo.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}

	if err := fn(room); err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, room); err != nil {
		s.l.Errorf(ctx, "livestore.RoomStore.Mutate: save failed for room %s: %v", roomID, err)
		return nil, err
	}

	if committed != nil {
		committed(room)
	}
	return room, nil
}

func (s *RoomStore) Evict(ctx context.Context, roomID string) error {
	ln := s.lanes.acquire(roomID)
	defer s.lanes.release(roomID, ln)

	return s.repo.Delete(ctx, roomID)
}

func (s *RoomStore) ListIDs(ctx context.Context) ([]string, error) {
	return s.repo.ListIDs(ctx)
}

type GameStore struct {
	repo  repository.GameLiveRepository
	lanes *laneSet
	l     logger.Logger
}

func NewGameStore(repo repository.GameLiveRepository, l logger.Logger) *GameStore {
	return &GameStore{
		repo:  repo,
		lanes: newLaneSet(),
		l:     l,
	}
}

func (s *GameStore) Get(ctx context.Context, gameID string) (*models.GameState, error) {
	return s.repo.Get(ctx, gameID)
}

func (s *GameStore) Create(ctx context.Context, game *models.GameState) error {
	ln := s.lanes.acquire(game.ID)
	defer s.lanes.release(game.ID, ln)

	return s.repo.Save(ctx, game)
}

func (s *GameStore) Mutate(ctx context.Context, gameID string, fn func(*models.GameState) error, committed func(*models.GameState)) (*models.GameState, error) {
	ln := s.lanes.acquire(gameID)
	defer s.lanes.release(gameID, ln)

	game, err := s.repo.Get(ctx, gameID)
	if err != nil {
		return nil, err
	}

	if err := fn(game); err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, game); err != nil {
		s.l.Errorf(ctx, "livestore.GameStore.Mutate: save failed for game %s: %v", gameID, err)
		return nil, err
	}

	if committed != nil {
		committed(game)
	}
	return game, nil
}

func (s *GameStore) ListIDs(ctx context.Context) ([]string, error) {
	return s.repo.ListIDs(ctx)
}

func (s *GameStore) Evict(ctx context.Context, gameID string) error {
	ln := s.lanes.acquire(gameID)
	defer s.lanes.release(gameID, ln)

	return s.repo.Delete(ctx, gameID)
}
