// Package memory provides in-process implementations of the live
// repositories, used in tests and single-node development where Redis is not
// available. States are deep-copied through JSON on the way in and out so no
// caller ever aliases the stored copy.
package memory

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/algoarena/live-session/internal/models"
	"github.com/algoarena/live-session/internal/repository"
)

type RoomLiveRepository struct {
	mu    sync.RWMutex
	rooms map[string][]byte
}

func NewRoomLiveRepository() *RoomLiveRepository {
	return &RoomLiveRepository{rooms: make(map[string][]byte)}
}

func (r *RoomLiveRepository) Save(ctx context.Context, room *models.RoomState) error {
	data, err := json.Marshal(room)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms[room.ID] = data
	return nil
}

func (r *RoomLiveRepository) Get(ctx context.Context, roomID string) (*models.RoomState, error) {
	r.mu.RLock()
	data, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if !ok {
		return nil, repository.ErrNotFound
	}

	var room models.RoomState
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *RoomLiveRepository) Delete(ctx context.Context, roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rooms, roomID)
	return nil
}

func (r *RoomLiveRepository) ListIDs(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}
	return ids, nil
}

type GameLiveRepository struct {
	mu    sync.RWMutex
	games map[string][]byte
}

func NewGameLiveRepository() *GameLiveRepository {
	return &GameLiveRepository{games: make(map[string][]byte)}
}

func (r *GameLiveRepository) Save(ctx context.Context, game *models.GameState) error {
	data, err := json.Marshal(game)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.games[game.ID] = data
	return nil
}

func (r *GameLiveRepository) Get(ctx context.Context, gameID string) (*models.GameState, error) {
	r.mu.RLock()
	data, ok := r.games[gameID]
	r.mu.RUnlock()
	if !ok {
		return nil, repository.ErrNotFound
	}

	var game models.GameState
	if err := json.Unmarshal(data, &game); err != nil {
		return nil, err
	}
	return &game, nil
}

func (r *GameLiveRepository) Delete(ctx context.Context, gameID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.games, gameID)
	return nil
}

func (r *GameLiveRepository) ListIDs(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.games))
	for id := range r.games {
		ids = append(ids, id)
	}
	return ids, nil
}
