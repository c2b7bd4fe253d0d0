package repository

import (
	"context"
	"errors"

	"github.com/algoarena/live-session/internal/models"
)

// ErrNotFound is returned by live repositories when no state exists for an id.
var ErrNotFound = errors.New("live state not found")

// RoomLiveRepository stores the canonical live copy of room state, keyed by
// room id. Callers must serialize writes per id; see livestore.
type RoomLiveRepository interface {
	Save(ctx context.Context, room *models.RoomState) error
	Get(ctx context.Context, roomID string) (*models.RoomState, error)
	Delete(ctx context.Context, roomID string) error
	ListIDs(ctx context.Context) ([]string, error)
}

// GameLiveRepository stores the canonical live copy of game state, keyed by
// game id.
type GameLiveRepository interface {
	Save(ctx context.Context, game *models.GameState) error
	Get(ctx context.Context, gameID string) (*models.GameState, error)
	Delete(ctx context.Context, gameID string) error
	ListIDs(ctx context.Context) ([]string, error)
}
