package snapshot

import (
	"context"

	"github.com/algoarena/live-session/internal/models"
)

// Contributors translate a live-state read model into durable writes for one
// domain each. Implementations must be idempotent: replaying the same
// snapshot produces the same durable rows, because a flush can be retried
// after a partial failure.

type RoomContributor interface {
	// PersistRoom upserts the room, its per-player membership records and the
	// kick / host-change histories.
	PersistRoom(ctx context.Context, room *models.RoomState) error
}

type GameContributor interface {
	// PersistGame upserts the game and per-player game records. When the game
	// has ended it also applies score/coin settlement and the derived tier to
	// each player's durable user record.
	PersistGame(ctx context.Context, game *models.GameState) error
}

type BanPickContributor interface {
	// PersistBanPicks upserts the game's ban/pick records.
	PersistBanPicks(ctx context.Context, game *models.GameState) error
}

// Registry statically selects one contributor implementation per domain, so
// the writer never depends on any domain module directly.
type Registry struct {
	Room    RoomContributor
	Game    GameContributor
	BanPick BanPickContributor
}
