package models

import "time"

type PlayerState string

const (
	PlayerStateJoined PlayerState = "JOINED"
	PlayerStateReady  PlayerState = "READY"
	PlayerStateInGame PlayerState = "IN_GAME"
	PlayerStateLeft   PlayerState = "LEFT"
)

type RoomPlayer struct {
	UserID   string      `json:"user_id"`
	State    PlayerState `json:"state"`
	JoinedAt time.Time   `json:"joined_at"`
}

type RoomSettings struct {
	Title      string `json:"title"`
	GameType   string `json:"game_type"`
	MaxPlayers int    `json:"max_players"`
	Private    bool   `json:"private"`
}

type KickRecord struct {
	UserID   string    `json:"user_id"`
	ByUserID string    `json:"by_user_id"`
	KickedAt time.Time `json:"kicked_at"`
}

type HostChange struct {
	FromUserID string    `json:"from_user_id"`
	ToUserID   string    `json:"to_user_id"`
	ChangedAt  time.Time `json:"changed_at"`
}

// RoomState is the canonical live copy of one lobby. Exactly one live copy
// exists per room id; the durable copy is derived from it and may lag.
type RoomState struct {
	ID          string        `json:"id"`
	HostID      string        `json:"host_id"`
	Players     []RoomPlayer  `json:"players"`
	Settings    RoomSettings  `json:"settings"`
	ListVersion int64         `json:"list_version"`
	GameID      string        `json:"game_id,omitempty"`
	Kicks       []KickRecord  `json:"kicks,omitempty"`
	HostChanges []HostChange  `json:"host_changes,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

func (r *RoomState) Player(userID string) *RoomPlayer {
	for i := range r.Players {
		if r.Players[i].UserID == userID {
			return &r.Players[i]
		}
	}
	return nil
}

func (r *RoomState) ActivePlayers() []RoomPlayer {
	active := make([]RoomPlayer, 0, len(r.Players))
	for _, p := range r.Players {
		if p.State != PlayerStateLeft {
			active = append(active, p)
		}
	}
	return active
}

func (r *RoomState) IsEmpty() bool {
	return len(r.ActivePlayers()) == 0
}

func (r *RoomState) AllReady() bool {
	active := r.ActivePlayers()
	if len(active) == 0 {
		return false
	}
	for _, p := range active {
		if p.UserID == r.HostID {
			continue
		}
		if p.State != PlayerStateReady {
			return false
		}
	}
	return true
}

// Touch bumps ListVersion and the update timestamp. Every broadcast-relevant
// mutation must call it exactly once so consumers can discard stale updates.
func (r *RoomState) Touch(now time.Time) {
	r.ListVersion++
	r.UpdatedAt = now
}
