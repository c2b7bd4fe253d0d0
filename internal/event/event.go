package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/algoarena/live-session/pkg/util"
)

type Type string

const (
	TypeRoomListUpsert         Type = "ROOM_LIST_UPSERT"
	TypeRoomPlayerJoined       Type = "ROOM_PLAYER_JOINED"
	TypeRoomPlayerLeft         Type = "ROOM_PLAYER_LEFT"
	TypeRoomPlayerStateChanged Type = "ROOM_PLAYER_STATE_CHANGED"
	TypeRoomPlayerKicked       Type = "ROOM_PLAYER_KICKED"
	TypeRoomHostChanged        Type = "ROOM_HOST_CHANGED"
	TypeRoomGameStarted        Type = "ROOM_GAME_STARTED"
	TypeGameStageChanged       Type = "GAME_STAGE_CHANGED"
	TypeAlgoBanned             Type = "ALGO_BANNED"
	TypeAlgoPicked             Type = "ALGO_PICKED"
	TypeItemUsed               Type = "ITEM_USED"
	TypeSpellCast              Type = "SPELL_CAST"
	TypeGameScoreUpdated       Type = "GAME_SCORE_UPDATED"
	TypeGameEnded              Type = "GAME_ENDED"
	TypeChatMessage            Type = "CHAT_MESSAGE"
	TypeTypingStatusChanged    Type = "TYPING_STATUS_CHANGED"
	TypeTimeSync               Type = "TIME_SYNC"
	TypeError                  Type = "ERROR"
)

type Meta struct {
	EventID    string `json:"eventId"`
	ServerTime string `json:"serverTime"`
}

// Envelope is the uniform outbound wrapper. Meta is stamped at the moment of
// emission, independent of when the triggering command was issued.
type Envelope struct {
	Type Type `json:"type"`
	Data any  `json:"data"`
	Meta Meta `json:"meta"`
}

func New(t Type, data any) Envelope {
	return Envelope{
		Type: t,
		Data: data,
		Meta: Meta{
			EventID:    uuid.New().String(),
			ServerTime: util.TimeToISO8601Str(time.Now()),
		},
	}
}

// Bus delivers envelopes to their audience: room/game broadcast topics or one
// user's private channel. Implemented by the websocket hub. A game topic is
// bound to its room when the game starts, so game events reach the room's
// connections; the binding is dropped when the game ends.
type Bus interface {
	BroadcastRoom(roomID string, env Envelope)
	BroadcastGame(gameID string, env Envelope)
	SendUser(userID string, env Envelope)
	BindGame(gameID, roomID string)
	UnbindGame(gameID string)
}
