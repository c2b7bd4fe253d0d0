package ws

import "encoding/json"

type CommandType string

const (
	CmdChatSend         CommandType = "CHAT_SEND"
	CmdTypingUpdate     CommandType = "TYPING_UPDATE"
	CmdItemUse          CommandType = "ITEM_USE"
	CmdSpellUse         CommandType = "SPELL_USE"
	CmdReadySet         CommandType = "READY_SET"
	CmdGameStart        CommandType = "GAME_START"
	CmdAlgoBan          CommandType = "ALGO_BAN"
	CmdAlgoPick         CommandType = "ALGO_PICK"
	CmdRoomKick         CommandType = "ROOM_KICK"
	CmdRoomTransferHost CommandType = "ROOM_TRANSFER_HOST"
)

type CommandMeta struct {
	CommandID string `json:"commandId,omitempty"`
}

// CommandEnvelope is the uniform inbound wrapper. Data stays raw until the
// router knows which handler owns the command.
type CommandEnvelope struct {
	Type CommandType     `json:"type"`
	Data json.RawMessage `json:"data"`
	Meta CommandMeta     `json:"meta"`
}

type ChatSendData struct {
	Message string `json:"message"`
}

type TypingUpdateData struct {
	Typing bool `json:"typing"`
}

type ItemUseData struct {
	GameID string `json:"gameId"`
	ItemID string `json:"itemId"`
}

type SpellUseData struct {
	GameID       string `json:"gameId"`
	SpellID      string `json:"spellId"`
	TargetUserID string `json:"targetUserId"`
}

type ReadySetData struct {
	Ready bool `json:"ready"`
}

type AlgoBanPickData struct {
	GameID      string `json:"gameId"`
	AlgorithmID string `json:"algorithmId"`
}

type RoomKickData struct {
	TargetUserID string `json:"targetUserId"`
}

type RoomTransferHostData struct {
	TargetUserID string `json:"targetUserId"`
}
