package event

import "github.com/algoarena/live-session/internal/models"

type RoomListUpsert struct {
	Room        *models.RoomState `json:"room"`
	ListVersion int64             `json:"listVersion"`
}

type RoomPlayerJoined struct {
	RoomID      string `json:"roomId"`
	UserID      string `json:"userId"`
	ListVersion int64  `json:"listVersion"`
}

type RoomPlayerLeft struct {
	RoomID      string `json:"roomId"`
	UserID      string `json:"userId"`
	ListVersion int64  `json:"listVersion"`
}

type RoomPlayerStateChanged struct {
	RoomID      string             `json:"roomId"`
	UserID      string             `json:"userId"`
	State       models.PlayerState `json:"state"`
	ListVersion int64              `json:"listVersion"`
}

type RoomPlayerKicked struct {
	RoomID      string `json:"roomId"`
	UserID      string `json:"userId"`
	ByUserID    string `json:"byUserId"`
	ListVersion int64  `json:"listVersion"`
}

type RoomHostChanged struct {
	RoomID      string `json:"roomId"`
	FromUserID  string `json:"fromUserId"`
	ToUserID    string `json:"toUserId"`
	ListVersion int64  `json:"listVersion"`
}

type RoomGameStarted struct {
	RoomID          string       `json:"roomId"`
	GameID          string       `json:"gameId"`
	GameType        string       `json:"gameType"`
	Stage           models.Stage `json:"stage"`
	PageRoute       string       `json:"pageRoute"`
	StageStartedAt  string       `json:"stageStartedAt"`
	StageDeadlineAt string       `json:"stageDeadlineAt"`
	RemainingMs     int64        `json:"remainingMs"`
}

type GameStageChanged struct {
	GameID          string       `json:"gameId"`
	Stage           models.Stage `json:"stage"`
	PrevStage       models.Stage `json:"prevStage"`
	StageStartedAt  string       `json:"stageStartedAt"`
	StageDeadlineAt string       `json:"stageDeadlineAt"`
	// RemainingMs of the stage that just closed: zero on a deadline fire,
	// positive when every player finished early.
	RemainingMs int64 `json:"remainingMs"`
}

type AlgoBanPicked struct {
	GameID      string `json:"gameId"`
	UserID      string `json:"userId"`
	AlgorithmID string `json:"algorithmId"`
}

type ItemUsed struct {
	GameID string `json:"gameId"`
	UserID string `json:"userId"`
	ItemID string `json:"itemId"`
	Coins  int    `json:"coins"`
}

type SpellCast struct {
	GameID       string `json:"gameId"`
	UserID       string `json:"userId"`
	SpellID      string `json:"spellId"`
	TargetUserID string `json:"targetUserId"`
}

type GameScoreUpdated struct {
	GameID    string `json:"gameId"`
	UserID    string `json:"userId"`
	ProblemID string `json:"problemId"`
	Score     int    `json:"score"`
	Coins     int    `json:"coins"`
}

type PlayerResult struct {
	UserID string      `json:"userId"`
	Score  int         `json:"score"`
	Coins  int         `json:"coins"`
	Tier   models.Tier `json:"tier"`
}

type GameEnded struct {
	GameID  string         `json:"gameId"`
	RoomID  string         `json:"roomId"`
	Results []PlayerResult `json:"results"`
}

type ChatMessage struct {
	MessageID   string `json:"messageId"`
	ChannelType string `json:"channelType"`
	RoomID      string `json:"roomId"`
	Sender      string `json:"sender"`
	Message     string `json:"message"`
	CreatedAt   string `json:"createdAt"`
}

type TypingStatusChanged struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
	Typing bool   `json:"typing"`
}

type TimeSync struct {
	ServerTime string `json:"serverTime"`
}

type Error struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}
