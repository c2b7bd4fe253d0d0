package postgres

import "time"

// Records are keyed by the same natural ids the live state uses, so snapshot
// upserts stay idempotent across retries.

type RoomRecord struct {
	ID          string `gorm:"primaryKey;size:64"`
	HostID      string `gorm:"size:64;index"`
	Title       string `gorm:"size:255"`
	GameType    string `gorm:"size:32"`
	MaxPlayers  int
	Private     bool
	ListVersion int64
	GameID      string `gorm:"size:64"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (RoomRecord) TableName() string { return "rooms" }

type RoomPlayerRecord struct {
	RoomID   string `gorm:"primaryKey;size:64"`
	UserID   string `gorm:"primaryKey;size:64"`
	State    string `gorm:"size:16"`
	JoinedAt time.Time
}

func (RoomPlayerRecord) TableName() string { return "room_players" }

type RoomKickRecord struct {
	RoomID   string    `gorm:"primaryKey;size:64"`
	UserID   string    `gorm:"primaryKey;size:64"`
	KickedAt time.Time `gorm:"primaryKey"`
	ByUserID string    `gorm:"size:64"`
}

func (RoomKickRecord) TableName() string { return "room_kicks" }

type RoomHostChangeRecord struct {
	RoomID     string    `gorm:"primaryKey;size:64"`
	ChangedAt  time.Time `gorm:"primaryKey"`
	FromUserID string    `gorm:"size:64"`
	ToUserID   string    `gorm:"size:64"`
}

func (RoomHostChangeRecord) TableName() string { return "room_host_changes" }

type GameRecord struct {
	ID              string `gorm:"primaryKey;size:64"`
	RoomID          string `gorm:"size:64;index"`
	GameType        string `gorm:"size:32"`
	Stage           string `gorm:"size:16"`
	StageStartedAt  time.Time
	StageDeadlineAt time.Time
	CreatedAt       time.Time
	EndedAt         *time.Time
}

func (GameRecord) TableName() string { return "games" }

type GamePlayerRecord struct {
	GameID string   `gorm:"primaryKey;size:64"`
	UserID string   `gorm:"primaryKey;size:64"`
	Score  int
	Coins  int
	Items  []string `gorm:"serializer:json"`
	Banned bool
	Picked bool
	// Settled flips to true exactly once, when the player's final score and
	// coins have been folded into the user record.
	Settled bool
}

func (GamePlayerRecord) TableName() string { return "game_players" }

type BanPickRecord struct {
	GameID      string `gorm:"primaryKey;size:64"`
	UserID      string `gorm:"primaryKey;size:64"`
	Kind        string `gorm:"primaryKey;size:8"`
	AlgorithmID string `gorm:"size:64"`
	TakenAt     time.Time
}

func (BanPickRecord) TableName() string { return "ban_picks" }

type UserRecord struct {
	ID        string `gorm:"primaryKey;size:64"`
	Score     int
	Coins     int
	Tier      string `gorm:"size:32"`
	UpdatedAt time.Time
}

func (UserRecord) TableName() string { return "users" }
