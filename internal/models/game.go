package models

import (
	"time"

	"github.com/algoarena/live-session/config"
)

type Stage string

const (
	StageBan   Stage = "BAN"
	StagePick  Stage = "PICK"
	StageShop  Stage = "SHOP"
	StagePlay  Stage = "PLAY"
	StageEnded Stage = "ENDED"
)

// stageOrder is fixed; a game never regresses to an earlier stage.
var stageOrder = []Stage{StageBan, StagePick, StageShop, StagePlay, StageEnded}

func (s Stage) Next() (Stage, bool) {
	for i, st := range stageOrder {
		if st == s && i+1 < len(stageOrder) {
			return stageOrder[i+1], true
		}
	}
	return StageEnded, false
}

func (s Stage) Duration(cfg config.StageConfig) time.Duration {
	switch s {
	case StageBan:
		return time.Duration(cfg.BanSec) * time.Second
	case StagePick:
		return time.Duration(cfg.PickSec) * time.Second
	case StageShop:
		return time.Duration(cfg.ShopSec) * time.Second
	case StagePlay:
		return time.Duration(cfg.PlaySec) * time.Second
	default:
		return 0
	}
}

type BanPickKind string

const (
	KindBan  BanPickKind = "BAN"
	KindPick BanPickKind = "PICK"
)

// BanPickRecord is immutable once appended.
type BanPickRecord struct {
	GameID      string      `json:"game_id"`
	UserID      string      `json:"user_id"`
	AlgorithmID string      `json:"algorithm_id"`
	Kind        BanPickKind `json:"kind"`
	TakenAt     time.Time   `json:"taken_at"`
}

type GamePlayer struct {
	UserID string   `json:"user_id"`
	Score  int      `json:"score"`
	Coins  int      `json:"coins"`
	Items  []string `json:"items,omitempty"`
	Banned bool     `json:"banned"`
	Picked bool     `json:"picked"`
}

// GameState is the canonical live copy of one active match.
type GameState struct {
	ID              string                 `json:"id"`
	RoomID          string                 `json:"room_id"`
	GameType        string                 `json:"game_type"`
	Stage           Stage                  `json:"stage"`
	StageStartedAt  time.Time              `json:"stage_started_at"`
	StageDeadlineAt time.Time              `json:"stage_deadline_at"`
	Players         map[string]*GamePlayer `json:"players"`
	BanPicks        []BanPickRecord        `json:"ban_picks,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	EndedAt         *time.Time             `json:"ended_at,omitempty"`
}

func (g *GameState) IsEnded() bool {
	return g.Stage == StageEnded
}

func (g *GameState) Player(userID string) *GamePlayer {
	return g.Players[userID]
}

// EnterStage moves the game into stage and recomputes the deadline so that
// StageDeadlineAt == StageStartedAt + duration[stage] always holds.
func (g *GameState) EnterStage(stage Stage, now time.Time, cfg config.StageConfig) {
	g.Stage = stage
	g.StageStartedAt = now
	g.StageDeadlineAt = now.Add(stage.Duration(cfg))
	if stage == StageEnded {
		g.EndedAt = &now
	}
}

// RemainingMs reports how much of the current stage is left at now, floored
// at zero.
func (g *GameState) RemainingMs(now time.Time) int64 {
	rem := g.StageDeadlineAt.Sub(now).Milliseconds()
	if rem < 0 {
		return 0
	}
	return rem
}

// StageComplete reports whether every player has done what the current stage
// requires, which allows advancing before the deadline.
func (g *GameState) StageComplete() bool {
	if len(g.Players) == 0 {
		return false
	}
	switch g.Stage {
	case StageBan:
		for _, p := range g.Players {
			if !p.Banned {
				return false
			}
		}
		return true
	case StagePick:
		for _, p := range g.Players {
			if !p.Picked {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func (g *GameState) HasBanPick(userID string, kind BanPickKind) bool {
	for _, bp := range g.BanPicks {
		if bp.UserID == userID && bp.Kind == kind {
			return true
		}
	}
	return false
}

func (g *GameState) AlgorithmTaken(algorithmID string) bool {
	for _, bp := range g.BanPicks {
		if bp.AlgorithmID == algorithmID {
			return true
		}
	}
	return false
}
