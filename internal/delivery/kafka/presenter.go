package kafka

import "time"

// Events published BY the live session engine

type GameStartedEvent struct {
	GameID    string    `json:"game_id"`
	RoomID    string    `json:"room_id"`
	GameType  string    `json:"game_type"`
	UserIDs   []string  `json:"user_ids"`
	StartedAt time.Time `json:"started_at"`
	Timestamp time.Time `json:"timestamp"`
}

type PlayerResult struct {
	UserID string `json:"user_id"`
	Score  int    `json:"score"`
	Coins  int    `json:"coins"`
	Tier   string `json:"tier"`
}

type GameEndedEvent struct {
	GameID    string         `json:"game_id"`
	RoomID    string         `json:"room_id"`
	Results   []PlayerResult `json:"results"`
	EndedAt   time.Time      `json:"ended_at"`
	Timestamp time.Time      `json:"timestamp"`
}

type RoomDisbandedEvent struct {
	RoomID      string    `json:"room_id"`
	DisbandedAt time.Time `json:"disbanded_at"`
	Timestamp   time.Time `json:"timestamp"`
}

// Events consumed BY the live session engine (from the judging pipeline)

type JudgeVerdictEvent struct {
	GameID    string    `json:"game_id"`
	UserID    string    `json:"user_id"`
	ProblemID string    `json:"problem_id"`
	Verdict   string    `json:"verdict"` // accepted, wrong_answer, time_limit, runtime_error
	Score     int       `json:"score"`
	Coins     int       `json:"coins"`
	JudgedAt  time.Time `json:"judged_at"`
	Timestamp time.Time `json:"timestamp"`
}

const VerdictAccepted = "accepted"
