package service

import "github.com/algoarena/live-session/pkg/errors"

// Business failures surfaced to clients as ERROR events. Anything not in this
// family is an internal fault and is collapsed by the router before leaving
// the process.
var (
	ErrRoomNotFound     = errors.NotFound("room not found")
	ErrGameNotFound     = errors.NotFound("game not found")
	ErrPlayerNotInRoom  = errors.NotFound("player is not in this room")
	ErrPlayerNotInGame  = errors.NotFound("player is not in this game")
	ErrTargetNotInGame  = errors.NotFound("target player is not in this game")
	ErrAlgorithmUnknown = errors.NotFound("unknown algorithm")
	ErrItemUnknown      = errors.NotFound("unknown item")
	ErrSpellUnknown     = errors.NotFound("unknown spell")

	ErrRoomFull          = errors.Conflict("room is full")
	ErrGameInProgress    = errors.Conflict("a game is already in progress")
	ErrPlayersNotReady   = errors.Conflict("not all players are ready")
	ErrNotHost           = errors.Conflict("only the host can do this")
	ErrWrongStage        = errors.Conflict("action not allowed in the current stage")
	ErrAlreadyActed      = errors.Conflict("player already acted this stage")
	ErrAlgorithmTaken    = errors.Conflict("algorithm already banned or picked")
	ErrInsufficientCoins = errors.Conflict("not enough coins")
	ErrGameEnded         = errors.Conflict("game has ended")
	ErrNotEnoughPlayers  = errors.Conflict("not enough players to start")

	ErrEmptyMessage   = errors.Validation("message must not be empty")
	ErrMessageTooLong = errors.Validation("message exceeds maximum length")
	ErrSelfTarget     = errors.Validation("cannot target yourself")
	ErrBadMaxPlayers  = errors.Validation("maxPlayers must be between 2 and 8")
)
