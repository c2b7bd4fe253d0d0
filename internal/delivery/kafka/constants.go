package kafka

const (
	TopicGameStarted   = "arena.game.started"
	TopicGameEnded     = "arena.game.ended"
	TopicRoomDisbanded = "arena.room.disbanded"

	TopicJudgeVerdict = "arena.judge.verdict"
)
