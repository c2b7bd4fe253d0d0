package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/algoarena/live-session/internal/event"
	"github.com/algoarena/live-session/internal/models"
)

// startGame drives a two-player room through the lobby flow and returns the
// started game. Players are "host" and "u2".
func startGame(t *testing.T, env *testEnv) (*models.RoomState, *models.GameState) {
	t.Helper()
	ctx := context.Background()
	room := createRoom(t, env, "host", 4)
	if err := env.roomSvc.JoinRoom(ctx, room.ID, "u2"); err != nil {
		t.Fatalf("join u2: %v", err)
	}
	if err := env.roomSvc.SetReady(ctx, room.ID, "u2", true); err != nil {
		t.Fatalf("ready u2: %v", err)
	}
	game, err := env.roomSvc.StartGame(ctx, room.ID, "host")
	if err != nil {
		t.Fatalf("start game: %v", err)
	}
	return room, game
}

// fireDeadline backdates the current stage deadline and feeds it to the
// deadline handler, simulating a timer fire.
func fireDeadline(t *testing.T, env *testEnv, gameID string) {
	t.Helper()
	var deadline time.Time
	_, err := env.games.Mutate(context.Background(), gameID, func(game *models.GameState) error {
		game.StageDeadlineAt = time.Now().Add(-time.Millisecond)
		deadline = game.StageDeadlineAt
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("backdate deadline: %v", err)
	}
	env.gameSvc.HandleStageDeadline(gameID, deadline)
}

// seedGameAt plants a game directly in the given stage, bypassing the lobby
// flow. Useful for stages that are tedious to reach through commands.
func seedGameAt(t *testing.T, env *testEnv, stage models.Stage, coins int) *models.GameState {
	t.Helper()
	now := time.Now()
	game := &models.GameState{
		ID:     "g-seeded",
		RoomID: "r-seeded",
		Players: map[string]*models.GamePlayer{
			"u1": {UserID: "u1", Coins: coins},
			"u2": {UserID: "u2", Coins: coins},
		},
		CreatedAt: now,
	}
	game.EnterStage(stage, now, testStageCfg)
	if err := env.games.Create(context.Background(), game); err != nil {
		t.Fatalf("seed game: %v", err)
	}
	return game
}

func TestBanFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, game := startGame(t, env)

	if err := env.gameSvc.BanAlgorithm(ctx, game.ID, "host", "no-such-algo"); !errors.Is(err, ErrAlgorithmUnknown) {
		t.Errorf("unknown algorithm: err = %v, want ErrAlgorithmUnknown", err)
	}
	if err := env.gameSvc.BanAlgorithm(ctx, game.ID, "ghost", "dp"); !errors.Is(err, ErrPlayerNotInGame) {
		t.Errorf("stranger ban: err = %v, want ErrPlayerNotInGame", err)
	}
	if err := env.gameSvc.PickAlgorithm(ctx, game.ID, "host", "dp"); !errors.Is(err, ErrWrongStage) {
		t.Errorf("pick during BAN: err = %v, want ErrWrongStage", err)
	}

	if err := env.gameSvc.BanAlgorithm(ctx, game.ID, "host", "dp"); err != nil {
		t.Fatalf("ban: %v", err)
	}
	if err := env.gameSvc.BanAlgorithm(ctx, game.ID, "host", "greedy"); !errors.Is(err, ErrAlreadyActed) {
		t.Errorf("second ban by same player: err = %v, want ErrAlreadyActed", err)
	}
	if err := env.gameSvc.BanAlgorithm(ctx, game.ID, "u2", "dp"); !errors.Is(err, ErrAlgorithmTaken) {
		t.Errorf("ban of taken algorithm: err = %v, want ErrAlgorithmTaken", err)
	}

	if n := len(env.bus.gameEventsOf(game.ID, event.TypeAlgoBanned)); n != 1 {
		t.Errorf("ALGO_BANNED broadcast %d times, want 1", n)
	}
}

func TestAllBansAdvanceEarly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, game := startGame(t, env)

	if err := env.gameSvc.BanAlgorithm(ctx, game.ID, "host", "dp"); err != nil {
		t.Fatalf("ban host: %v", err)
	}
	if err := env.gameSvc.BanAlgorithm(ctx, game.ID, "u2", "greedy"); err != nil {
		t.Fatalf("ban u2: %v", err)
	}

	got, err := env.games.Get(ctx, game.ID)
	if err != nil {
		t.Fatalf("get game: %v", err)
	}
	if got.Stage != models.StagePick {
		t.Fatalf("stage = %s after all bans, want PICK", got.Stage)
	}

	changes := env.bus.gameEventsOf(game.ID, event.TypeGameStageChanged)
	if len(changes) != 1 {
		t.Fatalf("expected one GAME_STAGE_CHANGED broadcast, got %d", len(changes))
	}
	data := changes[0].Data.(event.GameStageChanged)
	if data.PrevStage != models.StageBan || data.Stage != models.StagePick {
		t.Errorf("stage change %+v, want BAN->PICK", data)
	}
	if data.RemainingMs <= 0 {
		t.Errorf("early advance remainingMs = %d, want > 0", data.RemainingMs)
	}
}

func TestDeadlineAdvancesStage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, game := startGame(t, env)

	fireDeadline(t, env, game.ID)

	got, err := env.games.Get(ctx, game.ID)
	if err != nil {
		t.Fatalf("get game: %v", err)
	}
	if got.Stage != models.StagePick {
		t.Fatalf("stage = %s after BAN deadline, want PICK", got.Stage)
	}

	changes := env.bus.gameEventsOf(game.ID, event.TypeGameStageChanged)
	if len(changes) != 1 {
		t.Fatalf("expected one GAME_STAGE_CHANGED broadcast, got %d", len(changes))
	}
	if rem := changes[0].Data.(event.GameStageChanged).RemainingMs; rem != 0 {
		t.Errorf("deadline fire remainingMs = %d, want 0", rem)
	}

	// Players who never banned pass through with nothing recorded.
	if len(got.BanPicks) != 0 {
		t.Errorf("ban picks after pure timeout = %+v, want none", got.BanPicks)
	}
}

func TestPickDeadlineAdvancesToShop(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, game := startGame(t, env)

	fireDeadline(t, env, game.ID) // BAN -> PICK
	fireDeadline(t, env, game.ID) // PICK -> SHOP

	got, err := env.games.Get(ctx, game.ID)
	if err != nil {
		t.Fatalf("get game: %v", err)
	}
	if got.Stage != models.StageShop {
		t.Fatalf("stage = %s after PICK deadline, want SHOP", got.Stage)
	}
	wantDeadline := got.StageStartedAt.Add(time.Duration(testStageCfg.ShopSec) * time.Second)
	if !got.StageDeadlineAt.Equal(wantDeadline) {
		t.Errorf("SHOP deadline = %v, want start+%ds", got.StageDeadlineAt, testStageCfg.ShopSec)
	}

	changes := env.bus.gameEventsOf(game.ID, event.TypeGameStageChanged)
	if len(changes) != 2 {
		t.Fatalf("expected two GAME_STAGE_CHANGED broadcasts, got %d", len(changes))
	}
	data := changes[1].Data.(event.GameStageChanged)
	if data.PrevStage != models.StagePick || data.Stage != models.StageShop {
		t.Errorf("second stage change %+v, want PICK->SHOP", data)
	}
	if data.RemainingMs != 0 {
		t.Errorf("deadline fire remainingMs = %d, want 0", data.RemainingMs)
	}
}

func TestStaleDeadlineIgnored(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, game := startGame(t, env)

	// A fire armed for the original BAN deadline arrives after the stage has
	// already moved on.
	staleDeadline := game.StageDeadlineAt
	fireDeadline(t, env, game.ID)
	env.gameSvc.HandleStageDeadline(game.ID, staleDeadline)

	got, err := env.games.Get(ctx, game.ID)
	if err != nil {
		t.Fatalf("get game: %v", err)
	}
	if got.Stage != models.StagePick {
		t.Fatalf("stage = %s, want PICK (stale fire must not double-advance)", got.Stage)
	}
}

func TestDeadlineForEvictedGameIsSilent(t *testing.T) {
	env := newTestEnv(t)

	// Must not panic or log an error-level failure for a game that was flushed
	// and evicted before the fire was handled.
	env.gameSvc.HandleStageDeadline("gone", time.Now())
}

func TestUseItem(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	game := seedGameAt(t, env, models.StageShop, 100)

	if err := env.gameSvc.UseItem(ctx, game.ID, "u1", "no-such-item"); !errors.Is(err, ErrItemUnknown) {
		t.Errorf("unknown item: err = %v, want ErrItemUnknown", err)
	}

	// hint costs 30, shield costs 60: both fit in 100, a second shield does not.
	if err := env.gameSvc.UseItem(ctx, game.ID, "u1", "shield"); err != nil {
		t.Fatalf("buy shield: %v", err)
	}
	if err := env.gameSvc.UseItem(ctx, game.ID, "u1", "hint"); err != nil {
		t.Fatalf("buy hint: %v", err)
	}
	if err := env.gameSvc.UseItem(ctx, game.ID, "u1", "shield"); !errors.Is(err, ErrInsufficientCoins) {
		t.Errorf("overspend: err = %v, want ErrInsufficientCoins", err)
	}

	got, _ := env.games.Get(ctx, game.ID)
	p := got.Player("u1")
	if p.Coins != 10 {
		t.Errorf("coins = %d after shield+hint, want 10", p.Coins)
	}
	if len(p.Items) != 2 {
		t.Errorf("items = %v, want shield and hint", p.Items)
	}

	used := env.bus.gameEventsOf(game.ID, event.TypeItemUsed)
	if len(used) != 2 {
		t.Fatalf("ITEM_USED broadcast %d times, want 2", len(used))
	}
	if last := used[1].Data.(event.ItemUsed); last.Coins != 10 {
		t.Errorf("last ITEM_USED coins = %d, want 10", last.Coins)
	}
}

func TestUseItemWrongStage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, game := startGame(t, env) // BAN stage

	if err := env.gameSvc.UseItem(ctx, game.ID, "host", "hint"); !errors.Is(err, ErrWrongStage) {
		t.Errorf("item during BAN: err = %v, want ErrWrongStage", err)
	}
}

func TestCastSpell(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	game := seedGameAt(t, env, models.StagePlay, 100)

	if err := env.gameSvc.CastSpell(ctx, game.ID, "u1", "ink-splash", "u1"); !errors.Is(err, ErrSelfTarget) {
		t.Errorf("self target: err = %v, want ErrSelfTarget", err)
	}
	if err := env.gameSvc.CastSpell(ctx, game.ID, "u1", "ink-splash", "ghost"); !errors.Is(err, ErrTargetNotInGame) {
		t.Errorf("stranger target: err = %v, want ErrTargetNotInGame", err)
	}
	if err := env.gameSvc.CastSpell(ctx, game.ID, "u1", "no-such-spell", "u2"); !errors.Is(err, ErrSpellUnknown) {
		t.Errorf("unknown spell: err = %v, want ErrSpellUnknown", err)
	}

	if err := env.gameSvc.CastSpell(ctx, game.ID, "u1", "ink-splash", "u2"); err != nil {
		t.Fatalf("cast: %v", err)
	}

	got, _ := env.games.Get(ctx, game.ID)
	if coins := got.Player("u1").Coins; coins != 65 {
		t.Errorf("coins = %d after ink-splash, want 65", coins)
	}

	casts := env.bus.gameEventsOf(game.ID, event.TypeSpellCast)
	if len(casts) != 1 {
		t.Fatalf("SPELL_CAST broadcast %d times, want 1", len(casts))
	}
	data := casts[0].Data.(event.SpellCast)
	if data.TargetUserID != "u2" || data.SpellID != "ink-splash" {
		t.Errorf("spell cast event %+v", data)
	}
}

func TestCastSpellOutsidePlay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	game := seedGameAt(t, env, models.StageShop, 100)

	if err := env.gameSvc.CastSpell(ctx, game.ID, "u1", "ink-splash", "u2"); !errors.Is(err, ErrWrongStage) {
		t.Errorf("spell during SHOP: err = %v, want ErrWrongStage", err)
	}
}

func TestReportSolve(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	game := seedGameAt(t, env, models.StagePlay, 100)

	if err := env.gameSvc.ReportSolve(ctx, game.ID, "u1", "p1", 150, 20); err != nil {
		t.Fatalf("report solve: %v", err)
	}
	if err := env.gameSvc.ReportSolve(ctx, game.ID, "u1", "p2", 100, 10); err != nil {
		t.Fatalf("report solve: %v", err)
	}

	got, _ := env.games.Get(ctx, game.ID)
	p := got.Player("u1")
	if p.Score != 250 || p.Coins != 130 {
		t.Errorf("score=%d coins=%d, want 250 and 130", p.Score, p.Coins)
	}

	updates := env.bus.gameEventsOf(game.ID, event.TypeGameScoreUpdated)
	if len(updates) != 2 {
		t.Fatalf("GAME_SCORE_UPDATED broadcast %d times, want 2", len(updates))
	}
	if last := updates[1].Data.(event.GameScoreUpdated); last.Score != 250 {
		t.Errorf("last score update carries %d, want running total 250", last.Score)
	}
}

func TestFullGameLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room, game := startGame(t, env)

	// BAN and PICK both finish early, SHOP and PLAY run out their clocks.
	for _, step := range []struct{ user, algo string }{
		{"host", "dp"}, {"u2", "greedy"},
	} {
		if err := env.gameSvc.BanAlgorithm(ctx, game.ID, step.user, step.algo); err != nil {
			t.Fatalf("ban %s: %v", step.user, err)
		}
	}
	for _, step := range []struct{ user, algo string }{
		{"host", "bfs"}, {"u2", "dfs"},
	} {
		if err := env.gameSvc.PickAlgorithm(ctx, game.ID, step.user, step.algo); err != nil {
			t.Fatalf("pick %s: %v", step.user, err)
		}
	}

	got, _ := env.games.Get(ctx, game.ID)
	if got.Stage != models.StageShop {
		t.Fatalf("stage = %s after all picks, want SHOP", got.Stage)
	}

	fireDeadline(t, env, game.ID) // SHOP -> PLAY

	if err := env.gameSvc.ReportSolve(ctx, game.ID, "u2", "p1", 300, 30); err != nil {
		t.Fatalf("report solve: %v", err)
	}
	if err := env.gameSvc.ReportSolve(ctx, game.ID, "host", "p1", 100, 10); err != nil {
		t.Fatalf("report solve: %v", err)
	}

	fireDeadline(t, env, game.ID) // PLAY -> ENDED

	// Game evicted from the live store only after the flush, which the fake
	// writer does not perform; the state itself must read ENDED.
	got, _ = env.games.Get(ctx, game.ID)
	if !got.IsEnded() {
		t.Fatalf("stage = %s after PLAY deadline, want ENDED", got.Stage)
	}
	if got.EndedAt == nil {
		t.Error("EndedAt not set on ENDED game")
	}

	ended := env.bus.gameEventsOf(game.ID, event.TypeGameEnded)
	if len(ended) != 1 {
		t.Fatalf("GAME_ENDED broadcast %d times, want 1", len(ended))
	}
	results := ended[0].Data.(event.GameEnded).Results
	if len(results) != 2 {
		t.Fatalf("results = %+v, want 2 entries", results)
	}
	if results[0].UserID != "u2" || results[0].Score != 300 {
		t.Errorf("winner = %+v, want u2 with 300", results[0])
	}
	if results[1].UserID != "host" || results[1].Score != 100 {
		t.Errorf("runner-up = %+v, want host with 100", results[1])
	}
	if results[0].Tier != models.TierForScore(300) {
		t.Errorf("winner tier = %s, want %s", results[0].Tier, models.TierForScore(300))
	}

	if !env.writer.flushedGame(game.ID) {
		t.Error("ended game not handed to the writer for terminal flush")
	}
	if _, bound := env.bus.bindings[game.ID]; bound {
		t.Error("game topic still bound after the game ended")
	}

	gotRoom, err := env.rooms.Get(ctx, room.ID)
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	if gotRoom.GameID != "" {
		t.Errorf("room still references game %s after it ended", gotRoom.GameID)
	}
	for _, p := range gotRoom.ActivePlayers() {
		if p.State != models.PlayerStateJoined {
			t.Errorf("player %s state = %s after game end, want JOINED", p.UserID, p.State)
		}
	}
}

func TestCommandsAfterGameEnded(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	game := seedGameAt(t, env, models.StageEnded, 100)

	if err := env.gameSvc.UseItem(ctx, game.ID, "u1", "hint"); !errors.Is(err, ErrGameEnded) {
		t.Errorf("item after end: err = %v, want ErrGameEnded", err)
	}
	if err := env.gameSvc.ReportSolve(ctx, game.ID, "u1", "p1", 10, 1); !errors.Is(err, ErrGameEnded) {
		t.Errorf("solve after end: err = %v, want ErrGameEnded", err)
	}
}

func TestGetGameUnknown(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.gameSvc.GetGame(context.Background(), "nope"); !errors.Is(err, ErrGameNotFound) {
		t.Fatalf("err = %v, want ErrGameNotFound", err)
	}
}
