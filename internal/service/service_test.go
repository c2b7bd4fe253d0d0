package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/algoarena/live-session/config"
	"github.com/algoarena/live-session/internal/delivery/kafka/producer"
	"github.com/algoarena/live-session/internal/event"
	"github.com/algoarena/live-session/internal/livestore"
	"github.com/algoarena/live-session/internal/models"
	"github.com/algoarena/live-session/internal/repository"
	"github.com/algoarena/live-session/internal/repository/memory"
	"github.com/algoarena/live-session/pkg/logger"
)

// flakyRoomRepo wraps a real repository and can be told to fail the next Save,
// exercising the commit-failure path of a mutation.
type flakyRoomRepo struct {
	repository.RoomLiveRepository
	mu           sync.Mutex
	failNextSave bool
}

func (r *flakyRoomRepo) failOnce() {
	r.mu.Lock()
	r.failNextSave = true
	r.mu.Unlock()
}

func (r *flakyRoomRepo) Save(ctx context.Context, room *models.RoomState) error {
	r.mu.Lock()
	fail := r.failNextSave
	r.failNextSave = false
	r.mu.Unlock()
	if fail {
		return errors.New("save failed")
	}
	return r.RoomLiveRepository.Save(ctx, room)
}

// fakeBus records every envelope by topic so tests can assert on broadcast
// order and content.
type fakeBus struct {
	mu         sync.Mutex
	roomEvents map[string][]event.Envelope
	gameEvents map[string][]event.Envelope
	userEvents map[string][]event.Envelope
	bindings   map[string]string
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		roomEvents: make(map[string][]event.Envelope),
		gameEvents: make(map[string][]event.Envelope),
		userEvents: make(map[string][]event.Envelope),
		bindings:   make(map[string]string),
	}
}

func (b *fakeBus) BroadcastRoom(roomID string, env event.Envelope) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.roomEvents[roomID] = append(b.roomEvents[roomID], env)
}

func (b *fakeBus) BroadcastGame(gameID string, env event.Envelope) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gameEvents[gameID] = append(b.gameEvents[gameID], env)
}

func (b *fakeBus) SendUser(userID string, env event.Envelope) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.userEvents[userID] = append(b.userEvents[userID], env)
}

func (b *fakeBus) BindGame(gameID, roomID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bindings[gameID] = roomID
}

func (b *fakeBus) UnbindGame(gameID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.bindings, gameID)
}

func (b *fakeBus) roomEventsOf(roomID string, typ event.Type) []event.Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []event.Envelope
	for _, env := range b.roomEvents[roomID] {
		if env.Type == typ {
			out = append(out, env)
		}
	}
	return out
}

func (b *fakeBus) gameEventsOf(gameID string, typ event.Type) []event.Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []event.Envelope
	for _, env := range b.gameEvents[gameID] {
		if env.Type == typ {
			out = append(out, env)
		}
	}
	return out
}

// fakeWriter records which ids were handed to the snapshot pipeline.
type fakeWriter struct {
	mu           sync.Mutex
	persistRooms []string
	persistGames []string
	flushRooms   []string
	flushGames   []string
}

func (w *fakeWriter) Start(ctx context.Context) error { return nil }
func (w *fakeWriter) Stop() error                     { return nil }

func (w *fakeWriter) PersistRoom(roomID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.persistRooms = append(w.persistRooms, roomID)
}

func (w *fakeWriter) PersistGame(gameID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.persistGames = append(w.persistGames, gameID)
}

func (w *fakeWriter) FlushRoom(roomID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flushRooms = append(w.flushRooms, roomID)
}

func (w *fakeWriter) FlushGame(gameID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flushGames = append(w.flushGames, gameID)
}

func (w *fakeWriter) flushedRoom(roomID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, id := range w.flushRooms {
		if id == roomID {
			return true
		}
	}
	return false
}

func (w *fakeWriter) flushedGame(gameID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, id := range w.flushGames {
		if id == gameID {
			return true
		}
	}
	return false
}

type testEnv struct {
	rooms    *livestore.RoomStore
	games    *livestore.GameStore
	roomRepo *flakyRoomRepo
	bus      *fakeBus
	writer   *fakeWriter
	sched    *StageScheduler
	roomSvc  RoomService
	gameSvc  GameService
	chatSvc  ChatService
}

// Long stage durations keep real timers out of the way; deadline behavior is
// driven explicitly through HandleStageDeadline.
var testStageCfg = config.StageConfig{
	BanSec:  60,
	PickSec: 60,
	ShopSec: 60,
	PlaySec: 600,
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	l := logger.InitializeTestZapLogger()
	roomRepo := &flakyRoomRepo{RoomLiveRepository: memory.NewRoomLiveRepository()}
	rooms := livestore.NewRoomStore(roomRepo, l)
	games := livestore.NewGameStore(memory.NewGameLiveRepository(), l)
	bus := newFakeBus()
	writer := &fakeWriter{}
	sched := NewStageScheduler(l)
	prod := producer.NewNoopProducer()

	roomSvc := NewRoomService(rooms, games, bus, writer, sched, prod, testStageCfg, l)
	gameSvc := NewGameService(games, rooms, bus, writer, sched, NewCatalog(), prod, testStageCfg, l)
	sched.SetHandler(gameSvc.HandleStageDeadline)
	chatSvc := NewChatService(rooms, bus, l)

	t.Cleanup(sched.Stop)

	return &testEnv{
		rooms:    rooms,
		games:    games,
		roomRepo: roomRepo,
		bus:      bus,
		writer:   writer,
		sched:    sched,
		roomSvc:  roomSvc,
		gameSvc:  gameSvc,
		chatSvc:  chatSvc,
	}
}
