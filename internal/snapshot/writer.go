// Package snapshot moves live state into durable storage off the hot path.
// Services hand the writer an id after every accepted mutation; worker
// goroutines read the current state and pass it to the registered
// contributors with retry. A flush is the terminal form of a persist: once it
// succeeds the live state is evicted, so the durable row is the only copy
// left.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/algoarena/live-session/config"
	"github.com/algoarena/live-session/internal/livestore"
	"github.com/algoarena/live-session/internal/repository"
	"github.com/algoarena/live-session/pkg/logger"
)

type Writer interface {
	Start(ctx context.Context) error
	Stop() error

	// PersistRoom and PersistGame enqueue a best-effort snapshot of the
	// current live state. Safe to call after every mutation; a full queue
	// drops the request because the periodic pass will pick the id up again.
	PersistRoom(roomID string)
	PersistGame(gameID string)

	// FlushRoom and FlushGame enqueue a terminal snapshot. On success the
	// live state is evicted. Duplicate flushes for an id already in flight
	// are coalesced.
	FlushRoom(roomID string)
	FlushGame(gameID string)
}

type jobKind int

const (
	jobPersistRoom jobKind = iota
	jobPersistGame
	jobFlushRoom
	jobFlushGame
)

type job struct {
	kind jobKind
	id   string
}

func (j job) String() string {
	switch j.kind {
	case jobPersistRoom:
		return "persist room " + j.id
	case jobPersistGame:
		return "persist game " + j.id
	case jobFlushRoom:
		return "flush room " + j.id
	case jobFlushGame:
		return "flush game " + j.id
	}
	return "unknown job " + j.id
}

type writer struct {
	reg   Registry
	rooms *livestore.RoomStore
	games *livestore.GameStore
	l     logger.Logger
	cfg   config.SnapshotConfig

	jobs   chan job
	stopCh chan struct{}
	ticker *time.Ticker
	g      *errgroup.Group

	mu        sync.Mutex
	isRunning bool
	inFlight  map[string]bool
}

func NewWriter(
	reg Registry,
	rooms *livestore.RoomStore,
	games *livestore.GameStore,
	l logger.Logger,
	cfg config.SnapshotConfig,
) Writer {
	return &writer{
		reg:      reg,
		rooms:    rooms,
		games:    games,
		l:        l,
		cfg:      cfg,
		jobs:     make(chan job, 256),
		stopCh:   make(chan struct{}),
		inFlight: make(map[string]bool),
	}
}

func (w *writer) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isRunning {
		return errors.New("snapshot writer is already running")
	}

	w.l.Infof(ctx, "starting snapshot writer: workers=%d, persist_interval=%s",
		w.cfg.Workers, w.cfg.PersistInterval)

	w.isRunning = true
	w.ticker = time.NewTicker(w.cfg.PersistInterval)
	w.g = &errgroup.Group{}

	for i := 0; i < w.cfg.Workers; i++ {
		w.g.Go(func() error {
			w.workerLoop(ctx)
			return nil
		})
	}
	w.g.Go(func() error {
		w.periodicLoop(ctx)
		return nil
	})

	return nil
}

func (w *writer) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return errors.New("snapshot writer is not running")
	}
	w.isRunning = false
	w.mu.Unlock()

	ctx := context.Background()
	w.l.Info(ctx, "stopping snapshot writer...")

	close(w.stopCh)
	w.ticker.Stop()

	// Wait without holding w.mu: draining workers need it for clearInFlight.
	done := make(chan struct{})
	go func() {
		w.g.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.l.Info(ctx, "snapshot writer stopped gracefully")
	case <-time.After(w.cfg.ShutdownTimeout):
		w.l.Warn(ctx, "snapshot writer shutdown timeout exceeded")
	}

	return nil
}

func (w *writer) PersistRoom(roomID string) {
	w.enqueueBestEffort(job{kind: jobPersistRoom, id: roomID})
}

func (w *writer) PersistGame(gameID string) {
	w.enqueueBestEffort(job{kind: jobPersistGame, id: gameID})
}

func (w *writer) FlushRoom(roomID string) {
	w.enqueueFlush(job{kind: jobFlushRoom, id: roomID})
}

func (w *writer) FlushGame(gameID string) {
	w.enqueueFlush(job{kind: jobFlushGame, id: gameID})
}

func (w *writer) enqueueBestEffort(j job) {
	select {
	case w.jobs <- j:
	case <-w.stopCh:
	default:
		w.l.Warnf(context.Background(), "snapshot queue full, dropping %s", j)
	}
}

// enqueueFlush blocks until accepted: a terminal snapshot must not be lost to
// backpressure. Duplicates for an id already queued or running are coalesced.
func (w *writer) enqueueFlush(j job) {
	w.mu.Lock()
	if w.inFlight[j.String()] {
		w.mu.Unlock()
		return
	}
	w.inFlight[j.String()] = true
	w.mu.Unlock()

	select {
	case w.jobs <- j:
	case <-w.stopCh:
		w.clearInFlight(j)
	}
}

func (w *writer) clearInFlight(j job) {
	w.mu.Lock()
	delete(w.inFlight, j.String())
	w.mu.Unlock()
}

func (w *writer) workerLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			// Drain what is already queued so accepted flushes still land.
			for {
				select {
				case j := <-w.jobs:
					w.handle(ctx, j)
				default:
					return
				}
			}
		case j := <-w.jobs:
			w.handle(ctx, j)
		}
	}
}

// periodicLoop re-persists every live room and game on an interval, covering
// ids whose best-effort persists were dropped under load.
func (w *writer) periodicLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-w.ticker.C:
			roomIDs, err := w.rooms.ListIDs(ctx)
			if err != nil {
				w.l.Errorf(ctx, "snapshot periodic pass: list rooms: %v", err)
			}
			for _, id := range roomIDs {
				w.enqueueBestEffort(job{kind: jobPersistRoom, id: id})
			}

			gameIDs, err := w.games.ListIDs(ctx)
			if err != nil {
				w.l.Errorf(ctx, "snapshot periodic pass: list games: %v", err)
			}
			for _, id := range gameIDs {
				w.enqueueBestEffort(job{kind: jobPersistGame, id: id})
			}
		}
	}
}

func (w *writer) handle(ctx context.Context, j job) {
	var err error
	switch j.kind {
	case jobPersistRoom:
		err = w.withRetry(ctx, func() error { return w.persistRoom(ctx, j.id) })
	case jobPersistGame:
		err = w.withRetry(ctx, func() error { return w.persistGame(ctx, j.id) })
	case jobFlushRoom:
		err = w.withRetry(ctx, func() error { return w.flushRoom(ctx, j.id) })
		w.clearInFlight(j)
	case jobFlushGame:
		err = w.withRetry(ctx, func() error { return w.flushGame(ctx, j.id) })
		w.clearInFlight(j)
	}
	if err != nil {
		w.l.Errorf(ctx, "snapshot writer: %s failed: %v", j, err)
	}
}

func (w *writer) persistRoom(ctx context.Context, roomID string) error {
	room, err := w.rooms.Get(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Already evicted; nothing left to snapshot.
			return nil
		}
		return fmt.Errorf("load room: %w", err)
	}
	return w.reg.Room.PersistRoom(ctx, room)
}

func (w *writer) persistGame(ctx context.Context, gameID string) error {
	game, err := w.games.Get(ctx, gameID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load game: %w", err)
	}
	if err := w.reg.Game.PersistGame(ctx, game); err != nil {
		return err
	}
	return w.reg.BanPick.PersistBanPicks(ctx, game)
}

func (w *writer) flushRoom(ctx context.Context, roomID string) error {
	room, err := w.rooms.Get(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load room: %w", err)
	}

	if err := w.reg.Room.PersistRoom(ctx, room); err != nil {
		return err
	}

	// Eviction only after the durable write succeeded. If eviction itself
	// fails the retry re-runs the idempotent persist and tries again.
	if err := w.rooms.Evict(ctx, roomID); err != nil {
		return fmt.Errorf("evict room: %w", err)
	}

	w.l.Infof(ctx, "room %s flushed and evicted", roomID)
	return nil
}

func (w *writer) flushGame(ctx context.Context, gameID string) error {
	game, err := w.games.Get(ctx, gameID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load game: %w", err)
	}

	if err := w.reg.Game.PersistGame(ctx, game); err != nil {
		return err
	}
	if err := w.reg.BanPick.PersistBanPicks(ctx, game); err != nil {
		return err
	}

	if err := w.games.Evict(ctx, gameID); err != nil {
		return fmt.Errorf("evict game: %w", err)
	}

	w.l.Infof(ctx, "game %s flushed and evicted", gameID)
	return nil
}

func (w *writer) withRetry(ctx context.Context, operation func() error) error {
	var lastErr error

	for attempt := 0; attempt < w.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.cfg.RetryDelay * time.Duration(attempt)):
			}
		}

		if err := operation(); err != nil {
			lastErr = err
			w.l.Warnf(ctx, "snapshot operation failed (attempt %d/%d): %v",
				attempt+1, w.cfg.RetryAttempts, err)
			continue
		}

		return nil
	}

	return fmt.Errorf("operation failed after %d attempts: %w", w.cfg.RetryAttempts, lastErr)
}
