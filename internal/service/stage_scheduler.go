package service

import (
	"context"
	"sync"
	"time"

	"github.com/algoarena/live-session/pkg/logger"
)

// DeadlineHandler is invoked when a game's stage deadline fires. The deadline
// the timer was armed for is passed along so the handler can detect a stale
// fire after a re-arm.
type DeadlineHandler func(gameID string, deadline time.Time)

// StageScheduler keeps one cancellable timer per active game. Arming a game
// that already has a timer replaces it, so a game never has two pending
// deadlines.
type StageScheduler struct {
	mu      sync.Mutex
	timers  map[string]*time.Timer
	handler DeadlineHandler
	stopped bool
	l       logger.Logger
}

func NewStageScheduler(l logger.Logger) *StageScheduler {
	return &StageScheduler{
		timers: make(map[string]*time.Timer),
		l:      l,
	}
}

// SetHandler must be called before the first Schedule. It exists because the
// scheduler and the game service reference each other.
func (s *StageScheduler) SetHandler(h DeadlineHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

func (s *StageScheduler) Schedule(gameID string, deadline time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	if t, ok := s.timers[gameID]; ok {
		t.Stop()
	}

	d := time.Until(deadline)
	if d < 0 {
		d = 0
	}

	s.timers[gameID] = time.AfterFunc(d, func() {
		s.mu.Lock()
		delete(s.timers, gameID)
		h := s.handler
		s.mu.Unlock()

		if h != nil {
			h(gameID, deadline)
		}
	})

	s.l.Debugf(context.Background(), "stage deadline armed for game %s in %s", gameID, d)
}

func (s *StageScheduler) Cancel(gameID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[gameID]; ok {
		t.Stop()
		delete(s.timers, gameID)
	}
}

// Stop cancels every pending timer and rejects further scheduling.
func (s *StageScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}
