package livestore

import "sync"

// laneSet hands out one exclusive lane per id. A lane is a plain mutex with a
// reference count so idle lanes can be dropped after eviction without racing
// a waiter that already looked the lane up.
type laneSet struct {
	mu    sync.Mutex
	lanes map[string]*lane
}

type lane struct {
	mu   sync.Mutex
	refs int
}

func newLaneSet() *laneSet {
	return &laneSet{lanes: make(map[string]*lane)}
}

func (s *laneSet) acquire(id string) *lane {
	s.mu.Lock()
	ln, ok := s.lanes[id]
	if !ok {
		ln = &lane{}
		s.lanes[id] = ln
	}
	ln.refs++
	s.mu.Unlock()

	ln.mu.Lock()
	return ln
}

func (s *laneSet) release(id string, ln *lane) {
	ln.mu.Unlock()

	s.mu.Lock()
	ln.refs--
	if ln.refs == 0 {
		delete(s.lanes, id)
	}
	s.mu.Unlock()
}
