package ws

import (
	"context"
	"sync"

	"github.com/algoarena/live-session/internal/event"
	"github.com/algoarena/live-session/pkg/logger"
)

// Hub is the event.Bus implementation: it tracks which connections watch
// which room and fans envelopes out to them. Sends are non-blocking; a client
// whose buffer is full is dropped rather than allowed to stall a broadcast.
type Hub struct {
	mu sync.RWMutex

	// room id -> connections watching it
	rooms map[string]map[*Client]struct{}
	// user id -> that user's connections (private channel)
	users map[string]map[*Client]struct{}
	// game id -> owning room id, while the game is live
	gameRooms map[string]string

	l logger.Logger
}

func NewHub(l logger.Logger) *Hub {
	return &Hub{
		rooms:     make(map[string]map[*Client]struct{}),
		users:     make(map[string]map[*Client]struct{}),
		gameRooms: make(map[string]string),
		l:         l,
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[c.roomID] == nil {
		h.rooms[c.roomID] = make(map[*Client]struct{})
	}
	h.rooms[c.roomID][c] = struct{}{}

	if c.userID != "" {
		if h.users[c.userID] == nil {
			h.users[c.userID] = make(map[*Client]struct{})
		}
		h.users[c.userID][c] = struct{}{}
	}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drop(c)
}

// drop removes a client from all topic maps and signals its write pump.
// c.send stays open so an in-flight reply from the reader goroutine cannot
// hit a closed channel. Caller holds h.mu.
func (h *Hub) drop(c *Client) {
	if set, ok := h.rooms[c.roomID]; ok {
		if _, member := set[c]; member {
			delete(set, c)
			close(c.done)
		}
		if len(set) == 0 {
			delete(h.rooms, c.roomID)
		}
	}
	if c.userID != "" {
		if set, ok := h.users[c.userID]; ok {
			delete(set, c)
			if len(set) == 0 {
				delete(h.users, c.userID)
			}
		}
	}
}

func (h *Hub) BroadcastRoom(roomID string, env event.Envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fanOut(h.rooms[roomID], env)
}

func (h *Hub) BroadcastGame(gameID string, env event.Envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()

	roomID, ok := h.gameRooms[gameID]
	if !ok {
		h.l.Debugf(context.Background(), "broadcast for unbound game %s dropped", gameID)
		return
	}
	h.fanOut(h.rooms[roomID], env)
}

func (h *Hub) SendUser(userID string, env event.Envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fanOut(h.users[userID], env)
}

func (h *Hub) BindGame(gameID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.gameRooms[gameID] = roomID
}

func (h *Hub) UnbindGame(gameID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.gameRooms, gameID)
}

// fanOut delivers to every client in the set, dropping any whose send buffer
// is full. Caller holds h.mu.
func (h *Hub) fanOut(clients map[*Client]struct{}, env event.Envelope) {
	for c := range clients {
		select {
		case c.send <- env:
		default:
			h.l.Warnf(context.Background(), "client %s too slow, dropping connection", c.userID)
			h.drop(c)
		}
	}
}
