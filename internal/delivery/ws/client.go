package ws

import (
	"context"
	"time"

	"github.com/gorilla/websocket"

	"github.com/algoarena/live-session/internal/event"
	"github.com/algoarena/live-session/pkg/logger"
	"github.com/algoarena/live-session/pkg/util"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 16 * 1024

	sendBufferSize = 64
)

// Client is the middleman between one websocket connection and the hub.
// userID is empty when the connection carried no valid token; such clients
// still receive broadcasts but every command is rejected by the router.
// send is never closed; the hub signals a drop by closing done, so concurrent
// replies from the reader goroutine stay safe.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan event.Envelope
	done   chan struct{}
	router *Router

	userID string
	roomID string

	timeSyncEvery time.Duration
	onClose       func(*Client)
	l             logger.Logger
}

// readPump pumps commands from the websocket connection to the router.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
		if c.onClose != nil {
			c.onClose(c)
		}
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var cmd CommandEnvelope
		if err := c.conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.l.Warnf(context.Background(), "read error from %s: %v", c.userID, err)
			}
			break
		}

		c.router.Dispatch(context.Background(), c, cmd)
	}
}

// writePump pumps envelopes from the hub to the websocket connection, keeps
// the connection alive with pings, and unicasts TIME_SYNC on its interval so
// the client can render countdowns against server time.
func (c *Client) writePump() {
	pingTicker := time.NewTicker(pingPeriod)
	syncTicker := time.NewTicker(c.timeSyncEvery)
	defer func() {
		pingTicker.Stop()
		syncTicker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			// The hub dropped us.
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case env := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(env); err != nil {
				return
			}

		case <-syncTicker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			env := event.New(event.TypeTimeSync, event.TimeSync{
				ServerTime: util.TimeToISO8601Str(time.Now()),
			})
			if err := c.conn.WriteJSON(env); err != nil {
				return
			}

		case <-pingTicker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// reply queues an envelope for this connection only, bypassing the topic
// maps. Used for command errors, which must reach exactly the sender.
func (c *Client) reply(env event.Envelope) {
	select {
	case c.send <- env:
	default:
	}
}
