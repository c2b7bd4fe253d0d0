package ws

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/algoarena/live-session/internal/event"
	"github.com/algoarena/live-session/internal/models"
	"github.com/algoarena/live-session/internal/service"
	pkgerrors "github.com/algoarena/live-session/pkg/errors"
	"github.com/algoarena/live-session/pkg/jwt"
	"github.com/algoarena/live-session/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	},
}

// Handler upgrades GET /ws requests and ties each connection into the hub.
// Connecting with roomId joins that room; connecting without one creates a
// fresh room with the caller as host. A connection with no valid token is
// still accepted, but stays read-only: see Router.Dispatch.
type Handler struct {
	hub           *Hub
	router        *Router
	roomSvc       service.RoomService
	verifier      *jwt.Verifier
	timeSyncEvery time.Duration
	l             logger.Logger
}

func NewHandler(
	hub *Hub,
	router *Router,
	roomSvc service.RoomService,
	verifier *jwt.Verifier,
	timeSyncEvery time.Duration,
	l logger.Logger,
) *Handler {
	return &Handler{
		hub:           hub,
		router:        router,
		roomSvc:       roomSvc,
		verifier:      verifier,
		timeSyncEvery: timeSyncEvery,
		l:             l,
	}
}

func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := h.identify(r)
	roomID := r.URL.Query().Get("roomId")

	created := false
	if roomID == "" {
		if userID == "" {
			http.Error(w, "roomId required", http.StatusBadRequest)
			return
		}
		room, err := h.roomSvc.CreateRoom(ctx, userID, models.RoomSettings{
			Title:    r.URL.Query().Get("title"),
			GameType: r.URL.Query().Get("gameType"),
		})
		if err != nil {
			http.Error(w, "could not create room", http.StatusUnprocessableEntity)
			return
		}
		roomID = room.ID
		created = true
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.l.Errorf(ctx, "websocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		hub:           h.hub,
		conn:          conn,
		send:          make(chan event.Envelope, sendBufferSize),
		done:          make(chan struct{}),
		router:        h.router,
		userID:        userID,
		roomID:        roomID,
		timeSyncEvery: h.timeSyncEvery,
		onClose:       h.onDisconnect,
		l:             h.l,
	}
	h.hub.register(client)

	go client.writePump()
	go client.readPump()

	if userID != "" && !created {
		if err := h.roomSvc.JoinRoom(context.Background(), roomID, userID); err != nil {
			var bizErr *pkgerrors.BusinessError
			if errors.As(err, &bizErr) {
				client.reply(event.New(event.TypeError, event.Error{
					Code:    bizErr.Code,
					Message: bizErr.Message,
					Details: bizErr.Details,
				}))
				return
			}
			h.l.Errorf(ctx, "join on connect failed for %s in %s: %v", userID, roomID, err)
		}
	}
}

// onDisconnect leaves the room on behalf of the departed connection. The
// leave path handles host transfer and empty-room disband.
func (h *Handler) onDisconnect(c *Client) {
	if c.userID == "" {
		return
	}

	ctx := context.Background()
	if err := h.roomSvc.LeaveRoom(ctx, c.roomID, c.userID); err != nil {
		var bizErr *pkgerrors.BusinessError
		if errors.As(err, &bizErr) {
			// Already gone (kicked, duplicate connection); nothing to undo.
			return
		}
		h.l.Errorf(ctx, "leave on disconnect failed for %s in %s: %v", c.userID, c.roomID, err)
	}
}

// identify extracts the user id from the bearer token or the token query
// param. A missing or invalid token yields the empty identity.
func (h *Handler) identify(r *http.Request) string {
	token := ""
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		token = strings.TrimPrefix(auth, "Bearer ")
	}
	if token == "" {
		token = r.URL.Query().Get("token")
	}

	userID, err := h.verifier.UserID(token)
	if err != nil {
		if !errors.Is(err, jwt.ErrTokenEmpty) {
			h.l.Debugf(r.Context(), "token rejected: %v", err)
		}
		return ""
	}
	return userID
}
