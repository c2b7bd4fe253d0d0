package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/algoarena/live-session/internal/event"
	"github.com/algoarena/live-session/internal/livestore"
	"github.com/algoarena/live-session/internal/models"
	"github.com/algoarena/live-session/internal/repository"
	"github.com/algoarena/live-session/pkg/logger"
	"github.com/algoarena/live-session/pkg/util"
)

const maxMessageLen = 500

const ChannelTypeRoom = "room"

type ChatService interface {
	SendMessage(ctx context.Context, roomID, userID, message string) error
	UpdateTyping(ctx context.Context, roomID, userID string, typing bool) error
}

type chatService struct {
	rooms *livestore.RoomStore
	bus   event.Bus
	l     logger.Logger
}

func NewChatService(rooms *livestore.RoomStore, bus event.Bus, l logger.Logger) ChatService {
	return &chatService{
		rooms: rooms,
		bus:   bus,
		l:     l,
	}
}

func (s *chatService) SendMessage(ctx context.Context, roomID, userID, message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		return ErrEmptyMessage
	}
	if len(message) > maxMessageLen {
		return ErrMessageTooLong
	}

	if err := s.requireMember(ctx, roomID, userID); err != nil {
		return err
	}

	s.bus.BroadcastRoom(roomID, event.New(event.TypeChatMessage, event.ChatMessage{
		MessageID:   uuid.New().String(),
		ChannelType: ChannelTypeRoom,
		RoomID:      roomID,
		Sender:      userID,
		Message:     message,
		CreatedAt:   util.TimeToISO8601Str(time.Now()),
	}))
	return nil
}

func (s *chatService) UpdateTyping(ctx context.Context, roomID, userID string, typing bool) error {
	if err := s.requireMember(ctx, roomID, userID); err != nil {
		return err
	}

	s.bus.BroadcastRoom(roomID, event.New(event.TypeTypingStatusChanged, event.TypingStatusChanged{
		RoomID: roomID,
		UserID: userID,
		Typing: typing,
	}))
	return nil
}

// Chat never mutates live state, so a plain read is enough to validate
// membership.
func (s *chatService) requireMember(ctx context.Context, roomID, userID string) error {
	room, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrRoomNotFound
		}
		return err
	}
	p := room.Player(userID)
	if p == nil || p.State == models.PlayerStateLeft {
		return ErrPlayerNotInRoom
	}
	return nil
}
