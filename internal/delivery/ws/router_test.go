package ws

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/algoarena/live-session/internal/event"
	"github.com/algoarena/live-session/internal/models"
	pkgerrors "github.com/algoarena/live-session/pkg/errors"
	"github.com/algoarena/live-session/pkg/logger"
)

// The fakes record one string per service call so tests can assert exactly
// which call a command was routed to. err, when set, is returned by every
// method.
type fakeRoomService struct {
	calls []string
	err   error
}

func (s *fakeRoomService) CreateRoom(ctx context.Context, hostID string, settings models.RoomSettings) (*models.RoomState, error) {
	s.calls = append(s.calls, "CreateRoom:"+hostID)
	return &models.RoomState{ID: "r1", HostID: hostID}, s.err
}

func (s *fakeRoomService) GetRoom(ctx context.Context, roomID string) (*models.RoomState, error) {
	s.calls = append(s.calls, "GetRoom:"+roomID)
	return nil, s.err
}

func (s *fakeRoomService) JoinRoom(ctx context.Context, roomID, userID string) error {
	s.calls = append(s.calls, "JoinRoom:"+roomID+":"+userID)
	return s.err
}

func (s *fakeRoomService) LeaveRoom(ctx context.Context, roomID, userID string) error {
	s.calls = append(s.calls, "LeaveRoom:"+roomID+":"+userID)
	return s.err
}

func (s *fakeRoomService) SetReady(ctx context.Context, roomID, userID string, ready bool) error {
	s.calls = append(s.calls, "SetReady:"+roomID+":"+userID)
	return s.err
}

func (s *fakeRoomService) KickPlayer(ctx context.Context, roomID, byUserID, targetUserID string) error {
	s.calls = append(s.calls, "KickPlayer:"+roomID+":"+byUserID+":"+targetUserID)
	return s.err
}

func (s *fakeRoomService) TransferHost(ctx context.Context, roomID, byUserID, targetUserID string) error {
	s.calls = append(s.calls, "TransferHost:"+roomID+":"+byUserID+":"+targetUserID)
	return s.err
}

func (s *fakeRoomService) StartGame(ctx context.Context, roomID, byUserID string) (*models.GameState, error) {
	s.calls = append(s.calls, "StartGame:"+roomID+":"+byUserID)
	return &models.GameState{ID: "g1", RoomID: roomID}, s.err
}

func (s *fakeRoomService) DisbandRoom(ctx context.Context, roomID string) error {
	s.calls = append(s.calls, "DisbandRoom:"+roomID)
	return s.err
}

type fakeGameService struct {
	calls []string
	err   error
}

func (s *fakeGameService) GetGame(ctx context.Context, gameID string) (*models.GameState, error) {
	s.calls = append(s.calls, "GetGame:"+gameID)
	return nil, s.err
}

func (s *fakeGameService) BanAlgorithm(ctx context.Context, gameID, userID, algorithmID string) error {
	s.calls = append(s.calls, "BanAlgorithm:"+gameID+":"+userID+":"+algorithmID)
	return s.err
}

func (s *fakeGameService) PickAlgorithm(ctx context.Context, gameID, userID, algorithmID string) error {
	s.calls = append(s.calls, "PickAlgorithm:"+gameID+":"+userID+":"+algorithmID)
	return s.err
}

func (s *fakeGameService) UseItem(ctx context.Context, gameID, userID, itemID string) error {
	s.calls = append(s.calls, "UseItem:"+gameID+":"+userID+":"+itemID)
	return s.err
}

func (s *fakeGameService) CastSpell(ctx context.Context, gameID, userID, spellID, targetUserID string) error {
	s.calls = append(s.calls, "CastSpell:"+gameID+":"+userID+":"+spellID+":"+targetUserID)
	return s.err
}

func (s *fakeGameService) ReportSolve(ctx context.Context, gameID, userID, problemID string, score, coins int) error {
	s.calls = append(s.calls, "ReportSolve:"+gameID+":"+userID)
	return s.err
}

func (s *fakeGameService) HandleStageDeadline(gameID string, deadline time.Time) {}

type fakeChatService struct {
	calls []string
	err   error
}

func (s *fakeChatService) SendMessage(ctx context.Context, roomID, userID, message string) error {
	s.calls = append(s.calls, "SendMessage:"+roomID+":"+userID+":"+message)
	return s.err
}

func (s *fakeChatService) UpdateTyping(ctx context.Context, roomID, userID string, typing bool) error {
	s.calls = append(s.calls, "UpdateTyping:"+roomID+":"+userID)
	return s.err
}

type routerEnv struct {
	router  *Router
	roomSvc *fakeRoomService
	gameSvc *fakeGameService
	chatSvc *fakeChatService
}

func newRouterEnv(t *testing.T) *routerEnv {
	t.Helper()
	roomSvc := &fakeRoomService{}
	gameSvc := &fakeGameService{}
	chatSvc := &fakeChatService{}
	return &routerEnv{
		router:  NewRouter(roomSvc, gameSvc, chatSvc, logger.InitializeTestZapLogger()),
		roomSvc: roomSvc,
		gameSvc: gameSvc,
		chatSvc: chatSvc,
	}
}

func newTestClient(userID, roomID string) *Client {
	return &Client{
		send:   make(chan event.Envelope, 8),
		done:   make(chan struct{}),
		userID: userID,
		roomID: roomID,
	}
}

func cmd(t *testing.T, typ CommandType, data any) CommandEnvelope {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal command data: %v", err)
	}
	return CommandEnvelope{Type: typ, Data: raw}
}

func recvError(t *testing.T, c *Client) event.Error {
	t.Helper()
	select {
	case env := <-c.send:
		if env.Type != event.TypeError {
			t.Fatalf("got %s envelope, want ERROR", env.Type)
		}
		return env.Data.(event.Error)
	default:
		t.Fatalf("no envelope queued for the client")
		return event.Error{}
	}
}

func assertNoReply(t *testing.T, c *Client) {
	t.Helper()
	select {
	case env := <-c.send:
		t.Fatalf("unexpected %s envelope queued", env.Type)
	default:
	}
}

func TestDispatchUnauthenticated(t *testing.T) {
	env := newRouterEnv(t)
	c := newTestClient("", "r1")

	env.router.Dispatch(context.Background(), c, cmd(t, CmdChatSend, ChatSendData{Message: "hi"}))

	errData := recvError(t, c)
	if errData.Code != pkgerrors.CodeUnauthorized {
		t.Errorf("code = %s, want UNAUTHORIZED", errData.Code)
	}
	assertNoReply(t, c)

	if len(env.chatSvc.calls) != 0 {
		t.Errorf("unauthenticated command reached a service: %v", env.chatSvc.calls)
	}
}

func TestDispatchRoutesCommands(t *testing.T) {
	env := newRouterEnv(t)
	c := newTestClient("u1", "r1")
	ctx := context.Background()

	env.router.Dispatch(ctx, c, cmd(t, CmdChatSend, ChatSendData{Message: "hi"}))
	env.router.Dispatch(ctx, c, cmd(t, CmdTypingUpdate, TypingUpdateData{Typing: true}))
	env.router.Dispatch(ctx, c, cmd(t, CmdReadySet, ReadySetData{Ready: true}))
	env.router.Dispatch(ctx, c, CommandEnvelope{Type: CmdGameStart})
	env.router.Dispatch(ctx, c, cmd(t, CmdAlgoBan, AlgoBanPickData{GameID: "g1", AlgorithmID: "dp"}))
	env.router.Dispatch(ctx, c, cmd(t, CmdAlgoPick, AlgoBanPickData{GameID: "g1", AlgorithmID: "bfs"}))
	env.router.Dispatch(ctx, c, cmd(t, CmdItemUse, ItemUseData{GameID: "g1", ItemID: "hint"}))
	env.router.Dispatch(ctx, c, cmd(t, CmdSpellUse, SpellUseData{GameID: "g1", SpellID: "ink-splash", TargetUserID: "u2"}))
	env.router.Dispatch(ctx, c, cmd(t, CmdRoomKick, RoomKickData{TargetUserID: "u2"}))
	env.router.Dispatch(ctx, c, cmd(t, CmdRoomTransferHost, RoomTransferHostData{TargetUserID: "u2"}))

	assertNoReply(t, c)

	wantChat := []string{"SendMessage:r1:u1:hi", "UpdateTyping:r1:u1"}
	for i, want := range wantChat {
		if env.chatSvc.calls[i] != want {
			t.Errorf("chat call %d = %s, want %s", i, env.chatSvc.calls[i], want)
		}
	}
	wantRoom := []string{"SetReady:r1:u1", "StartGame:r1:u1", "KickPlayer:r1:u1:u2", "TransferHost:r1:u1:u2"}
	for i, want := range wantRoom {
		if env.roomSvc.calls[i] != want {
			t.Errorf("room call %d = %s, want %s", i, env.roomSvc.calls[i], want)
		}
	}
	wantGame := []string{
		"BanAlgorithm:g1:u1:dp",
		"PickAlgorithm:g1:u1:bfs",
		"UseItem:g1:u1:hint",
		"CastSpell:g1:u1:ink-splash:u2",
	}
	for i, want := range wantGame {
		if env.gameSvc.calls[i] != want {
			t.Errorf("game call %d = %s, want %s", i, env.gameSvc.calls[i], want)
		}
	}
}

func TestDispatchUnknownCommand(t *testing.T) {
	env := newRouterEnv(t)
	c := newTestClient("u1", "r1")

	env.router.Dispatch(context.Background(), c, CommandEnvelope{Type: "NO_SUCH_COMMAND"})

	errData := recvError(t, c)
	if errData.Code != pkgerrors.CodeValidation {
		t.Errorf("code = %s, want VALIDATION", errData.Code)
	}
}

func TestDispatchMalformedData(t *testing.T) {
	env := newRouterEnv(t)
	c := newTestClient("u1", "r1")

	env.router.Dispatch(context.Background(), c, CommandEnvelope{
		Type: CmdChatSend,
		Data: json.RawMessage(`{"message":`),
	})

	errData := recvError(t, c)
	if errData.Code != pkgerrors.CodeValidation {
		t.Errorf("code = %s, want VALIDATION", errData.Code)
	}
	if len(env.chatSvc.calls) != 0 {
		t.Errorf("malformed command reached a service: %v", env.chatSvc.calls)
	}
}

func TestDispatchBusinessErrorReachesSender(t *testing.T) {
	env := newRouterEnv(t)
	env.roomSvc.err = pkgerrors.Conflict("only the host can start the game")
	c := newTestClient("u1", "r1")

	env.router.Dispatch(context.Background(), c, CommandEnvelope{
		Type: CmdGameStart,
		Meta: CommandMeta{CommandID: "cmd-42"},
	})

	errData := recvError(t, c)
	if errData.Code != pkgerrors.CodeConflict {
		t.Errorf("code = %s, want CONFLICT", errData.Code)
	}
	if errData.Details["commandId"] != "cmd-42" {
		t.Errorf("details = %v, want commandId cmd-42", errData.Details)
	}
}

func TestDispatchInternalErrorCollapsed(t *testing.T) {
	env := newRouterEnv(t)
	env.chatSvc.err = errors.New("redis connection reset")
	c := newTestClient("u1", "r1")

	env.router.Dispatch(context.Background(), c, cmd(t, CmdChatSend, ChatSendData{Message: "hi"}))

	errData := recvError(t, c)
	if errData.Code != pkgerrors.CodeInternalError {
		t.Errorf("code = %s, want INTERNAL_ERROR", errData.Code)
	}
	if errData.Message == "redis connection reset" {
		t.Error("internal error detail leaked to the client")
	}
}
