package ws

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/algoarena/live-session/internal/event"
	"github.com/algoarena/live-session/internal/service"
	pkgerrors "github.com/algoarena/live-session/pkg/errors"
	"github.com/algoarena/live-session/pkg/logger"
)

// Router dispatches each inbound command to exactly one service call and
// turns failures into ERROR events for the sender. It never broadcasts
// anything itself; broadcasting is the services' job.
type Router struct {
	roomSvc service.RoomService
	gameSvc service.GameService
	chatSvc service.ChatService
	l       logger.Logger
}

func NewRouter(
	roomSvc service.RoomService,
	gameSvc service.GameService,
	chatSvc service.ChatService,
	l logger.Logger,
) *Router {
	return &Router{
		roomSvc: roomSvc,
		gameSvc: gameSvc,
		chatSvc: chatSvc,
		l:       l,
	}
}

func (r *Router) Dispatch(ctx context.Context, c *Client, cmd CommandEnvelope) {
	defer func() {
		if rec := recover(); rec != nil {
			r.l.Errorf(ctx, "panic handling %s from %s: %v", cmd.Type, c.userID, rec)
			r.sendError(c, cmd, pkgerrors.Internal("internal error"))
		}
	}()

	// An unidentified connection gets exactly one UNAUTHORIZED error on its
	// private channel. No service is called, nothing is broadcast.
	if c.userID == "" {
		r.sendError(c, cmd, pkgerrors.Unauthorized("missing or invalid token"))
		return
	}

	if err := r.handle(ctx, c, cmd); err != nil {
		var bizErr *pkgerrors.BusinessError
		if errors.As(err, &bizErr) {
			r.sendError(c, cmd, bizErr)
			return
		}
		r.l.Errorf(ctx, "command %s from %s failed: %v", cmd.Type, c.userID, err)
		r.sendError(c, cmd, pkgerrors.Internal("internal error"))
	}
}

func (r *Router) handle(ctx context.Context, c *Client, cmd CommandEnvelope) error {
	switch cmd.Type {
	case CmdChatSend:
		var data ChatSendData
		if err := unmarshal(cmd.Data, &data); err != nil {
			return err
		}
		return r.chatSvc.SendMessage(ctx, c.roomID, c.userID, data.Message)

	case CmdTypingUpdate:
		var data TypingUpdateData
		if err := unmarshal(cmd.Data, &data); err != nil {
			return err
		}
		return r.chatSvc.UpdateTyping(ctx, c.roomID, c.userID, data.Typing)

	case CmdItemUse:
		var data ItemUseData
		if err := unmarshal(cmd.Data, &data); err != nil {
			return err
		}
		return r.gameSvc.UseItem(ctx, data.GameID, c.userID, data.ItemID)

	case CmdSpellUse:
		var data SpellUseData
		if err := unmarshal(cmd.Data, &data); err != nil {
			return err
		}
		return r.gameSvc.CastSpell(ctx, data.GameID, c.userID, data.SpellID, data.TargetUserID)

	case CmdReadySet:
		var data ReadySetData
		if err := unmarshal(cmd.Data, &data); err != nil {
			return err
		}
		return r.roomSvc.SetReady(ctx, c.roomID, c.userID, data.Ready)

	case CmdGameStart:
		_, err := r.roomSvc.StartGame(ctx, c.roomID, c.userID)
		return err

	case CmdAlgoBan:
		var data AlgoBanPickData
		if err := unmarshal(cmd.Data, &data); err != nil {
			return err
		}
		return r.gameSvc.BanAlgorithm(ctx, data.GameID, c.userID, data.AlgorithmID)

	case CmdAlgoPick:
		var data AlgoBanPickData
		if err := unmarshal(cmd.Data, &data); err != nil {
			return err
		}
		return r.gameSvc.PickAlgorithm(ctx, data.GameID, c.userID, data.AlgorithmID)

	case CmdRoomKick:
		var data RoomKickData
		if err := unmarshal(cmd.Data, &data); err != nil {
			return err
		}
		return r.roomSvc.KickPlayer(ctx, c.roomID, c.userID, data.TargetUserID)

	case CmdRoomTransferHost:
		var data RoomTransferHostData
		if err := unmarshal(cmd.Data, &data); err != nil {
			return err
		}
		return r.roomSvc.TransferHost(ctx, c.roomID, c.userID, data.TargetUserID)

	default:
		return pkgerrors.Validation("unknown command type").WithDetails(map[string]any{
			"type": string(cmd.Type),
		})
	}
}

func (r *Router) sendError(c *Client, cmd CommandEnvelope, bizErr *pkgerrors.BusinessError) {
	details := bizErr.Details
	if cmd.Meta.CommandID != "" {
		if details == nil {
			details = make(map[string]any)
		}
		details["commandId"] = cmd.Meta.CommandID
	}

	c.reply(event.New(event.TypeError, event.Error{
		Code:    bizErr.Code,
		Message: bizErr.Message,
		Details: details,
	}))
}

func unmarshal(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return pkgerrors.Validation("missing command data")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return pkgerrors.Validation("malformed command data")
	}
	return nil
}
