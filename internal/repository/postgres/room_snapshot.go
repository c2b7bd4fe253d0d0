package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/algoarena/live-session/internal/models"
	"github.com/algoarena/live-session/internal/snapshot"
	"github.com/algoarena/live-session/pkg/logger"
)

type roomContributor struct {
	db *gorm.DB
	l  logger.Logger
}

func NewRoomContributor(db *gorm.DB, l logger.Logger) snapshot.RoomContributor {
	return &roomContributor{db: db, l: l}
}

func (c *roomContributor) PersistRoom(ctx context.Context, room *models.RoomState) error {
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := RoomRecord{
			ID:          room.ID,
			HostID:      room.HostID,
			Title:       room.Settings.Title,
			GameType:    room.Settings.GameType,
			MaxPlayers:  room.Settings.MaxPlayers,
			Private:     room.Settings.Private,
			ListVersion: room.ListVersion,
			GameID:      room.GameID,
			CreatedAt:   room.CreatedAt,
			UpdatedAt:   room.UpdatedAt,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"host_id", "title", "game_type", "max_players", "private",
				"list_version", "game_id", "updated_at",
			}),
		}).Create(&rec).Error
		if err != nil {
			return fmt.Errorf("upsert room: %w", err)
		}

		for _, p := range room.Players {
			prec := RoomPlayerRecord{
				RoomID:   room.ID,
				UserID:   p.UserID,
				State:    string(p.State),
				JoinedAt: p.JoinedAt,
			}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "room_id"}, {Name: "user_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"state", "joined_at"}),
			}).Create(&prec).Error
			if err != nil {
				return fmt.Errorf("upsert room player %s: %w", p.UserID, err)
			}
		}

		// Kick and host-change entries are append-only; replays hit the
		// composite key and fall through.
		for _, k := range room.Kicks {
			krec := RoomKickRecord{
				RoomID:   room.ID,
				UserID:   k.UserID,
				KickedAt: k.KickedAt,
				ByUserID: k.ByUserID,
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&krec).Error; err != nil {
				return fmt.Errorf("insert kick record: %w", err)
			}
		}

		for _, h := range room.HostChanges {
			hrec := RoomHostChangeRecord{
				RoomID:     room.ID,
				ChangedAt:  h.ChangedAt,
				FromUserID: h.FromUserID,
				ToUserID:   h.ToUserID,
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&hrec).Error; err != nil {
				return fmt.Errorf("insert host change record: %w", err)
			}
		}

		return nil
	})
}
